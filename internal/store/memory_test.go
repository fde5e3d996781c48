package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"zoneops/internal/model"
)

func TestMemoryOrderLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	n, err := m.CreateOrders(ctx, []model.OrderIn{
		{Address: "a", TimeSlot: "morning"},
		{Address: "b", DeliveryStart: "09:00", DeliveryEnd: "10:00"},
	})
	if err != nil || n != 2 {
		t.Fatalf("CreateOrders = %d, %v", n, err)
	}
	orders, _ := m.ListOrders(ctx)
	if len(orders) != 2 || orders[0].Address != "a" {
		t.Fatalf("insertion order not preserved: %+v", orders)
	}

	lat, lng := 1.5, 2.5
	geocoded, zoned, zid := true, true, "z1"
	got, err := m.PatchOrder(ctx, orders[0].ID, model.OrderPatch{Lat: &lat, Lng: &lng, Geocoded: &geocoded, Zoned: &zoned, ZoneID: &zid})
	if err != nil {
		t.Fatalf("PatchOrder: %v", err)
	}
	if *got.Lat != 1.5 || !got.Geocoded || !got.Zoned || got.ZoneID != "z1" {
		t.Fatalf("patch not applied: %+v", got)
	}
	// Untouched fields survive subsequent partial patches.
	got, err = m.PatchOrder(ctx, orders[0].ID, model.OrderPatch{})
	if err != nil || got.ZoneID != "z1" {
		t.Fatalf("empty patch changed state: %+v, %v", got, err)
	}

	if _, err := m.GetOrder(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetOrder(missing) = %v", err)
	}
	if _, err := m.PatchOrder(ctx, "missing", model.OrderPatch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("PatchOrder(missing) = %v", err)
	}
}

func TestMemoryZonePatch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	z, err := m.CreateZone(ctx, model.Zone{CenterLat: 1, CenterLng: 2, RadiusKm: 2, Window: "09:00-11:00", OrderIDs: []string{"o1"}})
	if err != nil || z.ID == "" {
		t.Fatalf("CreateZone: %+v, %v", z, err)
	}
	did := "d1"
	got, err := m.PatchZone(ctx, z.ID, model.ZonePatch{OrderIDs: []string{"o1", "o2"}, DriverID: &did})
	if err != nil {
		t.Fatalf("PatchZone: %v", err)
	}
	if len(got.OrderIDs) != 2 || got.DriverID != "d1" || got.Window != "09:00-11:00" {
		t.Fatalf("patch result: %+v", got)
	}
}

func TestMemoryStaffDefaultsActive(t *testing.T) {
	m := NewMemory()
	s, err := m.CreateStaff(context.Background(), model.StaffIn{Name: "Ana", Role: model.RoleDriver})
	if err != nil {
		t.Fatalf("CreateStaff: %v", err)
	}
	if s.Status != model.StatusActive {
		t.Fatalf("status = %q, want active default", s.Status)
	}
}

func TestMemoryGeocacheFirstMatchWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.LookupGeocode(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup on empty cache = %v", err)
	}
	_ = m.SaveGeocode(ctx, model.GeocodeEntry{Address: "x", Lat: 1, Provider: "nominatim"})
	_ = m.SaveGeocode(ctx, model.GeocodeEntry{Address: "x", Lat: 9, Provider: "google"})
	e, err := m.LookupGeocode(ctx, "x")
	if err != nil || e.Lat != 1 || e.Provider != "nominatim" {
		t.Fatalf("first entry must win: %+v, %v", e, err)
	}
	if e.CreatedAt == "" {
		t.Fatalf("CreatedAt not stamped")
	}
}

func TestMemoryWebhookQueue(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id, err := m.EnqueueWebhook(ctx, "sub1", "zone.created", "http://example.com/hook", "s3cret", []byte(`{}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].ID != id || due[0].Status != "pending" {
		t.Fatalf("due = %+v", due)
	}

	// Failed attempt schedules a retry in the future.
	next := time.Now().Add(time.Hour)
	if err := m.MarkWebhookDelivery(ctx, id, false, &next, "boom", 500); err != nil {
		t.Fatalf("mark: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("retry scheduled in the future must not be due: %+v", due)
	}

	// Manual retry makes it due again; success terminates it.
	if err := m.RetryWebhookDelivery(ctx, id); err != nil {
		t.Fatalf("retry: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 {
		t.Fatalf("retried delivery not due: %+v", due)
	}
	if err := m.MarkWebhookDelivery(ctx, id, true, nil, "", 200); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("delivered delivery still due: %+v", due)
	}

	list, _ := m.ListWebhookDeliveries(ctx, "delivered", 10)
	if len(list) != 1 || list[0]["id"] != id {
		t.Fatalf("list delivered = %+v", list)
	}
}

func TestMemorySubscriptionsByEvent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	s1, _ := m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "http://a", Events: []string{"zone.created"}})
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "http://b", Events: []string{"recalc.completed"}})

	subs, _ := m.GetSubscriptionsForEvent(ctx, "zone.created")
	if len(subs) != 1 || subs[0].ID != s1.ID {
		t.Fatalf("subs = %+v", subs)
	}
	if err := m.DeleteSubscription(ctx, s1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	subs, _ = m.GetSubscriptionsForEvent(ctx, "zone.created")
	if len(subs) != 0 {
		t.Fatalf("subscription not deleted: %+v", subs)
	}
}
