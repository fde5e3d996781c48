package zoning

import (
	"testing"

	"zoneops/internal/model"
)

func ptr(f float64) *float64 { return &f }

func geocodedOrder(id string, lat, lng float64, slot string) model.Order {
	return model.Order{ID: id, Lat: ptr(lat), Lng: ptr(lng), TimeSlot: slot, Geocoded: true}
}

func TestAssignOrders_PicksNearestQualifyingZone(t *testing.T) {
	zones := []model.Zone{
		{ID: "far", CenterLat: 0, CenterLng: 0.02, RadiusKm: 5, Window: "09:00-11:00"},
		{ID: "near", CenterLat: 0, CenterLng: 0.005, RadiusKm: 5, Window: "09:00-11:00"},
	}
	res := AssignOrders([]model.Order{geocodedOrder("o1", 0, 0, "morning")}, zones)
	if res.OrderZone["o1"] != "near" {
		t.Fatalf("expected nearest zone, got %q", res.OrderZone["o1"])
	}
	if len(res.Leftover) != 0 {
		t.Fatalf("no leftovers expected")
	}
}

func TestAssignOrders_TieKeepsFirstZone(t *testing.T) {
	// Both centers equidistant from the order.
	zones := []model.Zone{
		{ID: "a", CenterLat: 0, CenterLng: 0.01, RadiusKm: 5, Window: "09:00-11:00"},
		{ID: "b", CenterLat: 0, CenterLng: -0.01, RadiusKm: 5, Window: "09:00-11:00"},
	}
	res := AssignOrders([]model.Order{geocodedOrder("o1", 0, 0, "morning")}, zones)
	if res.OrderZone["o1"] != "a" {
		t.Fatalf("tie should keep first encountered zone, got %q", res.OrderZone["o1"])
	}
}

func TestAssignOrders_NeverCrossesWindows(t *testing.T) {
	zones := []model.Zone{
		{ID: "aft", CenterLat: 0, CenterLng: 0, RadiusKm: 100, Window: "11:00-13:00"},
	}
	res := AssignOrders([]model.Order{geocodedOrder("o1", 0, 0, "morning")}, zones)
	if len(res.OrderZone) != 0 {
		t.Fatalf("order must not join a zone in another window")
	}
	if len(res.Leftover) != 1 {
		t.Fatalf("order should carry to formation, leftovers=%d", len(res.Leftover))
	}
}

func TestAssignOrders_RadiusExcludes(t *testing.T) {
	zones := []model.Zone{
		// ~111 km away at the equator, radius 5 km.
		{ID: "z", CenterLat: 0, CenterLng: 1, RadiusKm: 5, Window: "09:00-11:00"},
	}
	res := AssignOrders([]model.Order{geocodedOrder("o1", 0, 0, "morning")}, zones)
	if len(res.OrderZone) != 0 || len(res.Leftover) != 1 {
		t.Fatalf("out-of-radius order must go to formation")
	}
}

func TestAssignOrders_SkipsWindowlessAndUngeocoded(t *testing.T) {
	zones := []model.Zone{{ID: "z", CenterLat: 0, CenterLng: 0, RadiusKm: 5, Window: "09:00-11:00"}}
	orders := []model.Order{
		{ID: "nowin", Lat: ptr(0), Lng: ptr(0)}, // no time signal
		{ID: "nocoord", TimeSlot: "morning"},    // never geocoded
		geocodedOrder("ok", 0, 0.001, "morning"),
	}
	res := AssignOrders(orders, zones)
	if len(res.OrderZone) != 1 || res.OrderZone["ok"] == "" {
		t.Fatalf("only the geocoded windowed order should be assigned: %+v", res.OrderZone)
	}
	if len(res.Leftover) != 0 {
		t.Fatalf("skipped orders must not leak into formation")
	}
}

func TestAssignOrders_RecordsZoneAdditions(t *testing.T) {
	zones := []model.Zone{{ID: "z", CenterLat: 0, CenterLng: 0, RadiusKm: 5, Window: "09:00-11:00", OrderIDs: []string{"old"}}}
	res := AssignOrders([]model.Order{
		geocodedOrder("o1", 0, 0.001, "morning"),
		geocodedOrder("o2", 0, 0.002, "morning"),
	}, zones)
	if got := res.Added["z"]; len(got) != 2 || got[0] != "o1" || got[1] != "o2" {
		t.Fatalf("additions = %v, want [o1 o2]", got)
	}
	// Fetched zone snapshot must not be mutated.
	if len(zones[0].OrderIDs) != 1 {
		t.Fatalf("assignment mutated fetched zone: %v", zones[0].OrderIDs)
	}
}
