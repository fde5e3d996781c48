package zoning

import (
	"testing"

	"zoneops/internal/model"
)

func TestFormZones_StarClusterAroundSeed(t *testing.T) {
	// o2 and o3 are within 2km of seed o1; o3 is not within 2km of o2,
	// which must not matter (star, not transitive chain).
	orders := []model.Order{
		geocodedOrder("o1", 0, 0, "morning"),
		geocodedOrder("o2", 0, 0.015, "morning"),  // ~1.7 km east
		geocodedOrder("o3", 0, -0.015, "morning"), // ~1.7 km west
	}
	res := FormZones(orders, 2, nil, 0)
	if len(res.Zones) != 1 {
		t.Fatalf("expected one zone, got %d", len(res.Zones))
	}
	z := res.Zones[0]
	if len(z.OrderIDs) != 3 {
		t.Fatalf("expected 3 members, got %v", z.OrderIDs)
	}
	if z.CenterLat != 0 || z.CenterLng != 0 {
		t.Fatalf("zone center must be the seed coordinate, got %v,%v", z.CenterLat, z.CenterLng)
	}
	if z.RadiusKm != 2 || z.Window != "09:00-11:00" {
		t.Fatalf("zone radius/window wrong: %+v", z)
	}
}

func TestFormZones_DistantOrdersBecomeSingletons(t *testing.T) {
	orders := []model.Order{
		geocodedOrder("o1", 0, 0, "morning"),
		geocodedOrder("o2", 0, 1, "morning"), // ~111 km away
	}
	res := FormZones(orders, 2, nil, 0)
	if len(res.Zones) != 2 {
		t.Fatalf("expected two singleton zones, got %d", len(res.Zones))
	}
	for _, z := range res.Zones {
		if len(z.OrderIDs) != 1 {
			t.Fatalf("expected singleton, got %v", z.OrderIDs)
		}
	}
}

func TestFormZones_WindowsClusterIndependently(t *testing.T) {
	// Same coordinates, different windows: never one zone.
	orders := []model.Order{
		geocodedOrder("m", 0, 0, "morning"),
		geocodedOrder("e", 0, 0, "evening"),
	}
	res := FormZones(orders, 2, nil, 0)
	if len(res.Zones) != 2 {
		t.Fatalf("windows must cluster independently, got %d zones", len(res.Zones))
	}
}

func TestFormZones_RoundRobinDrivers(t *testing.T) {
	drivers := []model.Staff{
		{ID: "d1", Name: "Ana", Role: model.RoleDriver, Status: model.StatusActive},
		{ID: "d2", Name: "Luis", Role: model.RoleDriver, Status: model.StatusActive},
	}
	// Three far-apart orders in one window -> three zones.
	orders := []model.Order{
		geocodedOrder("o1", 0, 0, "morning"),
		geocodedOrder("o2", 0, 1, "morning"),
		geocodedOrder("o3", 0, 2, "morning"),
	}
	res := FormZones(orders, 2, drivers, 0)
	if len(res.Zones) != 3 {
		t.Fatalf("expected three zones, got %d", len(res.Zones))
	}
	got := []string{res.Zones[0].DriverID, res.Zones[1].DriverID, res.Zones[2].DriverID}
	want := []string{"d1", "d2", "d1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", got, want)
		}
	}
	if res.Cursor != 3 {
		t.Fatalf("cursor = %d, want 3", res.Cursor)
	}
	if res.Zones[0].DriverName != "Ana" {
		t.Fatalf("driver name not cached on zone: %+v", res.Zones[0])
	}
}

func TestFormZones_NoDriversYieldsNullDriver(t *testing.T) {
	res := FormZones([]model.Order{geocodedOrder("o1", 0, 0, "morning")}, 2, nil, 0)
	if len(res.Zones) != 1 || res.Zones[0].DriverID != "" {
		t.Fatalf("expected driverless singleton zone, got %+v", res.Zones)
	}
	if res.Cursor != 0 {
		t.Fatalf("cursor must not advance without an assignment")
	}
}

func TestActiveDrivers_FiltersRoleAndStatus(t *testing.T) {
	staff := []model.Staff{
		{ID: "d1", Role: model.RoleDriver, Status: model.StatusActive},
		{ID: "x1", Role: "dispatcher", Status: model.StatusActive},
		{ID: "d2", Role: model.RoleDriver, Status: model.StatusInactive},
		{ID: "d3", Role: model.RoleDriver, Status: model.StatusActive},
	}
	got := ActiveDrivers(staff)
	if len(got) != 2 || got[0].ID != "d1" || got[1].ID != "d3" {
		t.Fatalf("ActiveDrivers = %+v", got)
	}
}
