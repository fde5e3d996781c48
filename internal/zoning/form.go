package zoning

import (
	"github.com/google/uuid"
	"zoneops/internal/geo"
	"zoneops/internal/model"
)

// Formation is the change set produced by clustering leftover orders
// into new zones.
type Formation struct {
	Zones     []model.Zone
	OrderZone map[string]string // orderID -> new zone id
	Cursor    int               // round-robin cursor after the pass
}

// ActiveDrivers filters the roster down to active staff with the driver
// role, preserving input order.
func ActiveDrivers(staff []model.Staff) []model.Staff {
	var out []model.Staff
	for _, s := range staff {
		if s.Role == model.RoleDriver && s.Status == model.StatusActive {
			out = append(out, s)
		}
	}
	return out
}

// FormZones clusters orders that found no existing zone, independently
// per time window, walking windows in canonical order and orders in
// input order. Clustering is star-shaped: an order joins a cluster when
// it is within radiusKm of the cluster's seed, not of other members.
// Each cluster becomes one zone centered on its seed with radius
// radiusKm. Drivers rotate round-robin from cursor across all zones
// created in the pass; the cursor advances only when a driver was
// actually assigned.
func FormZones(leftovers []model.Order, radiusKm float64, drivers []model.Staff, cursor int) Formation {
	byWindow := map[string][]model.Order{}
	for _, o := range leftovers {
		if o.Lat == nil || o.Lng == nil {
			continue
		}
		key := WindowFor(o)
		if key == "" {
			continue
		}
		byWindow[key] = append(byWindow[key], o)
	}

	res := Formation{OrderZone: map[string]string{}, Cursor: cursor}
	for _, key := range WindowKeys() {
		orders := byWindow[key]
		visited := make([]bool, len(orders))
		for i, seed := range orders {
			if visited[i] {
				continue
			}
			visited[i] = true
			members := []string{seed.ID}
			for j := i + 1; j < len(orders); j++ {
				if visited[j] {
					continue
				}
				o := orders[j]
				if geo.HaversineKm(*seed.Lat, *seed.Lng, *o.Lat, *o.Lng) <= radiusKm {
					visited[j] = true
					members = append(members, o.ID)
				}
			}
			z := model.Zone{
				ID:        uuid.New().String(),
				CenterLat: *seed.Lat,
				CenterLng: *seed.Lng,
				RadiusKm:  radiusKm,
				Window:    key,
				OrderIDs:  members,
			}
			if len(drivers) > 0 {
				d := drivers[res.Cursor%len(drivers)]
				z.DriverID = d.ID
				z.DriverName = d.Name
				res.Cursor++
			}
			for _, id := range members {
				res.OrderZone[id] = z.ID
			}
			res.Zones = append(res.Zones, z)
		}
	}
	return res
}
