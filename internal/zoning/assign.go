package zoning

import (
	"zoneops/internal/geo"
	"zoneops/internal/model"
)

// Assignment is the change set produced by matching orders against
// existing zones. Fetched zones are never mutated; Added records the
// member ids appended per zone and OrderZone the chosen zone per order.
type Assignment struct {
	Added     map[string][]string // zoneID -> appended order ids
	OrderZone map[string]string   // orderID -> zoneID
	Leftover  []model.Order       // carried forward to zone formation
}

// AssignOrders matches each geocoded, unzoned order to the nearest
// existing zone in its time window whose radius covers it. Orders with
// no window are skipped entirely; orders with no qualifying zone go to
// Leftover. Ties on distance keep the first zone encountered.
func AssignOrders(orders []model.Order, zones []model.Zone) Assignment {
	byWindow := map[string][]int{}
	for i, z := range zones {
		byWindow[z.Window] = append(byWindow[z.Window], i)
	}

	res := Assignment{Added: map[string][]string{}, OrderZone: map[string]string{}}
	for _, o := range orders {
		if o.Lat == nil || o.Lng == nil {
			continue
		}
		key := WindowFor(o)
		if key == "" {
			continue
		}
		bestIdx := -1
		bestDist := 0.0
		for _, zi := range byWindow[key] {
			z := zones[zi]
			d := geo.HaversineKm(*o.Lat, *o.Lng, z.CenterLat, z.CenterLng)
			if d > z.RadiusKm {
				continue
			}
			if bestIdx == -1 || d < bestDist {
				bestIdx = zi
				bestDist = d
			}
		}
		if bestIdx == -1 {
			res.Leftover = append(res.Leftover, o)
			continue
		}
		zid := zones[bestIdx].ID
		res.Added[zid] = append(res.Added[zid], o.ID)
		res.OrderZone[o.ID] = zid
	}
	return res
}
