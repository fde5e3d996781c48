package zoning

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"zoneops/internal/geocode"
	"zoneops/internal/metrics"
	"zoneops/internal/model"
	"zoneops/internal/store"
)

// ErrPassInFlight is returned when a recalculation pass is requested
// while another one is still running. Passes are single-flight: two
// overlapping passes could double-assign orders or create duplicate
// zones.
var ErrPassInFlight = errors.New("a recalculation pass is already in flight")

// FetchError aggregates base-data fetch failures. Any failed resource
// aborts the pass before work is done.
type FetchError struct {
	Orders error
	Zones  error
	Staff  error
}

func (e *FetchError) Error() string {
	var parts []string
	if e.Orders != nil {
		parts = append(parts, fmt.Sprintf("orders: %v", e.Orders))
	}
	if e.Zones != nil {
		parts = append(parts, fmt.Sprintf("zones: %v", e.Zones))
	}
	if e.Staff != nil {
		parts = append(parts, fmt.Sprintf("staff: %v", e.Staff))
	}
	return "fetch base data: " + strings.Join(parts, "; ")
}

// Recalculator runs zone recalculation passes against the record store.
type Recalculator struct {
	Store           store.Store
	Geocoder        geocode.Resolver
	DefaultRadiusKm float64
	// Concurrency bounds the geocode fan-out so a large batch cannot
	// exhaust the provider.
	Concurrency int

	inflight chan struct{}
}

func NewRecalculator(s store.Store, g geocode.Resolver, defaultRadiusKm float64, concurrency int) *Recalculator {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = 2
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Recalculator{
		Store:           s,
		Geocoder:        g,
		DefaultRadiusKm: defaultRadiusKm,
		Concurrency:     concurrency,
		inflight:        make(chan struct{}, 1),
	}
}

// Run executes one recalculation pass and returns the summary plus the
// zones created. radiusKm <= 0 selects the configured default.
func (r *Recalculator) Run(ctx context.Context, radiusKm float64) (model.RecalcSummary, []model.Zone, error) {
	select {
	case r.inflight <- struct{}{}:
	default:
		return model.RecalcSummary{}, nil, ErrPassInFlight
	}
	defer func() { <-r.inflight }()

	start := time.Now()
	summary, created, err := r.runPass(ctx, radiusKm)
	metrics.RecalcDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecalcPasses.WithLabelValues("error").Inc()
		return model.RecalcSummary{}, nil, err
	}
	metrics.RecalcPasses.WithLabelValues("ok").Inc()
	metrics.ZonesCreated.Add(float64(summary.CreatedZones))
	metrics.OrdersAssigned.Add(float64(summary.UpdatedOrders))
	return summary, created, nil
}

func (r *Recalculator) runPass(ctx context.Context, radiusKm float64) (model.RecalcSummary, []model.Zone, error) {
	if radiusKm <= 0 {
		radiusKm = r.DefaultRadiusKm
	}

	// Step 1: snapshot base data. All three must succeed.
	var (
		wg     sync.WaitGroup
		orders []model.Order
		zones  []model.Zone
		staff  []model.Staff
		fe     FetchError
	)
	wg.Add(3)
	go func() { defer wg.Done(); orders, fe.Orders = r.Store.ListOrders(ctx) }()
	go func() { defer wg.Done(); zones, fe.Zones = r.Store.ListZones(ctx) }()
	go func() { defer wg.Done(); staff, fe.Staff = r.Store.ListStaff(ctx) }()
	wg.Wait()
	if fe.Orders != nil || fe.Zones != nil || fe.Staff != nil {
		return model.RecalcSummary{}, nil, &fe
	}

	// Step 2: candidates need a time signal and missing geocode or zone.
	var candidates []model.Order
	for _, o := range orders {
		if (!o.Geocoded || !o.Zoned) && HasTimeSignal(o) {
			candidates = append(candidates, o)
		}
	}

	// Step 3: geocode ungeocoded candidates with bounded fan-out. A
	// per-order failure only drops that order from the rest of the pass.
	patches := map[string]model.OrderPatch{}
	r.geocodeCandidates(ctx, candidates, patches)

	// Steps 4-5: assignment against existing zones, then formation.
	var unzoned []model.Order
	for _, o := range candidates {
		if !o.Zoned && o.Lat != nil && o.Lng != nil {
			unzoned = append(unzoned, o)
		}
	}
	assigned := AssignOrders(unzoned, zones)
	formed := FormZones(assigned.Leftover, radiusKm, ActiveDrivers(staff), 0)

	zoned := true
	for oid, zid := range assigned.OrderZone {
		p := patches[oid]
		p.Zoned = &zoned
		id := zid
		p.ZoneID = &id
		patches[oid] = p
	}
	for oid, zid := range formed.OrderZone {
		p := patches[oid]
		p.Zoned = &zoned
		id := zid
		p.ZoneID = &id
		patches[oid] = p
	}

	// Step 6: persist the change set. Calls are independent; a failure
	// aborts the remaining group without rolling back siblings.
	g, gctx := errgroup.WithContext(ctx)
	for zid, added := range assigned.Added {
		zid, added := zid, added
		var members []string
		for _, z := range zones {
			if z.ID == zid {
				members = append(append([]string(nil), z.OrderIDs...), added...)
				break
			}
		}
		g.Go(func() error {
			if _, err := r.Store.PatchZone(gctx, zid, model.ZonePatch{OrderIDs: members}); err != nil {
				return fmt.Errorf("patch zone %s: %w", zid, err)
			}
			return nil
		})
	}
	for _, z := range formed.Zones {
		z := z
		g.Go(func() error {
			if _, err := r.Store.CreateZone(gctx, z); err != nil {
				return fmt.Errorf("create zone %s: %w", z.ID, err)
			}
			return nil
		})
	}
	for oid, p := range patches {
		oid, p := oid, p
		g.Go(func() error {
			if _, err := r.Store.PatchOrder(gctx, oid, p); err != nil {
				return fmt.Errorf("patch order %s: %w", oid, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.RecalcSummary{}, nil, err
	}

	summary := model.RecalcSummary{
		UpdatedOrders: len(assigned.OrderZone) + len(formed.OrderZone),
		CreatedZones:  len(formed.Zones),
	}
	return summary, formed.Zones, nil
}

// geocodeCandidates resolves coordinates for candidates still missing
// them, mutating the snapshot in place and recording patches. The pass
// joins on every attempt before zoning proceeds.
func (r *Recalculator) geocodeCandidates(ctx context.Context, candidates []model.Order, patches map[string]model.OrderPatch) {
	sem := make(chan struct{}, r.Concurrency)
	results := make([]*geocode.Result, len(candidates))
	var wg sync.WaitGroup
	for i := range candidates {
		if candidates[i].Geocoded || candidates[i].Address == "" {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			res, err := r.Geocoder.Resolve(ctx, candidates[i].Address)
			if err != nil {
				log.Printf("recalc: geocode order %s: %v", candidates[i].ID, err)
				return
			}
			results[i] = &res
		}(i)
	}
	wg.Wait()

	geocoded := true
	for i, res := range results {
		if res == nil {
			continue
		}
		lat, lng := res.Lat, res.Lng
		candidates[i].Lat = &lat
		candidates[i].Lng = &lng
		candidates[i].Geocoded = true
		patches[candidates[i].ID] = model.OrderPatch{Lat: &lat, Lng: &lng, Geocoded: &geocoded}
	}
}
