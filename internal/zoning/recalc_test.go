package zoning

import (
	"context"
	"errors"
	"sync"
	"testing"

	"zoneops/internal/geocode"
	"zoneops/internal/model"
	"zoneops/internal/store"
)

// stubResolver resolves addresses from a fixed table and counts calls.
type stubResolver struct {
	mu      sync.Mutex
	table   map[string]geocode.Result
	calls   map[string]int
	block   chan struct{} // when set, Resolve waits until closed
	started chan struct{} // closed on first Resolve
	once    sync.Once
}

func (s *stubResolver) Resolve(ctx context.Context, address string) (geocode.Result, error) {
	if s.started != nil {
		s.once.Do(func() { close(s.started) })
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return geocode.Result{}, ctx.Err()
		}
	}
	s.mu.Lock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[address]++
	res, ok := s.table[address]
	s.mu.Unlock()
	if !ok {
		return geocode.Result{}, &geocode.FailedError{Address: address}
	}
	return res, nil
}

func seedOrders(t *testing.T, m *store.Memory, ins []model.OrderIn) map[string]model.Order {
	t.Helper()
	if _, err := m.CreateOrders(context.Background(), ins); err != nil {
		t.Fatalf("seed orders: %v", err)
	}
	orders, err := m.ListOrders(context.Background())
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	byAddr := map[string]model.Order{}
	for _, o := range orders {
		byAddr[o.Address] = o
	}
	return byAddr
}

func TestRecalculator_EndToEnd(t *testing.T) {
	m := store.NewMemory()
	seedOrders(t, m, []model.OrderIn{
		{Address: "Calle Falsa 1", TimeSlot: "morning"},
		{Address: "Calle Falsa 2", TimeSlot: "morning"},
	})
	resolver := &stubResolver{table: map[string]geocode.Result{
		"Calle Falsa 1": {Lat: 0, Lng: 0, Provider: "nominatim"},
		"Calle Falsa 2": {Lat: 0, Lng: 0.0045, Provider: "nominatim"}, // ~0.5 km
	}}
	r := NewRecalculator(m, resolver, 2, 4)

	summary, created, err := r.Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.UpdatedOrders != 2 || summary.CreatedZones != 1 {
		t.Fatalf("summary = %+v, want 2 updated / 1 created", summary)
	}
	if len(created) != 1 || len(created[0].OrderIDs) != 2 {
		t.Fatalf("created zones = %+v", created)
	}

	orders, _ := m.ListOrders(context.Background())
	for _, o := range orders {
		if !o.Geocoded || !o.Zoned || o.ZoneID != created[0].ID {
			t.Fatalf("order %s not fully patched: %+v", o.Address, o)
		}
	}
	zones, _ := m.ListZones(context.Background())
	if len(zones) != 1 {
		t.Fatalf("expected persisted zone, got %d", len(zones))
	}

	// Re-running with nothing new must be a no-op.
	summary, created, err = r.Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.UpdatedOrders != 0 || summary.CreatedZones != 0 || len(created) != 0 {
		t.Fatalf("second pass not idempotent: %+v", summary)
	}
}

func TestRecalculator_AssignsToExistingZone(t *testing.T) {
	m := store.NewMemory()
	if _, err := m.CreateZone(context.Background(), model.Zone{
		ID: "z-exist", CenterLat: 0, CenterLng: 0, RadiusKm: 2,
		Window: "09:00-11:00", OrderIDs: []string{"old-order"},
	}); err != nil {
		t.Fatalf("seed zone: %v", err)
	}
	seedOrders(t, m, []model.OrderIn{{Address: "Calle Falsa 3", TimeSlot: "morning"}})
	resolver := &stubResolver{table: map[string]geocode.Result{
		"Calle Falsa 3": {Lat: 0, Lng: 0.0045, Provider: "nominatim"},
	}}
	r := NewRecalculator(m, resolver, 2, 4)

	summary, created, err := r.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.UpdatedOrders != 1 || summary.CreatedZones != 0 || len(created) != 0 {
		t.Fatalf("summary = %+v, want 1 updated / 0 created", summary)
	}
	z, err := m.GetZone(context.Background(), "z-exist")
	if err != nil {
		t.Fatalf("get zone: %v", err)
	}
	if len(z.OrderIDs) != 2 || z.OrderIDs[0] != "old-order" {
		t.Fatalf("zone membership = %v", z.OrderIDs)
	}
}

func TestRecalculator_GeocodeFailureSkipsOrder(t *testing.T) {
	m := store.NewMemory()
	byAddr := seedOrders(t, m, []model.OrderIn{
		{Address: "resolves", TimeSlot: "morning"},
		{Address: "does not", TimeSlot: "morning"},
	})
	resolver := &stubResolver{table: map[string]geocode.Result{
		"resolves": {Lat: 10, Lng: 10, Provider: "nominatim"},
	}}
	r := NewRecalculator(m, resolver, 2, 4)

	summary, _, err := r.Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("a per-order geocode failure must not fail the pass: %v", err)
	}
	if summary.UpdatedOrders != 1 || summary.CreatedZones != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	skipped, _ := m.GetOrder(context.Background(), byAddr["does not"].ID)
	if skipped.Geocoded || skipped.Zoned {
		t.Fatalf("failed order must stay untouched: %+v", skipped)
	}
}

func TestRecalculator_SingleFlight(t *testing.T) {
	m := store.NewMemory()
	seedOrders(t, m, []model.OrderIn{{Address: "slow", TimeSlot: "morning"}})
	resolver := &stubResolver{
		table:   map[string]geocode.Result{"slow": {Lat: 1, Lng: 1, Provider: "nominatim"}},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	r := NewRecalculator(m, resolver, 2, 1)

	done := make(chan error, 1)
	go func() {
		_, _, err := r.Run(context.Background(), 2)
		done <- err
	}()
	<-resolver.started

	if _, _, err := r.Run(context.Background(), 2); !errors.Is(err, ErrPassInFlight) {
		t.Fatalf("overlapping run: err = %v, want ErrPassInFlight", err)
	}
	close(resolver.block)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Token released: a fresh run is admitted again.
	if _, _, err := r.Run(context.Background(), 2); err != nil {
		t.Fatalf("run after release: %v", err)
	}
}

// failingStore makes selected base fetches fail.
type failingStore struct {
	store.Store
	ordersErr error
	staffErr  error
}

func (f *failingStore) ListOrders(ctx context.Context) ([]model.Order, error) {
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	return f.Store.ListOrders(ctx)
}

func (f *failingStore) ListStaff(ctx context.Context) ([]model.Staff, error) {
	if f.staffErr != nil {
		return nil, f.staffErr
	}
	return f.Store.ListStaff(ctx)
}

func TestRecalculator_FetchErrorAggregates(t *testing.T) {
	fs := &failingStore{
		Store:     store.NewMemory(),
		ordersErr: errors.New("orders down"),
		staffErr:  errors.New("staff down"),
	}
	r := NewRecalculator(fs, &stubResolver{}, 2, 4)

	_, _, err := r.Run(context.Background(), 2)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if fe.Orders == nil || fe.Staff == nil || fe.Zones != nil {
		t.Fatalf("aggregate = %+v", fe)
	}
}

func TestRecalculator_GeocodedButUnzonedSkipsResolver(t *testing.T) {
	m := store.NewMemory()
	lat, lng := 0.0, 0.0
	seedOrders(t, m, []model.OrderIn{
		{Address: "already located", Lat: &lat, Lng: &lng, TimeSlot: "morning"},
	})
	resolver := &stubResolver{}
	r := NewRecalculator(m, resolver, 2, 4)

	summary, _, err := r.Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.UpdatedOrders != 1 || summary.CreatedZones != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(resolver.calls) != 0 {
		t.Fatalf("resolver must not be called for geocoded orders: %v", resolver.calls)
	}
}
