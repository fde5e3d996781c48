package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"zoneops/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL or
// RECORD_STORE_URL is set.
type Memory struct {
	mu       sync.Mutex
	orders   map[string]model.Order
	orderIDs []string // insertion order
	zones    map[string]model.Zone
	zoneIDs  []string
	staff    map[string]model.Staff
	staffIDs []string
	geocache []model.GeocodeEntry
	subs     []model.Subscription
	// Webhook queue state
	deliveries  map[string]*memDelivery
	deliveryIDs []string
}

func NewMemory() *Memory {
	return &Memory{
		orders:     map[string]model.Order{},
		zones:      map[string]model.Zone{},
		staff:      map[string]model.Staff{},
		deliveries: map[string]*memDelivery{},
	}
}

// memDelivery augments WebhookDelivery with scheduling state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	DeliveredAt   *time.Time
}

func (m *Memory) ListOrders(ctx context.Context) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Order, 0, len(m.orderIDs))
	for _, id := range m.orderIDs {
		out = append(out, m.orders[id])
	}
	return out, nil
}

func (m *Memory) GetOrder(ctx context.Context, id string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	return o, nil
}

func (m *Memory) CreateOrders(ctx context.Context, orders []model.OrderIn) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := 0
	for _, in := range orders {
		id := uuid.New().String()
		o := model.Order{
			ID:            id,
			Address:       in.Address,
			Lat:           in.Lat,
			Lng:           in.Lng,
			DeliveryStart: in.DeliveryStart,
			DeliveryEnd:   in.DeliveryEnd,
			TimeSlot:      in.TimeSlot,
			Geocoded:      in.Lat != nil && in.Lng != nil,
		}
		m.orders[id] = o
		m.orderIDs = append(m.orderIDs, id)
		created++
	}
	return created, nil
}

func (m *Memory) PatchOrder(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	if patch.Lat != nil {
		o.Lat = patch.Lat
	}
	if patch.Lng != nil {
		o.Lng = patch.Lng
	}
	if patch.Geocoded != nil {
		o.Geocoded = *patch.Geocoded
	}
	if patch.Zoned != nil {
		o.Zoned = *patch.Zoned
	}
	if patch.ZoneID != nil {
		o.ZoneID = *patch.ZoneID
	}
	m.orders[id] = o
	return o, nil
}

func (m *Memory) ListZones(ctx context.Context) ([]model.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Zone, 0, len(m.zoneIDs))
	for _, id := range m.zoneIDs {
		out = append(out, m.zones[id])
	}
	return out, nil
}

func (m *Memory) GetZone(ctx context.Context, id string) (model.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zones[id]
	if !ok {
		return model.Zone{}, ErrNotFound
	}
	return z, nil
}

func (m *Memory) CreateZone(ctx context.Context, z model.Zone) (model.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if z.ID == "" {
		z.ID = uuid.New().String()
	}
	m.zones[z.ID] = z
	m.zoneIDs = append(m.zoneIDs, z.ID)
	return z, nil
}

func (m *Memory) PatchZone(ctx context.Context, id string, patch model.ZonePatch) (model.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zones[id]
	if !ok {
		return model.Zone{}, ErrNotFound
	}
	if patch.OrderIDs != nil {
		z.OrderIDs = patch.OrderIDs
	}
	if patch.DriverID != nil {
		z.DriverID = *patch.DriverID
	}
	if patch.DriverName != nil {
		z.DriverName = *patch.DriverName
	}
	m.zones[id] = z
	return z, nil
}

func (m *Memory) ListStaff(ctx context.Context) ([]model.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Staff, 0, len(m.staffIDs))
	for _, id := range m.staffIDs {
		out = append(out, m.staff[id])
	}
	return out, nil
}

func (m *Memory) CreateStaff(ctx context.Context, in model.StaffIn) (model.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := model.Staff{ID: uuid.New().String(), Name: in.Name, Role: in.Role, Status: in.Status}
	if st.Status == "" {
		st.Status = model.StatusActive
	}
	m.staff[st.ID] = st
	m.staffIDs = append(m.staffIDs, st.ID)
	return st, nil
}

func (m *Memory) PatchStaff(ctx context.Context, id string, patch model.StaffPatch) (model.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.staff[id]
	if !ok {
		return model.Staff{}, ErrNotFound
	}
	if patch.Name != "" {
		st.Name = patch.Name
	}
	if patch.Role != "" {
		st.Role = patch.Role
	}
	if patch.Status != "" {
		st.Status = patch.Status
	}
	m.staff[id] = st
	return st, nil
}

// LookupGeocode returns the first entry with an exact address match.
func (m *Memory) LookupGeocode(ctx context.Context, address string) (model.GeocodeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.geocache {
		if e.Address == address {
			return e, nil
		}
	}
	return model.GeocodeEntry{}, ErrNotFound
}

func (m *Memory) SaveGeocode(ctx context.Context, entry model.GeocodeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.CreatedAt == "" {
		entry.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	m.geocache = append(m.geocache, entry)
	return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs = append(m.subs, s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Subscription(nil), m.subs...), nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		if s.ID != id {
			out = append(out, s)
		}
	}
	m.subs = out
	return nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{
		WebhookDelivery: WebhookDelivery{ID: id, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"},
		NextAttemptAt:   time.Now(),
	}
	m.deliveries[id] = d
	m.deliveryIDs = append(m.deliveryIDs, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.deliveryIDs {
		d := m.deliveries[id]
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return nil
	}
	d.Attempts++
	d.ResponseCode = responseCode
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
		return nil
	}
	d.Status = "retry"
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[id]; ok {
		d.Status = "failed"
		d.LastError = lastError
		d.ResponseCode = responseCode
	}
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []map[string]any{}
	for _, id := range m.deliveryIDs {
		d := m.deliveries[id]
		if status != "" && d.Status != status {
			continue
		}
		item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
		if d.LastError != "" {
			item["lastError"] = d.LastError
		}
		out = append(out, item)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[id]; ok {
		d.Status = "pending"
		d.NextAttemptAt = time.Now()
	}
	return nil
}
