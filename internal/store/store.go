package store

import (
	"context"
	"errors"
	"time"

	"zoneops/internal/model"
)

// Store is the record-store boundary used by the API server and the
// recalculation pass. Backends: in-memory (dev/tests), Postgres, and a
// thin proxy to an external generic record API.
type Store interface {
	// Orders
	ListOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	CreateOrders(ctx context.Context, orders []model.OrderIn) (created int, err error)
	PatchOrder(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error)

	// Zones
	ListZones(ctx context.Context) ([]model.Zone, error)
	GetZone(ctx context.Context, id string) (model.Zone, error)
	CreateZone(ctx context.Context, z model.Zone) (model.Zone, error)
	PatchZone(ctx context.Context, id string, patch model.ZonePatch) (model.Zone, error)

	// Staff
	ListStaff(ctx context.Context) ([]model.Staff, error)
	CreateStaff(ctx context.Context, in model.StaffIn) (model.Staff, error)
	PatchStaff(ctx context.Context, id string, patch model.StaffPatch) (model.Staff, error)

	// Geocode cache. LookupGeocode returns ErrNotFound on a miss;
	// SaveGeocode appends without uniqueness enforcement.
	LookupGeocode(ctx context.Context, address string) (model.GeocodeEntry, error)
	SaveGeocode(ctx context.Context, entry model.GeocodeEntry) error

	// Webhook subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook delivery queue
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error
	ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]map[string]any, error)
	RetryWebhookDelivery(ctx context.Context, id string) error
}

var ErrNotFound = errors.New("not found")
