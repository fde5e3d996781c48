package model

// Core domain types for the delivery back office.

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Order is a delivery order as stored in the record store.
// Lat/Lng are nil until the order has been geocoded.
type Order struct {
	ID            string   `json:"id"`
	Address       string   `json:"address"`
	Lat           *float64 `json:"lat,omitempty"`
	Lng           *float64 `json:"lng,omitempty"`
	DeliveryStart string   `json:"deliveryStart,omitempty"` // "HH:MM"
	DeliveryEnd   string   `json:"deliveryEnd,omitempty"`   // "HH:MM"
	TimeSlot      string   `json:"timeSlot,omitempty"`      // morning, afternoon, evening
	Geocoded      bool     `json:"geocoded"`
	Zoned         bool     `json:"zoned"`
	ZoneID        string   `json:"zoneId,omitempty"`
}

// OrderIn is the intake payload for new orders.
type OrderIn struct {
	Address       string   `json:"address"`
	Lat           *float64 `json:"lat,omitempty"`
	Lng           *float64 `json:"lng,omitempty"`
	DeliveryStart string   `json:"deliveryStart,omitempty"`
	DeliveryEnd   string   `json:"deliveryEnd,omitempty"`
	TimeSlot      string   `json:"timeSlot,omitempty"`
}

// OrderPatch carries the fields a recalculation pass may update.
// Pointer fields distinguish "leave as is" from "set".
type OrderPatch struct {
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	Geocoded *bool    `json:"geocoded,omitempty"`
	Zoned    *bool    `json:"zoned,omitempty"`
	ZoneID   *string  `json:"zoneId,omitempty"`
}

// Zone groups orders sharing a time window around a seed coordinate.
// Center is the seed order's coordinate, not a centroid; RadiusKm is
// fixed at creation and not recomputed as members are added.
type Zone struct {
	ID         string   `json:"id"`
	CenterLat  float64  `json:"centerLat"`
	CenterLng  float64  `json:"centerLng"`
	RadiusKm   float64  `json:"radiusKm"`
	Window     string   `json:"window"` // e.g. "09:00-11:00"
	OrderIDs   []string `json:"orderIds"`
	DriverID   string   `json:"driverId,omitempty"`
	DriverName string   `json:"driverName,omitempty"`
}

// ZonePatch updates a zone's member list or driver assignment.
type ZonePatch struct {
	OrderIDs   []string `json:"orderIds,omitempty"`
	DriverID   *string  `json:"driverId,omitempty"`
	DriverName *string  `json:"driverName,omitempty"`
}

// Staff roles and statuses used by the round-robin roster.
const (
	RoleDriver     = "driver"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Staff is an operations employee; active drivers participate in the
// zone rotation.
type Staff struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

// StaffIn is the intake payload for new staff.
type StaffIn struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Status string `json:"status,omitempty"`
}

// StaffPatch updates name, role or status.
type StaffPatch struct {
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	Status string `json:"status,omitempty"`
}

// GeocodeEntry memoizes one address resolution. Entries are append-only
// and never refreshed; lookups return the first match.
type GeocodeEntry struct {
	Address   string  `json:"address"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Provider  string  `json:"provider"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

// RecalcRequest is the body of POST /v1/zones/recalculate.
type RecalcRequest struct {
	RadiusKm float64 `json:"radiusKm,omitempty"`
}

// RecalcSummary is the success response of a recalculation pass.
type RecalcSummary struct {
	UpdatedOrders int `json:"updatedOrders"`
	CreatedZones  int `json:"createdZones"`
}

// SubscriptionRequest registers a webhook endpoint for zone events.
type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

// Subscription is a registered webhook endpoint.
type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
