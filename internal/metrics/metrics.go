package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// GeocodeRequests counts geocode resolutions by provider and outcome
	GeocodeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "geocode_requests_total", Help: "Geocode resolutions by provider and outcome."},
		[]string{"provider", "outcome"},
	)
	// RecalcPasses counts zone recalculation passes by result
	RecalcPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zone_recalc_passes_total", Help: "Zone recalculation passes by result."},
		[]string{"result"},
	)
	// RecalcDuration tracks full recalculation pass durations in seconds
	RecalcDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "zone_recalc_duration_seconds", Help: "Zone recalculation pass duration in seconds.", Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}},
	)
	// ZonesCreated counts zones created by recalculation passes
	ZonesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "zones_created_total", Help: "Zones created by recalculation passes."},
	)
	// OrdersAssigned counts order-to-zone assignments
	OrdersAssigned = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "orders_assigned_total", Help: "Orders assigned to zones."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(GeocodeRequests)
		Registry.MustRegister(RecalcPasses)
		Registry.MustRegister(RecalcDuration)
		Registry.MustRegister(ZonesCreated)
		Registry.MustRegister(OrdersAssigned)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
