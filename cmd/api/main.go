package main

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zoneops/internal/api"
	"zoneops/internal/config"
	"zoneops/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	srvDeps, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	metrics.RegisterDefault()

	mux := http.NewServeMux()

	// Orders
	mux.HandleFunc("/v1/orders", srvDeps.OrdersHandler)
	mux.HandleFunc("/v1/orders/", srvDeps.OrderByIDHandler)

	// Zones
	mux.HandleFunc("/v1/zones", srvDeps.ZonesHandler)
	mux.HandleFunc("/v1/zones/", srvDeps.ZoneSubtreeHandler) // includes /recalculate, /events/stream

	// Staff
	mux.HandleFunc("/v1/staff", srvDeps.StaffHandler)
	mux.HandleFunc("/v1/staff/", srvDeps.StaffByIDHandler)

	// Webhook subscriptions
	mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

	// Dispatch board WebSocket feed
	mux.HandleFunc("/v1/board/ws", srvDeps.BoardWSHandler)

	// Admin
	mux.HandleFunc("/v1/admin/webhook-deliveries", srvDeps.WebhookDeliveriesHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries/", srvDeps.WebhookDeliveryRetryHandler)

	// Health, version, metrics
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
	mux.HandleFunc("/version", srvDeps.VersionHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := cfg.ListenAddr()

	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(metricsMiddleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("API listening on %s", addr)
	// Start webhook worker
	if srvDeps.Pub != nil {
		worker := srvDeps.NewWebhookWorker()
		worker.Start()
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrade through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		status := fmt.Sprintf("%d", rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
	})
}
