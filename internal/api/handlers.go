package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"zoneops/internal/buildinfo"
	"zoneops/internal/model"
	"zoneops/internal/store"
	"zoneops/internal/webhooks"
	"zoneops/internal/zoning"
)

// RecalculateHandler handles POST /v1/zones/recalculate
func (s *Server) RecalculateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !(p.IsAdmin() || p.Role == "dispatcher") {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var req model.RecalcRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
	}
	if err := validateRecalcRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid recalculation request", err.Error(), r.URL.Path)
		return
	}

	summary, created, err := s.Recalc.Run(r.Context(), req.RadiusKm)
	if err != nil {
		if errors.Is(err, zoning.ErrPassInFlight) {
			writeProblem(w, http.StatusConflict, "Recálculo ya en curso", "a recalculation pass is already in flight", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "No se pudieron recalcular las zonas", err.Error(), r.URL.Path)
		return
	}

	for _, z := range created {
		evt := SSEEvent{Type: webhooks.EventZoneCreated, Data: map[string]any{
			"zoneId": z.ID, "window": z.Window, "orderCount": len(z.OrderIDs), "driverId": z.DriverID,
		}}
		s.Broker.Publish(TopicZones, evt)
		s.Pub.Emit(r.Context(), webhooks.EventZoneCreated, z)
	}
	done := SSEEvent{Type: webhooks.EventRecalcCompleted, Data: map[string]any{
		"updatedOrders": summary.UpdatedOrders, "createdZones": summary.CreatedZones,
	}}
	s.Broker.Publish(TopicZones, done)
	s.Pub.Emit(r.Context(), webhooks.EventRecalcCompleted, summary)

	writeJSON(w, http.StatusOK, summary)
}

// OrdersHandler handles POST/GET /v1/orders
func (s *Server) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Orders []model.OrderIn `json:"orders"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if len(req.Orders) == 0 {
			writeProblem(w, http.StatusBadRequest, "Missing orders", "orders must not be empty", r.URL.Path)
			return
		}
		for i := range req.Orders {
			if err := validateOrderIn(&req.Orders[i]); err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid order", fmt.Sprintf("orders[%d]: %v", i, err), r.URL.Path)
				return
			}
		}
		created, err := s.Store.CreateOrders(r.Context(), req.Orders)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create orders failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"created": created})
	case http.MethodGet:
		items, err := s.Store.ListOrders(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List orders failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// OrderByIDHandler handles GET/PATCH /v1/orders/{id}
func (s *Server) OrderByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/orders/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		o, err := s.Store.GetOrder(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, r, err, "Get order failed")
			return
		}
		writeJSON(w, http.StatusOK, o)
	case http.MethodPatch:
		var patch model.OrderPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		o, err := s.Store.PatchOrder(r.Context(), id, patch)
		if err != nil {
			s.writeStoreError(w, r, err, "Patch order failed")
			return
		}
		writeJSON(w, http.StatusOK, o)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ZonesHandler handles GET /v1/zones
func (s *Server) ZonesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := s.Store.ListZones(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List zones failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ZoneSubtreeHandler dispatches /v1/zones/recalculate, /v1/zones/events/stream
// and /v1/zones/{id}.
func (s *Server) ZoneSubtreeHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/zones/")
	switch rest {
	case "recalculate":
		s.RecalculateHandler(w, r)
		return
	case "events/stream":
		s.ZoneEventsStreamHandler(w, r)
		return
	}
	if rest == "" || strings.Contains(rest, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		z, err := s.Store.GetZone(r.Context(), rest)
		if err != nil {
			s.writeStoreError(w, r, err, "Get zone failed")
			return
		}
		writeJSON(w, http.StatusOK, z)
	case http.MethodPatch:
		var patch model.ZonePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		z, err := s.Store.PatchZone(r.Context(), rest, patch)
		if err != nil {
			s.writeStoreError(w, r, err, "Patch zone failed")
			return
		}
		writeJSON(w, http.StatusOK, z)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// StaffHandler handles POST/GET /v1/staff
func (s *Server) StaffHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var in model.StaffIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateStaffIn(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid staff", err.Error(), r.URL.Path)
			return
		}
		st, err := s.Store.CreateStaff(r.Context(), in)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create staff failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, st)
	case http.MethodGet:
		items, err := s.Store.ListStaff(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List staff failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// StaffByIDHandler handles PATCH /v1/staff/{id}
func (s *Server) StaffByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/staff/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var patch model.StaffPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	st, err := s.Store.PatchStaff(r.Context(), id, patch)
	if err != nil {
		s.writeStoreError(w, r, err, "Patch staff failed")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ZoneEventsStreamHandler streams zone-board events over SSE.
func (s *Server) ZoneEventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.Broker.Subscribe(TopicZones)
	defer s.Broker.Unsubscribe(TopicZones, ch)
	keepalive := time.NewTicker(20 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()
		}
	}
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		items, err := s.Store.ListSubscriptions(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err, "Delete subscription failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := r.URL.Query().Get("status")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, err := s.Store.ListWebhookDeliveries(r.Context(), status, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// WebhookDeliveryRetryHandler handles POST /v1/admin/webhook-deliveries/{id}/retry
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/retry") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
	if err := s.Store.RetryWebhookDelivery(r.Context(), id); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Retry delivery failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Info())
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using the Postgres store
	type pinger interface {
		Ping(ctx context.Context) error
	}
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error, title string) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, title, err.Error(), r.URL.Path)
}
