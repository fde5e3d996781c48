package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"zoneops/internal/model"
	"zoneops/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
	fails []FailRec
}
type MarkRec struct {
	ID      string
	Success bool
	Code    int
	LastErr string
}
type FailRec struct {
	ID      string
	Code    int
	LastErr string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	r.mu.Lock()
	r.fails = append(r.fails, FailRec{ID: id, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode)
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotType = r.Header.Get(HeaderEventType)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	body := []byte(`{"id":"evt1"}`)
	id, err := rs.Memory.EnqueueWebhook(context.Background(), "", EventZoneCreated, srv.URL, "secret", body)
	if err != nil || id == "" {
		t.Fatalf("enqueue failed: %v", err)
	}

	w.processOnce()

	if gotType != EventZoneCreated {
		t.Fatalf("missing event type header: %q", gotType)
	}
	if !VerifyHMAC("secret", gotBody, gotSig) {
		t.Fatalf("signature does not verify: sig=%q body=%q", gotSig, gotBody)
	}
	if len(rs.marks) == 0 || !rs.marks[0].Success {
		t.Fatalf("expected mark success, got: %+v", rs.marks)
	}
}

func TestWorkerProcessOnce_ExhaustedAttemptsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 1}
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "", EventRecalcCompleted, srv.URL, "", []byte(`{}`))
	w.processOnce()
	if len(rs.fails) == 0 {
		t.Fatalf("expected fail recorded")
	}
	if len(rs.marks) != 0 {
		t.Fatalf("terminal failure must not also mark a retry: %+v", rs.marks)
	}
}

func TestPublisherEmitEnqueuesPerSubscription(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "http://a", Events: []string{EventZoneCreated}})
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "http://b", Events: []string{EventZoneCreated, EventRecalcCompleted}})
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "http://c", Events: []string{"unrelated.event"}})

	NewPublisher(m).Emit(ctx, EventZoneCreated, map[string]any{"zoneId": "z1"})

	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	if err != nil {
		t.Fatalf("fetch due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(due))
	}
	for _, d := range due {
		if d.EventType != EventZoneCreated {
			t.Fatalf("delivery event = %q", d.EventType)
		}
	}
}

func TestNextBackoffGrowsAndCaps(t *testing.T) {
	if nextBackoff(0) != time.Second {
		t.Fatalf("attempt 0: %v", nextBackoff(0))
	}
	if nextBackoff(3) != 8*time.Second {
		t.Fatalf("attempt 3: %v", nextBackoff(3))
	}
	if nextBackoff(11) != 2048*time.Second {
		t.Fatalf("attempt 11: %v", nextBackoff(11))
	}
	if nextBackoff(12) != time.Hour {
		t.Fatalf("attempt 12 must cap at an hour: %v", nextBackoff(12))
	}
	if nextBackoff(50) != time.Hour {
		t.Fatalf("large attempt must cap at an hour: %v", nextBackoff(50))
	}
}
