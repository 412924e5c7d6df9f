package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kapu/ledger-arcade/pkg/ledgerdto"
)

func TestSessionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := NewClient(srv.URL)
	if _, err := c.Session(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing session error = %v", err)
	}
}

func TestCreateSessionRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(ledgerdto.SessionRecord{ID: "s1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(3))
	rec, err := c.CreateSession(context.Background(), ledgerdto.CreateSessionRequest{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if rec.ID != "s1" || calls.Load() != 3 {
		t.Fatalf("rec=%+v calls=%d", rec, calls.Load())
	}
}

func TestCreateSessionGivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(2))
	if _, err := c.CreateSession(context.Background(), ledgerdto.CreateSessionRequest{}); err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestSubmitActionDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(5))
	err := c.SubmitAction(context.Background(), "s1", ledgerdto.SubmitActionRequest{})
	if err == nil {
		t.Fatalf("expected error")
	}
	// submissions are fire-and-forget: retrying could double-apply
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(5))
	if _, err := c.CreateSession(context.Background(), ledgerdto.CreateSessionRequest{}); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx retried: calls = %d", calls.Load())
	}
}

func TestHeaderProvider(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("X-Player-Token"))
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHeaderProvider(func() map[string]string {
		return map[string]string{"X-Player-Token": "tok123", "Empty": ""}
	}))
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
	if got.Load() != "tok123" {
		t.Fatalf("header = %v", got.Load())
	}
}

func TestContextDeadlineCutsRequestShort(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, WithTimeout(10*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := c.Health(ctx)
	if err == nil {
		t.Fatalf("expected deadline error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("request outlived the context deadline")
	}
}
