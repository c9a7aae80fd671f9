package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claude/repsync/internal/models"
)

// TestSendIdempotencyKey verifies replayed mutations carry their ID as the
// Idempotency-Key header.
func TestSendIdempotencyKey(t *testing.T) {
	var gotKey, gotAPIKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAPIKey = r.Header.Get("X-API-Key")
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "secret", time.Second)
	m := models.QueuedMutation{ID: "mut-7", Endpoint: "/api/v1/sets", Method: http.MethodPost, Body: []byte(`{}`)}
	if err := c.Send(context.Background(), m); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotKey != "mut-7" {
		t.Errorf("Idempotency-Key = %q, want mut-7", gotKey)
	}
	if gotAPIKey != "secret" {
		t.Errorf("X-API-Key = %q, want secret", gotAPIKey)
	}
}

// TestSendRejection verifies a non-2xx answer is an error, so the queue
// keeps the mutation.
func TestSendRejection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusUnprocessableEntity)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "", time.Second)
	err := c.Send(context.Background(), models.QueuedMutation{ID: "m1", Endpoint: "/api/v1/sets", Method: http.MethodPost})
	if err == nil {
		t.Fatal("rejected mutation reported success")
	}
	if IsOffline(err) {
		t.Error("server rejection classified as offline")
	}
}

// TestIsOffline verifies transport failures are distinguishable from
// server-produced errors.
func TestIsOffline(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	c := NewClient(ts.URL, "", time.Second)
	_, err := c.Forward(context.Background(), http.MethodGet, "/anything", nil, "")
	if err == nil {
		t.Fatal("call to closed server succeeded")
	}
	if !IsOffline(err) {
		t.Errorf("err = %v, want transport error", err)
	}
}

// TestForwardPassesStatusThrough verifies non-2xx responses are returned,
// not converted to errors.
func TestForwardPassesStatusThrough(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "", time.Second)
	resp, err := c.Forward(context.Background(), http.MethodGet, "/nope", nil, "")
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if resp.Status != http.StatusNotFound || resp.OK() {
		t.Errorf("resp = %d OK=%v, want passed-through 404", resp.Status, resp.OK())
	}
}

// TestHealth verifies only 5xx answers count as unhealthy.
func TestHealth(t *testing.T) {
	status := http.StatusOK
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "", time.Second)
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("healthy probe: %v", err)
	}

	status = http.StatusBadGateway
	if err := c.Health(context.Background()); err == nil {
		t.Error("502 probe reported healthy")
	}
}
