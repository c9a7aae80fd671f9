package models

import "time"

// ResourceClass determines the serving strategy for a mediated request.
type ResourceClass string

const (
	// ClassStatic resources are served cache-first and refreshed in the
	// background (bundled assets, manifests, the application shell).
	ClassStatic ResourceClass = "static"
	// ClassAPI resources are served network-first with the cache as the
	// offline fallback.
	ClassAPI ResourceClass = "api"
)

// CachedResource is one cached response, keyed by (method, URL). At most one
// entry exists per key; a newer successful network response overwrites it.
type CachedResource struct {
	Method      string        `json:"method"`
	URL         string        `json:"url"`
	Class       ResourceClass `json:"class"`
	Status      int           `json:"status"`
	ContentType string        `json:"content_type"`
	Payload     []byte        `json:"-"`
	Version     string        `json:"version"`
	CachedAt    time.Time     `json:"cached_at"`
}

// MutationStatus tracks a queued mutation through its lifecycle.
type MutationStatus string

const (
	// MutationPending entries are replayed FIFO on the next trigger.
	MutationPending MutationStatus = "pending"
	// MutationNeedsAttention entries exhausted the retry ceiling and wait
	// for an explicit user retry or discard.
	MutationNeedsAttention MutationStatus = "needs_attention"
)

// QueuedMutation is a write that could not reach the server yet. Its ID is
// sent as the Idempotency-Key header on every replay so the server can
// deduplicate retried writes.
type QueuedMutation struct {
	Seq       int64          `json:"seq"`
	ID        string         `json:"id"`
	Endpoint  string         `json:"endpoint"`
	Method    string         `json:"method"`
	Body      []byte         `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	Attempts  int            `json:"attempts"`
	Status    MutationStatus `json:"status"`
	LastError string         `json:"last_error,omitempty"`
}

// OfflineResponse is synthesized in place of a real response when both the
// network and the cache fail for an API-class request, or to acknowledge a
// write that was queued for later replay. Field names follow the UI contract.
type OfflineResponse struct {
	Offline             bool   `json:"offline"`
	Message             string `json:"message"`
	CachedDataAvailable bool   `json:"cachedDataAvailable"`
	Queued              bool   `json:"queued,omitempty"`
	MutationID          string `json:"mutationId,omitempty"`
}
