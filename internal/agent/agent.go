// Package agent is the network mediation layer: every request the UI makes
// passes through it, and it decides whether the answer comes from the
// network, the cache, or a synthesized offline response. Network errors
// never propagate past this package.
package agent

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	repsync "github.com/claude/repsync"
	"github.com/claude/repsync/internal/api"
	"github.com/claude/repsync/internal/models"
	"github.com/claude/repsync/internal/store"
)

// State is the agent lifecycle: installing -> activated -> serving.
type State string

const (
	StateInstalling State = "installing"
	StateActivated  State = "activated"
	StateServing    State = "serving"
)

// Enqueuer hands failed writes to the mutation queue. Satisfied by
// *queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, endpoint, method string, body []byte) (models.QueuedMutation, error)
}

// Agent mediates between the UI, the cache, and the remote API.
type Agent struct {
	store   *store.Store
	api     *api.Client
	queue   Enqueuer
	version string
	log     *slog.Logger

	mu    sync.RWMutex
	state State
	shell []byte
}

// New creates an Agent in the installing state.
func New(st *store.Store, client *api.Client, q Enqueuer, cacheVersion string, log *slog.Logger) *Agent {
	return &Agent{
		store:   st,
		api:     client,
		queue:   q,
		version: cacheVersion,
		log:     log,
		state:   StateInstalling,
	}
}

// State returns the current lifecycle state.
func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Install warms the cache with the embedded application shell and bundled
// assets so a first launch with no connectivity still renders.
func (a *Agent) Install(ctx context.Context) error {
	shell, err := fs.ReadFile(repsync.WebFS, "web/shell.html")
	if err != nil {
		return fmt.Errorf("reading embedded shell: %w", err)
	}
	manifest, err := fs.ReadFile(repsync.WebFS, "web/manifest.json")
	if err != nil {
		return fmt.Errorf("reading embedded manifest: %w", err)
	}

	a.mu.Lock()
	a.shell = shell
	a.mu.Unlock()

	now := time.Now()
	warm := []models.CachedResource{
		{Method: http.MethodGet, URL: "/shell", Class: models.ClassStatic,
			Status: http.StatusOK, ContentType: "text/html; charset=utf-8",
			Payload: shell, Version: a.version, CachedAt: now},
		{Method: http.MethodGet, URL: "/manifest.json", Class: models.ClassStatic,
			Status: http.StatusOK, ContentType: "application/json",
			Payload: manifest, Version: a.version, CachedAt: now},
	}
	for _, r := range warm {
		if err := a.store.PutCachedResource(ctx, r); err != nil {
			return fmt.Errorf("warming cache: %w", err)
		}
	}

	a.log.Info("agent installed", "version", a.version)
	return nil
}

// Activate purges cache entries left over from a previous version and marks
// the agent live, so every subsequent request is mediated.
func (a *Agent) Activate(ctx context.Context) error {
	purged, err := a.store.PurgeStaleCache(ctx, a.version)
	if err != nil {
		return fmt.Errorf("activating agent: %w", err)
	}
	if purged > 0 {
		a.log.Info("purged stale cache entries", "count", purged, "version", a.version)
	}

	a.mu.Lock()
	a.state = StateActivated
	a.mu.Unlock()
	return nil
}

// Serve marks the steady serving state. Called once the listener is up.
func (a *Agent) Serve() {
	a.mu.Lock()
	a.state = StateServing
	a.mu.Unlock()
	a.log.Info("agent serving")
}

func (a *Agent) shellPayload() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.shell
}
