package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/claude/repsync/internal/api"
	"github.com/claude/repsync/internal/models"
)

// Source records where a mediated response came from.
type Source string

const (
	SourceNetwork Source = "network"
	SourceCache   Source = "cache"
	SourceShell   Source = "shell"
	SourceOffline Source = "offline"
	SourceQueued  Source = "queued"
)

// Resolution is the agent's answer to one mediated request.
type Resolution struct {
	Status      int
	ContentType string
	Body        []byte
	Source      Source
}

const refreshTimeout = 30 * time.Second

// Mediate resolves one outgoing request. navigation marks page loads, which
// fall back to the application shell when nothing else can answer.
func (a *Agent) Mediate(ctx context.Context, method, pathAndQuery string, body []byte, contentType string, navigation bool) *Resolution {
	read := method == http.MethodGet || method == http.MethodHead
	if read && Classify(pathAndQuery) == models.ClassStatic {
		return a.serveStatic(ctx, method, pathAndQuery, navigation)
	}
	if read {
		return a.serveAPIRead(ctx, method, pathAndQuery)
	}
	return a.serveAPIWrite(ctx, method, pathAndQuery, body, contentType)
}

// serveStatic is cache-first: a cached payload is returned immediately and
// refreshed in the background; only a cache miss goes to the network.
func (a *Agent) serveStatic(ctx context.Context, method, url string, navigation bool) *Resolution {
	if cached, err := a.store.CachedResource(ctx, method, url); err == nil {
		go a.refresh(method, url, models.ClassStatic)
		return &Resolution{
			Status:      cached.Status,
			ContentType: cached.ContentType,
			Body:        cached.Payload,
			Source:      SourceCache,
		}
	}

	resp, err := a.api.Forward(ctx, method, url, nil, "")
	if err == nil && resp.OK() {
		a.cacheAsync(method, url, models.ClassStatic, resp)
		return fromNetwork(resp)
	}
	if err == nil {
		// The server answered with an error status; pass it through.
		return fromNetwork(resp)
	}

	if navigation {
		return &Resolution{
			Status:      http.StatusOK,
			ContentType: "text/html; charset=utf-8",
			Body:        a.shellPayload(),
			Source:      SourceShell,
		}
	}
	return a.offline(false)
}

// serveAPIRead is network-first: the cache is consulted only when the
// network call fails at the transport level.
func (a *Agent) serveAPIRead(ctx context.Context, method, url string) *Resolution {
	resp, err := a.api.Forward(ctx, method, url, nil, "")
	if err == nil {
		if resp.OK() {
			a.cacheAsync(method, url, models.ClassAPI, resp)
		}
		return fromNetwork(resp)
	}
	if !api.IsOffline(err) {
		a.log.Error("mediated read failed", "url", url, "error", err)
		return a.offline(false)
	}

	if cached, cerr := a.store.CachedResource(ctx, method, url); cerr == nil {
		return &Resolution{
			Status:      cached.Status,
			ContentType: cached.ContentType,
			Body:        cached.Payload,
			Source:      SourceCache,
		}
	}
	return a.offline(false)
}

// serveAPIWrite attempts the write; a transport failure hands it to the
// mutation queue and acknowledges the caller with a queued receipt. Session
// data is never dropped on a failed write.
func (a *Agent) serveAPIWrite(ctx context.Context, method, url string, body []byte, contentType string) *Resolution {
	resp, err := a.api.Forward(ctx, method, url, body, contentType)
	if err == nil {
		return fromNetwork(resp)
	}
	if !api.IsOffline(err) {
		a.log.Error("mediated write failed", "url", url, "error", err)
		return a.offline(false)
	}

	m, qerr := a.queue.Enqueue(ctx, url, method, body)
	if qerr != nil {
		a.log.Error("enqueue failed", "url", url, "error", qerr)
		return a.offline(false)
	}
	a.log.Info("write queued for replay", "url", url, "mutation", m.ID)

	payload, _ := json.Marshal(models.OfflineResponse{
		Offline:    true,
		Message:    "write queued; it will sync when the connection returns",
		Queued:     true,
		MutationID: m.ID,
	})
	return &Resolution{
		Status:      http.StatusAccepted,
		ContentType: "application/json",
		Body:        payload,
		Source:      SourceQueued,
	}
}

// FetchWorkout loads a workout plan through the mediation layer, so a plan
// fetched before (or cached by a dashboard visit) is still available to
// start a session offline.
func (a *Agent) FetchWorkout(ctx context.Context, id string) (*models.Workout, error) {
	res := a.serveAPIRead(ctx, http.MethodGet, "/api/v1/workouts/"+id)
	if res.Source == SourceOffline || res.Status != http.StatusOK {
		return nil, fmt.Errorf("workout %s unavailable (status %d, source %s)", id, res.Status, res.Source)
	}
	var w models.Workout
	if err := json.Unmarshal(res.Body, &w); err != nil {
		return nil, fmt.Errorf("decoding workout: %w", err)
	}
	return &w, nil
}

// refresh re-fetches a cached entry in the background. Best-effort: errors
// are logged and the stale entry stays.
func (a *Agent) refresh(method, url string, class models.ResourceClass) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	resp, err := a.api.Forward(ctx, method, url, nil, "")
	if err != nil || !resp.OK() {
		return
	}
	if err := a.store.PutCachedResource(ctx, a.toCached(method, url, class, resp)); err != nil {
		a.log.Error("cache refresh failed", "url", url, "error", err)
	}
}

// cacheAsync stores a fresh network response without blocking the reply.
func (a *Agent) cacheAsync(method, url string, class models.ResourceClass, resp *api.Response) {
	entry := a.toCached(method, url, class, resp)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := a.store.PutCachedResource(ctx, entry); err != nil {
			a.log.Error("cache write failed", "url", url, "error", err)
		}
	}()
}

func (a *Agent) toCached(method, url string, class models.ResourceClass, resp *api.Response) models.CachedResource {
	return models.CachedResource{
		Method:      method,
		URL:         url,
		Class:       class,
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Payload:     resp.Body,
		Version:     a.version,
		CachedAt:    time.Now(),
	}
}

// offline synthesizes the structured offline-error payload returned when
// neither network nor cache can answer.
func (a *Agent) offline(cachedAvailable bool) *Resolution {
	payload, _ := json.Marshal(models.OfflineResponse{
		Offline:             true,
		Message:             "you are offline and no cached data is available for this request",
		CachedDataAvailable: cachedAvailable,
	})
	return &Resolution{
		Status:      http.StatusServiceUnavailable,
		ContentType: "application/json",
		Body:        payload,
		Source:      SourceOffline,
	}
}

func fromNetwork(resp *api.Response) *Resolution {
	return &Resolution{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Body:        resp.Body,
		Source:      SourceNetwork,
	}
}
