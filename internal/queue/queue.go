// Package queue is the durable mutation queue: writes that could not reach
// the server are appended here and replayed in FIFO order once connectivity
// returns. A mutation is removed only after a server acknowledgement.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repsync/internal/models"
	"github.com/claude/repsync/internal/store"
)

// Sender performs one mutation's network call. Satisfied by *api.Client.
type Sender interface {
	Send(ctx context.Context, m models.QueuedMutation) error
}

// Queue wraps the durable log with replay logic.
type Queue struct {
	store       *store.Store
	sender      Sender
	maxAttempts int
	log         *slog.Logger

	mu      sync.Mutex
	running bool
	again   bool
}

// New creates a Queue. maxAttempts is the retry ceiling: a mutation failing
// that many times is parked as needs_attention instead of retried forever.
func New(st *store.Store, sender Sender, maxAttempts int, log *slog.Logger) *Queue {
	return &Queue{
		store:       st,
		sender:      sender,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// Enqueue appends a write to the durable log with a fresh idempotency key.
func (q *Queue) Enqueue(ctx context.Context, endpoint, method string, body []byte) (models.QueuedMutation, error) {
	return q.EnqueueWithID(ctx, uuid.NewString(), endpoint, method, body)
}

// EnqueueWithID appends a write under a caller-chosen idempotency key, so a
// write that already went out once (and may have landed) replays under the
// same key.
func (q *Queue) EnqueueWithID(ctx context.Context, id, endpoint, method string, body []byte) (models.QueuedMutation, error) {
	m := models.QueuedMutation{
		ID:        id,
		Endpoint:  endpoint,
		Method:    method,
		Body:      body,
		CreatedAt: time.Now(),
		Status:    models.MutationPending,
	}
	if err := q.store.AppendMutation(ctx, m); err != nil {
		return models.QueuedMutation{}, err
	}
	return m, nil
}

// Replay walks pending mutations strictly FIFO, removing each after a server
// acknowledgement and stopping the pass at the first failure so a later
// mutation is never applied before an earlier one. Concurrent triggers are
// coalesced: a trigger arriving mid-pass schedules exactly one follow-up
// pass instead of running alongside it.
func (q *Queue) Replay(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.again = true
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	for {
		q.replayPass(ctx)

		q.mu.Lock()
		if !q.again {
			q.running = false
			q.mu.Unlock()
			return
		}
		q.again = false
		q.mu.Unlock()
	}
}

func (q *Queue) replayPass(ctx context.Context) {
	pending, err := q.store.PendingMutations(ctx)
	if err != nil {
		q.log.Error("replay: listing mutations failed", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	q.log.Info("replaying queued mutations", "count", len(pending))
	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := q.sender.Send(ctx, m); err != nil {
			park := m.Attempts+1 >= q.maxAttempts
			if rerr := q.store.RecordAttempt(ctx, m.ID, err.Error(), park); rerr != nil {
				q.log.Error("replay: recording attempt failed", "mutation", m.ID, "error", rerr)
			}
			if park {
				q.log.Warn("mutation needs attention", "mutation", m.ID, "attempts", m.Attempts+1, "error", err)
			} else {
				q.log.Info("replay stopped, will retry", "mutation", m.ID, "attempts", m.Attempts+1, "error", err)
			}
			return
		}

		if err := q.store.DeleteMutation(ctx, m.ID); err != nil {
			q.log.Error("replay: removing acknowledged mutation failed", "mutation", m.ID, "error", err)
			return
		}
		// Session-completion mutations carry the session ID as their key;
		// flip the archived session to synced when one lands.
		if err := q.store.MarkSessionSynced(ctx, m.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			q.log.Error("replay: marking session synced failed", "session", m.ID, "error", err)
		}
		q.log.Info("mutation replayed", "mutation", m.ID, "endpoint", m.Endpoint)
	}
}

// Retry returns a needs-attention mutation to the pending queue and kicks a
// replay.
func (q *Queue) Retry(ctx context.Context, id string) error {
	if err := q.store.ResetMutation(ctx, id); err != nil {
		return err
	}
	go q.Replay(context.WithoutCancel(ctx))
	return nil
}

// Discard drops a mutation on explicit user request.
func (q *Queue) Discard(ctx context.Context, id string) error {
	return q.store.DeleteMutation(ctx, id)
}

// Mutations lists the queue for the control surface.
func (q *Queue) Mutations(ctx context.Context) ([]models.QueuedMutation, error) {
	return q.store.AllMutations(ctx)
}
