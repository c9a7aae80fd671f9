package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/claude/repsync/internal/models"
)

// SessionSender submits a finished session directly. Satisfied by
// *api.Client.
type SessionSender interface {
	CompleteSession(ctx context.Context, session models.CompletedSession) error
}

// Syncer hands finished sessions to the server, falling back to the durable
// queue so a session completed offline is never lost. The session ID doubles
// as the idempotency key for both the direct attempt and any replay.
type Syncer struct {
	api   SessionSender
	queue *Queue
	log   *slog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(api SessionSender, q *Queue, log *slog.Logger) *Syncer {
	return &Syncer{api: api, queue: q, log: log}
}

// SubmitSession attempts the session-completion write; any failure enqueues
// it for replay. Returns queued=true when the session is waiting in the
// queue rather than acknowledged by the server.
func (s *Syncer) SubmitSession(ctx context.Context, session models.CompletedSession) (queued bool, err error) {
	sendErr := s.api.CompleteSession(ctx, session)
	if sendErr == nil {
		return false, nil
	}
	s.log.Info("session completion deferred to queue", "session", session.SessionID, "error", sendErr)

	body, err := json.Marshal(session)
	if err != nil {
		return false, fmt.Errorf("encoding session for queue: %w", err)
	}
	if _, err := s.queue.EnqueueWithID(ctx, session.SessionID,
		"/api/v1/sessions/complete", http.MethodPost, body); err != nil {
		return false, fmt.Errorf("queueing session completion: %w", err)
	}
	return true, nil
}
