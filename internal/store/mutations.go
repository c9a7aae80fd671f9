package store

import (
	"context"
	"fmt"

	"github.com/claude/repsync/internal/models"
)

// AppendMutation adds a mutation to the tail of the durable queue.
func (s *Store) AppendMutation(ctx context.Context, m models.QueuedMutation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mutation_queue (id, endpoint, method, body, created_at, attempts, status, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Endpoint, m.Method, m.Body, m.CreatedAt, m.Attempts, string(m.Status), m.LastError)
	if err != nil {
		return fmt.Errorf("appending mutation: %w", err)
	}
	return nil
}

// PendingMutations returns replayable mutations in creation (FIFO) order.
// Needs-attention entries are excluded until the user retries them.
func (s *Store) PendingMutations(ctx context.Context) ([]models.QueuedMutation, error) {
	return s.queryMutations(ctx,
		`SELECT seq, id, endpoint, method, body, created_at, attempts, status, last_error
		 FROM mutation_queue WHERE status = ? ORDER BY seq ASC`,
		string(models.MutationPending))
}

// AllMutations returns every queued mutation, FIFO, for the control surface.
func (s *Store) AllMutations(ctx context.Context) ([]models.QueuedMutation, error) {
	return s.queryMutations(ctx,
		`SELECT seq, id, endpoint, method, body, created_at, attempts, status, last_error
		 FROM mutation_queue ORDER BY seq ASC`)
}

func (s *Store) queryMutations(ctx context.Context, query string, args ...any) ([]models.QueuedMutation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying mutations: %w", err)
	}
	defer rows.Close()

	var result []models.QueuedMutation
	for rows.Next() {
		var m models.QueuedMutation
		var status string
		if err := rows.Scan(&m.Seq, &m.ID, &m.Endpoint, &m.Method, &m.Body,
			&m.CreatedAt, &m.Attempts, &status, &m.LastError); err != nil {
			return nil, fmt.Errorf("scanning mutation: %w", err)
		}
		m.Status = models.MutationStatus(status)
		result = append(result, m)
	}
	return result, rows.Err()
}

// RecordAttempt increments a mutation's attempt counter after a failed
// replay. When park is true the mutation moves to needs_attention and is
// skipped by subsequent replay passes.
func (s *Store) RecordAttempt(ctx context.Context, id, lastError string, park bool) error {
	status := models.MutationPending
	if park {
		status = models.MutationNeedsAttention
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE mutation_queue SET attempts = attempts + 1, last_error = ?, status = ? WHERE id = ?`,
		lastError, string(status), id)
	if err != nil {
		return fmt.Errorf("recording attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMutation removes a mutation after a server acknowledgement or an
// explicit user discard.
func (s *Store) DeleteMutation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mutation_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting mutation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetMutation returns a needs-attention mutation to the pending state with
// a fresh attempt budget.
func (s *Store) ResetMutation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE mutation_queue SET status = ?, attempts = 0, last_error = '' WHERE id = ?`,
		string(models.MutationPending), id)
	if err != nil {
		return fmt.Errorf("resetting mutation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
