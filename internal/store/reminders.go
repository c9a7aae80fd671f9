package store

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/repsync/internal/models"
)

// AddReminder persists a deferred workout prompt.
func (s *Store) AddReminder(ctx context.Context, r models.Reminder) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, title, body, workout_id, due_at, delivered, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Body, r.WorkoutID, r.DueAt, r.Delivered, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("adding reminder: %w", err)
	}
	return nil
}

// DueReminders returns undelivered reminders whose due time has passed.
func (s *Store) DueReminders(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, body, workout_id, due_at, delivered, created_at
		 FROM reminders WHERE delivered = 0 AND due_at <= ? ORDER BY due_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("querying due reminders: %w", err)
	}
	defer rows.Close()

	var result []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.ID, &r.Title, &r.Body, &r.WorkoutID, &r.DueAt, &r.Delivered, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning reminder: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// MarkReminderDelivered flags a reminder so it is not re-delivered.
func (s *Store) MarkReminderDelivered(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET delivered = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking reminder delivered: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
