package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/claude/repsync/internal/models"
)

// RecordSets batch-inserts the finished sets of an exercise into the local
// history. Returns count inserted.
func (s *Store) RecordSets(ctx context.Context, exerciseID, sessionID string, sets []models.SetRecord) (int64, error) {
	if len(sets) == 0 {
		return 0, nil
	}

	query := `INSERT INTO exercise_history (exercise_id, session_id, set_number,
		weight_kg, is_bodyweight, reps, difficulty, performed_at) VALUES `
	args := make([]any, 0, len(sets)*8)
	valueStrings := make([]string, 0, len(sets))

	for _, set := range sets {
		valueStrings = append(valueStrings, "(?,?,?,?,?,?,?,?)")
		args = append(args, exerciseID, sessionID, set.SetNumber,
			set.WeightKg, set.IsBodyweight, set.Reps, set.Difficulty, set.CompletedAt)
	}

	query += strings.Join(valueStrings, ",")

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting exercise history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// LastPerformed returns the most recently logged set for an exercise, used
// as the input default when the exercise is selected again.
func (s *Store) LastPerformed(ctx context.Context, exerciseID string) (*models.SetRecord, error) {
	var r models.SetRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT set_number, weight_kg, is_bodyweight, reps, difficulty, performed_at
		 FROM exercise_history WHERE exercise_id = ?
		 ORDER BY performed_at DESC, set_number DESC LIMIT 1`,
		exerciseID).Scan(&r.SetNumber, &r.WeightKg, &r.IsBodyweight, &r.Reps, &r.Difficulty, &r.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading last performed set: %w", err)
	}
	return &r, nil
}

// SetHistory returns an exercise's logged sets, newest first.
func (s *Store) SetHistory(ctx context.Context, exerciseID string, limit int) ([]models.SetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT set_number, weight_kg, is_bodyweight, reps, difficulty, performed_at
		 FROM exercise_history WHERE exercise_id = ?
		 ORDER BY performed_at DESC, set_number DESC LIMIT ?`,
		exerciseID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying set history: %w", err)
	}
	defer rows.Close()

	var result []models.SetRecord
	for rows.Next() {
		var r models.SetRecord
		if err := rows.Scan(&r.SetNumber, &r.WeightKg, &r.IsBodyweight, &r.Reps, &r.Difficulty, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning set history: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Best returns the last-known best for an exercise, or ErrNotFound when the
// exercise has never been performed.
func (s *Store) Best(ctx context.Context, exerciseID string) (*models.ExerciseBest, error) {
	var b models.ExerciseBest
	err := s.db.QueryRowContext(ctx,
		`SELECT exercise_id, weight_kg, reps, recorded_at FROM exercise_bests WHERE exercise_id = ?`,
		exerciseID).Scan(&b.ExerciseID, &b.WeightKg, &b.Reps, &b.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading exercise best: %w", err)
	}
	return &b, nil
}

// PutBest stores a new last-known best for an exercise.
func (s *Store) PutBest(ctx context.Context, b models.ExerciseBest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO exercise_bests (exercise_id, weight_kg, reps, recorded_at)
		 VALUES (?, ?, ?, ?)`,
		b.ExerciseID, b.WeightKg, b.Reps, b.RecordedAt)
	if err != nil {
		return fmt.Errorf("storing exercise best: %w", err)
	}
	return nil
}

// PersonalRecords returns the stored best for every exercise.
func (s *Store) PersonalRecords(ctx context.Context) ([]models.ExerciseBest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exercise_id, weight_kg, reps, recorded_at FROM exercise_bests ORDER BY exercise_id`)
	if err != nil {
		return nil, fmt.Errorf("querying personal records: %w", err)
	}
	defer rows.Close()

	var result []models.ExerciseBest
	for rows.Next() {
		var b models.ExerciseBest
		if err := rows.Scan(&b.ExerciseID, &b.WeightKg, &b.Reps, &b.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning personal record: %w", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}
