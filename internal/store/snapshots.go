package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/claude/repsync/internal/models"
)

// SaveSnapshot persists the active session snapshot. Called after every
// state transition so a crash resumes from the last committed state.
func (s *Store) SaveSnapshot(ctx context.Context, snap models.SessionSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO session_snapshots
		 (id, schema_version, state, payload, sync_status, archived, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		snap.SessionID, snap.SchemaVersion, snap.State, payload, string(snap.SyncStatus), time.Now())
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// ActiveSnapshot returns the one unarchived session snapshot, or ErrNotFound.
// Snapshots written under an older schema version are discarded rather than
// resumed.
func (s *Store) ActiveSnapshot(ctx context.Context) (*models.SessionSnapshot, error) {
	var id string
	var schemaVersion int
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, schema_version, payload FROM session_snapshots
		 WHERE archived = 0 ORDER BY updated_at DESC LIMIT 1`).
		Scan(&id, &schemaVersion, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	if schemaVersion != models.SnapshotSchemaVersion {
		if err := s.DeleteSnapshot(ctx, id); err != nil {
			return nil, fmt.Errorf("discarding outdated snapshot: %w", err)
		}
		return nil, ErrNotFound
	}

	var snap models.SessionSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, nil
}

// ArchiveSession marks a session as finished with the given sync status.
// Archived snapshots are no longer resumable.
func (s *Store) ArchiveSession(ctx context.Context, id string, status models.SyncStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE session_snapshots SET archived = 1, sync_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), id)
	if err != nil {
		return fmt.Errorf("archiving session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SessionSyncStatus reports the stored sync status for a session.
func (s *Store) SessionSyncStatus(ctx context.Context, id string) (models.SyncStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT sync_status FROM session_snapshots WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading session sync status: %w", err)
	}
	return models.SyncStatus(status), nil
}

// MarkSessionSynced flips an archived session to synced once its completion
// mutation is acknowledged by the server.
func (s *Store) MarkSessionSynced(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE session_snapshots SET sync_status = ?, updated_at = ? WHERE id = ?`,
		string(models.SyncDone), time.Now(), id)
	if err != nil {
		return fmt.Errorf("marking session synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSnapshot removes a snapshot entirely (abandoned sessions, outdated
// schema versions).
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}
