package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/claude/repsync/internal/models"
)

// PutCachedResource stores a response under its (method, URL) key,
// overwriting any previous entry. Last writer wins.
func (s *Store) PutCachedResource(ctx context.Context, r models.CachedResource) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cached_resources
		 (method, url, class, status, content_type, payload, version, cached_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Method, r.URL, string(r.Class), r.Status, r.ContentType, r.Payload, r.Version, r.CachedAt)
	if err != nil {
		return fmt.Errorf("storing cached resource: %w", err)
	}
	return nil
}

// CachedResource returns the entry for the given key, or ErrNotFound.
func (s *Store) CachedResource(ctx context.Context, method, url string) (*models.CachedResource, error) {
	var r models.CachedResource
	var class string
	err := s.db.QueryRowContext(ctx,
		`SELECT method, url, class, status, content_type, payload, version, cached_at
		 FROM cached_resources WHERE method = ? AND url = ?`,
		method, url).Scan(&r.Method, &r.URL, &class, &r.Status, &r.ContentType, &r.Payload, &r.Version, &r.CachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached resource: %w", err)
	}
	r.Class = models.ResourceClass(class)
	return &r, nil
}

// PurgeStaleCache removes entries whose version tag differs from keep.
// Called when the agent activates after a version change.
func (s *Store) PurgeStaleCache(ctx context.Context, keep string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cached_resources WHERE version != ?`, keep)
	if err != nil {
		return 0, fmt.Errorf("purging stale cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
