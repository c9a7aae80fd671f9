package mcp

import (
	"context"

	"github.com/claude/repsync/internal/models"
	"github.com/claude/repsync/internal/store"
)

// DataSource abstracts the data layer for MCP tools. Both *store.Store
// (same process as the agent) and HTTPClient (separate process, via the
// agent's control API) satisfy this interface.
type DataSource interface {
	ActiveSnapshot(ctx context.Context) (*models.SessionSnapshot, error)
	PersonalRecords(ctx context.Context) ([]models.ExerciseBest, error)
	AllMutations(ctx context.Context) ([]models.QueuedMutation, error)
	SetHistory(ctx context.Context, exerciseID string, limit int) ([]models.SetRecord, error)
}

// Compile-time check: *store.Store satisfies DataSource.
var _ DataSource = (*store.Store)(nil)
