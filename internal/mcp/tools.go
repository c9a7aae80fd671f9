package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/repsync/internal/models"
	"github.com/claude/repsync/internal/store"
)

// --- Tool definitions ---

var toolGetActiveSession = mcp.NewTool("get_active_session",
	mcp.WithDescription("Get the workout session currently in progress, including completed sets, the current exercise, and rest timer state."),
)

var toolGetPersonalRecords = mcp.NewTool("get_personal_records",
	mcp.WithDescription("List the best recorded weight and reps for every tracked exercise."),
)

var toolGetQueueStatus = mcp.NewTool("get_queue_status",
	mcp.WithDescription("Inspect the offline mutation queue: writes captured while offline, their retry counts, and any entries needing manual attention."),
)

var toolGetSetHistory = mcp.NewTool("get_set_history",
	mcp.WithDescription("Get recently recorded sets for one exercise, newest first."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise identifier")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of sets to return (default 50)")),
)

// --- Tool handlers ---

func (h *handlers) getActiveSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := h.ds.ActiveSnapshot(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultText("no active session"), nil
		}
		h.log.Error("mcp get_active_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(snap)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getPersonalRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := h.ds.PersonalRecords(ctx)
	if err != nil {
		h.log.Error("mcp get_personal_records", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(records)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getQueueStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mutations, err := h.ds.AllMutations(ctx)
	if err != nil {
		h.log.Error("mcp get_queue_status", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	pending := 0
	needsAttention := 0
	for _, m := range mutations {
		switch m.Status {
		case models.MutationPending:
			pending++
		case models.MutationNeedsAttention:
			needsAttention++
		}
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"pending":         pending,
		"needs_attention": needsAttention,
		"mutations":       mutations,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSetHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exerciseID, err := req.RequireString("exercise_id")
	if err != nil {
		return mcp.NewToolResultError("exercise_id parameter is required"), nil
	}

	limit := req.GetInt("limit", 50)
	if limit < 1 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}

	sets, err := h.ds.SetHistory(ctx, exerciseID, limit)
	if err != nil {
		h.log.Error("mcp get_set_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sets)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
