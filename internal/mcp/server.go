// Package mcp exposes the agent's local workout data to LLM tooling over
// the Model Context Protocol. All tools are read-only.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/repsync/internal/models"
	"github.com/claude/repsync/internal/store"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("RepSync", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("RepSync workout agent. Query the active workout session, personal records, set history, and the offline mutation queue. All data is local to this device."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetActiveSession, Handler: h.getActiveSession},
		server.ServerTool{Tool: toolGetPersonalRecords, Handler: h.getPersonalRecords},
		server.ServerTool{Tool: toolGetQueueStatus, Handler: h.getQueueStatus},
		server.ServerTool{Tool: toolGetSetHistory, Handler: h.getSetHistory},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resStatus, Handler: h.status},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resStatus = mcp.NewResource(
	"repsync://status",
	"Agent Status",
	mcp.WithResourceDescription("Snapshot of the agent's local state: active session, queued mutations, and tracked personal records"),
	mcp.WithMIMEType("application/json"),
)

func (h *handlers) status(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	snap, err := h.ds.ActiveSnapshot(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	mutations, err := h.ds.AllMutations(ctx)
	if err != nil {
		h.log.Warn("status: mutation query failed", "error", err)
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

	records, err := h.ds.PersonalRecords(ctx)
	if err != nil {
		h.log.Warn("status: records query failed", "error", err)
	}

	summary := map[string]any{
		"session_active":            snap != nil,
		"pending_mutations":         pending,
		"needs_attention_mutations": needsAttention,
		"tracked_exercises":         len(records),
	}
	if snap != nil {
		summary["session"] = snap
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
