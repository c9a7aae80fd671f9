package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/repsync/internal/mcp"
	"github.com/claude/repsync/internal/store"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	storeDir := flag.String("store", "", "open the agent's store directly (agent must not be running)")
	agentURL := flag.String("agent-url", "http://127.0.0.1:8787", "agent control API base URL")
	flag.Parse()

	// stdout carries the MCP transport, so logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource
	if *storeDir != "" {
		st, err := store.Open(*storeDir)
		if err != nil {
			log.Error("failed to open store", "dir", *storeDir, "error", err)
			os.Exit(1)
		}
		defer st.Close()
		ds = st
	} else {
		ds = mcp.NewHTTPClient(*agentURL)
	}

	s := mcp.New(ds, Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
