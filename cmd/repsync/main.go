package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tailscale.com/tsnet"

	"github.com/claude/repsync/internal/agent"
	"github.com/claude/repsync/internal/api"
	"github.com/claude/repsync/internal/config"
	"github.com/claude/repsync/internal/notify"
	"github.com/claude/repsync/internal/queue"
	"github.com/claude/repsync/internal/server"
	"github.com/claude/repsync/internal/session"
	"github.com/claude/repsync/internal/store"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("RepSync starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Open local store (runs migrations)
	st, err := store.Open(cfg.Store.Dir)
	if err != nil {
		log.Error("failed to open store", "dir", cfg.Store.Dir, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	log.Info("store opened", "dir", cfg.Store.Dir)

	// Remote API client
	client := api.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIKey,
		time.Duration(cfg.Remote.TimeoutSeconds)*time.Second)

	// Mutation queue and session syncer
	q := queue.New(st, client, cfg.Queue.MaxAttempts, log)
	syncer := queue.NewSyncer(client, q, log)

	// Session state machine, resumed from the last persisted snapshot
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	machine := session.New(st, syncer, time.Duration(cfg.Session.RestExtendSeconds)*time.Second, log)
	if err := machine.Resume(ctx); err != nil {
		log.Error("failed to resume session", "error", err)
		os.Exit(1)
	}

	// Mediation agent lifecycle: install, activate, serve
	ag := agent.New(st, client, q, cfg.Agent.CacheVersion, log)
	if err := ag.Install(ctx); err != nil {
		log.Error("agent install failed", "error", err)
		os.Exit(1)
	}
	if err := ag.Activate(ctx); err != nil {
		log.Error("agent activate failed", "error", err)
		os.Exit(1)
	}

	// Notification dispatcher: "start" responses fetch the workout plan
	// (from cache when offline) and hand it to the state machine.
	starter := func(ctx context.Context, workoutID string) error {
		workout, err := ag.FetchWorkout(ctx, workoutID)
		if err != nil {
			return fmt.Errorf("fetching workout %s: %w", workoutID, err)
		}
		_, err = machine.Start(ctx, *workout)
		return err
	}
	dispatcher := notify.New(st, starter, time.Duration(cfg.Reminders.DelayMinutes)*time.Minute, log)

	// Connectivity prober: replay the queue on every offline-to-online edge.
	prober := queue.NewProber(client, time.Duration(cfg.Queue.ProbeIntervalSeconds)*time.Second,
		func() { q.Replay(ctx) }, log)

	go prober.Run(ctx)
	go dispatcher.Run(ctx)

	// Periodic replay keeps draining the queue while connectivity holds.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Queue.ReplayIntervalSeconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if prober.Online() {
					q.Replay(ctx)
				}
			}
		}
	}()

	// Rest timer refresh advances resting sessions past expired deadlines.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := machine.Refresh(ctx); err != nil {
					log.Warn("rest refresh failed", "error", err)
				}
			}
		}
	}()

	srv := server.New(ag, machine, q, dispatcher, prober, st, log)

	// Listen on the tailnet when enabled, otherwise plain loopback HTTP.
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet listener up", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Agent.Host, cfg.Agent.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("listener up", "addr", addr)
	}

	ag.Serve()

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("agent stopped")
}
