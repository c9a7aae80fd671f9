package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// HealthChecker probes the remote API. Satisfied by *api.Client.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Prober watches connectivity by probing the remote health endpoint on an
// interval and fires onOnline on every offline-to-online edge.
type Prober struct {
	checker  HealthChecker
	interval time.Duration
	onOnline func()
	log      *slog.Logger

	mu     sync.RWMutex
	online bool
	known  bool
}

// NewProber creates a Prober. onOnline typically triggers a queue replay.
func NewProber(checker HealthChecker, interval time.Duration, onOnline func(), log *slog.Logger) *Prober {
	return &Prober{
		checker:  checker,
		interval: interval,
		onOnline: onOnline,
		log:      log,
	}
}

// Online reports the last observed connectivity state.
func (p *Prober) Online() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

// Run probes until ctx is cancelled. The first probe happens immediately.
func (p *Prober) Run(ctx context.Context) {
	p.probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.interval)
	err := p.checker.Health(probeCtx)
	cancel()
	nowOnline := err == nil

	p.mu.Lock()
	edge := nowOnline && (!p.known || !p.online)
	changed := !p.known || p.online != nowOnline
	p.online = nowOnline
	p.known = true
	p.mu.Unlock()

	if changed {
		p.log.Info("connectivity changed", "online", nowOnline)
	}
	if edge && p.onOnline != nil {
		p.onOnline()
	}
}
