// Package retention periodically enforces bounded-age pruning: deleting
// event records and command log entries past their retention window.
// Structurally grounded in the teacher's pkg/cleanup.Service (same
// Start/Stop/ticker-loop shape), generalized from session soft-delete +
// orphaned-event cleanup to eventstore + commandlog hard pruning.
package retention

import (
	"context"
	"log/slog"
	"time"
)

// EventPruner is satisfied by pkg/eventstore.Store.
type EventPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// CommandLogPruner is satisfied by pkg/commandlog.Log.
type CommandLogPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config controls retention windows and the sweep interval.
type Config struct {
	EventRetention      time.Duration
	CommandLogRetention time.Duration
	Interval            time.Duration
}

// Service runs Config's pruning sweeps on a ticker, never reducing
// version_index — that's commandlog.Prune's own invariant to keep.
type Service struct {
	config     Config
	events     EventPruner
	commandLog CommandLogPruner
	now        func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService wires a Service. now defaults to time.Now if nil.
func NewService(cfg Config, events EventPruner, commandLog CommandLogPruner, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{config: cfg, events: events, commandLog: commandLog, now: now}
}

// Start launches the background sweep loop. Safe to call once; a second call
// on an already-started Service is a no-op.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("retention service started",
		"event_retention", s.config.EventRetention,
		"command_log_retention", s.config.CommandLogRetention,
		"interval", s.config.Interval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("retention service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.pruneEvents(ctx)
	s.pruneCommandLog(ctx)
}

func (s *Service) pruneEvents(ctx context.Context) {
	cutoff := s.now().Add(-s.config.EventRetention)
	n, err := s.events.Prune(ctx, cutoff)
	if err != nil {
		slog.Error("retention: event prune failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("retention: pruned events", "count", n)
	}
}

func (s *Service) pruneCommandLog(ctx context.Context) {
	cutoff := s.now().Add(-s.config.CommandLogRetention)
	n, err := s.commandLog.Prune(ctx, cutoff)
	if err != nil {
		slog.Error("retention: command log prune failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("retention: pruned command log entries", "count", n)
	}
}
