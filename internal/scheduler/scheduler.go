// Package scheduler runs the periodic expiry sweep over stored entries.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"flightboard_bot/internal/metrics"
	"flightboard_bot/internal/storage"
)

// sweepTimeout bounds a single sweep so a hung store call surfaces as a
// sweep failure instead of blocking the ticker forever.
const sweepTimeout = time.Minute

// Sweeper periodically purges expired entries and notifies a callback when
// any were removed.
type Sweeper struct {
	store     storage.Storage
	interval  time.Duration
	onExpired func() error
	log       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Sweeper. onExpired is invoked after every sweep that removed
// at least one entry; its errors are logged, never propagated.
func New(store storage.Storage, interval time.Duration, onExpired func() error, log *slog.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		interval:  interval,
		onExpired: onExpired,
		log:       log,
	}
}

// Start launches the sweep loop: an immediate sweep, then one per interval.
// Calling Start on a running Sweeper is a no-op that logs a warning.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.log.Warn("sweeper already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)

	s.log.Info("sweeper started", "interval", s.interval)
}

// Stop halts the sweep loop and waits for it to exit. Calling Stop on a
// stopped Sweeper is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info("sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one cleanup pass. Store failures are logged and counted, never
// allowed to kill the loop. The callback runs in its own goroutine so a slow
// republish cannot delay the next tick.
func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.RunCleanup(ctx)
	if err != nil {
		s.log.Error("expiry sweep", "error", err)
		metrics.SweepFailures.Inc()
		return
	}
	if removed == 0 {
		return
	}

	s.log.Info("expired entries removed", "count", removed)
	metrics.EntriesExpired.Add(float64(removed))

	if s.onExpired == nil {
		return
	}
	go func() {
		if err := s.onExpired(); err != nil {
			s.log.Error("republish after expiry", "error", err)
		}
	}()
}

// RunCleanup performs one on-demand sweep and returns the number of entries
// removed.
func (s *Sweeper) RunCleanup(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	return s.store.PurgeExpired(ctx)
}
