// Package background contains tasks that run independently of the HTTP request cycle.
// Today that is the reset token sweeper, which periodically clears password reset tokens
// whose expiry has passed so stale links stop matching any account.
// In Nest.js this would be a `@nestjs/schedule` interval job.
package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/user/ficticia-go/logging"
	"github.com/user/ficticia-go/observability"
)

// ExpiredTokenClearer is implemented by auth.CredentialStore.
type ExpiredTokenClearer interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// ResetTokenSweeper clears expired reset tokens on a fixed interval.
type ResetTokenSweeper struct {
	store    ExpiredTokenClearer
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	metrics  *observability.Metrics

	wg sync.WaitGroup
}

// NewResetTokenSweeper creates a sweeper. metrics may be nil.
func NewResetTokenSweeper(store ExpiredTokenClearer, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *ResetTokenSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetTokenSweeper{
		store:    store,
		interval: interval,
		now:      time.Now,
		logger:   logger.With("component", "reset_token_sweeper"),
		metrics:  metrics,
	}
}

// Start runs the sweep loop in a goroutine until ctx is cancelled.
// A non-positive interval disables the sweeper. Wait blocks until the loop has exited.
func (s *ResetTokenSweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.InfoContext(ctx, "reset token sweeper disabled")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Wait blocks until a started sweeper has stopped.
func (s *ResetTokenSweeper) Wait() {
	s.wg.Wait()
}

func (s *ResetTokenSweeper) run(ctx context.Context) {
	s.logger.InfoContext(ctx, "reset token sweeper started", "interval", s.interval.String())
	defer s.logger.InfoContext(context.WithoutCancel(ctx), "reset token sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce clears expired tokens once and returns how many were cleared.
// Failures are logged and reported as zero; the next tick retries.
func (s *ResetTokenSweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.store.ClearExpiredResetTokens(ctx, s.now())
	if err != nil {
		logging.LogError(ctx, s.logger, "reset token sweep failed", err)
		return 0
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired reset tokens cleared", "count", n)
	}
	s.metrics.RecordSwept(n)
	return n
}
