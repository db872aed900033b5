package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/you/projectsvc/domain"
	"github.com/you/projectsvc/internal/metrics"
)

// SessionSweeper periodically prunes expired sessions from the store
type SessionSweeper struct {
	repo     domain.SessionRepository
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewSessionSweeper creates a sweeper running every interval
func NewSessionSweeper(repo domain.SessionRepository, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *SessionSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionSweeper{
		repo:     repo,
		interval: interval,
		metrics:  m,
		logger:   logger.Named("session_sweeper"),
	}
}

// Sweep runs one pass and returns the number of removed entries
func (w *SessionSweeper) Sweep(ctx context.Context) int {
	n, err := w.repo.DeleteExpired(ctx)
	if err != nil {
		w.logger.Warn("expired session sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		w.metrics.SessionsRemoved("expired", n)
		w.logger.Debug("expired sessions removed", zap.Int("count", n))
	}
	return n
}

// Run sweeps every interval until ctx is done
func (w *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}
