package core

import (
	"context"
	"log/slog"
	"time"
)

type RunPruner interface {
	DeleteOldRuns(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RetentionService periodically deletes run history older than maxAge.
type RetentionService struct {
	pruner   RunPruner
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

func NewRetentionService(pruner RunPruner, maxAge time.Duration, logger *slog.Logger) *RetentionService {
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionService{
		pruner:   pruner,
		maxAge:   maxAge,
		interval: 24 * time.Hour, // once a day
		logger:   logger,
	}
}

func (s *RetentionService) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *RetentionService) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(ctx)
		}
	}
}

func (s *RetentionService) cleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	count, err := s.pruner.DeleteOldRuns(ctx, s.maxAge)
	if err != nil {
		s.logger.Warn("retention: failed to delete old runs", "error", err)
		return
	}
	s.logger.Info("retention: deleted old runs", "count", count, "max_age", s.maxAge.String())
}
