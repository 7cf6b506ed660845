package core

// scheduler.go runs the import history retention job.
//
// The job deletes import_runs rows older than the retention window. It runs
// once at start and then every CheckInterval until ctx is cancelled. A failed
// run is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// HistoryPruner deletes history entries imported before cutoff.
type HistoryPruner interface {
	PruneImports(ctx context.Context, before time.Time) (int64, error)
}

// RetentionConfig configures RunHistoryRetention.
type RetentionConfig struct {
	Retention     time.Duration // default 90 days
	CheckInterval time.Duration // default 24h
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.Retention <= 0 {
		c.Retention = 90 * 24 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// RunHistoryRetention blocks until ctx is cancelled.
func RunHistoryRetention(ctx context.Context, pruner HistoryPruner, cfg RetentionConfig, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	logger.Info("history retention started",
		"retention", cfg.Retention.String(),
		"interval", cfg.CheckInterval.String(),
	)

	pruneHistory(ctx, pruner, cfg.Retention, logger)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("history retention stopped")
			return
		case <-ticker.C:
			pruneHistory(ctx, pruner, cfg.Retention, logger)
		}
	}
}

func pruneHistory(ctx context.Context, pruner HistoryPruner, retention time.Duration, logger *slog.Logger) {
	start := time.Now()
	cutoff := start.Add(-retention).UTC()

	deleted, err := pruner.PruneImports(ctx, cutoff)
	if err != nil {
		logger.Error("history prune failed", "error", err)
		return
	}
	logger.Info("pruned import history",
		"entries_deleted", deleted,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
