package core

// scheduler.go runs background maintenance for the audit log. Entries older
// than the retention window are purged on start and then once per interval.
// A failed purge is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/awardshelf/internal/metrics"
)

// PurgeConfig tunes the audit purge job. Zero values take the defaults.
type PurgeConfig struct {
	Retention     time.Duration // default: 90 days
	CheckInterval time.Duration // default: 24h
}

const (
	DefaultAuditRetention = 90 * 24 * time.Hour
	DefaultPurgeInterval  = 24 * time.Hour
)

func (c PurgeConfig) withDefaults() PurgeConfig {
	if c.Retention <= 0 {
		c.Retention = DefaultAuditRetention
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultPurgeInterval
	}
	return c
}

// StartAuditPurge blocks, purging old audit entries until ctx is cancelled.
// Run it in its own goroutine.
func (s *Service) StartAuditPurge(ctx context.Context, cfg PurgeConfig) {
	cfg = cfg.withDefaults()
	slog.Info("audit purge scheduler started",
		"retention", cfg.Retention,
		"interval", cfg.CheckInterval,
	)

	s.PurgeAudit(ctx, cfg.Retention)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("audit purge scheduler stopped")
			return
		case <-ticker.C:
			s.PurgeAudit(ctx, cfg.Retention)
		}
	}
}

// PurgeAudit deletes audit entries older than retention and returns how
// many were removed.
func (s *Service) PurgeAudit(ctx context.Context, retention time.Duration) int64 {
	start := time.Now()
	purged, err := s.store.PurgeAuditEntries(ctx, s.now().Add(-retention))
	if err != nil {
		slog.Error("audit purge failed", "error", err)
		return 0
	}
	metrics.AuditEntriesPurged.Add(float64(purged))
	slog.Info("purged audit entries",
		"entries_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return purged
}
