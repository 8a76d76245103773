package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type journalPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// JournalRetention deletes dispatch journal entries past their retention.
type JournalRetention struct {
	journal   journalPurger
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewJournalRetention constructs a retention job. A non-positive retention keeps everything.
func NewJournalRetention(journal journalPurger, retention time.Duration, logger *zap.Logger) *JournalRetention {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalRetention{journal: journal, retention: retention, logger: logger, now: time.Now}
}

// Purge removes expired entries once.
func (j *JournalRetention) Purge(ctx context.Context) (int64, error) {
	if j.retention <= 0 {
		return 0, nil
	}
	removed, err := j.journal.PurgeOlderThan(ctx, j.now().Add(-j.retention))
	if err != nil {
		j.logger.Warn("journal purge failed", zap.Error(err))
		return 0, err
	}
	if removed > 0 {
		j.logger.Info("journal purged", zap.Int64("removed", removed))
	}
	return removed, nil
}

// Run purges on every interval until ctx ends.
func (j *JournalRetention) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.Purge(ctx)
		}
	}
}
