package repository

import (
	"context"
	"time"

	"outreach-service/internal/domain/entity"
)

// EmailStatsRepository mutates the stats singleton with storage-level atomic operations.
type EmailStatsRepository interface {
	// Get returns the stats document, creating it on first access.
	Get(ctx context.Context) (*entity.EmailStats, error)
	IncrementSent(ctx context.Context, emailType entity.EmailType, at time.Time) error
	IncrementFailed(ctx context.Context, record entity.SendErrorRecord) error
	ResetCounters(ctx context.Context, at time.Time) error
}

// StatsCache is the short-lived read cache in front of EmailStatsRepository.
type StatsCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context) (*entity.EmailStats, error)
	Set(ctx context.Context, stats *entity.EmailStats) error
	Invalidate(ctx context.Context) error
}
