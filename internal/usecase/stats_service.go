package usecase

import (
	"context"
	"fmt"
	"time"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"
	"outreach-service/pkg/logger"
)

// StatsService owns the EmailStats ledger and its read cache. Writes go
// straight to the store and then invalidate the cache; reads may lag by one
// cache TTL.
type StatsService struct {
	repo   repository.EmailStatsRepository
	cache  repository.StatsCache
	logger logger.Logger
	now    func() time.Time
}

// NewStatsService creates a new stats service. cache may be nil.
func NewStatsService(repo repository.EmailStatsRepository, cache repository.StatsCache, logger logger.Logger) *StatsService {
	return &StatsService{
		repo:   repo,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// RecordSuccess counts a delivered email. Accounting failures are logged only.
func (s *StatsService) RecordSuccess(ctx context.Context, emailType entity.EmailType) {
	if err := s.repo.IncrementSent(ctx, emailType, s.now()); err != nil {
		s.logger.Error("Failed to record sent email in stats", "emailType", emailType, "error", err)
	}
	s.invalidate(ctx)
}

// RecordFailure counts a failed email and keeps its error in the recent ring.
func (s *StatsService) RecordFailure(ctx context.Context, record entity.SendErrorRecord) {
	if err := s.repo.IncrementFailed(ctx, record); err != nil {
		s.logger.Error("Failed to record failed email in stats",
			"emailType", record.EmailType,
			"recipient", record.Recipient,
			"error", err)
	}
	s.invalidate(ctx)
}

// GetStats returns the admin view of the ledger.
func (s *StatsService) GetStats(ctx context.Context) (*entity.StatsView, error) {
	stats, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	recent := make([]entity.SendErrorRecord, len(stats.RecentErrors))
	// newest first
	for i, e := range stats.RecentErrors {
		recent[len(stats.RecentErrors)-1-i] = e
	}

	return &entity.StatsView{
		Sent:         stats.Sent,
		Failed:       stats.Failed,
		SuccessRate:  stats.SuccessRate(),
		ByType:       stats.ByType,
		RecentErrors: recent,
		UpdatedAt:    stats.UpdatedAt,
	}, nil
}

// ResetCounters zeroes the counters and clears the error ring.
func (s *StatsService) ResetCounters(ctx context.Context) error {
	if err := s.repo.ResetCounters(ctx, s.now()); err != nil {
		return fmt.Errorf("failed to reset stats: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *StatsService) load(ctx context.Context) (*entity.EmailStats, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("Stats cache read failed", "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	stats, err := s.repo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stats); err != nil {
			s.logger.Warn("Stats cache write failed", "error", err)
		}
	}
	return stats, nil
}

func (s *StatsService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("Stats cache invalidation failed", "error", err)
	}
}
