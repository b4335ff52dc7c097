package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

type pointsLedgerRepository interface {
	TotalForUser(ctx context.Context, userID string) (int, error)
	EntriesForUser(ctx context.Context, userID string, limit int) ([]models.PointsLedgerEntry, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type pointsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const leaderboardCacheKey = "points:leaderboard"

// PointsService exposes ledger totals and the community leaderboard.
// Totals are recomputed from the ledger on every read so a denormalised
// counter can never drift out of sync.
type PointsService struct {
	repo     pointsLedgerRepository
	cache    pointsCache
	cacheTTL time.Duration
	limit    int
	logger   *zap.Logger
}

// NewPointsService constructs the points service. A nil cache disables
// leaderboard caching.
func NewPointsService(repo pointsLedgerRepository, cache pointsCache, cacheTTL time.Duration, limit int, logger *zap.Logger) *PointsService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if limit <= 0 {
		limit = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PointsService{repo: repo, cache: cache, cacheTTL: cacheTTL, limit: limit, logger: logger}
}

// UserPoints bundles a user's total with their recent history.
type UserPoints struct {
	Total   int                        `json:"total"`
	Entries []models.PointsLedgerEntry `json:"entries"`
}

// ForUser returns a user's ledger total and recent entries.
func (s *PointsService) ForUser(ctx context.Context, userID string) (*UserPoints, error) {
	total, err := s.repo.TotalForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum points")
	}
	entries, err := s.repo.EntriesForUser(ctx, userID, 50)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger entries")
	}
	return &UserPoints{Total: total, Entries: entries}, nil
}

// Leaderboard returns the top reporters, served from cache when fresh.
func (s *PointsService) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	if s.cache != nil {
		var cached []models.LeaderboardEntry
		err := s.cache.Get(ctx, leaderboardCacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("leaderboard cache read failed", zap.Error(err))
		}
	}

	entries, err := s.repo.Leaderboard(ctx, s.limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build leaderboard")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, leaderboardCacheKey, entries, s.cacheTTL); err != nil {
			s.logger.Warn("leaderboard cache write failed", zap.Error(err))
		}
	}
	return entries, nil
}
