package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

type mockPointsRepo struct {
	totals           map[string]int
	entries          map[string][]models.PointsLedgerEntry
	leaderboard      []models.LeaderboardEntry
	leaderboardCalls int
}

func (m *mockPointsRepo) TotalForUser(ctx context.Context, userID string) (int, error) {
	return m.totals[userID], nil
}

func (m *mockPointsRepo) EntriesForUser(ctx context.Context, userID string, limit int) ([]models.PointsLedgerEntry, error) {
	return m.entries[userID], nil
}

func (m *mockPointsRepo) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	m.leaderboardCalls++
	if limit < len(m.leaderboard) {
		return m.leaderboard[:limit], nil
	}
	return m.leaderboard, nil
}

type mockPointsCache struct {
	data map[string][]byte
	sets int
}

func (m *mockPointsCache) Get(ctx context.Context, key string, dest interface{}) error {
	b, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *mockPointsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = b
	m.sets++
	return nil
}

func TestPointsForUser(t *testing.T) {
	issueID := "issue-1"
	repo := &mockPointsRepo{
		totals: map[string]int{"user-1": 20},
		entries: map[string][]models.PointsLedgerEntry{
			"user-1": {
				{UserID: "user-1", Points: 10, Reason: models.PointsReasonNewIssue, IssueID: &issueID},
				{UserID: "user-1", Points: 10, Reason: models.PointsReasonDuplicateReport, IssueID: &issueID},
			},
		},
	}
	svc := NewPointsService(repo, nil, time.Minute, 20, nil)

	points, err := svc.ForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 20, points.Total)
	assert.Len(t, points.Entries, 2)
}

func TestPointsLeaderboardCaches(t *testing.T) {
	repo := &mockPointsRepo{leaderboard: []models.LeaderboardEntry{
		{UserID: "user-1", FullName: "Alex", TotalPoints: 40},
		{UserID: "user-2", FullName: "Sam", TotalPoints: 30},
	}}
	cache := &mockPointsCache{}
	svc := NewPointsService(repo, cache, time.Minute, 20, nil)

	first, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 1, repo.leaderboardCalls)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from cache.
	second, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.leaderboardCalls)
}

func TestPointsLeaderboardWithoutCache(t *testing.T) {
	repo := &mockPointsRepo{leaderboard: []models.LeaderboardEntry{{UserID: "user-1", TotalPoints: 10}}}
	svc := NewPointsService(repo, nil, time.Minute, 20, nil)

	_, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	_, err = svc.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.leaderboardCalls)
}
