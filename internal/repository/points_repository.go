package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/civicdesk/civicdesk-api/internal/models"
)

// PointsRepository reads the append-only points ledger. Writes that belong
// to an issue transition happen inside the issue repository's transactions;
// Insert exists for standalone grants.
type PointsRepository struct {
	db *sqlx.DB
}

// NewPointsRepository constructs a new repository.
func NewPointsRepository(db *sqlx.DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// Insert appends a ledger entry.
func (r *PointsRepository) Insert(ctx context.Context, entry *models.PointsLedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO points_ledger (id, user_id, points, reason, issue_id, created_at)
VALUES (:id, :user_id, :points, :reason, :issue_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// TotalForUser sums the signed entries for one user. The ledger is the
// source of truth; there is no denormalised total to drift.
func (r *PointsRepository) TotalForUser(ctx context.Context, userID string) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(points), 0) FROM points_ledger WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &total, query, userID); err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return total, nil
}

// EntriesForUser lists a user's ledger history, newest first.
func (r *PointsRepository) EntriesForUser(ctx context.Context, userID string, limit int) ([]models.PointsLedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, user_id, points, reason, issue_id, created_at
FROM points_ledger WHERE user_id = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	var entries []models.PointsLedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

// Leaderboard returns the top reporters by ledger sum.
func (r *PointsRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT l.user_id, u.full_name, COALESCE(SUM(l.points), 0) AS total_points
FROM points_ledger l
JOIN users u ON u.id = l.user_id
GROUP BY l.user_id, u.full_name
ORDER BY total_points DESC
LIMIT %d`, limit)
	var entries []models.LeaderboardEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return entries, nil
}
