package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/civicdesk/civicdesk-api/internal/models"
)

// StatusLogRepository reads the append-only status trail. Writes happen
// inside the issue repository's transactions.
type StatusLogRepository struct {
	db *sqlx.DB
}

// NewStatusLogRepository constructs a new repository.
func NewStatusLogRepository(db *sqlx.DB) *StatusLogRepository {
	return &StatusLogRepository{db: db}
}

// ListForIssue returns an issue's transition history, oldest first.
func (r *StatusLogRepository) ListForIssue(ctx context.Context, issueID string) ([]models.StatusLog, error) {
	query := `SELECT id, issue_id, old_status, new_status, note, changed_by, created_at
FROM status_logs WHERE issue_id = $1 ORDER BY created_at ASC`
	var logs []models.StatusLog
	if err := r.db.SelectContext(ctx, &logs, query, issueID); err != nil {
		return nil, fmt.Errorf("list status logs: %w", err)
	}
	return logs, nil
}
