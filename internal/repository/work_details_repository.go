package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/civicdesk/civicdesk-api/internal/models"
)

// WorkDetailsRepository reads the per-issue work details row. Creation and
// mutation happen inside the issue repository's transition transactions.
type WorkDetailsRepository struct {
	db *sqlx.DB
}

// NewWorkDetailsRepository constructs a new repository.
func NewWorkDetailsRepository(db *sqlx.DB) *WorkDetailsRepository {
	return &WorkDetailsRepository{db: db}
}

// GetByIssue loads the work details for an issue.
func (r *WorkDetailsRepository) GetByIssue(ctx context.Context, issueID string) (*models.IssueWorkDetails, error) {
	var details models.IssueWorkDetails
	query := `SELECT id, issue_id, budget_allocated, amount_used, estimated_days, work_start_date, accepted_at, accepted_by, progress_percentage, extension_reason, extended_date, decline_category, decline_reason, created_at, updated_at
FROM issue_work_details WHERE issue_id = $1`
	if err := r.db.GetContext(ctx, &details, query, issueID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get work details: %w", err)
	}
	return &details, nil
}
