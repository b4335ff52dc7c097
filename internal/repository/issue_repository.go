package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/civicdesk/civicdesk-api/internal/models"
)

// priorityExpr recomputes the priority score in SQL so counter updates and
// score recomputation happen in a single atomic statement. $now must be the
// first bound argument of any statement embedding it.
const priorityExpr = `(report_count %s) * 2 + severity + GREATEST(FLOOR(EXTRACT(EPOCH FROM ($1 - created_at)) / 86400)::int, 0) + (upvote_count %s)`

// IssueRepository manages persistence for issues and their satellite rows
// (reports, work details, status logs, upvotes, ledger entries written
// inside the same transaction boundary).
type IssueRepository struct {
	db *sqlx.DB
}

// NewIssueRepository constructs a new repository.
func NewIssueRepository(db *sqlx.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

const issueColumns = `id, title, description, category, severity, lat, lng, status, report_count, upvote_count, priority_score, department_id, reporter_id, assigned_to, image_url, cancel_reason, created_at, updated_at`

// GetByID loads a single issue.
func (r *IssueRepository) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	var issue models.Issue
	query := fmt.Sprintf("SELECT %s FROM issues WHERE id = $1", issueColumns)
	if err := r.db.GetContext(ctx, &issue, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return &issue, nil
}

// List returns issues per provided filter with a total count.
func (r *IssueRepository) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Category != "" {
		where = append(where, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.DepartmentID != "" {
		where = append(where, fmt.Sprintf("department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.ReporterID != "" {
		where = append(where, fmt.Sprintf("reporter_id = $%d", len(args)+1))
		args = append(args, filter.ReporterID)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	orderBy := "priority_score DESC, created_at DESC"
	if filter.SortBy == "created_at" {
		orderBy = "created_at DESC"
		if strings.EqualFold(filter.SortOrder, "asc") {
			orderBy = "created_at ASC"
		}
	}

	query := fmt.Sprintf("SELECT %s FROM issues WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		issueColumns, whereClause, orderBy, size, offset)
	var issues []models.Issue
	if err := r.db.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list issues: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM issues WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}
	return issues, total, nil
}

// FindNearby returns duplicate candidates in the same category within the
// bounding window around the probe point, excluding closed issues. This is
// a coarse pre-filter; the oracle refines the candidate set.
func (r *IssueRepository) FindNearby(ctx context.Context, lat, lng, window float64, category models.IssueCategory) ([]models.IssueCandidate, error) {
	closed := make([]string, len(models.ClosedStatuses))
	for i, s := range models.ClosedStatuses {
		closed[i] = string(s)
	}
	query := `SELECT id, title, description FROM issues
WHERE category = $1
  AND status <> ALL($2)
  AND lat BETWEEN $3 AND $4
  AND lng BETWEEN $5 AND $6`
	var candidates []models.IssueCandidate
	err := r.db.SelectContext(ctx, &candidates, query,
		category, pq.Array(closed), lat-window, lat+window, lng-window, lng+window)
	if err != nil {
		return nil, fmt.Errorf("find nearby issues: %w", err)
	}
	return candidates, nil
}

// CreateWithIntake inserts a new issue together with its initial status log
// entry and the reporter's award ledger entry in one transaction.
func (r *IssueRepository) CreateWithIntake(ctx context.Context, issue *models.Issue, award int) error {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin intake tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insertIssue := `INSERT INTO issues (id, title, description, category, severity, lat, lng, status, report_count, upvote_count, priority_score, department_id, reporter_id, image_url, created_at, updated_at)
VALUES (:id, :title, :description, :category, :severity, :lat, :lng, :status, :report_count, :upvote_count, :priority_score, :department_id, :reporter_id, :image_url, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertIssue, issue); err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}

	insertLog := `INSERT INTO status_logs (id, issue_id, old_status, new_status, changed_by, created_at)
VALUES ($1, $2, NULL, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, insertLog, uuid.NewString(), issue.ID, models.StatusOpen, issue.ReporterID, now); err != nil {
		return fmt.Errorf("insert initial status log: %w", err)
	}

	insertPoints := `INSERT INTO points_ledger (id, user_id, points, reason, issue_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, insertPoints, uuid.NewString(), issue.ReporterID, award, models.PointsReasonNewIssue, issue.ID, now); err != nil {
		return fmt.Errorf("insert award ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit intake tx: %w", err)
	}
	return nil
}

// MergeReport folds a duplicate submission into an existing issue: insert
// the report row, bump report_count and recompute the priority score in a
// single UPDATE (no read-modify-write), and award the reporter. Returns the
// updated issue.
func (r *IssueRepository) MergeReport(ctx context.Context, report *models.IssueReport, award int, now time.Time) (*models.Issue, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin merge tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insertReport := `INSERT INTO issue_reports (id, issue_id, reporter_id, description, image_url, created_at)
VALUES (:id, :issue_id, :reporter_id, :description, :image_url, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertReport, report); err != nil {
		return nil, fmt.Errorf("insert issue report: %w", err)
	}

	update := fmt.Sprintf(`UPDATE issues
SET report_count = report_count + 1,
    priority_score = %s,
    updated_at = $1
WHERE id = $2
RETURNING %s`, fmt.Sprintf(priorityExpr, "+ 1", ""), issueColumns)
	var issue models.Issue
	if err := tx.GetContext(ctx, &issue, update, now, report.IssueID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("merge report count: %w", err)
	}

	insertPoints := `INSERT INTO points_ledger (id, user_id, points, reason, issue_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, insertPoints, uuid.NewString(), report.ReporterID, award, models.PointsReasonDuplicateReport, report.IssueID, now); err != nil {
		return nil, fmt.Errorf("insert award ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit merge tx: %w", err)
	}
	return &issue, nil
}

// AcceptParams carries the authority's acceptance decision.
type AcceptParams struct {
	IssueID       string
	AuthorityID   string
	Budget        float64
	EstimatedDays int
	WorkStartDate time.Time
	Now           time.Time
}

// Accept transitions open -> accepted and creates the work details row.
// Returns sql.ErrNoRows when the issue is not in the open state.
func (r *IssueRepository) Accept(ctx context.Context, p AcceptParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin accept tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE issues SET status = $1, assigned_to = $2, updated_at = $3 WHERE id = $4 AND status = $5`,
		models.StatusAccepted, p.AuthorityID, p.Now, p.IssueID, models.StatusOpen)
	if err != nil {
		return fmt.Errorf("accept issue: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}

	insertDetails := `INSERT INTO issue_work_details (id, issue_id, budget_allocated, amount_used, estimated_days, work_start_date, accepted_at, accepted_by, progress_percentage, created_at, updated_at)
VALUES ($1, $2, $3, 0, $4, $5, $6, $7, 0, $6, $6)`
	if _, err := tx.ExecContext(ctx, insertDetails, uuid.NewString(), p.IssueID, p.Budget, p.EstimatedDays, p.WorkStartDate, p.Now, p.AuthorityID); err != nil {
		return fmt.Errorf("insert work details: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accept tx: %w", err)
	}
	return nil
}

// DeclineParams carries the authority's decline decision.
type DeclineParams struct {
	IssueID     string
	AuthorityID string
	ReporterID  string
	Category    models.DeclineCategory
	Reason      string
	Now         time.Time
}

// Decline transitions open -> declined, records the reason on a work
// details row, and reverses the reporter's positive ledger entries for the
// issue with one offsetting insert. Returns sql.ErrNoRows when the issue is
// not in the open state.
func (r *IssueRepository) Decline(ctx context.Context, p DeclineParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin decline tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE issues SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		models.StatusDeclined, p.Now, p.IssueID, models.StatusOpen)
	if err != nil {
		return fmt.Errorf("decline issue: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}

	insertDetails := `INSERT INTO issue_work_details (id, issue_id, amount_used, progress_percentage, accepted_by, decline_category, decline_reason, created_at, updated_at)
VALUES ($1, $2, 0, 0, $3, $4, $5, $6, $6)`
	if _, err := tx.ExecContext(ctx, insertDetails, uuid.NewString(), p.IssueID, p.AuthorityID, p.Category, p.Reason, p.Now); err != nil {
		return fmt.Errorf("insert decline details: %w", err)
	}

	var awarded int
	sumQuery := `SELECT COALESCE(SUM(points), 0) FROM points_ledger WHERE issue_id = $1 AND user_id = $2 AND points > 0`
	if err := tx.GetContext(ctx, &awarded, sumQuery, p.IssueID, p.ReporterID); err != nil {
		return fmt.Errorf("sum awarded points: %w", err)
	}
	if awarded > 0 {
		insertReversal := `INSERT INTO points_ledger (id, user_id, points, reason, issue_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.ExecContext(ctx, insertReversal, uuid.NewString(), p.ReporterID, -awarded, models.PointsReasonIssueDeclined, p.IssueID, p.Now); err != nil {
			return fmt.Errorf("insert reversal ledger entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decline tx: %w", err)
	}
	return nil
}

// StartWork transitions accepted -> work_started. Returns sql.ErrNoRows
// when the issue is not in the accepted state.
func (r *IssueRepository) StartWork(ctx context.Context, issueID string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE issues SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		models.StatusWorkStarted, now, issueID, models.StatusAccepted)
	if err != nil {
		return fmt.Errorf("start work: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ProgressParams carries a work progress update.
type ProgressParams struct {
	IssueID         string
	Percentage      int
	AmountUsed      *float64
	ExtensionReason *string
	ExtendedDate    *time.Time
	NewStatus       models.IssueStatus
	Now             time.Time
}

// UpdateProgress mutates the work details row and, when NewStatus is set,
// advances the issue status guarded by the allowed source states.
func (r *IssueRepository) UpdateProgress(ctx context.Context, p ProgressParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin progress tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	set := []string{"progress_percentage = $1", "updated_at = $2"}
	args := []interface{}{p.Percentage, p.Now}
	if p.AmountUsed != nil {
		set = append(set, fmt.Sprintf("amount_used = $%d", len(args)+1))
		args = append(args, *p.AmountUsed)
	}
	if p.ExtensionReason != nil {
		set = append(set, fmt.Sprintf("extension_reason = $%d", len(args)+1))
		args = append(args, *p.ExtensionReason)
		set = append(set, fmt.Sprintf("extended_date = $%d", len(args)+1))
		args = append(args, p.ExtendedDate)
	}
	args = append(args, p.IssueID)
	update := fmt.Sprintf("UPDATE issue_work_details SET %s WHERE issue_id = $%d", strings.Join(set, ", "), len(args))
	res, err := tx.ExecContext(ctx, update, args...)
	if err != nil {
		return fmt.Errorf("update work details: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}

	if p.NewStatus != "" {
		from := []string{string(models.StatusAccepted), string(models.StatusWorkStarted)}
		res, err := tx.ExecContext(ctx,
			`UPDATE issues SET status = $1, updated_at = $2 WHERE id = $3 AND status = ANY($4)`,
			p.NewStatus, p.Now, p.IssueID, pq.Array(from))
		if err != nil {
			return fmt.Errorf("advance issue status: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return sql.ErrNoRows
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit progress tx: %w", err)
	}
	return nil
}

// AddUpvote inserts the (user, issue) pair and bumps the cached count plus
// priority score atomically. Returns sql.ErrNoRows when the pair already
// exists.
func (r *IssueRepository) AddUpvote(ctx context.Context, issueID, userID string, now time.Time) (*models.Issue, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upvote tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO upvotes (id, issue_id, user_id, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (issue_id, user_id) DO NOTHING`,
		uuid.NewString(), issueID, userID, now)
	if err != nil {
		return nil, fmt.Errorf("insert upvote: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, sql.ErrNoRows
	}

	update := fmt.Sprintf(`UPDATE issues
SET upvote_count = upvote_count + 1,
    priority_score = %s,
    updated_at = $1
WHERE id = $2
RETURNING %s`, fmt.Sprintf(priorityExpr, "", "+ 1"), issueColumns)
	var issue models.Issue
	if err := tx.GetContext(ctx, &issue, update, now, issueID); err != nil {
		return nil, fmt.Errorf("bump upvote count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upvote tx: %w", err)
	}
	return &issue, nil
}

// RemoveUpvote deletes the (user, issue) pair and decrements the cached
// count plus priority score. Returns sql.ErrNoRows when no pair exists.
func (r *IssueRepository) RemoveUpvote(ctx context.Context, issueID, userID string, now time.Time) (*models.Issue, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin unvote tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`DELETE FROM upvotes WHERE issue_id = $1 AND user_id = $2`, issueID, userID)
	if err != nil {
		return nil, fmt.Errorf("delete upvote: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, sql.ErrNoRows
	}

	update := fmt.Sprintf(`UPDATE issues
SET upvote_count = upvote_count - 1,
    priority_score = %s,
    updated_at = $1
WHERE id = $2
RETURNING %s`, fmt.Sprintf(priorityExpr, "", "- 1"), issueColumns)
	var issue models.Issue
	if err := tx.GetContext(ctx, &issue, update, now, issueID); err != nil {
		return nil, fmt.Errorf("drop upvote count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit unvote tx: %w", err)
	}
	return &issue, nil
}

// DeleteOwned removes an issue while still open, restricted to its
// reporter. Dependent rows cascade via foreign keys. Returns sql.ErrNoRows
// when no matching open issue exists.
func (r *IssueRepository) DeleteOwned(ctx context.Context, issueID, reporterID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM issues WHERE id = $1 AND reporter_id = $2 AND status = $3`,
		issueID, reporterID, models.StatusOpen)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateOwned edits title/description while the issue is still open,
// restricted to its reporter. No status change, no log entry.
func (r *IssueRepository) UpdateOwned(ctx context.Context, issueID, reporterID, title, description string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE issues SET title = $1, description = $2, updated_at = $3 WHERE id = $4 AND reporter_id = $5 AND status = $6`,
		title, description, now, issueID, reporterID, models.StatusOpen)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// EscalationCandidates lists sweepable issues in a department created
// before the SLA cutoff.
func (r *IssueRepository) EscalationCandidates(ctx context.Context, departmentID string, cutoff time.Time) ([]models.Issue, error) {
	sweepable := make([]string, len(models.SweepableStatuses))
	for i, s := range models.SweepableStatuses {
		sweepable[i] = string(s)
	}
	query := fmt.Sprintf(`SELECT %s FROM issues
WHERE department_id = $1 AND status = ANY($2) AND created_at < $3`, issueColumns)
	var issues []models.Issue
	if err := r.db.SelectContext(ctx, &issues, query, departmentID, pq.Array(sweepable), cutoff); err != nil {
		return nil, fmt.Errorf("escalation candidates: %w", err)
	}
	return issues, nil
}

// Escalate force-transitions a sweepable issue to escalated and appends the
// status log entry. Returns false without error when the issue moved out of
// a sweepable state since candidate selection (concurrent authority action
// wins, the sweep skips it).
func (r *IssueRepository) Escalate(ctx context.Context, issueID, note string, now time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin escalate tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var oldStatus models.IssueStatus
	err = tx.GetContext(ctx, &oldStatus, `SELECT status FROM issues WHERE id = $1 FOR UPDATE`, issueID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("lock issue for escalation: %w", err)
	}
	sweepable := false
	for _, s := range models.SweepableStatuses {
		if oldStatus == s {
			sweepable = true
			break
		}
	}
	if !sweepable {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE issues SET status = $1, updated_at = $2 WHERE id = $3`,
		models.StatusEscalated, now, issueID); err != nil {
		return false, fmt.Errorf("escalate issue: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO status_logs (id, issue_id, old_status, new_status, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), issueID, oldStatus, models.StatusEscalated, note, now); err != nil {
		return false, fmt.Errorf("insert escalation log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit escalate tx: %w", err)
	}
	return true, nil
}

// RecalcPriorities rewrites the priority score of every non-closed issue
// from its current counters and age. Running it twice with no intervening
// change is a no-op on the stored values.
func (r *IssueRepository) RecalcPriorities(ctx context.Context, now time.Time) (int, error) {
	closed := make([]string, len(models.ClosedStatuses))
	for i, s := range models.ClosedStatuses {
		closed[i] = string(s)
	}
	update := fmt.Sprintf(`UPDATE issues
SET priority_score = %s
WHERE status <> ALL($2)`, fmt.Sprintf(priorityExpr, "", ""))
	res, err := r.db.ExecContext(ctx, update, now, pq.Array(closed))
	if err != nil {
		return 0, fmt.Errorf("recalculate priorities: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}
