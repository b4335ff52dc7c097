package models

import "time"

// Ledger reason strings written by the core flows.
const (
	PointsReasonNewIssue        = "New issue reported"
	PointsReasonDuplicateReport = "Duplicate issue report"
	PointsReasonIssueDeclined   = "Issue declined by authority"
)

// PointsLedgerEntry is an append-only signed points record. Reversals are
// offsetting inserts, never mutations.
type PointsLedgerEntry struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Points    int       `db:"points" json:"points"`
	Reason    string    `db:"reason" json:"reason"`
	IssueID   *string   `db:"issue_id" json:"issue_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LeaderboardEntry is a grouped ledger sum per user.
type LeaderboardEntry struct {
	UserID      string `db:"user_id" json:"user_id"`
	FullName    string `db:"full_name" json:"full_name"`
	TotalPoints int    `db:"total_points" json:"total_points"`
}
