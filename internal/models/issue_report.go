package models

import "time"

// IssueReport records a citizen submission folded into an existing issue
// by duplicate detection. Immutable once created.
type IssueReport struct {
	ID          string    `db:"id" json:"id"`
	IssueID     string    `db:"issue_id" json:"issue_id"`
	ReporterID  string    `db:"reporter_id" json:"reporter_id"`
	Description string    `db:"description" json:"description"`
	ImageURL    *string   `db:"image_url" json:"image_url,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
