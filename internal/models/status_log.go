package models

import "time"

// StatusLog is the append-only audit trail of status transitions.
// OldStatus is nil only for the synthetic initial open entry.
type StatusLog struct {
	ID        string       `db:"id" json:"id"`
	IssueID   string       `db:"issue_id" json:"issue_id"`
	OldStatus *IssueStatus `db:"old_status" json:"old_status,omitempty"`
	NewStatus IssueStatus  `db:"new_status" json:"new_status"`
	Note      *string      `db:"note" json:"note,omitempty"`
	ChangedBy *string      `db:"changed_by" json:"changed_by,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}
