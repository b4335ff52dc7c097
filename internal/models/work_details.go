package models

import "time"

// DeclineCategory enumerates the allowed decline reasons.
type DeclineCategory string

const (
	DeclineDuplicate            DeclineCategory = "duplicate"
	DeclineInvalid              DeclineCategory = "invalid"
	DeclineOutsideJurisdiction  DeclineCategory = "outside_jurisdiction"
	DeclineInsufficientEvidence DeclineCategory = "insufficient_evidence"
	DeclineOther                DeclineCategory = "other"
)

// Valid reports whether the decline category is a known value.
func (c DeclineCategory) Valid() bool {
	switch c {
	case DeclineDuplicate, DeclineInvalid, DeclineOutsideJurisdiction,
		DeclineInsufficientEvidence, DeclineOther:
		return true
	}
	return false
}

// IssueWorkDetails is the one-to-one extension of an issue created on
// accept or decline. Never created twice for the same issue.
type IssueWorkDetails struct {
	ID                 string           `db:"id" json:"id"`
	IssueID            string           `db:"issue_id" json:"issue_id"`
	BudgetAllocated    float64          `db:"budget_allocated" json:"budget_allocated"`
	AmountUsed         float64          `db:"amount_used" json:"amount_used"`
	EstimatedDays      int              `db:"estimated_days" json:"estimated_days"`
	WorkStartDate      *time.Time       `db:"work_start_date" json:"work_start_date,omitempty"`
	AcceptedAt         *time.Time       `db:"accepted_at" json:"accepted_at,omitempty"`
	AcceptedBy         *string          `db:"accepted_by" json:"accepted_by,omitempty"`
	ProgressPercentage int              `db:"progress_percentage" json:"progress_percentage"`
	ExtensionReason    *string          `db:"extension_reason" json:"extension_reason,omitempty"`
	ExtendedDate       *time.Time       `db:"extended_date" json:"extended_date,omitempty"`
	DeclineCategory    *DeclineCategory `db:"decline_category" json:"decline_category,omitempty"`
	DeclineReason      *string          `db:"decline_reason" json:"decline_reason,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}
