package models

import "time"

// IssueCategory classifies a reported civic problem.
type IssueCategory string

const (
	CategoryRoads        IssueCategory = "roads"
	CategoryWater        IssueCategory = "water"
	CategoryElectricity  IssueCategory = "electricity"
	CategorySanitation   IssueCategory = "sanitation"
	CategoryPublicSafety IssueCategory = "public_safety"
	CategoryParks        IssueCategory = "parks"
	CategoryOther        IssueCategory = "other"
)

// Valid reports whether the category is one of the known values.
func (c IssueCategory) Valid() bool {
	switch c {
	case CategoryRoads, CategoryWater, CategoryElectricity, CategorySanitation,
		CategoryPublicSafety, CategoryParks, CategoryOther:
		return true
	}
	return false
}

// IssueStatus models the canonical issue lifecycle:
// open -> accepted|declined, accepted -> work_started,
// work_started -> completed. The sweeper may force any of
// open/accepted/work_started into escalated.
type IssueStatus string

const (
	StatusOpen        IssueStatus = "open"
	StatusAccepted    IssueStatus = "accepted"
	StatusDeclined    IssueStatus = "declined"
	StatusWorkStarted IssueStatus = "work_started"
	StatusCompleted   IssueStatus = "completed"
	StatusEscalated   IssueStatus = "escalated"
)

// ClosedStatuses are excluded from duplicate candidate selection.
var ClosedStatuses = []IssueStatus{StatusCompleted, StatusDeclined}

// SweepableStatuses are subject to SLA escalation.
var SweepableStatuses = []IssueStatus{StatusOpen, StatusAccepted, StatusWorkStarted}

// Issue is the central reported-problem entity.
type Issue struct {
	ID            string        `db:"id" json:"id"`
	Title         string        `db:"title" json:"title"`
	Description   string        `db:"description" json:"description"`
	Category      IssueCategory `db:"category" json:"category"`
	Severity      int           `db:"severity" json:"severity"`
	Lat           float64       `db:"lat" json:"lat"`
	Lng           float64       `db:"lng" json:"lng"`
	Status        IssueStatus   `db:"status" json:"status"`
	ReportCount   int           `db:"report_count" json:"report_count"`
	UpvoteCount   int           `db:"upvote_count" json:"upvote_count"`
	PriorityScore int           `db:"priority_score" json:"priority_score"`
	DepartmentID  *string       `db:"department_id" json:"department_id,omitempty"`
	ReporterID    string        `db:"reporter_id" json:"reporter_id"`
	AssignedTo    *string       `db:"assigned_to" json:"assigned_to,omitempty"`
	ImageURL      *string       `db:"image_url" json:"image_url,omitempty"`
	CancelReason  *string       `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// IssueFilter captures listing criteria. Role scoping is expressed as
// filter values threaded from the handler, not re-derived downstream.
type IssueFilter struct {
	Category     IssueCategory
	Status       IssueStatus
	DepartmentID string
	ReporterID   string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// IssueCandidate is the slim projection handed to the duplicate oracle.
type IssueCandidate struct {
	ID          string `db:"id" json:"id"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`
}

// Upvote is a unique (user, issue) pair; its existence toggles.
type Upvote struct {
	ID        string    `db:"id" json:"id"`
	IssueID   string    `db:"issue_id" json:"issue_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
