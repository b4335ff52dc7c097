package models

import "time"

// NotificationType tags the triggering event.
type NotificationType string

const (
	NotificationIssueEscalated NotificationType = "issue_escalated"
	NotificationIssueDeclined  NotificationType = "issue_declined"
	NotificationIssueAccepted  NotificationType = "issue_accepted"
)

// Notification is a persisted message for a single user. Delivery is
// fire-and-forget from the core's perspective; failures never roll back
// the transition that produced them.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Message   string           `db:"message" json:"message"`
	Type      NotificationType `db:"type" json:"type"`
	IssueID   *string          `db:"issue_id" json:"issue_id,omitempty"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
