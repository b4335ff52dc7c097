package models

import "time"

// Department routes issues by category and defines the SLA window used
// by the escalation sweeper.
type Department struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	SLAHours    int       `db:"sla_hours" json:"sla_hours"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentPerformance aggregates issue counts for admin reporting.
type DepartmentPerformance struct {
	DepartmentID    string  `db:"department_id" json:"department_id"`
	Name            string  `db:"name" json:"name"`
	SLAHours        int     `db:"sla_hours" json:"sla_hours"`
	OpenCount       int     `db:"open_count" json:"open_count"`
	InProgressCount int     `db:"in_progress_count" json:"in_progress_count"`
	EscalatedCount  int     `db:"escalated_count" json:"escalated_count"`
	CompletedCount  int     `db:"completed_count" json:"completed_count"`
	DeclinedCount   int     `db:"declined_count" json:"declined_count"`
	AvgPriority     float64 `db:"avg_priority" json:"avg_priority"`
}
