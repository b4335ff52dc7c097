package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/civicdesk/civicdesk-api/internal/models"
)

// DepartmentRepository manages persistence for departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs a new repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

const departmentColumns = `id, name, description, sla_hours, created_at, updated_at`

// List returns all departments ordered by name.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	query := fmt.Sprintf("SELECT %s FROM departments ORDER BY name", departmentColumns)
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// GetByID loads a single department.
func (r *DepartmentRepository) GetByID(ctx context.Context, id string) (*models.Department, error) {
	var dept models.Department
	query := fmt.Sprintf("SELECT %s FROM departments WHERE id = $1", departmentColumns)
	if err := r.db.GetContext(ctx, &dept, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get department: %w", err)
	}
	return &dept, nil
}

// GetByName resolves a department by its exact name. Used by intake routing.
func (r *DepartmentRepository) GetByName(ctx context.Context, name string) (*models.Department, error) {
	var dept models.Department
	query := fmt.Sprintf("SELECT %s FROM departments WHERE name = $1", departmentColumns)
	if err := r.db.GetContext(ctx, &dept, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get department by name: %w", err)
	}
	return &dept, nil
}

// Create inserts a new department.
func (r *DepartmentRepository) Create(ctx context.Context, dept *models.Department) error {
	if dept.ID == "" {
		dept.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if dept.CreatedAt.IsZero() {
		dept.CreatedAt = now
	}
	dept.UpdatedAt = now
	query := `INSERT INTO departments (id, name, description, sla_hours, created_at, updated_at)
VALUES (:id, :name, :description, :sla_hours, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dept); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update modifies an existing department.
func (r *DepartmentRepository) Update(ctx context.Context, dept *models.Department) error {
	dept.UpdatedAt = time.Now().UTC()
	query := `UPDATE departments SET name = :name, description = :description, sla_hours = :sla_hours, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, dept)
	if err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Performance aggregates issue counts per department for admin reporting.
func (r *DepartmentRepository) Performance(ctx context.Context) ([]models.DepartmentPerformance, error) {
	query := `SELECT d.id AS department_id, d.name, d.sla_hours,
        COALESCE(SUM(CASE WHEN i.status = 'open' THEN 1 ELSE 0 END), 0) AS open_count,
        COALESCE(SUM(CASE WHEN i.status IN ('accepted', 'work_started') THEN 1 ELSE 0 END), 0) AS in_progress_count,
        COALESCE(SUM(CASE WHEN i.status = 'escalated' THEN 1 ELSE 0 END), 0) AS escalated_count,
        COALESCE(SUM(CASE WHEN i.status = 'completed' THEN 1 ELSE 0 END), 0) AS completed_count,
        COALESCE(SUM(CASE WHEN i.status = 'declined' THEN 1 ELSE 0 END), 0) AS declined_count,
        COALESCE(AVG(i.priority_score), 0) AS avg_priority
FROM departments d
LEFT JOIN issues i ON i.department_id = d.id
GROUP BY d.id, d.name, d.sla_hours
ORDER BY d.name`
	var rows []models.DepartmentPerformance
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("department performance: %w", err)
	}
	return rows, nil
}
