package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-api/internal/models"
)

// DepartmentRepository provides persistence for departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository creates a new department repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// List returns departments with optional search and pagination.
func (r *DepartmentRepository) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, int, error) {
	var b conditionBuilder
	if filter.Search != "" {
		b.add("LOWER(name) LIKE ?", likePattern(filter.Search))
	}
	base := b.where("FROM departments WHERE 1=1")
	order := orderBy(filter.SortBy, filter.SortOrder, map[string]string{"name": "name", "created_at": "created_at"}, "name")
	_, size, offset := pageBounds(filter.Page, filter.PageSize)

	var items []models.Department
	query := fmt.Sprintf("SELECT id, name, created_at, updated_at %s %s LIMIT %d OFFSET %d", base, order, size, offset)
	if err := r.db.SelectContext(ctx, &items, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list departments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count departments: %w", err)
	}
	return items, total, nil
}

// FindByID returns a department by id.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.Department, error) {
	var d models.Department
	if err := r.db.GetContext(ctx, &d, `SELECT id, name, created_at, updated_at FROM departments WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get department: %w", err)
	}
	return &d, nil
}

// ExistsByName reports whether another department uses the name.
func (r *DepartmentRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM departments WHERE LOWER(name) = LOWER($1) AND id::text <> $2)`
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check department name: %w", err)
	}
	return exists, nil
}

// Create inserts a department.
func (r *DepartmentRepository) Create(ctx context.Context, d *models.Department) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	const query = `INSERT INTO departments (id, name, created_at, updated_at) VALUES (:id, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update renames a department.
func (r *DepartmentRepository) Update(ctx context.Context, d *models.Department) error {
	d.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, `UPDATE departments SET name = :name, updated_at = :updated_at WHERE id = :id`, d)
	if err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a department.
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	return requireAffected(res)
}
