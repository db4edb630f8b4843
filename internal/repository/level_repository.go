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

const levelDetailSelect = `SELECT l.id, l.name, l.department_id, l.created_at, l.updated_at, d.name AS department_name
FROM levels l JOIN departments d ON d.id = l.department_id`

// LevelRepository provides persistence for levels.
type LevelRepository struct {
	db *sqlx.DB
}

// NewLevelRepository creates a new level repository.
func NewLevelRepository(db *sqlx.DB) *LevelRepository {
	return &LevelRepository{db: db}
}

// List returns levels with department names.
func (r *LevelRepository) List(ctx context.Context, filter models.LevelFilter) ([]models.LevelDetail, int, error) {
	var b conditionBuilder
	if filter.DepartmentID != "" {
		b.add("l.department_id = ?", filter.DepartmentID)
	}
	if filter.Search != "" {
		b.add("LOWER(l.name) LIKE ?", likePattern(filter.Search))
	}
	where := b.where(" WHERE 1=1")
	order := orderBy(filter.SortBy, filter.SortOrder, map[string]string{"name": "l.name", "department": "d.name", "created_at": "l.created_at"}, "name")
	_, size, offset := pageBounds(filter.Page, filter.PageSize)

	var items []models.LevelDetail
	query := fmt.Sprintf("%s%s %s LIMIT %d OFFSET %d", levelDetailSelect, where, order, size, offset)
	if err := r.db.SelectContext(ctx, &items, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list levels: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM levels l"+where, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count levels: %w", err)
	}
	return items, total, nil
}

// FindByID returns a level with its department name.
func (r *LevelRepository) FindByID(ctx context.Context, id string) (*models.LevelDetail, error) {
	var l models.LevelDetail
	if err := r.db.GetContext(ctx, &l, levelDetailSelect+" WHERE l.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get level: %w", err)
	}
	return &l, nil
}

// ExistsInDepartment reports whether the department already has a level with the name.
func (r *LevelRepository) ExistsInDepartment(ctx context.Context, departmentID, name, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM levels WHERE department_id = $1 AND LOWER(name) = LOWER($2) AND id::text <> $3)`
	if err := r.db.GetContext(ctx, &exists, query, departmentID, name, excludeID); err != nil {
		return false, fmt.Errorf("check level name: %w", err)
	}
	return exists, nil
}

// CountByDepartment counts the levels of a department.
func (r *LevelRepository) CountByDepartment(ctx context.Context, departmentID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM levels WHERE department_id = $1`, departmentID); err != nil {
		return 0, fmt.Errorf("count levels: %w", err)
	}
	return total, nil
}

// CountClasses counts the classes of a level.
func (r *LevelRepository) CountClasses(ctx context.Context, levelID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM classes WHERE level_id = $1`, levelID); err != nil {
		return 0, fmt.Errorf("count level classes: %w", err)
	}
	return total, nil
}

// Create inserts a level.
func (r *LevelRepository) Create(ctx context.Context, l *models.Level) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	const query = `INSERT INTO levels (id, name, department_id, created_at, updated_at) VALUES (:id, :name, :department_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, l); err != nil {
		return fmt.Errorf("create level: %w", err)
	}
	return nil
}

// Update changes the name or department of a level.
func (r *LevelRepository) Update(ctx context.Context, l *models.Level) error {
	l.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, `UPDATE levels SET name = :name, department_id = :department_id, updated_at = :updated_at WHERE id = :id`, l)
	if err != nil {
		return fmt.Errorf("update level: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a level.
func (r *LevelRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM levels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete level: %w", err)
	}
	return requireAffected(res)
}
