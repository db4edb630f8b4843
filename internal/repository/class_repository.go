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

const classColumns = `c.id, c.name, c.level_id, c.program_id, c.created_at, c.updated_at`

// ClassRepository provides persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes filtered by level, department, program or subject.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	var b conditionBuilder
	if filter.LevelID != "" {
		b.add("c.level_id = ?", filter.LevelID)
	}
	if filter.DepartmentID != "" {
		b.add("c.level_id IN (SELECT id FROM levels WHERE department_id = ?)", filter.DepartmentID)
	}
	if filter.ProgramID != "" {
		b.add("c.program_id = ?", filter.ProgramID)
	}
	if filter.SubjectID != "" {
		b.add("c.program_id = (SELECT program_id FROM subjects WHERE id = ?)", filter.SubjectID)
	}
	if filter.Search != "" {
		b.add("LOWER(c.name) LIKE ?", likePattern(filter.Search))
	}
	base := b.where("FROM classes c WHERE 1=1")
	order := orderBy(filter.SortBy, filter.SortOrder, map[string]string{"name": "c.name", "created_at": "c.created_at"}, "name")
	_, size, offset := pageBounds(filter.Page, filter.PageSize)

	var items []models.Class
	query := fmt.Sprintf("SELECT %s %s %s LIMIT %d OFFSET %d", classColumns, base, order, size, offset)
	if err := r.db.SelectContext(ctx, &items, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return items, total, nil
}

// FindByID returns a class by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	var c models.Class
	if err := r.db.GetContext(ctx, &c, fmt.Sprintf("SELECT %s FROM classes c WHERE c.id = $1", classColumns), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get class: %w", err)
	}
	return &c, nil
}

// ExistsByName reports whether another class uses the name.
func (r *ClassRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM classes WHERE LOWER(name) = LOWER($1) AND id::text <> $2)`
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check class name: %w", err)
	}
	return exists, nil
}

// CountByLevel counts the classes of a level.
func (r *ClassRepository) CountByLevel(ctx context.Context, levelID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM classes WHERE level_id = $1`, levelID); err != nil {
		return 0, fmt.Errorf("count classes by level: %w", err)
	}
	return total, nil
}

// CountByProgram counts the classes following a program.
func (r *ClassRepository) CountByProgram(ctx context.Context, programID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM classes WHERE program_id = $1`, programID); err != nil {
		return 0, fmt.Errorf("count classes by program: %w", err)
	}
	return total, nil
}

// Create inserts a class.
func (r *ClassRepository) Create(ctx context.Context, c *models.Class) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	const query = `INSERT INTO classes (id, name, level_id, program_id, created_at, updated_at) VALUES (:id, :name, :level_id, :program_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update changes name and level. Program membership is managed by ProgramRepository.
func (r *ClassRepository) Update(ctx context.Context, c *models.Class) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, `UPDATE classes SET name = :name, level_id = :level_id, updated_at = :updated_at WHERE id = :id`, c)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a class and its program when the class was the last member.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	return deleteMember(ctx, r.db, "classes", id)
}
