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

const gradeColumns = `id, value, student_id, activity_id, created_at, updated_at`

// GradeRepository provides persistence for grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns grades for a student or an activity.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error) {
	var b conditionBuilder
	if filter.StudentID != "" {
		b.add("student_id = ?", filter.StudentID)
	}
	if filter.ActivityID != "" {
		b.add("activity_id = ?", filter.ActivityID)
	}
	base := b.where("FROM grades WHERE 1=1")
	order := orderBy(filter.SortBy, filter.SortOrder, map[string]string{"value": "value", "created_at": "created_at"}, "created_at")
	_, size, offset := pageBounds(filter.Page, filter.PageSize)

	var items []models.Grade
	query := fmt.Sprintf("SELECT %s %s %s LIMIT %d OFFSET %d", gradeColumns, base, order, size, offset)
	if err := r.db.SelectContext(ctx, &items, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list grades: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count grades: %w", err)
	}
	return items, total, nil
}

// FindByID returns a grade by id.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	var g models.Grade
	if err := r.db.GetContext(ctx, &g, fmt.Sprintf("SELECT %s FROM grades WHERE id = $1", gradeColumns), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get grade: %w", err)
	}
	return &g, nil
}

// Exists reports whether the student already has a grade for the activity.
func (r *GradeRepository) Exists(ctx context.Context, studentID, activityID, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM grades WHERE student_id = $1 AND activity_id = $2 AND id::text <> $3)`
	if err := r.db.GetContext(ctx, &exists, query, studentID, activityID, excludeID); err != nil {
		return false, fmt.Errorf("check grade: %w", err)
	}
	return exists, nil
}

// Create inserts a grade.
func (r *GradeRepository) Create(ctx context.Context, g *models.Grade) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now
	const query = `INSERT INTO grades (id, value, student_id, activity_id, created_at, updated_at) VALUES (:id, :value, :student_id, :activity_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, g); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// Update rewrites a grade.
func (r *GradeRepository) Update(ctx context.Context, g *models.Grade) error {
	g.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grades SET value = :value, student_id = :student_id, activity_id = :activity_id, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, g)
	if err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a grade.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete grade: %w", err)
	}
	return requireAffected(res)
}

// DeleteByStudent removes every grade of a student.
func (r *GradeRepository) DeleteByStudent(ctx context.Context, studentID string) (int64, error) {
	return r.deleteWhere(ctx, "student_id", studentID)
}

// DeleteByActivity removes every grade of an activity.
func (r *GradeRepository) DeleteByActivity(ctx context.Context, activityID string) (int64, error) {
	return r.deleteWhere(ctx, "activity_id", activityID)
}

func (r *GradeRepository) deleteWhere(ctx context.Context, column, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM grades WHERE %s = $1", column), id)
	if err != nil {
		return 0, fmt.Errorf("delete grades by %s: %w", column, err)
	}
	return res.RowsAffected()
}

// AverageByStudent returns the mean grade of a student.
func (r *GradeRepository) AverageByStudent(ctx context.Context, studentID string) (models.GradeAverage, error) {
	return r.average(ctx, "student_id", studentID)
}

// AverageByActivity returns the mean grade of an activity.
func (r *GradeRepository) AverageByActivity(ctx context.Context, activityID string) (models.GradeAverage, error) {
	return r.average(ctx, "activity_id", activityID)
}

func (r *GradeRepository) average(ctx context.Context, column, id string) (models.GradeAverage, error) {
	var avg models.GradeAverage
	query := fmt.Sprintf("SELECT COUNT(*) AS count, COALESCE(AVG(value), 0)::float8 AS average FROM grades WHERE %s = $1", column)
	if err := r.db.GetContext(ctx, &avg, query, id); err != nil {
		return models.GradeAverage{}, fmt.Errorf("average grades by %s: %w", column, err)
	}
	return avg, nil
}
