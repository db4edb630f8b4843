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

const activityColumns = `id, type, title, activity_date, resources, description, subject_id, created_at, updated_at`

// ActivityRepository provides persistence for graded activities.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// List returns activities matching the filter.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error) {
	var b conditionBuilder
	if filter.SubjectID != "" {
		b.add("subject_id = ?", filter.SubjectID)
	}
	if filter.Type != "" {
		b.add("type = ?", filter.Type)
	}
	if filter.From != nil {
		b.add("activity_date >= ?", *filter.From)
	}
	if filter.To != nil {
		b.add("activity_date < ?", *filter.To)
	}
	if filter.Search != "" {
		b.add("LOWER(title) LIKE ?", likePattern(filter.Search))
	}
	base := b.where("FROM activities WHERE 1=1")
	order := orderBy(filter.SortBy, filter.SortOrder, map[string]string{
		"title":      "title",
		"date":       "activity_date",
		"created_at": "created_at",
	}, "date")
	_, size, offset := pageBounds(filter.Page, filter.PageSize)

	var items []models.Activity
	query := fmt.Sprintf("SELECT %s %s %s LIMIT %d OFFSET %d", activityColumns, base, order, size, offset)
	if err := r.db.SelectContext(ctx, &items, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}
	return items, total, nil
}

// FindByID returns an activity by id.
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	var a models.Activity
	if err := r.db.GetContext(ctx, &a, fmt.Sprintf("SELECT %s FROM activities WHERE id = $1", activityColumns), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return &a, nil
}

// Create inserts an activity.
func (r *ActivityRepository) Create(ctx context.Context, a *models.Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	const query = `INSERT INTO activities (id, type, title, activity_date, resources, description, subject_id, created_at, updated_at)
VALUES (:id, :type, :title, :activity_date, :resources, :description, :subject_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// Update rewrites an activity.
func (r *ActivityRepository) Update(ctx context.Context, a *models.Activity) error {
	a.UpdatedAt = time.Now().UTC()
	const query = `UPDATE activities SET type = :type, title = :title, activity_date = :activity_date, resources = :resources,
description = :description, subject_id = :subject_id, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	return requireAffected(res)
}

// Delete removes an activity and, through the foreign key, its grades.
func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return requireAffected(res)
}
