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

// SubjectRepository provides persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns subjects filtered by program, class or name.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	var b conditionBuilder
	if filter.ProgramID != "" {
		b.add("program_id = ?", filter.ProgramID)
	}
	if filter.ClassID != "" {
		b.add("program_id = (SELECT program_id FROM classes WHERE id = ?)", filter.ClassID)
	}
	if filter.Search != "" {
		b.add("LOWER(name) LIKE ?", likePattern(filter.Search))
	}
	base := b.where("FROM subjects WHERE 1=1")
	order := orderBy(filter.SortBy, filter.SortOrder, map[string]string{"name": "name", "created_at": "created_at"}, "name")
	_, size, offset := pageBounds(filter.Page, filter.PageSize)

	var items []models.Subject
	query := fmt.Sprintf("SELECT id, name, program_id, created_at, updated_at %s %s LIMIT %d OFFSET %d", base, order, size, offset)
	if err := r.db.SelectContext(ctx, &items, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return items, total, nil
}

// FindByID returns a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var s models.Subject
	if err := r.db.GetContext(ctx, &s, `SELECT id, name, program_id, created_at, updated_at FROM subjects WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return &s, nil
}

// Exists reports whether a subject id is known.
func (r *SubjectRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM subjects WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("check subject: %w", err)
	}
	return exists, nil
}

// ExistsByName reports whether another subject uses the name.
func (r *SubjectRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM subjects WHERE LOWER(name) = LOWER($1) AND id::text <> $2)`
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check subject name: %w", err)
	}
	return exists, nil
}

// Create inserts a subject.
func (r *SubjectRepository) Create(ctx context.Context, s *models.Subject) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	const query = `INSERT INTO subjects (id, name, program_id, created_at, updated_at) VALUES (:id, :name, :program_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update renames a subject. Program membership is managed by ProgramRepository.
func (r *SubjectRepository) Update(ctx context.Context, s *models.Subject) error {
	s.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, `UPDATE subjects SET name = :name, updated_at = :updated_at WHERE id = :id`, s)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a subject and its program when the subject was the last member.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	return deleteMember(ctx, r.db, "subjects", id)
}
