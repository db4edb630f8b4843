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

const absenceColumns = `a.id, a.absence_date, a.justified, a.remark, a.status, a.justification_text, a.student_id, a.created_at, a.updated_at`

// AbsenceCounts aggregates absences per justification and status.
type AbsenceCounts struct {
	Total     int
	Justified int
	ByStatus  map[models.AbsenceStatus]int
}

// AbsenceRepository provides persistence for student absences.
type AbsenceRepository struct {
	db *sqlx.DB
}

// NewAbsenceRepository creates a new absence repository.
func NewAbsenceRepository(db *sqlx.DB) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

// List returns absences filtered by student, class, status, justification or date.
func (r *AbsenceRepository) List(ctx context.Context, filter models.AbsenceFilter) ([]models.Absence, int, error) {
	var b conditionBuilder
	if filter.StudentID != "" {
		b.add("a.student_id = ?", filter.StudentID)
	}
	if filter.ClassID != "" {
		b.add("u.class_id = ?", filter.ClassID)
	}
	if filter.Status != "" {
		b.add("a.status = ?", filter.Status)
	}
	if filter.Justified != nil {
		b.add("a.justified = ?", *filter.Justified)
	}
	if filter.From != nil {
		b.add("a.absence_date >= ?", *filter.From)
	}
	if filter.To != nil {
		b.add("a.absence_date <= ?", *filter.To)
	}
	base := b.where("FROM absences a JOIN users u ON u.id = a.student_id WHERE 1=1")
	order := orderBy(filter.SortBy, filter.SortOrder, map[string]string{"date": "a.absence_date", "status": "a.status"}, "date")
	_, size, offset := pageBounds(filter.Page, filter.PageSize)

	var items []models.Absence
	query := fmt.Sprintf("SELECT %s %s %s LIMIT %d OFFSET %d", absenceColumns, base, order, size, offset)
	if err := r.db.SelectContext(ctx, &items, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list absences: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count absences: %w", err)
	}
	return items, total, nil
}

// FindByID returns an absence by id.
func (r *AbsenceRepository) FindByID(ctx context.Context, id string) (*models.Absence, error) {
	var a models.Absence
	if err := r.db.GetContext(ctx, &a, fmt.Sprintf("SELECT %s FROM absences a WHERE a.id = $1", absenceColumns), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get absence: %w", err)
	}
	return &a, nil
}

// Create inserts an absence.
func (r *AbsenceRepository) Create(ctx context.Context, a *models.Absence) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	const query = `INSERT INTO absences (id, absence_date, justified, remark, status, justification_text, student_id, created_at, updated_at)
VALUES (:id, :absence_date, :justified, :remark, :status, :justification_text, :student_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create absence: %w", err)
	}
	return nil
}

// Update rewrites an absence.
func (r *AbsenceRepository) Update(ctx context.Context, a *models.Absence) error {
	a.UpdatedAt = time.Now().UTC()
	const query = `UPDATE absences SET absence_date = :absence_date, justified = :justified, remark = :remark, status = :status,
justification_text = :justification_text, student_id = :student_id, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return fmt.Errorf("update absence: %w", err)
	}
	return requireAffected(res)
}

// Delete removes an absence.
func (r *AbsenceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM absences WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete absence: %w", err)
	}
	return requireAffected(res)
}

// CountsByStudent aggregates the absences of a student.
func (r *AbsenceRepository) CountsByStudent(ctx context.Context, studentID string) (AbsenceCounts, error) {
	return r.counts(ctx, "a.student_id = $1", studentID)
}

// CountsByClass aggregates the absences of every student in a class.
func (r *AbsenceRepository) CountsByClass(ctx context.Context, classID string) (AbsenceCounts, error) {
	return r.counts(ctx, "u.class_id = $1", classID)
}

func (r *AbsenceRepository) counts(ctx context.Context, condition string, arg string) (AbsenceCounts, error) {
	query := fmt.Sprintf(`SELECT a.status, COUNT(*) AS total, COUNT(*) FILTER (WHERE a.justified) AS justified
FROM absences a JOIN users u ON u.id = a.student_id
WHERE %s GROUP BY a.status`, condition)

	var rows []struct {
		Status    models.AbsenceStatus `db:"status"`
		Total     int                  `db:"total"`
		Justified int                  `db:"justified"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, arg); err != nil {
		return AbsenceCounts{}, fmt.Errorf("count absences: %w", err)
	}

	counts := AbsenceCounts{ByStatus: make(map[models.AbsenceStatus]int, len(rows))}
	for _, row := range rows {
		counts.Total += row.Total
		counts.Justified += row.Justified
		counts.ByStatus[row.Status] = row.Total
	}
	return counts, nil
}

// TopAbsentStudents ranks the students of a class by absence count.
func (r *AbsenceRepository) TopAbsentStudents(ctx context.Context, classID string, limit int) ([]models.AbsentStudent, error) {
	const query = `SELECT u.id AS student_id, u.first_name || ' ' || u.last_name AS student_name, COUNT(a.id) AS absences
FROM users u JOIN absences a ON a.student_id = u.id
WHERE u.class_id = $1
GROUP BY u.id, u.first_name, u.last_name
ORDER BY absences DESC, student_name ASC
LIMIT $2`
	var items []models.AbsentStudent
	if err := r.db.SelectContext(ctx, &items, query, classID, limit); err != nil {
		return nil, fmt.Errorf("rank absent students: %w", err)
	}
	return items, nil
}
