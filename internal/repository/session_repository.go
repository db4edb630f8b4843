package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-api/internal/models"
)

const sessionColumns = `id, start_time, end_time, teacher_id, subject_id, created_at, updated_at`

const sessionDetailSelect = `SELECT s.id, s.start_time, s.end_time, s.teacher_id, s.subject_id, s.created_at, s.updated_at,
	u.first_name || ' ' || u.last_name AS teacher_name, sub.name AS subject_name
FROM sessions s
JOIN users u ON u.id = s.teacher_id
JOIN subjects sub ON sub.id = s.subject_id`

// SessionTx is the view of the sessions table available while a teacher lock is held.
type SessionTx interface {
	FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
}

// SessionRepository provides persistence for teaching sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// WithTeacherLock runs fn in a transaction holding a per-teacher advisory lock,
// so overlap checks and writes for one teacher are serialised. Locks are taken
// in sorted order when a reassignment touches two teachers.
func (r *SessionRepository) WithTeacherLock(ctx context.Context, teacherIDs []string, fn func(tx SessionTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, id := range sortedUnique(teacherIDs) {
		if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, id); err != nil {
			return fmt.Errorf("lock teacher schedule: %w", err)
		}
	}

	if err = fn(&sessionStore{ext: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit session transaction: %w", err)
	}
	return nil
}

// FindOverlapping returns sessions intersecting the half-open query range.
func (r *SessionRepository) FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]models.Session, error) {
	return (&sessionStore{ext: r.db}).FindOverlapping(ctx, q)
}

// Create inserts a session outside of any teacher lock.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	return (&sessionStore{ext: r.db}).Create(ctx, session)
}

// Update persists a session outside of any teacher lock.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	return (&sessionStore{ext: r.db}).Update(ctx, session)
}

// FindByID returns a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1", sessionColumns)
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// List returns sessions with optional filtering and pagination.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	var b conditionBuilder
	if filter.TeacherID != "" {
		b.add("s.teacher_id = ?", filter.TeacherID)
	}
	if filter.SubjectID != "" {
		b.add("s.subject_id = ?", filter.SubjectID)
	}
	if filter.From != nil {
		b.add("s.end_time > ?", *filter.From)
	}
	if filter.To != nil {
		b.add("s.start_time < ?", *filter.To)
	}
	where := b.where(" WHERE 1=1")

	order := orderBy(filter.SortBy, filter.SortOrder, map[string]string{
		"start_time": "s.start_time",
		"end_time":   "s.end_time",
		"created_at": "s.created_at",
	}, "start_time")
	_, size, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s %s LIMIT %d OFFSET %d", sessionDetailSelect, where, order, size, offset)
	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM sessions s"+where, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// ListByTeacher returns a teacher's sessions in chronological order.
func (r *SessionRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE teacher_id = $1 ORDER BY start_time", sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, teacherID); err != nil {
		return nil, fmt.Errorf("list sessions by teacher: %w", err)
	}
	return sessions, nil
}

// ListWithinRange returns sessions entirely contained in [from, to], optionally for one teacher.
func (r *SessionRepository) ListWithinRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.SessionDetail, error) {
	query := sessionDetailSelect + " WHERE s.start_time >= $1 AND s.end_time <= $2"
	args := []interface{}{from, to}
	if teacherID != "" {
		query += " AND s.teacher_id = $3"
		args = append(args, teacherID)
	}
	query += " ORDER BY s.start_time"

	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions within range: %w", err)
	}
	return sessions, nil
}

// TotalTeacherMinutes sums the duration of a teacher's sessions contained in [from, to].
func (r *SessionRepository) TotalTeacherMinutes(ctx context.Context, teacherID string, from, to time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(EXTRACT(EPOCH FROM (end_time - start_time)) / 60), 0)
FROM sessions WHERE teacher_id = $1 AND start_time >= $2 AND end_time <= $3`
	var minutes float64
	if err := r.db.GetContext(ctx, &minutes, query, teacherID, from, to); err != nil {
		return 0, fmt.Errorf("sum teacher minutes: %w", err)
	}
	return minutes, nil
}

// CountByTeacher counts a teacher's sessions.
func (r *SessionRepository) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sessions WHERE teacher_id = $1`, teacherID); err != nil {
		return 0, fmt.Errorf("count sessions by teacher: %w", err)
	}
	return total, nil
}

// CountBySubject counts a subject's sessions.
func (r *SessionRepository) CountBySubject(ctx context.Context, subjectID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sessions WHERE subject_id = $1`, subjectID); err != nil {
		return 0, fmt.Errorf("count sessions by subject: %w", err)
	}
	return total, nil
}

// Delete removes a session by id.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireAffected(res)
}

// DeleteByTeacher removes every session of a teacher and returns the count.
func (r *SessionRepository) DeleteByTeacher(ctx context.Context, teacherID string) (int64, error) {
	return r.deleteWhere(ctx, "teacher_id", teacherID)
}

// DeleteBySubject removes every session of a subject and returns the count.
func (r *SessionRepository) DeleteBySubject(ctx context.Context, subjectID string) (int64, error) {
	return r.deleteWhere(ctx, "subject_id", subjectID)
}

func (r *SessionRepository) deleteWhere(ctx context.Context, column, value string) (int64, error) {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM sessions WHERE %s = $1", column), value)
	if err != nil {
		return 0, fmt.Errorf("delete sessions by %s: %w", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

type sessionStore struct {
	ext sqlx.ExtContext
}

func (s *sessionStore) FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE start_time < $1 AND end_time > $2", sessionColumns)
	args := []interface{}{q.End, q.Start}
	if q.TeacherID != "" {
		args = append(args, q.TeacherID)
		query += fmt.Sprintf(" AND teacher_id = $%d", len(args))
	}
	if q.ExcludeID != "" {
		args = append(args, q.ExcludeID)
		query += fmt.Sprintf(" AND id <> $%d", len(args))
	}
	query += " ORDER BY start_time"

	var sessions []models.Session
	if err := sqlx.SelectContext(ctx, s.ext, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping sessions: %w", err)
	}
	return sessions, nil
}

func (s *sessionStore) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO sessions (id, start_time, end_time, teacher_id, subject_id, created_at, updated_at) VALUES (:id, :start_time, :end_time, :teacher_id, :subject_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, s.ext, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *sessionStore) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions SET start_time = :start_time, end_time = :end_time, teacher_id = :teacher_id, subject_id = :subject_id, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, s.ext, query, session)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireAffected(res)
}

func sortedUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
