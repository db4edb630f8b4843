package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/internal/repository"
	"github.com/noah-isme/school-api/pkg/cache"
	"github.com/noah-isme/school-api/pkg/database"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
	"github.com/noah-isme/school-api/pkg/events"
)

const defaultMinSessionDuration = 30 * time.Minute

type sessionRepository interface {
	WithTeacherLock(ctx context.Context, teacherIDs []string, fn func(tx repository.SessionTx) error) error
	FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]models.Session, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Session, error)
	ListWithinRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.SessionDetail, error)
	TotalTeacherMinutes(ctx context.Context, teacherID string, from, to time.Time) (float64, error)
	Delete(ctx context.Context, id string) error
	DeleteByTeacher(ctx context.Context, teacherID string) (int64, error)
	DeleteBySubject(ctx context.Context, subjectID string) (int64, error)
}

type sessionTeacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsWithRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}

type sessionSubjectLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// SessionRequest is the payload for booking or rescheduling a session.
type SessionRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
	TeacherID string    `json:"teacher_id" validate:"required"`
	SubjectID string    `json:"subject_id" validate:"required"`
}

// SessionConfig carries the scheduling policy.
type SessionConfig struct {
	MinDuration   time.Duration
	StatisticsTTL time.Duration
}

// SessionService schedules teaching sessions without double-booking teachers.
//
// Every create and update runs its overlap check and write inside
// WithTeacherLock, and the sessions table rejects overlapping rows through an
// exclusion constraint. Either signal surfaces as ErrScheduleConflict.
type SessionService struct {
	repo      sessionRepository
	teachers  sessionTeacherLookup
	subjects  sessionSubjectLookup
	cache     *CacheService
	metrics   *MetricsService
	publisher events.Publisher
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SessionConfig
}

// NewSessionService wires the scheduler. cache, metrics and publisher may be nil.
func NewSessionService(
	repo sessionRepository,
	teachers sessionTeacherLookup,
	subjects sessionSubjectLookup,
	cacheSvc *CacheService,
	metrics *MetricsService,
	publisher events.Publisher,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SessionConfig,
) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = defaultMinSessionDuration
	}
	return &SessionService{
		repo:      repo,
		teachers:  teachers,
		subjects:  subjects,
		cache:     cacheSvc,
		metrics:   metrics,
		publisher: publisher,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// List returns paginated sessions with teacher and subject names.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, *models.Pagination, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, nil, invalid("from must not be after to")
	}
	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list sessions")
	}
	return sessions, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a session by id.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "session")
	}
	return session, nil
}

// FindOverlapping returns the sessions intersecting [q.Start, q.End). An empty
// teacher id searches every teacher.
func (s *SessionService) FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]models.Session, error) {
	if err := validateInterval(q.Start, q.End); err != nil {
		return nil, err
	}
	if q.TeacherID != "" {
		if err := s.ensureTeacher(ctx, q.TeacherID); err != nil {
			return nil, err
		}
	}
	sessions, err := s.repo.FindOverlapping(ctx, q)
	if err != nil {
		if database.IsInvalidText(err) {
			return nil, invalid("malformed session identifier")
		}
		return nil, internalError(err, "failed to find overlapping sessions")
	}
	return sessions, nil
}

// CanSchedule reports whether the teacher is free over [q.Start, q.End).
func (s *SessionService) CanSchedule(ctx context.Context, q models.OverlapQuery) (bool, error) {
	if strings.TrimSpace(q.TeacherID) == "" {
		return false, invalid("teacher_id is required")
	}
	sessions, err := s.FindOverlapping(ctx, q)
	if err != nil {
		return false, err
	}
	return len(sessions) == 0, nil
}

// Create books a new session.
func (s *SessionService) Create(ctx context.Context, actorID string, req SessionRequest) (*models.Session, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.ensureReferences(ctx, req.TeacherID, req.SubjectID); err != nil {
		return nil, err
	}

	session := &models.Session{
		StartTime: req.StartTime.UTC(),
		EndTime:   req.EndTime.UTC(),
		TeacherID: req.TeacherID,
		SubjectID: req.SubjectID,
	}

	err := s.repo.WithTeacherLock(ctx, []string{session.TeacherID}, func(tx repository.SessionTx) error {
		if err := s.ensureAvailable(ctx, tx, "create", session); err != nil {
			return err
		}
		return tx.Create(ctx, session)
	})
	if err != nil {
		return nil, s.writeError("create", session, err)
	}

	s.metrics.RecordSessionWrite("create")
	s.afterWrite(ctx, models.SessionEventCreated, actorID, *session)
	return session, nil
}

// Update reschedules a session. The overlap check only runs when the slot or
// the teacher changes and always excludes the session itself.
func (s *SessionService) Update(ctx context.Context, actorID, id string, req SessionRequest) (*models.Session, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "session")
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.ensureReferences(ctx, req.TeacherID, req.SubjectID); err != nil {
		return nil, err
	}

	updated := *current
	updated.StartTime = req.StartTime.UTC()
	updated.EndTime = req.EndTime.UTC()
	updated.TeacherID = req.TeacherID
	updated.SubjectID = req.SubjectID

	recheck := !current.StartTime.Equal(updated.StartTime) ||
		!current.EndTime.Equal(updated.EndTime) ||
		current.TeacherID != updated.TeacherID

	err = s.repo.WithTeacherLock(ctx, []string{current.TeacherID, updated.TeacherID}, func(tx repository.SessionTx) error {
		if recheck {
			if err := s.ensureAvailable(ctx, tx, "update", &updated); err != nil {
				return err
			}
		}
		return tx.Update(ctx, &updated)
	})
	if err != nil {
		return nil, s.writeError("update", &updated, err)
	}

	s.metrics.RecordSessionWrite("update")
	s.afterWrite(ctx, models.SessionEventUpdated, actorID, updated)
	return &updated, nil
}

// Delete removes a session.
func (s *SessionService) Delete(ctx context.Context, actorID, id string) error {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return loadError(err, "session")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if missingRow(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return internalError(err, "failed to delete session")
	}
	s.metrics.RecordSessionWrite("delete")
	s.afterWrite(ctx, models.SessionEventDeleted, actorID, *session)
	return nil
}

// DeleteByTeacher removes every session of a teacher.
func (s *SessionService) DeleteByTeacher(ctx context.Context, teacherID string) (int64, error) {
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return 0, err
	}
	removed, err := s.repo.DeleteByTeacher(ctx, teacherID)
	if err != nil {
		return 0, internalError(err, "failed to delete teacher sessions")
	}
	s.invalidate(ctx)
	s.logger.Info("teacher sessions deleted", zap.String("teacher_id", teacherID), zap.Int64("count", removed))
	return removed, nil
}

// DeleteBySubject removes every session of a subject.
func (s *SessionService) DeleteBySubject(ctx context.Context, subjectID string) (int64, error) {
	if err := s.ensureSubject(ctx, subjectID); err != nil {
		return 0, err
	}
	removed, err := s.repo.DeleteBySubject(ctx, subjectID)
	if err != nil {
		return 0, internalError(err, "failed to delete subject sessions")
	}
	s.invalidate(ctx)
	s.logger.Info("subject sessions deleted", zap.String("subject_id", subjectID), zap.Int64("count", removed))
	return removed, nil
}

// ListByTeacher returns the derived session collection of a teacher.
func (s *SessionService) ListByTeacher(ctx context.Context, teacherID string) ([]models.Session, error) {
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	sessions, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, internalError(err, "failed to list teacher sessions")
	}
	return sessions, nil
}

// ListWithinRange returns sessions fully contained in [from, to].
func (s *SessionService) ListWithinRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.SessionDetail, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	if teacherID != "" {
		if err := s.ensureTeacher(ctx, teacherID); err != nil {
			return nil, err
		}
	}
	sessions, err := s.repo.ListWithinRange(ctx, teacherID, from, to)
	if err != nil {
		return nil, internalError(err, "failed to list sessions")
	}
	return sessions, nil
}

// TotalTeacherHours sums the hours a teacher spends in sessions inside [from, to].
func (s *SessionService) TotalTeacherHours(ctx context.Context, teacherID string, from, to time.Time) (float64, error) {
	if err := validateRange(from, to); err != nil {
		return 0, err
	}
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return 0, err
	}
	minutes, err := s.repo.TotalTeacherMinutes(ctx, teacherID, from, to)
	if err != nil {
		return 0, internalError(err, "failed to sum teacher hours")
	}
	return round2(minutes / 60), nil
}

// Statistics aggregates the sessions inside [from, to].
func (s *SessionService) Statistics(ctx context.Context, from, to time.Time) (*models.SessionStatistics, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	key := cache.Key("sessions", "statistics", rangeKey(from, to))
	return Remember(ctx, s.cache, key, s.cfg.StatisticsTTL, func(ctx context.Context) (*models.SessionStatistics, error) {
		sessions, err := s.repo.ListWithinRange(ctx, "", from, to)
		if err != nil {
			return nil, internalError(err, "failed to load session statistics")
		}
		return summariseSessions(sessions, from, to), nil
	})
}

// TeacherStatistics aggregates one teacher's sessions inside [from, to].
func (s *SessionService) TeacherStatistics(ctx context.Context, teacherID string, from, to time.Time) (*models.TeacherSessionStatistics, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		return nil, loadError(err, "teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}

	key := cache.Key("sessions", "teachers", teacherID, "statistics", rangeKey(from, to))
	return Remember(ctx, s.cache, key, s.cfg.StatisticsTTL, func(ctx context.Context) (*models.TeacherSessionStatistics, error) {
		sessions, err := s.repo.ListWithinRange(ctx, teacherID, from, to)
		if err != nil {
			return nil, internalError(err, "failed to load teacher statistics")
		}
		summary := summariseSessions(sessions, from, to)
		stats := &models.TeacherSessionStatistics{
			TeacherID:              teacherID,
			TeacherName:            teacher.FullName(),
			From:                   from,
			To:                     to,
			TotalSessions:          summary.TotalSessions,
			TotalHours:             summary.TotalHours,
			SessionsBySubject:      summary.SessionsBySubject,
			HoursBySubject:         make(map[string]float64),
			AverageSessionDuration: summary.AverageSessionDuration,
		}
		for _, session := range sessions {
			stats.HoursBySubject[session.SubjectName] += session.Duration().Hours()
		}
		for subject, hours := range stats.HoursBySubject {
			stats.HoursBySubject[subject] = round2(hours)
		}
		return stats, nil
	})
}

func (s *SessionService) validateRequest(req SessionRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid session payload")
	}
	if err := validateInterval(req.StartTime, req.EndTime); err != nil {
		return err
	}
	if req.EndTime.Sub(req.StartTime) < s.cfg.MinDuration {
		return invalid("session must last at least " + s.cfg.MinDuration.String())
	}
	return nil
}

func (s *SessionService) ensureReferences(ctx context.Context, teacherID, subjectID string) error {
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return err
	}
	return s.ensureSubject(ctx, subjectID)
}

func (s *SessionService) ensureTeacher(ctx context.Context, teacherID string) error {
	ok, err := s.teachers.ExistsWithRole(ctx, teacherID, models.RoleTeacher)
	if err != nil && !missingRow(err) {
		return internalError(err, "failed to check teacher")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return nil
}

func (s *SessionService) ensureSubject(ctx context.Context, subjectID string) error {
	ok, err := s.subjects.Exists(ctx, subjectID)
	if err != nil && !missingRow(err) {
		return internalError(err, "failed to check subject")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	return nil
}

// ensureAvailable runs the overlap query for the session's teacher while the
// teacher lock is held.
func (s *SessionService) ensureAvailable(ctx context.Context, tx repository.SessionTx, operation string, session *models.Session) error {
	conflicts, err := tx.FindOverlapping(ctx, models.OverlapQuery{
		TeacherID: session.TeacherID,
		Start:     session.StartTime,
		End:       session.EndTime,
		ExcludeID: session.ID,
	})
	if err != nil {
		return internalError(err, "failed to check teacher availability")
	}
	if len(conflicts) == 0 {
		return nil
	}
	s.metrics.RecordSessionConflict(operation, "check")
	return conflictError(session, conflicts)
}

func (s *SessionService) writeError(operation string, session *models.Session, err error) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case database.IsExclusionViolation(err):
		s.metrics.RecordSessionConflict(operation, "constraint")
		s.logger.Warn("session rejected by exclusion constraint",
			zap.String("operation", operation),
			zap.String("teacher_id", session.TeacherID),
		)
		return conflictError(session, nil)
	case database.IsForeignKeyViolation(err):
		return appErrors.Clone(appErrors.ErrNotFound, "teacher or subject not found")
	case missingRow(err):
		return appErrors.Clone(appErrors.ErrNotFound, "session not found")
	default:
		return internalError(err, "failed to "+operation+" session")
	}
}

func (s *SessionService) afterWrite(ctx context.Context, eventType, actorID string, session models.Session) {
	s.invalidate(ctx)

	err := s.publisher.Publish(eventType, models.SessionEvent{
		Type:      eventType,
		Session:   session,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
	})
	s.metrics.RecordEvent(eventType, err)
	if err != nil {
		s.logger.Warn("session event not published", zap.String("event", eventType), zap.Error(err))
	}
}

func (s *SessionService) invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, cache.Key("sessions", "*"))
}

func conflictError(session *models.Session, conflicts []models.Session) *appErrors.Error {
	if conflicts == nil {
		conflicts = []models.Session{}
	}
	return appErrors.Wrap(&models.SessionConflictError{
		TeacherID: session.TeacherID,
		StartTime: session.StartTime,
		EndTime:   session.EndTime,
		Conflicts: conflicts,
	}, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, appErrors.ErrScheduleConflict.Message)
}

// validateInterval requires a non-empty half-open interval.
func validateInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return invalid("start and end times are required")
	}
	if !start.Before(end) {
		return invalid("start time must be before end time")
	}
	return nil
}

// validateRange accepts equal bounds, statistics ranges are closed.
func validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return invalid("from and to are required")
	}
	if from.After(to) {
		return invalid("from must not be after to")
	}
	return nil
}

func summariseSessions(sessions []models.SessionDetail, from, to time.Time) *models.SessionStatistics {
	stats := &models.SessionStatistics{
		From:              from,
		To:                to,
		TotalSessions:     len(sessions),
		SessionsBySubject: make(map[string]int),
		SessionsByTeacher: make(map[string]int),
	}
	var hours float64
	for _, session := range sessions {
		hours += session.Duration().Hours()
		stats.SessionsBySubject[session.SubjectName]++
		stats.SessionsByTeacher[session.TeacherName]++
	}
	stats.TotalHours = round2(hours)
	if len(sessions) > 0 {
		stats.AverageSessionDuration = round2(hours / float64(len(sessions)))
	}
	return stats
}

func rangeKey(from, to time.Time) string {
	return from.UTC().Format("20060102T150405") + "-" + to.UTC().Format("20060102T150405")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
