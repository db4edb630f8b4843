package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/internal/repository"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
	"github.com/noah-isme/school-api/pkg/validation"
)

type fakeSessionRepo struct {
	sessions     map[string]models.Session
	teacherNames map[string]string
	subjectNames map[string]string
	locks        [][]string
	overlapCalls int
	writeErr     error
	findErr      error
	seq          int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions:     make(map[string]models.Session),
		teacherNames: map[string]string{},
		subjectNames: map[string]string{},
	}
}

func (f *fakeSessionRepo) seed(s models.Session) models.Session {
	if s.ID == "" {
		f.seq++
		s.ID = fmt.Sprintf("seed-%d", f.seq)
	}
	f.sessions[s.ID] = s
	return s
}

func (f *fakeSessionRepo) WithTeacherLock(ctx context.Context, teacherIDs []string, fn func(tx repository.SessionTx) error) error {
	f.locks = append(f.locks, append([]string(nil), teacherIDs...))
	return fn(f)
}

func (f *fakeSessionRepo) FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]models.Session, error) {
	f.overlapCalls++
	var out []models.Session
	for _, s := range f.sessions {
		if q.TeacherID != "" && s.TeacherID != q.TeacherID {
			continue
		}
		if q.ExcludeID != "" && s.ID == q.ExcludeID {
			continue
		}
		if s.Overlaps(q.Start, q.End) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.seq++
	session.ID = fmt.Sprintf("session-%d", f.seq)
	f.sessions[session.ID] = *session
	return nil
}

func (f *fakeSessionRepo) Update(ctx context.Context, session *models.Session) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	if _, ok := f.sessions[session.ID]; !ok {
		return sql.ErrNoRows
	}
	f.sessions[session.ID] = *session
	return nil
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f *fakeSessionRepo) detail(s models.Session) models.SessionDetail {
	return models.SessionDetail{Session: s, TeacherName: f.teacherNames[s.TeacherID], SubjectName: f.subjectNames[s.SubjectID]}
}

func (f *fakeSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	var out []models.SessionDetail
	for _, s := range f.sessions {
		if filter.TeacherID != "" && s.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, f.detail(s))
	}
	return out, len(out), nil
}

func (f *fakeSessionRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.TeacherID == teacherID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) ListWithinRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.SessionDetail, error) {
	var out []models.SessionDetail
	for _, s := range f.sessions {
		if teacherID != "" && s.TeacherID != teacherID {
			continue
		}
		if !s.StartTime.Before(from) && !s.EndTime.After(to) {
			out = append(out, f.detail(s))
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) TotalTeacherMinutes(ctx context.Context, teacherID string, from, to time.Time) (float64, error) {
	sessions, _ := f.ListWithinRange(ctx, teacherID, from, to)
	var minutes float64
	for _, s := range sessions {
		minutes += s.Duration().Minutes()
	}
	return minutes, nil
}

func (f *fakeSessionRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionRepo) DeleteByTeacher(ctx context.Context, teacherID string) (int64, error) {
	var n int64
	for id, s := range f.sessions {
		if s.TeacherID == teacherID {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionRepo) DeleteBySubject(ctx context.Context, subjectID string) (int64, error) {
	var n int64
	for id, s := range f.sessions {
		if s.SubjectID == subjectID {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

type fakeUserLookup struct {
	users map[string]*models.User
	err   error
}

func (f *fakeUserLookup) FindByID(ctx context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserLookup) ExistsWithRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	u, ok := f.users[id]
	return ok && u.Role == role, nil
}

type fakeSubjectLookup struct {
	ids map[string]bool
}

func (f *fakeSubjectLookup) Exists(ctx context.Context, id string) (bool, error) {
	return f.ids[id], nil
}

type recordingPublisher struct {
	subjects []string
	err      error
}

func (p *recordingPublisher) Publish(subject string, payload interface{}) error {
	p.subjects = append(p.subjects, subject)
	return p.err
}

func (p *recordingPublisher) Close() {}

type sessionFixture struct {
	svc       *SessionService
	repo      *fakeSessionRepo
	users     *fakeUserLookup
	publisher *recordingPublisher
	metrics   *MetricsService
}

func newSessionFixture(t *testing.T, cfg SessionConfig) sessionFixture {
	t.Helper()
	repo := newFakeSessionRepo()
	repo.teacherNames = map[string]string{"teacher-t": "Tara Teacher", "teacher-u": "Umar Teacher"}
	repo.subjectNames = map[string]string{"math": "Math", "physics": "Physics"}
	users := &fakeUserLookup{users: map[string]*models.User{
		"teacher-t": {ID: "teacher-t", FirstName: "Tara", LastName: "Teacher", Role: models.RoleTeacher},
		"teacher-u": {ID: "teacher-u", FirstName: "Umar", LastName: "Teacher", Role: models.RoleTeacher},
		"student-s": {ID: "student-s", FirstName: "Sam", LastName: "Student", Role: models.RoleStudent},
	}}
	subjects := &fakeSubjectLookup{ids: map[string]bool{"math": true, "physics": true}}
	publisher := &recordingPublisher{}
	metrics := NewMetricsService()
	svc := NewSessionService(repo, users, subjects, nil, metrics, publisher, validation.New(validation.DefaultPolicy), nil, cfg)
	return sessionFixture{svc: svc, repo: repo, users: users, publisher: publisher, metrics: metrics}
}

func at(hour, minute int) time.Time {
	return time.Date(2024, time.September, 2, hour, minute, 0, 0, time.UTC)
}

func booking(teacherID string, start, end time.Time) SessionRequest {
	return SessionRequest{StartTime: start, EndTime: end, TeacherID: teacherID, SubjectID: "math"}
}

func TestSessionCreateTouchingSessionSucceeds(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-t", SubjectID: "math"})

	session, err := f.svc.Create(context.Background(), "admin-1", booking("teacher-t", at(10, 0), at(11, 0)))
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Len(t, f.repo.sessions, 2)
	assert.Equal(t, []string{models.SessionEventCreated}, f.publisher.subjects)
	assert.Equal(t, [][]string{{"teacher-t"}}, f.repo.locks)
}

func TestSessionCreateOverlapReturnsConflict(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	existing := f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-t", SubjectID: "math"})

	_, err := f.svc.Create(context.Background(), "admin-1", booking("teacher-t", at(9, 30), at(10, 30)))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrScheduleConflict))
	assert.False(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)

	conflict, ok := models.AsSessionConflict(err)
	require.True(t, ok)
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, existing.ID, conflict.Conflicts[0].ID)

	assert.Len(t, f.repo.sessions, 1)
	assert.Empty(t, f.publisher.subjects)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().SessionConflicts)
}

func TestSessionCreateSameSlotDifferentTeacherSucceeds(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-t", SubjectID: "math"})

	_, err := f.svc.Create(context.Background(), "admin-1", booking("teacher-u", at(9, 0), at(10, 0)))
	require.NoError(t, err)
	assert.Len(t, f.repo.sessions, 2)
}

func TestSessionUpdateExcludesItself(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	existing := f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-t", SubjectID: "math"})

	updated, err := f.svc.Update(context.Background(), "admin-1", existing.ID, booking("teacher-t", at(9, 15), at(10, 15)))
	require.NoError(t, err)
	assert.True(t, updated.StartTime.Equal(at(9, 15)))
	assert.Equal(t, 1, f.repo.overlapCalls)
	assert.Equal(t, []string{models.SessionEventUpdated}, f.publisher.subjects)
}

func TestSessionUpdateUnchangedSlotSkipsOverlapCheck(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	existing := f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-t", SubjectID: "math"})

	req := booking("teacher-t", at(9, 0), at(10, 0))
	req.SubjectID = "physics"
	updated, err := f.svc.Update(context.Background(), "admin-1", existing.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "physics", updated.SubjectID)
	assert.Zero(t, f.repo.overlapCalls)
}

func TestSessionUpdateReassignLocksBothTeachers(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	existing := f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-t", SubjectID: "math"})
	f.repo.seed(models.Session{StartTime: at(9, 30), EndTime: at(10, 30), TeacherID: "teacher-u", SubjectID: "physics"})

	_, err := f.svc.Update(context.Background(), "admin-1", existing.ID, booking("teacher-u", at(9, 0), at(10, 0)))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrScheduleConflict))
	require.Len(t, f.repo.locks, 1)
	assert.ElementsMatch(t, []string{"teacher-t", "teacher-u"}, f.repo.locks[0])
	assert.Equal(t, "teacher-t", f.repo.sessions[existing.ID].TeacherID)
}

func TestSessionUpdateUnknownSession(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})

	_, err := f.svc.Update(context.Background(), "admin-1", "missing", booking("teacher-t", at(9, 0), at(10, 0)))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSessionUpdateUnknownSessionBeforePayloadChecks(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})

	_, err := f.svc.Update(context.Background(), "admin-1", "missing", booking("teacher-t", at(9, 0), at(9, 10)))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	existing := f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-t", SubjectID: "math"})
	_, err = f.svc.Update(context.Background(), "admin-1", existing.ID, booking("teacher-t", at(9, 0), at(9, 10)))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSessionMalformedIdentifiersAreNotFound(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	malformed := fmt.Errorf("query: %w", &pq.Error{Code: "22P02"})
	ctx := context.Background()

	f.users.err = malformed
	_, err := f.svc.CanSchedule(ctx, models.OverlapQuery{TeacherID: "abc", Start: at(9, 0), End: at(10, 0)})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	_, err = f.svc.TeacherStatistics(ctx, "abc", at(8, 0), at(12, 0))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	f.users.err = nil

	f.repo.findErr = malformed
	_, err = f.svc.Get(ctx, "abc")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	err = f.svc.Delete(ctx, "admin-1", "abc")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSessionCreateBelowMinimumDuration(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})

	_, err := f.svc.Create(context.Background(), "admin-1", booking("teacher-t", at(9, 0), at(9, 20)))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.repo.locks)
	assert.Zero(t, f.repo.overlapCalls)
}

func TestSessionMinimumDurationIsConfigurable(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{MinDuration: 45 * time.Minute})

	_, err := f.svc.Create(context.Background(), "admin-1", booking("teacher-t", at(9, 0), at(9, 40)))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Create(context.Background(), "admin-1", booking("teacher-t", at(9, 0), at(9, 45)))
	require.NoError(t, err)
}

func TestSessionInvertedIntervalFailsBeforeConflictCheck(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-t", SubjectID: "math"})

	for _, tc := range []struct {
		name       string
		start, end time.Time
	}{
		{name: "equal", start: at(9, 30), end: at(9, 30)},
		{name: "inverted", start: at(10, 0), end: at(9, 0)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), "admin-1", booking("teacher-t", tc.start, tc.end))
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
		})
	}
	assert.Empty(t, f.repo.locks)
	assert.Zero(t, f.repo.overlapCalls)
}

func TestSessionCreateMissingFieldsIsValidationError(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})

	_, err := f.svc.Create(context.Background(), "admin-1", SessionRequest{StartTime: at(9, 0), EndTime: at(10, 0)})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "teacher_id")
}

func TestSessionCreateUnknownReferences(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})

	_, err := f.svc.Create(context.Background(), "admin-1", booking("nobody", at(9, 0), at(10, 0)))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Create(context.Background(), "admin-1", booking("student-s", at(9, 0), at(10, 0)))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	req := booking("teacher-t", at(9, 0), at(10, 0))
	req.SubjectID = "chemistry"
	_, err = f.svc.Create(context.Background(), "admin-1", req)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	assert.Empty(t, f.repo.sessions)
}

func TestSessionCreateExclusionViolationIsConflict(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.repo.writeErr = fmt.Errorf("create session: %w", &pq.Error{Code: "23P01"})

	_, err := f.svc.Create(context.Background(), "admin-1", booking("teacher-t", at(9, 0), at(10, 0)))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrScheduleConflict))
	_, ok := models.AsSessionConflict(err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().SessionConflicts)
}

func TestSessionPublishFailureDoesNotFailWrite(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.publisher.err = fmt.Errorf("nats: connection closed")

	_, err := f.svc.Create(context.Background(), "admin-1", booking("teacher-t", at(9, 0), at(10, 0)))
	require.NoError(t, err)
	assert.Len(t, f.repo.sessions, 1)
}

func TestSessionDelete(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	existing := f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-t", SubjectID: "math"})

	require.NoError(t, f.svc.Delete(context.Background(), "admin-1", existing.ID))
	assert.Empty(t, f.repo.sessions)
	assert.Equal(t, []string{models.SessionEventDeleted}, f.publisher.subjects)

	assert.Equal(t, float64(1), counterValue(t, f.metrics, "school_sessions_writes_total", "delete"))

	err := f.svc.Delete(context.Background(), "admin-1", existing.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, float64(1), counterValue(t, f.metrics, "school_sessions_writes_total", "delete"))
}

func counterValue(t *testing.T, m *MetricsService, name, label string) float64 {
	t.Helper()
	families, err := m.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetValue() == label {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCanScheduleHalfOpenIntervals(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-t", SubjectID: "math"})

	cases := []struct {
		name       string
		teacher    string
		start, end time.Time
		want       bool
	}{
		{name: "ends at start", teacher: "teacher-t", start: at(8, 0), end: at(9, 0), want: true},
		{name: "starts at end", teacher: "teacher-t", start: at(10, 0), end: at(11, 0), want: true},
		{name: "tail overlap", teacher: "teacher-t", start: at(9, 30), end: at(10, 30), want: false},
		{name: "head overlap", teacher: "teacher-t", start: at(8, 30), end: at(9, 1), want: false},
		{name: "contains", teacher: "teacher-t", start: at(8, 0), end: at(11, 0), want: false},
		{name: "contained", teacher: "teacher-t", start: at(9, 15), end: at(9, 45), want: false},
		{name: "identical", teacher: "teacher-t", start: at(9, 0), end: at(10, 0), want: false},
		{name: "other teacher", teacher: "teacher-u", start: at(9, 0), end: at(10, 0), want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := f.svc.CanSchedule(context.Background(), models.OverlapQuery{TeacherID: tc.teacher, Start: tc.start, End: tc.end})
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestCanScheduleExcludingSession(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	existing := f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-t", SubjectID: "math"})

	ok, err := f.svc.CanSchedule(context.Background(), models.OverlapQuery{TeacherID: "teacher-t", Start: at(9, 0), End: at(10, 0), ExcludeID: existing.ID})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFindOverlappingErrors(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})

	_, err := f.svc.FindOverlapping(context.Background(), models.OverlapQuery{TeacherID: "teacher-t", Start: at(10, 0), End: at(9, 0)})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.FindOverlapping(context.Background(), models.OverlapQuery{TeacherID: "nobody", Start: at(9, 0), End: at(10, 0)})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.CanSchedule(context.Background(), models.OverlapQuery{Start: at(9, 0), End: at(10, 0)})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestFindOverlappingAcrossTeachers(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-t", SubjectID: "math"})
	f.repo.seed(models.Session{StartTime: at(9, 30), EndTime: at(10, 30), TeacherID: "teacher-u", SubjectID: "physics"})

	sessions, err := f.svc.FindOverlapping(context.Background(), models.OverlapQuery{Start: at(9, 45), End: at(10, 15)})
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestSessionStatistics(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 30), TeacherID: "teacher-t", SubjectID: "math"})
	f.repo.seed(models.Session{StartTime: at(11, 0), EndTime: at(11, 40), TeacherID: "teacher-t", SubjectID: "physics"})
	f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-u", SubjectID: "math"})

	stats, err := f.svc.Statistics(context.Background(), at(8, 0), at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, 3.17, stats.TotalHours)
	assert.Equal(t, 1.06, stats.AverageSessionDuration)
	assert.Equal(t, map[string]int{"Math": 2, "Physics": 1}, stats.SessionsBySubject)
	assert.Equal(t, map[string]int{"Tara Teacher": 2, "Umar Teacher": 1}, stats.SessionsByTeacher)

	teacher, err := f.svc.TeacherStatistics(context.Background(), "teacher-t", at(8, 0), at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, "Tara Teacher", teacher.TeacherName)
	assert.Equal(t, 2, teacher.TotalSessions)
	assert.Equal(t, 2.17, teacher.TotalHours)
	assert.Equal(t, map[string]float64{"Math": 1.5, "Physics": 0.67}, teacher.HoursBySubject)

	hours, err := f.svc.TotalTeacherHours(context.Background(), "teacher-t", at(8, 0), at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, 2.17, hours)

	_, err = f.svc.Statistics(context.Background(), at(12, 0), at(8, 0))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.TeacherStatistics(context.Background(), "student-s", at(8, 0), at(12, 0))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSessionDeleteByTeacher(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-t", SubjectID: "math"})
	f.repo.seed(models.Session{StartTime: at(11, 0), EndTime: at(12, 0), TeacherID: "teacher-t", SubjectID: "math"})
	f.repo.seed(models.Session{StartTime: at(9, 0), EndTime: at(10, 0), TeacherID: "teacher-u", SubjectID: "math"})

	removed, err := f.svc.DeleteByTeacher(context.Background(), "teacher-t")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Len(t, f.repo.sessions, 1)

	_, err = f.svc.DeleteByTeacher(context.Background(), "nobody")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
