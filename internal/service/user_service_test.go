package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/pkg/cache"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
	"github.com/noah-isme/school-api/pkg/validation"
)

type mockUserRepo struct {
	users     map[string]*models.User
	auditLogs []*models.AuditLog
	since     time.Time
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	var users []models.User
	for _, u := range m.users {
		if u.Role == role {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	users, _ := m.ListByRole(ctx, role)
	return len(users), nil
}

func (m *mockUserRepo) UpdateStatus(ctx context.Context, id string, enabled, locked bool) error {
	m.users[id].Enabled = enabled
	m.users[id].Locked = locked
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) Statistics(ctx context.Context, since time.Time) (*models.UserStatistics, error) {
	m.since = since
	return &models.UserStatistics{TotalUsers: len(m.users), UsersByRole: map[models.UserRole]int{models.RoleAdministrator: 1}}, nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type stubTeacherSessions struct {
	sessions []models.Session
}

func (s stubTeacherSessions) ListByTeacher(ctx context.Context, teacherID string) ([]models.Session, error) {
	return s.sessions, nil
}

type recordingResetIssuer struct {
	users []string
}

func (r *recordingResetIssuer) IssueResetToken(ctx context.Context, user *models.User) error {
	r.users = append(r.users, user.ID)
	return nil
}

func newTestUserService(repo *mockUserRepo, sessions []models.Session) (*UserService, *recordingResetIssuer) {
	return newCachedUserService(repo, sessions, nil)
}

func newCachedUserService(repo *mockUserRepo, sessions []models.Session, cacheSvc *CacheService) (*UserService, *recordingResetIssuer) {
	resets := &recordingResetIssuer{}
	svc := NewUserService(repo, stubTeacherSessions{sessions: sessions}, resets, cacheSvc, validation.New(validation.DefaultPolicy), zap.NewNop())
	return svc, resets
}

func TestUserServiceUpdateStatus(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"u1": {ID: "u1", Enabled: true}}}
	svc, _ := newTestUserService(repo, nil)

	locked := true
	user, err := svc.UpdateStatus(context.Background(), "admin-1", "u1", models.UserStatusUpdate{Locked: &locked, Reason: "too many attempts"}, RequestMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.True(t, user.Locked)
	assert.True(t, user.Enabled)
	assert.True(t, repo.users["u1"].Locked)

	require.Len(t, repo.auditLogs, 1)
	log := repo.auditLogs[0]
	assert.Equal(t, models.AuditActionUserStatus, log.Action)
	assert.JSONEq(t, `{"enabled":true,"locked":false}`, string(log.OldValues))
	assert.JSONEq(t, `{"enabled":true,"locked":true,"reason":"too many attempts"}`, string(log.NewValues))

	_, err = svc.UpdateStatus(context.Background(), "admin-1", "u1", models.UserStatusUpdate{}, RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceDeleteKeepsLastAdministrator(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"admin-1": {ID: "admin-1", Role: models.RoleAdministrator},
		"t1":      {ID: "t1", Role: models.RoleTeacher},
	}}
	svc, _ := newTestUserService(repo, nil)

	err := svc.Delete(context.Background(), "admin-1", "admin-1", RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Contains(t, repo.users, "admin-1")

	require.NoError(t, svc.Delete(context.Background(), "admin-1", "t1", RequestMeta{}))
	assert.NotContains(t, repo.users, "t1")

	err = svc.Delete(context.Background(), "admin-1", "t1", RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceDeleteDropsCascadedProjections(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher},
		"s1": {ID: "s1", Role: models.RoleStudent},
	}}
	store := newMemoryCache()
	svc, _ := newCachedUserService(repo, nil, NewCacheService(store, nil, time.Minute, zap.NewNop(), true))
	ctx := context.Background()

	seed := func() {
		require.NoError(t, store.Set(ctx, cache.Key("sessions", "statistics", "r"), 1, time.Minute))
		require.NoError(t, store.Set(ctx, cache.Key("sessions", "teachers", "t1", "statistics", "r"), 1, time.Minute))
		require.NoError(t, store.Set(ctx, cache.Key("absences", "students", "s1", "statistics"), 1, time.Minute))
	}

	seed()
	require.NoError(t, svc.Delete(ctx, "admin-1", "t1", RequestMeta{}))
	assert.NotContains(t, store.values, cache.Key("sessions", "statistics", "r"))
	assert.NotContains(t, store.values, cache.Key("sessions", "teachers", "t1", "statistics", "r"))
	assert.Contains(t, store.values, cache.Key("absences", "students", "s1", "statistics"))

	seed()
	require.NoError(t, svc.Delete(ctx, "admin-1", "s1", RequestMeta{}))
	assert.NotContains(t, store.values, cache.Key("absences", "students", "s1", "statistics"))
	assert.Contains(t, store.values, cache.Key("sessions", "statistics", "r"))
}

func TestUserServiceTeacherProfile(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher},
		"s1": {ID: "s1", Role: models.RoleStudent},
	}}
	sessions := []models.Session{{ID: "sess-1", TeacherID: "t1"}}
	svc, _ := newTestUserService(repo, sessions)

	profile, err := svc.TeacherProfile(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, sessions, profile.Sessions)

	_, err = svc.TeacherProfile(context.Background(), "s1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceListByRole(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher},
		"s1": {ID: "s1", Role: models.RoleStudent},
	}}
	svc, _ := newTestUserService(repo, nil)

	users, err := svc.ListByRole(context.Background(), "teacher")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "t1", users[0].ID)

	_, err = svc.ListByRole(context.Background(), "JANITOR")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceStatisticsFillsRoles(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{}}
	svc, _ := newTestUserService(repo, nil)

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Len(t, stats.UsersByRole, 4)
	assert.Equal(t, 1, stats.UsersByRole[models.RoleAdministrator])
	assert.WithinDuration(t, time.Now().Add(-30*24*time.Hour), repo.since, time.Minute)
}

func TestUserServiceResetPassword(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"u1": {ID: "u1"}}}
	svc, resets := newTestUserService(repo, nil)

	require.NoError(t, svc.ResetPassword(context.Background(), "admin-1", "u1"))
	assert.Equal(t, []string{"u1"}, resets.users)

	err := svc.ResetPassword(context.Background(), "admin-1", "ghost")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
