package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-api/internal/models"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
	"github.com/noah-isme/school-api/pkg/mail"
	"github.com/noah-isme/school-api/pkg/validation"
)

type mockAuthRepo struct {
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	auditLogs     []*models.AuditLog
	revokedUsers  []string
	lastLoginIP   string
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{users: map[string]*models.User{}, refreshTokens: map[string]*models.RefreshToken{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockAuthRepo) find(match func(*models.User) bool) (*models.User, error) {
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *mockAuthRepo) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ResetToken != nil && *u.ResetToken == token })
}

func (m *mockAuthRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.FindByUsername(ctx, username)
	return err == nil, nil
}

func (m *mockAuthRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *mockAuthRepo) ExistsByCIN(ctx context.Context, cin string) (bool, error) {
	_, err := m.find(func(u *models.User) bool { return u.CIN == cin })
	return err == nil, nil
}

func (m *mockAuthRepo) ExistsWithRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	u, ok := m.users[id]
	return ok && u.Role == role, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "user-" + user.Username
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time, ip string) error {
	m.users[id].LastLogin = &ts
	m.lastLoginIP = ip
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	u := m.users[id]
	u.PasswordHash = passwordHash
	u.ResetToken = nil
	u.ResetTokenExpiry = nil
	return nil
}

func (m *mockAuthRepo) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	u := m.users[id]
	u.ResetToken = &token
	u.ResetTokenExpiry = &expiry
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockClassLookup struct {
	classes map[string]*models.Class
}

func (m *mockClassLookup) FindByID(ctx context.Context, id string) (*models.Class, error) {
	c, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

type capturingMailQueue struct {
	kinds    []string
	messages []mail.Message
}

func (q *capturingMailQueue) Enqueue(kind string, msg mail.Message) error {
	q.kinds = append(q.kinds, kind)
	q.messages = append(q.messages, msg)
	return nil
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(repo *mockAuthRepo, mailer *capturingMailQueue) *AuthService {
	classes := &mockClassLookup{classes: map[string]*models.Class{"class-1": {ID: "class-1", Name: "1A"}}}
	var queue MailQueue
	if mailer != nil {
		queue = mailer
	}
	return NewAuthService(repo, classes, queue, validation.New(validation.DefaultPolicy), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		ResetTokenExpiry:   time.Hour,
		Issuer:             "school-api",
		AppName:            "School",
		FrontendBaseURL:    "http://localhost:3000/",
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Username: "jdoe", Email: "jdoe@example.com", PasswordHash: hashPassword(t, "Secret123"), Enabled: true, Role: models.RoleTeacher})
	svc := newTestAuthService(repo, nil)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "jdoe", Password: "Secret123", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, models.RoleTeacher, res.User.Role)
	assert.Contains(t, res.User.Permissions, models.PermScheduleRead)
	assert.Equal(t, "10.0.0.1", repo.lastLoginIP)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "jdoe", claims.Username)
}

func TestAuthServiceLoginRejections(t *testing.T) {
	cases := []struct {
		name     string
		user     models.User
		password string
		want     *appErrors.Error
	}{
		{name: "wrong password", user: models.User{Enabled: true}, password: "Wrong1234", want: appErrors.ErrInvalidCredentials},
		{name: "disabled", user: models.User{Enabled: false}, password: "Secret123", want: appErrors.ErrInactiveAccount},
		{name: "locked", user: models.User{Enabled: true, Locked: true}, password: "Secret123", want: appErrors.ErrLockedAccount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			user := tc.user
			user.ID, user.Username, user.PasswordHash = "u1", "jdoe", hashPassword(t, "Secret123")
			svc := newTestAuthService(newMockAuthRepo(&user), nil)

			_, err := svc.Login(context.Background(), models.LoginRequest{Username: "jdoe", Password: tc.password})
			require.Error(t, err)
			assert.Equal(t, tc.want.Code, appErrors.FromError(err).Code)
		})
	}

	svc := newTestAuthService(newMockAuthRepo(), nil)
	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "Secret123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Username: "jdoe", Enabled: true, Role: models.RoleAdministrator})
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestAuthService(repo, nil)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceLogoutChecksOwner(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1"})
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestAuthService(repo, nil)

	err := svc.Logout(context.Background(), "u2", "token", "", "")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Logout(context.Background(), "u1", "token", "", ""))
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func validRegistration(role models.UserRole) models.RegisterRequest {
	return models.RegisterRequest{
		Username:  "new.student",
		Email:     "New.Student@Example.com",
		Password:  "Secret123",
		FirstName: "New",
		LastName:  "Student",
		CIN:       "ab123456",
		Role:      role,
	}
}

func TestAuthServiceRegisterStudent(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "parent-1", Username: "parent", Role: models.RoleParent})
	mailer := &capturingMailQueue{}
	svc := newTestAuthService(repo, mailer)

	req := validRegistration(models.RoleStudent)
	classID, parentID := "class-1", "parent-1"
	req.ClassID, req.ParentID = &classID, &parentID

	user, err := svc.Register(context.Background(), "admin-1", req)
	require.NoError(t, err)
	assert.Equal(t, "new.student@example.com", user.Email)
	assert.Equal(t, "AB123456", user.CIN)
	assert.True(t, user.Enabled)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("Secret123")))

	details, ok := user.StudentDetails()
	require.True(t, ok)
	assert.Equal(t, "class-1", *details.ClassID)

	assert.Equal(t, []string{"welcome"}, mailer.kinds)
	assert.Contains(t, mailer.messages[0].Text, "http://localhost:3000/login")
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
}

func TestAuthServiceRegisterRoleFieldRules(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "teacher-1", Username: "teacher", Role: models.RoleTeacher})
	svc := newTestAuthService(repo, nil)

	teacher := validRegistration(models.RoleTeacher)
	classID := "class-1"
	teacher.ClassID = &classID
	_, err := svc.Register(context.Background(), "admin-1", teacher)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	student := validRegistration(models.RoleStudent)
	parentID := "teacher-1"
	student.ParentID = &parentID
	_, err = svc.Register(context.Background(), "admin-1", student)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	student = validRegistration(models.RoleStudent)
	missing := "class-9"
	student.ClassID = &missing
	_, err = svc.Register(context.Background(), "admin-1", student)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAuthServiceRegisterValidatesPolicy(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), nil)

	req := validRegistration(models.RoleTeacher)
	req.Password = "alllowercase"
	req.Username = "x"
	_, err := svc.Register(context.Background(), "admin-1", req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "password")
	assert.Contains(t, appErr.Details, "username")
}

func TestAuthServiceRegisterDuplicate(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Username: "other", Email: "new.student@example.com"})
	svc := newTestAuthService(repo, nil)

	_, err := svc.Register(context.Background(), "admin-1", validRegistration(models.RoleTeacher))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Contains(t, err.Error(), "email")
}

func TestAuthServicePasswordResetFlow(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Username: "jdoe", Email: "jdoe@example.com", FirstName: "John", PasswordHash: hashPassword(t, "Secret123"), Enabled: true})
	mailer := &capturingMailQueue{}
	svc := newTestAuthService(repo, mailer)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), models.ResetPasswordRequest{Email: "nobody@example.com"}))
	assert.Empty(t, mailer.kinds)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), models.ResetPasswordRequest{Email: "jdoe@example.com"}))
	require.NotNil(t, repo.users["u1"].ResetToken)
	token := *repo.users["u1"].ResetToken
	assert.Equal(t, []string{"password_reset"}, mailer.kinds)
	assert.True(t, strings.Contains(mailer.messages[0].Text, "reset-password?token="+token))

	err := svc.ConfirmPasswordReset(context.Background(), models.ConfirmResetPasswordRequest{Token: "bogus", NewPassword: "Changed123", ConfirmPassword: "Changed123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	require.NoError(t, svc.ConfirmPasswordReset(context.Background(), models.ConfirmResetPasswordRequest{Token: token, NewPassword: "Changed123", ConfirmPassword: "Changed123"}))
	assert.Nil(t, repo.users["u1"].ResetToken)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["u1"].PasswordHash), []byte("Changed123")))
	assert.Equal(t, []string{"u1"}, repo.revokedUsers)
}

func TestAuthServiceConfirmResetExpired(t *testing.T) {
	token := "expired-token"
	expiry := time.Now().Add(-time.Minute)
	repo := newMockAuthRepo(&models.User{ID: "u1", ResetToken: &token, ResetTokenExpiry: &expiry})
	svc := newTestAuthService(repo, nil)

	err := svc.ConfirmPasswordReset(context.Background(), models.ConfirmResetPasswordRequest{Token: token, NewPassword: "Changed123", ConfirmPassword: "Changed123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "jdoe@example.com", PasswordHash: hashPassword(t, "Secret123"), Enabled: true})
	mailer := &capturingMailQueue{}
	svc := newTestAuthService(repo, mailer)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{CurrentPassword: "Wrong1234", NewPassword: "Changed123", ConfirmPassword: "Changed123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "Changed123", ConfirmPassword: "Mismatch123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	require.NoError(t, svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "Changed123", ConfirmPassword: "Changed123"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["u1"].PasswordHash), []byte("Changed123")))
	assert.Equal(t, []string{"password_changed"}, mailer.kinds)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), nil)
	other := NewAuthService(newMockAuthRepo(), nil, nil, nil, nil, AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour, Issuer: "school-api"})

	token, err := other.generateAccessToken(&models.User{ID: "u1", Role: models.RoleStudent}, time.Now())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
