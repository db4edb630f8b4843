package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/pkg/database"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
	"github.com/noah-isme/school-api/pkg/mail"
)

type authUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByResetToken(ctx context.Context, token string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByCIN(ctx context.Context, cin string) (bool, error)
	ExistsWithRole(ctx context.Context, id string, role models.UserRole) (bool, error)
	Create(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time, ip string) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	SetResetToken(ctx context.Context, id, token string, expiry time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type authClassLookup interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// MailQueue accepts rendered messages for background delivery.
type MailQueue interface {
	Enqueue(kind string, msg mail.Message) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	ResetTokenExpiry   time.Duration
	Issuer             string
	Audience           []string
	AppName            string
	FrontendBaseURL    string
}

// AuthService provides authentication use cases.
type AuthService struct {
	repo      authUserRepository
	classes   authClassLookup
	mailer    MailQueue
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance. mailer may be nil.
func NewAuthService(repo authUserRepository, classes authClassLookup, mailer MailQueue, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.ResetTokenExpiry <= 0 {
		config.ResetTokenExpiry = 24 * time.Hour
	}
	return &AuthService{
		repo:      repo,
		classes:   classes,
		mailer:    mailer,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates a user by username and returns issued tokens.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid login payload")
	}

	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, internalError(err, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}
	if !user.Enabled {
		return nil, appErrors.ErrInactiveAccount
	}
	if user.Locked {
		return nil, appErrors.ErrLockedAccount
	}

	now := s.now()
	accessToken, err := s.generateAccessToken(user, now)
	if err != nil {
		return nil, internalError(err, "failed to create access token")
	}
	refreshToken, err := s.issueRefreshToken(ctx, user.ID, req.IP, req.UserAgent, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, now, req.IP); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	s.audit(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionLogin,
		Resource:   "auth",
		ResourceID: &user.ID,
		NewValues:  []byte(`{"status":"success"}`),
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	})

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     now,
		User:         models.NewUserInfo(user),
	}, nil
}

// RefreshToken rotates a refresh token and issues a new access token.
func (s *AuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid refresh payload")
	}

	storedToken, err := s.repo.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
		}
		return nil, internalError(err, "failed to fetch refresh token")
	}

	now := s.now()
	if !storedToken.Usable(now) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is expired or revoked")
	}

	user, err := s.repo.FindByID(ctx, storedToken.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "associated user no longer exists")
		}
		return nil, internalError(err, "failed to load user")
	}
	if !user.Enabled {
		return nil, appErrors.ErrInactiveAccount
	}
	if user.Locked {
		return nil, appErrors.ErrLockedAccount
	}

	if err := s.repo.RevokeRefreshToken(ctx, storedToken.ID, now); err != nil {
		s.logger.Warn("failed to revoke used refresh token", zap.Error(err))
	}

	accessToken, err := s.generateAccessToken(user, now)
	if err != nil {
		return nil, internalError(err, "failed to generate access token")
	}
	refreshed, err := s.issueRefreshToken(ctx, user.ID, req.IP, req.UserAgent, now)
	if err != nil {
		return nil, err
	}

	return &models.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshed.Token,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     now,
	}, nil
}

// Logout revokes the provided refresh token of userID.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken, ip, userAgent string) error {
	storedToken, err := s.repo.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
		}
		return internalError(err, "failed to load refresh token")
	}
	if storedToken.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to user")
	}
	if err := s.repo.RevokeRefreshToken(ctx, storedToken.ID, s.now()); err != nil {
		return internalError(err, "failed to revoke refresh token")
	}

	s.audit(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionLogout,
		Resource:   "auth",
		ResourceID: &userID,
		NewValues:  []byte(`{"status":"logout"}`),
		IPAddress:  ip,
		UserAgent:  userAgent,
	})
	return nil
}

// Register creates an account. Only STUDENT accounts may carry a class or a
// parent, and the parent must be a PARENT account.
func (s *AuthService) Register(ctx context.Context, actorID string, req models.RegisterRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid registration payload")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.CIN = strings.ToUpper(strings.TrimSpace(req.CIN))

	if err := s.ensureUnique(ctx, req); err != nil {
		return nil, err
	}
	if err := s.checkRoleFields(ctx, req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		CIN:          req.CIN,
		Phone:        req.Phone,
		BirthDate:    req.BirthDate,
		BirthPlace:   req.BirthPlace,
		Address:      req.Address,
		Gender:       req.Gender,
		Photo:        req.Photo,
		Role:         req.Role,
		Enabled:      true,
		ClassID:      req.ClassID,
		ParentID:     req.ParentID,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username, email or CIN already in use")
		}
		return nil, internalError(err, "failed to create user")
	}

	s.audit(ctx, &models.AuditLog{
		UserID:     optionalID(actorID),
		Action:     models.AuditActionUserCreate,
		Resource:   "user",
		ResourceID: &user.ID,
		NewValues:  []byte(fmt.Sprintf(`{"username":%q,"role":%q}`, user.Username, user.Role)),
	})

	msg, err := mail.Welcome(s.config.AppName, mail.Address{Name: user.FullName(), Email: user.Email}, user.Username, s.link("/login"))
	if err == nil {
		s.enqueueMail("welcome", msg)
	} else {
		s.logger.Warn("failed to render welcome mail", zap.Error(err))
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// RequestPasswordReset sends a reset link when the email is known. It answers
// the same way for unknown addresses.
func (s *AuthService) RequestPasswordReset(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid password reset payload")
	}
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return internalError(err, "failed to fetch user")
	}
	return s.IssueResetToken(ctx, user)
}

// IssueResetToken stores a fresh reset token for user and mails the link.
func (s *AuthService) IssueResetToken(ctx context.Context, user *models.User) error {
	token := uuid.NewString()
	expiry := s.now().Add(s.config.ResetTokenExpiry)
	if err := s.repo.SetResetToken(ctx, user.ID, token, expiry); err != nil {
		return internalError(err, "failed to store reset token")
	}

	msg, err := mail.PasswordReset(s.config.AppName, mail.Address{Name: user.FullName(), Email: user.Email},
		s.link("/reset-password?token="+token), s.config.ResetTokenExpiry)
	if err != nil {
		return internalError(err, "failed to render reset mail")
	}
	s.enqueueMail("password_reset", msg)
	return nil
}

// ConfirmPasswordReset consumes a reset token and sets the new password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, req models.ConfirmResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid password reset payload")
	}

	user, err := s.repo.FindByResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invalid("invalid or expired reset token")
		}
		return internalError(err, "failed to fetch user")
	}
	if user.ResetTokenExpiry == nil || s.now().After(*user.ResetTokenExpiry) {
		return invalid("invalid or expired reset token")
	}

	if err := s.setPassword(ctx, user.ID, req.NewPassword); err != nil {
		return err
	}
	s.audit(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionPasswordReset,
		Resource:   "auth",
		ResourceID: &user.ID,
		NewValues:  []byte(`{"status":"reset"}`),
	})
	return nil
}

// ChangePassword changes the password of userID after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid change password payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return loadError(err, "user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "current password does not match")
	}
	if req.CurrentPassword == req.NewPassword {
		return invalid("new password must differ from the current one")
	}

	if err := s.setPassword(ctx, userID, req.NewPassword); err != nil {
		return err
	}
	s.audit(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionPasswordChange,
		Resource:   "auth",
		ResourceID: &userID,
		NewValues:  []byte(`{"status":"changed"}`),
	})

	if msg, err := mail.PasswordChanged(s.config.AppName, mail.Address{Name: user.FullName(), Email: user.Email}, s.link("/forgot-password")); err == nil {
		s.enqueueMail("password_changed", msg)
	}
	return nil
}

// Check returns the public identity of userID.
func (s *AuthService) Check(ctx context.Context, userID string) (*models.UserInfo, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, loadError(err, "user")
	}
	info := models.NewUserInfo(user)
	return &info, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.AccessTokenSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) ensureUnique(ctx context.Context, req models.RegisterRequest) error {
	checks := []struct {
		field string
		fn    func(context.Context, string) (bool, error)
		value string
	}{
		{"username", s.repo.ExistsByUsername, req.Username},
		{"email", s.repo.ExistsByEmail, req.Email},
		{"CIN", s.repo.ExistsByCIN, req.CIN},
	}
	for _, check := range checks {
		taken, err := check.fn(ctx, check.value)
		if err != nil {
			return internalError(err, "failed to check "+check.field)
		}
		if taken {
			return appErrors.Clone(appErrors.ErrConflict, check.field+" already in use")
		}
	}
	return nil
}

func (s *AuthService) checkRoleFields(ctx context.Context, req models.RegisterRequest) error {
	if req.Role != models.RoleStudent {
		if req.ClassID != nil || req.ParentID != nil {
			return invalid("only students can have a class or a parent")
		}
		return nil
	}
	if req.ClassID != nil {
		if _, err := s.classes.FindByID(ctx, *req.ClassID); err != nil {
			return loadError(err, "class")
		}
	}
	if req.ParentID != nil {
		ok, err := s.repo.ExistsWithRole(ctx, *req.ParentID, models.RoleParent)
		if err != nil && !missingRow(err) {
			return internalError(err, "failed to check parent")
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
	}
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return internalError(err, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash), s.now()); err != nil {
		return internalError(err, "failed to update password")
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password update", zap.Error(err))
	}
	return nil
}

func (s *AuthService) issueRefreshToken(ctx context.Context, userID, ip, userAgent string, now time.Time) (*models.RefreshToken, error) {
	value, err := generateRefreshTokenString()
	if err != nil {
		return nil, internalError(err, "failed to create refresh token")
	}
	token := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     value,
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		CreatedAt: now,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.repo.CreateRefreshToken(ctx, token); err != nil {
		return nil, internalError(err, "failed to persist refresh token")
	}
	return token, nil
}

func (s *AuthService) generateAccessToken(user *models.User, issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) audit(ctx context.Context, entry *models.AuditLog) {
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func (s *AuthService) enqueueMail(kind string, msg mail.Message) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Enqueue(kind, msg); err != nil {
		s.logger.Warn("failed to queue mail", zap.String("kind", kind), zap.Error(err))
	}
}

func (s *AuthService) link(path string) string {
	return strings.TrimSuffix(s.config.FrontendBaseURL, "/") + path
}

func generateRefreshTokenString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
