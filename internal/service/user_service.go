package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/pkg/cache"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
	UpdateStatus(ctx context.Context, id string, enabled, locked bool) error
	Delete(ctx context.Context, id string) error
	Statistics(ctx context.Context, since time.Time) (*models.UserStatistics, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type teacherSessionLister interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Session, error)
}

type resetIssuer interface {
	IssueResetToken(ctx context.Context, user *models.User) error
}

// RequestMeta identifies the client behind an administrative action.
type RequestMeta struct {
	IP        string
	UserAgent string
}

const recentUserWindow = 30 * 24 * time.Hour

// UserService handles account administration.
type UserService struct {
	repo      userRepository
	sessions  teacherSessionLister
	resets    resetIssuer
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService. cacheSvc may be nil.
func NewUserService(repo userRepository, sessions teacherSessionLister, resets resetIssuer, cacheSvc *CacheService, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, sessions: sessions, resets: resets, cache: cacheSvc, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, invalid("unknown role")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	return users, paginate(filter.Page, filter.PageSize, total), nil
}

// Search matches the term against names, username and email.
func (s *UserService) Search(ctx context.Context, term string, page, size int) ([]models.User, *models.Pagination, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil, invalid("search term is required")
	}
	return s.List(ctx, models.UserFilter{Search: term, Page: page, PageSize: size})
}

// ListByRole returns every account with role.
func (s *UserService) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	role = models.UserRole(strings.ToUpper(string(role)))
	if !role.Valid() {
		return nil, invalid("unknown role")
	}
	users, err := s.repo.ListByRole(ctx, role)
	if err != nil {
		return nil, internalError(err, "failed to list users")
	}
	return users, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "user")
	}
	return user, nil
}

// TeacherProfile returns a TEACHER account with its sessions.
func (s *UserService) TeacherProfile(ctx context.Context, id string) (*models.TeacherProfile, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	sessions, err := s.sessions.ListByTeacher(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load teacher sessions")
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	return &models.TeacherProfile{User: *user, Sessions: sessions}, nil
}

// UpdateStatus enables, disables, locks or unlocks an account.
func (s *UserService) UpdateStatus(ctx context.Context, actorID, id string, req models.UserStatusUpdate, meta RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid status payload")
	}
	if req.Enabled == nil && req.Locked == nil {
		return nil, invalid("enabled or locked is required")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before, _ := json.Marshal(map[string]bool{"enabled": user.Enabled, "locked": user.Locked})

	if req.Enabled != nil {
		user.Enabled = *req.Enabled
	}
	if req.Locked != nil {
		user.Locked = *req.Locked
	}
	if err := s.repo.UpdateStatus(ctx, id, user.Enabled, user.Locked); err != nil {
		return nil, internalError(err, "failed to update user status")
	}

	after, _ := json.Marshal(map[string]interface{}{"enabled": user.Enabled, "locked": user.Locked, "reason": req.Reason})
	s.audit(ctx, &models.AuditLog{
		UserID:     optionalID(actorID),
		Action:     models.AuditActionUserStatus,
		Resource:   "user",
		ResourceID: &user.ID,
		OldValues:  before,
		NewValues:  after,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return user, nil
}

// ResetPassword issues a reset token for the account and mails it.
func (s *UserService) ResetPassword(ctx context.Context, actorID, id string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.resets.IssueResetToken(ctx, user); err != nil {
		return err
	}
	s.logger.Info("password reset issued by administrator", zap.String("actor_id", actorID), zap.String("user_id", id))
	return nil
}

// Delete removes an account. The last ADMINISTRATOR cannot be removed.
func (s *UserService) Delete(ctx context.Context, actorID, id string, meta RequestMeta) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAdministrator {
		admins, err := s.repo.CountByRole(ctx, models.RoleAdministrator)
		if err != nil {
			return internalError(err, "failed to count administrators")
		}
		if admins <= 1 {
			return appErrors.Clone(appErrors.ErrConflict, "cannot delete the last administrator")
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return loadError(err, "user")
	}
	s.invalidateOwned(ctx, user.Role)
	before, _ := json.Marshal(map[string]string{"username": user.Username, "role": string(user.Role)})
	s.audit(ctx, &models.AuditLog{
		UserID:     optionalID(actorID),
		Action:     models.AuditActionUserDelete,
		Resource:   "user",
		ResourceID: &user.ID,
		OldValues:  before,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return nil
}

// Statistics summarises the account population.
func (s *UserService) Statistics(ctx context.Context) (*models.UserStatistics, error) {
	stats, err := s.repo.Statistics(ctx, time.Now().UTC().Add(-recentUserWindow))
	if err != nil {
		return nil, internalError(err, "failed to compute user statistics")
	}
	if stats.UsersByRole == nil {
		stats.UsersByRole = make(map[models.UserRole]int)
	}
	for _, role := range models.Roles() {
		if _, ok := stats.UsersByRole[role]; !ok {
			stats.UsersByRole[role] = 0
		}
	}
	return stats, nil
}

// invalidateOwned drops the projections built from rows that cascade with the account.
func (s *UserService) invalidateOwned(ctx context.Context, role models.UserRole) {
	switch role {
	case models.RoleTeacher:
		s.cache.Invalidate(ctx, cache.Key("sessions", "*"))
	case models.RoleStudent:
		s.cache.Invalidate(ctx, cache.Key("absences", "*"))
	}
}

func (s *UserService) audit(ctx context.Context, entry *models.AuditLog) {
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}
