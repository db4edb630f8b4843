package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/pkg/cache"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

// subjectPrograms is the part of the program store that moves a subject in and out of programs.
type subjectPrograms interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

// SubjectRequest is the create and update payload of a subject.
type SubjectRequest struct {
	Name      string  `json:"name" validate:"required,max=100"`
	ProgramID *string `json:"program_id"`
}

// SubjectService handles subject domain workflows.
type SubjectService struct {
	repo      subjectRepository
	programs  subjectPrograms
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, programs subjectPrograms, cacheSvc *CacheService, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, programs: programs, cache: cacheSvc, validator: validate, logger: logger}
}

// List returns paginated subjects filtered by program, class or name.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list subjects")
	}
	return subjects, paginate(filter.Page, filter.PageSize, total), nil
}

// Search matches subjects by name.
func (s *SubjectService) Search(ctx context.Context, term string, page, size int) ([]models.Subject, *models.Pagination, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil, invalid("search term is required")
	}
	return s.List(ctx, models.SubjectFilter{Search: term, Page: page, PageSize: size})
}

// Get returns subject by identifier.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "subject")
	}
	return subject, nil
}

// Create adds a subject with a unique name.
func (s *SubjectService) Create(ctx context.Context, req SubjectRequest) (*models.Subject, error) {
	if err := s.checkRequest(ctx, &req, ""); err != nil {
		return nil, err
	}
	if req.ProgramID != nil {
		if _, err := s.programs.FindByID(ctx, *req.ProgramID); err != nil {
			return nil, loadError(err, "program")
		}
	}
	subject := &models.Subject{Name: req.Name, ProgramID: req.ProgramID}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, writeFailure(err, "subject", "create")
	}
	return subject, nil
}

// Update renames a subject. Program membership goes through ProgramService.
func (s *SubjectService) Update(ctx context.Context, id string, req SubjectRequest) (*models.Subject, error) {
	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkRequest(ctx, &req, id); err != nil {
		return nil, err
	}
	subject.Name = req.Name
	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, writeFailure(err, "subject", "update")
	}
	s.cache.Invalidate(ctx, cache.Key("sessions", "*"))
	return subject, nil
}

// Delete removes a subject with its sessions and activities. A program it
// leaves empty is removed with it.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeFailure(err, "subject", "delete")
	}
	s.cache.Invalidate(ctx, cache.Key("sessions", "*"))
	s.logger.Info("subject deleted", zap.String("subject_id", id))
	return nil
}

func (s *SubjectService) checkRequest(ctx context.Context, req *SubjectRequest, excludeID string) error {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid subject payload")
	}
	exists, err := s.repo.ExistsByName(ctx, req.Name, excludeID)
	if err != nil {
		return internalError(err, "failed to check subject name")
	}
	if exists {
		return conflict("subject name already exists")
	}
	return nil
}
