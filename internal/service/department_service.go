package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
)

type departmentRepository interface {
	List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, int, error)
	FindByID(ctx context.Context, id string) (*models.Department, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, d *models.Department) error
	Update(ctx context.Context, d *models.Department) error
	Delete(ctx context.Context, id string) error
}

// DepartmentRequest is the create and update payload of a department.
type DepartmentRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// DepartmentService manages departments.
type DepartmentService struct {
	repo      departmentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService creates an instance of DepartmentService.
func NewDepartmentService(repo departmentRepository, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated departments.
func (s *DepartmentService) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list departments")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a department by id.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.Department, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "department")
	}
	return d, nil
}

// Create adds a department with a unique name.
func (s *DepartmentService) Create(ctx context.Context, req DepartmentRequest) (*models.Department, error) {
	name, err := s.checkName(ctx, req, "")
	if err != nil {
		return nil, err
	}
	d := &models.Department{Name: name}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, writeFailure(err, "department", "create")
	}
	return d, nil
}

// Update renames a department.
func (s *DepartmentService) Update(ctx context.Context, id string, req DepartmentRequest) (*models.Department, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	name, err := s.checkName(ctx, req, id)
	if err != nil {
		return nil, err
	}
	d.Name = name
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, writeFailure(err, "department", "update")
	}
	return d, nil
}

// Delete removes a department together with its levels. Levels that still
// hold classes make the delete fail with a conflict.
func (s *DepartmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeFailure(err, "department", "delete")
	}
	s.logger.Info("department deleted", zap.String("department_id", id))
	return nil
}

func (s *DepartmentService) checkName(ctx context.Context, req DepartmentRequest, excludeID string) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return "", validationError(err, "invalid department payload")
	}
	exists, err := s.repo.ExistsByName(ctx, req.Name, excludeID)
	if err != nil {
		return "", internalError(err, "failed to check department name")
	}
	if exists {
		return "", conflict("department name already exists")
	}
	return req.Name, nil
}
