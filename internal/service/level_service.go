package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
)

type levelRepository interface {
	List(ctx context.Context, filter models.LevelFilter) ([]models.LevelDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.LevelDetail, error)
	ExistsInDepartment(ctx context.Context, departmentID, name, excludeID string) (bool, error)
	CountClasses(ctx context.Context, levelID string) (int, error)
	Create(ctx context.Context, l *models.Level) error
	Update(ctx context.Context, l *models.Level) error
	Delete(ctx context.Context, id string) error
}

type departmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

// LevelRequest is the create and update payload of a level.
type LevelRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	DepartmentID string `json:"department_id" validate:"required"`
}

// LevelService manages levels inside departments.
type LevelService struct {
	repo        levelRepository
	departments departmentLookup
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewLevelService creates an instance of LevelService.
func NewLevelService(repo levelRepository, departments departmentLookup, validate *validator.Validate, logger *zap.Logger) *LevelService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LevelService{repo: repo, departments: departments, validator: validate, logger: logger}
}

// List returns paginated levels, optionally restricted to a department.
func (s *LevelService) List(ctx context.Context, filter models.LevelFilter) ([]models.LevelDetail, *models.Pagination, error) {
	if filter.DepartmentID != "" {
		if _, err := s.department(ctx, filter.DepartmentID); err != nil {
			return nil, nil, err
		}
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list levels")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a level with its department name.
func (s *LevelService) Get(ctx context.Context, id string) (*models.LevelDetail, error) {
	level, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "level")
	}
	return level, nil
}

// HierarchyPath renders the "department / level" path of a level.
func (s *LevelService) HierarchyPath(ctx context.Context, id string) (string, error) {
	level, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return level.HierarchyPath(), nil
}

// CountClasses returns how many classes sit at the level.
func (s *LevelService) CountClasses(ctx context.Context, id string) (int, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return 0, err
	}
	count, err := s.repo.CountClasses(ctx, id)
	if err != nil {
		return 0, internalError(err, "failed to count classes")
	}
	return count, nil
}

// Create adds a level whose name is unique within its department.
func (s *LevelService) Create(ctx context.Context, req LevelRequest) (*models.LevelDetail, error) {
	dept, err := s.checkRequest(ctx, &req, "")
	if err != nil {
		return nil, err
	}
	level := models.Level{Name: req.Name, DepartmentID: dept.ID}
	if err := s.repo.Create(ctx, &level); err != nil {
		return nil, writeFailure(err, "level", "create")
	}
	return &models.LevelDetail{Level: level, DepartmentName: dept.Name}, nil
}

// Update renames or moves a level.
func (s *LevelService) Update(ctx context.Context, id string, req LevelRequest) (*models.LevelDetail, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dept, err := s.checkRequest(ctx, &req, id)
	if err != nil {
		return nil, err
	}
	current.Name = req.Name
	current.DepartmentID = dept.ID
	current.DepartmentName = dept.Name
	if err := s.repo.Update(ctx, &current.Level); err != nil {
		return nil, writeFailure(err, "level", "update")
	}
	return current, nil
}

// Delete removes a level that no class uses.
func (s *LevelService) Delete(ctx context.Context, id string) error {
	count, err := s.CountClasses(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return conflict("level still has classes")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeFailure(err, "level", "delete")
	}
	return nil
}

func (s *LevelService) checkRequest(ctx context.Context, req *LevelRequest, excludeID string) (*models.Department, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid level payload")
	}
	dept, err := s.department(ctx, req.DepartmentID)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsInDepartment(ctx, dept.ID, req.Name, excludeID)
	if err != nil {
		return nil, internalError(err, "failed to check level name")
	}
	if exists {
		return nil, conflict("level name already exists in department")
	}
	return dept, nil
}

func (s *LevelService) department(ctx context.Context, id string) (*models.Department, error) {
	dept, err := s.departments.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "department")
	}
	return dept, nil
}
