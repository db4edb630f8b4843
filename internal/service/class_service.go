package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, c *models.Class) error
	Update(ctx context.Context, c *models.Class) error
	Delete(ctx context.Context, id string) error
}

type levelLookup interface {
	FindByID(ctx context.Context, id string) (*models.LevelDetail, error)
}

// classPrograms is the part of the program store that moves a class in and out of programs.
type classPrograms interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
	AssignClass(ctx context.Context, programID, classID string) error
	ReleaseClass(ctx context.Context, classID string) (bool, error)
}

// ClassRequest is the create and update payload of a class.
type ClassRequest struct {
	Name      string  `json:"name" validate:"required,max=100"`
	LevelID   string  `json:"level_id" validate:"required"`
	ProgramID *string `json:"program_id"`
}

// ClassService coordinates class operations.
type ClassService struct {
	repo      classRepository
	levels    levelLookup
	programs  classPrograms
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, levels levelLookup, programs classPrograms, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, levels: levels, programs: programs, validator: validate, logger: logger}
}

// List returns classes filtered by level, department, program or subject.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list classes")
	}
	return classes, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a class by id.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "class")
	}
	return class, nil
}

// Create adds a class at an existing level, optionally inside a program.
func (s *ClassService) Create(ctx context.Context, req ClassRequest) (*models.Class, error) {
	if err := s.checkRequest(ctx, &req, ""); err != nil {
		return nil, err
	}
	if req.ProgramID != nil {
		if _, err := s.programs.FindByID(ctx, *req.ProgramID); err != nil {
			return nil, loadError(err, "program")
		}
	}
	class := &models.Class{Name: req.Name, LevelID: req.LevelID, ProgramID: req.ProgramID}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, writeFailure(err, "class", "create")
	}
	return class, nil
}

// Update renames a class or moves it to another level. A differing
// program id moves the class into that program.
func (s *ClassService) Update(ctx context.Context, id string, req ClassRequest) (*models.Class, error) {
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkRequest(ctx, &req, id); err != nil {
		return nil, err
	}
	class.Name = req.Name
	class.LevelID = req.LevelID
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, writeFailure(err, "class", "update")
	}
	if req.ProgramID != nil && (class.ProgramID == nil || *class.ProgramID != *req.ProgramID) {
		return s.AssignProgram(ctx, id, *req.ProgramID)
	}
	return class, nil
}

// Delete removes a class. A program it leaves empty is removed with it.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeFailure(err, "class", "delete")
	}
	return nil
}

// AssignProgram moves a class into a program.
func (s *ClassService) AssignProgram(ctx context.Context, classID, programID string) (*models.Class, error) {
	if err := s.programs.AssignClass(ctx, programID, classID); err != nil {
		return nil, programFailure(err, "class or program")
	}
	s.logger.Info("class assigned to program", zap.String("class_id", classID), zap.String("program_id", programID))
	return s.Get(ctx, classID)
}

// RemoveProgram detaches a class from its program.
func (s *ClassService) RemoveProgram(ctx context.Context, classID string) (*models.Class, error) {
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	deleted, err := s.programs.ReleaseClass(ctx, classID)
	if err != nil {
		return nil, programFailure(err, "class")
	}
	if deleted {
		s.logger.Info("empty program removed", zap.String("class_id", classID))
	}
	return s.Get(ctx, classID)
}

func (s *ClassService) checkRequest(ctx context.Context, req *ClassRequest, excludeID string) error {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid class payload")
	}
	if _, err := s.levels.FindByID(ctx, req.LevelID); err != nil {
		return loadError(err, "level")
	}
	exists, err := s.repo.ExistsByName(ctx, req.Name, excludeID)
	if err != nil {
		return internalError(err, "failed to check class name")
	}
	if exists {
		return conflict("class name already exists")
	}
	return nil
}
