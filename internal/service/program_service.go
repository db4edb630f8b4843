package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/internal/repository"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
)

type programRepository interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error)
	FindByID(ctx context.Context, id string) (*models.Program, error)
	FindByClass(ctx context.Context, classID string) (*models.Program, error)
	FindBySubject(ctx context.Context, subjectID string) (*models.Program, error)
	FindShared(ctx context.Context, classID, subjectID string) (*models.Program, error)
	Members(ctx context.Context, programID string) ([]models.Class, []models.Subject, error)
	Create(ctx context.Context, p *models.Program) error
	Update(ctx context.Context, p *models.Program) error
	Delete(ctx context.Context, id string) error
	AssignSubjectToClass(ctx context.Context, classID, subjectID, description string) (*models.Program, error)
	RemoveSubjectFromClass(ctx context.Context, classID, subjectID string) (bool, error)
	AssignClass(ctx context.Context, programID, classID string) error
	AssignSubject(ctx context.Context, programID, subjectID string) error
	RemoveClass(ctx context.Context, programID, classID string) error
	RemoveSubject(ctx context.Context, programID, subjectID string) error
}

// ProgramRequest is the create and update payload of a program.
type ProgramRequest struct {
	Description string `json:"description" validate:"required,max=255"`
}

// ClassSubjectRequest links a subject to a class through a program.
type ClassSubjectRequest struct {
	ClassID     string `json:"class_id" validate:"required"`
	SubjectID   string `json:"subject_id" validate:"required"`
	Description string `json:"description" validate:"max=255"`
}

// ProgramService manages programs and the membership of classes and subjects.
type ProgramService struct {
	repo      programRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService creates an instance of ProgramService.
func NewProgramService(repo programRepository, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated programs.
func (s *ProgramService) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list programs")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a program with its classes and subjects.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.ProgramDetail, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "program")
	}
	classes, subjects, err := s.repo.Members(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load program members")
	}
	if classes == nil {
		classes = []models.Class{}
	}
	if subjects == nil {
		subjects = []models.Subject{}
	}
	return &models.ProgramDetail{Program: *program, Classes: classes, Subjects: subjects}, nil
}

// Exists reports whether a program with id is stored.
func (s *ProgramService) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, internalError(err, "failed to load program")
	}
	return true, nil
}

// Create adds an empty program.
func (s *ProgramService) Create(ctx context.Context, req ProgramRequest) (*models.Program, error) {
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid program payload")
	}
	program := &models.Program{Description: req.Description}
	if err := s.repo.Create(ctx, program); err != nil {
		return nil, writeFailure(err, "program", "create")
	}
	return program, nil
}

// Update changes the description of a program.
func (s *ProgramService) Update(ctx context.Context, id string, req ProgramRequest) (*models.Program, error) {
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid program payload")
	}
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "program")
	}
	program.Description = req.Description
	if err := s.repo.Update(ctx, program); err != nil {
		return nil, writeFailure(err, "program", "update")
	}
	return program, nil
}

// Delete removes a program; its members stay and lose the membership.
func (s *ProgramService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeFailure(err, "program", "delete")
	}
	return nil
}

// AssignSubjectToClass places the class and the subject in one program.
func (s *ProgramService) AssignSubjectToClass(ctx context.Context, req ClassSubjectRequest) (*models.Program, error) {
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}
	if req.Description == "" {
		req.Description = "Program"
	}
	program, err := s.repo.AssignSubjectToClass(ctx, req.ClassID, req.SubjectID, req.Description)
	if err != nil {
		return nil, programFailure(err, "class or subject")
	}
	s.logger.Info("subject assigned to class",
		zap.String("class_id", req.ClassID),
		zap.String("subject_id", req.SubjectID),
		zap.String("program_id", program.ID),
	)
	return program, nil
}

// RemoveSubjectFromClass detaches the subject from the class's program.
// It reports whether the program became empty and was deleted.
func (s *ProgramService) RemoveSubjectFromClass(ctx context.Context, classID, subjectID string) (bool, error) {
	deleted, err := s.repo.RemoveSubjectFromClass(ctx, classID, subjectID)
	if err != nil {
		return false, programFailure(err, "class or subject")
	}
	return deleted, nil
}

// AssignClass moves a class into the program.
func (s *ProgramService) AssignClass(ctx context.Context, programID, classID string) error {
	if err := s.repo.AssignClass(ctx, programID, classID); err != nil {
		return programFailure(err, "program or class")
	}
	return nil
}

// RemoveClass detaches a class from the program.
func (s *ProgramService) RemoveClass(ctx context.Context, programID, classID string) error {
	if err := s.repo.RemoveClass(ctx, programID, classID); err != nil {
		return programFailure(err, "program or class")
	}
	return nil
}

// AssignSubject moves a subject into the program.
func (s *ProgramService) AssignSubject(ctx context.Context, programID, subjectID string) error {
	if err := s.repo.AssignSubject(ctx, programID, subjectID); err != nil {
		return programFailure(err, "program or subject")
	}
	return nil
}

// RemoveSubject detaches a subject from the program.
func (s *ProgramService) RemoveSubject(ctx context.Context, programID, subjectID string) error {
	if err := s.repo.RemoveSubject(ctx, programID, subjectID); err != nil {
		return programFailure(err, "program or subject")
	}
	return nil
}

// FindByClass returns the program a class follows.
func (s *ProgramService) FindByClass(ctx context.Context, classID string) (*models.Program, error) {
	program, err := s.repo.FindByClass(ctx, classID)
	if err != nil {
		return nil, loadError(err, "program")
	}
	return program, nil
}

// FindBySubject returns the program a subject belongs to.
func (s *ProgramService) FindBySubject(ctx context.Context, subjectID string) (*models.Program, error) {
	program, err := s.repo.FindBySubject(ctx, subjectID)
	if err != nil {
		return nil, loadError(err, "program")
	}
	return program, nil
}

// FindShared returns the program that links a class and a subject.
func (s *ProgramService) FindShared(ctx context.Context, classID, subjectID string) (*models.Program, error) {
	program, err := s.repo.FindShared(ctx, classID, subjectID)
	if err != nil {
		return nil, loadError(err, "program")
	}
	return program, nil
}

// Statistics counts and names the members of a program.
func (s *ProgramService) Statistics(ctx context.Context, id string) (*models.ProgramStatistics, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	stats := &models.ProgramStatistics{
		ProgramID:    detail.ID,
		Description:  detail.Description,
		ClassCount:   len(detail.Classes),
		SubjectCount: len(detail.Subjects),
		ClassNames:   make([]string, 0, len(detail.Classes)),
		SubjectNames: make([]string, 0, len(detail.Subjects)),
	}
	for _, c := range detail.Classes {
		stats.ClassNames = append(stats.ClassNames, c.Name)
	}
	for _, sub := range detail.Subjects {
		stats.SubjectNames = append(stats.SubjectNames, sub.Name)
	}
	return stats, nil
}

// programFailure maps a membership change failure. Missing rows name what.
func programFailure(err error, what string) *appErrors.Error {
	switch {
	case errors.Is(err, repository.ErrNotAssociated):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "subject or class is not associated with the program")
	case missingRow(err):
		return notFound(what)
	default:
		return internalError(err, "failed to update program membership")
	}
}
