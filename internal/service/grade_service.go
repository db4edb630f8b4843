package service

import (
	"context"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
)

type gradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error)
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	Exists(ctx context.Context, studentID, activityID, excludeID string) (bool, error)
	Create(ctx context.Context, g *models.Grade) error
	Update(ctx context.Context, g *models.Grade) error
	Delete(ctx context.Context, id string) error
	DeleteByStudent(ctx context.Context, studentID string) (int64, error)
	DeleteByActivity(ctx context.Context, activityID string) (int64, error)
	AverageByStudent(ctx context.Context, studentID string) (models.GradeAverage, error)
	AverageByActivity(ctx context.Context, activityID string) (models.GradeAverage, error)
}

type roleChecker interface {
	ExistsWithRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}

type activityLookup interface {
	FindByID(ctx context.Context, id string) (*models.Activity, error)
}

// GradeRequest is the create and update payload of a grade.
type GradeRequest struct {
	Value      *float64 `json:"value" validate:"required,gte=0,lte=20"`
	StudentID  string   `json:"student_id" validate:"required"`
	ActivityID string   `json:"activity_id" validate:"required"`
}

// GradeService records student marks.
type GradeService struct {
	repo       gradeRepository
	students   roleChecker
	activities activityLookup
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewGradeService creates an instance of GradeService.
func NewGradeService(repo gradeRepository, students roleChecker, activities activityLookup, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, students: students, activities: activities, validator: validate, logger: logger}
}

// List returns grades of a student or an activity.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list grades")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a grade by id.
func (s *GradeService) Get(ctx context.Context, id string) (*models.Grade, error) {
	grade, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "grade")
	}
	return grade, nil
}

// Create records a mark; a student has at most one grade per activity.
func (s *GradeService) Create(ctx context.Context, req GradeRequest) (*models.Grade, error) {
	if err := s.checkRequest(ctx, req, ""); err != nil {
		return nil, err
	}
	grade := &models.Grade{Value: *req.Value, StudentID: req.StudentID, ActivityID: req.ActivityID}
	if err := s.repo.Create(ctx, grade); err != nil {
		return nil, writeFailure(err, "grade", "create")
	}
	return grade, nil
}

// Update rewrites a grade.
func (s *GradeService) Update(ctx context.Context, id string, req GradeRequest) (*models.Grade, error) {
	grade, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkRequest(ctx, req, id); err != nil {
		return nil, err
	}
	grade.Value = *req.Value
	grade.StudentID = req.StudentID
	grade.ActivityID = req.ActivityID
	if err := s.repo.Update(ctx, grade); err != nil {
		return nil, writeFailure(err, "grade", "update")
	}
	return grade, nil
}

// Delete removes a grade.
func (s *GradeService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeFailure(err, "grade", "delete")
	}
	return nil
}

// DeleteByStudent removes every grade of a student and returns how many went.
func (s *GradeService) DeleteByStudent(ctx context.Context, studentID string) (int64, error) {
	if err := s.ensureStudent(ctx, studentID); err != nil {
		return 0, err
	}
	removed, err := s.repo.DeleteByStudent(ctx, studentID)
	if err != nil {
		return 0, internalError(err, "failed to delete grades")
	}
	s.logger.Info("student grades deleted", zap.String("student_id", studentID), zap.Int64("count", removed))
	return removed, nil
}

// DeleteByActivity removes every grade of an activity.
func (s *GradeService) DeleteByActivity(ctx context.Context, activityID string) (int64, error) {
	if _, err := s.activities.FindByID(ctx, activityID); err != nil {
		return 0, loadError(err, "activity")
	}
	removed, err := s.repo.DeleteByActivity(ctx, activityID)
	if err != nil {
		return 0, internalError(err, "failed to delete grades")
	}
	return removed, nil
}

// StudentAverage returns the mean mark of a student, rounded to 2 decimals.
func (s *GradeService) StudentAverage(ctx context.Context, studentID string) (*models.GradeAverage, error) {
	if err := s.ensureStudent(ctx, studentID); err != nil {
		return nil, err
	}
	avg, err := s.repo.AverageByStudent(ctx, studentID)
	if err != nil {
		return nil, internalError(err, "failed to compute student average")
	}
	avg.Average = math.Round(avg.Average*100) / 100
	return &avg, nil
}

// ActivityAverage returns the mean mark of an activity, rounded to 2 decimals.
func (s *GradeService) ActivityAverage(ctx context.Context, activityID string) (*models.GradeAverage, error) {
	if _, err := s.activities.FindByID(ctx, activityID); err != nil {
		return nil, loadError(err, "activity")
	}
	avg, err := s.repo.AverageByActivity(ctx, activityID)
	if err != nil {
		return nil, internalError(err, "failed to compute activity average")
	}
	avg.Average = math.Round(avg.Average*100) / 100
	return &avg, nil
}

func (s *GradeService) checkRequest(ctx context.Context, req GradeRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid grade payload")
	}
	if err := s.ensureStudent(ctx, req.StudentID); err != nil {
		return err
	}
	if _, err := s.activities.FindByID(ctx, req.ActivityID); err != nil {
		return loadError(err, "activity")
	}
	exists, err := s.repo.Exists(ctx, req.StudentID, req.ActivityID, excludeID)
	if err != nil {
		return internalError(err, "failed to check grade")
	}
	if exists {
		return conflict("student already has a grade for this activity")
	}
	return nil
}

func (s *GradeService) ensureStudent(ctx context.Context, studentID string) error {
	ok, err := s.students.ExistsWithRole(ctx, studentID, models.RoleStudent)
	if err != nil && !missingRow(err) {
		return internalError(err, "failed to check student")
	}
	if !ok {
		return notFound("student")
	}
	return nil
}
