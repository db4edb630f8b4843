package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
)

type activityRepository interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error)
	FindByID(ctx context.Context, id string) (*models.Activity, error)
	Create(ctx context.Context, a *models.Activity) error
	Update(ctx context.Context, a *models.Activity) error
	Delete(ctx context.Context, id string) error
}

type subjectExistence interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// ActivityRequest is the create and update payload of an activity.
type ActivityRequest struct {
	Type        models.ActivityType `json:"type" validate:"required"`
	Title       string              `json:"title" validate:"required,max=200"`
	Date        *time.Time          `json:"date"`
	Resources   *string             `json:"resources"`
	Description *string             `json:"description"`
	SubjectID   string              `json:"subject_id" validate:"required"`
}

// ActivityService manages graded activities.
type ActivityService struct {
	repo      activityRepository
	subjects  subjectExistence
	validator *validator.Validate
	logger    *zap.Logger
}

// NewActivityService creates an instance of ActivityService.
func NewActivityService(repo activityRepository, subjects subjectExistence, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, subjects: subjects, validator: validate, logger: logger}
}

// List returns activities filtered by subject, type, date range or title.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, *models.Pagination, error) {
	if filter.Type != "" {
		filter.Type = models.ActivityType(strings.ToUpper(string(filter.Type)))
		if !filter.Type.Valid() {
			return nil, nil, invalid("unknown activity type")
		}
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, nil, invalid("from must not be after to")
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list activities")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns an activity by id.
func (s *ActivityService) Get(ctx context.Context, id string) (*models.Activity, error) {
	activity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "activity")
	}
	return activity, nil
}

// Create adds an activity to an existing subject.
func (s *ActivityService) Create(ctx context.Context, req ActivityRequest) (*models.Activity, error) {
	if err := s.checkRequest(ctx, &req); err != nil {
		return nil, err
	}
	activity := &models.Activity{}
	req.apply(activity)
	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, writeFailure(err, "activity", "create")
	}
	return activity, nil
}

// Update rewrites an activity.
func (s *ActivityService) Update(ctx context.Context, id string, req ActivityRequest) (*models.Activity, error) {
	activity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkRequest(ctx, &req); err != nil {
		return nil, err
	}
	req.apply(activity)
	if err := s.repo.Update(ctx, activity); err != nil {
		return nil, writeFailure(err, "activity", "update")
	}
	return activity, nil
}

// Delete removes an activity and its grades.
func (s *ActivityService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeFailure(err, "activity", "delete")
	}
	return nil
}

func (s *ActivityService) checkRequest(ctx context.Context, req *ActivityRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Type = models.ActivityType(strings.ToUpper(string(req.Type)))
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid activity payload")
	}
	if !req.Type.Valid() {
		return invalid("unknown activity type")
	}
	ok, err := s.subjects.Exists(ctx, req.SubjectID)
	if err != nil && !missingRow(err) {
		return internalError(err, "failed to check subject")
	}
	if !ok {
		return notFound("subject")
	}
	return nil
}

func (r ActivityRequest) apply(a *models.Activity) {
	a.Type = r.Type
	a.Title = r.Title
	a.Date = r.Date
	a.Resources = r.Resources
	a.Description = r.Description
	a.SubjectID = r.SubjectID
}
