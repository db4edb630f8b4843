package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/internal/repository"
	"github.com/noah-isme/school-api/pkg/cache"
)

const topAbsentLimit = 5

type absenceRepository interface {
	List(ctx context.Context, filter models.AbsenceFilter) ([]models.Absence, int, error)
	FindByID(ctx context.Context, id string) (*models.Absence, error)
	Create(ctx context.Context, a *models.Absence) error
	Update(ctx context.Context, a *models.Absence) error
	Delete(ctx context.Context, id string) error
	CountsByStudent(ctx context.Context, studentID string) (repository.AbsenceCounts, error)
	CountsByClass(ctx context.Context, classID string) (repository.AbsenceCounts, error)
	TopAbsentStudents(ctx context.Context, classID string, limit int) ([]models.AbsentStudent, error)
}

type absenceStudents interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListStudentsByClass(ctx context.Context, classID string) ([]models.User, error)
}

type absenceClasses interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// AbsenceRequest is the create and update payload of an absence.
type AbsenceRequest struct {
	Date              time.Time            `json:"date" validate:"required"`
	Justified         bool                 `json:"justified"`
	Remark            *string              `json:"remark" validate:"omitempty,max=500"`
	Status            models.AbsenceStatus `json:"status" validate:"required"`
	JustificationText *string              `json:"justification_text" validate:"omitempty,max=1000"`
	StudentID         string               `json:"student_id" validate:"required"`
}

// JustifyRequest carries the justification of an absence.
type JustifyRequest struct {
	Text string `json:"justification_text" validate:"required,max=1000"`
}

// AbsenceStatusRequest changes the review state of an absence.
type AbsenceStatusRequest struct {
	Status models.AbsenceStatus `json:"status" validate:"required"`
}

// AbsenceService records absences and derives attendance statistics.
type AbsenceService struct {
	repo      absenceRepository
	students  absenceStudents
	classes   absenceClasses
	levels    levelLookup
	cache     *CacheService
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAbsenceService creates an instance of AbsenceService. Statistics are cached for ttl.
func NewAbsenceService(repo absenceRepository, students absenceStudents, classes absenceClasses, levels levelLookup, cacheSvc *CacheService, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *AbsenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AbsenceService{
		repo:      repo,
		students:  students,
		classes:   classes,
		levels:    levels,
		cache:     cacheSvc,
		ttl:       ttl,
		validator: validate,
		logger:    logger,
	}
}

// List returns absences filtered by student, class, status, justification or date range.
func (s *AbsenceService) List(ctx context.Context, filter models.AbsenceFilter) ([]models.Absence, *models.Pagination, error) {
	if filter.Status != "" {
		filter.Status = models.AbsenceStatus(strings.ToUpper(string(filter.Status)))
		if !filter.Status.Valid() {
			return nil, nil, invalid("unknown absence status")
		}
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, nil, invalid("from must not be after to")
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list absences")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns an absence by id.
func (s *AbsenceService) Get(ctx context.Context, id string) (*models.Absence, error) {
	absence, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "absence")
	}
	return absence, nil
}

// Create records an absence for a student.
func (s *AbsenceService) Create(ctx context.Context, req AbsenceRequest) (*models.Absence, error) {
	if err := s.checkRequest(ctx, &req); err != nil {
		return nil, err
	}
	absence := &models.Absence{}
	req.apply(absence)
	if err := s.repo.Create(ctx, absence); err != nil {
		return nil, writeFailure(err, "absence", "create")
	}
	s.invalidate(ctx)
	return absence, nil
}

// Update rewrites an absence.
func (s *AbsenceService) Update(ctx context.Context, id string, req AbsenceRequest) (*models.Absence, error) {
	absence, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkRequest(ctx, &req); err != nil {
		return nil, err
	}
	req.apply(absence)
	return s.save(ctx, absence)
}

// Delete removes an absence.
func (s *AbsenceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeFailure(err, "absence", "delete")
	}
	s.invalidate(ctx)
	return nil
}

// Justify marks an absence as justified with the given text.
func (s *AbsenceService) Justify(ctx context.Context, id string, req JustifyRequest) (*models.Absence, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "justification text is required")
	}
	absence, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	absence.Justified = true
	absence.JustificationText = &req.Text
	return s.save(ctx, absence)
}

// Unjustify clears the justification of an absence.
func (s *AbsenceService) Unjustify(ctx context.Context, id string) (*models.Absence, error) {
	absence, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	absence.Justified = false
	absence.JustificationText = nil
	return s.save(ctx, absence)
}

// ChangeStatus moves an absence to another review state.
func (s *AbsenceService) ChangeStatus(ctx context.Context, id string, req AbsenceStatusRequest) (*models.Absence, error) {
	req.Status = models.AbsenceStatus(strings.ToUpper(string(req.Status)))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid status payload")
	}
	if !req.Status.Valid() {
		return nil, invalid("unknown absence status")
	}
	absence, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	absence.Status = req.Status
	return s.save(ctx, absence)
}

// StudentStatistics summarises the absences of a student.
func (s *AbsenceService) StudentStatistics(ctx context.Context, studentID string) (*models.StudentAbsenceStatistics, error) {
	student, err := s.student(ctx, studentID)
	if err != nil {
		return nil, err
	}
	key := cache.Key("absences", "students", studentID, "statistics")
	return Remember(ctx, s.cache, key, s.ttl, func(ctx context.Context) (*models.StudentAbsenceStatistics, error) {
		counts, err := s.repo.CountsByStudent(ctx, studentID)
		if err != nil {
			return nil, internalError(err, "failed to count absences")
		}
		stats := &models.StudentAbsenceStatistics{
			StudentID:        student.ID,
			StudentName:      student.FullName(),
			AbsencesByStatus: counts.ByStatus,
		}
		if student.ClassID != nil {
			if class, err := s.classes.FindByID(ctx, *student.ClassID); err == nil {
				stats.ClassName = &class.Name
			}
		}
		stats.TotalAbsences = counts.Total
		stats.JustifiedAbsences = counts.Justified
		stats.UnjustifiedAbsences = counts.Total - counts.Justified
		stats.JustifiedPercentage = percentage(stats.JustifiedAbsences, counts.Total)
		stats.UnjustifiedPercentage = percentage(stats.UnjustifiedAbsences, counts.Total)
		return stats, nil
	})
}

// ClassStatistics summarises the absences of a class with its most absent students.
func (s *AbsenceService) ClassStatistics(ctx context.Context, classID string) (*models.ClassAbsenceStatistics, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, loadError(err, "class")
	}
	key := cache.Key("absences", "classes", classID, "statistics")
	return Remember(ctx, s.cache, key, s.ttl, func(ctx context.Context) (*models.ClassAbsenceStatistics, error) {
		students, err := s.students.ListStudentsByClass(ctx, classID)
		if err != nil {
			return nil, internalError(err, "failed to list class students")
		}
		counts, err := s.repo.CountsByClass(ctx, classID)
		if err != nil {
			return nil, internalError(err, "failed to count absences")
		}
		top, err := s.repo.TopAbsentStudents(ctx, classID, topAbsentLimit)
		if err != nil {
			return nil, internalError(err, "failed to rank absent students")
		}
		if top == nil {
			top = []models.AbsentStudent{}
		}

		stats := &models.ClassAbsenceStatistics{
			ClassID:             class.ID,
			ClassName:           class.Name,
			TotalStudents:       len(students),
			TotalAbsences:       counts.Total,
			JustifiedAbsences:   counts.Justified,
			UnjustifiedAbsences: counts.Total - counts.Justified,
			AbsencesByStatus:    counts.ByStatus,
			TopAbsentStudents:   top,
		}
		if level, err := s.levels.FindByID(ctx, class.LevelID); err == nil {
			stats.LevelName = level.Name
		}
		if len(students) > 0 {
			stats.AverageAbsencesPerStudent = round2(float64(counts.Total) / float64(len(students)))
		}
		stats.JustifiedPercentage = percentage(stats.JustifiedAbsences, counts.Total)
		stats.UnjustifiedPercentage = percentage(stats.UnjustifiedAbsences, counts.Total)
		return stats, nil
	})
}

func (s *AbsenceService) save(ctx context.Context, absence *models.Absence) (*models.Absence, error) {
	if err := s.repo.Update(ctx, absence); err != nil {
		return nil, writeFailure(err, "absence", "update")
	}
	s.invalidate(ctx)
	return absence, nil
}

func (s *AbsenceService) invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, cache.Key("absences", "*"))
}

func (s *AbsenceService) checkRequest(ctx context.Context, req *AbsenceRequest) error {
	req.Status = models.AbsenceStatus(strings.ToUpper(string(req.Status)))
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid absence payload")
	}
	if !req.Status.Valid() {
		return invalid("unknown absence status")
	}
	if req.Justified && (req.JustificationText == nil || strings.TrimSpace(*req.JustificationText) == "") {
		return invalid("justification text is required for a justified absence")
	}
	if !req.Justified {
		req.JustificationText = nil
	}
	_, err := s.student(ctx, req.StudentID)
	return err
}

func (s *AbsenceService) student(ctx context.Context, id string) (*models.User, error) {
	user, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "student")
	}
	if user.Role != models.RoleStudent {
		return nil, notFound("student")
	}
	return user, nil
}

func (r AbsenceRequest) apply(a *models.Absence) {
	a.Date = r.Date
	a.Justified = r.Justified
	a.Remark = r.Remark
	a.Status = r.Status
	a.JustificationText = r.JustificationText
	a.StudentID = r.StudentID
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}
