package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
	"github.com/noah-isme/school-api/pkg/validation"
)

type gradeRepoStub struct {
	grades  map[string]*models.Grade
	average models.GradeAverage
}

func (r *gradeRepoStub) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error) {
	var out []models.Grade
	for _, g := range r.grades {
		if filter.StudentID == "" || g.StudentID == filter.StudentID {
			out = append(out, *g)
		}
	}
	return out, len(out), nil
}

func (r *gradeRepoStub) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	if g, ok := r.grades[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (r *gradeRepoStub) Exists(ctx context.Context, studentID, activityID, excludeID string) (bool, error) {
	for _, g := range r.grades {
		if g.StudentID == studentID && g.ActivityID == activityID && g.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *gradeRepoStub) Create(ctx context.Context, g *models.Grade) error {
	g.ID = "g-" + g.StudentID + "-" + g.ActivityID
	r.grades[g.ID] = g
	return nil
}

func (r *gradeRepoStub) Update(ctx context.Context, g *models.Grade) error {
	r.grades[g.ID] = g
	return nil
}

func (r *gradeRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.grades[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.grades, id)
	return nil
}

func (r *gradeRepoStub) DeleteByStudent(ctx context.Context, studentID string) (int64, error) {
	var n int64
	for id, g := range r.grades {
		if g.StudentID == studentID {
			delete(r.grades, id)
			n++
		}
	}
	return n, nil
}

func (r *gradeRepoStub) DeleteByActivity(ctx context.Context, activityID string) (int64, error) {
	var n int64
	for id, g := range r.grades {
		if g.ActivityID == activityID {
			delete(r.grades, id)
			n++
		}
	}
	return n, nil
}

func (r *gradeRepoStub) AverageByStudent(ctx context.Context, studentID string) (models.GradeAverage, error) {
	return r.average, nil
}

func (r *gradeRepoStub) AverageByActivity(ctx context.Context, activityID string) (models.GradeAverage, error) {
	return r.average, nil
}

type roleStub map[string]models.UserRole

func (s roleStub) ExistsWithRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	r, ok := s[id]
	return ok && r == role, nil
}

type activityStub map[string]models.Activity

func (s activityStub) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	if a, ok := s[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func newGradeFixture() (*GradeService, *gradeRepoStub) {
	repo := &gradeRepoStub{grades: map[string]*models.Grade{}}
	users := roleStub{"s-1": models.RoleStudent, "t-1": models.RoleTeacher}
	activities := activityStub{"a-1": {ID: "a-1", Type: models.ActivityExam}, "a-2": {ID: "a-2", Type: models.ActivityQuiz}}
	return NewGradeService(repo, users, activities, validation.New(validation.DefaultPolicy), zap.NewNop()), repo
}

func mark(v float64) *float64 { return &v }

func TestGradeServiceCreate(t *testing.T) {
	svc, repo := newGradeFixture()
	ctx := context.Background()

	grade, err := svc.Create(ctx, GradeRequest{Value: mark(0), StudentID: "s-1", ActivityID: "a-1"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, grade.Value)
	assert.Len(t, repo.grades, 1)

	_, err = svc.Create(ctx, GradeRequest{Value: mark(12), StudentID: "s-1", ActivityID: "a-1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestGradeServiceCreateRejections(t *testing.T) {
	svc, _ := newGradeFixture()
	ctx := context.Background()

	cases := []struct {
		name string
		req  GradeRequest
		want *appErrors.Error
	}{
		{"above scale", GradeRequest{Value: mark(20.5), StudentID: "s-1", ActivityID: "a-1"}, appErrors.ErrValidation},
		{"negative", GradeRequest{Value: mark(-1), StudentID: "s-1", ActivityID: "a-1"}, appErrors.ErrValidation},
		{"missing value", GradeRequest{StudentID: "s-1", ActivityID: "a-1"}, appErrors.ErrValidation},
		{"teacher as student", GradeRequest{Value: mark(10), StudentID: "t-1", ActivityID: "a-1"}, appErrors.ErrNotFound},
		{"unknown activity", GradeRequest{Value: mark(10), StudentID: "s-1", ActivityID: "a-9"}, appErrors.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.want), err.Error())
		})
	}
}

func TestGradeServiceUpdateKeepsOwnSlot(t *testing.T) {
	svc, _ := newGradeFixture()
	ctx := context.Background()

	grade, err := svc.Create(ctx, GradeRequest{Value: mark(8), StudentID: "s-1", ActivityID: "a-1"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, grade.ID, GradeRequest{Value: mark(20), StudentID: "s-1", ActivityID: "a-1"})
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.Value)
}

func TestGradeServiceAveragesAndBulkDelete(t *testing.T) {
	svc, repo := newGradeFixture()
	ctx := context.Background()
	repo.average = models.GradeAverage{Count: 3, Average: 13.3333}

	avg, err := svc.StudentAverage(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 13.33, avg.Average)
	assert.Equal(t, 3, avg.Count)

	_, err = svc.ActivityAverage(ctx, "a-9")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Create(ctx, GradeRequest{Value: mark(10), StudentID: "s-1", ActivityID: "a-1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, GradeRequest{Value: mark(11), StudentID: "s-1", ActivityID: "a-2"})
	require.NoError(t, err)

	removed, err := svc.DeleteByActivity(ctx, "a-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = svc.DeleteByStudent(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Empty(t, repo.grades)
}
