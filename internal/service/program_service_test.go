package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/internal/repository"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
)

// memoryPrograms keeps membership the way the store does: on the class and subject rows.
type memoryPrograms struct {
	programs map[string]*models.Program
	classes  map[string]*models.Class
	subjects map[string]*models.Subject
	nextID   int
}

func newMemoryPrograms() *memoryPrograms {
	return &memoryPrograms{
		programs: map[string]*models.Program{},
		classes:  map[string]*models.Class{"c-1": {ID: "c-1", Name: "1A"}, "c-2": {ID: "c-2", Name: "1B"}},
		subjects: map[string]*models.Subject{"math": {ID: "math", Name: "Math"}, "physics": {ID: "physics", Name: "Physics"}},
	}
}

func (m *memoryPrograms) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	var out []models.Program
	for _, p := range m.programs {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *memoryPrograms) FindByID(ctx context.Context, id string) (*models.Program, error) {
	if p, ok := m.programs[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryPrograms) FindByClass(ctx context.Context, classID string) (*models.Program, error) {
	c, ok := m.classes[classID]
	if !ok || c.ProgramID == nil {
		return nil, sql.ErrNoRows
	}
	return m.FindByID(ctx, *c.ProgramID)
}

func (m *memoryPrograms) FindBySubject(ctx context.Context, subjectID string) (*models.Program, error) {
	s, ok := m.subjects[subjectID]
	if !ok || s.ProgramID == nil {
		return nil, sql.ErrNoRows
	}
	return m.FindByID(ctx, *s.ProgramID)
}

func (m *memoryPrograms) FindShared(ctx context.Context, classID, subjectID string) (*models.Program, error) {
	p, err := m.FindByClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if s, ok := m.subjects[subjectID]; !ok || s.ProgramID == nil || *s.ProgramID != p.ID {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (m *memoryPrograms) Members(ctx context.Context, programID string) ([]models.Class, []models.Subject, error) {
	var classes []models.Class
	for _, c := range m.classes {
		if c.ProgramID != nil && *c.ProgramID == programID {
			classes = append(classes, *c)
		}
	}
	var subjects []models.Subject
	for _, s := range m.subjects {
		if s.ProgramID != nil && *s.ProgramID == programID {
			subjects = append(subjects, *s)
		}
	}
	return classes, subjects, nil
}

func (m *memoryPrograms) Create(ctx context.Context, p *models.Program) error {
	m.nextID++
	p.ID = "p-" + string(rune('0'+m.nextID))
	m.programs[p.ID] = p
	return nil
}

func (m *memoryPrograms) Update(ctx context.Context, p *models.Program) error {
	m.programs[p.ID] = p
	return nil
}

func (m *memoryPrograms) Delete(ctx context.Context, id string) error {
	if _, ok := m.programs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.programs, id)
	for _, c := range m.classes {
		if c.ProgramID != nil && *c.ProgramID == id {
			c.ProgramID = nil
		}
	}
	for _, s := range m.subjects {
		if s.ProgramID != nil && *s.ProgramID == id {
			s.ProgramID = nil
		}
	}
	return nil
}

func (m *memoryPrograms) AssignSubjectToClass(ctx context.Context, classID, subjectID, description string) (*models.Program, error) {
	c, okC := m.classes[classID]
	s, okS := m.subjects[subjectID]
	if !okC || !okS {
		return nil, sql.ErrNoRows
	}
	var program *models.Program
	switch {
	case c.ProgramID != nil:
		program = m.programs[*c.ProgramID]
	case s.ProgramID != nil:
		program = m.programs[*s.ProgramID]
	default:
		program = &models.Program{Description: description}
		_ = m.Create(ctx, program)
	}
	c.ProgramID = &program.ID
	s.ProgramID = &program.ID
	return program, nil
}

func (m *memoryPrograms) RemoveSubjectFromClass(ctx context.Context, classID, subjectID string) (bool, error) {
	c, okC := m.classes[classID]
	s, okS := m.subjects[subjectID]
	if !okC || !okS {
		return false, sql.ErrNoRows
	}
	if c.ProgramID == nil || s.ProgramID == nil || *c.ProgramID != *s.ProgramID {
		return false, repository.ErrNotAssociated
	}
	programID := *c.ProgramID
	s.ProgramID = nil
	_, subjects, _ := m.Members(ctx, programID)
	if len(subjects) == 0 {
		c.ProgramID = nil
	}
	classes, subjects, _ := m.Members(ctx, programID)
	if len(classes) == 0 && len(subjects) == 0 {
		delete(m.programs, programID)
		return true, nil
	}
	return false, nil
}

func (m *memoryPrograms) AssignClass(ctx context.Context, programID, classID string) error {
	if _, ok := m.programs[programID]; !ok {
		return sql.ErrNoRows
	}
	c, ok := m.classes[classID]
	if !ok {
		return sql.ErrNoRows
	}
	c.ProgramID = &programID
	return nil
}

func (m *memoryPrograms) AssignSubject(ctx context.Context, programID, subjectID string) error {
	if _, ok := m.programs[programID]; !ok {
		return sql.ErrNoRows
	}
	s, ok := m.subjects[subjectID]
	if !ok {
		return sql.ErrNoRows
	}
	s.ProgramID = &programID
	return nil
}

func (m *memoryPrograms) RemoveClass(ctx context.Context, programID, classID string) error {
	c := m.classes[classID]
	if c == nil || c.ProgramID == nil || *c.ProgramID != programID {
		return repository.ErrNotAssociated
	}
	c.ProgramID = nil
	return nil
}

func (m *memoryPrograms) RemoveSubject(ctx context.Context, programID, subjectID string) error {
	s := m.subjects[subjectID]
	if s == nil || s.ProgramID == nil || *s.ProgramID != programID {
		return repository.ErrNotAssociated
	}
	s.ProgramID = nil
	return nil
}

func TestProgramServiceAssignSubjectToClassReusesClassProgram(t *testing.T) {
	repo := newMemoryPrograms()
	svc := NewProgramService(repo, nil, zap.NewNop())
	ctx := context.Background()

	first, err := svc.AssignSubjectToClass(ctx, ClassSubjectRequest{ClassID: "c-1", SubjectID: "math", Description: "Sciences"})
	require.NoError(t, err)
	assert.Equal(t, "Sciences", first.Description)

	second, err := svc.AssignSubjectToClass(ctx, ClassSubjectRequest{ClassID: "c-1", SubjectID: "physics", Description: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.programs, 1)

	shared, err := svc.FindShared(ctx, "c-1", "physics")
	require.NoError(t, err)
	assert.Equal(t, first.ID, shared.ID)

	stats, err := svc.Statistics(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ClassCount)
	assert.Equal(t, 2, stats.SubjectCount)
	assert.ElementsMatch(t, []string{"Math", "Physics"}, stats.SubjectNames)
}

func TestProgramServiceRemoveLastSubjectDeletesProgram(t *testing.T) {
	repo := newMemoryPrograms()
	svc := NewProgramService(repo, nil, zap.NewNop())
	ctx := context.Background()

	program, err := svc.AssignSubjectToClass(ctx, ClassSubjectRequest{ClassID: "c-1", SubjectID: "math"})
	require.NoError(t, err)
	assert.Equal(t, "Program", program.Description)

	deleted, err := svc.RemoveSubjectFromClass(ctx, "c-1", "math")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Nil(t, repo.classes["c-1"].ProgramID)

	exists, err := svc.Exists(ctx, program.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestProgramServiceRemoveUnrelatedSubjectIsInvalid(t *testing.T) {
	repo := newMemoryPrograms()
	svc := NewProgramService(repo, nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.AssignSubjectToClass(ctx, ClassSubjectRequest{ClassID: "c-1", SubjectID: "math"})
	require.NoError(t, err)

	_, err = svc.RemoveSubjectFromClass(ctx, "c-1", "physics")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.RemoveSubjectFromClass(ctx, "ghost", "math")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestProgramServiceMembershipOperations(t *testing.T) {
	repo := newMemoryPrograms()
	svc := NewProgramService(repo, nil, zap.NewNop())
	ctx := context.Background()

	program, err := svc.Create(ctx, ProgramRequest{Description: "  Languages "})
	require.NoError(t, err)
	assert.Equal(t, "Languages", program.Description)

	require.NoError(t, svc.AssignClass(ctx, program.ID, "c-2"))
	require.NoError(t, svc.AssignSubject(ctx, program.ID, "math"))

	found, err := svc.FindByClass(ctx, "c-2")
	require.NoError(t, err)
	assert.Equal(t, program.ID, found.ID)

	err = svc.RemoveClass(ctx, program.ID, "c-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	require.NoError(t, svc.RemoveSubject(ctx, program.ID, "math"))

	_, err = svc.FindBySubject(ctx, "math")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	require.NoError(t, svc.Delete(ctx, program.ID))
	assert.Nil(t, repo.classes["c-2"].ProgramID)

	_, err = svc.Create(ctx, ProgramRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
