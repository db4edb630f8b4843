package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/internal/service"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
	"github.com/noah-isme/school-api/pkg/response"
)

// ProgramHandler manages programs and their class and subject members.
type ProgramHandler struct {
	service *service.ProgramService
}

// NewProgramHandler constructs a program handler.
func NewProgramHandler(svc *service.ProgramService) *ProgramHandler {
	return &ProgramHandler{service: svc}
}

// List godoc
// @Summary List programs
// @Tags Programs
// @Produce json
// @Param search query string false "Search description"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /programs [get]
func (h *ProgramHandler) List(c *gin.Context) {
	params := parseListParams(c)
	programs, pagination, err := h.service.List(c.Request.Context(), models.ProgramFilter{
		Search:    params.Search,
		Page:      params.Page,
		PageSize:  params.PageSize,
		SortBy:    params.SortBy,
		SortOrder: params.SortOrder,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, programs, pagination)
}

// Get godoc
// @Summary Get program with its classes and subjects
// @Tags Programs
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Router /programs/{id} [get]
func (h *ProgramHandler) Get(c *gin.Context) {
	program, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}

// Exists godoc
// @Summary Check that a program exists
// @Tags Programs
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Router /programs/{id}/exists [get]
func (h *ProgramHandler) Exists(c *gin.Context) {
	exists, err := h.service.Exists(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"exists": exists}, nil)
}

// Statistics godoc
// @Summary Program member statistics
// @Tags Programs
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Router /programs/{id}/statistics [get]
func (h *ProgramHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Create godoc
// @Summary Create program
// @Tags Programs
// @Accept json
// @Produce json
// @Param payload body service.ProgramRequest true "Program payload"
// @Success 201 {object} response.Envelope
// @Router /programs [post]
func (h *ProgramHandler) Create(c *gin.Context) {
	var req service.ProgramRequest
	if !bindJSON(c, &req) {
		return
	}
	program, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, program)
}

// Update godoc
// @Summary Update program
// @Tags Programs
// @Accept json
// @Produce json
// @Param id path string true "Program ID"
// @Param payload body service.ProgramRequest true "Program payload"
// @Success 200 {object} response.Envelope
// @Router /programs/{id} [put]
func (h *ProgramHandler) Update(c *gin.Context) {
	var req service.ProgramRequest
	if !bindJSON(c, &req) {
		return
	}
	program, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}

// Delete godoc
// @Summary Delete program
// @Description Member classes and subjects are detached, not deleted.
// @Tags Programs
// @Param id path string true "Program ID"
// @Success 204
// @Router /programs/{id} [delete]
func (h *ProgramHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AssignSubjectToClass godoc
// @Summary Teach a subject to a class
// @Description Reuses the class's program, else the subject's, else creates one with the description.
// @Tags Programs
// @Accept json
// @Produce json
// @Param payload body service.ClassSubjectRequest true "Class and subject"
// @Success 200 {object} response.Envelope
// @Router /programs/class-subjects [post]
func (h *ProgramHandler) AssignSubjectToClass(c *gin.Context) {
	var req service.ClassSubjectRequest
	if !bindJSON(c, &req) {
		return
	}
	program, err := h.service.AssignSubjectToClass(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}

// RemoveSubjectFromClass godoc
// @Summary Stop teaching a subject to a class
// @Description An emptied program is deleted.
// @Tags Programs
// @Produce json
// @Param classId path string true "Class ID"
// @Param subjectId path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /programs/class-subjects/{classId}/{subjectId} [delete]
func (h *ProgramHandler) RemoveSubjectFromClass(c *gin.Context) {
	deleted, err := h.service.RemoveSubjectFromClass(c.Request.Context(), c.Param("classId"), c.Param("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"program_deleted": deleted}, nil)
}

// AssignClass godoc
// @Summary Add a class to a program
// @Tags Programs
// @Param id path string true "Program ID"
// @Param classId path string true "Class ID"
// @Success 204
// @Router /programs/{id}/classes/{classId} [post]
func (h *ProgramHandler) AssignClass(c *gin.Context) {
	if err := h.service.AssignClass(c.Request.Context(), c.Param("id"), c.Param("classId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveClass godoc
// @Summary Remove a class from a program
// @Tags Programs
// @Param id path string true "Program ID"
// @Param classId path string true "Class ID"
// @Success 204
// @Router /programs/{id}/classes/{classId} [delete]
func (h *ProgramHandler) RemoveClass(c *gin.Context) {
	if err := h.service.RemoveClass(c.Request.Context(), c.Param("id"), c.Param("classId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AssignSubject godoc
// @Summary Add a subject to a program
// @Tags Programs
// @Param id path string true "Program ID"
// @Param subjectId path string true "Subject ID"
// @Success 204
// @Router /programs/{id}/subjects/{subjectId} [post]
func (h *ProgramHandler) AssignSubject(c *gin.Context) {
	if err := h.service.AssignSubject(c.Request.Context(), c.Param("id"), c.Param("subjectId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveSubject godoc
// @Summary Remove a subject from a program
// @Tags Programs
// @Param id path string true "Program ID"
// @Param subjectId path string true "Subject ID"
// @Success 204
// @Router /programs/{id}/subjects/{subjectId} [delete]
func (h *ProgramHandler) RemoveSubject(c *gin.Context) {
	if err := h.service.RemoveSubject(c.Request.Context(), c.Param("id"), c.Param("subjectId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ByClass godoc
// @Summary Program followed by a class
// @Tags Programs
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /programs/by-class/{classId} [get]
func (h *ProgramHandler) ByClass(c *gin.Context) {
	program, err := h.service.FindByClass(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}

// BySubject godoc
// @Summary Program a subject belongs to
// @Tags Programs
// @Produce json
// @Param subjectId path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /programs/by-subject/{subjectId} [get]
func (h *ProgramHandler) BySubject(c *gin.Context) {
	program, err := h.service.FindBySubject(c.Request.Context(), c.Param("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}

// Shared godoc
// @Summary Program linking a class and a subject
// @Tags Programs
// @Produce json
// @Param classId query string true "Class ID"
// @Param subjectId query string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /programs/shared [get]
func (h *ProgramHandler) Shared(c *gin.Context) {
	classID, subjectID := c.Query("classId"), c.Query("subjectId")
	if classID == "" || subjectID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId and subjectId required"))
		return
	}
	program, err := h.service.FindShared(c.Request.Context(), classID, subjectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}
