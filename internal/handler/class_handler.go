package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/internal/service"
	"github.com/noah-isme/school-api/pkg/response"
)

// ClassHandler handles class endpoints.
type ClassHandler struct {
	service *service.ClassService
}

// NewClassHandler constructs a class handler.
func NewClassHandler(svc *service.ClassService) *ClassHandler {
	return &ClassHandler{service: svc}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param levelId query string false "Filter by level"
// @Param departmentId query string false "Filter by department"
// @Param programId query string false "Filter by program"
// @Param subjectId query string false "Classes sharing a program with the subject"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	params := parseListParams(c)
	classes, pagination, err := h.service.List(c.Request.Context(), models.ClassFilter{
		LevelID:      c.Query("levelId"),
		DepartmentID: c.Query("departmentId"),
		ProgramID:    c.Query("programId"),
		SubjectID:    c.Query("subjectId"),
		Search:       params.Search,
		Page:         params.Page,
		PageSize:     params.PageSize,
		SortBy:       params.SortBy,
		SortOrder:    params.SortOrder,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Get godoc
// @Summary Get class by id
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.ClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.ClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.ClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	var req service.ClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Delete class
// @Tags Classes
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AssignProgram godoc
// @Summary Attach a class to a program
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Param programId path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/program/{programId} [post]
func (h *ClassHandler) AssignProgram(c *gin.Context) {
	class, err := h.service.AssignProgram(c.Request.Context(), c.Param("id"), c.Param("programId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// RemoveProgram godoc
// @Summary Detach a class from its program
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/program [delete]
func (h *ClassHandler) RemoveProgram(c *gin.Context) {
	class, err := h.service.RemoveProgram(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}
