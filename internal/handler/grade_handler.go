package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/internal/service"
	"github.com/noah-isme/school-api/pkg/response"
)

// GradeHandler handles grade endpoints.
type GradeHandler struct {
	service *service.GradeService
}

// NewGradeHandler constructs a grade handler.
func NewGradeHandler(svc *service.GradeService) *GradeHandler {
	return &GradeHandler{service: svc}
}

// List godoc
// @Summary List grades
// @Tags Grades
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param activityId query string false "Filter by activity"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	params := parseListParams(c)
	grades, pagination, err := h.service.List(c.Request.Context(), models.GradeFilter{
		StudentID:  c.Query("studentId"),
		ActivityID: c.Query("activityId"),
		Page:       params.Page,
		PageSize:   params.PageSize,
		SortBy:     params.SortBy,
		SortOrder:  params.SortOrder,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, pagination)
}

// Get godoc
// @Summary Get grade by id
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [get]
func (h *GradeHandler) Get(c *gin.Context) {
	grade, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Create godoc
// @Summary Record a grade
// @Description One grade per student and activity, value between 0 and 20.
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.GradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Create(c *gin.Context) {
	var req service.GradeRequest
	if !bindJSON(c, &req) {
		return
	}
	grade, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// Update godoc
// @Summary Update grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade ID"
// @Param payload body service.GradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [put]
func (h *GradeHandler) Update(c *gin.Context) {
	var req service.GradeRequest
	if !bindJSON(c, &req) {
		return
	}
	grade, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Delete godoc
// @Summary Delete grade
// @Tags Grades
// @Param id path string true "Grade ID"
// @Success 204
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// StudentAverage godoc
// @Summary Average mark of a student
// @Tags Grades
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /grades/students/{studentId}/average [get]
func (h *GradeHandler) StudentAverage(c *gin.Context) {
	avg, err := h.service.StudentAverage(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, avg, nil)
}

// ActivityAverage godoc
// @Summary Average mark of an activity
// @Tags Grades
// @Produce json
// @Param activityId path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Router /grades/activities/{activityId}/average [get]
func (h *GradeHandler) ActivityAverage(c *gin.Context) {
	avg, err := h.service.ActivityAverage(c.Request.Context(), c.Param("activityId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, avg, nil)
}

// DeleteByStudent godoc
// @Summary Delete every grade of a student
// @Tags Grades
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /grades/students/{studentId} [delete]
func (h *GradeHandler) DeleteByStudent(c *gin.Context) {
	removed, err := h.service.DeleteByStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": removed}, nil)
}

// DeleteByActivity godoc
// @Summary Delete every grade of an activity
// @Tags Grades
// @Produce json
// @Param activityId path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Router /grades/activities/{activityId} [delete]
func (h *GradeHandler) DeleteByActivity(c *gin.Context) {
	removed, err := h.service.DeleteByActivity(c.Request.Context(), c.Param("activityId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": removed}, nil)
}
