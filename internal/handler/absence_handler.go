package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/internal/service"
	"github.com/noah-isme/school-api/pkg/response"
)

// AbsenceHandler handles absence endpoints.
type AbsenceHandler struct {
	service *service.AbsenceService
}

// NewAbsenceHandler constructs an absence handler.
func NewAbsenceHandler(svc *service.AbsenceService) *AbsenceHandler {
	return &AbsenceHandler{service: svc}
}

// List godoc
// @Summary List absences
// @Tags Absences
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param justified query bool false "Only justified or unjustified absences"
// @Param from query string false "Absences on or after"
// @Param to query string false "Absences on or before"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /absences [get]
func (h *AbsenceHandler) List(c *gin.Context) {
	params := parseListParams(c)
	filter := models.AbsenceFilter{
		StudentID: c.Query("studentId"),
		ClassID:   c.Query("classId"),
		Status:    models.AbsenceStatus(c.Query("status")),
		Page:      params.Page,
		PageSize:  params.PageSize,
		SortBy:    params.SortBy,
		SortOrder: params.SortOrder,
	}
	var err error
	if filter.Justified, err = parseBoolParam("justified", c.Query("justified")); err != nil {
		response.Error(c, err)
		return
	}
	if filter.From, err = parseTimeParam("from", c.Query("from")); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = parseTimeParam("to", c.Query("to")); err != nil {
		response.Error(c, err)
		return
	}

	absences, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absences, pagination)
}

// Get godoc
// @Summary Get absence by id
// @Tags Absences
// @Produce json
// @Param id path string true "Absence ID"
// @Success 200 {object} response.Envelope
// @Router /absences/{id} [get]
func (h *AbsenceHandler) Get(c *gin.Context) {
	absence, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absence, nil)
}

// Create godoc
// @Summary Record an absence
// @Tags Absences
// @Accept json
// @Produce json
// @Param payload body service.AbsenceRequest true "Absence payload"
// @Success 201 {object} response.Envelope
// @Router /absences [post]
func (h *AbsenceHandler) Create(c *gin.Context) {
	var req service.AbsenceRequest
	if !bindJSON(c, &req) {
		return
	}
	absence, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, absence)
}

// Update godoc
// @Summary Update absence
// @Tags Absences
// @Accept json
// @Produce json
// @Param id path string true "Absence ID"
// @Param payload body service.AbsenceRequest true "Absence payload"
// @Success 200 {object} response.Envelope
// @Router /absences/{id} [put]
func (h *AbsenceHandler) Update(c *gin.Context) {
	var req service.AbsenceRequest
	if !bindJSON(c, &req) {
		return
	}
	absence, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absence, nil)
}

// Delete godoc
// @Summary Delete absence
// @Tags Absences
// @Param id path string true "Absence ID"
// @Success 204
// @Router /absences/{id} [delete]
func (h *AbsenceHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Justify godoc
// @Summary Justify an absence
// @Tags Absences
// @Accept json
// @Produce json
// @Param id path string true "Absence ID"
// @Param payload body service.JustifyRequest true "Justification"
// @Success 200 {object} response.Envelope
// @Router /absences/{id}/justify [post]
func (h *AbsenceHandler) Justify(c *gin.Context) {
	var req service.JustifyRequest
	if !bindJSON(c, &req) {
		return
	}
	absence, err := h.service.Justify(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absence, nil)
}

// Unjustify godoc
// @Summary Withdraw the justification of an absence
// @Tags Absences
// @Produce json
// @Param id path string true "Absence ID"
// @Success 200 {object} response.Envelope
// @Router /absences/{id}/unjustify [post]
func (h *AbsenceHandler) Unjustify(c *gin.Context) {
	absence, err := h.service.Unjustify(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absence, nil)
}

// ChangeStatus godoc
// @Summary Approve or reject an absence
// @Tags Absences
// @Accept json
// @Produce json
// @Param id path string true "Absence ID"
// @Param payload body service.AbsenceStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Router /absences/{id}/status [put]
func (h *AbsenceHandler) ChangeStatus(c *gin.Context) {
	var req service.AbsenceStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	absence, err := h.service.ChangeStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absence, nil)
}

// StudentStatistics godoc
// @Summary Absence statistics of a student
// @Tags Absences
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /absences/students/{studentId}/statistics [get]
func (h *AbsenceHandler) StudentStatistics(c *gin.Context) {
	stats, err := h.service.StudentStatistics(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ClassStatistics godoc
// @Summary Absence statistics of a class
// @Tags Absences
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /absences/classes/{classId}/statistics [get]
func (h *AbsenceHandler) ClassStatistics(c *gin.Context) {
	stats, err := h.service.ClassStatistics(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
