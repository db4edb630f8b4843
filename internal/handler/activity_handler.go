package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/internal/service"
	"github.com/noah-isme/school-api/pkg/response"
)

// ActivityHandler handles activity endpoints.
type ActivityHandler struct {
	service *service.ActivityService
}

// NewActivityHandler constructs an activity handler.
func NewActivityHandler(svc *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{service: svc}
}

// List godoc
// @Summary List activities
// @Tags Activities
// @Produce json
// @Param subjectId query string false "Filter by subject"
// @Param type query string false "HOMEWORK, EXAM, QUIZ, PROJECT or PRESENTATION"
// @Param from query string false "Activities dated on or after"
// @Param to query string false "Activities dated on or before"
// @Param search query string false "Title fragment"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	params := parseListParams(c)
	filter := models.ActivityFilter{
		SubjectID: c.Query("subjectId"),
		Type:      models.ActivityType(c.Query("type")),
		Search:    params.Search,
		Page:      params.Page,
		PageSize:  params.PageSize,
		SortBy:    params.SortBy,
		SortOrder: params.SortOrder,
	}
	var err error
	if filter.From, err = parseTimeParam("from", c.Query("from")); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = parseTimeParam("to", c.Query("to")); err != nil {
		response.Error(c, err)
		return
	}

	activities, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activities, pagination)
}

// Get godoc
// @Summary Get activity by id
// @Tags Activities
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Router /activities/{id} [get]
func (h *ActivityHandler) Get(c *gin.Context) {
	activity, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}

// Create godoc
// @Summary Create activity
// @Tags Activities
// @Accept json
// @Produce json
// @Param payload body service.ActivityRequest true "Activity payload"
// @Success 201 {object} response.Envelope
// @Router /activities [post]
func (h *ActivityHandler) Create(c *gin.Context) {
	var req service.ActivityRequest
	if !bindJSON(c, &req) {
		return
	}
	activity, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, activity)
}

// Update godoc
// @Summary Update activity
// @Tags Activities
// @Accept json
// @Produce json
// @Param id path string true "Activity ID"
// @Param payload body service.ActivityRequest true "Activity payload"
// @Success 200 {object} response.Envelope
// @Router /activities/{id} [put]
func (h *ActivityHandler) Update(c *gin.Context) {
	var req service.ActivityRequest
	if !bindJSON(c, &req) {
		return
	}
	activity, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}

// Delete godoc
// @Summary Delete activity
// @Tags Activities
// @Param id path string true "Activity ID"
// @Success 204
// @Router /activities/{id} [delete]
func (h *ActivityHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
