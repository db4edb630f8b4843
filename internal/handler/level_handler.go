package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/internal/service"
	"github.com/noah-isme/school-api/pkg/response"
)

// LevelHandler handles level endpoints.
type LevelHandler struct {
	service *service.LevelService
}

// NewLevelHandler constructs a level handler.
func NewLevelHandler(svc *service.LevelService) *LevelHandler {
	return &LevelHandler{service: svc}
}

// List godoc
// @Summary List levels
// @Tags Levels
// @Produce json
// @Param departmentId query string false "Filter by department"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /levels [get]
func (h *LevelHandler) List(c *gin.Context) {
	params := parseListParams(c)
	levels, pagination, err := h.service.List(c.Request.Context(), models.LevelFilter{
		DepartmentID: c.Query("departmentId"),
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
	response.JSON(c, http.StatusOK, levels, pagination)
}

// Get godoc
// @Summary Get level by id
// @Tags Levels
// @Produce json
// @Param id path string true "Level ID"
// @Success 200 {object} response.Envelope
// @Router /levels/{id} [get]
func (h *LevelHandler) Get(c *gin.Context) {
	level, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, level, nil)
}

// Path godoc
// @Summary Hierarchy path of a level
// @Tags Levels
// @Produce json
// @Param id path string true "Level ID"
// @Success 200 {object} response.Envelope
// @Router /levels/{id}/path [get]
func (h *LevelHandler) Path(c *gin.Context) {
	path, err := h.service.HierarchyPath(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"path": path}, nil)
}

// ClassCount godoc
// @Summary Number of classes in a level
// @Tags Levels
// @Produce json
// @Param id path string true "Level ID"
// @Success 200 {object} response.Envelope
// @Router /levels/{id}/classes/count [get]
func (h *LevelHandler) ClassCount(c *gin.Context) {
	count, err := h.service.CountClasses(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": count}, nil)
}

// Create godoc
// @Summary Create level
// @Tags Levels
// @Accept json
// @Produce json
// @Param payload body service.LevelRequest true "Level payload"
// @Success 201 {object} response.Envelope
// @Router /levels [post]
func (h *LevelHandler) Create(c *gin.Context) {
	var req service.LevelRequest
	if !bindJSON(c, &req) {
		return
	}
	level, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, level)
}

// Update godoc
// @Summary Update level
// @Tags Levels
// @Accept json
// @Produce json
// @Param id path string true "Level ID"
// @Param payload body service.LevelRequest true "Level payload"
// @Success 200 {object} response.Envelope
// @Router /levels/{id} [put]
func (h *LevelHandler) Update(c *gin.Context) {
	var req service.LevelRequest
	if !bindJSON(c, &req) {
		return
	}
	level, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, level, nil)
}

// Delete godoc
// @Summary Delete level
// @Description Levels that still hold classes are refused with 409.
// @Tags Levels
// @Param id path string true "Level ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /levels/{id} [delete]
func (h *LevelHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
