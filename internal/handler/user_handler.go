package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/internal/service"
	"github.com/noah-isme/school-api/pkg/response"
)

// UserHandler handles the account administration endpoints.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Description List users with pagination and filtering
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param role query string false "Role filter"
// @Param enabled query bool false "Enabled filter"
// @Param locked query bool false "Locked filter"
// @Param classId query string false "Class filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users [get]
func (h *UserHandler) List(c *gin.Context) {
	params := parseListParams(c)
	filter := models.UserFilter{
		ClassID:   c.Query("classId"),
		Search:    params.Search,
		Page:      params.Page,
		PageSize:  params.PageSize,
		SortBy:    params.SortBy,
		SortOrder: params.SortOrder,
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(strings.ToUpper(role))
		filter.Role = &r
	}
	var err error
	if filter.Enabled, err = parseBoolParam("enabled", c.Query("enabled")); err != nil {
		response.Error(c, err)
		return
	}
	if filter.Locked, err = parseBoolParam("locked", c.Query("locked")); err != nil {
		response.Error(c, err)
		return
	}

	users, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// Search godoc
// @Summary Search users by name, username or email
// @Tags Users
// @Produce json
// @Param q query string true "Search term"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/users/search [get]
func (h *UserHandler) Search(c *gin.Context) {
	params := parseListParams(c)
	users, pagination, err := h.service.Search(c.Request.Context(), c.Query("q"), params.Page, params.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// ByRole godoc
// @Summary List users of one role
// @Tags Users
// @Produce json
// @Param role path string true "ADMINISTRATOR, TEACHER, STUDENT or PARENT"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/users/by-role/{role} [get]
func (h *UserHandler) ByRole(c *gin.Context) {
	users, err := h.service.ListByRole(c.Request.Context(), models.UserRole(c.Param("role")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// Get godoc
// @Summary Get user by ID
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Teacher godoc
// @Summary Teacher with scheduled sessions
// @Tags Users
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/teachers/{id} [get]
func (h *UserHandler) Teacher(c *gin.Context) {
	profile, err := h.service.TeacherProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateStatus godoc
// @Summary Enable, disable, lock or unlock an account
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.UserStatusUpdate true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/users/{id}/status [put]
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	var req models.UserStatusUpdate
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.service.UpdateStatus(c.Request.Context(), actorID(c), c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// ResetPassword godoc
// @Summary Issue a password reset for an account
// @Tags Users
// @Param id path string true "User ID"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id}/reset-password [post]
func (h *UserHandler) ResetPassword(c *gin.Context) {
	if err := h.service.ResetPassword(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"message": "reset link sent"}, nil)
}

// Delete godoc
// @Summary Delete user
// @Description The last administrator cannot be deleted.
// @Tags Users
// @Param id path string true "User ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /admin/users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), actorID(c), c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Statistics godoc
// @Summary Account statistics
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/users/statistics [get]
func (h *UserHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}
