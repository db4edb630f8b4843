package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-api/internal/models"
	"github.com/noah-isme/school-api/internal/service"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
	"github.com/noah-isme/school-api/pkg/response"
)

type sessionService interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	Create(ctx context.Context, actorID string, req service.SessionRequest) (*models.Session, error)
	Update(ctx context.Context, actorID, id string, req service.SessionRequest) (*models.Session, error)
	Delete(ctx context.Context, actorID, id string) error
	FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]models.Session, error)
	CanSchedule(ctx context.Context, q models.OverlapQuery) (bool, error)
	ListWithinRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.SessionDetail, error)
	Statistics(ctx context.Context, from, to time.Time) (*models.SessionStatistics, error)
	TeacherStatistics(ctx context.Context, teacherID string, from, to time.Time) (*models.TeacherSessionStatistics, error)
	TotalTeacherHours(ctx context.Context, teacherID string, from, to time.Time) (float64, error)
	DeleteByTeacher(ctx context.Context, teacherID string) (int64, error)
	DeleteBySubject(ctx context.Context, subjectID string) (int64, error)
}

type sessionExporter interface {
	Generate(ctx context.Context, req service.ExportRequest) (*models.ExportResult, error)
}

// SessionHandler exposes the scheduling endpoints.
type SessionHandler struct {
	service  sessionService
	exporter sessionExporter
}

// NewSessionHandler constructs a session handler. exporter may be nil when exports are disabled.
func NewSessionHandler(svc sessionService, exporter sessionExporter) *SessionHandler {
	return &SessionHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List sessions
// @Tags Sessions
// @Produce json
// @Param teacherId query string false "Filter by teacher"
// @Param subjectId query string false "Filter by subject"
// @Param from query string false "Sessions starting at or after"
// @Param to query string false "Sessions ending at or before"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	params := parseListParams(c)
	filter := models.SessionFilter{
		TeacherID: c.Query("teacherId"),
		SubjectID: c.Query("subjectId"),
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

	sessions, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Get godoc
// @Summary Get session by id
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Create godoc
// @Summary Schedule a session
// @Description Books a teacher for a subject. Overlapping sessions of the same teacher are rejected with 409 and listed under error.details.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body service.SessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req service.SessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.service.Create(c.Request.Context(), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Update godoc
// @Summary Reschedule a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.SessionRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id} [put]
func (h *SessionHandler) Update(c *gin.Context) {
	var req service.SessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.service.Update(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete session
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 204 {string} string ""
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Overlapping godoc
// @Summary Sessions overlapping an interval
// @Description Without teacherId every teacher is searched.
// @Tags Sessions
// @Produce json
// @Param teacherId query string false "Teacher ID"
// @Param start query string true "Interval start (RFC3339)"
// @Param end query string true "Interval end (RFC3339)"
// @Param excludeId query string false "Session to ignore"
// @Success 200 {object} response.Envelope
// @Router /sessions/overlapping [get]
func (h *SessionHandler) Overlapping(c *gin.Context) {
	q, ok := overlapQuery(c)
	if !ok {
		return
	}
	sessions, err := h.service.FindOverlapping(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Availability godoc
// @Summary Check teacher availability
// @Tags Sessions
// @Produce json
// @Param teacherId query string true "Teacher ID"
// @Param start query string true "Interval start (RFC3339)"
// @Param end query string true "Interval end (RFC3339)"
// @Param excludeId query string false "Session to ignore"
// @Success 200 {object} response.Envelope
// @Router /sessions/availability [get]
func (h *SessionHandler) Availability(c *gin.Context) {
	q, ok := overlapQuery(c)
	if !ok {
		return
	}
	if q.TeacherID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "teacherId required"))
		return
	}
	available, err := h.service.CanSchedule(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"available": available}, nil)
}

// Range godoc
// @Summary Sessions inside a date range
// @Tags Sessions
// @Produce json
// @Param from query string true "Range start"
// @Param to query string true "Range end"
// @Param teacherId query string false "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/range [get]
func (h *SessionHandler) Range(c *gin.Context) {
	from, to, ok := requireRange(c)
	if !ok {
		return
	}
	sessions, err := h.service.ListWithinRange(c.Request.Context(), c.Query("teacherId"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Statistics godoc
// @Summary Session statistics
// @Tags Sessions
// @Produce json
// @Param from query string true "Range start"
// @Param to query string true "Range end"
// @Success 200 {object} response.Envelope
// @Router /sessions/statistics [get]
func (h *SessionHandler) Statistics(c *gin.Context) {
	from, to, ok := requireRange(c)
	if !ok {
		return
	}
	stats, err := h.service.Statistics(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// TeacherStatistics godoc
// @Summary Session statistics of one teacher
// @Tags Sessions
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param from query string true "Range start"
// @Param to query string true "Range end"
// @Success 200 {object} response.Envelope
// @Router /sessions/teachers/{teacherId}/statistics [get]
func (h *SessionHandler) TeacherStatistics(c *gin.Context) {
	from, to, ok := requireRange(c)
	if !ok {
		return
	}
	stats, err := h.service.TeacherStatistics(c.Request.Context(), c.Param("teacherId"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// TeacherHours godoc
// @Summary Total teaching hours of one teacher
// @Tags Sessions
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param from query string true "Range start"
// @Param to query string true "Range end"
// @Success 200 {object} response.Envelope
// @Router /sessions/teachers/{teacherId}/hours [get]
func (h *SessionHandler) TeacherHours(c *gin.Context) {
	from, to, ok := requireRange(c)
	if !ok {
		return
	}
	teacherID := c.Param("teacherId")
	hours, err := h.service.TotalTeacherHours(c.Request.Context(), teacherID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"teacher_id": teacherID, "total_hours": hours}, nil)
}

// DeleteByTeacher godoc
// @Summary Delete every session of a teacher
// @Tags Sessions
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/teachers/{teacherId} [delete]
func (h *SessionHandler) DeleteByTeacher(c *gin.Context) {
	removed, err := h.service.DeleteByTeacher(c.Request.Context(), c.Param("teacherId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": removed}, nil)
}

// DeleteBySubject godoc
// @Summary Delete every session of a subject
// @Tags Sessions
// @Produce json
// @Param subjectId path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/subjects/{subjectId} [delete]
func (h *SessionHandler) DeleteBySubject(c *gin.Context) {
	removed, err := h.service.DeleteBySubject(c.Request.Context(), c.Param("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": removed}, nil)
}

// Export godoc
// @Summary Export session statistics or a timetable
// @Description Renders the file and answers with a signed download URL.
// @Tags Sessions
// @Produce json
// @Param from query string true "Range start"
// @Param to query string true "Range end"
// @Param format query string false "csv or pdf" default(csv)
// @Param kind query string false "statistics or timetable" default(statistics)
// @Param teacherId query string false "Teacher ID for timetables"
// @Success 201 {object} response.Envelope
// @Router /sessions/export [get]
func (h *SessionHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	from, to, ok := requireRange(c)
	if !ok {
		return
	}
	result, err := h.exporter.Generate(c.Request.Context(), service.ExportRequest{
		Kind:      c.DefaultQuery("kind", service.ExportSessionStatistics),
		Format:    models.ExportFormat(c.DefaultQuery("format", string(models.ExportFormatCSV))),
		From:      from,
		To:        to,
		TeacherID: c.Query("teacherId"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func overlapQuery(c *gin.Context) (models.OverlapQuery, bool) {
	start, err := requireTimeParam(c, "start")
	if err != nil {
		response.Error(c, err)
		return models.OverlapQuery{}, false
	}
	end, err := requireTimeParam(c, "end")
	if err != nil {
		response.Error(c, err)
		return models.OverlapQuery{}, false
	}
	return models.OverlapQuery{
		TeacherID: c.Query("teacherId"),
		Start:     start,
		End:       end,
		ExcludeID: c.Query("excludeId"),
	}, true
}
