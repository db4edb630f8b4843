package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-api/internal/middleware"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
	"github.com/noah-isme/school-api/pkg/response"
)

type listParams struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
	Search    string
}

func parseListParams(c *gin.Context) listParams {
	return listParams{
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "limit", 20),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
		Search:    strings.TrimSpace(c.Query("search")),
	}
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

// parseTimeParam accepts RFC3339 timestamps or plain YYYY-MM-DD dates.
func parseTimeParam(key, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid "+key+", expected RFC3339 or YYYY-MM-DD")
	}
	return &parsed, nil
}

func requireTimeParam(c *gin.Context, key string) (time.Time, error) {
	parsed, err := parseTimeParam(key, c.Query(key))
	if err != nil {
		return time.Time{}, err
	}
	if parsed == nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, key+" required")
	}
	return *parsed, nil
}

// requireRange reads the from/to pair every statistics endpoint takes.
func requireRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, err := requireTimeParam(c, "from")
	if err != nil {
		response.Error(c, err)
		return time.Time{}, time.Time{}, false
	}
	to, err := requireTimeParam(c, "to")
	if err != nil {
		response.Error(c, err)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func parseBoolParam(key, raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid "+key+", expected true or false")
	}
	return &val, nil
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func actorID(c *gin.Context) string {
	if claims := middleware.Claims(c); claims != nil {
		return claims.UserID
	}
	return ""
}
