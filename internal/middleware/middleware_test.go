package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
)

type staticValidator map[string]*models.JWTClaims

func (v staticValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

type auditRecorder struct {
	entries []*models.AuditLog
	err     error
}

func (r *auditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.entries = append(r.entries, log)
	return r.err
}

func newGuardedRouter(perm models.Permission) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	validator := staticValidator{
		"admin":   {UserID: "u-admin", Role: models.RoleAdministrator},
		"student": {UserID: "u-student", Role: models.RoleStudent},
	}
	router.DELETE("/sessions/:id", JWT(validator), RequirePermission(perm), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRequirePermission(t *testing.T) {
	router := newGuardedRouter(models.PermScheduleDelete)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token admin", http.StatusUnauthorized},
		{"unknown token", "Bearer forged", http.StatusUnauthorized},
		{"role lacks permission", "Bearer student", http.StatusForbidden},
		{"role grants permission", "Bearer admin", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/sessions/s-1", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAuditRecordsSuccessfulWritesOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := &auditRecorder{err: errors.New("db down")}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u-admin", Role: models.RoleAdministrator})
		c.Next()
	})
	audit := Audit(recorder, zap.NewNop(), models.AuditActionSessionUpdate, "session")
	router.PUT("/sessions/:id", audit, func(c *gin.Context) {
		if c.Param("id") == "clash" {
			c.Status(http.StatusConflict)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/sessions/s-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/sessions/clash", nil))
	require.Equal(t, http.StatusConflict, w.Code)

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, models.AuditActionSessionUpdate, entry.Action)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "s-1", *entry.ResourceID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "u-admin", *entry.UserID)
}

type observation struct {
	method, route string
	status        int
}

type observerStub struct {
	seen []observation
}

func (o *observerStub) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	o.seen = append(o.seen, observation{method: method, route: route, status: status})
}

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	router := gin.New()
	router.Use(Metrics(observer, "/health"))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/health", "/sessions/s-1", "/sessions/s-2", "/nope"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []observation{
		{http.MethodGet, "/sessions/:id", http.StatusOK},
		{http.MethodGet, "/sessions/:id", http.StatusOK},
		{http.MethodGet, unmatchedRoute, http.StatusNotFound},
	}, observer.seen)
}
