package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-api/internal/service"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
)

type exportOpenerStub struct {
	path string
}

func (s exportOpenerStub) Open(token string) (*service.Download, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	file, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	return &service.Download{File: file, Name: "statistics.csv", ContentType: "text/csv"}, nil
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "statistics.csv")
	require.NoError(t, os.WriteFile(path, []byte("Metric,Key,Value\n"), 0o600))

	router := gin.New()
	router.GET("/exports/:token", NewExportHandler(exportOpenerStub{path: path}).Download)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exports/good", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "statistics.csv")
	assert.Equal(t, "Metric,Key,Value\n", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exports/forged", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
