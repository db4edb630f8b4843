package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-api/internal/models"
	appErrors "github.com/noah-isme/school-api/pkg/errors"
	"github.com/noah-isme/school-api/pkg/export"
	"github.com/noah-isme/school-api/pkg/storage"
)

// Export kinds.
const (
	ExportSessionStatistics = "statistics"
	ExportTimetable         = "timetable"
)

type sessionReportSource interface {
	Statistics(ctx context.Context, from, to time.Time) (*models.SessionStatistics, error)
	ListWithinRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.SessionDetail, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	PurgeOlderThan(ttl time.Duration) (int, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportRequest selects what to render and how.
type ExportRequest struct {
	Kind      string
	Format    models.ExportFormat
	From      time.Time
	To        time.Time
	TeacherID string
}

// Download is an opened export file ready to stream.
type Download struct {
	File        *os.File
	Name        string
	ContentType string
}

// ExportService renders session reports and hands them out through signed URLs.
type ExportService struct {
	sessions  sessionReportSource
	storage   fileStorage
	signer    *storage.SignedURLSigner
	renderers map[models.ExportFormat]export.Renderer
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService with CSV and PDF renderers.
func NewExportService(sessions sessionReportSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ExportService{
		sessions: sessions,
		storage:  store,
		signer:   signer,
		renderers: map[models.ExportFormat]export.Renderer{
			models.ExportFormatCSV: export.NewCSVRenderer(),
			models.ExportFormatPDF: export.NewPDFRenderer(),
		},
		logger: logger,
		cfg:    cfg,
	}
}

// Generate renders the requested report, stores it and signs a download URL.
func (s *ExportService) Generate(ctx context.Context, req ExportRequest) (*models.ExportResult, error) {
	req.Format = models.ExportFormat(strings.ToLower(string(req.Format)))
	if req.Format == "" {
		req.Format = models.ExportFormatCSV
	}
	renderer, ok := s.renderers[req.Format]
	if !ok {
		return nil, invalid("format must be csv or pdf")
	}

	var (
		table export.Table
		err   error
	)
	switch req.Kind {
	case ExportSessionStatistics, "":
		req.Kind = ExportSessionStatistics
		table, err = s.statisticsTable(ctx, req.From, req.To)
	case ExportTimetable:
		table, err = s.timetableTable(ctx, req.TeacherID, req.From, req.To)
	default:
		return nil, invalid("unknown export kind")
	}
	if err != nil {
		return nil, err
	}

	payload, err := renderer.Render(table)
	if err != nil {
		return nil, internalError(err, "failed to render export")
	}
	id := uuid.NewString()
	name := path.Join("sessions", fmt.Sprintf("%s_%s_%s.%s", req.Kind, time.Now().UTC().Format("20060102_150405"), id[:8], renderer.Extension()))
	stored, err := s.storage.Save(name, payload)
	if err != nil {
		return nil, internalError(err, "failed to store export")
	}
	token, expiresAt, err := s.signer.Sign(id, stored)
	if err != nil {
		return nil, internalError(err, "failed to sign export")
	}

	s.logger.Info("export generated", zap.String("kind", req.Kind), zap.String("format", string(req.Format)), zap.String("file", stored))
	return &models.ExportResult{
		Token:     token,
		URL:       strings.TrimRight(s.cfg.APIPrefix, "/") + "/exports/" + token,
		Format:    req.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// Open verifies a download token and opens the file it points to.
func (s *ExportService) Open(token string) (*Download, error) {
	signed, err := s.signer.Verify(token)
	switch {
	case errors.Is(err, storage.ErrExpiredToken):
		return nil, appErrors.Clone(appErrors.ErrNotFound, "download link expired")
	case err != nil:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	file, err := s.storage.Open(signed.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	contentType := "application/octet-stream"
	for format, renderer := range s.renderers {
		if strings.HasSuffix(signed.Path, "."+string(format)) {
			contentType = renderer.ContentType()
		}
	}
	return &Download{File: file, Name: path.Base(signed.Path), ContentType: contentType}, nil
}

// Purge removes exports older than the configured result TTL.
func (s *ExportService) Purge() (int, error) {
	removed, err := s.storage.PurgeOlderThan(s.cfg.ResultTTL)
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		s.logger.Info("expired exports purged", zap.Int("count", removed))
	}
	return removed, nil
}

func (s *ExportService) statisticsTable(ctx context.Context, from, to time.Time) (export.Table, error) {
	stats, err := s.sessions.Statistics(ctx, from, to)
	if err != nil {
		return export.Table{}, err
	}
	table := export.Table{
		Title:   fmt.Sprintf("Session statistics %s - %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		Columns: []string{"Metric", "Key", "Value"},
		Rows: [][]string{
			{"Total sessions", "", strconv.Itoa(stats.TotalSessions)},
			{"Total hours", "", formatHours(stats.TotalHours)},
			{"Average session duration (h)", "", formatHours(stats.AverageSessionDuration)},
		},
	}
	for _, name := range sortedKeys(stats.SessionsBySubject) {
		table.Rows = append(table.Rows, []string{"Sessions by subject", name, strconv.Itoa(stats.SessionsBySubject[name])})
	}
	for _, name := range sortedKeys(stats.SessionsByTeacher) {
		table.Rows = append(table.Rows, []string{"Sessions by teacher", name, strconv.Itoa(stats.SessionsByTeacher[name])})
	}
	return table, nil
}

func (s *ExportService) timetableTable(ctx context.Context, teacherID string, from, to time.Time) (export.Table, error) {
	sessions, err := s.sessions.ListWithinRange(ctx, teacherID, from, to)
	if err != nil {
		return export.Table{}, err
	}
	table := export.Table{
		Title:   fmt.Sprintf("Timetable %s - %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		Columns: []string{"Date", "Start", "End", "Teacher", "Subject", "Hours"},
		Rows:    make([][]string, 0, len(sessions)),
	}
	for _, session := range sessions {
		table.Rows = append(table.Rows, []string{
			session.StartTime.Format("2006-01-02"),
			session.StartTime.Format("15:04"),
			session.EndTime.Format("15:04"),
			session.TeacherName,
			session.SubjectName,
			formatHours(round2(session.Duration().Hours())),
		})
	}
	return table, nil
}

func formatHours(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
