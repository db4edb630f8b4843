package models

import "time"

// ExportFormat selects the rendering of a download.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult describes a rendered file available through a signed URL.
type ExportResult struct {
	Token     string       `json:"token"`
	URL       string       `json:"url"`
	Format    ExportFormat `json:"format"`
	ExpiresAt time.Time    `json:"expires_at"`
}
