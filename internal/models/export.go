package models

import "time"

// ExportFormat enumerates supported export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background export lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob tracks a background export of a filtered page view.
type ExportJob struct {
	ID           string            `json:"id"`
	Page         string            `json:"page"`
	Format       ExportFormat      `json:"format"`
	Criteria     map[string]string `json:"criteria,omitempty"`
	Status       ExportStatus      `json:"status"`
	Rows         int               `json:"rows"`
	ResultURL    *string           `json:"result_url,omitempty"`
	CreatedBy    string            `json:"created_by"`
	CreatedAt    time.Time         `json:"created_at"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
	ErrorMessage *string           `json:"error_message,omitempty"`
}

// CreateExportRequest asks for an export of the current filtered view.
type CreateExportRequest struct {
	Format ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}
