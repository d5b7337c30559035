package dto

import "github.com/campuskit/campus-core-api/internal/models"

// StatementRequest asks for an asynchronous finance statement export.
type StatementRequest struct {
	Type      models.StatementType   `json:"type"`
	StudentID *string                `json:"student_id,omitempty"`
	Format    models.StatementFormat `json:"format"`
}

// StatementJobResponse acknowledges an accepted statement job.
type StatementJobResponse struct {
	ID       string                 `json:"id"`
	Status   models.StatementStatus `json:"status"`
	Progress int                    `json:"progress"`
}

// StatementStatusResponse reports job progress and, once finished, the
// signed download URL.
type StatementStatusResponse struct {
	ID        string                 `json:"id"`
	Status    models.StatementStatus `json:"status"`
	Progress  int                    `json:"progress"`
	ResultURL *string                `json:"result_url,omitempty"`
	Error     *string                `json:"error,omitempty"`
}
