package ports

import (
	"context"
	"io"

	"github.com/fieldreport/reporting-api/internal/core/domain"
)

// PhotoUpload is an uploaded file handed over by the transport layer.
type PhotoUpload struct {
	Filename string
	Content  io.Reader
}

// SubmitReportInput is the DTO passed from the transport layer to ReportService.
type SubmitReportInput struct {
	CustomerName   string
	Date           string
	Location       string
	SubmissionTime string
	EndTime        string
	Description    string
	Photo          *PhotoUpload // optional
	IdempotencyKey string       // optional
}

// SubmitReportResult is returned by Submit.
type SubmitReportResult struct {
	Report *domain.Report
	// Replayed is true when the Idempotency-Key matched an earlier submission.
	Replayed bool
}

// ReportService defines use-case operations for reports.
type ReportService interface {
	Submit(ctx context.Context, requester *domain.User, in SubmitReportInput) (*SubmitReportResult, error)
	ListForRequester(ctx context.Context, requester *domain.User) ([]*domain.Report, error)
	ListToday(ctx context.Context) ([]*domain.Report, error)
}

// PhotoStore saves uploaded photos and returns a storage path relative to the
// public upload prefix (e.g. "uploads/1700000000000-site.jpg").
type PhotoStore interface {
	Save(ctx context.Context, upload PhotoUpload) (string, error)
	Remove(ctx context.Context, path string) error
}

// IdempotencyStore lets one submission at a time own an Idempotency-Key.
type IdempotencyStore interface {
	// Claim reserves key atomically. When another submission already holds it,
	// claimed is false and reportID is the report that submission produced, or
	// empty while it is still running.
	Claim(ctx context.Context, userID, key string) (claimed bool, reportID string, err error)
	// Complete records the report created under a claimed key.
	Complete(ctx context.Context, userID, key, reportID string) error
	// Release gives up a claim whose submission created nothing.
	Release(ctx context.Context, userID, key string) error
}
