package ports

import (
	"context"
	"time"

	"github.com/fieldreport/reporting-api/internal/core/domain"
)

// ReportFilter narrows a report listing. Zero values disable a constraint.
type ReportFilter struct {
	UserID        string    // empty = all owners
	CreatedFrom   time.Time // created_at >= CreatedFrom
	CreatedBefore time.Time // created_at <  CreatedBefore
}

// ReportRepository persists reports. List results are ordered by created_at descending.
type ReportRepository interface {
	Create(ctx context.Context, r *domain.Report) (*domain.Report, error)
	FindByID(ctx context.Context, id string) (*domain.Report, error)
	List(ctx context.Context, filter ReportFilter) ([]*domain.Report, error)
}
