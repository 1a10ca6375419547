package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldreport/reporting-api/internal/core/domain"
	"github.com/fieldreport/reporting-api/internal/core/ports"
)

const reportDateLayout = "2006-01-02"

type ReportService struct {
	reports ports.ReportRepository
	photos  ports.PhotoStore
	idem    ports.IdempotencyStore // optional
	audit   ports.AuditRecorder
	loc     *time.Location
	log     zerolog.Logger
	now     func() time.Time
}

// NewReportService returns a ReportService interpreting wall-clock times in loc.
// idem may be nil, in which case Idempotency-Key headers are ignored.
func NewReportService(
	reports ports.ReportRepository,
	photos ports.PhotoStore,
	idem ports.IdempotencyStore,
	audit ports.AuditRecorder,
	loc *time.Location,
	log zerolog.Logger,
) *ReportService {
	if audit == nil {
		audit = NopAuditRecorder{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{
		reports: reports,
		photos:  photos,
		idem:    idem,
		audit:   audit,
		loc:     loc,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates and stores a report owned by requester.
func (s *ReportService) Submit(ctx context.Context, requester *domain.User, in ports.SubmitReportInput) (*ports.SubmitReportResult, error) {
	if requester == nil {
		return nil, domain.ErrUnauthorized
	}

	if in.IdempotencyKey == "" || s.idem == nil {
		return s.submit(ctx, requester, in)
	}

	// The key is claimed before any side effect, so concurrent retries cannot
	// both insert. A held key replays its report or is rejected while pending.
	replayed, claimed, err := s.claim(ctx, requester.ID, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if replayed != nil {
		return &ports.SubmitReportResult{Report: replayed, Replayed: true}, nil
	}
	if !claimed {
		return s.submit(ctx, requester, in)
	}

	res, err := s.submit(ctx, requester, in)
	if err != nil {
		s.release(ctx, requester.ID, in.IdempotencyKey)
		return nil, err
	}
	if err := s.idem.Complete(ctx, requester.ID, in.IdempotencyKey, res.Report.ID); err != nil {
		s.log.Warn().Err(err).Str("report_id", res.Report.ID).Msg("failed to store idempotency key")
	}
	return res, nil
}

func (s *ReportService) submit(ctx context.Context, requester *domain.User, in ports.SubmitReportInput) (*ports.SubmitReportResult, error) {
	// Validate before any side effect.
	report, err := s.buildReport(requester, in)
	if err != nil {
		return nil, err
	}

	if in.Photo != nil {
		path, err := s.photos.Save(ctx, *in.Photo)
		if err != nil {
			return nil, fmt.Errorf("submit report: save photo: %w", err)
		}
		report.Photo = &path
	}

	// A stored photo without a row is removed again.
	created, err := s.reports.Create(ctx, report)
	if err != nil {
		if report.Photo != nil {
			if rmErr := s.photos.Remove(ctx, *report.Photo); rmErr != nil {
				s.log.Warn().Err(rmErr).Str("photo", *report.Photo).Msg("failed to remove orphaned photo")
			}
		}
		return nil, fmt.Errorf("submit report: %w", err)
	}

	s.audit.Record(domain.AuditEvent{
		Action:    domain.AuditReportSubmitted,
		ActorID:   requester.ID,
		SubjectID: created.ID,
		Detail:    map[string]string{"location": created.Location},
		At:        created.CreatedAt,
	})
	s.log.Info().Str("report_id", created.ID).Str("user_id", requester.ID).Msg("report submitted")

	return &ports.SubmitReportResult{Report: created}, nil
}

// claim reserves key for this submission. It returns the report to replay when
// the key already produced one. When the store is unreachable the submission
// proceeds unclaimed.
func (s *ReportService) claim(ctx context.Context, userID, key string) (*domain.Report, bool, error) {
	claimed, reportID, err := s.idem.Claim(ctx, userID, key)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("idempotency claim failed, submitting anyway")
		return nil, false, nil
	}
	if claimed {
		return nil, true, nil
	}
	if reportID == "" {
		return nil, false, domain.ErrSubmissionPending
	}

	existing, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, false, fmt.Errorf("idempotent replay: %w", err)
	}
	s.log.Info().Str("idempotency_key", key).Str("report_id", existing.ID).Msg("idempotent replay")
	return existing, false, nil
}

func (s *ReportService) release(ctx context.Context, userID, key string) {
	if err := s.idem.Release(context.WithoutCancel(ctx), userID, key); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("failed to release idempotency key")
	}
}

func (s *ReportService) buildReport(requester *domain.User, in ports.SubmitReportInput) (*domain.Report, error) {
	if strings.TrimSpace(in.SubmissionTime) == "" {
		return nil, domain.NewValidationError("submissionTime", "invalid submission time")
	}
	submission, err := NormalizeTimeOfDay(in.SubmissionTime, s.loc)
	if err != nil {
		return nil, domain.NewValidationError("submissionTime", "invalid submission time")
	}

	var endTime *string
	if strings.TrimSpace(in.EndTime) != "" {
		end, err := NormalizeTimeOfDay(in.EndTime, s.loc)
		if err != nil {
			return nil, domain.NewValidationError("endTime", "invalid end time")
		}
		endTime = &end
	}

	var reportDate *string
	if d := strings.TrimSpace(in.Date); d != "" {
		if _, err := time.Parse(reportDateLayout, d); err != nil {
			return nil, domain.NewValidationError("date", "date must be formatted as YYYY-MM-DD")
		}
		reportDate = &d
	}

	location := strings.TrimSpace(in.Location)
	name := strings.TrimSpace(in.CustomerName)
	description := strings.TrimSpace(in.Description)
	switch {
	case location == "":
		return nil, domain.NewValidationError("location", "location is required")
	case name == "":
		return nil, domain.NewValidationError("customerName", "customer name is required")
	case description == "":
		return nil, domain.NewValidationError("description", "description is required")
	}

	now := s.now()
	return &domain.Report{
		ID:             uuid.NewString(),
		UserID:         requester.ID,
		Location:       location,
		Name:           name,
		ReportDate:     reportDate,
		SubmissionTime: submission,
		EndTime:        endTime,
		Description:    description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ListForRequester returns every report to admins and only owned reports to users.
func (s *ReportService) ListForRequester(ctx context.Context, requester *domain.User) ([]*domain.Report, error) {
	if requester == nil {
		return nil, domain.ErrUnauthorized
	}

	var filter ports.ReportFilter
	switch requester.Role {
	case domain.RoleAdmin:
	case domain.RoleUser:
		filter.UserID = requester.ID
	default:
		return nil, domain.ErrForbidden
	}

	reports, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return servable(reports), nil
}

// ListToday returns reports created during the current civil day.
func (s *ReportService) ListToday(ctx context.Context) ([]*domain.Report, error) {
	start, end := civilDay(s.now(), s.loc)

	reports, err := s.reports.List(ctx, ports.ReportFilter{
		CreatedFrom:   start,
		CreatedBefore: end,
	})
	if err != nil {
		return nil, fmt.Errorf("list daily reports: %w", err)
	}
	return servable(reports), nil
}

// servable rewrites stored photo paths into the public URL path form.
func servable(reports []*domain.Report) []*domain.Report {
	out := make([]*domain.Report, 0, len(reports))
	for _, r := range reports {
		clone := *r
		if r.Photo != nil && *r.Photo != "" {
			p := "/" + strings.TrimPrefix(*r.Photo, "/")
			clone.Photo = &p
		} else {
			clone.Photo = nil
		}
		out = append(out, &clone)
	}
	return out
}

var _ ports.ReportService = (*ReportService)(nil)
