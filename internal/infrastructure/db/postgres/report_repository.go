package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fieldreport/reporting-api/internal/core/domain"
	"github.com/fieldreport/reporting-api/internal/core/ports"
)

// report_date is a DATE column; it is read back in its YYYY-MM-DD form.
const reportColumns = `id, user_id, location, name, to_char(report_date, 'YYYY-MM-DD'), photo,
	submission_time, end_time, description, created_at, updated_at`

// ReportRepository implements ports.ReportRepository on the reports table.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func scanReport(row rowScanner) (*domain.Report, error) {
	r := &domain.Report{}
	err := row.Scan(
		&r.ID, &r.UserID, &r.Location, &r.Name, &r.ReportDate, &r.Photo,
		&r.SubmissionTime, &r.EndTime, &r.Description, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Create inserts the report. A missing owner surfaces as domain.ErrUserNotFound.
func (r *ReportRepository) Create(ctx context.Context, rep *domain.Report) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO reports (id, user_id, location, name, report_date, photo,
		                      submission_time, end_time, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+reportColumns,
		rep.ID, rep.UserID, rep.Location, rep.Name, rep.ReportDate, rep.Photo,
		rep.SubmissionTime, rep.EndTime, rep.Description, rep.CreatedAt, rep.UpdatedAt,
	)
	created, err := scanReport(row)
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("insert report: %w", err)
	}
	return created, nil
}

func (r *ReportRepository) FindByID(ctx context.Context, id string) (*domain.Report, error) {
	if !isUUID(id) {
		return nil, domain.ErrReportNotFound
	}
	rep, err := scanReport(r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) || hasCode(err, codeInvalidTextRepresentation) {
		return nil, domain.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find report: %w", err)
	}
	return rep, nil
}

// List returns matching reports, newest first.
func (r *ReportRepository) List(ctx context.Context, f ports.ReportFilter) ([]*domain.Report, error) {
	query, args := buildListQuery(f)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*domain.Report, 0)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func buildListQuery(f ports.ReportFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if !f.CreatedFrom.IsZero() {
		add("created_at >= $%d", f.CreatedFrom)
	}
	if !f.CreatedBefore.IsZero() {
		add("created_at < $%d", f.CreatedBefore)
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + reportColumns + ` FROM reports`)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")
	return b.String(), args
}

var _ ports.ReportRepository = (*ReportRepository)(nil)
