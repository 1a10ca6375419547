package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fieldreport/reporting-api/internal/api/metrics"
	"github.com/fieldreport/reporting-api/internal/core/ports"
)

// IdempotencyKeyHeader lets clients retry a submission without duplicating it.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// ReportHandler serves report submission and listings.
type ReportHandler struct {
	service ports.ReportService
}

func NewReportHandler(service ports.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Submit stores a new report for the authenticated user.
//
// @Summary      Submit report
// @Tags         reports
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string  false  "Client retry key"
// @Param        customerName     formData  string  true   "Customer name"
// @Param        location         formData  string  true   "Location"
// @Param        date             formData  string  false  "Report date (YYYY-MM-DD)"
// @Param        submissionTime   formData  string  true   "Start time in UTC (HH:MM:SS or HH:MM)"
// @Param        endTime          formData  string  false  "End time in UTC (HH:MM:SS or HH:MM)"
// @Param        description      formData  string  true   "Description"
// @Param        photo            formData  file    false  "Photo"
// @Success      201  {object}  submitReportResponse
// @Success      200  {object}  submitReportResponse  "Replayed submission"
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      409  {object}  errorResponse  "Same Idempotency-Key still in progress"
// @Router       /reports/submit [post]
func (h *ReportHandler) Submit(c echo.Context) error {
	requester, err := CurrentIdentity(c)
	if err != nil {
		return err
	}

	var form submitReportForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form data").SetInternal(err)
	}
	if err := c.Validate(&form); err != nil {
		return err
	}

	key := strings.TrimSpace(c.Request().Header.Get(IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		return echo.NewHTTPError(http.StatusBadRequest, "Idempotency-Key is too long")
	}

	in := ports.SubmitReportInput{
		CustomerName:   form.CustomerName,
		Date:           form.Date,
		Location:       form.Location,
		SubmissionTime: form.SubmissionTime,
		EndTime:        form.EndTime,
		Description:    form.Description,
		IdempotencyKey: key,
	}

	fh, err := c.FormFile("photo")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid photo upload").SetInternal(err)
	default:
		f, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid photo upload").SetInternal(err)
		}
		defer f.Close()
		in.Photo = &ports.PhotoUpload{Filename: fh.Filename, Content: f}
	}

	res, err := h.service.Submit(c.Request().Context(), requester, in)
	if err != nil {
		return err
	}

	if res.Replayed {
		metrics.ReportsSubmittedTotal.WithLabelValues("replayed").Inc()
		return c.JSON(http.StatusOK, submitReportResponse{Message: "report already submitted", Report: res.Report})
	}
	metrics.ReportsSubmittedTotal.WithLabelValues("created").Inc()
	return c.JSON(http.StatusCreated, submitReportResponse{Message: "report submitted successfully", Report: res.Report})
}

// List returns every report to admins and the caller's own reports to users.
//
// @Summary      List reports
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Report
// @Failure      401  {object}  errorResponse
// @Router       /reports [get]
func (h *ReportHandler) List(c echo.Context) error {
	requester, err := CurrentIdentity(c)
	if err != nil {
		return err
	}

	reports, err := h.service.ListForRequester(c.Request().Context(), requester)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reports)
}

// Daily returns the reports created during the current civil day.
//
// @Summary      Today's reports
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Report
// @Failure      403  {object}  errorResponse
// @Router       /reports/daily [get]
func (h *ReportHandler) Daily(c echo.Context) error {
	reports, err := h.service.ListToday(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reports)
}
