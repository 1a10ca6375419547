package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fieldreport/reporting-api/internal/core/domain"
)

func TestResolveError_DomainMapping(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/reports/submit", nil), httptest.NewRecorder())

	tests := []struct {
		err  error
		code int
	}{
		{domain.NewValidationError("submissionTime", "bad time"), http.StatusBadRequest},
		{domain.ErrUserExists, http.StatusBadRequest},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("find identity: %w", domain.ErrUserNotFound), http.StatusNotFound},
		{fmt.Errorf("idempotent replay: %w", domain.ErrReportNotFound), http.StatusNotFound},
		{domain.ErrSubmissionPending, http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if code, _ := resolveError(tt.err, zerolog.Nop(), c); code != tt.code {
			t.Errorf("resolveError(%v) = %d, want %d", tt.err, code, tt.code)
		}
	}
}
