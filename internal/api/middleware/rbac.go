package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fieldreport/reporting-api/internal/api/handler"
	"github.com/fieldreport/reporting-api/internal/api/metrics"
	"github.com/fieldreport/reporting-api/internal/core/domain"
)

// RequireRole enforces role-based access on routes already behind Authenticate.
func RequireRole(allowed ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := handler.CurrentIdentity(c)
			if err != nil {
				return err
			}
			if err := checkRole(user, allowed); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// checkRole passes when allowed is empty or contains the user's role.
func checkRole(user *domain.User, allowed []domain.Role) error {
	if len(allowed) == 0 {
		return nil
	}
	for _, r := range allowed {
		if user.Role == r {
			return nil
		}
	}

	metrics.AuthRejectionsTotal.WithLabelValues("forbidden").Inc()
	names := make([]string, len(allowed))
	for i, r := range allowed {
		names[i] = "'" + r.String() + "'"
	}
	return echo.NewHTTPError(http.StatusForbidden,
		fmt.Sprintf("access denied, requires %s role", strings.Join(names, " or ")))
}
