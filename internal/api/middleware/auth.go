package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fieldreport/reporting-api/internal/api/handler"
	"github.com/fieldreport/reporting-api/internal/api/metrics"
	"github.com/fieldreport/reporting-api/internal/core/domain"
	"github.com/fieldreport/reporting-api/internal/core/ports"
)

// Authenticate verifies the bearer token, loads the account it names and
// attaches it to the request. When requiredRole is given the account must
// hold it. Every rejection is returned as an error for the central handler
// to render; next runs at most once.
func Authenticate(tokens ports.TokenService, users ports.UserRepository, log zerolog.Logger, requiredRole ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				metrics.AuthRejectionsTotal.WithLabelValues("no_token").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "no token provided")
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				metrics.AuthRejectionsTotal.WithLabelValues("invalid_token").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "token failed").SetInternal(err)
			}

			user, err := users.FindByID(c.Request().Context(), claims.SubjectID)
			if errors.Is(err, domain.ErrUserNotFound) {
				metrics.AuthRejectionsTotal.WithLabelValues("unknown_user").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
			}
			if err != nil {
				log.Error().Err(err).Str("user_id", claims.SubjectID).Msg("identity lookup failed")
				return err
			}

			// The stored role wins over the token claim so demotions apply immediately.
			user = user.Public()
			if err := checkRole(user, requiredRole); err != nil {
				return err
			}

			handler.SetCurrentIdentity(c, user)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
