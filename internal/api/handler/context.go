package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/fieldreport/reporting-api/internal/core/domain"
)

const identityKey = "identity"

// SetCurrentIdentity attaches the authenticated account to the request.
// Only the auth middleware calls it.
func SetCurrentIdentity(c echo.Context, u *domain.User) {
	c.Set(identityKey, u)
}

// CurrentIdentity returns the account attached by the auth middleware.
// A missing identity means the route was mounted without authentication.
func CurrentIdentity(c echo.Context) (*domain.User, error) {
	u, ok := c.Get(identityKey).(*domain.User)
	if !ok || u == nil {
		return nil, domain.ErrUnauthorized
	}
	return u, nil
}
