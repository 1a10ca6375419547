package ports

import (
	"context"

	"github.com/fieldreport/reporting-api/internal/core/domain"
)

// Claims is the verified content of a session token.
type Claims struct {
	SubjectID string
	Role      domain.Role
}

// TokenService issues and verifies signed session tokens.
type TokenService interface {
	Issue(subjectID string, role domain.Role) (string, error)
	// Verify fails with domain.ErrInvalidToken for any malformed, expired or mis-signed token.
	Verify(token string) (*Claims, error)
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token string
	User  *domain.User
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}
