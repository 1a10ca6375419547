package ports

import (
	"context"

	"github.com/fieldreport/reporting-api/internal/core/domain"
)

// UserRepository persists identities. Implementations must enforce username
// uniqueness themselves and report violations as domain.ErrUserExists.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// FindByID returns domain.ErrUserNotFound when no row matches.
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindByUsername returns the full record including the password hash.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error)
	// Delete reports whether a row was removed. Owned reports go with it.
	Delete(ctx context.Context, id string) (bool, error)
}
