package ports

import (
	"context"

	"github.com/fieldreport/reporting-api/internal/core/domain"
)

// CreateUserInput carries the fields accepted when an admin creates an account.
type CreateUserInput struct {
	Username    string
	Role        string
	Password    string
	FirstName   *string
	LastName    *string
	Position    *string
	OdooBatchID *string
}

// UpdateUserInput is a partial update; nil fields are left untouched.
type UpdateUserInput struct {
	Username    *string
	Role        *string
	Password    *string
	FirstName   *string
	LastName    *string
	Position    *string
	OdooBatchID *string
}

// UserService manages accounts. Every returned user has its password hash stripped.
type UserService interface {
	ListAll(ctx context.Context) ([]*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, actorID string, in CreateUserInput) (*domain.User, error)
	Update(ctx context.Context, actorID, id string, in UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, actorID, id string) (bool, error)
	EnsureInitialAdmin(ctx context.Context) error
}
