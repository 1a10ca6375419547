package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldreport/reporting-api/internal/core/domain"
	"github.com/fieldreport/reporting-api/internal/core/ports"
)

// BootstrapAdmin holds the credentials of the account created on first start.
type BootstrapAdmin struct {
	Username string
	Password string
}

// UserService manages accounts on top of a UserRepository.
// Username uniqueness is left to the repository: the store's constraint is
// the only authority, so concurrent creations cannot both succeed.
type UserService struct {
	repo      ports.UserRepository
	audit     ports.AuditRecorder
	bootstrap BootstrapAdmin
	log       zerolog.Logger
	now       func() time.Time
}

func NewUserService(repo ports.UserRepository, audit ports.AuditRecorder, bootstrap BootstrapAdmin, log zerolog.Logger) *UserService {
	if audit == nil {
		audit = NopAuditRecorder{}
	}
	return &UserService{
		repo:      repo,
		audit:     audit,
		bootstrap: bootstrap,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) ListAll(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]*domain.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

// Create validates the input, hashes the password and inserts the account.
func (s *UserService) Create(ctx context.Context, actorID string, in ports.CreateUserInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Role == "" || in.Password == "" {
		return nil, domain.NewValidationError("username", "username, role, and password are required")
	}
	role, ok := domain.ParseRole(in.Role)
	if !ok {
		return nil, domain.NewValidationError("role", fmt.Sprintf("role must be one of: %s, %s", domain.RoleAdmin, domain.RoleUser))
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	created, err := s.repo.Create(ctx, &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Position:     in.Position,
		OdooBatchID:  in.OdooBatchID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.audit.Record(domain.AuditEvent{
		Action:    domain.AuditUserCreated,
		ActorID:   actorID,
		SubjectID: created.ID,
		Detail:    map[string]string{"username": created.Username, "role": created.Role.String()},
		At:        now,
	})
	s.log.Info().Str("user_id", created.ID).Str("role", created.Role.String()).Msg("user created")

	return created.Public(), nil
}

// Update applies a partial change. A new password is re-hashed before storage.
func (s *UserService) Update(ctx context.Context, actorID, id string, in ports.UpdateUserInput) (*domain.User, error) {
	patch := domain.UserPatch{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Position:    in.Position,
		OdooBatchID: in.OdooBatchID,
		UpdatedAt:   s.now(),
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, domain.NewValidationError("username", "username cannot be empty")
		}
		patch.Username = &username
	}
	if in.Role != nil {
		role, ok := domain.ParseRole(*in.Role)
		if !ok {
			return nil, domain.NewValidationError("role", fmt.Sprintf("role must be one of: %s, %s", domain.RoleAdmin, domain.RoleUser))
		}
		patch.Role = &role
	}
	if in.Password != nil {
		if *in.Password == "" {
			return nil, domain.NewValidationError("password", "password cannot be empty")
		}
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.audit.Record(domain.AuditEvent{
		Action:    domain.AuditUserUpdated,
		ActorID:   actorID,
		SubjectID: id,
		At:        patch.UpdatedAt,
	})

	return updated.Public(), nil
}

// Delete removes the account and, through the store, every report it owns.
func (s *UserService) Delete(ctx context.Context, actorID, id string) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	if deleted {
		s.audit.Record(domain.AuditEvent{
			Action:    domain.AuditUserDeleted,
			ActorID:   actorID,
			SubjectID: id,
			At:        s.now(),
		})
		s.log.Info().Str("user_id", id).Msg("user deleted")
	}
	return deleted, nil
}

// EnsureInitialAdmin creates the bootstrap administrator when it is missing.
// It is idempotent, and losing a creation race to another instance counts as success.
func (s *UserService) EnsureInitialAdmin(ctx context.Context) error {
	if s.bootstrap.Username == "" || s.bootstrap.Password == "" {
		return errors.New("ensure initial admin: bootstrap credentials are not configured")
	}

	existing, err := s.repo.FindByUsername(ctx, s.bootstrap.Username)
	if err == nil {
		if existing.Role != domain.RoleAdmin {
			s.log.Warn().Str("username", existing.Username).Msg("bootstrap account exists without admin role")
		} else {
			s.log.Info().Str("username", existing.Username).Msg("admin user already exists")
		}
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("ensure initial admin: %w", err)
	}

	created, err := s.Create(ctx, "", ports.CreateUserInput{
		Username: s.bootstrap.Username,
		Role:     domain.RoleAdmin.String(),
		Password: s.bootstrap.Password,
	})
	if errors.Is(err, domain.ErrUserExists) {
		s.log.Info().Str("username", s.bootstrap.Username).Msg("admin user created concurrently")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ensure initial admin: %w", err)
	}

	s.audit.Record(domain.AuditEvent{
		Action:    domain.AuditAdminBootstrapped,
		SubjectID: created.ID,
		At:        s.now(),
	})
	s.log.Info().Str("username", created.Username).Msg("initial admin user created")
	return nil
}

var _ ports.UserService = (*UserService)(nil)
