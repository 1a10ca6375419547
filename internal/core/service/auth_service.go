package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldreport/reporting-api/internal/core/domain"
	"github.com/fieldreport/reporting-api/internal/core/ports"
)

// AuthService implements password login.
type AuthService struct {
	users  ports.UserRepository
	tokens ports.TokenService
	audit  ports.AuditRecorder
	log    zerolog.Logger
}

func NewAuthService(users ports.UserRepository, tokens ports.TokenService, audit ports.AuditRecorder, log zerolog.Logger) *AuthService {
	if audit == nil {
		audit = NopAuditRecorder{}
	}
	return &AuthService{users: users, tokens: tokens, audit: audit, log: log}
}

// Login checks the credentials and issues a session token for the account.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	if username == "" || password == "" {
		return nil, domain.NewValidationError("credentials", "please enter both username and password")
	}

	user, err := s.users.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		verifyPassword(dummyHash(), password)
		s.recordFailure(username, "unknown_user")
		return nil, domain.ErrInvalidCredentials
	case err != nil:
		return nil, fmt.Errorf("login: %w", err)
	}

	if !verifyPassword(user.PasswordHash, password) {
		s.recordFailure(username, "bad_password")
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s.audit.Record(domain.AuditEvent{
		Action:    domain.AuditLoginSucceeded,
		ActorID:   user.ID,
		SubjectID: user.ID,
		At:        time.Now().UTC(),
	})
	s.log.Info().Str("user_id", user.ID).Str("role", user.Role.String()).Msg("login succeeded")

	return &ports.LoginResult{Token: token, User: user.Public()}, nil
}

func (s *AuthService) recordFailure(username, reason string) {
	s.audit.Record(domain.AuditEvent{
		Action: domain.AuditLoginFailed,
		Detail: map[string]string{"username": username, "reason": reason},
		At:     time.Now().UTC(),
	})
	s.log.Debug().Str("username", username).Str("reason", reason).Msg("login rejected")
}

// NopAuditRecorder discards events.
type NopAuditRecorder struct{}

func (NopAuditRecorder) Record(domain.AuditEvent) {}

var _ ports.AuthService = (*AuthService)(nil)
