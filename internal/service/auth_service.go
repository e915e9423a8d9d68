// Package service holds the application's business logic on top of the repositories.
package service

import (
	"context"
	"log/slog"

	"buffonomics/internal/auth"
	"buffonomics/internal/middleware"
	"buffonomics/internal/models"
	"buffonomics/internal/observability"
	"buffonomics/internal/repository"
	"buffonomics/internal/session"
	"buffonomics/internal/validation"
)

// AuthService handles registration and the session lifecycle.
type AuthService struct {
	verifier auth.Verifier
	sessions session.Store
	users    repository.UserRepository
	hasher   *auth.Hasher
}

// RegisterInput is the raw sign-up request.
type RegisterInput struct {
	Email    string
	Password string
	Username string
}

// NewAuthService returns a new AuthService.
func NewAuthService(verifier auth.Verifier, sessions session.Store, users repository.UserRepository, hasher *auth.Hasher) *AuthService {
	return &AuthService{
		verifier: verifier,
		sessions: sessions,
		users:    users,
		hasher:   hasher,
	}
}

// Login verifies the credentials and issues a new session.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (session.Session, models.Principal, error) {
	creds, err := validation.ParseCredentials(identifier, password)
	if err != nil {
		observability.LoginAttempts.WithLabelValues("missing").Inc()
		return session.Session{}, models.Principal{}, err
	}

	principal, ok, err := s.verifier.Verify(ctx, creds.Identifier, creds.Password)
	if err != nil {
		observability.LoginAttempts.WithLabelValues("error").Inc()
		return session.Session{}, models.Principal{}, models.AsAppError(err)
	}
	if !ok {
		observability.LoginAttempts.WithLabelValues("invalid").Inc()
		middleware.Logger.InfoContext(ctx, "Login rejected", slog.String("identifier", creds.Identifier))
		return session.Session{}, models.Principal{}, models.NewUnauthorizedError(models.CodeInvalid, "Invalid username or password")
	}

	sess, err := s.sessions.Issue(ctx, principal.Username)
	if err != nil {
		observability.LoginAttempts.WithLabelValues("error").Inc()
		return session.Session{}, models.Principal{}, models.NewInternalError(err)
	}
	observability.LoginAttempts.WithLabelValues("success").Inc()
	return sess, principal, nil
}

// Register validates the request, hashes the password and stores the user.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	reg, err := validation.ParseRegistration(in.Email, in.Password, in.Username)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, string(reg.Email))
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing, err = s.users.GetByUsername(ctx, reg.Username)
		if err != nil {
			return nil, err
		}
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}

	hash, err := s.hasher.Hash(string(reg.Password))
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Email:    string(reg.Email),
		Username: reg.Username,
		Password: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "User registered", slog.Uint64("user_id", uint64(user.ID)))
	return user, nil
}

// Logout revokes token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Authenticate resolves a session token to its username.
func (s *AuthService) Authenticate(ctx context.Context, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	return s.sessions.Validate(ctx, token)
}
