package auth

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/sentra-admin/sentra-admin/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates username/password credentials. Unknown accounts and
// wrong passwords produce the same error so usernames cannot be probed.
func (s *Service) Authenticate(ctx context.Context, username, password, sourceIP string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, shared.Unauthorized(shared.KindInvalidCredentials, "invalid username or password")
		}
		return nil, err
	}
	if user.Status != StatusEnabled {
		return nil, shared.Unauthorized(shared.KindAccountDisabled, "account is disabled")
	}
	if user.LoginFailureCount >= MaxLoginFailures {
		return nil, shared.NewError(shared.KindAccountLocked, http.StatusLocked, "account is locked after repeated failures")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		_ = s.repo.RecordLoginFailure(ctx, user.ID)
		return nil, shared.Unauthorized(shared.KindInvalidCredentials, "invalid username or password")
	}
	if err := s.repo.RecordLoginSuccess(ctx, user.ID, sourceIP); err != nil {
		return nil, err
	}
	return user, nil
}
