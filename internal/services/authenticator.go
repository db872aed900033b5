package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/you/projectsvc/domain"
)

// CredentialAuthenticatorImpl implements domain.CredentialAuthenticator
type CredentialAuthenticatorImpl struct {
	userRepo    domain.UserRepository
	passwordSvc domain.PasswordService
	dummyHash   string
}

// NewCredentialAuthenticator creates a new credential authenticator. A hash of
// a throwaway password is computed once and compared against when the email is
// unknown, so the response time matches a wrong password.
func NewCredentialAuthenticator(userRepo domain.UserRepository, passwordSvc domain.PasswordService) (*CredentialAuthenticatorImpl, error) {
	dummy, err := passwordSvc.Hash("projectsvc-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("failed to hash dummy password: %w", err)
	}
	if dummy == "" {
		return nil, errors.New("failed to hash dummy password: empty hash")
	}
	return &CredentialAuthenticatorImpl{
		userRepo:    userRepo,
		passwordSvc: passwordSvc,
		dummyHash:   dummy,
	}, nil
}

// Authenticate implements domain.CredentialAuthenticator. Unknown email, wrong
// password and inactive account all return ErrInvalidCredentials.
func (a *CredentialAuthenticatorImpl) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		a.passwordSvc.Verify(a.dummyHash, password)
		return nil, domain.ErrInvalidCredentials
	}

	user, err := a.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			a.passwordSvc.Verify(a.dummyHash, password)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !a.passwordSvc.Verify(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

var _ domain.CredentialAuthenticator = (*CredentialAuthenticatorImpl)(nil)
