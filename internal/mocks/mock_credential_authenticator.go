package mocks

import (
	"context"

	"github.com/you/projectsvc/domain"
)

// MockCredentialAuthenticator implements domain.CredentialAuthenticator for testing
type MockCredentialAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, email, password string) (*domain.User, error)
}

// NewMockCredentialAuthenticator creates a new MockCredentialAuthenticator
func NewMockCredentialAuthenticator() *MockCredentialAuthenticator {
	return &MockCredentialAuthenticator{}
}

// Authenticate verifies credentials
func (m *MockCredentialAuthenticator) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, email, password)
	}
	return nil, domain.ErrInvalidCredentials
}

var _ domain.CredentialAuthenticator = (*MockCredentialAuthenticator)(nil)
