package mocks

import (
	"context"

	"github.com/you/projectsvc/domain"
)

// MockUserService implements domain.UserService interface for testing
type MockUserService struct {
	RegisterFunc   func(ctx context.Context, in domain.RegisterInput) (*domain.User, error)
	GetProfileFunc func(ctx context.Context, userID uint) (*domain.User, error)
}

// NewMockUserService creates a new MockUserService with default behaviors
func NewMockUserService() *MockUserService {
	return &MockUserService{}
}

// Register creates an account
func (m *MockUserService) Register(ctx context.Context, in domain.RegisterInput) (*domain.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, in)
	}
	return &domain.User{ID: 1, Email: in.Email, Role: domain.RoleStudent, IsActive: true}, nil
}

// GetProfile loads a user
func (m *MockUserService) GetProfile(ctx context.Context, userID uint) (*domain.User, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	return nil, domain.ErrUserNotFound
}

// Compile-time interface compliance verification
var _ domain.UserService = (*MockUserService)(nil)
