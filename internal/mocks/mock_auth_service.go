package mocks

import (
	"context"

	"github.com/you/projectsvc/domain"
)

// MockAuthService implements domain.AuthService interface for testing.
// Methods without a Func override fail with ErrTokenInvalid (or
// ErrInvalidCredentials for Login).
type MockAuthService struct {
	LoginFunc                     func(ctx context.Context, email, password string, client *domain.ClientContext) (*domain.LoginResult, error)
	RefreshFunc                   func(ctx context.Context, refreshToken string) (*domain.RefreshResult, error)
	LogoutFunc                    func(ctx context.Context, accessToken string) (bool, error)
	ResolveUserFunc               func(ctx context.Context, accessToken string) (*domain.User, error)
	TerminateAllOtherSessionsFunc func(ctx context.Context, accessToken, currentSessionID string) (*domain.TerminateResult, error)
	TerminateSessionFunc          func(ctx context.Context, accessToken, sessionID string) (bool, error)
	TerminateSessionsFunc         func(ctx context.Context, accessToken string, sessionIDs []string) ([]string, error)
	GetSessionFunc                func(ctx context.Context, accessToken, sessionID, currentSessionID string) (*domain.SessionView, error)
	ValidateSessionFunc           func(ctx context.Context, accessToken, sessionID string) (bool, error)
	GetUserSessionsInfoFunc       func(ctx context.Context, accessToken, currentSessionID string) (*domain.SessionsInfo, error)
	GetSessionStatsFunc           func(ctx context.Context, accessToken, currentSessionID string) (*domain.SessionStats, error)
	RefreshSessionActivityFunc    func(ctx context.Context, accessToken, sessionID string) (bool, error)

	// LastClient is the client context passed to the latest Login call
	LastClient *domain.ClientContext
}

// NewMockAuthService creates a new MockAuthService with default behaviors
func NewMockAuthService() *MockAuthService {
	return &MockAuthService{}
}

// Login authenticates a user
func (m *MockAuthService) Login(ctx context.Context, email, password string, client *domain.ClientContext) (*domain.LoginResult, error) {
	m.LastClient = client
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, client)
	}
	return nil, domain.ErrInvalidCredentials
}

// Refresh issues a new access token
func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*domain.RefreshResult, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, domain.ErrTokenInvalid
}

// Logout terminates all sessions of the token's user
func (m *MockAuthService) Logout(ctx context.Context, accessToken string) (bool, error) {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, accessToken)
	}
	return false, domain.ErrTokenInvalid
}

// ResolveUser maps an access token to its user
func (m *MockAuthService) ResolveUser(ctx context.Context, accessToken string) (*domain.User, error) {
	if m.ResolveUserFunc != nil {
		return m.ResolveUserFunc(ctx, accessToken)
	}
	return nil, domain.ErrTokenInvalid
}

// TerminateAllOtherSessions terminates every session but the current one
func (m *MockAuthService) TerminateAllOtherSessions(ctx context.Context, accessToken, currentSessionID string) (*domain.TerminateResult, error) {
	if m.TerminateAllOtherSessionsFunc != nil {
		return m.TerminateAllOtherSessionsFunc(ctx, accessToken, currentSessionID)
	}
	return nil, domain.ErrTokenInvalid
}

// TerminateSession terminates one owned session
func (m *MockAuthService) TerminateSession(ctx context.Context, accessToken, sessionID string) (bool, error) {
	if m.TerminateSessionFunc != nil {
		return m.TerminateSessionFunc(ctx, accessToken, sessionID)
	}
	return false, domain.ErrTokenInvalid
}

// TerminateSessions terminates the owned sessions among sessionIDs
func (m *MockAuthService) TerminateSessions(ctx context.Context, accessToken string, sessionIDs []string) ([]string, error) {
	if m.TerminateSessionsFunc != nil {
		return m.TerminateSessionsFunc(ctx, accessToken, sessionIDs)
	}
	return nil, domain.ErrTokenInvalid
}

// GetSession loads one owned session
func (m *MockAuthService) GetSession(ctx context.Context, accessToken, sessionID, currentSessionID string) (*domain.SessionView, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, accessToken, sessionID, currentSessionID)
	}
	return nil, domain.ErrTokenInvalid
}

// ValidateSession checks and touches one owned session
func (m *MockAuthService) ValidateSession(ctx context.Context, accessToken, sessionID string) (bool, error) {
	if m.ValidateSessionFunc != nil {
		return m.ValidateSessionFunc(ctx, accessToken, sessionID)
	}
	return false, domain.ErrTokenInvalid
}

// GetUserSessionsInfo lists the user's sessions
func (m *MockAuthService) GetUserSessionsInfo(ctx context.Context, accessToken, currentSessionID string) (*domain.SessionsInfo, error) {
	if m.GetUserSessionsInfoFunc != nil {
		return m.GetUserSessionsInfoFunc(ctx, accessToken, currentSessionID)
	}
	return nil, domain.ErrTokenInvalid
}

// GetSessionStats summarizes the user's sessions
func (m *MockAuthService) GetSessionStats(ctx context.Context, accessToken, currentSessionID string) (*domain.SessionStats, error) {
	if m.GetSessionStatsFunc != nil {
		return m.GetSessionStatsFunc(ctx, accessToken, currentSessionID)
	}
	return nil, domain.ErrTokenInvalid
}

// RefreshSessionActivity touches a session
func (m *MockAuthService) RefreshSessionActivity(ctx context.Context, accessToken, sessionID string) (bool, error) {
	if m.RefreshSessionActivityFunc != nil {
		return m.RefreshSessionActivityFunc(ctx, accessToken, sessionID)
	}
	return false, domain.ErrTokenInvalid
}

// Compile-time interface compliance verification
var _ domain.AuthService = (*MockAuthService)(nil)
