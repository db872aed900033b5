package mocks

import (
	"fmt"
	"strings"
	"time"

	"github.com/you/projectsvc/domain"
)

// MockTokenService implements domain.TokenService interface for testing.
// Default tokens have the readable form "<kind>:<subject>:<unix expiry>".
type MockTokenService struct {
	IssueFunc  func(subject string, kind domain.TokenKind, now time.Time) (*domain.IssuedToken, error)
	VerifyFunc func(token string, kind domain.TokenKind) (*domain.TokenClaims, error)

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// NewMockTokenService creates a new MockTokenService with default behaviors
func NewMockTokenService() *MockTokenService {
	return &MockTokenService{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        time.Now,
	}
}

// Issue creates a token for subject
func (m *MockTokenService) Issue(subject string, kind domain.TokenKind, now time.Time) (*domain.IssuedToken, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(subject, kind, now)
	}
	ttl := m.AccessTTL
	if kind == domain.RefreshToken {
		ttl = m.RefreshTTL
	}
	exp := now.Add(ttl)
	return &domain.IssuedToken{
		Token:     fmt.Sprintf("%s:%s:%d", kind, subject, exp.Unix()),
		ID:        fmt.Sprintf("jti-%s-%d", subject, now.UnixNano()),
		ExpiresAt: exp,
	}, nil
}

// Verify parses a token produced by the default Issue
func (m *MockTokenService) Verify(token string, kind domain.TokenKind) (*domain.TokenClaims, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(token, kind)
	}
	parts := strings.Split(token, ":")
	if len(parts) != 3 || domain.TokenKind(parts[0]) != kind || parts[1] == "" {
		return nil, domain.ErrTokenInvalid
	}
	var exp int64
	if _, err := fmt.Sscanf(parts[2], "%d", &exp); err != nil {
		return nil, domain.ErrTokenInvalid
	}
	expiresAt := time.Unix(exp, 0)
	if !expiresAt.After(m.Now()) {
		return nil, domain.ErrTokenExpired
	}
	return &domain.TokenClaims{Subject: parts[1], Kind: kind, ExpiresAt: expiresAt}, nil
}

// Compile-time interface compliance verification
var _ domain.TokenService = (*MockTokenService)(nil)
