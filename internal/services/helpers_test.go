package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/you/projectsvc/domain"
	"github.com/you/projectsvc/internal/mocks"
)

const (
	testPassword = "password123"
	chromeMacUA  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	iphoneUA     = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// authFixture bundles an AuthServiceImpl with the mocks behind it
type authFixture struct {
	svc      *AuthServiceImpl
	users    *mocks.MockUserRepository
	sessions *mocks.MockSessionRepository
	tokens   *mocks.MockTokenService
	password *mocks.MockPasswordService
	audit    *mocks.MockAuditLogger
	logs     *observer.ObservedLogs
	now      time.Time
}

// advance moves every clock of the fixture forward
func (f *authFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// newAuthFixture creates an auth service over in-memory mocks holding users
func newAuthFixture(t *testing.T, users ...*domain.User) *authFixture {
	t.Helper()

	f := &authFixture{
		users:    mocks.NewMockUserRepository().WithUsers(users...),
		sessions: mocks.NewMockSessionRepository(),
		tokens:   mocks.NewMockTokenService(),
		password: mocks.NewMockPasswordService(),
		audit:    mocks.NewMockAuditLogger(),
		now:      testNow,
	}
	clock := func() time.Time { return f.now }
	f.sessions.Now = clock
	f.tokens.Now = clock

	core, logs := observer.New(zapcore.DebugLevel)
	f.logs = logs

	authenticator, err := NewCredentialAuthenticator(f.users, f.password)
	require.NoError(t, err)
	f.svc = NewAuthService(authenticator, f.users, f.sessions, f.tokens, f.audit, nil, zap.New(core), AuthConfig{
		SessionMaxTTL: 30 * 24 * time.Hour,
	}).WithClock(clock)
	return f
}

// createValidUser creates a valid user entity for testing
func createValidUser(t *testing.T) *domain.User {
	t.Helper()

	return &domain.User{
		ID:           1,
		Email:        "test@example.com",
		PasswordHash: "hashed_" + testPassword,
		Role:         domain.RoleStudent,
		FirstName:    "Test",
		LastName:     "User",
		IsActive:     true,
		CreatedAt:    testNow.Add(-24 * time.Hour),
		UpdatedAt:    testNow.Add(-1 * time.Hour),
	}
}

// createOtherUser creates a second active user
func createOtherUser(t *testing.T) *domain.User {
	t.Helper()

	user := createValidUser(t)
	user.ID = 2
	user.Email = "other@example.com"
	user.Role = domain.RoleTeacher
	return user
}

// createInactiveUser creates an inactive user entity for testing
func createInactiveUser(t *testing.T) *domain.User {
	t.Helper()

	user := createValidUser(t)
	user.ID = 3
	user.Email = "inactive@example.com"
	user.IsActive = false
	return user
}

func browserClient(ua string) *domain.ClientContext {
	return &domain.ClientContext{UserAgent: ua, RemoteAddr: "203.0.113.9:51234"}
}

// login performs a successful login and fails the test otherwise
func (f *authFixture) login(t *testing.T, email string, client *domain.ClientContext) *domain.LoginResult {
	t.Helper()

	res, err := f.svc.Login(context.Background(), email, testPassword, client)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res
}

// createTestContext creates a context for testing with timeout
func createTestContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
