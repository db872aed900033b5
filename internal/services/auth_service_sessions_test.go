package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/projectsvc/domain"
	"github.com/you/projectsvc/internal/metrics"
	"github.com/you/projectsvc/internal/mocks"
)

// staleSession is an expired session of user 1 that has not been cleaned up
func staleSession() *domain.Session {
	return &domain.Session{
		ID:           "sess_stale",
		UserID:       1,
		CreatedAt:    testNow.Add(-48 * time.Hour),
		LastActiveAt: testNow.Add(-25 * time.Hour),
		ExpiresAt:    testNow.Add(-time.Hour),
	}
}

func TestAuthServiceImpl_TerminateSessions(t *testing.T) {
	tests := []struct {
		name        string
		ids         func(mine, spare, theirs *domain.LoginResult) []string
		setup       func(f *authFixture)
		terminated  func(mine, spare, theirs *domain.LoginResult) []string
		survivors   func(mine, spare, theirs *domain.LoginResult) []string
		auditEvents int
	}{
		{
			name: "owned sessions removed in request order",
			ids: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{spare.SessionID, mine.SessionID}
			},
			terminated: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{spare.SessionID, mine.SessionID}
			},
			survivors: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{theirs.SessionID}
			},
			auditEvents: 1,
		},
		{
			name: "foreign and unknown ids are skipped",
			ids: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{theirs.SessionID, "sess_missing", spare.SessionID, ""}
			},
			terminated: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{spare.SessionID}
			},
			survivors: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{mine.SessionID, theirs.SessionID}
			},
			auditEvents: 1,
		},
		{
			name: "duplicates are removed once",
			ids: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{spare.SessionID, spare.SessionID}
			},
			terminated: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{spare.SessionID}
			},
			survivors: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{mine.SessionID, theirs.SessionID}
			},
			auditEvents: 1,
		},
		{
			name: "expired session is not reported as terminated",
			ids: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{"sess_stale"}
			},
			setup: func(f *authFixture) { f.sessions.Put(staleSession()) },
			terminated: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{}
			},
			survivors: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{mine.SessionID, spare.SessionID, theirs.SessionID}
			},
		},
		{
			name: "store failure skips the id",
			ids: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{spare.SessionID}
			},
			setup: func(f *authFixture) {
				f.sessions.TerminateFunc = func(ctx context.Context, sessionID string) (bool, error) {
					return false, errStoreDown
				}
			},
			terminated: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{}
			},
			survivors: func(mine, spare, theirs *domain.LoginResult) []string {
				return []string{mine.SessionID, spare.SessionID, theirs.SessionID}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, createValidUser(t), createOtherUser(t))
			mine := f.login(t, "test@example.com", browserClient(chromeMacUA))
			spare := f.login(t, "test@example.com", browserClient(iphoneUA))
			theirs := f.login(t, "other@example.com", browserClient(chromeMacUA))
			if tt.setup != nil {
				tt.setup(f)
			}

			ids, err := f.svc.TerminateSessions(context.Background(), mine.Tokens.AccessToken, tt.ids(mine, spare, theirs))

			require.NoError(t, err)
			require.NotNil(t, ids)
			assert.Equal(t, tt.terminated(mine, spare, theirs), ids)
			for _, id := range tt.survivors(mine, spare, theirs) {
				_, ok := f.sessions.Stored(id)
				assert.True(t, ok, "session %s should survive", id)
			}
			for _, id := range ids {
				_, ok := f.sessions.Stored(id)
				assert.False(t, ok, "session %s should be gone", id)
			}
			assert.Len(t, f.audit.Events(domain.SessionTerminatedEvent), tt.auditEvents)
		})
	}

	t.Run("invalid token", func(t *testing.T) {
		f := newAuthFixture(t, createValidUser(t))

		ids, err := f.svc.TerminateSessions(context.Background(), "garbage", []string{"sess_1"})
		assert.ErrorIs(t, err, domain.ErrTokenInvalid)
		assert.Nil(t, ids)
		assert.Zero(t, f.sessions.Calls("Terminate"))
	})
}

func TestAuthServiceImpl_TerminateSessions_Metrics(t *testing.T) {
	sessions := mocks.NewMockSessionRepository()
	sessions.Now = func() time.Time { return testNow }
	tokens := mocks.NewMockTokenService()
	tokens.Now = sessions.Now
	m := metrics.New()
	authenticator, err := NewCredentialAuthenticator(mocks.NewMockUserRepository().WithUsers(createValidUser(t)), mocks.NewMockPasswordService())
	require.NoError(t, err)
	svc := NewAuthService(authenticator, mocks.NewMockUserRepository().WithUsers(createValidUser(t)), sessions, tokens, nil, m, zap.NewNop(), AuthConfig{
		SessionMaxTTL: 24 * time.Hour,
	}).WithClock(sessions.Now)

	a, err := svc.Login(context.Background(), "test@example.com", testPassword, browserClient(chromeMacUA))
	require.NoError(t, err)
	b, err := svc.Login(context.Background(), "test@example.com", testPassword, browserClient(iphoneUA))
	require.NoError(t, err)
	sessions.Put(staleSession())

	_, err = svc.TerminateSessions(context.Background(), a.Tokens.AccessToken, []string{a.SessionID, b.SessionID})
	require.NoError(t, err)
	ok, err := svc.ValidateSession(context.Background(), a.Tokens.AccessToken, "sess_stale")
	require.NoError(t, err)
	require.False(t, ok)

	expected := `
# HELP projectsvc_sessions_removed_total Sessions removed by reason.
# TYPE projectsvc_sessions_removed_total counter
projectsvc_sessions_removed_total{reason="expired"} 1
projectsvc_sessions_removed_total{reason="terminate"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "projectsvc_sessions_removed_total"))
}

func TestAuthServiceImpl_GetSession(t *testing.T) {
	tests := []struct {
		name          string
		sessionID     func(mine, theirs *domain.LoginResult) string
		current       func(mine, theirs *domain.LoginResult) string
		setup         func(f *authFixture)
		expectedError error
		expectWrapped bool
		isCurrent     bool
	}{
		{
			name:      "owned session marked current",
			sessionID: func(mine, theirs *domain.LoginResult) string { return mine.SessionID },
			current:   func(mine, theirs *domain.LoginResult) string { return mine.SessionID },
			isCurrent: true,
		},
		{
			name:      "owned session without current header",
			sessionID: func(mine, theirs *domain.LoginResult) string { return mine.SessionID },
			current:   func(mine, theirs *domain.LoginResult) string { return "" },
		},
		{
			name:          "foreign session is not found",
			sessionID:     func(mine, theirs *domain.LoginResult) string { return theirs.SessionID },
			current:       func(mine, theirs *domain.LoginResult) string { return mine.SessionID },
			expectedError: domain.ErrSessionNotFound,
		},
		{
			name:          "unknown session",
			sessionID:     func(mine, theirs *domain.LoginResult) string { return "sess_missing" },
			current:       func(mine, theirs *domain.LoginResult) string { return "" },
			expectedError: domain.ErrSessionNotFound,
		},
		{
			name:          "empty id",
			sessionID:     func(mine, theirs *domain.LoginResult) string { return "" },
			current:       func(mine, theirs *domain.LoginResult) string { return "" },
			expectedError: domain.ErrSessionNotFound,
		},
		{
			name:          "expired session is not found",
			sessionID:     func(mine, theirs *domain.LoginResult) string { return "sess_stale" },
			current:       func(mine, theirs *domain.LoginResult) string { return "" },
			setup:         func(f *authFixture) { f.sessions.Put(staleSession()) },
			expectedError: domain.ErrSessionNotFound,
		},
		{
			name:      "store failure is returned",
			sessionID: func(mine, theirs *domain.LoginResult) string { return mine.SessionID },
			current:   func(mine, theirs *domain.LoginResult) string { return "" },
			setup: func(f *authFixture) {
				f.sessions.GetFunc = func(ctx context.Context, sessionID string) (*domain.Session, error) {
					return nil, errStoreDown
				}
			},
			expectedError: errStoreDown,
			expectWrapped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, createValidUser(t), createOtherUser(t))
			mine := f.login(t, "test@example.com", browserClient(chromeMacUA))
			theirs := f.login(t, "other@example.com", browserClient(iphoneUA))
			if tt.setup != nil {
				tt.setup(f)
			}

			view, err := f.svc.GetSession(context.Background(), mine.Tokens.AccessToken, tt.sessionID(mine, theirs), tt.current(mine, theirs))

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, view)
				if tt.expectWrapped {
					assert.NotErrorIs(t, err, domain.ErrSessionNotFound)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, mine.SessionID, view.ID)
			assert.Equal(t, uint(1), view.UserID)
			assert.Equal(t, "Chrome", view.BrowserName)
			assert.Equal(t, tt.isCurrent, view.IsCurrent)
		})
	}

	t.Run("expired token", func(t *testing.T) {
		f := newAuthFixture(t, createValidUser(t))
		f.tokens.VerifyFunc = func(token string, kind domain.TokenKind) (*domain.TokenClaims, error) {
			return nil, domain.ErrTokenExpired
		}

		_, err := f.svc.GetSession(context.Background(), "stale-token", "sess_1", "")
		assert.ErrorIs(t, err, domain.ErrTokenExpired)
		assert.Zero(t, f.sessions.Calls("Get"))
	})
}

func TestAuthServiceImpl_ValidateSession(t *testing.T) {
	tests := []struct {
		name      string
		sessionID func(mine, theirs *domain.LoginResult) string
		setup     func(f *authFixture)
		expected  bool
		touched   bool
	}{
		{
			name:      "live owned session is valid and touched",
			sessionID: func(mine, theirs *domain.LoginResult) string { return mine.SessionID },
			expected:  true,
			touched:   true,
		},
		{
			name:      "foreign session",
			sessionID: func(mine, theirs *domain.LoginResult) string { return theirs.SessionID },
		},
		{
			name:      "unknown session",
			sessionID: func(mine, theirs *domain.LoginResult) string { return "sess_missing" },
		},
		{
			name:      "empty id",
			sessionID: func(mine, theirs *domain.LoginResult) string { return "" },
		},
		{
			name:      "expired session",
			sessionID: func(mine, theirs *domain.LoginResult) string { return "sess_stale" },
			setup:     func(f *authFixture) { f.sessions.Put(staleSession()) },
		},
		{
			name:      "load failure fails closed",
			sessionID: func(mine, theirs *domain.LoginResult) string { return mine.SessionID },
			setup: func(f *authFixture) {
				f.sessions.GetFunc = func(ctx context.Context, sessionID string) (*domain.Session, error) {
					return nil, errStoreDown
				}
			},
		},
		{
			name:      "touch failure fails closed",
			sessionID: func(mine, theirs *domain.LoginResult) string { return mine.SessionID },
			setup: func(f *authFixture) {
				f.sessions.TouchFunc = func(ctx context.Context, sessionID string) (bool, error) {
					return false, errStoreDown
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, createValidUser(t), createOtherUser(t))
			mine := f.login(t, "test@example.com", browserClient(chromeMacUA))
			theirs := f.login(t, "other@example.com", browserClient(iphoneUA))
			if tt.setup != nil {
				tt.setup(f)
			}
			f.advance(5 * time.Minute)

			ok, err := f.svc.ValidateSession(context.Background(), mine.Tokens.AccessToken, tt.sessionID(mine, theirs))

			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)

			stored, found := f.sessions.Stored(mine.SessionID)
			require.True(t, found)
			if tt.touched {
				assert.Equal(t, f.now, stored.LastActiveAt)
			} else {
				assert.Equal(t, testNow, stored.LastActiveAt)
			}
			theirsStored, found := f.sessions.Stored(theirs.SessionID)
			require.True(t, found)
			assert.Equal(t, testNow, theirsStored.LastActiveAt)
		})
	}

	t.Run("expired session is removed", func(t *testing.T) {
		f := newAuthFixture(t, createValidUser(t))
		mine := f.login(t, "test@example.com", browserClient(chromeMacUA))
		f.sessions.Put(staleSession())

		ok, err := f.svc.ValidateSession(context.Background(), mine.Tokens.AccessToken, "sess_stale")
		require.NoError(t, err)
		assert.False(t, ok)
		_, found := f.sessions.Stored("sess_stale")
		assert.False(t, found)
	})
}
