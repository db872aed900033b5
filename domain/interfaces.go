package domain

import (
	"context"
	"time"
)

// UserRepository defines user data access operations
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uint) (*User, error)
	Update(ctx context.Context, user *User) error
}

// SessionRepository defines session data access operations.
// Each call is atomic from the caller's point of view.
type SessionRepository interface {
	Create(ctx context.Context, userID uint, meta SessionMetadata) (*Session, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	ListByUser(ctx context.Context, userID uint) ([]*Session, error)
	// CountByUser reports every session still recorded for userID, including
	// expired ones not yet cleaned up, and how many of them are live. It does
	// not prune.
	CountByUser(ctx context.Context, userID uint) (total int, active int, err error)
	Terminate(ctx context.Context, sessionID string) (bool, error)
	// TerminateAll removes every session of userID except exceptID (if non-empty)
	// and returns how many were removed.
	TerminateAll(ctx context.Context, userID uint, exceptID string) (int, error)
	// Touch moves LastActiveAt to now. ExpiresAt is left alone.
	Touch(ctx context.Context, sessionID string) (bool, error)
	DeleteExpired(ctx context.Context) (int, error)
}

// AuthService defines authentication and session management business logic
type AuthService interface {
	Login(ctx context.Context, email, password string, client *ClientContext) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
	Logout(ctx context.Context, accessToken string) (bool, error)
	ResolveUser(ctx context.Context, accessToken string) (*User, error)
	TerminateAllOtherSessions(ctx context.Context, accessToken, currentSessionID string) (*TerminateResult, error)
	TerminateSession(ctx context.Context, accessToken, sessionID string) (bool, error)
	// TerminateSessions removes the listed sessions the caller owns and returns
	// the ids actually removed. Unknown and foreign ids are skipped.
	TerminateSessions(ctx context.Context, accessToken string, sessionIDs []string) ([]string, error)
	GetSession(ctx context.Context, accessToken, sessionID, currentSessionID string) (*SessionView, error)
	// ValidateSession reports whether sessionID is a live session of the caller
	// and records activity on it when it is.
	ValidateSession(ctx context.Context, accessToken, sessionID string) (bool, error)
	GetUserSessionsInfo(ctx context.Context, accessToken, currentSessionID string) (*SessionsInfo, error)
	GetSessionStats(ctx context.Context, accessToken, currentSessionID string) (*SessionStats, error)
	RefreshSessionActivity(ctx context.Context, accessToken, sessionID string) (bool, error)
}

// CredentialAuthenticator verifies email/password pairs
type CredentialAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (*User, error)
}

// UserService defines registration and profile operations
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*User, error)
	GetProfile(ctx context.Context, userID uint) (*User, error)
}

// PasswordService defines password operations
type PasswordService interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) bool
}

// TokenKind distinguishes access tokens from refresh tokens
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// IssuedToken is a signed token with its expiry
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// TokenService defines token operations
type TokenService interface {
	Issue(subject string, kind TokenKind, now time.Time) (*IssuedToken, error)
	Verify(token string, kind TokenKind) (*TokenClaims, error)
}

// TokenClaims represents verified JWT claims
type TokenClaims struct {
	Subject   string    `json:"sub"`
	Kind      TokenKind `json:"typ"`
	ID        string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// PolicyService defines authorization policy operations
type PolicyService interface {
	AddPolicy(role, resource, action string) error
	RemovePolicy(role, resource, action string) error
	CheckPermission(role, resource, action string) (bool, error)
	GetPolicies() [][]string
}

// CasbinEnforcer interface defines the methods we need from Casbin enforcer
type CasbinEnforcer interface {
	AddPolicy(params ...interface{}) (bool, error)
	RemovePolicy(params ...interface{}) (bool, error)
	Enforce(rvals ...interface{}) (bool, error)
	GetPolicy() ([][]string, error)
	SavePolicy() error
}
