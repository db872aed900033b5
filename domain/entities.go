package domain

import (
	"net"
	"strings"
	"time"
)

// User roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// User represents a platform user
type User struct {
	ID           uint
	Email        string
	PasswordHash string
	Role         string
	FirstName    string
	MiddleName   string
	LastName     string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterInput carries the fields accepted on registration
type RegisterInput struct {
	Email      string
	Password   string
	FirstName  string
	MiddleName string
	LastName   string
	Role       string
}

// DeviceType is the coarse device class derived from a User-Agent
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
	DeviceUnknown DeviceType = "unknown"
)

// Session represents one authenticated device/browser instance of a user.
// Whether a session is "current" is never stored; see SessionView.
type Session struct {
	ID             string     `json:"id"`
	UserID         uint       `json:"user_id"`
	DeviceName     string     `json:"device_name"`
	OSName         string     `json:"os_name"`
	BrowserName    string     `json:"browser_name"`
	BrowserVersion string     `json:"browser_version"`
	DeviceType     DeviceType `json:"device_type"`
	IPAddress      string     `json:"ip_address,omitempty"`
	UserAgent      string     `json:"user_agent,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActiveAt   time.Time  `json:"last_active_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
}

// IsExpired reports whether the session lifetime has ended at now
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// SessionMetadata is what the caller supplies when creating a session.
// The store generates the ID and timestamps.
type SessionMetadata struct {
	DeviceName     string
	OSName         string
	BrowserName    string
	BrowserVersion string
	DeviceType     DeviceType
	IPAddress      string
	UserAgent      string
	ExpiresAt      time.Time
}

// SessionView is a read-only projection of a session for one caller
type SessionView struct {
	Session
	IsCurrent bool `json:"is_current"`
}

// SessionsInfo lists a user's sessions
type SessionsInfo struct {
	Sessions         []SessionView `json:"sessions"`
	Total            int           `json:"total"`
	CurrentSessionID string        `json:"current_session_id,omitempty"`
}

// SessionStats summarises a user's sessions. TotalSessions counts expired
// sessions that have not been cleaned up yet; ActiveSessions only live ones.
type SessionStats struct {
	TotalSessions  int          `json:"total_sessions"`
	ActiveSessions int          `json:"active_sessions"`
	Current        *SessionView `json:"current_session,omitempty"`
}

// TerminateResult reports a bulk termination
type TerminateResult struct {
	TerminatedCount     int      `json:"terminated_count"`
	RemainingSessionIDs []string `json:"remaining_session_ids"`
}

// SessionStatus describes what happened to the session side effect of a login
type SessionStatus string

const (
	// SessionAttached means a session was created for the issued tokens
	SessionAttached SessionStatus = "attached"
	// SessionOmitted means session creation was attempted and failed
	SessionOmitted SessionStatus = "omitted"
	// SessionSkipped means no client context was supplied
	SessionSkipped SessionStatus = "skipped"
)

// SessionOutcome is the best-effort session part of a login
type SessionOutcome struct {
	Status  SessionStatus
	Session *Session
	Reason  error
}

// TokenPair holds the credentials minted by a login
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// LoginResult represents the outcome of a successful credential check
type LoginResult struct {
	User      *User
	Tokens    TokenPair
	SessionID string
	ExpiresIn int64
	Session   SessionOutcome
}

// RefreshResult represents a refreshed access token
type RefreshResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	ExpiresIn       int64
}

// ClientContext represents client information extracted from an HTTP request
type ClientContext struct {
	UserAgent    string
	ForwardedFor string
	RealIP       string
	RemoteAddr   string
}

// ClientIP returns the first parseable address among X-Forwarded-For,
// X-Real-IP and the remote address, or "" when none parses.
func (c *ClientContext) ClientIP() string {
	if c == nil {
		return ""
	}
	candidates := make([]string, 0, 4)
	if c.ForwardedFor != "" {
		candidates = append(candidates, strings.Split(c.ForwardedFor, ",")...)
	}
	candidates = append(candidates, c.RealIP, c.RemoteAddr)

	for _, raw := range candidates {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if host, _, err := net.SplitHostPort(v); err == nil {
			v = host
		}
		if ip := net.ParseIP(v); ip != nil {
			return ip.String()
		}
	}
	return ""
}
