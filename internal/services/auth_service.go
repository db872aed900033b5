package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/you/projectsvc/domain"
	"github.com/you/projectsvc/internal/metrics"
	"github.com/you/projectsvc/internal/useragent"
)

const maxUserAgentLength = 512

// AuthConfig holds the session policy of the auth service
type AuthConfig struct {
	// SessionMaxTTL is the lifetime of a session created at login
	SessionMaxTTL time.Duration
	// BindToAccessToken caps a session's expiry at the access token's expiry
	BindToAccessToken bool
}

// AuthServiceImpl implements domain.AuthService. Session store failures after
// the caller has been identified are logged and turned into safe defaults.
type AuthServiceImpl struct {
	authenticator domain.CredentialAuthenticator
	userRepo      domain.UserRepository
	sessionRepo   domain.SessionRepository
	tokenSvc      domain.TokenService
	audit         domain.AuditLogger
	metrics       *metrics.Metrics
	logger        *zap.Logger
	cfg           AuthConfig
	now           func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	authenticator domain.CredentialAuthenticator,
	userRepo domain.UserRepository,
	sessionRepo domain.SessionRepository,
	tokenSvc domain.TokenService,
	audit domain.AuditLogger,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg AuthConfig,
) *AuthServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthServiceImpl{
		authenticator: authenticator,
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		tokenSvc:      tokenSvc,
		audit:         audit,
		metrics:       m,
		logger:        logger.Named("auth"),
		cfg:           cfg,
		now:           time.Now,
	}
}

// WithClock replaces the time source (tests)
func (s *AuthServiceImpl) WithClock(now func() time.Time) *AuthServiceImpl {
	s.now = now
	return s
}

// Login implements domain.AuthService
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string, client *domain.ClientContext) (*domain.LoginResult, error) {
	user, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.metrics.LoginFailed()
			s.logAudit(ctx, domain.NewAuditEvent(domain.UserLoginFailureEvent, 0).
				WithEmail(email).
				WithClientContext(client).
				WithError(err))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	now := s.now()
	subject := strconv.FormatUint(uint64(user.ID), 10)

	access, err := s.tokenSvc.Issue(subject, domain.AccessToken, now)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := s.tokenSvc.Issue(subject, domain.RefreshToken, now)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	result := &domain.LoginResult{
		User: user,
		Tokens: domain.TokenPair{
			AccessToken:      access.Token,
			RefreshToken:     refresh.Token,
			AccessExpiresAt:  access.ExpiresAt,
			RefreshExpiresAt: refresh.ExpiresAt,
		},
		ExpiresIn: int64(access.ExpiresAt.Sub(now) / time.Second),
	}

	// tokens are final at this point; the session is best effort
	result.Session = s.attachSession(ctx, user, client, now, access.ExpiresAt)
	if result.Session.Session != nil {
		result.SessionID = result.Session.Session.ID
	}

	s.metrics.LoginSucceeded(result.Session.Status)
	s.logAudit(ctx, domain.NewAuditEvent(domain.UserLoginEvent, user.ID).
		WithEmail(user.Email).
		WithSession(result.SessionID).
		WithClientContext(client).
		WithMetadata("session_status", string(result.Session.Status)))

	return result, nil
}

func (s *AuthServiceImpl) attachSession(ctx context.Context, user *domain.User, client *domain.ClientContext, now, accessExpiry time.Time) domain.SessionOutcome {
	if client == nil {
		return domain.SessionOutcome{Status: domain.SessionSkipped}
	}

	info := useragent.Classify(client.UserAgent)
	expiresAt := now.Add(s.cfg.SessionMaxTTL)
	if s.cfg.BindToAccessToken && accessExpiry.Before(expiresAt) {
		expiresAt = accessExpiry
	}

	session, err := s.sessionRepo.Create(ctx, user.ID, domain.SessionMetadata{
		DeviceName:     info.DeviceName,
		OSName:         info.OSName,
		BrowserName:    info.BrowserName,
		BrowserVersion: info.BrowserVersion,
		DeviceType:     info.DeviceType,
		IPAddress:      client.ClientIP(),
		UserAgent:      truncateUTF8(client.UserAgent, maxUserAgentLength),
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		s.logger.Warn("session creation failed, continuing without session",
			zap.Uint("user_id", user.ID),
			zap.Error(err))
		s.logAudit(ctx, domain.NewAuditEvent(domain.SessionCreateFailureEvent, user.ID).
			WithClientContext(client).
			WithError(err))
		return domain.SessionOutcome{Status: domain.SessionOmitted, Reason: err}
	}

	s.logAudit(ctx, domain.NewAuditEvent(domain.SessionCreatedEvent, user.ID).
		WithSession(session.ID).
		WithClientContext(client).
		WithMetadata("device_type", string(session.DeviceType)))
	return domain.SessionOutcome{Status: domain.SessionAttached, Session: session}
}

// Refresh implements domain.AuthService
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*domain.RefreshResult, error) {
	user, err := s.resolve(ctx, refreshToken, domain.RefreshToken)
	if err != nil {
		return nil, err
	}

	now := s.now()
	access, err := s.tokenSvc.Issue(strconv.FormatUint(uint64(user.ID), 10), domain.AccessToken, now)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	return &domain.RefreshResult{
		AccessToken:     access.Token,
		AccessExpiresAt: access.ExpiresAt,
		ExpiresIn:       int64(access.ExpiresAt.Sub(now) / time.Second),
	}, nil
}

// ResolveUser implements domain.AuthService
func (s *AuthServiceImpl) ResolveUser(ctx context.Context, accessToken string) (*domain.User, error) {
	return s.resolve(ctx, accessToken, domain.AccessToken)
}

// resolve maps a token to an active user. Every failure is a token error
// except infrastructure errors from the user repository.
func (s *AuthServiceImpl) resolve(ctx context.Context, token string, kind domain.TokenKind) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}
	claims, err := s.tokenSvc.Verify(token, kind)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 0)
	if err != nil || id == 0 {
		return nil, domain.ErrTokenInvalid
	}

	user, err := s.userRepo.FindByID(ctx, uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, domain.ErrTokenInvalid
	}
	return user, nil
}

// Logout implements domain.AuthService. All sessions of the user are removed.
func (s *AuthServiceImpl) Logout(ctx context.Context, accessToken string) (bool, error) {
	user, err := s.ResolveUser(ctx, accessToken)
	if err != nil {
		return false, err
	}

	n, err := s.sessionRepo.TerminateAll(ctx, user.ID, "")
	if err != nil {
		s.logger.Warn("logout could not terminate sessions",
			zap.Uint("user_id", user.ID),
			zap.Error(err))
		return false, nil
	}

	s.metrics.SessionsRemoved("logout", n)
	s.logAudit(ctx, domain.NewAuditEvent(domain.UserLogoutEvent, user.ID).
		WithEmail(user.Email).
		WithMetadata("terminated", n))
	return true, nil
}

// TerminateAllOtherSessions implements domain.AuthService
func (s *AuthServiceImpl) TerminateAllOtherSessions(ctx context.Context, accessToken, currentSessionID string) (*domain.TerminateResult, error) {
	user, err := s.ResolveUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	result := &domain.TerminateResult{RemainingSessionIDs: []string{}}

	n, err := s.sessionRepo.TerminateAll(ctx, user.ID, currentSessionID)
	if err != nil {
		s.logger.Warn("could not terminate other sessions",
			zap.Uint("user_id", user.ID),
			zap.Error(err))
		return result, nil
	}
	result.TerminatedCount = n
	s.metrics.SessionsRemoved("terminate", n)

	remaining, err := s.sessionRepo.ListByUser(ctx, user.ID)
	if err != nil {
		s.logger.Warn("could not list remaining sessions",
			zap.Uint("user_id", user.ID),
			zap.Error(err))
		return result, nil
	}
	for _, sess := range remaining {
		result.RemainingSessionIDs = append(result.RemainingSessionIDs, sess.ID)
	}

	if n > 0 {
		s.logAudit(ctx, domain.NewAuditEvent(domain.SessionTerminatedEvent, user.ID).
			WithSession(currentSessionID).
			WithMetadata("terminated", n).
			WithMetadata("scope", "others"))
	}
	return result, nil
}

// TerminateSession implements domain.AuthService. Sessions owned by another
// user are reported as not found.
func (s *AuthServiceImpl) TerminateSession(ctx context.Context, accessToken, sessionID string) (bool, error) {
	user, err := s.ResolveUser(ctx, accessToken)
	if err != nil {
		return false, err
	}
	if !s.owns(ctx, user.ID, sessionID) {
		return false, nil
	}

	ok, err := s.sessionRepo.Terminate(ctx, sessionID)
	if err != nil {
		s.logger.Warn("could not terminate session",
			zap.Uint("user_id", user.ID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return false, nil
	}
	if ok {
		s.metrics.SessionsRemoved("terminate", 1)
		s.logAudit(ctx, domain.NewAuditEvent(domain.SessionTerminatedEvent, user.ID).
			WithSession(sessionID).
			WithMetadata("scope", "single"))
	}
	return ok, nil
}

// TerminateSessions implements domain.AuthService. Duplicate ids are removed
// once; a store failure on one id skips it.
func (s *AuthServiceImpl) TerminateSessions(ctx context.Context, accessToken string, sessionIDs []string) ([]string, error) {
	user, err := s.ResolveUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	terminated := []string{}
	seen := make(map[string]struct{}, len(sessionIDs))
	for _, id := range sessionIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if !s.owns(ctx, user.ID, id) {
			continue
		}

		ok, err := s.sessionRepo.Terminate(ctx, id)
		if err != nil {
			s.logger.Warn("could not terminate session",
				zap.Uint("user_id", user.ID),
				zap.String("session_id", id),
				zap.Error(err))
			continue
		}
		if ok {
			terminated = append(terminated, id)
		}
	}

	if len(terminated) > 0 {
		s.metrics.SessionsRemoved("terminate", len(terminated))
		s.logAudit(ctx, domain.NewAuditEvent(domain.SessionTerminatedEvent, user.ID).
			WithMetadata("terminated", len(terminated)).
			WithMetadata("scope", "batch"))
	}
	return terminated, nil
}

// GetSession implements domain.AuthService. Missing, expired and foreign
// sessions are all ErrSessionNotFound; other store errors are returned.
func (s *AuthServiceImpl) GetSession(ctx context.Context, accessToken, sessionID, currentSessionID string) (*domain.SessionView, error) {
	user, err := s.ResolveUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, domain.ErrSessionNotFound
	}

	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionExpired) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess.UserID != user.ID {
		return nil, domain.ErrSessionNotFound
	}

	return &domain.SessionView{
		Session:   *sess,
		IsCurrent: currentSessionID != "" && sess.ID == currentSessionID,
	}, nil
}

// ValidateSession implements domain.AuthService. Loading an expired session
// removes it.
func (s *AuthServiceImpl) ValidateSession(ctx context.Context, accessToken, sessionID string) (bool, error) {
	user, err := s.ResolveUser(ctx, accessToken)
	if err != nil {
		return false, err
	}
	if sessionID == "" {
		return false, nil
	}

	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionExpired):
			s.metrics.SessionsRemoved("expired", 1)
		case !errors.Is(err, domain.ErrSessionNotFound):
			s.logger.Warn("could not load session",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
		return false, nil
	}
	if sess.UserID != user.ID {
		return false, nil
	}

	ok, err := s.sessionRepo.Touch(ctx, sessionID)
	if err != nil {
		s.logger.Warn("could not record session activity",
			zap.Uint("user_id", user.ID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return false, nil
	}
	return ok, nil
}

// GetUserSessionsInfo implements domain.AuthService
func (s *AuthServiceImpl) GetUserSessionsInfo(ctx context.Context, accessToken, currentSessionID string) (*domain.SessionsInfo, error) {
	user, err := s.ResolveUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	info := &domain.SessionsInfo{Sessions: s.sessionViews(ctx, user.ID, currentSessionID)}
	info.Total = len(info.Sessions)
	for _, v := range info.Sessions {
		if v.IsCurrent {
			info.CurrentSessionID = v.ID
		}
	}
	return info, nil
}

// GetSessionStats implements domain.AuthService
func (s *AuthServiceImpl) GetSessionStats(ctx context.Context, accessToken, currentSessionID string) (*domain.SessionStats, error) {
	user, err := s.ResolveUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	// Counted before listing, which prunes expired entries.
	total, active, err := s.sessionRepo.CountByUser(ctx, user.ID)
	if err != nil {
		s.logger.Warn("could not count sessions",
			zap.Uint("user_id", user.ID),
			zap.Error(err))
	}
	views := s.sessionViews(ctx, user.ID, currentSessionID)
	if err != nil {
		total, active = len(views), len(views)
	}
	stats := &domain.SessionStats{
		TotalSessions:  total,
		ActiveSessions: active,
	}
	for i := range views {
		if views[i].IsCurrent {
			current := views[i]
			stats.Current = &current
			break
		}
	}
	return stats, nil
}

// sessionViews lists the live sessions of a user; a store failure yields an
// empty list.
func (s *AuthServiceImpl) sessionViews(ctx context.Context, userID uint, currentSessionID string) []domain.SessionView {
	sessions, err := s.sessionRepo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("could not list sessions",
			zap.Uint("user_id", userID),
			zap.Error(err))
		return []domain.SessionView{}
	}

	views := make([]domain.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, domain.SessionView{
			Session:   *sess,
			IsCurrent: currentSessionID != "" && sess.ID == currentSessionID,
		})
	}
	return views
}

// RefreshSessionActivity implements domain.AuthService. With an empty
// sessionID the most recently active session of the user is touched.
func (s *AuthServiceImpl) RefreshSessionActivity(ctx context.Context, accessToken, sessionID string) (bool, error) {
	user, err := s.ResolveUser(ctx, accessToken)
	if err != nil {
		return false, err
	}

	if sessionID == "" {
		sessions, err := s.sessionRepo.ListByUser(ctx, user.ID)
		if err != nil {
			s.logger.Warn("could not list sessions for activity refresh",
				zap.Uint("user_id", user.ID),
				zap.Error(err))
			return false, nil
		}
		if len(sessions) == 0 {
			return false, nil
		}
		sessionID = sessions[0].ID
	} else if !s.owns(ctx, user.ID, sessionID) {
		return false, nil
	}

	ok, err := s.sessionRepo.Touch(ctx, sessionID)
	if err != nil {
		s.logger.Warn("could not refresh session activity",
			zap.Uint("user_id", user.ID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return false, nil
	}
	return ok, nil
}

// owns reports whether sessionID is a live session of userID
func (s *AuthServiceImpl) owns(ctx context.Context, userID uint, sessionID string) bool {
	if sessionID == "" {
		return false
	}
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) && !errors.Is(err, domain.ErrSessionExpired) {
			s.logger.Warn("could not load session",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
		return false
	}
	return sess.UserID == userID
}

func (s *AuthServiceImpl) logAudit(ctx context.Context, event *domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent(ctx, event); err != nil {
		s.logger.Debug("audit event dropped", zap.Error(err))
	}
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

var _ domain.AuthService = (*AuthServiceImpl)(nil)
