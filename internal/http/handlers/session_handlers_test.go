package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/projectsvc/domain"
	"github.com/you/projectsvc/internal/http/middleware"
	"github.com/you/projectsvc/internal/mocks"
)

func sessionView(id string, current bool) domain.SessionView {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.SessionView{
		Session: domain.Session{
			ID:           id,
			UserID:       1,
			DeviceName:   "Chrome on macOS",
			OSName:       "macOS 10.15.7",
			BrowserName:  "Chrome",
			DeviceType:   domain.DeviceDesktop,
			CreatedAt:    now,
			LastActiveAt: now,
			ExpiresAt:    now.Add(time.Hour),
		},
		IsCurrent: current,
	}
}

func TestSessionHandlers_List(t *testing.T) {
	authSvc := mocks.NewMockAuthService()
	var gotToken, gotCurrent string
	authSvc.GetUserSessionsInfoFunc = func(ctx context.Context, accessToken, currentSessionID string) (*domain.SessionsInfo, error) {
		gotToken, gotCurrent = accessToken, currentSessionID
		return &domain.SessionsInfo{
			Sessions:         []domain.SessionView{sessionView("s1", true), sessionView("s2", false)},
			Total:            2,
			CurrentSessionID: "s1",
		}, nil
	}
	h := NewSessionHandlers(authSvc)

	w, body := performRequest(t, http.MethodGet, "/sessions", "/sessions", nil, map[string]string{SessionHeader: "s1"}, true, h.List)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok", gotToken)
	assert.Equal(t, "s1", gotCurrent)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["total"])
	assert.Equal(t, "s1", data["current_session_id"])
	sessions := data["sessions"].([]interface{})
	require.Len(t, sessions, 2)
	first := sessions[0].(map[string]interface{})
	assert.Equal(t, "s1", first["id"])
	assert.Equal(t, true, first["is_current"])
	assert.Equal(t, "desktop", first["device_type"])
}

func TestSessionHandlers_Stats(t *testing.T) {
	authSvc := mocks.NewMockAuthService()
	current := sessionView("s1", true)
	authSvc.GetSessionStatsFunc = func(ctx context.Context, accessToken, currentSessionID string) (*domain.SessionStats, error) {
		stats := &domain.SessionStats{TotalSessions: 3, ActiveSessions: 3}
		if currentSessionID == "s1" {
			stats.Current = &current
		}
		return stats, nil
	}
	h := NewSessionHandlers(authSvc)

	w, body := performRequest(t, http.MethodGet, "/sessions/stats", "/sessions/stats", nil, map[string]string{SessionHeader: "s1"}, true, h.Stats)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["total_sessions"])
	assert.Equal(t, float64(3), data["active_sessions"])
	assert.Equal(t, "s1", data["current_session"].(map[string]interface{})["id"])

	w, body = performRequest(t, http.MethodGet, "/sessions/stats", "/sessions/stats", nil, nil, true, h.Stats)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["data"].(map[string]interface{})["current_session"])
}

func TestSessionHandlers_TerminateOthers(t *testing.T) {
	authSvc := mocks.NewMockAuthService()
	authSvc.TerminateAllOtherSessionsFunc = func(ctx context.Context, accessToken, currentSessionID string) (*domain.TerminateResult, error) {
		if currentSessionID == "" {
			return &domain.TerminateResult{TerminatedCount: 3, RemainingSessionIDs: []string{}}, nil
		}
		return &domain.TerminateResult{TerminatedCount: 2, RemainingSessionIDs: []string{currentSessionID}}, nil
	}
	h := NewSessionHandlers(authSvc)

	w, body := performRequest(t, http.MethodDelete, "/sessions", "/sessions", nil, map[string]string{SessionHeader: "keep"}, true, h.TerminateOthers)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["terminated_count"])
	assert.Equal(t, []interface{}{"keep"}, data["remaining_session_ids"])

	w, body = performRequest(t, http.MethodDelete, "/sessions", "/sessions", nil, nil, true, h.TerminateOthers)
	require.Equal(t, http.StatusOK, w.Code)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["terminated_count"])
	assert.Empty(t, data["remaining_session_ids"])
}

func TestSessionHandlers_Terminate(t *testing.T) {
	tests := []struct {
		name           string
		terminate      func(ctx context.Context, accessToken, sessionID string) (bool, error)
		expectedStatus int
		expectedBody   map[string]interface{}
	}{
		{
			name: "owned session removed",
			terminate: func(ctx context.Context, accessToken, sessionID string) (bool, error) {
				return sessionID == "s1", nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   map[string]interface{}{"data": map[string]interface{}{"terminated": true}},
		},
		{
			name: "unknown or foreign session",
			terminate: func(ctx context.Context, accessToken, sessionID string) (bool, error) {
				return false, nil
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   map[string]interface{}{"error": "Session not found"},
		},
		{
			name: "expired token",
			terminate: func(ctx context.Context, accessToken, sessionID string) (bool, error) {
				return false, domain.ErrTokenExpired
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   map[string]interface{}{"error": "Token expired"},
		},
		{
			name: "unexpected failure",
			terminate: func(ctx context.Context, accessToken, sessionID string) (bool, error) {
				return false, errors.New("boom")
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   map[string]interface{}{"error": "Failed to terminate session"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authSvc := mocks.NewMockAuthService()
			authSvc.TerminateSessionFunc = tt.terminate
			h := NewSessionHandlers(authSvc)

			w, body := performRequest(t, http.MethodDelete, "/sessions/s1", "/sessions/:id", nil, nil, true, h.Terminate)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedBody, body)
		})
	}
}

func TestSessionHandlers_RefreshActivity(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		headers    map[string]string
		expectedID string
	}{
		{name: "id from body wins", body: RefreshActivityRequest{SessionID: "body"}, headers: map[string]string{SessionHeader: "header"}, expectedID: "body"},
		{name: "falls back to header", headers: map[string]string{SessionHeader: "header"}, expectedID: "header"},
		{name: "empty body field falls back to header", body: RefreshActivityRequest{}, headers: map[string]string{SessionHeader: "header"}, expectedID: "header"},
		{name: "no id at all", expectedID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authSvc := mocks.NewMockAuthService()
			gotID := "unset"
			authSvc.RefreshSessionActivityFunc = func(ctx context.Context, accessToken, sessionID string) (bool, error) {
				gotID = sessionID
				return true, nil
			}
			h := NewSessionHandlers(authSvc)

			w, body := performRequest(t, http.MethodPost, "/sessions/refresh", "/sessions/refresh", tt.body, tt.headers, true, h.RefreshActivity)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.expectedID, gotID)
			assert.Equal(t, true, body["data"].(map[string]interface{})["refreshed"])
		})
	}
}

func TestSessionHandlers_RefreshActivity_BodyWithoutLength(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedID     string
	}{
		{name: "chunked body is read", body: `{"session_id":"chunked"}`, expectedStatus: http.StatusOK, expectedID: "chunked"},
		{name: "empty chunked body falls back to header", body: "", expectedStatus: http.StatusOK, expectedID: "header"},
		{name: "malformed chunked body", body: `{"session_id":`, expectedStatus: http.StatusBadRequest, expectedID: "unset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authSvc := mocks.NewMockAuthService()
			gotID := "unset"
			authSvc.RefreshSessionActivityFunc = func(ctx context.Context, accessToken, sessionID string) (bool, error) {
				gotID = sessionID
				return true, nil
			}
			h := NewSessionHandlers(authSvc)

			gin.SetMode(gin.TestMode)
			r := gin.New()
			r.POST("/sessions/refresh", func(c *gin.Context) {
				c.Set(middleware.ContextAccessToken, "tok")
			}, h.RefreshActivity)

			// a reader of unknown size leaves ContentLength at -1, as with chunked encoding
			req := httptest.NewRequest(http.MethodPost, "/sessions/refresh", io.MultiReader(strings.NewReader(tt.body)))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(SessionHeader, "header")
			require.Equal(t, int64(-1), req.ContentLength)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedID, gotID)
		})
	}
}

func TestSessionHandlers_Get(t *testing.T) {
	tests := []struct {
		name           string
		getSession     func(ctx context.Context, accessToken, sessionID, currentSessionID string) (*domain.SessionView, error)
		expectedStatus int
		expectedError  string
	}{
		{
			name: "owned session",
			getSession: func(ctx context.Context, accessToken, sessionID, currentSessionID string) (*domain.SessionView, error) {
				view := sessionView(sessionID, sessionID == currentSessionID)
				return &view, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "unknown or foreign session",
			getSession: func(ctx context.Context, accessToken, sessionID, currentSessionID string) (*domain.SessionView, error) {
				return nil, domain.ErrSessionNotFound
			},
			expectedStatus: http.StatusNotFound,
			expectedError:  "Session not found",
		},
		{
			name: "invalid token",
			getSession: func(ctx context.Context, accessToken, sessionID, currentSessionID string) (*domain.SessionView, error) {
				return nil, domain.ErrTokenInvalid
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid token",
		},
		{
			name: "unexpected failure",
			getSession: func(ctx context.Context, accessToken, sessionID, currentSessionID string) (*domain.SessionView, error) {
				return nil, errors.New("boom")
			},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Failed to load session",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authSvc := mocks.NewMockAuthService()
			var gotID, gotCurrent string
			authSvc.GetSessionFunc = func(ctx context.Context, accessToken, sessionID, currentSessionID string) (*domain.SessionView, error) {
				gotID, gotCurrent = sessionID, currentSessionID
				return tt.getSession(ctx, accessToken, sessionID, currentSessionID)
			}
			h := NewSessionHandlers(authSvc)

			w, body := performRequest(t, http.MethodGet, "/sessions/s1", "/sessions/:id", nil, map[string]string{SessionHeader: "s1"}, true, h.Get)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "s1", gotID)
			assert.Equal(t, "s1", gotCurrent)
			if tt.expectedError != "" {
				assert.Equal(t, map[string]interface{}{"error": tt.expectedError}, body)
				return
			}
			data := body["data"].(map[string]interface{})
			assert.Equal(t, "s1", data["id"])
			assert.Equal(t, true, data["is_current"])
		})
	}
}

func TestSessionHandlers_TerminateMany(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		terminate      func(ctx context.Context, accessToken string, sessionIDs []string) ([]string, error)
		expectedStatus int
		expectedIDs    []interface{}
		expectCall     bool
	}{
		{
			name: "owned subset reported",
			body: TerminateSessionsRequest{SessionIDs: []string{"s1", "s2", "foreign"}},
			terminate: func(ctx context.Context, accessToken string, sessionIDs []string) ([]string, error) {
				return sessionIDs[:2], nil
			},
			expectedStatus: http.StatusOK,
			expectedIDs:    []interface{}{"s1", "s2"},
			expectCall:     true,
		},
		{
			name: "nothing removed",
			body: TerminateSessionsRequest{SessionIDs: []string{"foreign"}},
			terminate: func(ctx context.Context, accessToken string, sessionIDs []string) ([]string, error) {
				return []string{}, nil
			},
			expectedStatus: http.StatusOK,
			expectedIDs:    []interface{}{},
			expectCall:     true,
		},
		{name: "missing list", body: map[string]interface{}{}, expectedStatus: http.StatusBadRequest},
		{name: "empty list", body: TerminateSessionsRequest{SessionIDs: []string{}}, expectedStatus: http.StatusBadRequest},
		{name: "blank id", body: TerminateSessionsRequest{SessionIDs: []string{"s1", ""}}, expectedStatus: http.StatusBadRequest},
		{
			name: "expired token",
			body: TerminateSessionsRequest{SessionIDs: []string{"s1"}},
			terminate: func(ctx context.Context, accessToken string, sessionIDs []string) ([]string, error) {
				return nil, domain.ErrTokenExpired
			},
			expectedStatus: http.StatusUnauthorized,
			expectCall:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authSvc := mocks.NewMockAuthService()
			called := false
			authSvc.TerminateSessionsFunc = func(ctx context.Context, accessToken string, sessionIDs []string) ([]string, error) {
				called = true
				assert.Equal(t, "tok", accessToken)
				return tt.terminate(ctx, accessToken, sessionIDs)
			}
			h := NewSessionHandlers(authSvc)

			w, body := performRequest(t, http.MethodPost, "/sessions/terminate", "/sessions/terminate", tt.body, nil, true, h.TerminateMany)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectCall, called)
			if tt.expectedStatus != http.StatusOK {
				assert.NotEmpty(t, body["error"])
				return
			}
			data := body["data"].(map[string]interface{})
			assert.Equal(t, tt.expectedIDs, data["terminated_session_ids"])
			assert.Equal(t, float64(len(tt.expectedIDs)), data["terminated_count"])
		})
	}
}

func TestSessionHandlers_Validate(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		headers        map[string]string
		valid          bool
		err            error
		expectedStatus int
		expectedID     string
	}{
		{name: "id from body", body: ValidateSessionRequest{SessionID: "body"}, headers: map[string]string{SessionHeader: "header"}, valid: true, expectedStatus: http.StatusOK, expectedID: "body"},
		{name: "id from header", headers: map[string]string{SessionHeader: "header"}, valid: true, expectedStatus: http.StatusOK, expectedID: "header"},
		{name: "invalid session", body: ValidateSessionRequest{SessionID: "gone"}, expectedStatus: http.StatusOK, expectedID: "gone"},
		{name: "no id", expectedStatus: http.StatusOK, expectedID: ""},
		{name: "expired token", headers: map[string]string{SessionHeader: "header"}, err: domain.ErrTokenExpired, expectedStatus: http.StatusUnauthorized, expectedID: "header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authSvc := mocks.NewMockAuthService()
			gotID := "unset"
			authSvc.ValidateSessionFunc = func(ctx context.Context, accessToken, sessionID string) (bool, error) {
				gotID = sessionID
				return tt.valid, tt.err
			}
			h := NewSessionHandlers(authSvc)

			w, body := performRequest(t, http.MethodPost, "/sessions/validate", "/sessions/validate", tt.body, tt.headers, true, h.Validate)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedID, gotID)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.valid, body["data"].(map[string]interface{})["valid"])
			}
		})
	}
}
