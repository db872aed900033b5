package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/projectsvc/domain"
	"github.com/you/projectsvc/internal/http/middleware"
)

// SessionHandlers exposes the caller's sessions
type SessionHandlers struct {
	authSvc domain.AuthService
}

// NewSessionHandlers creates new session handlers
func NewSessionHandlers(authSvc domain.AuthService) *SessionHandlers {
	return &SessionHandlers{authSvc: authSvc}
}

// RefreshActivityRequest optionally names the session to touch
type RefreshActivityRequest struct {
	SessionID string `json:"session_id"`
}

// ValidateSessionRequest optionally names the session to validate
type ValidateSessionRequest struct {
	SessionID string `json:"session_id"`
}

// TerminateSessionsRequest lists the sessions to remove
type TerminateSessionsRequest struct {
	SessionIDs []string `json:"session_ids" binding:"required,min=1,max=100,dive,required"`
}

// List returns the caller's sessions with the current one marked
func (h *SessionHandlers) List(c *gin.Context) {
	info, err := h.authSvc.GetUserSessionsInfo(c.Request.Context(), middleware.AccessToken(c), currentSessionID(c))
	if err != nil {
		respondError(c, err, "Failed to list sessions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"sessions":           info.Sessions,
			"total":              info.Total,
			"current_session_id": info.CurrentSessionID,
		},
	})
}

// Stats summarizes the caller's sessions
func (h *SessionHandlers) Stats(c *gin.Context) {
	stats, err := h.authSvc.GetSessionStats(c.Request.Context(), middleware.AccessToken(c), currentSessionID(c))
	if err != nil {
		respondError(c, err, "Failed to load session stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"total_sessions":  stats.TotalSessions,
			"active_sessions": stats.ActiveSessions,
			"current_session": stats.Current,
		},
	})
}

// TerminateOthers removes every session but the one named by X-Session-ID.
// Without the header all sessions are removed.
func (h *SessionHandlers) TerminateOthers(c *gin.Context) {
	res, err := h.authSvc.TerminateAllOtherSessions(c.Request.Context(), middleware.AccessToken(c), currentSessionID(c))
	if err != nil {
		respondError(c, err, "Failed to terminate sessions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"terminated_count":      res.TerminatedCount,
			"remaining_session_ids": res.RemainingSessionIDs,
		},
	})
}

// Get returns one session of the caller
func (h *SessionHandlers) Get(c *gin.Context) {
	view, err := h.authSvc.GetSession(c.Request.Context(), middleware.AccessToken(c), c.Param("id"), currentSessionID(c))
	if err != nil {
		respondError(c, err, "Failed to load session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

// TerminateMany removes the listed sessions of the caller. Ids the caller does
// not own are skipped.
func (h *SessionHandlers) TerminateMany(c *gin.Context) {
	var req TerminateSessionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids, err := h.authSvc.TerminateSessions(c.Request.Context(), middleware.AccessToken(c), req.SessionIDs)
	if err != nil {
		respondError(c, err, "Failed to terminate sessions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"terminated_count":       len(ids),
			"terminated_session_ids": ids,
		},
	})
}

// Validate reports whether the session from the body or the X-Session-ID
// header is a live session of the caller.
func (h *SessionHandlers) Validate(c *gin.Context) {
	var req ValidateSessionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = currentSessionID(c)
	}

	ok, err := h.authSvc.ValidateSession(c.Request.Context(), middleware.AccessToken(c), sessionID)
	if err != nil {
		respondError(c, err, "Failed to validate session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"valid": ok}})
}

// Terminate removes one session of the caller
func (h *SessionHandlers) Terminate(c *gin.Context) {
	ok, err := h.authSvc.TerminateSession(c.Request.Context(), middleware.AccessToken(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to terminate session")
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"terminated": true}})
}

// RefreshActivity touches the session from the body, the X-Session-ID
// header, or else the most recently active one.
func (h *SessionHandlers) RefreshActivity(c *gin.Context) {
	var req RefreshActivityRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = currentSessionID(c)
	}

	ok, err := h.authSvc.RefreshSessionActivity(c.Request.Context(), middleware.AccessToken(c), sessionID)
	if err != nil {
		respondError(c, err, "Failed to refresh session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"refreshed": ok}})
}

// bindOptionalJSON decodes the body into obj when there is one. Chunked bodies
// carry no Content-Length, so an empty stream is detected by EOF instead. On a
// malformed body it writes 400 and returns false.
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
