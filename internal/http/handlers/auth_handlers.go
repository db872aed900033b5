package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/projectsvc/domain"
	"github.com/you/projectsvc/internal/http/middleware"
)

// AuthHandlers handles authentication HTTP requests
type AuthHandlers struct {
	authSvc domain.AuthService
	userSvc domain.UserService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authSvc domain.AuthService, userSvc domain.UserService) *AuthHandlers {
	return &AuthHandlers{authSvc: authSvc, userSvc: userSvc}
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	FirstName  string `json:"first_name" binding:"required"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name" binding:"required"`
	Role       string `json:"role,omitempty" binding:"omitempty,oneof=student teacher"` // admins come from cmd/seed-admin
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func userJSON(u *domain.User) gin.H {
	return gin.H{
		"id":          u.ID,
		"email":       u.Email,
		"role":        u.Role,
		"first_name":  u.FirstName,
		"middle_name": u.MiddleName,
		"last_name":   u.LastName,
		"is_active":   u.IsActive,
	}
}

// Register handles user registration
func (h *AuthHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userSvc.Register(c.Request.Context(), domain.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		MiddleName: req.MiddleName,
		LastName:   req.LastName,
		Role:       req.Role,
	})
	if err != nil {
		respondError(c, err, "Failed to register user")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": userJSON(user)})
}

// Login handles user login. A session is derived from the request's
// User-Agent and client address.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password, clientContext(c))
	if err != nil {
		respondError(c, err, "Login failed")
		return
	}

	data := gin.H{
		"access_token":       result.Tokens.AccessToken,
		"refresh_token":      result.Tokens.RefreshToken,
		"token_type":         "Bearer",
		"expires_in":         result.ExpiresIn,
		"refresh_expires_at": result.Tokens.RefreshExpiresAt,
		"session_status":     result.Session.Status,
		"user":               userJSON(result.User),
	}
	if result.SessionID != "" {
		data["session_id"] = result.SessionID
		c.Header(SessionHeader, result.SessionID)
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err, "Token refresh failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"access_token": result.AccessToken,
			"token_type":   "Bearer",
			"expires_in":   result.ExpiresIn,
		},
	})
}

// Logout terminates every session of the caller
func (h *AuthHandlers) Logout(c *gin.Context) {
	ok, err := h.authSvc.Logout(c.Request.Context(), middleware.AccessToken(c))
	if err != nil {
		respondError(c, err, "Logout failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"logged_out": ok}})
}

// Me returns the caller's profile
func (h *AuthHandlers) Me(c *gin.Context) {
	user, err := h.userSvc.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to load profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": userJSON(user)})
}
