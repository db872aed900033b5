package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/you/projectsvc/internal/http/handlers"
	"github.com/you/projectsvc/internal/http/middleware"
	"github.com/you/projectsvc/internal/metrics"
)

// Handlers groups every route handler the router mounts
type Handlers struct {
	Auth     *handlers.AuthHandlers
	Sessions *handlers.SessionHandlers
	Policies *handlers.PolicyHandlers
}

// BuildRouter mounts the public auth routes and, behind JWT and Casbin
// enforcement, the session and policy routes.
func BuildRouter(h Handlers, jwtmw *middleware.AuthMW, cb *middleware.CasbinMW, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.Metrics(m))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	auth := r.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	v := r.Group("/").Use(jwtmw.WithJWT(), cb.Enforce())
	v.GET("/auth/me", h.Auth.Me)
	v.POST("/auth/logout", h.Auth.Logout)

	v.GET("/sessions", h.Sessions.List)
	v.GET("/sessions/stats", h.Sessions.Stats)
	v.GET("/sessions/:id", h.Sessions.Get)
	v.DELETE("/sessions", h.Sessions.TerminateOthers)
	v.DELETE("/sessions/:id", h.Sessions.Terminate)
	v.POST("/sessions/terminate", h.Sessions.TerminateMany)
	v.POST("/sessions/refresh", h.Sessions.RefreshActivity)
	v.POST("/sessions/validate", h.Sessions.Validate)

	v.GET("/policies", h.Policies.List)
	v.POST("/policies", h.Policies.Add)
	v.DELETE("/policies", h.Policies.Remove)

	return r
}
