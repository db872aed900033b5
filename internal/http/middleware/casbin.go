package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/you/projectsvc/domain"
)

// RolePrefix is prepended to user roles to form casbin subjects
const RolePrefix = "role_"

// CasbinMW authorizes the caller's role against the request path and method
type CasbinMW struct {
	policySvc domain.PolicyService
	audit     domain.AuditLogger
	logger    *zap.Logger
}

// NewCasbinMW creates new casbin middleware wrapper
func NewCasbinMW(policySvc domain.PolicyService, audit domain.AuditLogger, logger *zap.Logger) *CasbinMW {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CasbinMW{policySvc: policySvc, audit: audit, logger: logger}
}

// Enforce returns the casbin authorization middleware. It must run after WithJWT.
func (mw *CasbinMW) Enforce() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextUserRole)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User role not found in token"})
			return
		}

		path := c.Request.URL.Path
		method := c.Request.Method

		allowed, err := mw.policySvc.CheckPermission(RolePrefix+role, path, method)
		if err != nil {
			mw.logger.Error("authorization check failed", zap.String("path", path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authorization check failed"})
			return
		}

		if !allowed {
			if mw.audit != nil {
				_ = mw.audit.LogEvent(c.Request.Context(), domain.NewAuditEvent(domain.AccessDeniedEvent, UserID(c)).
					WithMetadata("path", path).
					WithMetadata("method", method).
					WithMetadata("role", role).
					WithError(domain.ErrInsufficientRole))
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access Denied"})
			return
		}

		c.Next()
	}
}
