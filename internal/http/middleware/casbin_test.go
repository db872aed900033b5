package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/you/projectsvc/domain"
	"github.com/you/projectsvc/internal/mocks"
)

func TestCasbinMW_Enforce(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		role           string
		checkErr       error
		method         string
		path           string
		expectedStatus int
		expectDenied   bool
	}{
		{name: "student reads own sessions", role: domain.RoleStudent, method: http.MethodGet, path: "/sessions", expectedStatus: http.StatusOK},
		{name: "student blocked from policies", role: domain.RoleStudent, method: http.MethodGet, path: "/policies", expectedStatus: http.StatusForbidden, expectDenied: true},
		{name: "student method not allowed", role: domain.RoleStudent, method: http.MethodPost, path: "/sessions", expectedStatus: http.StatusForbidden, expectDenied: true},
		{name: "admin wildcard", role: domain.RoleAdmin, method: http.MethodDelete, path: "/policies", expectedStatus: http.StatusOK},
		{name: "no role in context", role: "", method: http.MethodGet, path: "/sessions", expectedStatus: http.StatusUnauthorized},
		{name: "enforcer failure", role: domain.RoleStudent, checkErr: errors.New("adapter closed"), method: http.MethodGet, path: "/sessions", expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enforcer := mocks.NewMockCasbinEnforcer()
			policySvc := mocks.NewMockPolicyService()
			var subject string
			policySvc.CheckPermissionFunc = func(role, resource, action string) (bool, error) {
				subject = role
				if tt.checkErr != nil {
					return false, tt.checkErr
				}
				return enforcer.Enforce(role, resource, action)
			}
			audit := mocks.NewMockAuditLogger()
			core, logs := observer.New(zap.ErrorLevel)
			mw := NewCasbinMW(policySvc, audit, zap.New(core))

			r := gin.New()
			r.Handle(tt.method, tt.path, func(c *gin.Context) {
				if tt.role != "" {
					c.Set(ContextUserID, uint(5))
					c.Set(ContextUserRole, tt.role)
				}
			}, mw.Enforce(), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.role != "" {
				assert.Equal(t, RolePrefix+tt.role, subject)
			}

			denied := audit.Events(domain.AccessDeniedEvent)
			if tt.expectDenied {
				require.Len(t, denied, 1)
				assert.Equal(t, uint(5), denied[0].UserID)
				assert.Equal(t, tt.path, denied[0].Metadata["path"])
				assert.False(t, denied[0].Success)
			} else {
				assert.Empty(t, denied)
			}

			if tt.checkErr != nil {
				assert.Equal(t, 1, logs.FilterMessage("authorization check failed").Len())
			}
		})
	}
}
