package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/projectsvc/domain"
)

// PolicyHandlers manages RBAC rules
type PolicyHandlers struct {
	policySvc domain.PolicyService
}

// NewPolicyHandlers creates new policy handlers
func NewPolicyHandlers(policySvc domain.PolicyService) *PolicyHandlers {
	return &PolicyHandlers{policySvc: policySvc}
}

// PolicyRequest is one rule: subject may perform action on object
type PolicyRequest struct {
	Subject string `json:"subject" binding:"required"`
	Object  string `json:"object" binding:"required"`
	Action  string `json:"action" binding:"required"`
}

// List returns every stored rule
func (h *PolicyHandlers) List(c *gin.Context) {
	policies := h.policySvc.GetPolicies()
	if policies == nil {
		policies = [][]string{}
	}
	c.JSON(http.StatusOK, gin.H{"data": policies})
}

// Add stores a rule
func (h *PolicyHandlers) Add(c *gin.Context) {
	var req PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.policySvc.AddPolicy(req.Subject, req.Object, req.Action); err != nil {
		respondError(c, err, "Failed to add policy")
		return
	}
	c.Status(http.StatusNoContent)
}

// Remove deletes a rule
func (h *PolicyHandlers) Remove(c *gin.Context) {
	var req PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.policySvc.RemovePolicy(req.Subject, req.Object, req.Action); err != nil {
		respondError(c, err, "Failed to remove policy")
		return
	}
	c.Status(http.StatusNoContent)
}
