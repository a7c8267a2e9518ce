package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"accessgate/internal/audit"
	policydomain "accessgate/internal/policy/domain"
	"accessgate/internal/policy/engine"
	policyrepo "accessgate/internal/policy/repository"
	"accessgate/internal/server/middleware"
)

// PolicyHandler manages operator-authored Rego policies. Rules are compiled
// before they are saved so a broken policy never reaches the evaluator.
type PolicyHandler struct {
	policies policyrepo.Repository
	audit    audit.AuditLogger
}

func NewPolicyHandler(policies policyrepo.Repository, auditLogger audit.AuditLogger) *PolicyHandler {
	return &PolicyHandler{policies: policies, audit: auditLogger}
}

type policyPayload struct {
	Name    string `json:"name" binding:"required"`
	Rules   string `json:"rules" binding:"required"`
	Enabled bool   `json:"enabled"`
}

func (h *PolicyHandler) List(c *gin.Context) {
	list, err := h.policies.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, p := range list {
		out = append(out, policyJSON(p))
	}
	c.JSON(http.StatusOK, gin.H{"policies": out})
}

func (h *PolicyHandler) Get(c *gin.Context) {
	p, err := h.policies.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "policy not found"})
		return
	}
	c.JSON(http.StatusOK, policyJSON(p))
}

func (h *PolicyHandler) Create(c *gin.Context) {
	var req policyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := engine.ValidateModule(req.Rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	now := time.Now().UTC()
	p := &policydomain.Policy{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Rules:     req.Rules,
		Enabled:   req.Enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.policies.Create(ctx, p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.logChange(c, "create:"+p.ID)
	c.JSON(http.StatusCreated, policyJSON(p))
}

func (h *PolicyHandler) Update(c *gin.Context) {
	var req policyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := engine.ValidateModule(req.Rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	p, err := h.policies.GetByID(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "policy not found"})
		return
	}
	p.Name = req.Name
	p.Rules = req.Rules
	p.Enabled = req.Enabled
	if err := h.policies.Update(ctx, p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.logChange(c, "update:"+p.ID)
	c.JSON(http.StatusOK, policyJSON(p))
}

func (h *PolicyHandler) Delete(c *gin.Context) {
	if err := h.policies.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.logChange(c, "delete:"+c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *PolicyHandler) logChange(c *gin.Context, detail string) {
	ctx := c.Request.Context()
	userID, _ := middleware.GetUserID(ctx)
	h.audit.LogEvent(ctx, userID, audit.ActionPolicyChanged, "policy", detail)
}

func policyJSON(p *policydomain.Policy) gin.H {
	return gin.H{
		"id":         p.ID,
		"name":       p.Name,
		"rules":      p.Rules,
		"enabled":    p.Enabled,
		"created_at": p.CreatedAt,
		"updated_at": p.UpdatedAt,
	}
}
