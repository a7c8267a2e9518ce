package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	auditdomain "accessgate/internal/audit/domain"
	auditrepo "accessgate/internal/audit/repository"
	"accessgate/internal/server/middleware"
)

// AuditHandler lists the caller's own audit trail, newest first.
type AuditHandler struct {
	logs auditrepo.Repository
}

func NewAuditHandler(logs auditrepo.Repository) *AuditHandler {
	return &AuditHandler{logs: logs}
}

func (h *AuditHandler) List(c *gin.Context) {
	limit := queryInt32(c, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	offset := queryInt32(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	ctx := c.Request.Context()
	userID, _ := middleware.GetUserID(ctx)
	list, err := h.logs.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, a := range list {
		out = append(out, auditJSON(a))
	}
	c.JSON(http.StatusOK, gin.H{"logs": out})
}

func queryInt32(c *gin.Context, name string, fallback int32) int32 {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(n)
}

func auditJSON(a *auditdomain.AuditLog) gin.H {
	return gin.H{
		"id":         a.ID,
		"action":     a.Action,
		"resource":   a.Resource,
		"ip":         a.IP,
		"metadata":   a.Metadata,
		"created_at": a.CreatedAt,
	}
}
