package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	allowlistrepo "accessgate/internal/allowlist/repository"
	"accessgate/internal/audit"
	"accessgate/internal/server/middleware"
)

// AllowlistHandler manages the caller's own allow-listed IPs.
type AllowlistHandler struct {
	allowlist allowlistrepo.Repository
	audit     audit.AuditLogger
}

func NewAllowlistHandler(allowlist allowlistrepo.Repository, auditLogger audit.AuditLogger) *AllowlistHandler {
	return &AllowlistHandler{allowlist: allowlist, audit: auditLogger}
}

func (h *AllowlistHandler) List(c *gin.Context) {
	userID, _ := middleware.GetUserID(c.Request.Context())
	entries, err := h.allowlist.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{"id": e.ID, "ip_address": e.IPAddress, "created_at": e.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

// Remove deletes one of the caller's entries by IP (?ip= query parameter,
// avoids IPv6 colons in the path). Removing an absent IP is a no-op.
func (h *AllowlistHandler) Remove(c *gin.Context) {
	ip := c.Query("ip")
	if ip == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ip query parameter is required"})
		return
	}
	ctx := c.Request.Context()
	userID, _ := middleware.GetUserID(ctx)
	if err := h.allowlist.Remove(ctx, userID, ip); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.audit.LogEvent(ctx, userID, audit.ActionAllowlistRemove, "allowlist", ip)
	c.Status(http.StatusNoContent)
}
