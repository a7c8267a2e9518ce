package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"accessgate/internal/audit"
	"accessgate/internal/server/middleware"
	settingsdomain "accessgate/internal/settings/domain"
	settingsrepo "accessgate/internal/settings/repository"
)

// SettingsHandler reads and updates the deployment-wide lockdown settings.
type SettingsHandler struct {
	settings settingsrepo.Repository
	audit    audit.AuditLogger
}

func NewSettingsHandler(settings settingsrepo.Repository, auditLogger audit.AuditLogger) *SettingsHandler {
	return &SettingsHandler{settings: settings, audit: auditLogger}
}

type settingsPayload struct {
	ReverifyOnReset             bool `json:"reverify_on_reset"`
	AutoAllowlistAfterChallenge bool `json:"auto_allowlist_after_challenge"`
	AllowlistTTLDays            int  `json:"allowlist_ttl_days"`
	MaxAllowlistEntries         int  `json:"max_allowlist_entries"`
	RateLimitMaxFailures        int  `json:"rate_limit_max_failures"`
	RateLimitWindowSeconds      int  `json:"rate_limit_window_seconds"`
}

func (h *SettingsHandler) Get(c *gin.Context) {
	s, err := h.settings.Get(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if s == nil {
		s = settingsdomain.Defaults()
	}
	c.JSON(http.StatusOK, settingsJSON(s))
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var req settingsPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if req.AllowlistTTLDays < 0 || req.MaxAllowlistEntries < 0 ||
		req.RateLimitMaxFailures < 0 || req.RateLimitWindowSeconds < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "settings values must not be negative"})
		return
	}
	ctx := c.Request.Context()
	s := &settingsdomain.LockdownSettings{
		ReverifyOnReset:             req.ReverifyOnReset,
		AutoAllowlistAfterChallenge: req.AutoAllowlistAfterChallenge,
		AllowlistTTLDays:            req.AllowlistTTLDays,
		MaxAllowlistEntries:         req.MaxAllowlistEntries,
		RateLimitMaxFailures:        req.RateLimitMaxFailures,
		RateLimitWindowSeconds:      req.RateLimitWindowSeconds,
	}
	if err := h.settings.Save(ctx, s); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	userID, _ := middleware.GetUserID(ctx)
	h.audit.LogEvent(ctx, userID, audit.ActionSettingsUpdated, "settings", "")
	c.JSON(http.StatusOK, settingsJSON(s))
}

func settingsJSON(s *settingsdomain.LockdownSettings) gin.H {
	return gin.H{
		"reverify_on_reset":              s.ReverifyOnReset,
		"auto_allowlist_after_challenge": s.AutoAllowlistAfterChallenge,
		"allowlist_ttl_days":             s.AllowlistTTLDays,
		"max_allowlist_entries":          s.MaxAllowlistEntries,
		"rate_limit_max_failures":        s.RateLimitMaxFailures,
		"rate_limit_window_seconds":      s.RateLimitWindowSeconds,
		"updated_at":                     s.UpdatedAt,
	}
}
