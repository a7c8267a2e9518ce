package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"accessgate/internal/audit"
	enrollservice "accessgate/internal/enrollment/service"
	"accessgate/internal/events"
	eventdomain "accessgate/internal/events/domain"
	"accessgate/internal/server/middleware"
)

// EnrollmentAPI is the slice of the enrollment service the handler uses.
type EnrollmentAPI interface {
	Begin(ctx context.Context, userID, accountLabel string) (*enrollservice.BeginResult, error)
	Confirm(ctx context.Context, userID, code string) error
	Reset(ctx context.Context, userID, accountLabel, code string) (*enrollservice.BeginResult, error)
	State(ctx context.Context, userID string) (*enrollservice.StateResult, error)
}

type EnrollmentHandler struct {
	enrollment EnrollmentAPI
	audit      audit.AuditLogger
	emitter    events.EventEmitter
}

func NewEnrollmentHandler(enrollment EnrollmentAPI, auditLogger audit.AuditLogger, emitter events.EventEmitter) *EnrollmentHandler {
	return &EnrollmentHandler{enrollment: enrollment, audit: auditLogger, emitter: emitter}
}

type beginRequest struct {
	// AccountLabel names the account in the authenticator app; defaults to the user id.
	AccountLabel string `json:"account_label"`
}

// Begin provisions a fresh pending secret and returns it with a QR code.
func (h *EnrollmentHandler) Begin(c *gin.Context) {
	userID, _ := middleware.GetUserID(c.Request.Context())
	var req beginRequest
	_ = c.ShouldBindJSON(&req)
	if req.AccountLabel == "" {
		req.AccountLabel = userID
	}
	res, err := h.enrollment.Begin(c.Request.Context(), userID, req.AccountLabel)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.audit.LogEvent(c.Request.Context(), userID, audit.ActionEnrollBegin, "enrollment", "")
	c.JSON(http.StatusOK, beginResponse(res))
}

type confirmRequest struct {
	Code string `json:"code" binding:"required"`
}

// Confirm turns a pending enrollment into a confirmed one with a valid code.
func (h *EnrollmentHandler) Confirm(c *gin.Context) {
	userID, _ := middleware.GetUserID(c.Request.Context())
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	ctx := c.Request.Context()
	if err := h.enrollment.Confirm(ctx, userID, req.Code); err != nil {
		h.writeError(c, err)
		return
	}
	h.audit.LogEvent(ctx, userID, audit.ActionEnrollConfirm, "enrollment", "")
	events.EmitAsync(h.emitter, ctx, &eventdomain.AccessEvent{
		UserID:    userID,
		IP:        middleware.GetClientIP(ctx),
		EventType: eventdomain.TypeEnrollConfirmed,
		Source:    "api",
	})
	c.JSON(http.StatusOK, gin.H{"state": "confirmed"})
}

type resetRequest struct {
	AccountLabel string `json:"account_label"`
	// Code is the current TOTP code; required only when policy demands
	// re-verification on reset.
	Code string `json:"code"`
}

// Reset discards a confirmed secret and provisions a new pending one.
func (h *EnrollmentHandler) Reset(c *gin.Context) {
	userID, _ := middleware.GetUserID(c.Request.Context())
	var req resetRequest
	_ = c.ShouldBindJSON(&req)
	if req.AccountLabel == "" {
		req.AccountLabel = userID
	}
	ctx := c.Request.Context()
	res, err := h.enrollment.Reset(ctx, userID, req.AccountLabel, req.Code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.audit.LogEvent(ctx, userID, audit.ActionEnrollReset, "enrollment", "")
	events.EmitAsync(h.emitter, ctx, &eventdomain.AccessEvent{
		UserID:    userID,
		IP:        middleware.GetClientIP(ctx),
		EventType: eventdomain.TypeEnrollReset,
		Source:    "api",
	})
	c.JSON(http.StatusOK, beginResponse(res))
}

// State reports the enrollment state with the secret masked.
func (h *EnrollmentHandler) State(c *gin.Context) {
	userID, _ := middleware.GetUserID(c.Request.Context())
	res, err := h.enrollment.State(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":         res.State,
		"masked_secret": res.MaskedSecret,
		"updated_at":    res.UpdatedAt,
	})
}

func (h *EnrollmentHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, enrollservice.ErrInvalidCode):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
	case errors.Is(err, enrollservice.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts, retry later"})
	case errors.Is(err, enrollservice.ErrAlreadyConfirmed):
		c.JSON(http.StatusConflict, gin.H{"error": "enrollment already confirmed; reset it first"})
	case errors.Is(err, enrollservice.ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "no pending enrollment; begin first"})
	case errors.Is(err, enrollservice.ErrNotConfirmed):
		c.JSON(http.StatusConflict, gin.H{"error": "no confirmed enrollment"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func beginResponse(res *enrollservice.BeginResult) gin.H {
	return gin.H{
		"secret": res.Secret,
		"url":    res.URL,
		"qr":     base64.StdEncoding.EncodeToString(res.QRPNG),
	}
}
