package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	approvaldomain "accessgate/internal/approval/domain"
	approvalservice "accessgate/internal/approval/service"
	"accessgate/internal/audit"
	"accessgate/internal/events"
	eventdomain "accessgate/internal/events/domain"
	"accessgate/internal/server/middleware"
)

// ApprovalAPI is the slice of the approval service the handler uses.
type ApprovalAPI interface {
	ListPending(ctx context.Context) ([]*approvaldomain.Request, error)
	Get(ctx context.Context, requestID string) (*approvaldomain.Request, error)
	Approve(ctx context.Context, requestID, resolverID string) (*approvaldomain.Request, error)
	Deny(ctx context.Context, requestID, resolverID string) (*approvaldomain.Request, error)
}

// ApprovalHandler lets an authenticated operator resolve pending IP approval
// requests. Approving adds the requested IP to the requester's allow-list.
type ApprovalHandler struct {
	approvals ApprovalAPI
	audit     audit.AuditLogger
	emitter   events.EventEmitter
}

func NewApprovalHandler(approvals ApprovalAPI, auditLogger audit.AuditLogger, emitter events.EventEmitter) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals, audit: auditLogger, emitter: emitter}
}

func (h *ApprovalHandler) ListPending(c *gin.Context) {
	list, err := h.approvals.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, r := range list {
		out = append(out, approvalJSON(r))
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}

func (h *ApprovalHandler) Get(c *gin.Context) {
	r, err := h.approvals.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	c.JSON(http.StatusOK, approvalJSON(r))
}

func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.resolve(c, h.approvals.Approve)
}

func (h *ApprovalHandler) Deny(c *gin.Context) {
	h.resolve(c, h.approvals.Deny)
}

func (h *ApprovalHandler) resolve(c *gin.Context, fn func(ctx context.Context, requestID, resolverID string) (*approvaldomain.Request, error)) {
	ctx := c.Request.Context()
	resolverID, _ := middleware.GetUserID(ctx)
	r, err := fn(ctx, c.Param("id"), resolverID)
	if err != nil {
		if errors.Is(err, approvalservice.ErrAlreadyResolved) {
			c.JSON(http.StatusConflict, gin.H{"error": "request not pending"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.audit.LogEvent(ctx, resolverID, audit.ActionApprovalResolved, "approval:"+r.ID, string(r.Status))
	events.EmitAsync(h.emitter, ctx, &eventdomain.AccessEvent{
		UserID:    r.UserID,
		IP:        r.RequestedIP,
		EventType: eventdomain.TypeApprovalResolved,
		Source:    "api",
	})
	c.JSON(http.StatusOK, approvalJSON(r))
}

func approvalJSON(r *approvaldomain.Request) gin.H {
	out := gin.H{
		"id":           r.ID,
		"user_id":      r.UserID,
		"requested_ip": r.RequestedIP,
		"status":       r.Status,
		"requested_at": r.RequestedAt,
	}
	if r.ResolvedAt != nil {
		out["resolved_at"] = r.ResolvedAt
		out["resolved_by"] = r.ResolvedBy
	}
	return out
}
