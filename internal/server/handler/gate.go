package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"accessgate/internal/audit"
	gatedomain "accessgate/internal/gate/domain"
	gateservice "accessgate/internal/gate/service"
	"accessgate/internal/server/middleware"
)

// GateAPI is the read-only slice of the gate service the handler uses.
type GateAPI interface {
	Evaluate(ctx context.Context, userID, ip string) (*gatedomain.Evaluation, error)
}

// GateHandler answers "would this user from this IP get in" for the current
// session, without side effects.
type GateHandler struct {
	gate  GateAPI
	audit audit.AuditLogger
}

func NewGateHandler(gate GateAPI, auditLogger audit.AuditLogger) *GateHandler {
	return &GateHandler{gate: gate, audit: auditLogger}
}

func (h *GateHandler) Evaluate(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := middleware.GetUserID(ctx)
	ev, err := h.gate.Evaluate(ctx, userID, c.ClientIP())
	if err != nil {
		if errors.Is(err, gateservice.ErrUnknownUser) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.audit.LogEvent(ctx, userID, audit.ActionGateEvaluate, "gate", string(ev.Decision))
	c.JSON(http.StatusOK, gin.H{
		"decision":         ev.Decision,
		"ip_allowlisted":   ev.IPAllowlisted,
		"enrollment_state": ev.EnrollmentState,
	})
}
