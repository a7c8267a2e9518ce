package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger is the piece of *sql.DB the health check needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker verifies the policy engine can compile and evaluate.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports liveness and readiness. Liveness is unconditional;
// readiness checks the database and the policy engine.
type HealthHandler struct {
	db     Pinger
	policy PolicyChecker
}

func NewHealthHandler(db Pinger, policy PolicyChecker) *HealthHandler {
	return &HealthHandler{db: db, policy: policy}
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	healthy := true

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if h.policy != nil {
		if err := h.policy.HealthCheck(ctx); err != nil {
			checks["policy"] = err.Error()
			healthy = false
		} else {
			checks["policy"] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"checks": checks})
}
