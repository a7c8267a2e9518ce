// Package server assembles the gin router from the feature handlers.
package server

import (
	"github.com/gin-gonic/gin"

	"accessgate/internal/security"
	"accessgate/internal/server/handler"
	"accessgate/internal/server/middleware"
)

// Deps are the constructed handlers and the token provider the router wires together.
type Deps struct {
	Tokens     *security.TokenProvider
	Auth       *handler.AuthHandler
	Enrollment *handler.EnrollmentHandler
	Gate       *handler.GateHandler
	Approvals  *handler.ApprovalHandler
	Allowlist  *handler.AllowlistHandler
	Settings   *handler.SettingsHandler
	Policies   *handler.PolicyHandler
	AuditLogs  *handler.AuditHandler
	Health     *handler.HealthHandler
}

// NewRouter builds the HTTP API.
//
// Login, challenge, and approval-request are public: the callers they serve
// are by definition outside the gate. Everything that manages state requires
// a Bearer access token.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.ClientIP())

	r.GET("/healthz", d.Health.Live)
	r.GET("/readyz", d.Health.Ready)

	v1 := r.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/challenge", d.Auth.Challenge)
	auth.POST("/approval-request", d.Auth.RequestApproval)
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/logout", middleware.OptionalAuth(d.Tokens), d.Auth.Logout)

	protected := v1.Group("", middleware.Auth(d.Tokens))

	protected.GET("/gate", d.Gate.Evaluate)

	protected.POST("/enrollment/begin", d.Enrollment.Begin)
	protected.POST("/enrollment/confirm", d.Enrollment.Confirm)
	protected.POST("/enrollment/reset", d.Enrollment.Reset)
	protected.GET("/enrollment", d.Enrollment.State)

	protected.GET("/approvals", d.Approvals.ListPending)
	protected.GET("/approvals/:id", d.Approvals.Get)
	protected.POST("/approvals/:id/approve", d.Approvals.Approve)
	protected.POST("/approvals/:id/deny", d.Approvals.Deny)

	protected.GET("/allowlist", d.Allowlist.List)
	protected.DELETE("/allowlist", d.Allowlist.Remove)

	protected.GET("/settings", d.Settings.Get)
	protected.PUT("/settings", d.Settings.Update)

	protected.GET("/policies", d.Policies.List)
	protected.GET("/policies/:id", d.Policies.Get)
	protected.POST("/policies", d.Policies.Create)
	protected.PUT("/policies/:id", d.Policies.Update)
	protected.DELETE("/policies/:id", d.Policies.Delete)

	protected.GET("/audit-logs", d.AuditLogs.List)

	return r
}
