// Package handler exposes the HTTP API: login gating, enrollment, approvals,
// allow-list and settings management. Handlers bind JSON, call the services,
// and map service sentinels to status codes; audit and event emission happen
// here so the services stay transport-free.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	approvaldomain "accessgate/internal/approval/domain"
	"accessgate/internal/audit"
	authservice "accessgate/internal/auth/service"
	"accessgate/internal/events"
	eventdomain "accessgate/internal/events/domain"
	gatedomain "accessgate/internal/gate/domain"
	gateservice "accessgate/internal/gate/service"
)

// AuthAPI is the slice of the auth service the handler uses.
type AuthAPI interface {
	Register(ctx context.Context, email, password, name string) (string, error)
	Login(ctx context.Context, email, password, ip string) (*authservice.LoginResult, error)
	CompleteChallenge(ctx context.Context, email, password, ip, code string) (*authservice.LoginResult, error)
	RequestApproval(ctx context.Context, email, password, ip string) (*approvaldomain.Request, error)
	Refresh(ctx context.Context, refreshToken string) (*authservice.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
}

type AuthHandler struct {
	auth    AuthAPI
	audit   audit.AuditLogger
	emitter events.EventEmitter
}

func NewAuthHandler(auth AuthAPI, auditLogger audit.AuditLogger, emitter events.EventEmitter) *AuthHandler {
	return &AuthHandler{auth: auth, audit: auditLogger, emitter: emitter}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	id, err := h.auth.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, authservice.ErrEmailAlreadyRegistered) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		// Validation failures (bad email, weak password) carry their own message.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "email": req.Email})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates and runs the gate. An allow verdict returns tokens; a
// challenge or block verdict returns the decision so the client knows which
// follow-up endpoint to call.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	ctx := c.Request.Context()
	res, err := h.auth.Login(ctx, req.Email, req.Password, c.ClientIP())
	if err != nil {
		if errors.Is(err, authservice.ErrInvalidCredentials) {
			h.audit.LogEvent(ctx, "", audit.ActionLoginFailure, "auth", req.Email)
		}
		h.writeError(c, err)
		return
	}
	h.audit.LogEvent(ctx, res.UserID, audit.ActionLogin, "auth", string(res.Decision))
	h.emit(ctx, res.UserID, c.ClientIP(), eventdomain.TypeGateDecision, map[string]string{"decision": string(res.Decision)})
	c.JSON(http.StatusOK, loginResponse(res))
}

type challengeRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// Challenge completes a challenged login with a TOTP code.
func (h *AuthHandler) Challenge(c *gin.Context) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	ctx := c.Request.Context()
	res, err := h.auth.CompleteChallenge(ctx, req.Email, req.Password, c.ClientIP(), req.Code)
	if err != nil {
		if errors.Is(err, gateservice.ErrInvalidCode) || errors.Is(err, gateservice.ErrRateLimited) {
			h.audit.LogEvent(ctx, "", audit.ActionChallengeFailed, "auth", req.Email)
			h.emit(ctx, "", c.ClientIP(), eventdomain.TypeChallengeFailed, nil)
		}
		h.writeError(c, err)
		return
	}
	h.audit.LogEvent(ctx, res.UserID, audit.ActionChallengePassed, "auth", "")
	h.emit(ctx, res.UserID, c.ClientIP(), eventdomain.TypeChallengePassed, nil)
	c.JSON(http.StatusOK, loginResponse(res))
}

type approvalRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RequestApproval files (or refreshes) an approval request for the caller's IP.
func (h *AuthHandler) RequestApproval(c *gin.Context) {
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	ctx := c.Request.Context()
	r, err := h.auth.RequestApproval(ctx, req.Email, req.Password, c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.audit.LogEvent(ctx, r.UserID, audit.ActionApprovalRequested, "approval:"+r.ID, r.RequestedIP)
	c.JSON(http.StatusAccepted, gin.H{
		"request_id":   r.ID,
		"status":       r.Status,
		"requested_ip": r.RequestedIP,
		"requested_at": r.RequestedAt,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	res, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse(res))
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout revokes the session named by the refresh token, or by the bearer
// token's session when no refresh token is supplied.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req logoutRequest
	_ = c.ShouldBindJSON(&req)
	ctx := c.Request.Context()
	if err := h.auth.Logout(ctx, req.RefreshToken); err != nil {
		h.writeError(c, err)
		return
	}
	h.audit.LogEvent(ctx, "", audit.ActionLogout, "auth", "")
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) emit(ctx context.Context, userID, ip, eventType string, metadata map[string]string) {
	var md []byte
	if len(metadata) > 0 {
		md, _ = json.Marshal(metadata)
	}
	events.EmitAsync(h.emitter, ctx, &eventdomain.AccessEvent{
		UserID:    userID,
		IP:        ip,
		EventType: eventType,
		Source:    "api",
		Metadata:  md,
	})
}

// writeError maps auth and gate sentinels to status codes. An unknown user
// submitting a code gets the same answer as a wrong code.
func (h *AuthHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authservice.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, authservice.ErrInvalidRefreshToken), errors.Is(err, authservice.ErrRefreshTokenReuse):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
	case errors.Is(err, gateservice.ErrInvalidCode), errors.Is(err, gateservice.ErrUnknownUser):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
	case errors.Is(err, gateservice.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts, retry later"})
	case errors.Is(err, gateservice.ErrNotEnrolled):
		c.JSON(http.StatusConflict, gin.H{"error": "two-factor enrollment required"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// loginResponse shapes a LoginResult; token fields are present only on allow.
func loginResponse(res *authservice.LoginResult) gin.H {
	out := gin.H{"decision": res.Decision, "user_id": res.UserID}
	if res.Decision == gatedomain.DecisionAllow && res.AccessToken != "" {
		out["access_token"] = res.AccessToken
		out["refresh_token"] = res.RefreshToken
		out["expires_at"] = res.ExpiresAt
	}
	return out
}
