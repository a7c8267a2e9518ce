package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type fakePolicyChecker struct{ err error }

func (f fakePolicyChecker) HealthCheck(context.Context) error { return f.err }

func healthRequest(h *HealthHandler, path string) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/healthz", h.Live)
	r.GET("/readyz", h.Ready)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthHandler_Live(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	if w := healthRequest(h, "/healthz"); w.Code != http.StatusOK {
		t.Errorf("live status = %d", w.Code)
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	h := NewHealthHandler(fakePinger{}, fakePolicyChecker{})
	if w := healthRequest(h, "/readyz"); w.Code != http.StatusOK {
		t.Errorf("ready status = %d, body %s", w.Code, healthRequest(h, "/readyz").Body.String())
	}
}

func TestHealthHandler_ReadyDatabaseDown(t *testing.T) {
	h := NewHealthHandler(fakePinger{err: errors.New("connection refused")}, fakePolicyChecker{})
	if w := healthRequest(h, "/readyz"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503", w.Code)
	}
}

func TestHealthHandler_ReadyPolicyBroken(t *testing.T) {
	h := NewHealthHandler(fakePinger{}, fakePolicyChecker{err: errors.New("compile failed")})
	if w := healthRequest(h, "/readyz"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503", w.Code)
	}
}
