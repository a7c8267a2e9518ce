package middleware

import (
	"context"
	"testing"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := context.Background()

	if _, ok := GetUserID(ctx); ok {
		t.Error("GetUserID on empty context should report not set")
	}
	if _, ok := GetSessionID(ctx); ok {
		t.Error("GetSessionID on empty context should report not set")
	}

	ctx = WithIdentity(ctx, "u1", "s1")
	uid, ok := GetUserID(ctx)
	if !ok || uid != "u1" {
		t.Errorf("GetUserID = %q, %v", uid, ok)
	}
	sid, ok := GetSessionID(ctx)
	if !ok || sid != "s1" {
		t.Errorf("GetSessionID = %q, %v", sid, ok)
	}
}
