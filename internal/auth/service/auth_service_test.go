package service

import (
	"context"
	"sync"
	"testing"
	"time"

	approvaldomain "accessgate/internal/approval/domain"
	gatedomain "accessgate/internal/gate/domain"
	gateservice "accessgate/internal/gate/service"
	"accessgate/internal/security"
	"accessgate/internal/server/middleware"
	sessiondomain "accessgate/internal/session/domain"
	userdomain "accessgate/internal/user/domain"
)

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*userdomain.User
	byEmail map[string]*userdomain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[string]*userdomain.User), byEmail: make(map[string]*userdomain.User)}
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[email], nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u
	return nil
}

type memSessionRepo struct {
	mu sync.Mutex
	m  map[string]*sessiondomain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{m: make(map[string]*sessiondomain.Session)}
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id], nil
}

func (r *memSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[s.ID] = s
	return nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok && s.RevokedAt == nil {
		now := time.Now().UTC()
		s.RevokedAt = &now
	}
	return nil
}

func (r *memSessionRepo) RevokeAllByUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, s := range r.m {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
		}
	}
	return nil
}

func (r *memSessionRepo) UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[sessionID]; ok {
		s.RefreshJti = jti
		s.RefreshTokenHash = refreshTokenHash
	}
	return nil
}

func (r *memSessionRepo) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s.LastSeenAt = &at
	}
	return nil
}

// fakeGate returns a scripted verdict and records challenge submissions.
type fakeGate struct {
	decision     gatedomain.Decision
	challengeErr error
	submitted    []string
}

func (g *fakeGate) Evaluate(ctx context.Context, userID, ip string) (*gatedomain.Evaluation, error) {
	return &gatedomain.Evaluation{Decision: g.decision}, nil
}

func (g *fakeGate) SubmitChallenge(ctx context.Context, userID, ip, code string) error {
	g.submitted = append(g.submitted, userID+"|"+ip+"|"+code)
	return g.challengeErr
}

func (g *fakeGate) RequestApproval(ctx context.Context, userID, ip string) (*approvaldomain.Request, error) {
	return &approvaldomain.Request{ID: "r1", UserID: userID, RequestedIP: ip, Status: approvaldomain.StatusPending}, nil
}

const testPassword = "Str0ng&LongPassw0rd!"

func newAuthFixture(t *testing.T, gate Gate) (*AuthService, *memUserRepo, *memSessionRepo) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	users := newMemUserRepo()
	sessions := newMemSessionRepo()
	svc := NewAuthService(users, sessions, gate, security.NewHasher(4), tokens, 24*time.Hour)
	return svc, users, sessions
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAuthFixture(t, &fakeGate{decision: gatedomain.DecisionAllow})

	id, err := svc.Register(ctx, "U1@Example.com", testPassword, "User One")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id == "" {
		t.Fatal("Register returned empty user id")
	}
	if _, err := svc.Register(ctx, "u1@example.com", testPassword, "Dup"); err != ErrEmailAlreadyRegistered {
		t.Errorf("duplicate email: want ErrEmailAlreadyRegistered, got %v", err)
	}
	if _, err := svc.Register(ctx, "bad-email", testPassword, ""); err == nil {
		t.Error("invalid email accepted")
	}
	if _, err := svc.Register(ctx, "u2@example.com", "short", ""); err == nil {
		t.Error("weak password accepted")
	}
}

func TestAuthService_LoginVerdicts(t *testing.T) {
	ctx := context.Background()
	gate := &fakeGate{decision: gatedomain.DecisionAllow}
	svc, _, sessions := newAuthFixture(t, gate)
	if _, err := svc.Register(ctx, "u1@example.com", testPassword, ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := svc.Login(ctx, "u1@example.com", testPassword, "203.0.113.7")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Decision != gatedomain.DecisionAllow || res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatalf("allow verdict should carry tokens: %+v", res)
	}
	if len(sessions.m) != 1 {
		t.Errorf("sessions = %d, want 1", len(sessions.m))
	}

	gate.decision = gatedomain.DecisionChallenge
	res, err = svc.Login(ctx, "u1@example.com", testPassword, "198.51.100.9")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Decision != gatedomain.DecisionChallenge || res.AccessToken != "" {
		t.Errorf("challenge verdict must not carry tokens: %+v", res)
	}
	if len(sessions.m) != 1 {
		t.Errorf("challenge must not open a session")
	}

	gate.decision = gatedomain.DecisionBlockWithRequest
	res, err = svc.Login(ctx, "u1@example.com", testPassword, "198.51.100.9")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Decision != gatedomain.DecisionBlockWithRequest || res.AccessToken != "" {
		t.Errorf("block verdict must not carry tokens: %+v", res)
	}
}

func TestAuthService_LoginInvalidCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAuthFixture(t, &fakeGate{decision: gatedomain.DecisionAllow})
	if _, err := svc.Register(ctx, "u1@example.com", testPassword, ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Unknown email and wrong password are indistinguishable.
	if _, err := svc.Login(ctx, "nobody@example.com", testPassword, "203.0.113.7"); err != ErrInvalidCredentials {
		t.Errorf("unknown email: want ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "u1@example.com", "WrongPassw0rd!x", "203.0.113.7"); err != ErrInvalidCredentials {
		t.Errorf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_CompleteChallenge(t *testing.T) {
	ctx := context.Background()
	gate := &fakeGate{decision: gatedomain.DecisionChallenge}
	svc, _, sessions := newAuthFixture(t, gate)
	if _, err := svc.Register(ctx, "u1@example.com", testPassword, ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := svc.CompleteChallenge(ctx, "u1@example.com", testPassword, "203.0.113.7", "123456")
	if err != nil {
		t.Fatalf("CompleteChallenge: %v", err)
	}
	if res.AccessToken == "" || len(sessions.m) != 1 {
		t.Error("successful challenge should open a session with tokens")
	}
	if len(gate.submitted) != 1 {
		t.Errorf("gate submissions = %v", gate.submitted)
	}

	// Gate errors pass through unchanged.
	gate.challengeErr = gateservice.ErrInvalidCode
	if _, err := svc.CompleteChallenge(ctx, "u1@example.com", testPassword, "203.0.113.7", "000000"); err != gateservice.ErrInvalidCode {
		t.Errorf("want ErrInvalidCode, got %v", err)
	}
	gate.challengeErr = gateservice.ErrRateLimited
	if _, err := svc.CompleteChallenge(ctx, "u1@example.com", testPassword, "203.0.113.7", "000000"); err != gateservice.ErrRateLimited {
		t.Errorf("want ErrRateLimited, got %v", err)
	}

	// A full allow-list does not fail a verified challenge.
	gate.challengeErr = gateservice.ErrAllowlistFull
	res, err = svc.CompleteChallenge(ctx, "u1@example.com", testPassword, "203.0.113.7", "123456")
	if err != nil {
		t.Fatalf("CompleteChallenge with full allow-list: %v", err)
	}
	if res.AccessToken == "" {
		t.Error("verified challenge should still open a session when the allow-list is full")
	}
}

func TestAuthService_RefreshRotation(t *testing.T) {
	ctx := context.Background()
	svc, _, sessions := newAuthFixture(t, &fakeGate{decision: gatedomain.DecisionAllow})
	if _, err := svc.Register(ctx, "u1@example.com", testPassword, ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	login, err := svc.Login(ctx, "u1@example.com", testPassword, "203.0.113.7")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("Refresh must rotate the refresh token")
	}

	// The old token's jti no longer matches: reuse is detected and every
	// session of the user is revoked.
	if _, err := svc.Refresh(ctx, login.RefreshToken); err != ErrRefreshTokenReuse {
		t.Fatalf("reuse: want ErrRefreshTokenReuse, got %v", err)
	}
	for _, s := range sessions.m {
		if s.RevokedAt == nil {
			t.Error("session not revoked after reuse detection")
		}
	}
	if _, err := svc.Refresh(ctx, refreshed.RefreshToken); err != ErrInvalidRefreshToken {
		t.Errorf("refresh on revoked session: want ErrInvalidRefreshToken, got %v", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	svc, _, sessions := newAuthFixture(t, &fakeGate{decision: gatedomain.DecisionAllow})
	if _, err := svc.Register(ctx, "u1@example.com", testPassword, ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	login, _ := svc.Login(ctx, "u1@example.com", testPassword, "203.0.113.7")

	if err := svc.Logout(ctx, login.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	for _, s := range sessions.m {
		if s.RevokedAt == nil {
			t.Error("session not revoked by Logout")
		}
	}

	// Logout via access-token context.
	login2, _ := svc.Login(ctx, "u1@example.com", testPassword, "203.0.113.7")
	var sid string
	for id, s := range sessions.m {
		if s.RevokedAt == nil {
			sid = id
		}
	}
	if sid == "" {
		t.Fatal("no live session after second login")
	}
	ctx2 := middleware.WithIdentity(ctx, login2.UserID, sid)
	if err := svc.Logout(ctx2, ""); err != nil {
		t.Fatalf("Logout by context: %v", err)
	}
	if sessions.m[sid].RevokedAt == nil {
		t.Error("session not revoked by context Logout")
	}
}
