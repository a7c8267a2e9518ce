package totp

import (
	"strings"
	"testing"
	"time"
)

func testKey(t *testing.T) *Key {
	t.Helper()
	k, err := GenerateKey("accessgate", "admin@example.com")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return k
}

func TestGenerateKey_SecretAndURL(t *testing.T) {
	k := testKey(t)
	if len(k.Secret) != 32 {
		t.Errorf("secret length = %d, want 32 base32 chars for a 20-byte secret", len(k.Secret))
	}
	if !strings.HasPrefix(k.URL, "otpauth://totp/") {
		t.Errorf("URL = %q, want otpauth://totp/ prefix", k.URL)
	}
	if !strings.Contains(k.URL, "issuer=accessgate") {
		t.Errorf("URL missing issuer: %q", k.URL)
	}
	if !strings.Contains(k.URL, "secret="+k.Secret) {
		t.Errorf("URL missing secret: %q", k.URL)
	}
}

func TestGenerateKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		k := testKey(t)
		if seen[k.Secret] {
			t.Fatalf("duplicate secret generated: %s", k.Secret)
		}
		seen[k.Secret] = true
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	k := testKey(t)
	for _, at := range []time.Time{
		time.Unix(0, 0),
		time.Unix(59, 0),
		time.Date(2026, 8, 1, 12, 0, 17, 0, time.UTC),
		time.Now().UTC(),
	} {
		code, err := CurrentCode(k.Secret, at)
		if err != nil {
			t.Fatalf("CurrentCode(%v): %v", at, err)
		}
		ok, step := Verify(k.Secret, code, at)
		if !ok {
			t.Errorf("Verify rejected current code at %v", at)
		}
		if step != StepOf(at) {
			t.Errorf("matched step = %d, want %d", step, StepOf(at))
		}
	}
}

func TestVerify_SkewWindow(t *testing.T) {
	k := testKey(t)
	// t0 at an exact step edge so the window boundaries are unambiguous.
	t0 := time.Unix(1_700_000_010, 0).Truncate(Period)
	code, err := CurrentCode(k.Secret, t0)
	if err != nil {
		t.Fatalf("CurrentCode: %v", err)
	}

	cases := []struct {
		name   string
		at     time.Time
		accept bool
	}{
		{"same step", t0.Add(5 * time.Second), true},
		{"last second of same step", t0.Add(29 * time.Second), true},
		{"one step later", t0.Add(31 * time.Second), true}, // code is one step behind: within skew
		{"last second of +1 step", t0.Add(59 * time.Second), true},
		{"two steps later", t0.Add(60 * time.Second), false},
		{"one step earlier", t0.Add(-1 * time.Second), true}, // code is one step ahead: within skew
		{"two steps earlier", t0.Add(-31 * time.Second), false},
	}
	for _, tc := range cases {
		ok, _ := Verify(k.Secret, code, tc.at)
		if ok != tc.accept {
			t.Errorf("%s: Verify = %v, want %v", tc.name, ok, tc.accept)
		}
	}
}

func TestVerify_MatchedStepFollowsCode(t *testing.T) {
	k := testKey(t)
	t0 := time.Unix(1_700_000_100, 0).Truncate(Period)
	code, err := CurrentCode(k.Secret, t0)
	if err != nil {
		t.Fatalf("CurrentCode: %v", err)
	}
	// Submitted one step late: the matched step must be the step the code was
	// minted in, not the submission step, or replay consumption is wrong.
	ok, step := Verify(k.Secret, code, t0.Add(31*time.Second))
	if !ok {
		t.Fatal("Verify rejected code within skew window")
	}
	if step != StepOf(t0) {
		t.Errorf("matched step = %d, want minting step %d", step, StepOf(t0))
	}
}

func TestVerify_Malformed(t *testing.T) {
	k := testKey(t)
	now := time.Now().UTC()
	for _, code := range []string{"", "12345", "1234567", "12a456", "12 456", "123456\n"} {
		if ok, _ := Verify(k.Secret, code, now); ok {
			t.Errorf("Verify accepted malformed code %q", code)
		}
	}
}

func TestVerify_BadSecret(t *testing.T) {
	if ok, _ := Verify("not base32!!", "123456", time.Now().UTC()); ok {
		t.Error("Verify accepted code against undecodable secret")
	}
}

func TestVerify_WrongCode(t *testing.T) {
	k := testKey(t)
	now := time.Now().UTC()
	code, err := CurrentCode(k.Secret, now)
	if err != nil {
		t.Fatalf("CurrentCode: %v", err)
	}
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if ok, _ := Verify(k.Secret, wrong, now); ok {
		t.Error("Verify accepted wrong code")
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("ABCDEFGH"); got != "ABCD****" {
		t.Errorf("MaskSecret = %q, want ABCD****", got)
	}
	if got := MaskSecret("AB"); got != "**" {
		t.Errorf("MaskSecret short = %q, want **", got)
	}
}
