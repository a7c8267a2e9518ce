// Package totp generates enrollment secrets and verifies time-based one-time codes.
// Code derivation (HMAC dynamic truncation, 30s steps, 6 digits) is delegated to
// github.com/pquerna/otp; this package owns the skew window, constant-time comparison,
// and the step arithmetic the replay guard needs.
package totp

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Digits is the code length. Submitted codes of any other length are rejected without verification.
	Digits = 6
	// Period is the TOTP time step.
	Period = 30 * time.Second
	// Skew is the tolerance in steps on each side of the current step.
	Skew = 1
	// secretSize is the raw secret length in bytes (160 bits).
	secretSize = 20
)

// Key is a provisioned secret: the base32 secret for manual entry and the
// otpauth:// URL for QR rendering.
type Key struct {
	Secret string
	URL    string
}

// GenerateKey creates a new random secret labeled with issuer and account.
func GenerateKey(issuer, account string) (*Key, error) {
	k, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		SecretSize:  secretSize,
		Digits:      otp.DigitsSix,
		Period:      uint(Period / time.Second),
	})
	if err != nil {
		return nil, err
	}
	return &Key{Secret: k.Secret(), URL: k.URL()}, nil
}

// CurrentCode derives the 6-digit code for the step containing t.
func CurrentCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCode(secret, t)
}

// StepOf returns the time-step index containing t.
func StepOf(t time.Time) int64 {
	return t.Unix() / int64(Period/time.Second)
}

// Verify checks code against secret for the step containing t and the steps
// immediately before and after it. Returns the matched step so the caller can
// mark it consumed. Malformed codes and undecodable secrets return (false, 0);
// Verify never returns an error to avoid distinguishing failure modes.
//
// Each candidate is compared in constant time. All Skew*2+1 candidates are
// always computed and compared so rejection cost does not depend on which
// step would have matched.
func Verify(secret, code string, t time.Time) (ok bool, step int64) {
	if !wellFormed(code) {
		return false, 0
	}
	matched := 0
	var matchedStep int64
	for offset := -Skew; offset <= Skew; offset++ {
		ct := t.Add(time.Duration(offset) * Period)
		candidate, err := totp.GenerateCode(secret, ct)
		if err != nil {
			return false, 0
		}
		eq := subtle.ConstantTimeCompare([]byte(candidate), []byte(code))
		if eq == 1 && matched == 0 {
			matchedStep = StepOf(ct)
		}
		matched |= eq
	}
	if matched != 1 {
		return false, 0
	}
	return true, matchedStep
}

// MaskSecret returns the secret with all but the first four characters hidden.
// This is the only form in which a confirmed secret may be shown again.
func MaskSecret(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-4)
}

func wellFormed(code string) bool {
	if len(code) != Digits {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
