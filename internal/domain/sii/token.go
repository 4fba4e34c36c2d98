package sii

import "time"

// Token is the ephemeral credential the SII hands out after the
// seed / signed-seed exchange. It lives in process memory only; once the
// validity window elapses the full three-step flow must run again.
type Token struct {
	Value      string        `json:"-"`
	ObtainedAt time.Time     `json:"obtained_at"`
	TTL        time.Duration `json:"ttl"`
}

// NewToken creates a token obtained at the given instant
func NewToken(value string, obtainedAt time.Time, ttl time.Duration) Token {
	return Token{Value: value, ObtainedAt: obtainedAt, TTL: ttl}
}

// ExpiresAt returns the end of the validity window
func (t Token) ExpiresAt() time.Time {
	return t.ObtainedAt.Add(t.TTL)
}

// Valid reports whether the token can still be presented at the given
// instant. A zero token is never valid.
func (t Token) Valid(now time.Time) bool {
	if t.Value == "" {
		return false
	}
	return now.Before(t.ExpiresAt())
}
