package auth

import (
	"time"

	"ucams-cli/internal/token"
)

// RefreshBuffer is subtracted from a token's expiry to renew it before the
// backend starts rejecting requests mid-flight.
const RefreshBuffer = 300 * time.Second

// Header schemes used by the two backends.
const (
	SchemeJWT    = "JWT"
	SchemeBearer = "Bearer"
)

// Token is a session credential. It is replaced as a whole on every login and
// never updated field by field.
type Token struct {
	Value     string
	Expiry    time.Time // zero when unknown
	DerivedAt time.Time
}

// NewToken builds a Token from a raw value. A non-zero explicit expiry
// (unix seconds) returned by the backend wins over the decoded exp claim.
func NewToken(value string, explicitExp int64, now time.Time) Token {
	t := Token{Value: value, DerivedAt: now}
	if explicitExp > 0 {
		t.Expiry = time.Unix(explicitExp, 0)
		return t
	}
	if exp, ok := token.Decode(value).Expiry(); ok {
		t.Expiry = exp
	}
	return t
}

// Valid reports whether the token is present.
func (t Token) Valid() bool {
	return t.Value != ""
}

// NeedsRefresh is true for a missing token, an unknown expiry, or when now is
// within buffer of the expiry.
func (t Token) NeedsRefresh(now time.Time, buffer time.Duration) bool {
	if !t.Valid() || t.Expiry.IsZero() {
		return true
	}
	return !now.Before(t.Expiry.Add(-buffer))
}

// Header formats the Authorization header value.
func Header(scheme, value string) string {
	return scheme + " " + value
}
