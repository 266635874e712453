// Package token decodes the JWT-like bearer and resource tokens issued by the
// portal and the camera service. Signatures are never verified.
package token

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Result is the outcome of Decode. Claims is nil when Malformed is set.
type Result struct {
	Claims    map[string]any
	Malformed bool
}

// Decode extracts the claims of raw. It tries the standard JWT parser first and
// falls back to decoding the claims segment by hand.
func Decode(raw string) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{Malformed: true}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err == nil {
		return Result{Claims: claims}
	}

	if claims, ok := decodeSegment(raw); ok {
		return Result{Claims: claims}
	}
	return Result{Malformed: true}
}

// Expiry returns the exp claim. ok is false when the token was malformed or
// carries no usable exp.
func (r Result) Expiry() (time.Time, bool) {
	if r.Malformed || r.Claims == nil {
		return time.Time{}, false
	}

	var sec float64
	switch v := r.Claims["exp"].(type) {
	case float64:
		sec = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, false
		}
		sec = f
	case int64:
		sec = float64(v)
	case int:
		sec = float64(v)
	default:
		return time.Time{}, false
	}

	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec <= 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(sec), 0), true
}

// ExpiresWithin reports whether the token is unknown-expiry or expires before
// now+buffer.
func (r Result) ExpiresWithin(now time.Time, buffer time.Duration) bool {
	exp, ok := r.Expiry()
	if !ok {
		return true
	}
	return !now.Add(buffer).Before(exp)
}

func decodeSegment(raw string) (map[string]any, bool) {
	parts := strings.Split(raw, ".")
	seg := parts[0]
	if len(parts) > 1 {
		seg = parts[1]
	}

	data, ok := decodeBase64(seg)
	if !ok {
		return nil, false
	}

	var claims map[string]any
	if err := json.Unmarshal(data, &claims); err != nil || claims == nil {
		return nil, false
	}
	return claims, true
}

// decodeBase64 accepts both alphabets with or without padding.
func decodeBase64(seg string) ([]byte, bool) {
	seg = strings.TrimRight(strings.TrimSpace(seg), "=")
	if seg == "" {
		return nil, false
	}
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.RawStdEncoding} {
		if data, err := enc.DecodeString(seg); err == nil {
			return data, true
		}
	}
	return nil, false
}
