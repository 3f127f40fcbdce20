package session

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of the bearer token payload the client consumes.
// The signature is never checked here; verifying it is the server's job.
type Claims struct {
	Subject    string
	ExpiresAt  int64 // epoch seconds, meaningful only when HasExpiry
	HasExpiry  bool  // distinguishes a literal exp of 0 from no exp claim
	UserID     string
	HospitalID string
	Roles      []string
}

// DecodeClaims reads the middle segment of a three-segment token as
// base64url JSON. Any malformed input yields ok=false and zero claims;
// decoding never fails loudly.
func DecodeClaims(token string) (Claims, bool) {
	token = strings.TrimSpace(token)
	if token == "" || strings.Count(token, ".") != 2 {
		return Claims{}, false
	}
	payload := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, payload); err != nil {
		return Claims{}, false
	}

	claims := Claims{
		Subject:    stringClaim(payload["sub"]),
		UserID:     stringClaim(payload["uid"]),
		HospitalID: stringClaim(payload["hospitalId"]),
		Roles:      rolesClaim(payload),
	}
	if claims.UserID == "" {
		claims.UserID = stringClaim(payload["id"])
	}
	if exp, ok := epochClaim(payload["exp"]); ok {
		claims.ExpiresAt = exp
		claims.HasExpiry = true
	}
	return claims, true
}

// rolesClaim prefers the roles array, then authorities, then the
// space-delimited scope string.
func rolesClaim(payload jwt.MapClaims) []string {
	if roles := stringsClaim(payload["roles"]); len(roles) > 0 {
		return roles
	}
	if roles := stringsClaim(payload["authorities"]); len(roles) > 0 {
		return roles
	}
	if scope := stringClaim(payload["scope"]); scope != "" {
		return strings.Fields(scope)
	}
	return nil
}

func stringClaim(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func stringsClaim(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func epochClaim(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case int64:
		return t, true
	default:
		return 0, false
	}
}
