package session

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// AccessExpiry reads the exp claim of an access token without verifying it.
// The signature is the backend's business; the client only needs the timestamp for display.
func AccessExpiry(access string) (time.Time, bool) {
	if access == "" {
		return time.Time{}, false
	}
	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(access, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenPreview shortens an access token for display.
func TokenPreview(access string) string {
	if len(access) > 50 {
		return access[:50]
	}
	return access
}
