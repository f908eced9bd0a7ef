package authflow

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry extracts the expiry from a JWT access token without
// verifying its signature; validation is the provider's side of the
// contract. Returns the zero time when the token is opaque or carries no
// exp claim.
func tokenExpiry(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// tokenSubject extracts the sub claim from a JWT access token, or ""
// for opaque tokens. Used only to cross-check the userinfo response.
func tokenSubject(accessToken string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return ""
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
