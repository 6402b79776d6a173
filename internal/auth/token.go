// Package auth performs structural validation of the admin API token.
// The token is decoded without signature verification; the ingestor holds
// no signing key and only needs to reject garbage tokens up front and warn
// about imminent expiry before a long run.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryWarning is the advisory window before token expiry.
const ExpiryWarning = 10 * time.Minute

// Claims carries the token fields relevant to a backfill run.
type Claims struct {
	Subject string
	Expiry  time.Time
}

// Validate checks that the token is structurally a JWT and extracts its
// claims. A missing or undecodable token is a fatal configuration error;
// expiry itself is not, and is reported separately via Expired/ExpiresSoon.
func Validate(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, errors.New("admin token is not set")
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("parse admin token: %w", err)
	}

	var claims Claims
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		claims.Expiry = exp.Time
	}
	return claims, nil
}

// Expired reports whether the token expiry has passed. Tokens without an
// exp claim never report as expired.
func (c Claims) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && now.After(c.Expiry)
}

// ExpiresSoon reports whether the token expires within the advisory window.
func (c Claims) ExpiresSoon(now time.Time) bool {
	if c.Expiry.IsZero() || c.Expired(now) {
		return false
	}
	return c.Expiry.Sub(now) < ExpiryWarning
}
