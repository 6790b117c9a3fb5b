package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/hearthview/hearthview-core/internal/infrastructure/config"
)

// Authenticator verifies operator credentials and issues access tokens.
type Authenticator struct {
	cfg config.SecurityConfig
}

// NewAuthenticator creates an Authenticator from the security configuration.
func NewAuthenticator(cfg config.SecurityConfig) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// Login verifies the operator credentials and returns a signed access token.
// Returns ErrInvalidCredentials on any mismatch; the caller cannot tell a
// wrong username from a wrong password.
func (a *Authenticator) Login(username, password string) (string, error) {
	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.cfg.Operator.Username)) == 1

	passwordOK, err := VerifyPassword(password, a.cfg.Operator.PasswordHash)
	if err != nil {
		// Malformed or missing hash. Indistinguishable from a bad password.
		passwordOK = false
	}

	if !usernameOK || !passwordOK {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateAccessToken(a.cfg.Operator.Username, a.cfg.JWT.Secret, a.cfg.JWT.AccessTokenTTL)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return token, nil
}

// TokenTTL returns the configured access-token lifetime.
func (a *Authenticator) TokenTTL() time.Duration {
	ttl := a.cfg.JWT.AccessTokenTTL
	if ttl <= 0 {
		ttl = 60 //nolint:mnd // default 60-minute access token TTL
	}
	return time.Duration(ttl) * time.Minute
}

// Validate parses and validates an access token, returning its claims.
func (a *Authenticator) Validate(token string) (*Claims, error) {
	return ParseToken(token, a.cfg.JWT.Secret)
}
