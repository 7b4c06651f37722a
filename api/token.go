package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity provider claims the api relies on
type Claims struct {
	jwt.RegisteredClaims
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
}

var timeNow = time.Now

// TokenVerifier checks HS256 identity tokens
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier returns a verifier for tokens signed with secret. Tokens must carry
// issuer as their iss claim unless issuer is empty.
func NewTokenVerifier(secret, issuer string) (*TokenVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is not set")
	}
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify parses token and validates its signature, expiry and issuer
func (v *TokenVerifier) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(timeNow),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("verify token: no subject")
	}
	return claims, nil
}

// Sign issues an HS256 token for c with the verifier's secret and issuer. It backs the
// local dev token script; production tokens come from the identity provider.
func (v *TokenVerifier) Sign(c Claims) (string, error) {
	if c.Issuer == "" {
		c.Issuer = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}
