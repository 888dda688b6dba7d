// Package auth verifies bearer tokens and turns them into caller identities.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/assassingame/internal/dependencies/clock"
	"github.com/mcoot/assassingame/internal/model"
)

// Errors
var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrCannotIssue  = errors.New("token issuing requires a shared secret")
)

// Claims are the token claims the server relies on
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Config holds token verification settings.
// Exactly one of Secret (HS256) or PublicKeyPEM (RS256) is used; the key wins when both are set.
type Config struct {
	Issuer       string
	Audience     string
	Secret       []byte
	PublicKeyPEM []byte
	Leeway       time.Duration
}

// Service verifies and, for HS256 setups, issues tokens
type Service struct {
	clock     clock.Clock
	issuer    string
	audience  string
	secret    []byte
	publicKey *rsa.PublicKey
	leeway    time.Duration
}

// New creates a new auth Service
func New(clock clock.Clock, cfg Config) (*Service, error) {
	s := &Service{
		clock:    clock,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		secret:   cfg.Secret,
		leeway:   cfg.Leeway,
	}
	if len(cfg.PublicKeyPEM) > 0 {
		key, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse auth public key: %w", err)
		}
		s.publicKey = key
	}
	if s.publicKey == nil && len(s.secret) == 0 {
		return nil, errors.New("auth requires a secret or a public key")
	}
	return s, nil
}

func (s *Service) method() string {
	if s.publicKey != nil {
		return jwt.SigningMethodRS256.Alg()
	}
	return jwt.SigningMethodHS256.Alg()
}

func (s *Service) key(*jwt.Token) (any, error) {
	if s.publicKey != nil {
		return s.publicKey, nil
	}
	return s.secret, nil
}

// Verify validates a token's signature, expiry, issuer and audience and
// returns the identity it carries
func (s *Service) Verify(token string) (model.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	var claims Claims
	if _, err := jwt.ParseWithClaims(token, &claims, s.key, opts...); err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return model.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return model.Identity{Subject: claims.Subject, Email: claims.Email}, nil
}

// Issue signs an HS256 token for local development and tests
func (s *Service) Issue(subject, email string, ttl time.Duration) (string, error) {
	if s.publicKey != nil || len(s.secret) == 0 {
		return "", ErrCannotIssue
	}
	now := s.clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
