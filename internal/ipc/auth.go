package ipc

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ConnectPolicy optionally gates the Accepting side of the handshake
// (spec.md §4.7.2 domain-stack addition). A nil policy accepts every
// connect, preserving the unauthenticated baseline.
type ConnectPolicy interface {
	// Verify checks a token presented with a Connecting buffer. An empty
	// token is passed through unchanged when no token was attached.
	Verify(token string) error
	// Sign produces the token this process attaches to its own
	// Connecting buffers, or "" to attach none.
	Sign() (string, error)
}

// jwtPolicy is a ConnectPolicy backed by a single shared HMAC secret,
// the simplest case the framework ships; callers needing per-peer keys
// or asymmetric signing implement ConnectPolicy directly.
type jwtPolicy struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
}

func NewHMACPolicy(secret []byte, issuer string, lifetime time.Duration) ConnectPolicy {
	return &jwtPolicy{secret: secret, issuer: issuer, lifetime: lifetime}
}

func (p *jwtPolicy) Sign() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    p.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.lifetime)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(p.secret)
}

func (p *jwtPolicy) Verify(token string) error {
	if token == "" {
		return errEmptyToken
	}
	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	})
	return err
}

var errEmptyToken = jwtEmptyTokenError{}

type jwtEmptyTokenError struct{}

func (jwtEmptyTokenError) Error() string { return "ipc: connect token required but absent" }
