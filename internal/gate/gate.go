// Package gate validates the pre-shared secret carried by game-server pushes.
package gate

import (
	"crypto/subtle"
	"errors"
)

// ErrUnauthorized is returned when the claimed secret does not match.
var ErrUnauthorized = errors.New("invalid or missing secret")

// Gate compares claimed secrets against a single configured secret.
// It is stateless and safe for concurrent use.
type Gate struct {
	secret string
}

// New creates a gate for the given configured secret.
func New(secret string) *Gate {
	return &Gate{secret: secret}
}

// Verify checks the claimed secret byte-for-byte against the configured one.
// An empty configured secret is never satisfiable, including by an empty claim.
func (g *Gate) Verify(claimed string) error {
	if g.secret == "" || claimed == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(g.secret), []byte(claimed)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
