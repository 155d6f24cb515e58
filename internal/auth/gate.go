package auth

import (
	"context"
	"errors"

	"github.com/SkeletonSFD/DnD-Project/internal/identity"
)

// ErrMissingToken means the handshake carried no credential at all. The
// verifier is never consulted in that case.
var ErrMissingToken = errors.New("missing token")

// Gate is the admission check run once per incoming real-time connection.
// A rejected connection must never reach the presence registry.
type Gate struct {
	verifier *Verifier
}

func NewGate(verifier *Verifier) *Gate {
	return &Gate{verifier: verifier}
}

// Admit validates the handshake credential and returns the identity the
// connection will carry for its lifetime.
func (g *Gate) Admit(ctx context.Context, token string) (identity.Snapshot, error) {
	if token == "" {
		return identity.Snapshot{}, ErrMissingToken
	}
	return g.verifier.Verify(ctx, token)
}
