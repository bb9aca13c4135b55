package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/bondledger/internal/bonding"
	"github.com/alanyoungcy/bondledger/internal/crypto"
	"github.com/alanyoungcy/bondledger/internal/domain"
)

// Authorization is a staker's signature over one owner operation.
type Authorization struct {
	Nonce     uint64
	Signature string
}

type authKey struct{}

// WithAuthorization attaches a to ctx for the next owner operation.
func WithAuthorization(ctx context.Context, a Authorization) context.Context {
	return context.WithValue(ctx, authKey{}, a)
}

func authorizationFrom(ctx context.Context) (Authorization, bool) {
	a, ok := ctx.Value(authKey{}).(Authorization)
	return a, ok && a.Signature != ""
}

// authorize checks the request signature for an owner-scoped operation and
// returns the nonce to consume. It is a no-op without a verifier or owner.
func (s *LedgerService) authorize(ctx context.Context, op string, scope bonding.Scope) (uint64, bool, error) {
	if s.owners == nil || scope.Owner == "" {
		return 0, false, nil
	}
	a, ok := authorizationFrom(ctx)
	if !ok {
		return 0, false, fmt.Errorf("service: %s: missing owner signature: %w", op, domain.ErrUnauthorized)
	}
	action := crypto.Action{Op: op, Vault: scope.Vault, Nonce: a.Nonce}
	if len(scope.Positions) > 0 {
		action.BondID = scope.Positions[0]
	}
	if err := s.owners.Verify(action, a.Signature, scope.Owner); err != nil {
		return 0, false, fmt.Errorf("service: %s: %w", op, err)
	}
	return a.Nonce, true, nil
}
