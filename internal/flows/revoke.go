package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/gateAuth/refresh"
)

// RevokeFailureKind classifies revoke flow failures for root-level mapping.
type RevokeFailureKind int

const (
	RevokeFailureNone RevokeFailureKind = iota
	RevokeFailureNotWired
	RevokeFailureNotFound
	RevokeFailureInactive
	RevokeFailureInternal
)

// RevokeResult reports the outcome of a single-token revocation.
type RevokeResult struct {
	Failure     RevokeFailureKind
	Err         error
	IP          string
	PrincipalID string
	Username    string
}

// RevokeDeps captures revoke flow dependencies.
type RevokeDeps struct {
	Hooks

	MaxPersistRetries int
	Store             refresh.Store
	Chain             *refresh.Chain

	RevokeMetric int
	RevokeEvent  string
}

// RunRevoke revokes exactly one active refresh token. Its descendants, if
// any, are left alone.
func RunRevoke(ctx context.Context, token string, deps RevokeDeps) RevokeResult {
	deps.Hooks = deps.Hooks.withDefaults()
	if deps.Store == nil || deps.Chain == nil {
		return RevokeResult{Failure: RevokeFailureNotWired, Err: ErrNotWired}
	}

	ip := deps.ClientIPFromContext(ctx)

	col, err := persistWithRetry(ctx, deps.Store, deps.MaxPersistRetries,
		func(ctx context.Context) (*refresh.Collection, error) {
			return deps.Store.FindByToken(ctx, token)
		},
		func(col *refresh.Collection) error {
			current := col.Find(token)
			if current == nil {
				return refresh.ErrNotFound
			}
			if !current.Active(deps.Chain.Now()) {
				return refresh.ErrInactive
			}
			deps.Chain.Revoke(current, ip, refresh.ReasonRevoked, "")
			return nil
		},
	)
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrNotFound):
			return RevokeResult{Failure: RevokeFailureNotFound, Err: err, IP: ip}
		case errors.Is(err, refresh.ErrInactive):
			return RevokeResult{Failure: RevokeFailureInactive, Err: err, IP: ip}
		default:
			return RevokeResult{Failure: RevokeFailureInternal, Err: err, IP: ip}
		}
	}

	deps.MetricInc(deps.RevokeMetric)
	deps.EmitAudit(ctx, deps.RevokeEvent, true, col.PrincipalID, col.Username, nil, nil)

	return RevokeResult{IP: ip, PrincipalID: col.PrincipalID, Username: col.Username}
}
