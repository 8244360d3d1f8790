package flows

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/gateAuth/refresh"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNotWired
	RefreshFailureRateLimited
	RefreshFailureNotFound
	RefreshFailureInactive
	RefreshFailureInternal
)

// RefreshResult carries either the rotated token pair or failure metadata.
// ReuseDetected is set when the presented token was already revoked; the
// failure is still reported as RefreshFailureInactive.
type RefreshResult struct {
	Failure       RefreshFailureKind
	Err           error
	IP            string
	PrincipalID   string
	Username      string
	ReuseDetected bool
	Pair          TokenPair
}

// RefreshMetrics carries metric IDs used by the refresh flow.
type RefreshMetrics struct {
	RefreshSuccess       int
	RefreshFailure       int
	RefreshRateLimited   int
	RefreshReuseDetected int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	RefreshSuccess       string
	RefreshInvalid       string
	RefreshRateLimited   string
	RefreshReuseDetected string
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Hooks

	RetentionDays     int
	MaxPersistRetries int
	ReuseWindow       time.Duration

	CheckRefreshRate func(ctx context.Context, ip string) error
	RateLimited      error

	IssueAccess func(username string) (string, error)
	// TrackReuse counts reuse detections per principal. Optional.
	TrackReuse func(ctx context.Context, principalID string, window time.Duration) (int64, error)
	Warn       func(msg string, args ...any)

	Store refresh.Store
	Chain *refresh.Chain

	Metrics RefreshMetrics
	Events  RefreshEvents
	// Inactive is attached to failure audit events.
	Inactive error
}

type refreshOutcome int

const (
	outcomeRotated refreshOutcome = iota
	outcomeReuse
)

// RunRefresh exchanges an active refresh token for a new one. Presenting a
// revoked token revokes every live descendant in its chain before failing.
func RunRefresh(ctx context.Context, token string, deps RefreshDeps) RefreshResult {
	deps.Hooks = deps.Hooks.withDefaults()
	if deps.Store == nil || deps.Chain == nil || deps.IssueAccess == nil {
		return RefreshResult{Failure: RefreshFailureNotWired, Err: ErrNotWired}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}

	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckRefreshRate != nil {
		if err := deps.CheckRefreshRate(ctx, ip); err != nil {
			if deps.RateLimited == nil || !errors.Is(err, deps.RateLimited) {
				return RefreshResult{Failure: RefreshFailureInternal, Err: err, IP: ip}
			}
			deps.MetricInc(deps.Metrics.RefreshRateLimited)
			deps.EmitAudit(ctx, deps.Events.RefreshRateLimited, false, "", "", err, nil)
			return RefreshResult{Failure: RefreshFailureRateLimited, Err: err, IP: ip}
		}
	}

	var (
		outcome  refreshOutcome
		next     *refresh.Token
		cascaded int
	)
	col, err := persistWithRetry(ctx, deps.Store, deps.MaxPersistRetries,
		func(ctx context.Context) (*refresh.Collection, error) {
			return deps.Store.FindByToken(ctx, token)
		},
		func(col *refresh.Collection) error {
			outcome, next, cascaded = outcomeRotated, nil, 0

			current := col.Find(token)
			if current == nil {
				return refresh.ErrNotFound
			}
			if current.Revoked() {
				outcome = outcomeReuse
				cascaded = deps.Chain.RevokeDescendants(col, current, ip, refresh.ReasonReuse)
				return nil
			}
			if !current.Active(deps.Chain.Now()) {
				return refresh.ErrInactive
			}

			rotated, err := deps.Chain.Rotate(ctx, col, current, ip)
			if err != nil {
				return err
			}
			refresh.PruneExpired(col, deps.RetentionDays, deps.Chain.Now())
			next = rotated
			return nil
		},
	)
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrNotFound):
			deps.MetricInc(deps.Metrics.RefreshFailure)
			deps.EmitAudit(ctx, deps.Events.RefreshInvalid, false, "", "", err, nil)
			return RefreshResult{Failure: RefreshFailureNotFound, Err: err, IP: ip}
		case errors.Is(err, refresh.ErrInactive):
			deps.MetricInc(deps.Metrics.RefreshFailure)
			deps.EmitAudit(ctx, deps.Events.RefreshInvalid, false, "", "", deps.Inactive, nil)
			return RefreshResult{Failure: RefreshFailureInactive, Err: err, IP: ip}
		default:
			return RefreshResult{Failure: RefreshFailureInternal, Err: err, IP: ip}
		}
	}

	if outcome == outcomeReuse {
		deps.MetricInc(deps.Metrics.RefreshReuseDetected)
		deps.MetricInc(deps.Metrics.RefreshFailure)
		if deps.TrackReuse != nil {
			if _, trackErr := deps.TrackReuse(ctx, col.PrincipalID, deps.ReuseWindow); trackErr != nil {
				deps.Warn("reuse tracking failed", "principal_id", col.PrincipalID, "error", trackErr)
			}
		}
		deps.EmitAudit(ctx, deps.Events.RefreshReuseDetected, false, col.PrincipalID, col.Username, deps.Inactive,
			func() map[string]string {
				return map[string]string{"revoked_descendants": strconv.Itoa(cascaded)}
			})
		return RefreshResult{
			Failure:       RefreshFailureInactive,
			Err:           refresh.ErrInactive,
			IP:            ip,
			PrincipalID:   col.PrincipalID,
			Username:      col.Username,
			ReuseDetected: true,
		}
	}

	access, err := deps.IssueAccess(col.Username)
	if err != nil {
		return RefreshResult{
			Failure:     RefreshFailureInternal,
			Err:         err,
			IP:          ip,
			PrincipalID: col.PrincipalID,
			Username:    col.Username,
		}
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, col.PrincipalID, col.Username, nil, nil)

	return RefreshResult{
		IP:          ip,
		PrincipalID: col.PrincipalID,
		Username:    col.Username,
		Pair: TokenPair{
			PrincipalID:      col.PrincipalID,
			Username:         col.Username,
			AccessToken:      access,
			RefreshToken:     next.Token,
			RefreshExpiresAt: next.ExpiresAt,
		},
	}
}
