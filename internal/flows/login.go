package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/gateAuth/refresh"
)

// AuthenticateFailureKind classifies authenticate failures for root-level mapping.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureNotWired
	AuthenticateFailureRateLimited
	AuthenticateFailureInvalidCredentials
	AuthenticateFailureInternal
)

// TokenPair is the success payload shared by authenticate and refresh.
type TokenPair struct {
	PrincipalID      string
	Username         string
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthenticateResult carries either a token pair or failure metadata.
type AuthenticateResult struct {
	Failure AuthenticateFailureKind
	Err     error
	IP      string
	Pair    TokenPair
}

// AuthenticateMetrics carries metric IDs used by the authenticate flow.
type AuthenticateMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
}

// AuthenticateEvents carries audit event names used by the authenticate flow.
type AuthenticateEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

// AuthenticateDeps captures authenticate flow dependencies.
type AuthenticateDeps struct {
	Hooks

	RetentionDays     int
	MaxPersistRetries int

	CheckLoginRate     func(ctx context.Context, username, ip string) error
	IncrementLoginRate func(ctx context.Context, username, ip string) error
	ResetLoginRate     func(ctx context.Context, username string) error

	// FindPrincipal reports ok == false for an unknown username.
	FindPrincipal  func(ctx context.Context, username string) (PrincipalRecord, bool, error)
	VerifyPassword func(ctx context.Context, principalID, password string) (bool, error)
	IssueAccess    func(username string) (string, error)

	Store refresh.Store
	Chain *refresh.Chain

	Metrics AuthenticateMetrics
	Events  AuthenticateEvents
	// InvalidCredentials is attached to failure audit events.
	InvalidCredentials error
	// RateLimited is the limiter's budget-exhausted sentinel; other limiter
	// errors count as backend failures.
	RateLimited error
}

// RunAuthenticate checks credentials and opens a new refresh chain for the
// principal. Unknown usernames and wrong passwords are indistinguishable in
// the result.
func RunAuthenticate(ctx context.Context, username, password string, deps AuthenticateDeps) AuthenticateResult {
	deps.Hooks = deps.Hooks.withDefaults()
	if deps.FindPrincipal == nil || deps.VerifyPassword == nil || deps.IssueAccess == nil ||
		deps.Store == nil || deps.Chain == nil {
		return AuthenticateResult{Failure: AuthenticateFailureNotWired, Err: ErrNotWired}
	}

	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, username, ip); err != nil {
			if deps.RateLimited == nil || !errors.Is(err, deps.RateLimited) {
				return AuthenticateResult{Failure: AuthenticateFailureInternal, Err: err, IP: ip}
			}
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", username, err, nil)
			return AuthenticateResult{Failure: AuthenticateFailureRateLimited, Err: err, IP: ip}
		}
	}

	reject := func() AuthenticateResult {
		if deps.IncrementLoginRate != nil {
			_ = deps.IncrementLoginRate(ctx, username, ip)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", username, deps.InvalidCredentials, nil)
		return AuthenticateResult{Failure: AuthenticateFailureInvalidCredentials, IP: ip}
	}

	principal, ok, err := deps.FindPrincipal(ctx, username)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureInternal, Err: err, IP: ip}
	}
	if !ok {
		return reject()
	}

	valid, err := deps.VerifyPassword(ctx, principal.ID, password)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureInternal, Err: err, IP: ip}
	}
	if !valid {
		return reject()
	}

	access, err := deps.IssueAccess(principal.Username)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureInternal, Err: err, IP: ip}
	}

	var issued *refresh.Token
	_, err = persistWithRetry(ctx, deps.Store, deps.MaxPersistRetries,
		func(ctx context.Context) (*refresh.Collection, error) {
			return deps.Store.Load(ctx, principal.ID, principal.Username)
		},
		func(col *refresh.Collection) error {
			tok, err := deps.Chain.Generate(ctx, col, ip)
			if err != nil {
				return err
			}
			col.Append(tok)
			refresh.PruneExpired(col, deps.RetentionDays, deps.Chain.Now())
			issued = tok
			return nil
		},
	)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureInternal, Err: err, IP: ip}
	}

	if deps.ResetLoginRate != nil {
		_ = deps.ResetLoginRate(ctx, principal.Username)
	}
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, principal.ID, principal.Username, nil, nil)

	return AuthenticateResult{
		IP: ip,
		Pair: TokenPair{
			PrincipalID:      principal.ID,
			Username:         principal.Username,
			AccessToken:      access,
			RefreshToken:     issued.Token,
			RefreshExpiresAt: issued.ExpiresAt,
		},
	}
}
