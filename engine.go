package gateAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/gateAuth/internal/audit"
	"github.com/MrEthical07/gateAuth/internal/flows"
	"github.com/MrEthical07/gateAuth/internal/rate"
	"github.com/MrEthical07/gateAuth/jwt"
	"github.com/MrEthical07/gateAuth/password"
	"github.com/MrEthical07/gateAuth/permission"
	"github.com/MrEthical07/gateAuth/refresh"
	"github.com/MrEthical07/gateAuth/tokenstore"
	"github.com/sirupsen/logrus"
)

// Engine is the authentication and authorization service. It is safe for
// concurrent use by any number of requests.
type Engine struct {
	config Config
	log    logrus.FieldLogger
	now    func() time.Time

	codec   *jwt.Codec
	store   *tokenstore.Store
	chain   *refresh.Chain
	limiter *rate.Limiter

	identity  IdentityStore
	roles     RoleStore
	directory Directory
	hasher    password.Hasher
	grants    *permission.GrantCache

	audit   *audit.Dispatcher
	metrics *Metrics
	flows   flows.Service
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks the Redis round trip.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}
	return e.store.Ping(ctx)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// internalFailure logs err with request context and returns the opaque
// caller-facing error.
func (e *Engine) internalFailure(op, ip, username string, err error) error {
	e.metricInc(MetricInternalFailure)
	e.log.WithFields(logrus.Fields{
		"op":       op,
		"ip":       ip,
		"username": username,
	}).WithError(err).Error("operation failed")
	return ErrInternalFailure
}

// Authenticate checks username and password and opens a new refresh chain.
// An unknown username and a wrong password both return
// [ErrInvalidCredentials].
//
// The caller's IP is read from ctx (see [WithClientIP]).
func (e *Engine) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Authenticate(ctx, username, password)
	switch res.Failure {
	case flows.AuthenticateFailureNone:
	case flows.AuthenticateFailureInvalidCredentials:
		return nil, ErrInvalidCredentials
	case flows.AuthenticateFailureRateLimited:
		return nil, ErrLoginRateLimited
	case flows.AuthenticateFailureNotWired:
		return nil, ErrEngineNotReady
	default:
		return nil, e.internalFailure("authenticate", res.IP, username, res.Err)
	}

	e.log.WithFields(logrus.Fields{"ip": res.IP, "username": res.Pair.Username}).Debug("authenticated")
	return authResult(res.Pair), nil
}

// RefreshToken rotates an active refresh token. Presenting a token that was
// already revoked revokes every live descendant in its chain and returns
// [ErrTokenInactive]; the caller is not told that reuse was detected.
func (e *Engine) RefreshToken(ctx context.Context, token string) (*AuthResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Refresh(ctx, token)
	switch res.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureNotFound:
		return nil, ErrTokenNotFound
	case flows.RefreshFailureInactive:
		if res.ReuseDetected {
			e.log.WithFields(logrus.Fields{
				"ip":           res.IP,
				"username":     res.Username,
				"principal_id": res.PrincipalID,
			}).Warn("revoked refresh token presented; chain revoked")
		}
		return nil, ErrTokenInactive
	case flows.RefreshFailureRateLimited:
		return nil, ErrRefreshRateLimited
	case flows.RefreshFailureNotWired:
		return nil, ErrEngineNotReady
	default:
		return nil, e.internalFailure("refresh", res.IP, res.Username, res.Err)
	}

	return authResult(res.Pair), nil
}

// RevokeToken revokes one active refresh token without touching its
// descendants.
func (e *Engine) RevokeToken(ctx context.Context, token string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}

	res := e.flows.Revoke(ctx, token)
	switch res.Failure {
	case flows.RevokeFailureNone:
		return nil
	case flows.RevokeFailureNotFound:
		return ErrTokenNotFound
	case flows.RevokeFailureInactive:
		return ErrTokenInactive
	case flows.RevokeFailureNotWired:
		return ErrEngineNotReady
	default:
		return e.internalFailure("revoke", res.IP, res.Username, res.Err)
	}
}

// ValidateToken verifies an access token and resolves its principal. It
// returns nil for any failure, including identity-store errors.
func (e *Engine) ValidateToken(ctx context.Context, accessToken string) *Principal {
	if e == nil || !e.flows.Initialized() {
		return nil
	}

	res := e.flows.Validate(ctx, accessToken)
	if res.Err != nil {
		e.log.WithField("ip", ClientIPFromContext(ctx)).WithError(res.Err).Warn("principal lookup failed during validation")
		return nil
	}
	if !res.OK {
		return nil
	}

	return principalFromRecord(res.Principal)
}

// Authorize allows or denies one operation. Store failures deny with
// [ErrInternalFailure]; every other denial is [ErrUnauthorized].
func (e *Engine) Authorize(ctx context.Context, req AuthorizeRequest) error {
	decision, err := e.Decide(ctx, req)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return ErrUnauthorized
	}
	return nil
}

// Decide is Authorize with the decision reason exposed.
func (e *Engine) Decide(ctx context.Context, req AuthorizeRequest) (permission.Decision, error) {
	if e == nil || !e.flows.Initialized() {
		return permission.Decision{}, ErrEngineNotReady
	}

	in := flows.AuthorizeInput{
		Path:               req.Path,
		Anonymous:          req.Anonymous,
		FirstUserOperation: req.FirstUserOperation,
	}
	username := ""
	if req.Principal != nil {
		in.PrincipalID = req.Principal.ID
		username = req.Principal.Username
	}

	res := e.flows.Authorize(ctx, in)
	if res.Err != nil {
		return res.Decision, e.internalFailure("authorize", ClientIPFromContext(ctx), username, res.Err)
	}
	return res.Decision, nil
}

// resolveRoles returns role records for names, serving repeat lookups from
// the grant cache.
func (e *Engine) resolveRoles(ctx context.Context, names []string) ([]permission.Role, error) {
	hits, misses := e.grants.Lookup(names)
	if len(misses) == 0 {
		return hits, nil
	}

	loaded, err := e.roles.RolesGranting(ctx, misses)
	if err != nil {
		return nil, err
	}
	e.grants.Store(loaded)

	return append(hits, loaded...), nil
}

func (e *Engine) findPrincipal(ctx context.Context, username string) (flows.PrincipalRecord, bool, error) {
	p, err := e.identity.FindPrincipalByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return flows.PrincipalRecord{}, false, nil
		}
		return flows.PrincipalRecord{}, false, err
	}
	if p == nil {
		return flows.PrincipalRecord{}, false, nil
	}
	return recordFromPrincipal(p), true, nil
}

func authResult(p flows.TokenPair) *AuthResult {
	return &AuthResult{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		Username:         p.Username,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

func recordFromPrincipal(p *Principal) flows.PrincipalRecord {
	return flows.PrincipalRecord{
		ID:                   p.ID,
		Username:             p.Username,
		Email:                p.Email,
		PhoneNumber:          p.PhoneNumber,
		EmailConfirmed:       p.EmailConfirmed,
		PhoneNumberConfirmed: p.PhoneNumberConfirmed,
	}
}

func principalFromRecord(r flows.PrincipalRecord) *Principal {
	return &Principal{
		ID:                   r.ID,
		Username:             r.Username,
		Email:                r.Email,
		PhoneNumber:          r.PhoneNumber,
		EmailConfirmed:       r.EmailConfirmed,
		PhoneNumberConfirmed: r.PhoneNumberConfirmed,
	}
}
