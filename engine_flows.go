package gateAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/gateAuth/internal/flows"
	"github.com/MrEthical07/gateAuth/internal/rate"
	"github.com/sirupsen/logrus"
)

// buildFlows wires the engine's collaborators into the flow runners once at
// build time. Every request method goes through the returned service.
func (e *Engine) buildFlows() flows.Service {
	hooks := flows.Hooks{
		Now:                 e.now,
		ClientIPFromContext: ClientIPFromContext,
		MetricInc:           func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:           e.emitAudit,
	}
	issue := e.codec.Issue

	deps := flows.Deps{
		Authenticate: flows.AuthenticateDeps{
			Hooks:              hooks,
			RetentionDays:      e.config.Refresh.RetentionDays,
			MaxPersistRetries:  e.config.Refresh.MaxPersistRetries,
			CheckLoginRate:     e.limiter.CheckLogin,
			IncrementLoginRate: e.limiter.IncrementLogin,
			ResetLoginRate:     e.limiter.ResetLogin,
			FindPrincipal:      e.findPrincipal,
			VerifyPassword:     e.identity.VerifyPassword,
			IssueAccess:        issue,
			Store:              e.store,
			Chain:              e.chain,
			Metrics: flows.AuthenticateMetrics{
				LoginSuccess:     int(MetricLoginSuccess),
				LoginFailure:     int(MetricLoginFailure),
				LoginRateLimited: int(MetricLoginRateLimited),
			},
			Events: flows.AuthenticateEvents{
				LoginSuccess:     AuditLoginSuccess,
				LoginFailure:     AuditLoginFailure,
				LoginRateLimited: AuditLoginRateLimited,
			},
			InvalidCredentials: ErrInvalidCredentials,
			RateLimited:        rate.ErrRateLimited,
		},
		Refresh: flows.RefreshDeps{
			Hooks:             hooks,
			RetentionDays:     e.config.Refresh.RetentionDays,
			MaxPersistRetries: e.config.Refresh.MaxPersistRetries,
			ReuseWindow:       e.config.Refresh.ReuseWindow,
			CheckRefreshRate:  e.limiter.CheckRefresh,
			RateLimited:       rate.ErrRateLimited,
			IssueAccess:       issue,
			TrackReuse:        e.store.TrackReuse,
			Warn:              e.warnKV,
			Store:             e.store,
			Chain:             e.chain,
			Metrics: flows.RefreshMetrics{
				RefreshSuccess:       int(MetricRefreshSuccess),
				RefreshFailure:       int(MetricRefreshFailure),
				RefreshRateLimited:   int(MetricRefreshRateLimited),
				RefreshReuseDetected: int(MetricRefreshReuseDetected),
			},
			Events: flows.RefreshEvents{
				RefreshSuccess:       AuditRefreshSuccess,
				RefreshInvalid:       AuditRefreshInvalid,
				RefreshRateLimited:   AuditRefreshRateLimited,
				RefreshReuseDetected: AuditRefreshReuseDetected,
			},
			Inactive: ErrTokenInactive,
		},
		Revoke: flows.RevokeDeps{
			Hooks:             hooks,
			MaxPersistRetries: e.config.Refresh.MaxPersistRetries,
			Store:             e.store,
			Chain:             e.chain,
			RevokeMetric:      int(MetricTokenRevoked),
			RevokeEvent:       AuditTokenRevoked,
		},
		Validate: flows.ValidateDeps{
			Verify:        e.codec.Verify,
			FindPrincipal: e.findPrincipal,
			Now:           e.now,
		},
		Authorize: flows.AuthorizeDeps{
			Hooks:           hooks,
			CountPrincipals: e.identity.CountPrincipals,
			RolesOf:         e.identity.RolesOf,
			ResolveRoles:    e.resolveRoles,
			AllowMetric:     int(MetricAuthorizeAllowed),
			DenyMetric:      int(MetricAuthorizeDenied),
		},
	}

	if e.metrics.LatencyEnabled() {
		deps.Validate.Observe = func(d time.Duration) {
			e.metrics.Observe(MetricValidateLatency, d)
		}
	}

	if e.directory != nil {
		deps.CreateUser = flows.CreateUserDeps{
			Hooks:             hooks,
			AdminRole:         e.config.Accounts.AdminRole,
			MinPasswordLength: e.config.Password.MinLength,
			CountPrincipals:   e.identity.CountPrincipals,
			HashPassword:      e.hasher.Hash,
			Insert:            e.insertPrincipal,
			SuccessMetric:     int(MetricUserCreated),
			SuccessEvent:      AuditUserCreated,
			FailureEvent:      AuditUserCreateFailure,
		}
	}

	return flows.New(deps)
}

// warnKV logs msg with alternating key/value args as logrus fields.
func (e *Engine) warnKV(msg string, args ...any) {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	e.log.WithFields(fields).Warn(msg)
}

func (e *Engine) insertPrincipal(ctx context.Context, np flows.NewPrincipal) (flows.PrincipalRecord, error) {
	p, err := e.directory.CreatePrincipal(ctx, NewPrincipal{
		Username:       np.Username,
		Email:          np.Email,
		PhoneNumber:    np.PhoneNumber,
		PasswordHash:   np.PasswordHash,
		EmailConfirmed: np.EmailConfirmed,
		Roles:          np.Roles,
	})
	if err != nil {
		return flows.PrincipalRecord{}, err
	}
	return recordFromPrincipal(p), nil
}
