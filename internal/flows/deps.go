package flows

import (
	"context"
	"errors"
	"time"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Authenticate AuthenticateDeps
	Refresh      RefreshDeps
	Revoke       RevokeDeps
	Validate     ValidateDeps
	Authorize    AuthorizeDeps
	CreateUser   CreateUserDeps
}

// PrincipalRecord is the flow-local view of an identity.
type PrincipalRecord struct {
	ID                   string
	Username             string
	Email                string
	PhoneNumber          string
	EmailConfirmed       bool
	PhoneNumberConfirmed bool
}

// EmitAuditFunc records one audit event. metadata is evaluated lazily.
type EmitAuditFunc func(ctx context.Context, event string, success bool, principalID, username string, err error, metadata func() map[string]string)

// Hooks bundles the observability callbacks every flow shares. Nil fields
// are replaced with no-ops.
type Hooks struct {
	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string
	MetricInc           func(int)
	EmitAudit           EmitAuditFunc
}

func (h Hooks) withDefaults() Hooks {
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.ClientIPFromContext == nil {
		h.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	return h
}

// ErrNotWired is returned when a flow is invoked without its required deps.
var ErrNotWired = errors.New("flow dependencies not wired")
