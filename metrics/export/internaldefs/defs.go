package internaldefs

import (
	gateAuth "github.com/MrEthical07/gateAuth"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   gateAuth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   gateAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "gateauth_audit_dropped_total"

// CounterDefs lists every exported counter in engine order.
var CounterDefs = []CounterDef{
	{ID: gateAuth.MetricLoginSuccess, Name: "gateauth_login_success_total", Help: "Successful authentications."},
	{ID: gateAuth.MetricLoginFailure, Name: "gateauth_login_failure_total", Help: "Rejected authentications."},
	{ID: gateAuth.MetricLoginRateLimited, Name: "gateauth_login_rate_limited_total", Help: "Authentications refused by the login throttle."},
	{ID: gateAuth.MetricRefreshSuccess, Name: "gateauth_refresh_success_total", Help: "Successful refresh token rotations."},
	{ID: gateAuth.MetricRefreshFailure, Name: "gateauth_refresh_failure_total", Help: "Refresh attempts with unknown or inactive tokens."},
	{ID: gateAuth.MetricRefreshReuseDetected, Name: "gateauth_refresh_reuse_detected_total", Help: "Presentations of already revoked refresh tokens."},
	{ID: gateAuth.MetricRefreshRateLimited, Name: "gateauth_refresh_rate_limited_total", Help: "Refresh attempts refused by the refresh throttle."},
	{ID: gateAuth.MetricTokenRevoked, Name: "gateauth_token_revoked_total", Help: "Explicit refresh token revocations."},
	{ID: gateAuth.MetricAuthorizeAllowed, Name: "gateauth_authorize_allowed_total", Help: "Authorization decisions that allowed the request."},
	{ID: gateAuth.MetricAuthorizeDenied, Name: "gateauth_authorize_denied_total", Help: "Authorization decisions that denied the request."},
	{ID: gateAuth.MetricUserCreated, Name: "gateauth_user_created_total", Help: "Created principals."},
	{ID: gateAuth.MetricUserDeleted, Name: "gateauth_user_deleted_total", Help: "Deleted principals."},
	{ID: gateAuth.MetricRoleCreated, Name: "gateauth_role_created_total", Help: "Created roles."},
	{ID: gateAuth.MetricInternalFailure, Name: "gateauth_internal_failure_total", Help: "Operations aborted by a store or signing failure."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: gateAuth.MetricValidateLatency, Name: "gateauth_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramUpperBounds are the finite bucket limits in seconds. The engine
// keeps one more overflow bucket past the last bound.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets pads or truncates raw to the engine's bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals; the last
// element is the sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
