package gateAuth

import (
	"io"

	"github.com/MrEthical07/gateAuth/internal/audit"
	"github.com/sirupsen/logrus"
)

// AuditEvent is one security-relevant record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards every event.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events in a channel for the caller to drain.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per event.
type JSONWriterSink = audit.JSONWriterSink

// LogrusSink logs events through a logrus logger.
type LogrusSink = audit.LogrusSink

// MultiSink fans events out to several sinks.
type MultiSink = audit.MultiSink

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

func NewLogrusSink(log logrus.FieldLogger) *LogrusSink { return audit.NewLogrusSink(log) }

// Audit event types.
const (
	AuditLoginSuccess         = "login_success"
	AuditLoginFailure         = "login_failure"
	AuditLoginRateLimited     = "login_rate_limited"
	AuditRefreshSuccess       = "refresh_success"
	AuditRefreshInvalid       = "refresh_invalid"
	AuditRefreshRateLimited   = "refresh_rate_limited"
	AuditRefreshReuseDetected = "refresh_reuse_detected"
	AuditTokenRevoked         = "token_revoked"
	AuditUserCreated          = "user_created"
	AuditUserCreateFailure    = "user_create_failure"
	AuditUserUpdated          = "user_updated"
	AuditUserDeleted          = "user_deleted"
	AuditPasswordChanged      = "password_changed"
	AuditRoleCreated          = "role_created"
	AuditRolesAssigned        = "roles_assigned"
	AuditAdminGrantsSynced    = "admin_grants_synced"
)
