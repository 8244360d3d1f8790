package gateAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/gateAuth/internal/rate"
	"github.com/MrEthical07/gateAuth/refresh"
)

// AuditErrorCode is the coarse failure label stored on audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrTokenNotFound      AuditErrorCode = "token_not_found"
	auditErrTokenInactive      AuditErrorCode = "token_inactive"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// emitAudit queues one event. meta is only evaluated when auditing is on.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, principalID, username string, err error, meta func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:   e.now().UTC(),
		EventType:   eventType,
		PrincipalID: principalID,
		Username:    username,
		IP:          ClientIPFromContext(ctx),
		Success:     success,
		Error:       string(auditErrorCode(err)),
	}
	if meta != nil {
		event.Metadata = meta()
	}
	e.audit.Emit(ctx, event)
}

// auditCodes is checked in order; the first match wins.
var auditCodes = []struct {
	code AuditErrorCode
	errs []error
}{
	{auditErrInvalidCredentials, []error{ErrInvalidCredentials}},
	{auditErrRateLimited, []error{ErrLoginRateLimited, ErrRefreshRateLimited, rate.ErrRateLimited}},
	{auditErrTokenNotFound, []error{ErrTokenNotFound, refresh.ErrNotFound}},
	{auditErrTokenInactive, []error{ErrTokenInactive, refresh.ErrInactive}},
	{auditErrUnauthorized, []error{ErrUnauthorized}},
	{auditErrDuplicate, []error{ErrUserExists, ErrRoleExists}},
	{auditErrNotFound, []error{ErrUserNotFound, ErrRoleNotFound}},
	{auditErrPasswordPolicy, []error{ErrPasswordPolicy}},
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	for _, c := range auditCodes {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.code
			}
		}
	}
	return auditErrInternal
}
