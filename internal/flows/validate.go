package flows

import (
	"context"
	"time"
)

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	Verify        func(token string) (string, bool)
	FindPrincipal func(ctx context.Context, username string) (PrincipalRecord, bool, error)
	// Observe receives the validation latency. Optional.
	Observe func(time.Duration)
	Now     func() time.Time
}

// ValidateResult holds the resolved principal. Err is set only for
// collaborator failures; a bad token simply yields OK == false.
type ValidateResult struct {
	OK        bool
	Principal PrincipalRecord
	Err       error
}

// RunValidate verifies an access token and resolves its principal.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	if deps.Verify == nil || deps.FindPrincipal == nil {
		return ValidateResult{Err: ErrNotWired}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Observe != nil {
		start := deps.Now()
		defer func() { deps.Observe(deps.Now().Sub(start)) }()
	}

	username, ok := deps.Verify(token)
	if !ok {
		return ValidateResult{}
	}

	principal, found, err := deps.FindPrincipal(ctx, username)
	if err != nil {
		return ValidateResult{Err: err}
	}
	if !found {
		return ValidateResult{}
	}

	return ValidateResult{OK: true, Principal: principal}
}
