package flows

import (
	"context"
	"strings"
	"unicode/utf8"
)

// CreateUserInput is the flow-local registration request.
type CreateUserInput struct {
	Username    string
	Email       string
	PhoneNumber string
	Password    string
	Roles       []string
}

// NewPrincipal is what the directory persists. PasswordHash is already
// encoded by the hasher.
type NewPrincipal struct {
	Username       string
	Email          string
	PhoneNumber    string
	PasswordHash   string
	EmailConfirmed bool
	Roles          []string
}

// CreateUserFailureKind classifies registration failures.
type CreateUserFailureKind int

const (
	CreateUserFailureNone CreateUserFailureKind = iota
	CreateUserFailureNotWired
	CreateUserFailureInvalid
	CreateUserFailurePasswordPolicy
	CreateUserFailureStore
)

// CreateUserResult reports the created principal. Bootstrap is true for the
// very first principal, which is granted AdminRole.
type CreateUserResult struct {
	Failure   CreateUserFailureKind
	Err       error
	Principal PrincipalRecord
	Bootstrap bool
}

// CreateUserDeps captures registration dependencies.
type CreateUserDeps struct {
	Hooks

	AdminRole         string
	MinPasswordLength int

	CountPrincipals func(ctx context.Context) (int64, error)
	HashPassword    func(password string) (string, error)
	Insert          func(ctx context.Context, p NewPrincipal) (PrincipalRecord, error)

	SuccessMetric int
	SuccessEvent  string
	FailureEvent  string
}

// RunCreateUser registers a principal. When the directory is empty the new
// principal becomes the administrator with a confirmed email, regardless of
// the roles requested.
func RunCreateUser(ctx context.Context, in CreateUserInput, deps CreateUserDeps) CreateUserResult {
	deps.Hooks = deps.Hooks.withDefaults()
	if deps.CountPrincipals == nil || deps.HashPassword == nil || deps.Insert == nil {
		return CreateUserResult{Failure: CreateUserFailureNotWired, Err: ErrNotWired}
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return CreateUserResult{Failure: CreateUserFailureInvalid}
	}
	if in.Password == "" || utf8.RuneCountInString(in.Password) < deps.MinPasswordLength {
		return CreateUserResult{Failure: CreateUserFailurePasswordPolicy}
	}

	count, err := deps.CountPrincipals(ctx)
	if err != nil {
		return CreateUserResult{Failure: CreateUserFailureStore, Err: err}
	}
	bootstrap := count == 0

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return CreateUserResult{Failure: CreateUserFailureStore, Err: err}
	}

	np := NewPrincipal{
		Username:     username,
		Email:        strings.TrimSpace(in.Email),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		PasswordHash: hash,
		Roles:        in.Roles,
	}
	if bootstrap {
		np.Roles = []string{deps.AdminRole}
		np.EmailConfirmed = true
	}

	created, err := deps.Insert(ctx, np)
	if err != nil {
		deps.EmitAudit(ctx, deps.FailureEvent, false, "", username, err, nil)
		return CreateUserResult{Failure: CreateUserFailureStore, Err: err}
	}

	deps.MetricInc(deps.SuccessMetric)
	deps.EmitAudit(ctx, deps.SuccessEvent, true, created.ID, created.Username, nil, func() map[string]string {
		if bootstrap {
			return map[string]string{"bootstrap": "true"}
		}
		return nil
	})

	return CreateUserResult{Principal: created, Bootstrap: bootstrap}
}
