package flows

import (
	"context"

	"github.com/MrEthical07/gateAuth/permission"
)

// AuthorizeInput describes one protected request.
type AuthorizeInput struct {
	PrincipalID        string
	Anonymous          bool
	FirstUserOperation bool
	Path               string
}

// AuthorizeDeps captures authorization dependencies.
type AuthorizeDeps struct {
	Hooks

	// CountPrincipals feeds the bootstrap flag. Only consulted for
	// first-user operations.
	CountPrincipals func(ctx context.Context) (int64, error)
	RolesOf         func(ctx context.Context, principalID string) ([]string, error)
	ResolveRoles    func(ctx context.Context, names []string) ([]permission.Role, error)

	AllowMetric int
	DenyMetric  int
}

// AuthorizeResult carries the decision. A non-nil Err always comes with a
// denying Decision.
type AuthorizeResult struct {
	Decision permission.Decision
	Err      error
}

// RunAuthorize gathers the facts [permission.Decide] needs and returns its
// verdict. Any collaborator failure denies.
func RunAuthorize(ctx context.Context, in AuthorizeInput, deps AuthorizeDeps) AuthorizeResult {
	deps.Hooks = deps.Hooks.withDefaults()

	deny := func(err error) AuthorizeResult {
		deps.MetricInc(deps.DenyMetric)
		return AuthorizeResult{Err: err}
	}

	req := permission.Request{
		Anonymous:          in.Anonymous,
		FirstUserOperation: in.FirstUserOperation,
		Authenticated:      in.PrincipalID != "",
		Path:               in.Path,
	}

	if in.FirstUserOperation && !in.Anonymous {
		if deps.CountPrincipals == nil {
			return deny(ErrNotWired)
		}
		n, err := deps.CountPrincipals(ctx)
		if err != nil {
			return deny(err)
		}
		req.Bootstrap = n == 0
	}

	if req.Authenticated && !req.Anonymous && !(req.Bootstrap && req.FirstUserOperation) {
		if deps.RolesOf == nil || deps.ResolveRoles == nil {
			return deny(ErrNotWired)
		}
		names, err := deps.RolesOf(ctx, in.PrincipalID)
		if err != nil {
			return deny(err)
		}
		if len(names) > 0 {
			roles, err := deps.ResolveRoles(ctx, names)
			if err != nil {
				return deny(err)
			}
			req.Roles = roles
		}
	}

	decision := permission.Decide(req)
	if decision.Allowed {
		deps.MetricInc(deps.AllowMetric)
	} else {
		deps.MetricInc(deps.DenyMetric)
	}

	return AuthorizeResult{Decision: decision}
}
