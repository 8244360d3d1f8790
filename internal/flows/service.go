package flows

import "context"

// Service is the flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Authenticate.Store != nil && s.deps.Validate.Verify != nil
}

func (s Service) Authenticate(ctx context.Context, username, password string) AuthenticateResult {
	return RunAuthenticate(ctx, username, password, s.deps.Authenticate)
}

func (s Service) Refresh(ctx context.Context, token string) RefreshResult {
	return RunRefresh(ctx, token, s.deps.Refresh)
}

func (s Service) Revoke(ctx context.Context, token string) RevokeResult {
	return RunRevoke(ctx, token, s.deps.Revoke)
}

func (s Service) Validate(ctx context.Context, token string) ValidateResult {
	return RunValidate(ctx, token, s.deps.Validate)
}

func (s Service) Authorize(ctx context.Context, in AuthorizeInput) AuthorizeResult {
	return RunAuthorize(ctx, in, s.deps.Authorize)
}

func (s Service) CreateUser(ctx context.Context, in CreateUserInput) CreateUserResult {
	return RunCreateUser(ctx, in, s.deps.CreateUser)
}
