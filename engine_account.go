package gateAuth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/gateAuth/internal/flows"
	"github.com/MrEthical07/gateAuth/permission"
)

// CreateUser registers a principal. The first principal ever created is
// granted the administrator role with a confirmed email, whatever roles
// were requested.
func (e *Engine) CreateUser(ctx context.Context, req CreateUserRequest) (*Principal, error) {
	if err := e.requireDirectory(); err != nil {
		return nil, err
	}

	email := req.Email
	if strings.TrimSpace(email) == "" {
		email = req.Username
	}

	res := e.flows.CreateUser(ctx, flows.CreateUserInput{
		Username:    req.Username,
		Email:       email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		Roles:       req.Roles,
	})
	switch res.Failure {
	case flows.CreateUserFailureNone:
	case flows.CreateUserFailureInvalid:
		return nil, ErrUserInvalid
	case flows.CreateUserFailurePasswordPolicy:
		return nil, ErrPasswordPolicy
	case flows.CreateUserFailureNotWired:
		return nil, ErrEngineNotReady
	default:
		return nil, e.accountError("create_user", req.Username, res.Err)
	}

	if res.Bootstrap {
		e.log.WithField("username", res.Principal.Username).Info("first principal created with administrator role")
	}
	return principalFromRecord(res.Principal), nil
}

// GetUser returns the principal selected by ref.
func (e *Engine) GetUser(ctx context.Context, ref UserRef) (*Principal, error) {
	if err := e.requireDirectory(); err != nil {
		return nil, err
	}
	p, err := e.lookupUser(ctx, ref)
	if err != nil {
		return nil, e.accountError("get_user", ref.Username, err)
	}
	return p, nil
}

// UpdateUser applies patch to the principal selected by ref. A password
// change requires the current password and fails with
// [ErrInvalidCredentials] when it does not match.
//
// Renaming a principal or changing its password revokes every refresh token
// it holds; the principal has to sign in again.
func (e *Engine) UpdateUser(ctx context.Context, ref UserRef, patch UserPatch) (*Principal, error) {
	if err := e.requireDirectory(); err != nil {
		return nil, err
	}

	p, err := e.lookupUser(ctx, ref)
	if err != nil {
		return nil, e.accountError("update_user", ref.Username, err)
	}
	if patch.Empty() {
		return p, nil
	}
	previousName := p.Username

	var hash string
	if patch.Password != nil {
		ok, err := e.identity.VerifyPassword(ctx, p.ID, patch.Password.Old)
		if err != nil {
			return nil, e.internalFailure("update_user", ClientIPFromContext(ctx), p.Username, err)
		}
		if !ok {
			e.emitAudit(ctx, AuditPasswordChanged, false, p.ID, p.Username, ErrInvalidCredentials, nil)
			return nil, ErrInvalidCredentials
		}
		if utf8.RuneCountInString(patch.Password.New) < e.config.Password.MinLength {
			return nil, ErrPasswordPolicy
		}
		hash, err = e.hasher.Hash(patch.Password.New)
		if err != nil {
			return nil, e.internalFailure("update_user", ClientIPFromContext(ctx), p.Username, err)
		}
	}

	changed, renamed := Merge(p, patch)
	if !changed && hash == "" {
		return p, nil
	}

	if err := e.directory.UpdatePrincipal(ctx, p, hash); err != nil {
		return nil, e.accountError("update_user", previousName, err)
	}

	if renamed || hash != "" {
		if err := e.store.Delete(ctx, p.ID); err != nil {
			return nil, e.internalFailure("update_user", ClientIPFromContext(ctx), p.Username, err)
		}
	}

	if hash != "" {
		e.emitAudit(ctx, AuditPasswordChanged, true, p.ID, p.Username, nil, nil)
	}
	if changed {
		e.emitAudit(ctx, AuditUserUpdated, true, p.ID, p.Username, nil, func() map[string]string {
			if !renamed {
				return nil
			}
			return map[string]string{"previous_username": previousName}
		})
	}

	return p, nil
}

// DeleteUser removes the principal selected by ref together with its
// refresh tokens.
func (e *Engine) DeleteUser(ctx context.Context, ref UserRef) error {
	if err := e.requireDirectory(); err != nil {
		return err
	}

	p, err := e.lookupUser(ctx, ref)
	if err != nil {
		return e.accountError("delete_user", ref.Username, err)
	}
	if err := e.directory.DeletePrincipal(ctx, p.ID); err != nil {
		return e.accountError("delete_user", p.Username, err)
	}
	if err := e.store.Delete(ctx, p.ID); err != nil {
		return e.internalFailure("delete_user", ClientIPFromContext(ctx), p.Username, err)
	}

	e.metricInc(MetricUserDeleted)
	e.emitAudit(ctx, AuditUserDeleted, true, p.ID, p.Username, nil, nil)
	return nil
}

func (e *Engine) ListUsers(ctx context.Context) ([]Principal, error) {
	if err := e.requireDirectory(); err != nil {
		return nil, err
	}
	users, err := e.directory.ListPrincipals(ctx)
	if err != nil {
		return nil, e.accountError("list_users", "", err)
	}
	return users, nil
}

// UserRoles returns the role records held by the principal selected by ref.
func (e *Engine) UserRoles(ctx context.Context, ref UserRef) ([]permission.Role, error) {
	if err := e.requireDirectory(); err != nil {
		return nil, err
	}

	p, err := e.lookupUser(ctx, ref)
	if err != nil {
		return nil, e.accountError("user_roles", ref.Username, err)
	}
	names, err := e.identity.RolesOf(ctx, p.ID)
	if err != nil {
		return nil, e.internalFailure("user_roles", ClientIPFromContext(ctx), p.Username, err)
	}
	if len(names) == 0 {
		return []permission.Role{}, nil
	}
	roles, err := e.resolveRoles(ctx, names)
	if err != nil {
		return nil, e.internalFailure("user_roles", ClientIPFromContext(ctx), p.Username, err)
	}
	return roles, nil
}

// CreateRole adds a role. Names are unique regardless of case and must be
// at least Accounts.MinRoleNameLength characters long.
func (e *Engine) CreateRole(ctx context.Context, name string) (*permission.Role, error) {
	if err := e.requireDirectory(); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < e.config.Accounts.MinRoleNameLength {
		return nil, ErrRoleInvalid
	}

	role, err := e.directory.CreateRole(ctx, name)
	if err != nil {
		return nil, e.accountError("create_role", "", err)
	}
	e.grants.Purge()

	e.metricInc(MetricRoleCreated)
	e.emitAudit(ctx, AuditRoleCreated, true, "", "", nil, func() map[string]string {
		return map[string]string{"role": role.Name}
	})
	return role, nil
}

func (e *Engine) ListRoles(ctx context.Context) ([]permission.Role, error) {
	if err := e.requireDirectory(); err != nil {
		return nil, err
	}
	roles, err := e.directory.ListRoles(ctx)
	if err != nil {
		return nil, e.accountError("list_roles", "", err)
	}
	return roles, nil
}

// AssignRoles replaces the roles held by the principal selected by ref.
func (e *Engine) AssignRoles(ctx context.Context, ref UserRef, roles []string) error {
	if err := e.requireDirectory(); err != nil {
		return err
	}

	p, err := e.lookupUser(ctx, ref)
	if err != nil {
		return e.accountError("assign_roles", ref.Username, err)
	}
	if err := e.directory.SetRoles(ctx, p.ID, roles); err != nil {
		return e.accountError("assign_roles", p.Username, err)
	}

	e.emitAudit(ctx, AuditRolesAssigned, true, p.ID, p.Username, nil, func() map[string]string {
		return map[string]string{"roles": strings.Join(roles, ",")}
	})
	return nil
}

func (e *Engine) ListTransactions(ctx context.Context) ([]permission.Transaction, error) {
	if err := e.requireDirectory(); err != nil {
		return nil, err
	}
	txs, err := e.directory.ListTransactions(ctx)
	if err != nil {
		return nil, e.accountError("list_transactions", "", err)
	}
	return txs, nil
}

// SyncAdminGrants grants every known transaction to the administrator role
// and returns the number of grants added. The role is created when the
// directory does not hold it yet.
func (e *Engine) SyncAdminGrants(ctx context.Context) (int, error) {
	if err := e.requireDirectory(); err != nil {
		return 0, err
	}

	admin := e.config.Accounts.AdminRole
	added, err := e.directory.GrantAllTransactions(ctx, admin)
	if errors.Is(err, ErrRoleNotFound) {
		if _, err = e.directory.CreateRole(ctx, admin); err != nil && !errors.Is(err, ErrRoleExists) {
			return 0, e.accountError("sync_admin_grants", "", err)
		}
		e.log.WithField("role", admin).Info("administrator role created")
		added, err = e.directory.GrantAllTransactions(ctx, admin)
	}
	if err != nil {
		return 0, e.accountError("sync_admin_grants", "", err)
	}
	if added > 0 {
		e.grants.Purge()
	}

	e.emitAudit(ctx, AuditAdminGrantsSynced, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"role":  e.config.Accounts.AdminRole,
			"added": strconv.Itoa(added),
		}
	})
	return added, nil
}

func (e *Engine) requireDirectory() error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	if e.directory == nil {
		return ErrDirectoryNeeded
	}
	return nil
}

func (e *Engine) lookupUser(ctx context.Context, ref UserRef) (*Principal, error) {
	if id := strings.TrimSpace(ref.ID); id != "" {
		return e.directory.GetPrincipal(ctx, id)
	}
	if name := strings.TrimSpace(ref.Username); name != "" {
		return e.identity.FindPrincipalByUsername(ctx, name)
	}
	return nil, ErrUserNotFound
}

// accountError passes directory sentinels through and hides everything
// else behind ErrInternalFailure.
func (e *Engine) accountError(op, username string, err error) error {
	for _, known := range []error{
		ErrUserExists,
		ErrUserNotFound,
		ErrUserInvalid,
		ErrRoleExists,
		ErrRoleNotFound,
		ErrRoleInvalid,
	} {
		if errors.Is(err, known) {
			return known
		}
	}
	return e.internalFailure(op, "", username, err)
}
