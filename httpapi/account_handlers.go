package httpapi

import (
	"net/http"
	"strings"

	gateAuth "github.com/MrEthical07/gateAuth"
)

// userBody mirrors the principal fields a caller may change.
type userBody struct {
	ID                   string  `json:"id"`
	Username             *string `json:"userName"`
	Email                *string `json:"email"`
	PhoneNumber          *string `json:"phoneNumber"`
	EmailConfirmed       *bool   `json:"emailConfirmed"`
	PhoneNumberConfirmed *bool   `json:"phoneNumberConfirmed"`
}

type updateUserRequest struct {
	ID          string    `json:"id"`
	Username    string    `json:"userName"`
	OldPassword string    `json:"oldPassword"`
	NewPassword string    `json:"newPassword"`
	User        *userBody `json:"user"`
}

func (req updateUserRequest) patch() gateAuth.UserPatch {
	var p gateAuth.UserPatch
	if req.User != nil {
		p.Username = req.User.Username
		p.Email = req.User.Email
		p.PhoneNumber = req.User.PhoneNumber
		p.EmailConfirmed = req.User.EmailConfirmed
		p.PhoneNumberConfirmed = req.User.PhoneNumberConfirmed
	}
	if req.NewPassword != "" {
		p.Password = &gateAuth.PasswordChange{Old: req.OldPassword, New: req.NewPassword}
	}
	return p
}

type userRefRequest struct {
	ID       string `json:"id"`
	Username string `json:"userName"`
}

func (r userRefRequest) ref() gateAuth.UserRef {
	return gateAuth.UserRef{ID: strings.TrimSpace(r.ID), Username: strings.TrimSpace(r.Username)}
}

func currentPrincipal(w http.ResponseWriter, r *http.Request) (*gateAuth.Principal, bool) {
	p, ok := gateAuth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
	}
	return p, ok
}

// createUser handles PUT /create-user. Only the first principal may be
// created anonymously.
func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		credentialsRequest
		Email       string   `json:"email"`
		PhoneNumber string   `json:"phoneNumber"`
		Roles       []string `json:"roles"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		badRequest(w, r, "username is required")
		return
	}
	if req.Password == "" {
		badRequest(w, r, "password is required")
		return
	}

	_, err := a.engine.CreateUser(r.Context(), gateAuth.CreateUserRequest{
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Roles:       req.Roles,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// myUser handles GET /my-user.
func (a *API) myUser(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// getUser handles GET /get-user?id=...&userName=...
func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := userRefRequest{ID: q.Get("id"), Username: q.Get("userName")}.ref()
	if ref.ID == "" && ref.Username == "" {
		badRequest(w, r, "id or userName is required")
		return
	}

	p, err := a.engine.GetUser(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// updateMyUser handles POST /update-my-user. A body naming a different
// principal is rejected.
func (a *API) updateMyUser(w http.ResponseWriter, r *http.Request) {
	me, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.User != nil && req.User.ID != "" && req.User.ID != me.ID {
		unauthorized(w, r)
		return
	}

	p, err := a.engine.UpdateUser(r.Context(), gateAuth.UserRef{ID: me.ID}, req.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// updateUser handles POST /update-user.
func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ref := userRefRequest{ID: req.ID, Username: req.Username}.ref()
	if ref.ID == "" && ref.Username == "" && req.User != nil {
		ref.ID = req.User.ID
	}
	if ref.ID == "" && ref.Username == "" {
		badRequest(w, r, "id or userName is required")
		return
	}

	p, err := a.engine.UpdateUser(r.Context(), ref, req.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// myRoles handles GET /my-roles.
func (a *API) myRoles(w http.ResponseWriter, r *http.Request) {
	me, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	roles, err := a.engine.UserRoles(r.Context(), gateAuth.UserRef{ID: me.ID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

// deleteUser handles DELETE /delete-user.
func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	var req userRefRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ref := req.ref()
	if ref.Username == "" && ref.ID == "" {
		badRequest(w, r, "userName is required")
		return
	}

	if err := a.engine.DeleteUser(r.Context(), ref); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// usersList handles GET /users-list.
func (a *API) usersList(w http.ResponseWriter, r *http.Request) {
	users, err := a.engine.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// assignRoles handles POST /assign-roles.
func (a *API) assignRoles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		userRefRequest
		Roles []string `json:"roles"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ref := req.ref()
	if ref.Username == "" && ref.ID == "" {
		badRequest(w, r, "id or userName is required")
		return
	}

	if err := a.engine.AssignRoles(r.Context(), ref, req.Roles); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// createRole handles PUT /create-role.
func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoleName string `json:"roleName"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	role, err := a.engine.CreateRole(r.Context(), req.RoleName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

// rolesList handles GET /roles-list.
func (a *API) rolesList(w http.ResponseWriter, r *http.Request) {
	roles, err := a.engine.ListRoles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

// transactionsList handles GET /transactions-list.
func (a *API) transactionsList(w http.ResponseWriter, r *http.Request) {
	txs, err := a.engine.ListTransactions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}
