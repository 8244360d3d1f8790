package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	gateAuth "github.com/MrEthical07/gateAuth"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse is AuthResult without the refresh token, which travels in
// the cookie only.
type tokenResponse struct {
	AccessToken string `json:"jwtToken"`
	Username    string `json:"userName"`
}

// login handles POST /login.
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		unauthorized(w, r)
		return
	}

	res, err := a.engine.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.writeTokens(w, res)
}

// refreshToken handles POST /refresh-token. The token is read from the
// refresh cookie.
func (a *API) refreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		badRequest(w, r, "Missing refresh token in request cookie")
		return
	}

	res, err := a.engine.RefreshToken(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, gateAuth.ErrTokenNotFound) || errors.Is(err, gateAuth.ErrTokenInactive) {
			a.clearRefreshCookie(w)
		}
		writeError(w, r, err)
		return
	}
	a.writeTokens(w, res)
}

func (a *API) writeTokens(w http.ResponseWriter, res *gateAuth.AuthResult) {
	a.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: res.AccessToken, Username: res.Username})
}

// validateToken handles POST /validate-token. The token may come as a
// query parameter or in a {"token": ...} body.
func (a *API) validateToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = readTokenBody(r)
	}
	if token == "" {
		unauthorized(w, r)
		return
	}

	p := a.engine.ValidateToken(r.Context(), token)
	if p == nil {
		unauthorized(w, r)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// revokeToken handles POST /revoke-token. The body may be a bare JSON
// string or {"token": ...}; the refresh cookie is used when both are empty.
func (a *API) revokeToken(w http.ResponseWriter, r *http.Request) {
	token := readTokenBody(r)
	fromCookie := false
	if token == "" {
		if c, err := r.Cookie(RefreshCookieName); err == nil {
			token, fromCookie = c.Value, true
		}
	}
	if token == "" {
		badRequest(w, r, "token required")
		return
	}

	if err := a.engine.RevokeToken(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	if fromCookie {
		a.clearRefreshCookie(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

// getUsername handles GET /get-username.
func (a *API) getUsername(w http.ResponseWriter, r *http.Request) {
	p, ok := gateAuth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"userName": p.Username})
}

func readTokenBody(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return ""
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		return strings.TrimSpace(bare)
	}
	var wrapped struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return strings.TrimSpace(wrapped.Token)
	}
	return ""
}
