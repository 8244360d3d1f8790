package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gateAuth "github.com/MrEthical07/gateAuth"
	"github.com/MrEthical07/gateAuth/memstore"
	"github.com/MrEthical07/gateAuth/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-horse-battery"

type apiFixture struct {
	handler http.Handler
	engine  *gateAuth.Engine
	metrics *HTTPMetrics
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := gateAuth.DefaultConfig()
	cfg.JWT.Secret = bytes.Repeat([]byte("h"), 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	hasher, err := password.NewChain(password.Config{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)

	store := memstore.New(hasher)
	_, err = store.CreateRole(context.Background(), cfg.Accounts.AdminRole)
	require.NoError(t, err)
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	_, err = store.ImportCatalog(catalog)
	require.NoError(t, err)

	engine, err := gateAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(store).
		WithRoleStore(store).
		WithDirectory(store).
		WithPasswordHasher(hasher).
		Build()
	require.NoError(t, err)

	_, err = engine.SyncAdminGrants(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	metrics := NewHTTPMetrics(prometheus.NewRegistry())
	api := New(engine, Options{Metrics: metrics})
	return &apiFixture{handler: api.Handler(), engine: engine, metrics: metrics}
}

type call struct {
	method string
	path   string
	body   any
	token  string
	cookie string
}

func (f *apiFixture) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	req.RemoteAddr = "192.0.2.10:4444"
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: c.cookie})
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	t.Fatal("refresh cookie not set")
	return nil
}

func (f *apiFixture) signUp(t *testing.T, token, username string) {
	t.Helper()
	rec := f.do(t, call{
		method: http.MethodPut, path: "/api/v1/create-user", token: token,
		body: map[string]string{"username": username, "password": testPassword},
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func (f *apiFixture) login(t *testing.T, username string) (string, *http.Cookie) {
	t.Helper()
	rec := f.do(t, call{
		method: http.MethodPost, path: "/api/v1/login",
		body: map[string]string{"username": username, "password": testPassword},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "refreshToken")
	return body["jwtToken"].(string), refreshCookie(t, rec)
}

func TestBootstrapAndLogin(t *testing.T) {
	f := newAPIFixture(t)

	f.signUp(t, "", "root@x.com")

	rec := f.do(t, call{
		method: http.MethodPut, path: "/api/v1/create-user",
		body: map[string]string{"username": "intruder@x.com", "password": testPassword},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	access, cookie := f.login(t, "root@x.com")
	assert.NotEmpty(t, access)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, Prefix, cookie.Path)

	rec = f.do(t, call{method: http.MethodGet, path: "/api/v1/get-username", token: access})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userName":"root@x.com"}`, rec.Body.String())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.requests.WithLabelValues("POST", "/api/v1/login", "200")))
}

func TestLoginFailuresAreProblems(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "", "root@x.com")

	rec := f.do(t, call{
		method: http.MethodPost, path: "/api/v1/login",
		body: map[string]string{"username": "root@x.com", "password": "wrong-password"},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var p Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Unauthorized", p.Title)
	assert.Equal(t, rec.Header().Get(RequestIDHeader), p.TraceID)

	rec = f.do(t, call{method: http.MethodPost, path: "/api/v1/login", body: "not an object"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshRotatesCookieAndRejectsReuse(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "", "root@x.com")
	_, first := f.login(t, "root@x.com")

	rec := f.do(t, call{method: http.MethodPost, path: "/api/v1/refresh-token"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, call{method: http.MethodPost, path: "/api/v1/refresh-token", cookie: first.Value})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := refreshCookie(t, rec)
	assert.NotEqual(t, first.Value, second.Value)

	rec = f.do(t, call{method: http.MethodPost, path: "/api/v1/refresh-token", cookie: first.Value})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, -1, refreshCookie(t, rec).MaxAge)

	rec = f.do(t, call{method: http.MethodPost, path: "/api/v1/refresh-token", cookie: second.Value})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "reuse must revoke the live descendant")
}

func TestValidateAndRevoke(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "", "root@x.com")
	access, cookie := f.login(t, "root@x.com")

	rec := f.do(t, call{method: http.MethodPost, path: "/api/v1/validate-token?token=" + access})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"userName":"root@x.com"`)

	rec = f.do(t, call{method: http.MethodPost, path: "/api/v1/validate-token", body: map[string]string{"token": "garbage"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, call{method: http.MethodPost, path: "/api/v1/revoke-token", token: access, body: cookie.Value})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = f.do(t, call{method: http.MethodPost, path: "/api/v1/refresh-token", cookie: cookie.Value})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGrantsGateAccountEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "", "root@x.com")
	admin, _ := f.login(t, "root@x.com")

	f.signUp(t, admin, "plain@x.com")
	plain, _ := f.login(t, "plain@x.com")

	rec := f.do(t, call{method: http.MethodGet, path: "/api/v1/users-list", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	var users []gateAuth.Principal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 2)

	rec = f.do(t, call{method: http.MethodGet, path: "/api/v1/users-list", token: plain})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, call{method: http.MethodGet, path: "/api/v1/get-user?userName=PLAIN@x.com", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"userName":"plain@x.com"`)

	rec = f.do(t, call{method: http.MethodGet, path: "/api/v1/get-user?userName=ghost@x.com", token: admin})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, call{method: http.MethodGet, path: "/api/v1/my-roles", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Admin"`)
}

func TestRoleManagement(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "", "root@x.com")
	admin, _ := f.login(t, "root@x.com")

	rec := f.do(t, call{method: http.MethodPut, path: "/api/v1/create-role", token: admin, body: map[string]string{"roleName": "Auditors"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, call{method: http.MethodPut, path: "/api/v1/create-role", token: admin, body: map[string]string{"roleName": "AUDITORS"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, call{method: http.MethodPut, path: "/api/v1/create-role", token: admin, body: map[string]string{"roleName": "abc"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, call{method: http.MethodGet, path: "/api/v1/roles-list", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Auditors")

	rec = f.do(t, call{method: http.MethodGet, path: "/api/v1/transactions-list", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/transactions-list")
}

func TestUpdateMyUserRequiresReloginAfterPasswordChange(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "", "root@x.com")
	access, cookie := f.login(t, "root@x.com")

	rec := f.do(t, call{method: http.MethodPost, path: "/api/v1/update-my-user", token: access, body: map[string]any{
		"oldPassword": "wrong", "newPassword": "another-long-password",
	}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, call{method: http.MethodPost, path: "/api/v1/update-my-user", token: access, body: map[string]any{
		"user": map[string]string{"id": "someone-else"},
	}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, call{method: http.MethodPost, path: "/api/v1/update-my-user", token: access, body: map[string]any{
		"oldPassword": testPassword, "newPassword": "another-long-password",
		"user":        map[string]string{"phoneNumber": "+420123456789"},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "+420123456789")

	rec = f.do(t, call{method: http.MethodPost, path: "/api/v1/refresh-token", cookie: cookie.Value})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "", "root@x.com")
	admin, _ := f.login(t, "root@x.com")
	f.signUp(t, admin, "gone@x.com")

	rec := f.do(t, call{method: http.MethodDelete, path: "/api/v1/delete-user", token: admin, body: map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, call{method: http.MethodDelete, path: "/api/v1/delete-user", token: admin, body: map[string]string{"userName": "gone@x.com"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, call{method: http.MethodDelete, path: "/api/v1/delete-user", token: admin, body: map[string]string{"userName": "gone@x.com"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndRequestID(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	id := rec.Header().Get(RequestIDHeader)
	assert.NotEqual(t, "not-a-uuid", id)
	assert.Len(t, id, 36)
}

func TestReadTokenBody(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`"abc"`, "abc"},
		{`{"token":" xyz "}`, "xyz"},
		{``, ""},
		{`[1,2]`, ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
		assert.Equal(t, tt.want, readTokenBody(req), tt.body)
	}
}
