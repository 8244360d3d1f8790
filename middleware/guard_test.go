package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	gateAuth "github.com/MrEthical07/gateAuth"
	"github.com/MrEthical07/gateAuth/memstore"
	"github.com/MrEthical07/gateAuth/password"
	"github.com/MrEthical07/gateAuth/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type guardFixture struct {
	engine *gateAuth.Engine
	store  *memstore.Store
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := gateAuth.DefaultConfig()
	cfg.JWT.Secret = bytes.Repeat([]byte("m"), 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	hasher, err := password.NewChain(password.Config{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	store := memstore.New(hasher)
	if _, err := store.CreateRole(context.Background(), cfg.Accounts.AdminRole); err != nil {
		t.Fatalf("admin role: %v", err)
	}
	if _, err := store.ImportCatalog(&permission.Catalog{Modules: []permission.CatalogModule{{
		Code: "ADM",
		Applications: []permission.CatalogApplication{{
			Code:         "USR",
			Transactions: []permission.Transaction{{Code: "USR_LIST", URL: "/api/v1/users-list"}},
		}},
	}}}); err != nil {
		t.Fatalf("catalog: %v", err)
	}

	engine, err := gateAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(store).
		WithRoleStore(store).
		WithDirectory(store).
		WithPasswordHasher(hasher).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return &guardFixture{engine: engine, store: store}
}

func (f *guardFixture) login(t *testing.T, username string, roles ...string) string {
	t.Helper()
	ctx := context.Background()
	if _, err := f.engine.CreateUser(ctx, gateAuth.CreateUserRequest{
		Username: username,
		Password: "long-enough-pw",
		Roles:    roles,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	res, err := f.engine.Authenticate(ctx, username, "long-enough-pw")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	return res.AccessToken
}

func principalEcho(t *testing.T, seen **gateAuth.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := gateAuth.PrincipalFromContext(r.Context())
		*seen = p
		w.WriteHeader(http.StatusNoContent)
	})
}

func serve(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuardRouteShapes(t *testing.T) {
	f := newGuardFixture(t)
	var seen *gateAuth.Principal

	firstUser := FirstUserOperation(f.engine)(principalEcho(t, &seen))
	if rec := serve(firstUser, "/api/v1/create-user", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("first-user route must be open during bootstrap, got %d", rec.Code)
	}

	admin := f.login(t, "root@x.com")
	if _, err := f.engine.SyncAdminGrants(context.Background()); err != nil {
		t.Fatalf("sync grants: %v", err)
	}

	if rec := serve(firstUser, "/api/v1/create-user", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("first-user route must close after bootstrap, got %d", rec.Code)
	}

	anon := AllowAnonymous(f.engine)(principalEcho(t, &seen))
	if rec := serve(anon, "/api/v1/login", ""); rec.Code != http.StatusNoContent || seen != nil {
		t.Fatalf("anonymous route: code=%d principal=%v", rec.Code, seen)
	}
	if rec := serve(anon, "/api/v1/login", admin); rec.Code != http.StatusNoContent || seen == nil || seen.Username != "root@x.com" {
		t.Fatalf("anonymous route should still resolve a valid token: code=%d principal=%v", rec.Code, seen)
	}

	protected := RequirePrincipal(f.engine)(principalEcho(t, &seen))
	if rec := serve(protected, "/api/v1/users-list", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token must be rejected, got %d", rec.Code)
	}
	if rec := serve(protected, "/api/v1/users-list", "not-a-jwt"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token must be rejected, got %d", rec.Code)
	}
	if rec := serve(protected, "/API/v1/Users-List/", admin); rec.Code != http.StatusNoContent {
		t.Fatalf("granted path must pass, got %d", rec.Code)
	}
	if rec := serve(protected, "/api/v1/roles-list", admin); rec.Code != http.StatusUnauthorized {
		t.Fatalf("ungranted path must be rejected, got %d", rec.Code)
	}
}

func TestGuardRejectsPrincipalWithoutGrant(t *testing.T) {
	f := newGuardFixture(t)
	f.login(t, "root@x.com")
	token := f.login(t, "plain@x.com")

	var seen *gateAuth.Principal
	protected := RequirePrincipal(f.engine)(principalEcho(t, &seen))
	if rec := serve(protected, "/api/v1/users-list", token); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if seen != nil {
		t.Fatal("handler must not run on deny")
	}
}

func TestGuardNilEngine(t *testing.T) {
	h := Guard(nil, Route{Anonymous: true})(http.NotFoundHandler())
	if rec := serve(h, "/", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer   ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("bearerToken(%q) = %q, %v", tt.header, got, ok)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	if got := ClientIP(req); got != "198.51.100.4" {
		t.Fatalf("remote addr: got %q", got)
	}

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("forwarded: got %q", got)
	}

	var seen string
	h := WithClientIP(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = gateAuth.ClientIPFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "203.0.113.9" {
		t.Fatalf("context ip: got %q", seen)
	}
}
