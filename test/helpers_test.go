//go:build integration
// +build integration

package test

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	gateAuth "github.com/MrEthical07/gateAuth"
	"github.com/MrEthical07/gateAuth/memstore"
	"github.com/MrEthical07/gateAuth/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-horse-battery"

// backend is a Redis server the integration suites can run against.
type backend struct {
	name string
	dial func(t *testing.T) redis.UniversalClient
}

// backends always includes miniredis. A real Redis joins when REDIS_ADDR is
// set; it is flushed before and after each use.
func backends() []backend {
	out := []backend{{name: "miniredis", dial: miniClient}}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		out = append(out, backend{name: "standalone:" + addr, dial: func(t *testing.T) redis.UniversalClient {
			return standaloneClient(t, addr)
		}})
	}
	return out
}

// eachBackend runs fn as a subtest once per backend.
func eachBackend(t *testing.T, fn func(t *testing.T, client redis.UniversalClient)) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) { fn(t, b.dial(t)) })
	}
}

func miniClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func standaloneClient(t *testing.T, addr string) redis.UniversalClient {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis at %s unreachable: %v", addr, err)
	}
	rdb.FlushDB(ctx)
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		_ = rdb.Close()
	})
	return rdb
}

type harness struct {
	engine *gateAuth.Engine
	store  *memstore.Store
}

func testConfig() gateAuth.Config {
	cfg := gateAuth.DefaultConfig()
	cfg.JWT.Secret = bytes.Repeat([]byte("i"), 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

// newHarness builds an engine over client with an in-memory directory. now
// may be nil.
func newHarness(t *testing.T, client redis.UniversalClient, cfg gateAuth.Config, now func() time.Time) *harness {
	t.Helper()

	hasher, err := password.NewChain(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}

	store := memstore.New(hasher)
	b := gateAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityStore(store).
		WithRoleStore(store).
		WithDirectory(store).
		WithPasswordHasher(hasher)
	if now != nil {
		b = b.WithClock(now)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := engine.SyncAdminGrants(context.Background()); err != nil {
		t.Fatalf("sync admin grants: %v", err)
	}
	return &harness{engine: engine, store: store}
}

func (h *harness) seedUser(t *testing.T, username string) *gateAuth.Principal {
	t.Helper()
	p, err := h.engine.CreateUser(context.Background(), gateAuth.CreateUserRequest{Username: username, Password: testPassword})
	if err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return p
}

func (h *harness) login(t *testing.T, username string) *gateAuth.AuthResult {
	t.Helper()
	res, err := h.engine.Authenticate(gateAuth.WithClientIP(context.Background(), "198.51.100.7"), username, testPassword)
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return res
}
