//go:build integration
// +build integration

package test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/gateAuth/refresh"
	"github.com/MrEthical07/gateAuth/tokenstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// cmdCounter is a go-redis Hook counting commands and pipeline round trips.
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.pipelines.Add(1)
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) Commands() int64  { return h.commands.Load() }
func (h *cmdCounter) Pipelines() int64 { return h.pipelines.Load() }

func newCountedClient(t *testing.T) (*redis.Client, *cmdCounter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	counter := &cmdCounter{}
	rdb.AddHook(counter)
	// Connection setup may issue extra commands on first use.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}
	counter.Reset()
	return rdb, counter
}

func seededCollection(t *testing.T, store *tokenstore.Store, token string) *refresh.Collection {
	t.Helper()
	now := time.Now()
	col := refresh.NewCollection("p-budget", "budget@x.com")
	col.Append(&refresh.Token{Token: token, CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	if err := store.Persist(context.Background(), col); err != nil {
		t.Fatalf("persist: %v", err)
	}
	return col
}

// TestPersistRedisBudget checks that a write is one script call. go-redis
// may fall back from EVALSHA to EVAL once, so the first call may cost 2.
func TestPersistRedisBudget(t *testing.T) {
	rdb, counter := newCountedClient(t)
	store := tokenstore.NewStore(rdb, "grt")
	col := seededCollection(t, store, "R1")

	counter.Reset()
	now := time.Now()
	col.Append(&refresh.Token{Token: "R2", CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	if err := store.Persist(context.Background(), col); err != nil {
		t.Fatalf("persist: %v", err)
	}

	if cmds := counter.Commands(); cmds > 2 {
		t.Errorf("Persist used %d Redis commands; budget is <= 2", cmds)
	}
	t.Logf("Persist: %d commands, %d pipelines", counter.Commands(), counter.Pipelines())
}

// TestFindByTokenRedisBudget checks the index lookup plus collection read.
func TestFindByTokenRedisBudget(t *testing.T) {
	rdb, counter := newCountedClient(t)
	store := tokenstore.NewStore(rdb, "grt")
	seededCollection(t, store, "R1")

	counter.Reset()
	if _, err := store.FindByToken(context.Background(), "R1"); err != nil {
		t.Fatalf("find: %v", err)
	}
	if cmds := counter.Commands(); cmds != 2 {
		t.Errorf("FindByToken used %d Redis commands; budget is 2 (GET+HMGET)", cmds)
	}
}

// TestValidateTokenTouchesNoRedis checks that access-token validation is
// served from the signature and the identity store alone.
func TestValidateTokenTouchesNoRedis(t *testing.T) {
	rdb, counter := newCountedClient(t)
	h := newHarness(t, rdb, testConfig(), nil)
	h.seedUser(t, "budget@x.com")
	access := h.login(t, "budget@x.com").AccessToken

	counter.Reset()
	for i := 0; i < 10; i++ {
		if p := h.engine.ValidateToken(context.Background(), access); p == nil {
			t.Fatal("expected token to validate")
		}
	}
	if cmds := counter.Commands(); cmds != 0 {
		t.Errorf("ValidateToken used %d Redis commands; budget is 0", cmds)
	}
}
