//go:build integration
// +build integration

package test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/gateAuth/jwt"
	gjwt "github.com/golang-jwt/jwt/v5"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestJWTIntegrationHardeningChecks(t *testing.T) {
	client := miniClient(t)

	clock := &stepClock{now: time.Now()}
	cfg := testConfig()
	h := newHarness(t, client, cfg, clock.Now)
	h.seedUser(t, "jwt@x.com")
	access := h.login(t, "jwt@x.com").AccessToken
	ctx := context.Background()

	if p := h.engine.ValidateToken(ctx, access); p == nil || p.Username != "jwt@x.com" {
		t.Fatalf("expected fresh token to validate, got %+v", p)
	}

	foreign, err := jwt.NewCodec(jwt.Config{Secret: bytes.Repeat([]byte("x"), 32), Now: clock.Now})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	forged, err := foreign.Issue("jwt@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if p := h.engine.ValidateToken(ctx, forged); p != nil {
		t.Fatal("token signed with a foreign secret must not validate")
	}

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, jwt.Claims{
		Name: "jwt@x.com",
		RegisteredClaims: gjwt.RegisteredClaims{
			ExpiresAt: gjwt.NewNumericDate(clock.Now().Add(time.Minute)),
		},
	}).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if p := h.engine.ValidateToken(ctx, none); p != nil {
		t.Fatal("alg=none token must not validate")
	}

	hs512, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, jwt.Claims{
		Name: "jwt@x.com",
		RegisteredClaims: gjwt.RegisteredClaims{
			ExpiresAt: gjwt.NewNumericDate(clock.Now().Add(time.Minute)),
		},
	}).SignedString(cfg.JWT.Secret)
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}
	if p := h.engine.ValidateToken(ctx, hs512); p != nil {
		t.Fatal("token with a different HMAC algorithm must not validate")
	}

	clock.Advance(cfg.JWT.AccessTTL + time.Second)
	if p := h.engine.ValidateToken(ctx, access); p != nil {
		t.Fatal("expired token must not validate")
	}
}

func TestJWTUnknownPrincipalIsRejected(t *testing.T) {
	client := miniClient(t)

	cfg := testConfig()
	h := newHarness(t, client, cfg, nil)

	codec, err := jwt.NewCodec(jwt.Config{Secret: cfg.JWT.Secret})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	token, err := codec.Issue("ghost@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if p := h.engine.ValidateToken(context.Background(), token); p != nil {
		t.Fatal("validly signed token for an unknown principal must not validate")
	}
}
