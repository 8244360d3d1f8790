//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"sync"
	"testing"

	gateAuth "github.com/MrEthical07/gateAuth"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func raceHarness(t *testing.T, client redis.UniversalClient) *harness {
	cfg := testConfig()
	cfg.Security.MaxRefreshAttempts = 0
	return newHarness(t, client, cfg, nil)
}

// presentConcurrently releases n refreshes of token at the same instant and
// returns their errors.
func presentConcurrently(h *harness, token string, n int) []error {
	var (
		wg   sync.WaitGroup
		gate = make(chan struct{})
		errs = make([]error, n)
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			_, errs[i] = h.engine.RefreshToken(context.Background(), token)
		}()
	}
	close(gate)
	wg.Wait()
	return errs
}

func TestRefreshRaceSingleWinner(t *testing.T) {
	eachBackend(t, func(t *testing.T, client redis.UniversalClient) {
		h := raceHarness(t, client)
		h.seedUser(t, "race@x.com")
		token := h.login(t, "race@x.com").RefreshToken

		winners := 0
		for _, err := range presentConcurrently(h, token, 16) {
			switch {
			case err == nil:
				winners++
			case !errors.Is(err, gateAuth.ErrTokenInactive):
				t.Fatalf("loser must see ErrTokenInactive, got %v", err)
			}
		}
		if winners != 1 {
			t.Fatalf("expected exactly one winner, got %d", winners)
		}
	})
}

func TestRefreshRaceAcrossPrincipalsIsIndependent(t *testing.T) {
	eachBackend(t, func(t *testing.T, client redis.UniversalClient) {
		h := raceHarness(t, client)

		var g errgroup.Group
		for _, name := range []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"} {
			h.seedUser(t, name)
			token := h.login(t, name).RefreshToken
			g.Go(func() error {
				for range 8 {
					res, err := h.engine.RefreshToken(context.Background(), token)
					if err != nil {
						return err
					}
					token = res.RefreshToken
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("sequential rotation failed under cross-principal load: %v", err)
		}
	})
}
