package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	gateAuth "github.com/MrEthical07/gateAuth"
	"github.com/MrEthical07/gateAuth/memstore"
	"github.com/MrEthical07/gateAuth/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const loadPassword = "load-test-password"

type principalState struct {
	username string
	access   string
	refresh  string
	mu       sync.Mutex
}

func main() {
	var (
		principals  = flag.Int("principals", 200, "number of principals to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (validate + refresh)")
		racers      = flag.Int("racers", 8, "concurrent refreshes of the same token in the race phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "grt-load", "refresh key prefix")
	)
	flag.Parse()

	if *principals <= 0 || *concurrency <= 0 || *ops <= 0 || *racers < 2 {
		fmt.Fprintln(os.Stderr, "principals, concurrency and ops must be > 0; racers must be >= 2")
		os.Exit(2)
	}

	ctx := context.Background()

	client, cleanup, err := openRedis(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	engine, err := buildEngine(client, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d principals...\n", *principals)
	startSeed := time.Now()
	states, err := seed(ctx, engine, *principals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(*ops, *concurrency, validateOp(ctx, engine, states))
	refreshStats := runPhase(*ops, *concurrency, refreshOp(ctx, engine, states))
	race := runRacePhase(ctx, engine, states, *racers)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
	fmt.Printf("race: chains=%d winners=%d violations=%d\n", race.chains, race.winners, race.violations)

	snap := engine.MetricsSnapshot()
	fmt.Printf("counters: refresh_success=%d refresh_failure=%d reuse_detected=%d\n",
		snap.Counters[gateAuth.MetricRefreshSuccess],
		snap.Counters[gateAuth.MetricRefreshFailure],
		snap.Counters[gateAuth.MetricRefreshReuseDetected],
	)

	if race.violations > 0 {
		os.Exit(1)
	}
}

// openRedis dials addr, falling back to REDIS_ADDR and then to an
// in-process miniredis.
func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func buildEngine(client redis.UniversalClient, prefix string) (*gateAuth.Engine, error) {
	cfg := gateAuth.DefaultConfig()
	cfg.JWT.Secret = bytes.Repeat([]byte("l"), 32)
	cfg.Refresh.RedisPrefix = prefix
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.MaxRefreshAttempts = 0
	cfg.Metrics.EnableLatencyHistograms = true

	hasher, err := password.NewChain(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	store := memstore.New(hasher)
	return gateAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityStore(store).
		WithRoleStore(store).
		WithDirectory(store).
		WithPasswordHasher(hasher).
		WithLogger(log).
		Build()
}

func seed(ctx context.Context, engine *gateAuth.Engine, n int) ([]principalState, error) {
	if _, err := engine.SyncAdminGrants(ctx); err != nil {
		return nil, err
	}

	states := make([]principalState, n)
	for i := range states {
		username := fmt.Sprintf("load-%d@example.com", i)
		if _, err := engine.CreateUser(ctx, gateAuth.CreateUserRequest{Username: username, Password: loadPassword}); err != nil {
			return nil, fmt.Errorf("create %s: %w", username, err)
		}
		res, err := engine.Authenticate(gateAuth.WithClientIP(ctx, "10.0.0.1"), username, loadPassword)
		if err != nil {
			return nil, fmt.Errorf("login %s: %w", username, err)
		}
		states[i] = principalState{username: username, access: res.AccessToken, refresh: res.RefreshToken}
	}
	return states, nil
}

// phaseOp runs one operation for worker and reports whether it succeeded.
type phaseOp func(worker int, r *rand.Rand) bool

// runPhase spreads ops calls of op over concurrency workers. Each worker keeps
// its own latency samples; they are merged once the phase is over.
func runPhase(ops, concurrency int, op phaseOp) phaseStats {
	var (
		wg       sync.WaitGroup
		next     atomic.Int64
		failures atomic.Int64
		samples  = make([][]time.Duration, concurrency)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(w)<<20))
			for next.Add(1) <= int64(ops) {
				t0 := time.Now()
				if !op(w, r) {
					failures.Add(1)
				}
				samples[w] = append(samples[w], time.Since(t0))
			}
		}()
	}
	wg.Wait()

	all := make([]time.Duration, 0, ops)
	for _, s := range samples {
		all = append(all, s...)
	}
	return computeStats(time.Since(start), all, failures.Load())
}

func validateOp(ctx context.Context, engine *gateAuth.Engine, states []principalState) phaseOp {
	return func(_ int, r *rand.Rand) bool {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		access := state.access
		state.mu.Unlock()
		return engine.ValidateToken(ctx, access) != nil
	}
}

// refreshOp rotates under a per-principal lock so every failure is a real
// error rather than an expected race loss.
func refreshOp(ctx context.Context, engine *gateAuth.Engine, states []principalState) phaseOp {
	return func(worker int, r *rand.Rand) bool {
		ipCtx := gateAuth.WithClientIP(ctx, fmt.Sprintf("10.1.%d.%d", worker/256, worker%256))
		state := &states[r.Intn(len(states))]

		state.mu.Lock()
		defer state.mu.Unlock()
		res, err := engine.RefreshToken(ipCtx, state.refresh)
		if err != nil {
			return false
		}
		state.refresh, state.access = res.RefreshToken, res.AccessToken
		return true
	}
}

type raceResult struct {
	chains     int
	winners    int
	violations int
}

// runRacePhase presents the same refresh token from several goroutines at
// once. Exactly one rotation may succeed per token and the losers must see
// ErrTokenInactive. A loser arriving after the winner persisted counts as
// reuse, so the winner's successor may end up revoked as well.
func runRacePhase(ctx context.Context, engine *gateAuth.Engine, states []principalState, racers int) raceResult {
	var out raceResult
	for i := range states {
		token := states[i].refresh

		var (
			wg      sync.WaitGroup
			wins    int64
			unknown int64
			release = make(chan struct{})
		)
		for k := 0; k < racers; k++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-release
				_, err := engine.RefreshToken(ctx, token)
				switch {
				case err == nil:
					atomic.AddInt64(&wins, 1)
				case errors.Is(err, gateAuth.ErrTokenInactive):
				default:
					atomic.AddInt64(&unknown, 1)
				}
			}()
		}
		close(release)
		wg.Wait()

		out.chains++
		if wins == 1 && unknown == 0 {
			out.winners++
		} else {
			out.violations++
		}
	}
	return out
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	slices.Sort(samples)
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

// percentile expects samples sorted ascending.
func percentile(samples []time.Duration, p int) time.Duration {
	i := (len(samples) - 1) * min(max(p, 0), 100) / 100
	return samples[i]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
