package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters. A zero attempt budget
// disables the matching check.
type Config struct {
	Prefix                  string
	EnableIPThrottle        bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// bump increments KEYS[1] and starts its window on the first hit, in one
// round trip.
var bump = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Limiter enforces per-username and per-IP budgets for login and refresh.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "grl"
	}
	if cfg.LoginCooldownDuration <= 0 {
		cfg.LoginCooldownDuration = 15 * time.Minute
	}
	if cfg.RefreshCooldownDuration <= 0 {
		cfg.RefreshCooldownDuration = time.Minute
	}
	return &Limiter{redis: redisClient, config: cfg}
}

func (l *Limiter) key(kind, subject string) string {
	return l.config.Prefix + ":" + kind + ":" + subject
}

// loginKeys lists the counters a login for username from ip touches.
func (l *Limiter) loginKeys(username, ip string) []string {
	keys := []string{l.key("lu", strings.ToLower(username))}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, l.key("li", ip))
	}
	return keys
}

func (l *Limiter) loginEnabled() bool {
	return l != nil && l.config.MaxLoginAttempts > 0
}

// CheckLogin fails with ErrRateLimited once the username, or the client IP
// when IP throttling is on, has used up its failure budget. It only reads.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	if !l.loginEnabled() {
		return nil
	}

	vals, err := l.redis.MGet(ctx, l.loginKeys(username, ip)...).Result()
	if err != nil {
		return unavailable(err)
	}
	for _, v := range vals {
		if counterValue(v) >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin records a failed login attempt.
func (l *Limiter) IncrementLogin(ctx context.Context, username, ip string) error {
	if !l.loginEnabled() {
		return nil
	}
	for _, k := range l.loginKeys(username, ip) {
		if _, err := l.hit(ctx, k, l.config.LoginCooldownDuration); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the username counter after a successful login. The IP
// counter keeps running so a spray across accounts still trips it.
func (l *Limiter) ResetLogin(ctx context.Context, username string) error {
	if !l.loginEnabled() {
		return nil
	}
	if err := l.redis.Del(ctx, l.key("lu", strings.ToLower(username))).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// CheckRefresh counts a refresh attempt from ip and fails once the window
// budget is exceeded.
func (l *Limiter) CheckRefresh(ctx context.Context, ip string) error {
	if l == nil || l.config.MaxRefreshAttempts <= 0 || ip == "" {
		return nil
	}
	n, err := l.hit(ctx, l.key("r", ip), l.config.RefreshCooldownDuration)
	if err != nil {
		return err
	}
	if n > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

// LoginAttempts returns the current failure counter for username.
func (l *Limiter) LoginAttempts(ctx context.Context, username string) (int, error) {
	v, err := l.redis.Get(ctx, l.key("lu", strings.ToLower(username))).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return int(counterValue(v)), nil
}

func (l *Limiter) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := bump.Run(ctx, l.redis, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// counterValue reads an MGET/GET reply. Missing or garbled counters are zero.
func counterValue(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var n int64
	if _, err := fmt.Sscan(s, &n); err != nil || n < 0 {
		return 0
	}
	return n
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}
