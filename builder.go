package gateAuth

import (
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/gateAuth/internal/audit"
	"github.com/MrEthical07/gateAuth/internal/rate"
	"github.com/MrEthical07/gateAuth/jwt"
	"github.com/MrEthical07/gateAuth/password"
	"github.com/MrEthical07/gateAuth/permission"
	"github.com/MrEthical07/gateAuth/refresh"
	"github.com/MrEthical07/gateAuth/tokenstore"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder assembles an [Engine]. Each Builder produces at most one Engine.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	identity  IdentityStore
	roles     RoleStore
	directory Directory
	hasher    password.Hasher

	logger    logrus.FieldLogger
	auditSink AuditSink

	now    func() time.Time
	random io.Reader

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing refresh-token storage and rate limits.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithIdentityStore(s IdentityStore) *Builder {
	b.identity = s
	return b
}

func (b *Builder) WithRoleStore(s RoleStore) *Builder {
	b.roles = s
	return b
}

// WithDirectory enables the account-management operations.
func (b *Builder) WithDirectory(d Directory) *Builder {
	b.directory = d
	return b
}

// WithPasswordHasher overrides the Argon2id/bcrypt hasher built from
// Config.Password. The same hasher should back the IdentityStore.
func (b *Builder) WithPasswordHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithLogger(log logrus.FieldLogger) *Builder {
	b.logger = log
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for token issuance and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithRandom replaces crypto/rand as the refresh-token entropy source.
func (b *Builder) WithRandom(r io.Reader) *Builder {
	b.random = r
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.identity == nil {
		return nil, errors.New("identity store required")
	}
	if b.roles == nil {
		return nil, errors.New("role store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	codec, err := jwt.NewCodec(jwt.Config{
		Secret:    cfg.JWT.Secret,
		AccessTTL: cfg.JWT.AccessTTL,
		Issuer:    cfg.JWT.Issuer,
		Leeway:    cfg.JWT.Leeway,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}

	hasher := b.hasher
	if hasher == nil {
		hasher, err = password.NewChain(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
	}

	// -------- REFRESH CHAIN --------
	store := tokenstore.NewStore(b.redis, cfg.Refresh.RedisPrefix)
	chain := refresh.NewChain(store, refresh.ChainConfig{
		TTL:    cfg.Refresh.TTL,
		Now:    now,
		Random: b.random,
	})

	engine := &Engine{
		config:    cfg,
		log:       logger,
		now:       now,
		codec:     codec,
		store:     store,
		chain:     chain,
		identity:  b.identity,
		roles:     b.roles,
		directory: b.directory,
		hasher:    hasher,
		grants:    permission.NewGrantCache(cfg.Cache.GrantCacheSize, cfg.Cache.GrantCacheTTL),
		metrics:   NewMetrics(cfg.Metrics),
	}

	engine.limiter = rate.New(b.redis, rate.Config{
		Prefix:                  cfg.Security.RateLimitPrefix,
		EnableIPThrottle:        cfg.Security.EnableIPThrottle,
		MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
		MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
		RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
	})
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.flows = engine.buildFlows()

	b.built = true

	return engine, nil
}
