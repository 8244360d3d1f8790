package gateAuth

import (
	"errors"
	"time"
)

// Config is the complete Engine configuration. Obtain defaults with
// [DefaultConfig] and override what you need before passing it to
// [Builder.WithConfig].
type Config struct {
	JWT      JWTConfig
	Refresh  RefreshConfig
	Password PasswordConfig
	Security SecurityConfig
	Accounts AccountsConfig
	Cache    CacheConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access-token signing. Secret is the HS256 key and must
// be at least 32 bytes.
type JWTConfig struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Leeway    time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls refresh-token lifetime and storage.
type RefreshConfig struct {
	TTL time.Duration
	// RetentionDays keeps inactive tokens this many days after creation.
	// Zero disables pruning. A nonzero value must span at least TTL, or a
	// rotated token could be pruned before its replay is detected.
	RetentionDays     int
	MaxPersistRetries int
	RedisPrefix       string
	// ReuseWindow is the window over which reuse detections are counted per
	// principal.
	ReuseWindow time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters for new hashes.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls Redis-backed throttling. A zero attempt budget
// disables the matching limiter.
type SecurityConfig struct {
	RateLimitPrefix         string
	EnableIPThrottle        bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

/*
====================================
ACCOUNTS CONFIG
====================================
*/

// AccountsConfig controls user and role management.
type AccountsConfig struct {
	// AdminRole is granted to the first principal and receives every
	// transaction on SyncAdminGrants.
	AdminRole         string
	MinRoleNameLength int
}

// CacheConfig sizes the role grant cache. Size 0 disables it.
type CacheConfig struct {
	GrantCacheSize int
	GrantCacheTTL  time.Duration
}

// AuditConfig controls audit dispatch buffering.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. The JWT secret is left
// empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
		},
		Refresh: RefreshConfig{
			TTL:               7 * 24 * time.Hour,
			RetentionDays:     0,
			MaxPersistRetries: 32,
			RedisPrefix:       "grt",
			ReuseWindow:       24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
		},
		Security: SecurityConfig{
			RateLimitPrefix:         "grl",
			EnableIPThrottle:        true,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      60,
			RefreshCooldownDuration: time.Minute,
		},
		Accounts: AccountsConfig{
			AdminRole:         "Admin",
			MinRoleNameLength: 4,
		},
		Cache: CacheConfig{
			GrantCacheSize: 256,
			GrantCacheTTL:  30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the Engine cannot run safely with.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT Secret must be at least 32 bytes")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.RetentionDays < 0 {
		return errors.New("Refresh RetentionDays must be >= 0")
	}
	if c.Refresh.RetentionDays > 0 && time.Duration(c.Refresh.RetentionDays)*24*time.Hour < c.Refresh.TTL {
		return errors.New("Refresh RetentionDays must be 0 or span at least the refresh TTL")
	}
	if c.Refresh.MaxPersistRetries <= 0 {
		return errors.New("Refresh MaxPersistRetries must be > 0")
	}
	if c.Refresh.RedisPrefix == "" {
		return errors.New("Refresh RedisPrefix must be set")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KiB")
	}
	if c.Password.Time < 1 || c.Password.Parallelism < 1 {
		return errors.New("Password Time and Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
		return errors.New("Password SaltLength and KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 || c.Security.MaxRefreshAttempts < 0 {
		return errors.New("Security attempt budgets must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0 when login throttling is enabled")
	}
	if c.Security.MaxRefreshAttempts > 0 && c.Security.RefreshCooldownDuration <= 0 {
		return errors.New("Security RefreshCooldownDuration must be > 0 when refresh throttling is enabled")
	}

	// Accounts
	if c.Accounts.AdminRole == "" {
		return errors.New("Accounts AdminRole must be set")
	}
	if c.Accounts.MinRoleNameLength < 1 {
		return errors.New("Accounts MinRoleNameLength must be >= 1")
	}

	// Cache
	if c.Cache.GrantCacheSize < 0 {
		return errors.New("Cache GrantCacheSize must be >= 0")
	}
	if c.Cache.GrantCacheSize > 0 && c.Cache.GrantCacheTTL <= 0 {
		return errors.New("Cache GrantCacheTTL must be > 0 when the cache is enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
