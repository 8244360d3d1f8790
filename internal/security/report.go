package security

import (
	"fmt"
	"time"
)

// PasswordReport mirrors the Argon2id parameters new hashes are created with.
type PasswordReport struct {
	Memory      uint32 `json:"memoryKiB"`
	Time        uint32 `json:"time"`
	Parallelism uint8  `json:"parallelism"`
	SaltLength  uint32 `json:"saltLength"`
	KeyLength   uint32 `json:"keyLength"`
	MinLength   int    `json:"minLength"`
}

type Report struct {
	SigningAlgorithm      string         `json:"signingAlgorithm"`
	AccessTTL             time.Duration  `json:"accessTTL"`
	RefreshTTL            time.Duration  `json:"refreshTTL"`
	RetentionDays         int            `json:"retentionDays"`
	PruningActive         bool           `json:"pruningActive"`
	ReuseWindow           time.Duration  `json:"reuseWindow"`
	Argon2                PasswordReport `json:"argon2"`
	LoginThrottleActive   bool           `json:"loginThrottleActive"`
	IPThrottleActive      bool           `json:"ipThrottleActive"`
	RefreshThrottleActive bool           `json:"refreshThrottleActive"`
	GrantCacheActive      bool           `json:"grantCacheActive"`
	AuditActive           bool           `json:"auditActive"`
	AdminRole             string         `json:"adminRole"`
	Warnings              []string       `json:"warnings,omitempty"`
}

type ReportInput struct {
	SigningAlgorithm        string
	AccessTTL               time.Duration
	RefreshTTL              time.Duration
	RetentionDays           int
	ReuseWindow             time.Duration
	Password                PasswordReport
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	EnableIPThrottle        bool
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
	GrantCacheSize          int
	GrantCacheTTL           time.Duration
	AuditEnabled            bool
	AuditDropIfFull         bool
	AdminRole               string
}

const (
	recommendedMemoryKiB = 64 * 1024
	maxAccessTTL         = time.Hour
)

// BuildReport derives the posture flags and warnings for input.
func BuildReport(input ReportInput) Report {
	loginThrottle := input.MaxLoginAttempts > 0 && input.LoginCooldownDuration > 0
	refreshThrottle := input.MaxRefreshAttempts > 0 && input.RefreshCooldownDuration > 0

	r := Report{
		SigningAlgorithm:      input.SigningAlgorithm,
		AccessTTL:             input.AccessTTL,
		RefreshTTL:            input.RefreshTTL,
		RetentionDays:         input.RetentionDays,
		PruningActive:         input.RetentionDays > 0,
		ReuseWindow:           input.ReuseWindow,
		Argon2:                input.Password,
		LoginThrottleActive:   loginThrottle,
		IPThrottleActive:      loginThrottle && input.EnableIPThrottle,
		RefreshThrottleActive: refreshThrottle,
		GrantCacheActive:      input.GrantCacheSize > 0 && input.GrantCacheTTL > 0,
		AuditActive:           input.AuditEnabled,
		AdminRole:             input.AdminRole,
	}

	if !loginThrottle {
		r.Warnings = append(r.Warnings, "login throttling disabled")
	}
	if !refreshThrottle {
		r.Warnings = append(r.Warnings, "refresh throttling disabled")
	}
	if !r.PruningActive {
		r.Warnings = append(r.Warnings, "refresh token pruning disabled; collections grow without bound")
	} else if retention := time.Duration(input.RetentionDays) * 24 * time.Hour; retention < input.RefreshTTL {
		r.Warnings = append(r.Warnings, fmt.Sprintf("retention %s shorter than refresh ttl %s; replayed tokens may go undetected", retention, input.RefreshTTL))
	}
	if input.AccessTTL > maxAccessTTL {
		r.Warnings = append(r.Warnings, fmt.Sprintf("access token ttl %s exceeds %s", input.AccessTTL, maxAccessTTL))
	}
	if input.Password.Memory < recommendedMemoryKiB {
		r.Warnings = append(r.Warnings, fmt.Sprintf("argon2 memory %d KiB below recommended %d KiB", input.Password.Memory, recommendedMemoryKiB))
	}
	if input.AuditEnabled && input.AuditDropIfFull {
		r.Warnings = append(r.Warnings, "audit events are dropped when the buffer is full")
	}

	return r
}
