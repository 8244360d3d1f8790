package security

import (
	"strings"
	"testing"
	"time"
)

func baseInput() ReportInput {
	return ReportInput{
		SigningAlgorithm:        "HS256",
		AccessTTL:               15 * time.Minute,
		RefreshTTL:              7 * 24 * time.Hour,
		RetentionDays:           7,
		Password:                PasswordReport{Memory: 64 * 1024, Time: 3, Parallelism: 2},
		MaxLoginAttempts:        5,
		LoginCooldownDuration:   15 * time.Minute,
		MaxRefreshAttempts:      60,
		RefreshCooldownDuration: time.Minute,
		GrantCacheSize:          256,
		GrantCacheTTL:           30 * time.Second,
	}
}

func TestBuildReportDefaultsHaveNoWarnings(t *testing.T) {
	r := BuildReport(baseInput())
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", r.Warnings)
	}
	if !r.LoginThrottleActive || !r.RefreshThrottleActive || !r.PruningActive || !r.GrantCacheActive {
		t.Fatalf("unexpected flags %+v", r)
	}
	if r.IPThrottleActive {
		t.Fatal("ip throttle was not requested")
	}
}

func TestBuildReportWarnings(t *testing.T) {
	in := baseInput()
	in.MaxLoginAttempts = 0
	in.RetentionDays = 0
	in.AccessTTL = 2 * time.Hour
	in.Password.Memory = 8 * 1024
	in.AuditEnabled = true
	in.AuditDropIfFull = true

	r := BuildReport(in)
	joined := strings.Join(r.Warnings, "\n")
	for _, want := range []string{"login throttling", "pruning disabled", "access token ttl", "argon2 memory", "audit events"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing warning %q in %v", want, r.Warnings)
		}
	}
	if r.LoginThrottleActive || r.IPThrottleActive {
		t.Fatal("login throttle must be reported inactive")
	}
}

func TestBuildReportWarnsOnShortRetention(t *testing.T) {
	in := baseInput()
	in.RetentionDays = 2

	r := BuildReport(in)
	if !r.PruningActive {
		t.Fatal("pruning should be active")
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "shorter than refresh ttl") {
		t.Fatalf("expected retention warning, got %v", r.Warnings)
	}
}
