package gateAuth

import "github.com/MrEthical07/gateAuth/internal/security"

type SecurityReport = security.Report

// SecurityReport summarizes the engine's effective security settings.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	return security.BuildReport(security.ReportInput{
		SigningAlgorithm: "HS256",
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.Refresh.TTL,
		RetentionDays:    cfg.Refresh.RetentionDays,
		ReuseWindow:      cfg.Refresh.ReuseWindow,
		Password: security.PasswordReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
			MinLength:   cfg.Password.MinLength,
		},
		MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
		EnableIPThrottle:        cfg.Security.EnableIPThrottle,
		MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
		RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		GrantCacheSize:          cfg.Cache.GrantCacheSize,
		GrantCacheTTL:           cfg.Cache.GrantCacheTTL,
		AuditEnabled:            cfg.Audit.Enabled,
		AuditDropIfFull:         cfg.Audit.DropIfFull,
		AdminRole:               cfg.Accounts.AdminRole,
	})
}
