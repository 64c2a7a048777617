package authcore

import (
	"time"

	"github.com/heartnote/authcore/token"
)

// SecurityReport summarizes the effective security posture of a Service.
type SecurityReport struct {
	SigningAlgorithm  string
	Issuer            string
	Audience          string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	Leeway            time.Duration
	Lockout           LockoutReport
	RateLimitBackend  string
	PasswordAlgorithm string
	AuditEnabled      bool
	MetricsEnabled    bool
}

type LockoutReport struct {
	Threshold int
	Window    time.Duration
	Cooldown  time.Duration
}

func (s *Service) SecurityReport() SecurityReport {
	if s == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm: token.Algorithm,
		Issuer:           s.config.JWT.Issuer,
		Audience:         s.config.JWT.Audience,
		AccessTTL:        s.config.JWT.AccessTTL,
		RefreshTTL:       s.config.JWT.RefreshTTL,
		Leeway:           s.config.JWT.Leeway,
		Lockout: LockoutReport{
			Threshold: s.config.Lockout.Threshold,
			Window:    s.config.Lockout.Window,
			Cooldown:  s.config.Lockout.Cooldown,
		},
		RateLimitBackend:  s.rateBackend,
		PasswordAlgorithm: s.hashAlgorithm,
		AuditEnabled:      s.audit != nil,
		MetricsEnabled:    s.metrics.Enabled(),
	}
}
