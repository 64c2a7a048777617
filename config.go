package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/heartnote/authcore/internal/limiters"
	"github.com/heartnote/authcore/password"
	"github.com/heartnote/authcore/token"
)

const (
	// DefaultIssuer is the iss claim when Jwt:Issuer is not configured.
	DefaultIssuer = "heartnote-api"
	// DefaultAudience is the aud claim when Jwt:Audience is not configured.
	DefaultAudience = "heartnote-clients"

	DefaultAccessTTL  = 7 * 24 * time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Config is the full service configuration. Obtain one from DefaultConfig and
// override fields; Builder.WithConfig copies it.
type Config struct {
	JWT      JWTConfig
	Lockout  LockoutConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the HS256 signing parameters.
type JWTConfig struct {
	// Secret is the shared HMAC key, at least 32 bytes.
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Leeway tolerates clock skew on exp, nbf and iat.
	Leeway time.Duration
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig is the fixed-window brute-force policy: Threshold failures
// inside Window block the identity for Cooldown.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
	Cooldown  time.Duration
	// KeyPrefix namespaces keys when the rate limit store is Redis.
	KeyPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hash algorithm for new credentials. Verification
// accepts both bcrypt and argon2id encodings regardless of Algorithm.
type PasswordConfig struct {
	Algorithm  string
	BcryptCost int
	Argon2     password.Argon2Config
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the request when the buffer is full.
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. JWT.Secret is left empty and
// must be provided.
func DefaultConfig() Config {
	lockout := limiters.DefaultLockoutConfig()
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			Issuer:     DefaultIssuer,
			Audience:   DefaultAudience,
			AccessTTL:  DefaultAccessTTL,
			RefreshTTL: DefaultRefreshTTL,
		},
		Lockout: LockoutConfig{
			Threshold: lockout.Threshold,
			Window:    lockout.Window,
			Cooldown:  lockout.Cooldown,
			KeyPrefix: "authcore:",
		},
		Password: PasswordConfig{
			Algorithm:  pw.Algorithm,
			BcryptCost: pw.BcryptCost,
			Argon2:     pw.Argon2,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if len(cfg.JWT.Secret) > 0 {
		out.JWT.Secret = append([]byte(nil), cfg.JWT.Secret...)
	}
	return out
}

// Validate checks the configuration without building anything.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if len(c.JWT.Secret) < token.MinSecretLength {
		return fmt.Errorf("jwt secret must be at least %d bytes", token.MinSecretLength)
	}
	if c.JWT.Issuer == "" || c.JWT.Audience == "" {
		return errors.New("jwt issuer and audience are required")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("jwt TTLs must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("jwt refresh TTL must not be shorter than access TTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("jwt leeway must be between 0 and 2m")
	}

	if err := c.lockoutPolicy().Validate(); err != nil {
		return err
	}

	switch c.Password.Algorithm {
	case "", password.AlgorithmBcrypt, password.AlgorithmArgon2id:
	default:
		return fmt.Errorf("unknown password algorithm %q", c.Password.Algorithm)
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be > 0 when audit is enabled")
	}
	return nil
}

func (c *Config) lockoutPolicy() limiters.LockoutConfig {
	return limiters.LockoutConfig{
		Threshold: c.Lockout.Threshold,
		Window:    c.Lockout.Window,
		Cooldown:  c.Lockout.Cooldown,
	}
}

func (c *Config) tokenConfig() token.Config {
	return token.Config{
		Secret:     append([]byte(nil), c.JWT.Secret...),
		Issuer:     c.JWT.Issuer,
		Audience:   c.JWT.Audience,
		AccessTTL:  c.JWT.AccessTTL,
		RefreshTTL: c.JWT.RefreshTTL,
		Leeway:     c.JWT.Leeway,
	}
}

func (c *Config) passwordConfig() password.Config {
	return password.Config{
		Algorithm:  c.Password.Algorithm,
		BcryptCost: c.Password.BcryptCost,
		Argon2:     c.Password.Argon2,
	}
}
