package authcore

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/heartnote/authcore/clock"
	"github.com/heartnote/authcore/internal/audit"
	"github.com/heartnote/authcore/internal/limiters"
	"github.com/heartnote/authcore/internal/metrics"
	"github.com/heartnote/authcore/password"
	"github.com/heartnote/authcore/ratelimit"
	"github.com/heartnote/authcore/token"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	backendMemory = "memory"
	backendRedis  = "redis"
	backendCustom = "custom"
)

// Builder assembles a Service. A Builder is single-use: configure it during
// initialization, call Build once, then discard it.
type Builder struct {
	config Config

	credentials   CredentialStore
	relationships RelationshipChecker

	rateStore ratelimit.Store
	redis     redis.UniversalClient

	clock     clock.Clock
	logger    *zap.Logger
	auditSink AuditSink
	hasher    password.Hasher

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentialStore sets the user store. Required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithRelationshipChecker sets the optional relationship lookup used to fill
// LoginResult.HasRelationship.
func (b *Builder) WithRelationshipChecker(checker RelationshipChecker) *Builder {
	b.relationships = checker
	return b
}

// WithRateLimitStore sets the lockout store. Without it (and without
// WithRedis) an in-process ratelimit.MemoryStore is used.
func (b *Builder) WithRateLimitStore(store ratelimit.Store) *Builder {
	b.rateStore = store
	return b
}

// WithRedis keeps lockout state in Redis under Config.Lockout.KeyPrefix.
// WithRateLimitStore takes precedence.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithClock injects the time source used by tokens and lockout expiry.
func (b *Builder) WithClock(clk clock.Clock) *Builder {
	b.clock = clk
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithPasswordHasher overrides the hasher used by Register. Stores verify
// with their own hasher.
func (b *Builder) WithPasswordHasher(h password.Hasher) *Builder {
	b.hasher = h
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

// Build validates the configuration and wires the Service.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}

	clk := clock.OrSystem(b.clock)
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// -------- RATE LIMIT STORE --------
	rateStore, backend := b.rateStore, backendCustom
	switch {
	case rateStore != nil:
	case b.redis != nil:
		rateStore, backend = ratelimit.NewRedisStore(b.redis, clk, cfg.Lockout.KeyPrefix), backendRedis
	default:
		rateStore, backend = ratelimit.NewMemoryStore(clk), backendMemory
	}

	guard, err := limiters.NewLoginGuard(rateStore, clk, cfg.lockoutPolicy())
	if err != nil {
		return nil, err
	}

	// -------- TOKENS / PASSWORDS --------
	codec, err := token.NewCodec(cfg.tokenConfig(), clk)
	if err != nil {
		return nil, err
	}

	hasher := b.hasher
	hashAlgorithm := backendCustom
	if named, ok := hasher.(interface{ Algorithm() string }); ok {
		hashAlgorithm = named.Algorithm()
	}
	if hasher == nil {
		multi, err := password.New(cfg.passwordConfig())
		if err != nil {
			return nil, err
		}
		hasher, hashAlgorithm = multi, multi.Algorithm()
	}
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}

	svc := &Service{
		config:        cfg,
		clock:         clk,
		logger:        logger,
		credentials:   b.credentials,
		relationships: b.relationships,
		rateStore:     rateStore,
		rateBackend:   backend,
		guard:         guard,
		codec:         codec,
		hasher:        hasher,
		hashAlgorithm: hashAlgorithm,
		dummyHash:     dummyHash,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		metrics: metrics.New(metrics.Config{
			Enabled:                 cfg.Metrics.Enabled,
			EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
		}),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink, logger),
	}
	svc.flows = svc.buildFlows()

	b.built = true

	return svc, nil
}
