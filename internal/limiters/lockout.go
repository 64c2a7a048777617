package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/heartnote/authcore/clock"
	"github.com/heartnote/authcore/ratelimit"
)

// LockoutConfig holds the fixed-window lockout policy.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
	Cooldown  time.Duration
}

// DefaultLockoutConfig is five failures in fifteen minutes, then a fifteen minute block.
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		Threshold: 5,
		Window:    15 * time.Minute,
		Cooldown:  15 * time.Minute,
	}
}

// Validate rejects non-positive policy values.
func (c LockoutConfig) Validate() error {
	if c.Threshold < 1 {
		return errors.New("lockout threshold must be >= 1")
	}
	if c.Window <= 0 || c.Cooldown <= 0 {
		return errors.New("lockout window and cooldown must be > 0")
	}
	return nil
}

const (
	failureKeyPrefix = "lf:"
	blockKeyPrefix   = "lb:"

	lockStripes = 256
)

// FailureOutcome describes what a recorded failure did.
//
// Exactly one of the following holds: AlreadyBlocked (nothing was counted),
// Locked (this failure crossed the threshold), or neither (counted, still open).
type FailureOutcome struct {
	Count            int64
	Locked           bool
	AlreadyBlocked   bool
	MinutesRemaining int
}

// LoginGuard tracks failed logins per normalized email and blocks an identity
// once the threshold is reached inside the window.
//
// Each identity's check-increment-block sequence runs under a striped mutex so
// concurrent failures produce one block and never over-count. The mutex is
// per process: guards in different processes over one Redis keyspace share
// counters, but each may write its own block. Store calls are the only work
// done under that mutex.
type LoginGuard struct {
	store  ratelimit.Store
	clock  clock.Clock
	config LockoutConfig
	locks  [lockStripes]sync.Mutex
}

// NewLoginGuard returns a guard over store. cfg must pass Validate.
func NewLoginGuard(store ratelimit.Store, clk clock.Clock, cfg LockoutConfig) (*LoginGuard, error) {
	if store == nil {
		return nil, errors.New("login guard requires a rate limit store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LoginGuard{store: store, clock: clock.OrSystem(clk), config: cfg}, nil
}

// NormalizeIdentity trims and lowercases an email.
func NormalizeIdentity(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func failureKey(identity string) string { return failureKeyPrefix + identity }
func blockKey(identity string) string   { return blockKeyPrefix + identity }

func (g *LoginGuard) lockFor(identity string) *sync.Mutex {
	return &g.locks[xxhash.Sum64String(identity)%lockStripes]
}

// CheckBlocked reports whether identity is currently blocked and for how many
// whole minutes (rounded up).
func (g *LoginGuard) CheckBlocked(ctx context.Context, email string) (int, bool, error) {
	identity := NormalizeIdentity(email)
	until, live, err := g.store.GetIfLive(ctx, blockKey(identity))
	if err != nil {
		return 0, false, fmt.Errorf("read block record: %w", err)
	}
	if !live {
		return 0, false, nil
	}
	return g.minutesUntil(until), true, nil
}

// RecordFailure counts one failed attempt. It never counts while a block is
// live, and performs the open-to-blocked transition at most once per window.
func (g *LoginGuard) RecordFailure(ctx context.Context, email string) (FailureOutcome, error) {
	identity := NormalizeIdentity(email)
	mu := g.lockFor(identity)
	mu.Lock()
	defer mu.Unlock()

	until, live, err := g.store.GetIfLive(ctx, blockKey(identity))
	if err != nil {
		return FailureOutcome{}, fmt.Errorf("read block record: %w", err)
	}
	if live {
		return FailureOutcome{AlreadyBlocked: true, MinutesRemaining: g.minutesUntil(until)}, nil
	}

	count, err := g.store.Increment(ctx, failureKey(identity), g.config.Window)
	if err != nil {
		return FailureOutcome{}, fmt.Errorf("increment failure counter: %w", err)
	}
	if count < int64(g.config.Threshold) {
		return FailureOutcome{Count: count}, nil
	}

	blockedUntil := g.clock.Now().Add(g.config.Cooldown)
	if err := g.store.SetWithTTL(ctx, blockKey(identity), blockedUntil.UnixMilli(), g.config.Cooldown); err != nil {
		return FailureOutcome{}, fmt.Errorf("write block record: %w", err)
	}
	if err := g.store.Reset(ctx, failureKey(identity)); err != nil {
		return FailureOutcome{}, fmt.Errorf("reset failure counter: %w", err)
	}
	return FailureOutcome{
		Count:            count,
		Locked:           true,
		MinutesRemaining: g.minutesUntil(blockedUntil.UnixMilli()),
	}, nil
}

// RecordSuccess clears the failure counter.
func (g *LoginGuard) RecordSuccess(ctx context.Context, email string) error {
	if err := g.store.Reset(ctx, failureKey(NormalizeIdentity(email))); err != nil {
		return fmt.Errorf("reset failure counter: %w", err)
	}
	return nil
}

// FailureCount returns the failures recorded in the current window.
func (g *LoginGuard) FailureCount(ctx context.Context, email string) (int64, error) {
	count, _, err := g.store.Get(ctx, failureKey(NormalizeIdentity(email)))
	if err != nil {
		return 0, fmt.Errorf("read failure counter: %w", err)
	}
	return count, nil
}

// Unlock clears both the block record and the failure counter.
func (g *LoginGuard) Unlock(ctx context.Context, email string) error {
	identity := NormalizeIdentity(email)
	mu := g.lockFor(identity)
	mu.Lock()
	defer mu.Unlock()

	if err := g.store.Reset(ctx, blockKey(identity)); err != nil {
		return fmt.Errorf("clear block record: %w", err)
	}
	if err := g.store.Reset(ctx, failureKey(identity)); err != nil {
		return fmt.Errorf("reset failure counter: %w", err)
	}
	return nil
}

// Config returns the active policy.
func (g *LoginGuard) Config() LockoutConfig { return g.config }

func (g *LoginGuard) minutesUntil(blockedUntilMs int64) int {
	remaining := time.Duration(blockedUntilMs-g.clock.Now().UnixMilli()) * time.Millisecond
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Minute - 1) / time.Minute)
}
