// Command authcore-loadtest drives the service in-process and checks that
// concurrent failures lock each identity exactly once.
//
//	go run ./cmd/authcore-loadtest -backend redis -identities 200 -attempts 20
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/heartnote/authcore"
	"github.com/heartnote/authcore/clock"
	"github.com/heartnote/authcore/password"
	"github.com/heartnote/authcore/store/memory"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	loadSecret   = "loadtest-secret-0123456789abcdef-0123"
	loadPassword = "loadtest-password"
)

func main() {
	var (
		backend     = flag.String("backend", "memory", "rate limit backend: memory or redis")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		identities  = flag.Int("identities", 100, "identities attacked in the lockout phase")
		attempts    = flag.Int("attempts", 20, "concurrent wrong-password logins per identity")
		concurrency = flag.Int("concurrency", 256, "workers in the validate and refresh phases")
		ops         = flag.Int("ops", 100000, "operations per validate/refresh phase")
	)
	flag.Parse()

	if *identities <= 0 || *attempts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "identities, attempts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		fail("hasher: %v", err)
	}
	users := memory.New(hasher, clock.System{})

	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte(loadSecret)
	cfg.Metrics.EnableLatencyHistograms = true

	b := authcore.New().
		WithConfig(cfg).
		WithCredentialStore(users).
		WithPasswordHasher(hasher).
		WithLogger(zap.NewNop())

	if *backend == "redis" {
		client, cleanup := redisClient(*redisAddr)
		defer cleanup()
		b.WithRedis(client)
	} else if *backend != "memory" {
		fail("unknown backend %q", *backend)
	}

	svc, err := b.Build()
	if err != nil {
		fail("build: %v", err)
	}
	defer svc.Close()
	fmt.Printf("rate limit backend: %s\n", svc.SecurityReport().RateLimitBackend)

	emails := make([]string, *identities)
	for i := range emails {
		emails[i] = fmt.Sprintf("user-%d@load.test", i)
		if _, err := users.AddUser(ctx, emails[i], loadPassword, "Load User", ""); err != nil {
			fail("seed: %v", err)
		}
	}

	lockStats := runLockoutPhase(ctx, svc, emails, *attempts)
	snap := svc.MetricsSnapshot()
	threshold := uint64(cfg.Lockout.Threshold)
	expectedLocks := uint64(len(emails))
	if *attempts < cfg.Lockout.Threshold {
		expectedLocks = 0
	}

	tokens, err := svc.Login(ctx, emails[0], loadPassword)
	if errors.Is(err, authcore.ErrAccountLocked) {
		if err := svc.UnlockAccount(ctx, emails[0]); err != nil {
			fail("unlock: %v", err)
		}
		tokens, err = svc.Login(ctx, emails[0], loadPassword)
	}
	if err != nil {
		fail("login: %v", err)
	}

	validateStats := runPhase(*ops, *concurrency, func() error {
		_, err := svc.Validate(ctx, tokens.Tokens.AccessToken)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, func() error {
		_, err := svc.Refresh(ctx, tokens.Tokens.RefreshToken)
		return err
	})

	fmt.Println("---- results ----")
	printStats("lockout", lockStats)
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)

	locks := snap.Counters[authcore.MetricLockoutTriggered]
	failures := snap.Counters[authcore.MetricLoginFailure]
	fmt.Printf("lockouts=%d (want %d) counted failures=%d (want <= %d)\n",
		locks, expectedLocks, failures, threshold*uint64(len(emails)))
	if locks != expectedLocks || failures > threshold*uint64(len(emails)) {
		fail("lockout invariant violated")
	}
}

// runLockoutPhase fires attempts concurrent wrong-password logins at every
// identity at once.
func runLockoutPhase(ctx context.Context, svc *authcore.Service, emails []string, attempts int) phaseStats {
	var (
		wg        sync.WaitGroup
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, len(emails)*attempts)
	)

	start := time.Now()
	for _, email := range emails {
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(email string) {
				defer wg.Done()
				t0 := time.Now()
				_, err := svc.Login(ctx, email, "wrong-password")
				d := time.Since(t0)
				if err != nil && !errors.Is(err, authcore.ErrInvalidCredentials) && !errors.Is(err, authcore.ErrAccountLocked) {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}(email)
		}
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func runPhase(ops, concurrency int, op func() error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op()
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func redisClient(addr string) (redis.UniversalClient, func()) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }
	}

	mr, err := miniredis.Run()
	if err != nil {
		fail("start miniredis: %v", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d errors=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
