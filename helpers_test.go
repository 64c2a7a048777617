package authcore_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heartnote/authcore"
	"github.com/heartnote/authcore/clock"
	"github.com/heartnote/authcore/password"
	"github.com/heartnote/authcore/store/memory"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "correct-horse-battery"
)

var testStart = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// countingStore records how often the credential store is consulted.
type countingStore struct {
	authcore.CredentialStore
	lookups  atomic.Int64
	verifies atomic.Int64
}

func (c *countingStore) FindActiveUserByEmail(ctx context.Context, email string) (*authcore.UserCredential, error) {
	c.lookups.Add(1)
	return c.CredentialStore.FindActiveUserByEmail(ctx, email)
}

func (c *countingStore) VerifyPassword(ctx context.Context, u *authcore.UserCredential, pw string) (bool, error) {
	c.verifies.Add(1)
	return c.CredentialStore.VerifyPassword(ctx, u, pw)
}

// countingHasher records Verify calls made by the service itself.
type countingHasher struct {
	password.Hasher
	verifies atomic.Int64
}

func (c *countingHasher) Verify(pw, encoded string) (bool, error) {
	c.verifies.Add(1)
	return c.Hasher.Verify(pw, encoded)
}

func newCountingHasher(t *testing.T) *countingHasher {
	t.Helper()
	inner, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	return &countingHasher{Hasher: inner}
}

type harness struct {
	svc   *authcore.Service
	users *memory.Store
	store *countingStore
	clock *clock.Fake
	audit *authcore.ChannelSink
}

type harnessOption func(*authcore.Builder)

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte(testSecret)
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	clk := clock.NewFake(testStart)
	users := memory.New(hasher, clk)
	store := &countingStore{CredentialStore: users}
	sink := authcore.NewChannelSink(256)

	b := authcore.New().
		WithConfig(testConfig()).
		WithCredentialStore(store).
		WithRelationshipChecker(users).
		WithPasswordHasher(hasher).
		WithClock(clk).
		WithLogger(zaptest.NewLogger(t)).
		WithAuditSink(sink)
	for _, opt := range opts {
		opt(b)
	}

	svc, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(svc.Close)

	return &harness{svc: svc, users: users, store: store, clock: clk, audit: sink}
}

func (h *harness) addUser(t *testing.T, email string) *authcore.UserCredential {
	t.Helper()
	u, err := h.users.AddUser(context.Background(), email, testPassword, "Test User", "tester")
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	return u
}

// drainAudit waits for the dispatcher to deliver n events.
func (h *harness) drainAudit(t *testing.T, n int) []authcore.AuditEvent {
	t.Helper()
	out := make([]authcore.AuditEvent, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case e := <-h.audit.Events():
			out = append(out, e)
		case <-timeout:
			t.Fatalf("timed out waiting for audit events: got %d of %d", len(out), n)
		}
	}
	return out
}
