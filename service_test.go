package authcore_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/heartnote/authcore"
)

func TestLockoutScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "a@x.com")

	for i := 1; i <= 5; i++ {
		if _, err := h.svc.Login(ctx, "a@x.com", "wrong-password"); !errors.Is(err, authcore.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	_, err := h.svc.Login(ctx, "a@x.com", testPassword)
	var locked *authcore.AccountLockedError
	if !errors.As(err, &locked) || !errors.Is(err, authcore.ErrAccountLocked) {
		t.Fatalf("expected AccountLockedError, got %v", err)
	}
	if locked.MinutesRemaining != 15 {
		t.Fatalf("expected 15 minutes remaining, got %d", locked.MinutesRemaining)
	}

	h.clock.Advance(16 * time.Minute)
	res, err := h.svc.Login(ctx, "a@x.com", testPassword)
	if err != nil {
		t.Fatalf("expected login after cooldown, got %v", err)
	}
	if want := h.clock.Now().Add(7 * 24 * time.Hour); !res.Tokens.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", res.Tokens.ExpiresAt, want)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
}

func TestLoginThresholdSkipsCredentialCheck(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "p1@x.com")

	for i := 0; i < 5; i++ {
		_, _ = h.svc.Login(ctx, "p1@x.com", "wrong-password")
	}
	lookups, verifies := h.store.lookups.Load(), h.store.verifies.Load()

	if _, err := h.svc.Login(ctx, "p1@x.com", testPassword); !errors.Is(err, authcore.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
	if h.store.lookups.Load() != lookups || h.store.verifies.Load() != verifies {
		t.Fatal("a blocked login must not reach the credential store")
	}
}

func TestCooldownExpiryLeavesCounterAtZero(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "p2@x.com")

	for i := 0; i < 5; i++ {
		_, _ = h.svc.Login(ctx, "p2@x.com", "wrong-password")
	}
	h.clock.Advance(15*time.Minute + time.Second)

	if _, err := h.svc.Login(ctx, "p2@x.com", testPassword); err != nil {
		t.Fatalf("expected success after cooldown, got %v", err)
	}
	failures, minutes, err := h.svc.LoginAttempts(ctx, "p2@x.com")
	if err != nil || failures != 0 || minutes != 0 {
		t.Fatalf("expected clean state, got failures=%d minutes=%d err=%v", failures, minutes, err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "p3@x.com")

	for i := 0; i < 4; i++ {
		_, _ = h.svc.Login(ctx, "p3@x.com", "wrong-password")
	}
	if _, err := h.svc.Login(ctx, "p3@x.com", testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	_, _ = h.svc.Login(ctx, "p3@x.com", "wrong-password")

	failures, _, err := h.svc.LoginAttempts(ctx, "p3@x.com")
	if err != nil || failures != 1 {
		t.Fatalf("expected count restart at 1, got %d (%v)", failures, err)
	}
}

func TestUnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "known@x.com")

	_, errUnknown := h.svc.Login(ctx, "ghost@x.com", testPassword)
	_, errWrong := h.svc.Login(ctx, "known@x.com", "wrong-password")

	if !errors.Is(errUnknown, authcore.ErrInvalidCredentials) || !errors.Is(errWrong, authcore.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("error text differs: %q vs %q", errUnknown, errWrong)
	}

	unknownCount, _, _ := h.svc.LoginAttempts(ctx, "ghost@x.com")
	wrongCount, _, _ := h.svc.LoginAttempts(ctx, "known@x.com")
	if unknownCount != 1 || wrongCount != 1 {
		t.Fatalf("expected identical store effect, got %d and %d", unknownCount, wrongCount)
	}
}

func TestUnknownEmailStillComparesAHash(t *testing.T) {
	ctx := context.Background()
	hasher := newCountingHasher(t)
	h := newHarness(t, func(b *authcore.Builder) { b.WithPasswordHasher(hasher) })

	if _, err := h.svc.Login(ctx, "ghost@x.com", "anything"); !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := hasher.verifies.Load(); got != 1 {
		t.Fatalf("expected one dummy compare for an unknown email, got %d", got)
	}
	if got := h.store.verifies.Load(); got != 0 {
		t.Fatalf("credential store must not verify an unknown email, got %d", got)
	}
}

func TestUnknownEmailLocksOut(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for i := 0; i < 5; i++ {
		_, _ = h.svc.Login(ctx, "ghost@x.com", "anything")
	}
	if _, err := h.svc.Login(ctx, "ghost@x.com", "anything"); !errors.Is(err, authcore.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked for unknown identity, got %v", err)
	}
}

func TestInactiveAccountIsNotCounted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "sleepy@x.com")
	if err := h.users.SetActive(u.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	for i := 0; i < 6; i++ {
		if _, err := h.svc.Login(ctx, "sleepy@x.com", testPassword); !errors.Is(err, authcore.ErrAccountInactive) {
			t.Fatalf("attempt %d: expected ErrAccountInactive, got %v", i, err)
		}
	}
	if failures, _, _ := h.svc.LoginAttempts(ctx, "sleepy@x.com"); failures != 0 {
		t.Fatalf("inactive logins must not count, got %d", failures)
	}

	if _, err := h.svc.Login(ctx, "sleepy@x.com", "wrong-password"); !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("wrong password on inactive account must look like any failure, got %v", err)
	}
}

func TestLoginNormalizesEmail(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "mixed@x.com")

	for i := 0; i < 5; i++ {
		_, _ = h.svc.Login(ctx, "  MIXED@x.com", "wrong-password")
	}
	if _, err := h.svc.Login(ctx, "mixed@X.COM ", testPassword); !errors.Is(err, authcore.ErrAccountLocked) {
		t.Fatalf("expected case-insensitive lockout, got %v", err)
	}
}

func TestLoginReportsRelationship(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "pair@x.com")
	h.users.SetRelationship(u.ID, true)

	res, err := h.svc.Login(ctx, "pair@x.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.HasRelationship || res.UserID != u.ID || res.Nickname != "tester" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCancelledLoginLeavesNoState(t *testing.T) {
	h := newHarness(t)
	h.addUser(t, "gone@x.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.svc.Login(ctx, "gone@x.com", "wrong-password"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if failures, _, _ := h.svc.LoginAttempts(context.Background(), "gone@x.com"); failures != 0 {
		t.Fatalf("cancelled attempt was counted: %d", failures)
	}
}

func TestRegisterSignsIn(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	res, err := h.svc.Register(ctx, authcore.RegisterRequest{
		Email:    " New@X.com",
		Password: testPassword,
		Name:     "New User",
		Nickname: "newbie",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Email != "new@x.com" || res.UserID == "" || res.Tokens.AccessToken == "" {
		t.Fatalf("unexpected result %+v", res)
	}

	if _, err := h.svc.Login(ctx, "new@x.com", testPassword); err != nil {
		t.Fatalf("login after register: %v", err)
	}

	_, err = h.svc.Register(ctx, authcore.RegisterRequest{Email: "new@x.com", Password: testPassword, Name: "Again"})
	if !errors.Is(err, authcore.ErrEmailAlreadyInUse) {
		t.Fatalf("expected ErrEmailAlreadyInUse, got %v", err)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	bad := []authcore.RegisterRequest{
		{Email: "not-an-email", Password: testPassword, Name: "X"},
		{Email: "short@x.com", Password: "short", Name: "X"},
		{Email: "long@x.com", Password: strings.Repeat("a", 73), Name: "X"},
		{Email: "noname@x.com", Password: testPassword},
	}
	for _, req := range bad {
		if _, err := h.svc.Register(ctx, req); !errors.Is(err, authcore.ErrInvalidRegistration) {
			t.Fatalf("expected ErrInvalidRegistration for %q, got %v", req.Email, err)
		}
	}
	if h.users.Len() != 0 {
		t.Fatalf("invalid requests created %d users", h.users.Len())
	}
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "typed@x.com")

	res, err := h.svc.Login(ctx, "typed@x.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := h.svc.Validate(ctx, res.Tokens.RefreshToken); !errors.Is(err, authcore.ErrWrongTokenType) {
		t.Fatalf("Validate(refresh): expected ErrWrongTokenType, got %v", err)
	}
	if _, err := h.svc.Refresh(ctx, res.Tokens.AccessToken); !errors.Is(err, authcore.ErrWrongTokenType) {
		t.Fatalf("Refresh(access): expected ErrWrongTokenType, got %v", err)
	}

	p, err := h.svc.Validate(ctx, res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.UserID != res.UserID || p.Email != "typed@x.com" || p.Nickname != "tester" || p.TokenID == "" {
		t.Fatalf("unexpected principal %+v", p)
	}
	if !p.ExpiresAt.Equal(res.Tokens.ExpiresAt) {
		t.Fatalf("principal expiry %v, want %v", p.ExpiresAt, res.Tokens.ExpiresAt)
	}

	pair, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.AccessToken == res.Tokens.AccessToken {
		t.Fatal("expected a new access token")
	}
	if _, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh tokens are not single use: %v", err)
	}
}

func TestExpiredTokensAreRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "old@x.com")

	res, err := h.svc.Login(ctx, "old@x.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	h.clock.Advance(7*24*time.Hour + time.Second)
	if _, err := h.svc.Validate(ctx, res.Tokens.AccessToken); !errors.Is(err, authcore.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired for access, got %v", err)
	}
	if _, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh token should still be live: %v", err)
	}

	h.clock.Advance(30 * 24 * time.Hour)
	if _, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, authcore.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired for refresh, got %v", err)
	}
}

func TestMalformedAndForeignTokens(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "sig@x.com")

	res, err := h.svc.Login(ctx, "sig@x.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	other := newHarness(t, func(b *authcore.Builder) {
		cfg := testConfig()
		cfg.JWT.Secret = []byte(strings.Repeat("z", 32))
		b.WithConfig(cfg)
	})

	cases := map[string]string{
		"garbage":      "not.a.jwt",
		"empty":        "",
		"foreign key":  res.Tokens.AccessToken,
		"tampered sig": res.Tokens.AccessToken[:len(res.Tokens.AccessToken)-2] + "xx",
	}
	for name, tok := range cases {
		svc := h.svc
		if name == "foreign key" {
			svc = other.svc
		}
		if _, err := svc.Validate(ctx, tok); !errors.Is(err, authcore.ErrTokenMalformed) {
			t.Fatalf("%s: expected ErrTokenMalformed, got %v", name, err)
		}
	}
}

func TestDeactivatedUserTokensStopWorking(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "leaver@x.com")

	res, err := h.svc.Login(ctx, "leaver@x.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := h.users.SoftDelete(u.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	if _, err := h.svc.Validate(ctx, res.Tokens.AccessToken); !errors.Is(err, authcore.ErrUserNotFoundOrInactive) {
		t.Fatalf("Validate: expected ErrUserNotFoundOrInactive, got %v", err)
	}
	if _, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, authcore.ErrUserNotFoundOrInactive) {
		t.Fatalf("Refresh: expected ErrUserNotFoundOrInactive, got %v", err)
	}
}

func TestLogoutNeverFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "bye@x.com")
	res, _ := h.svc.Login(ctx, "bye@x.com", testPassword)

	for _, tok := range []string{res.Tokens.RefreshToken, "", "garbage"} {
		if err := h.svc.Logout(ctx, tok); err != nil {
			t.Fatalf("Logout(%q): %v", tok, err)
		}
	}
	if got := h.svc.MetricsSnapshot().Counters[authcore.MetricLogout]; got != 3 {
		t.Fatalf("expected 3 logouts counted, got %d", got)
	}
}

func TestUnlockAccount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "help@x.com")

	for i := 0; i < 5; i++ {
		_, _ = h.svc.Login(ctx, "help@x.com", "wrong-password")
	}
	if _, minutes, _ := h.svc.LoginAttempts(ctx, "help@x.com"); minutes != 15 {
		t.Fatalf("expected 15 minutes remaining, got %d", minutes)
	}
	if err := h.svc.UnlockAccount(ctx, "HELP@x.com"); err != nil {
		t.Fatalf("UnlockAccount: %v", err)
	}
	if _, err := h.svc.Login(ctx, "help@x.com", testPassword); err != nil {
		t.Fatalf("expected login after unlock, got %v", err)
	}
}

func TestZeroServiceIsNotReady(t *testing.T) {
	var svc *authcore.Service
	ctx := context.Background()
	if _, err := svc.Login(ctx, "a@x.com", "pw"); !errors.Is(err, authcore.ErrServiceNotReady) {
		t.Fatalf("expected ErrServiceNotReady, got %v", err)
	}
	if _, err := (&authcore.Service{}).Validate(ctx, "t"); !errors.Is(err, authcore.ErrServiceNotReady) {
		t.Fatalf("expected ErrServiceNotReady, got %v", err)
	}
}

func TestMetricsCountOutcomes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "m@x.com")

	for i := 0; i < 6; i++ {
		_, _ = h.svc.Login(ctx, "m@x.com", "wrong-password")
	}
	h.clock.Advance(16 * time.Minute)
	res, _ := h.svc.Login(ctx, "m@x.com", testPassword)
	_, _ = h.svc.Validate(ctx, res.Tokens.AccessToken)

	snap := h.svc.MetricsSnapshot()
	want := map[authcore.MetricID]uint64{
		authcore.MetricLoginFailure:     5,
		authcore.MetricLockoutTriggered: 1,
		authcore.MetricLoginLocked:      1,
		authcore.MetricLoginSuccess:     1,
		authcore.MetricValidateSuccess:  1,
	}
	for id, n := range want {
		if snap.Counters[id] != n {
			t.Fatalf("metric %d = %d, want %d", id, snap.Counters[id], n)
		}
	}
	if buckets := snap.Histograms[authcore.MetricValidateLatency]; len(buckets) != 8 || buckets[0] != 1 {
		t.Fatalf("unexpected latency histogram %v", buckets)
	}
}

func TestSecurityReport(t *testing.T) {
	h := newHarness(t)
	r := h.svc.SecurityReport()
	if r.SigningAlgorithm != "HS256" || r.AccessTTL != 7*24*time.Hour || r.RefreshTTL != 30*24*time.Hour {
		t.Fatalf("unexpected token report %+v", r)
	}
	if r.Lockout.Threshold != 5 || r.Lockout.Window != 15*time.Minute || r.Lockout.Cooldown != 15*time.Minute {
		t.Fatalf("unexpected lockout report %+v", r.Lockout)
	}
	if r.RateLimitBackend != "memory" || !r.AuditEnabled || r.Issuer != authcore.DefaultIssuer {
		t.Fatalf("unexpected report %+v", r)
	}
}
