package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/heartnote/authcore/internal/limiters"
	"github.com/heartnote/authcore/token"
)

var (
	errNotReady    = errors.New("not ready")
	errInvalid     = errors.New("invalid credentials")
	errInactive    = errors.New("inactive")
	errLockedBase  = errors.New("locked")
	errStoreFailed = errors.New("store failed")
)

type lockedErr struct{ minutes int }

func (e lockedErr) Error() string        { return "locked" }
func (e lockedErr) Is(target error) bool { return target == errLockedBase }

type loginHarness struct {
	blockedMinutes int
	blocked        bool
	user           UserRecord
	found          bool
	passwordOK     bool
	lookupErr      error

	lookups   int
	verifies  int
	dummies   int
	failures  int
	successes int
	outcome   limiters.FailureOutcome
}

func (h *loginHarness) deps() LoginDeps {
	return LoginDeps{
		NormalizeEmail: limiters.NormalizeIdentity,
		CheckBlocked: func(context.Context, string) (int, bool, error) {
			return h.blockedMinutes, h.blocked, nil
		},
		RecordFailure: func(context.Context, string) (limiters.FailureOutcome, error) {
			h.failures++
			out := h.outcome
			if out.Count == 0 && !out.AlreadyBlocked {
				out.Count = int64(h.failures)
			}
			return out, nil
		},
		RecordSuccess: func(context.Context, string) error {
			h.successes++
			return nil
		},
		FindUserByEmail: func(context.Context, string) (UserRecord, bool, error) {
			h.lookups++
			return h.user, h.found, h.lookupErr
		},
		VerifyPassword: func(context.Context, UserRecord, string) (bool, error) {
			h.verifies++
			return h.passwordOK, nil
		},
		VerifyDummy:     func(string) { h.dummies++ },
		HasRelationship: func(context.Context, string) (bool, error) { return true, nil },
		IssuePair: func(s token.Subject) (token.Pair, error) {
			return token.Pair{AccessToken: "a-" + s.UserID, RefreshToken: "r-" + s.UserID, ExpiresAt: time.Unix(0, 0)}, nil
		},
		Errors: LoginErrors{
			NotReady:           errNotReady,
			InvalidCredentials: errInvalid,
			AccountInactive:    errInactive,
			Locked:             func(m int) error { return lockedErr{minutes: m} },
		},
	}
}

func TestRunLoginNotReady(t *testing.T) {
	if _, err := RunLogin(context.Background(), "a@x.com", "pw", LoginDeps{Errors: LoginErrors{NotReady: errNotReady}}); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestRunLoginBlockedSkipsCredentialStore(t *testing.T) {
	h := &loginHarness{blocked: true, blockedMinutes: 7}
	_, err := RunLogin(context.Background(), "a@x.com", "pw", h.deps())

	var le lockedErr
	if !errors.As(err, &le) || le.minutes != 7 {
		t.Fatalf("expected locked error with 7 minutes, got %v", err)
	}
	if h.lookups != 0 || h.failures != 0 || h.successes != 0 {
		t.Fatalf("blocked login must not touch store or counters: %+v", h)
	}
}

func TestRunLoginUnknownAndWrongPasswordLookAlike(t *testing.T) {
	unknown := &loginHarness{found: false}
	_, errUnknown := RunLogin(context.Background(), "nobody@x.com", "pw", unknown.deps())

	wrong := &loginHarness{found: true, user: UserRecord{ID: "u1", IsActive: true}, passwordOK: false}
	_, errWrong := RunLogin(context.Background(), "a@x.com", "pw", wrong.deps())

	if !errors.Is(errUnknown, errInvalid) || !errors.Is(errWrong, errInvalid) {
		t.Fatalf("expected invalid credentials for both, got %v / %v", errUnknown, errWrong)
	}
	if unknown.failures != 1 || wrong.failures != 1 {
		t.Fatalf("expected one recorded failure each, got %d / %d", unknown.failures, wrong.failures)
	}
}

func TestRunLoginUnknownEmailPaysOneHashCompare(t *testing.T) {
	unknown := &loginHarness{found: false}
	if _, err := RunLogin(context.Background(), "nobody@x.com", "pw", unknown.deps()); !errors.Is(err, errInvalid) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if unknown.dummies != 1 || unknown.verifies != 0 {
		t.Fatalf("unknown email: expected one dummy compare, got dummy=%d real=%d", unknown.dummies, unknown.verifies)
	}

	wrong := &loginHarness{found: true, user: UserRecord{ID: "u1", IsActive: true}}
	if _, err := RunLogin(context.Background(), "a@x.com", "pw", wrong.deps()); !errors.Is(err, errInvalid) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if wrong.dummies != 0 || wrong.verifies != 1 {
		t.Fatalf("known email: expected one real compare, got dummy=%d real=%d", wrong.dummies, wrong.verifies)
	}

	blocked := &loginHarness{blocked: true, blockedMinutes: 3}
	_, _ = RunLogin(context.Background(), "nobody@x.com", "pw", blocked.deps())
	if blocked.dummies != 0 {
		t.Fatal("blocked login must not hash")
	}
}

func TestRunLoginInactiveDoesNotCount(t *testing.T) {
	h := &loginHarness{found: true, user: UserRecord{ID: "u1", IsActive: false}, passwordOK: true}
	_, err := RunLogin(context.Background(), "a@x.com", "pw", h.deps())
	if !errors.Is(err, errInactive) {
		t.Fatalf("expected inactive, got %v", err)
	}
	if h.failures != 0 || h.successes != 0 {
		t.Fatalf("inactive login must not touch counters: %+v", h)
	}

	deleted := time.Now()
	h = &loginHarness{found: true, user: UserRecord{ID: "u1", IsActive: true, DeletedAt: &deleted}, passwordOK: true}
	if _, err := RunLogin(context.Background(), "a@x.com", "pw", h.deps()); !errors.Is(err, errInactive) {
		t.Fatalf("expected deleted user to be inactive, got %v", err)
	}
}

func TestRunLoginSuccess(t *testing.T) {
	h := &loginHarness{found: true, user: UserRecord{ID: "u1", Email: "a@x.com", IsActive: true}, passwordOK: true}
	res, err := RunLogin(context.Background(), " A@X.com ", "pw", h.deps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Pair.AccessToken != "a-u1" || !res.HasRelationship || h.successes != 1 {
		t.Fatalf("unexpected result %+v (successes=%d)", res, h.successes)
	}
}

func TestRunLoginCancelledContextLeavesNoState(t *testing.T) {
	h := &loginHarness{found: true, user: UserRecord{ID: "u1", IsActive: true}, passwordOK: false}
	ctx, cancel := context.WithCancel(context.Background())
	deps := h.deps()
	deps.FindUserByEmail = func(context.Context, string) (UserRecord, bool, error) {
		cancel()
		return h.user, true, nil
	}

	if _, err := RunLogin(ctx, "a@x.com", "pw", deps); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if h.failures != 0 {
		t.Fatal("cancelled attempt must not be counted")
	}
}

func TestRunLoginStoreFaultPropagates(t *testing.T) {
	h := &loginHarness{lookupErr: errStoreFailed}
	_, err := RunLogin(context.Background(), "a@x.com", "pw", h.deps())
	if !errors.Is(err, errStoreFailed) {
		t.Fatalf("expected store fault, got %v", err)
	}
	if h.failures != 0 {
		t.Fatal("store fault must not be counted as a failure")
	}
}

func TestRunLoginConcurrentLockReportsLocked(t *testing.T) {
	h := &loginHarness{found: false, outcome: limiters.FailureOutcome{AlreadyBlocked: true, MinutesRemaining: 15}}
	_, err := RunLogin(context.Background(), "a@x.com", "pw", h.deps())
	if !errors.Is(err, errLockedBase) {
		t.Fatalf("expected locked error, got %v", err)
	}
}
