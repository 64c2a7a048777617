package flows

import (
	"context"
	"fmt"
	"strconv"

	"github.com/heartnote/authcore/internal/limiters"
	"github.com/heartnote/authcore/token"
	"go.uber.org/zap"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	User            UserRecord
	Pair            token.Pair
	HasRelationship bool
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	Success          int
	Failure          int
	Locked           int
	LockoutTriggered int
	Inactive         int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	Success          string
	Failure          string
	Locked           string
	LockoutTriggered string
	Inactive         string
}

// LoginErrors carries root sentinel errors used by the login flow.
type LoginErrors struct {
	NotReady           error
	InvalidCredentials error
	AccountInactive    error
	// Locked builds the lockout error for the given whole minutes remaining.
	Locked func(minutesRemaining int) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	NormalizeEmail func(string) string

	CheckBlocked  func(context.Context, string) (int, bool, error)
	RecordFailure func(context.Context, string) (limiters.FailureOutcome, error)
	RecordSuccess func(context.Context, string) error

	// FindUserByEmail returns found=false for unknown or deleted users.
	FindUserByEmail func(context.Context, string) (UserRecord, bool, error)
	VerifyPassword  func(context.Context, UserRecord, string) (bool, error)
	// VerifyDummy spends one hash compare for an unknown email.
	VerifyDummy     func(password string)
	HasRelationship func(context.Context, string) (bool, error)
	IssuePair       func(token.Subject) (token.Pair, error)

	MaskIdentity func(string) string
	Logger       *zap.Logger
	MetricInc    func(int)
	EmitAudit    AuditFunc

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.VerifyDummy == nil {
		deps.VerifyDummy = func(string) {}
	}
	if deps.MaskIdentity == nil {
		deps.MaskIdentity = func(string) string { return "" }
	}
}

// RunLogin authenticates email/password under the lockout policy.
//
// A blocked identity is rejected before the credential store is consulted.
// Unknown email and wrong password are indistinguishable to the caller and
// to the lockout counter. An inactive account with a correct password is
// reported as such and does not count as a failure.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)
	if deps.NormalizeEmail == nil ||
		deps.CheckBlocked == nil ||
		deps.RecordFailure == nil ||
		deps.RecordSuccess == nil ||
		deps.FindUserByEmail == nil ||
		deps.VerifyPassword == nil ||
		deps.IssuePair == nil ||
		deps.Errors.Locked == nil {
		return nil, deps.Errors.NotReady
	}

	identity := deps.NormalizeEmail(email)

	minutes, blocked, err := deps.CheckBlocked(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("check lockout: %w", err)
	}
	if blocked {
		deps.MetricInc(deps.Metrics.Locked)
		lockedErr := deps.Errors.Locked(minutes)
		deps.EmitAudit(ctx, deps.Events.Locked, false, "", identity, lockedErr, func() map[string]string {
			return map[string]string{"minutes_remaining": strconv.Itoa(minutes)}
		})
		return nil, lockedErr
	}

	user, found, err := deps.FindUserByEmail(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	matched := false
	switch {
	case found && password != "":
		matched, err = deps.VerifyPassword(ctx, user, password)
		if err != nil {
			return nil, fmt.Errorf("verify password: %w", err)
		}
	case !found && password != "":
		deps.VerifyDummy(password)
	}
	password = ""

	// The attempt is abandoned, not counted, when the caller went away.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !matched {
		return nil, recordLoginFailure(ctx, identity, user.ID, deps)
	}

	if !user.Usable() {
		deps.MetricInc(deps.Metrics.Inactive)
		deps.EmitAudit(ctx, deps.Events.Inactive, false, user.ID, identity, deps.Errors.AccountInactive, nil)
		return nil, deps.Errors.AccountInactive
	}

	if err := deps.RecordSuccess(ctx, identity); err != nil {
		return nil, fmt.Errorf("reset lockout counter: %w", err)
	}

	pair, err := deps.IssuePair(subjectOf(user))
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	hasRelationship := false
	if deps.HasRelationship != nil {
		hasRelationship, err = deps.HasRelationship(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("check relationship: %w", err)
		}
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, user.ID, identity, nil, nil)

	return &LoginResult{User: user, Pair: pair, HasRelationship: hasRelationship}, nil
}

func recordLoginFailure(ctx context.Context, identity, userID string, deps LoginDeps) error {
	outcome, err := deps.RecordFailure(ctx, identity)
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}

	switch {
	case outcome.AlreadyBlocked:
		// Another request locked the identity while this one was checking credentials.
		deps.MetricInc(deps.Metrics.Locked)
		lockedErr := deps.Errors.Locked(outcome.MinutesRemaining)
		deps.EmitAudit(ctx, deps.Events.Locked, false, userID, identity, lockedErr, nil)
		return lockedErr
	case outcome.Locked:
		deps.MetricInc(deps.Metrics.Failure)
		deps.MetricInc(deps.Metrics.LockoutTriggered)
		deps.EmitAudit(ctx, deps.Events.Failure, false, userID, identity, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{"count": strconv.FormatInt(outcome.Count, 10)}
		})
		deps.EmitAudit(ctx, deps.Events.LockoutTriggered, false, userID, identity, deps.Errors.Locked(outcome.MinutesRemaining), func() map[string]string {
			return map[string]string{"minutes_remaining": strconv.Itoa(outcome.MinutesRemaining)}
		})
		deps.Logger.Warn("login lockout triggered",
			zap.String("identity", deps.MaskIdentity(identity)),
			zap.Int64("failures", outcome.Count),
			zap.Int("minutes", outcome.MinutesRemaining),
		)
		return deps.Errors.InvalidCredentials
	default:
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, userID, identity, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{"count": strconv.FormatInt(outcome.Count, 10)}
		})
		return deps.Errors.InvalidCredentials
	}
}

