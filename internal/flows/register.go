package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/heartnote/authcore/token"
	"go.uber.org/zap"
)

// RegisterRequest is the flow-local sign-up input.
type RegisterRequest struct {
	Email    string
	Password string
	Name     string
	Nickname string
}

// NewUserRecord is what CreateUser persists.
type NewUserRecord struct {
	Email        string
	PasswordHash string
	Name         string
	Nickname     string
}

type RegisterMetrics struct {
	Success   int
	Duplicate int
	Invalid   int
}

type RegisterEvents struct {
	Success   string
	Duplicate string
	Failure   string
}

type RegisterErrors struct {
	NotReady          error
	InvalidRequest    error
	EmailAlreadyInUse error
}

// RegisterDeps captures sign-up dependencies.
type RegisterDeps struct {
	NormalizeEmail  func(string) string
	ValidateRequest func(RegisterRequest) error
	// PasswordPolicyError reports whether a HashPassword error is a policy
	// rejection (too short, too long) rather than a fault.
	PasswordPolicyError func(error) bool

	HashPassword func(string) (string, error)
	CreateUser   func(context.Context, NewUserRecord) (UserRecord, error)
	IssuePair    func(token.Subject) (token.Pair, error)

	Logger    *zap.Logger
	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

func normalizeRegisterDeps(deps *RegisterDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.PasswordPolicyError == nil {
		deps.PasswordPolicyError = func(error) bool { return false }
	}
}

// RunRegister creates a credential and signs the new user in.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*LoginResult, error) {
	normalizeRegisterDeps(&deps)
	if deps.NormalizeEmail == nil || deps.HashPassword == nil || deps.CreateUser == nil || deps.IssuePair == nil {
		return nil, deps.Errors.NotReady
	}

	req.Email = deps.NormalizeEmail(req.Email)
	if deps.ValidateRequest != nil {
		if err := deps.ValidateRequest(req); err != nil {
			deps.MetricInc(deps.Metrics.Invalid)
			deps.EmitAudit(ctx, deps.Events.Failure, false, "", req.Email, deps.Errors.InvalidRequest, func() map[string]string {
				return map[string]string{"reason": "validation"}
			})
			return nil, fmt.Errorf("%w: %v", deps.Errors.InvalidRequest, err)
		}
	}

	hash, err := deps.HashPassword(req.Password)
	req.Password = ""
	if err != nil {
		if deps.PasswordPolicyError(err) {
			deps.MetricInc(deps.Metrics.Invalid)
			deps.EmitAudit(ctx, deps.Events.Failure, false, "", req.Email, deps.Errors.InvalidRequest, func() map[string]string {
				return map[string]string{"reason": "password_policy"}
			})
			return nil, fmt.Errorf("%w: %v", deps.Errors.InvalidRequest, err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := deps.CreateUser(ctx, NewUserRecord{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Nickname:     req.Nickname,
	})
	if err != nil {
		if errors.Is(err, deps.Errors.EmailAlreadyInUse) {
			deps.MetricInc(deps.Metrics.Duplicate)
			deps.EmitAudit(ctx, deps.Events.Duplicate, false, "", req.Email, deps.Errors.EmailAlreadyInUse, nil)
			return nil, deps.Errors.EmailAlreadyInUse
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	pair, err := deps.IssuePair(subjectOf(user))
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, user.ID, user.Email, nil, nil)
	deps.Logger.Debug("user registered", zap.String("user_id", user.ID))

	return &LoginResult{User: user, Pair: pair}, nil
}

func subjectOf(u UserRecord) token.Subject {
	return token.Subject{
		UserID:   u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Nickname: u.Nickname,
	}
}
