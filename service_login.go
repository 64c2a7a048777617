package authcore

import (
	"context"

	"github.com/heartnote/authcore/internal/flows"
	"github.com/heartnote/authcore/internal/limiters"
)

// Login authenticates email and password under the lockout policy.
//
// Expected outcomes are *AccountLockedError (matching ErrAccountLocked),
// ErrInvalidCredentials and ErrAccountInactive. Anything else is a fault from
// the credential or rate limit store. A cancelled ctx abandons the attempt
// without touching lockout state.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if !s.ready() {
		return nil, ErrServiceNotReady
	}
	result, err := s.flows.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return toLoginResult(result), nil
}

// dummyPassword is hashed once at Build so unknown emails pay a real compare.
const dummyPassword = "authcore-unknown-account"

func (s *Service) verifyDummy(password string) {
	if s.hasher == nil || s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(password, s.dummyHash)
}

func (s *Service) loginFlowDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		NormalizeEmail: limiters.NormalizeIdentity,
		CheckBlocked:   s.guard.CheckBlocked,
		RecordFailure:  s.guard.RecordFailure,
		RecordSuccess:  s.guard.RecordSuccess,

		FindUserByEmail: s.findUserByEmail,
		VerifyPassword: func(ctx context.Context, user flows.UserRecord, password string) (bool, error) {
			return s.credentials.VerifyPassword(ctx, fromFlowUser(user), password)
		},
		VerifyDummy: s.verifyDummy,
		IssuePair:   s.codec.IssuePair,

		MaskIdentity: s.maskIdentity,
		Logger:       s.logger,
		MetricInc:    s.flowMetricInc,
		EmitAudit:    s.emitAudit,

		Metrics: flows.LoginMetrics{
			Success:          int(MetricLoginSuccess),
			Failure:          int(MetricLoginFailure),
			Locked:           int(MetricLoginLocked),
			LockoutTriggered: int(MetricLockoutTriggered),
			Inactive:         int(MetricLoginInactive),
		},
		Events: flows.LoginEvents{
			Success:          auditEventLoginSuccess,
			Failure:          auditEventLoginFailure,
			Locked:           auditEventLoginLocked,
			LockoutTriggered: auditEventLockoutTriggered,
			Inactive:         auditEventLoginInactive,
		},
		Errors: flows.LoginErrors{
			NotReady:           ErrServiceNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			AccountInactive:    ErrAccountInactive,
			Locked:             newAccountLockedError,
		},
	}

	if s.relationships != nil {
		deps.HasRelationship = s.relationships.HasActiveRelationship
	}

	return deps
}
