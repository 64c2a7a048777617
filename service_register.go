package authcore

import (
	"context"
	"errors"

	"github.com/heartnote/authcore/internal/flows"
	"github.com/heartnote/authcore/internal/limiters"
	"github.com/heartnote/authcore/password"
)

// Register creates a credential and signs the new user in.
//
// Invalid input and password policy violations return errors matching
// ErrInvalidRegistration; a taken email returns ErrEmailAlreadyInUse.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	if !s.ready() {
		return nil, ErrServiceNotReady
	}
	result, err := s.flows.Register(ctx, flows.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Nickname: req.Nickname,
	})
	if err != nil {
		return nil, err
	}
	return toLoginResult(result), nil
}

func (s *Service) registerFlowDeps() flows.RegisterDeps {
	return flows.RegisterDeps{
		NormalizeEmail: limiters.NormalizeIdentity,
		ValidateRequest: func(req flows.RegisterRequest) error {
			return s.validate.Struct(RegisterRequest{
				Email:    req.Email,
				Password: req.Password,
				Name:     req.Name,
				Nickname: req.Nickname,
			})
		},
		PasswordPolicyError: func(err error) bool {
			return errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong)
		},
		HashPassword: s.hasher.Hash,
		CreateUser: func(ctx context.Context, in flows.NewUserRecord) (flows.UserRecord, error) {
			user, err := s.credentials.CreateUser(ctx, NewCredential{
				Email:        in.Email,
				PasswordHash: in.PasswordHash,
				Name:         in.Name,
				Nickname:     in.Nickname,
			})
			if err != nil {
				return flows.UserRecord{}, err
			}
			record, _, err := toFlowUser(user, nil)
			return record, err
		},
		IssuePair: s.codec.IssuePair,

		Logger:    s.logger,
		MetricInc: s.flowMetricInc,
		EmitAudit: s.emitAudit,

		Metrics: flows.RegisterMetrics{
			Success:   int(MetricRegisterSuccess),
			Duplicate: int(MetricRegisterDuplicate),
			Invalid:   int(MetricRegisterInvalid),
		},
		Events: flows.RegisterEvents{
			Success:   auditEventRegisterSuccess,
			Duplicate: auditEventRegisterDuplicate,
			Failure:   auditEventRegisterFailure,
		},
		Errors: flows.RegisterErrors{
			NotReady:          ErrServiceNotReady,
			InvalidRequest:    ErrInvalidRegistration,
			EmailAlreadyInUse: ErrEmailAlreadyInUse,
		},
	}
}
