package authcore

import (
	"context"
	"fmt"

	"github.com/heartnote/authcore/internal/flows"
)

// Refresh exchanges a refresh token for a new pair. The presented token is
// not revoked and stays usable until it expires.
//
// Failures are ErrTokenMalformed (undecodable, bad signature, foreign issuer
// or audience), ErrTokenExpired, ErrWrongTokenType and
// ErrUserNotFoundOrInactive.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*IssuedTokenPair, error) {
	if !s.ready() {
		return nil, ErrServiceNotReady
	}

	result := s.flows.Refresh(ctx, refreshToken)

	var err error
	switch result.Failure {
	case flows.RefreshFailureNone:
		s.metricInc(MetricRefreshSuccess)
		s.emitAudit(ctx, auditEventRefreshSuccess, true, result.UserID, result.User.Email, nil, nil)
		pair := toIssuedPair(result.Pair)
		return &pair, nil
	case flows.RefreshFailureDecode:
		err = fmt.Errorf("%w: %w", ErrTokenMalformed, result.Err)
	case flows.RefreshFailureExpired:
		err = ErrTokenExpired
	case flows.RefreshFailureWrongType:
		s.metricInc(MetricWrongTokenType)
		err = ErrWrongTokenType
	case flows.RefreshFailureUserInactive:
		err = ErrUserNotFoundOrInactive
	case flows.RefreshFailureLookup:
		err = fmt.Errorf("refresh: find user: %w", result.Err)
	case flows.RefreshFailureIssue:
		err = fmt.Errorf("refresh: issue tokens: %w", result.Err)
	default:
		err = ErrTokenMalformed
	}

	s.metricInc(MetricRefreshFailure)
	s.emitAudit(ctx, auditEventRefreshInvalid, false, result.UserID, "", err, nil)
	return nil, err
}

func (s *Service) refreshFlowDeps() flows.RefreshDeps {
	return flows.RefreshDeps{
		ParseToken:   s.codec.Parse,
		FindUserByID: s.findUserByID,
		IssuePair:    s.codec.IssuePair,
	}
}

// Validate accepts an access token whose subject is still an active user
// and returns the caller behind it.
func (s *Service) Validate(ctx context.Context, accessToken string) (*Principal, error) {
	if !s.ready() {
		return nil, ErrServiceNotReady
	}

	if s.metrics.LatencyEnabled() {
		start := s.now()
		defer func() {
			s.metrics.Observe(MetricValidateLatency, s.now().Sub(start))
		}()
	}

	result := s.flows.Validate(ctx, accessToken)

	var err error
	switch result.Failure {
	case flows.ValidateFailureNone:
		s.metricInc(MetricValidateSuccess)
		c := result.Claims
		p := &Principal{
			UserID:   c.Subject,
			Email:    c.Email,
			Name:     c.Name,
			Nickname: c.Nickname,
			TokenID:  c.ID,
		}
		if c.ExpiresAt != nil {
			p.ExpiresAt = c.ExpiresAt.Time
		}
		return p, nil
	case flows.ValidateFailureDecode:
		err = fmt.Errorf("%w: %w", ErrTokenMalformed, result.Err)
	case flows.ValidateFailureExpired:
		err = ErrTokenExpired
	case flows.ValidateFailureWrongType:
		s.metricInc(MetricWrongTokenType)
		err = ErrWrongTokenType
	case flows.ValidateFailureUserInactive:
		err = ErrUserNotFoundOrInactive
	case flows.ValidateFailureLookup:
		err = fmt.Errorf("validate: find user: %w", result.Err)
	default:
		err = ErrTokenMalformed
	}

	s.metricInc(MetricValidateFailure)
	return nil, err
}

func (s *Service) validateFlowDeps() flows.ValidateDeps {
	return flows.ValidateDeps{
		ParseToken:   s.codec.Parse,
		FindUserByID: s.findUserByID,
	}
}

// Logout acknowledges a client-side logout. Tokens are stateless and are not
// revoked; a recognizable refresh token only attributes the audit event.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if !s.ready() {
		return ErrServiceNotReady
	}

	result := s.flows.Logout(ctx, refreshToken)

	s.metricInc(MetricLogout)
	s.emitAudit(ctx, auditEventLogout, true, result.UserID, "", nil, func() map[string]string {
		if !result.Recognized {
			return map[string]string{"token": "unrecognized"}
		}
		return map[string]string{"jti": result.TokenID}
	})
	return nil
}

func (s *Service) logoutFlowDeps() flows.LogoutDeps {
	return flows.LogoutDeps{
		ParseToken: s.codec.Parse,
	}
}
