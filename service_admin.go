package authcore

import (
	"context"
	"fmt"

	"github.com/heartnote/authcore/internal/limiters"
)

// LoginAttempts reports the failures recorded for email in the current
// window and, when the identity is blocked, the whole minutes remaining.
func (s *Service) LoginAttempts(ctx context.Context, email string) (failures int64, minutesRemaining int, err error) {
	if !s.ready() {
		return 0, 0, ErrServiceNotReady
	}
	failures, err = s.guard.FailureCount(ctx, email)
	if err != nil {
		return 0, 0, err
	}
	minutesRemaining, _, err = s.guard.CheckBlocked(ctx, email)
	if err != nil {
		return 0, 0, err
	}
	return failures, minutesRemaining, nil
}

// UnlockAccount clears the block and the failure counter for email.
func (s *Service) UnlockAccount(ctx context.Context, email string) error {
	if !s.ready() {
		return ErrServiceNotReady
	}
	identity := limiters.NormalizeIdentity(email)
	if err := s.guard.Unlock(ctx, identity); err != nil {
		return fmt.Errorf("unlock account: %w", err)
	}
	s.metricInc(MetricAccountUnlocked)
	s.emitAudit(ctx, auditEventAccountUnlocked, true, "", identity, nil, nil)
	return nil
}
