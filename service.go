package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/heartnote/authcore/clock"
	"github.com/heartnote/authcore/internal/audit"
	"github.com/heartnote/authcore/internal/flows"
	"github.com/heartnote/authcore/internal/limiters"
	"github.com/heartnote/authcore/internal/metrics"
	"github.com/heartnote/authcore/logging"
	"github.com/heartnote/authcore/password"
	"github.com/heartnote/authcore/ratelimit"
	"github.com/heartnote/authcore/token"
	"go.uber.org/zap"
)

// Service is the authentication core: sign-up, login under the lockout
// policy, and token refresh and validation.
//
// A Service is safe for concurrent use. Build it with New().Build().
type Service struct {
	config Config
	clock  clock.Clock
	logger *zap.Logger

	credentials   CredentialStore
	relationships RelationshipChecker

	rateStore   ratelimit.Store
	rateBackend string
	guard       *limiters.LoginGuard

	codec         *token.Codec
	hasher        password.Hasher
	hashAlgorithm string
	dummyHash     string
	validate      *validator.Validate

	audit   *audit.Dispatcher
	metrics *metrics.Metrics

	flows flows.Service
}

func (s *Service) ready() bool {
	return s != nil && s.flows.Initialized()
}

func (s *Service) metricInc(id MetricID) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Inc(id)
}

func (s *Service) flowMetricInc(id int) {
	s.metricInc(MetricID(id))
}

// Close drains pending audit events. The Service must not be used afterwards.
func (s *Service) Close() {
	if s == nil || s.audit == nil {
		return
	}
	s.audit.Close()
}

// AuditDropped returns the number of audit events lost to a full buffer,
// a cancelled context or a panicking sink.
func (s *Service) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot returns a copy of all counters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.Snapshot()
}

func (s *Service) buildFlows() flows.Service {
	return flows.New(flows.Deps{
		Register: s.registerFlowDeps(),
		Login:    s.loginFlowDeps(),
		Refresh:  s.refreshFlowDeps(),
		Validate: s.validateFlowDeps(),
		Logout:   s.logoutFlowDeps(),
	})
}

func (s *Service) findUserByEmail(ctx context.Context, email string) (flows.UserRecord, bool, error) {
	user, err := s.credentials.FindActiveUserByEmail(ctx, email)
	return toFlowUser(user, err)
}

func (s *Service) findUserByID(ctx context.Context, id string) (flows.UserRecord, bool, error) {
	user, err := s.credentials.FindActiveUserByID(ctx, id)
	return toFlowUser(user, err)
}

func toFlowUser(user *UserCredential, err error) (flows.UserRecord, bool, error) {
	if errors.Is(err, ErrUserNotFound) {
		return flows.UserRecord{}, false, nil
	}
	if err != nil {
		return flows.UserRecord{}, false, err
	}
	if user == nil {
		return flows.UserRecord{}, false, nil
	}
	return flows.UserRecord{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Name:         user.Name,
		Nickname:     user.Nickname,
		IsActive:     user.IsActive,
		DeletedAt:    user.DeletedAt,
	}, true, nil
}

func fromFlowUser(user flows.UserRecord) *UserCredential {
	return &UserCredential{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Name:         user.Name,
		Nickname:     user.Nickname,
		IsActive:     user.IsActive,
		DeletedAt:    user.DeletedAt,
	}
}

func toIssuedPair(p token.Pair) IssuedTokenPair {
	return IssuedTokenPair{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		ExpiresAt:        p.ExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

func toLoginResult(r *flows.LoginResult) *LoginResult {
	if r == nil {
		return nil
	}
	return &LoginResult{
		UserID:          r.User.ID,
		Email:           r.User.Email,
		Name:            r.User.Name,
		Nickname:        r.User.Nickname,
		Tokens:          toIssuedPair(r.Pair),
		HasRelationship: r.HasRelationship,
	}
}

func (s *Service) maskIdentity(identity string) string {
	return logging.MaskEmail(identity)
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}
