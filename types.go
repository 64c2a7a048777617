package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/heartnote/authcore/internal/audit"
	internalmetrics "github.com/heartnote/authcore/internal/metrics"
)

// UserCredential is a stored user as seen by the authentication core. The
// core never mutates it.
type UserCredential struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Nickname     string
	IsActive     bool
	DeletedAt    *time.Time
}

// NewCredential is the input to CredentialStore.CreateUser. PasswordHash is
// already hashed.
type NewCredential struct {
	Email        string
	PasswordHash string
	Name         string
	Nickname     string
}

// CredentialStore is the persistent user store. Implementations live outside
// the core (see store/memory and store/postgres).
//
// FindActiveUserByEmail and FindActiveUserByID return ErrUserNotFound for
// unknown or soft-deleted users; a user with IsActive=false is returned as is.
// CreateUser returns ErrEmailAlreadyInUse for a duplicate email.
type CredentialStore interface {
	FindActiveUserByEmail(ctx context.Context, email string) (*UserCredential, error)
	FindActiveUserByID(ctx context.Context, id string) (*UserCredential, error)
	VerifyPassword(ctx context.Context, user *UserCredential, password string) (bool, error)
	CreateUser(ctx context.Context, in NewCredential) (*UserCredential, error)
}

// RelationshipChecker reports whether a user currently has an active relationship.
type RelationshipChecker interface {
	HasActiveRelationship(ctx context.Context, userID string) (bool, error)
}

// RegisterRequest is the sign-up input.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
	Nickname string `json:"nickname" validate:"max=50"`
}

// IssuedTokenPair is a fresh access and refresh token. ExpiresAt is the
// access token's expiry.
type IssuedTokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshExpiresAt time.Time `json:"-"`
}

// LoginResult is returned by Login and Register.
type LoginResult struct {
	UserID          string
	Email           string
	Name            string
	Nickname        string
	Tokens          IssuedTokenPair
	HasRelationship bool
}

// Principal is the authenticated caller behind a valid access token.
type Principal struct {
	UserID    string
	Email     string
	Name      string
	Nickname  string
	TokenID   string
	ExpiresAt time.Time
}

// AuditEvent is one security-relevant outcome.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers audit events on a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON line per audit event.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a service counter.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess      = internalmetrics.MetricLoginSuccess
	MetricLoginFailure      = internalmetrics.MetricLoginFailure
	MetricLoginLocked       = internalmetrics.MetricLoginLocked
	MetricLockoutTriggered  = internalmetrics.MetricLockoutTriggered
	MetricLoginInactive     = internalmetrics.MetricLoginInactive
	MetricRefreshSuccess    = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure    = internalmetrics.MetricRefreshFailure
	MetricWrongTokenType    = internalmetrics.MetricWrongTokenType
	MetricValidateSuccess   = internalmetrics.MetricValidateSuccess
	MetricValidateFailure   = internalmetrics.MetricValidateFailure
	MetricRegisterSuccess   = internalmetrics.MetricRegisterSuccess
	MetricRegisterDuplicate = internalmetrics.MetricRegisterDuplicate
	MetricRegisterInvalid   = internalmetrics.MetricRegisterInvalid
	MetricLogout            = internalmetrics.MetricLogout
	MetricAccountUnlocked   = internalmetrics.MetricAccountUnlocked
	MetricValidateLatency   = internalmetrics.MetricValidateLatency
)

// MetricsSnapshot is a point-in-time copy of all counters and the validate
// latency histogram (8 non-cumulative buckets).
type MetricsSnapshot = internalmetrics.Snapshot
