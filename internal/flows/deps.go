package flows

import (
	"context"
	"time"
)

// Deps groups flow dependency sets. The root service builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Register RegisterDeps
	Login    LoginDeps
	Refresh  RefreshDeps
	Validate ValidateDeps
	Logout   LogoutDeps
}

// UserRecord is the flow-local view of a stored credential.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Nickname     string
	IsActive     bool
	DeletedAt    *time.Time
}

// Usable reports whether the record may authenticate.
func (u UserRecord) Usable() bool {
	return u.IsActive && u.DeletedAt == nil
}

// AuditFunc emits one audit event. meta is evaluated only when auditing is enabled.
type AuditFunc func(ctx context.Context, event string, success bool, userID, identity string, err error, meta func() map[string]string)

func noopAudit(context.Context, string, bool, string, string, error, func() map[string]string) {}

func noopMetric(int) {}
