package flows

import (
	"context"

	"github.com/heartnote/authcore/token"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	ParseToken func(string) (*token.Claims, error)
}

// LogoutResult reports who logged out, when the token says so.
type LogoutResult struct {
	UserID     string
	TokenID    string
	Recognized bool
}

// RunLogout acknowledges a logout. There is no revocation store: a parseable
// refresh token is only used to attribute the event, and an unparseable one
// is not an error.
func RunLogout(_ context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	if refreshToken == "" || deps.ParseToken == nil {
		return LogoutResult{}
	}
	claims, err := deps.ParseToken(refreshToken)
	if err != nil || claims.Type != token.TypeRefresh {
		return LogoutResult{}
	}
	return LogoutResult{UserID: claims.Subject, TokenID: claims.ID, Recognized: true}
}
