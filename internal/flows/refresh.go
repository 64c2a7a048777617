package flows

import (
	"context"
	"errors"

	"github.com/heartnote/authcore/token"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureExpired
	RefreshFailureWrongType
	RefreshFailureUserInactive
	RefreshFailureLookup
	RefreshFailureIssue
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string
	User    UserRecord
	Pair    token.Pair
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	ParseToken func(string) (*token.Claims, error)
	// FindUserByID returns found=false for unknown or deleted users.
	FindUserByID func(context.Context, string) (UserRecord, bool, error)
	IssuePair    func(token.Subject) (token.Pair, error)
}

// RunRefresh exchanges a refresh token for a fresh pair. Nothing is revoked:
// the presented token stays valid until its own expiry.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.ParseToken(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return RefreshResult{Failure: RefreshFailureExpired, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}
	if claims.Type != token.TypeRefresh {
		return RefreshResult{Failure: RefreshFailureWrongType, UserID: claims.Subject}
	}

	user, found, err := deps.FindUserByID(ctx, claims.Subject)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureLookup, Err: err, UserID: claims.Subject}
	}
	if !found || !user.Usable() {
		return RefreshResult{Failure: RefreshFailureUserInactive, UserID: claims.Subject}
	}

	pair, err := deps.IssuePair(subjectOf(user))
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: user.ID}
	}

	return RefreshResult{
		Failure: RefreshFailureNone,
		UserID:  user.ID,
		User:    user,
		Pair:    pair,
	}
}
