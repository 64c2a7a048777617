package flows

import (
	"context"
	"errors"

	"github.com/heartnote/authcore/token"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureDecode
	ValidateFailureExpired
	ValidateFailureWrongType
	ValidateFailureUserInactive
	ValidateFailureLookup
)

// ValidateResult returns either the verified claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *token.Claims
	User    UserRecord
}

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	ParseToken func(string) (*token.Claims, error)
	// FindUserByID may be nil, in which case user activity is not rechecked.
	FindUserByID func(context.Context, string) (UserRecord, bool, error)
}

// RunValidate accepts only access tokens whose subject is still active.
func RunValidate(ctx context.Context, accessToken string, deps ValidateDeps) ValidateResult {
	claims, err := deps.ParseToken(accessToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return ValidateResult{Failure: ValidateFailureExpired, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureDecode, Err: err}
	}
	if claims.Type != token.TypeAccess {
		return ValidateResult{Failure: ValidateFailureWrongType, Claims: claims}
	}

	if deps.FindUserByID == nil {
		return ValidateResult{Claims: claims}
	}
	user, found, err := deps.FindUserByID(ctx, claims.Subject)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureLookup, Err: err, Claims: claims}
	}
	if !found || !user.Usable() {
		return ValidateResult{Failure: ValidateFailureUserInactive, Claims: claims}
	}
	return ValidateResult{Claims: claims, User: user}
}
