package authcore

import (
	"errors"
	"strconv"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked matches every *AccountLockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive is returned by Login when the password matched an inactive account.
	ErrAccountInactive = errors.New("account inactive")
	// ErrEmailAlreadyInUse is returned by Register, and by CredentialStore.CreateUser implementations.
	ErrEmailAlreadyInUse = errors.New("email already in use")
	// ErrInvalidRegistration wraps request validation and password policy rejections.
	ErrInvalidRegistration = errors.New("invalid registration request")

	// ErrTokenMalformed covers undecodable tokens, bad signatures and foreign issuers or audiences.
	ErrTokenMalformed = errors.New("invalid token")
	// ErrTokenExpired is returned for tokens past their exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongTokenType is returned when a refresh token is used as an access token or vice versa.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrUserNotFoundOrInactive is returned by Refresh and Validate when the subject can no longer sign in.
	ErrUserNotFoundOrInactive = errors.New("user not found or inactive")

	// ErrUserNotFound is what CredentialStore implementations return for an unknown user.
	ErrUserNotFound = errors.New("user not found")
	// ErrServiceNotReady is returned when a Service was not produced by Builder.Build.
	ErrServiceNotReady = errors.New("auth service not initialized")
)

// AccountLockedError reports how long a locked identity must wait.
type AccountLockedError struct {
	MinutesRemaining int
}

func (e *AccountLockedError) Error() string {
	return "account locked: try again in " + strconv.Itoa(e.MinutesRemaining) + " minute(s)"
}

// Is makes errors.Is(err, ErrAccountLocked) hold.
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

func newAccountLockedError(minutes int) error {
	return &AccountLockedError{MinutesRemaining: minutes}
}
