package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/heartnote/authcore"
	"github.com/heartnote/authcore/middleware"
	"go.uber.org/zap"
)

const (
	codeInvalidRequest     = "invalid_request"
	codeInvalidCredentials = "invalid_credentials"
	codeAccountLocked      = "account_locked"
	codeAccountInactive    = "account_inactive"
	codeEmailInUse         = "email_in_use"
	codeInvalidToken       = "invalid_token"
	codeTokenExpired       = "token_expired"
	codeWrongTokenType     = "wrong_token_type"
	codeUserInactive       = "user_inactive"
	codeMissingToken       = "missing_token"
	codeRateLimited        = "rate_limited"
	codeRequestCancelled   = "request_cancelled"
	codeRequestTimeout     = "request_timeout"
	codeInternal           = "internal_error"
)

// errorBody is the single error shape every endpoint returns.
type errorBody struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	MinutesRemaining int    `json:"minutesRemaining,omitempty"`
}

type apiError struct {
	status int
	body   errorBody
}

// classify maps a core error onto a status and body. Unknown errors are 500.
func classify(err error) apiError {
	var locked *authcore.AccountLockedError
	switch {
	case errors.As(err, &locked):
		return apiError{http.StatusLocked, errorBody{
			Code:             codeAccountLocked,
			Message:          "too many failed attempts, try again later",
			MinutesRemaining: locked.MinutesRemaining,
		}}
	case errors.Is(err, authcore.ErrInvalidCredentials):
		return apiError{http.StatusUnauthorized, errorBody{Code: codeInvalidCredentials, Message: "invalid email or password"}}
	case errors.Is(err, authcore.ErrAccountInactive):
		return apiError{http.StatusForbidden, errorBody{Code: codeAccountInactive, Message: "account is inactive"}}
	case errors.Is(err, authcore.ErrEmailAlreadyInUse):
		return apiError{http.StatusConflict, errorBody{Code: codeEmailInUse, Message: "email is already registered"}}
	case errors.Is(err, authcore.ErrInvalidRegistration):
		return apiError{http.StatusBadRequest, errorBody{Code: codeInvalidRequest, Message: err.Error()}}
	case errors.Is(err, authcore.ErrTokenExpired):
		return apiError{http.StatusUnauthorized, errorBody{Code: codeTokenExpired, Message: "token expired"}}
	case errors.Is(err, authcore.ErrWrongTokenType):
		return apiError{http.StatusUnauthorized, errorBody{Code: codeWrongTokenType, Message: "wrong token type"}}
	case errors.Is(err, authcore.ErrUserNotFoundOrInactive):
		return apiError{http.StatusUnauthorized, errorBody{Code: codeUserInactive, Message: "user not found or inactive"}}
	case errors.Is(err, authcore.ErrTokenMalformed):
		return apiError{http.StatusUnauthorized, errorBody{Code: codeInvalidToken, Message: "invalid token"}}
	case errors.Is(err, middleware.ErrMissingToken):
		return apiError{http.StatusUnauthorized, errorBody{Code: codeMissingToken, Message: "missing bearer token"}}
	case errors.Is(err, context.DeadlineExceeded):
		return apiError{http.StatusGatewayTimeout, errorBody{Code: codeRequestTimeout, Message: "request timed out"}}
	case errors.Is(err, context.Canceled):
		return apiError{http.StatusServiceUnavailable, errorBody{Code: codeRequestCancelled, Message: "request cancelled"}}
	default:
		return apiError{http.StatusInternalServerError, errorBody{Code: codeInternal, Message: "internal error"}}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// abandoned reports whether err only says the request's context ended.
func abandoned(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// writeError renders err. 5xx faults are logged and reported to Sentry; an
// abandoned request is logged at debug only. The response body never
// carries the underlying cause.
func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	switch e.status {
	case http.StatusLocked:
		w.Header().Set("Retry-After", strconv.Itoa(e.body.MinutesRemaining*60))
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Bearer error="`+e.body.Code+`"`)
	}
	switch {
	case abandoned(err):
		a.logger.Debug("request abandoned",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	case e.status >= http.StatusInternalServerError:
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		captureError(r, err)
	}
	writeJSON(w, e.status, e.body)
}

func (a *api) writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Code: codeInvalidRequest, Message: message})
}

func captureError(r *http.Request, err error) {
	hub := sentry.GetHubFromContext(r.Context())
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("path", r.URL.Path)
		scope.SetTag("method", r.Method)
		hub.CaptureException(err)
	})
}
