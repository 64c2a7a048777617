package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/heartnote/authcore"
)

// Validator is the slice of *authcore.Service the guard needs.
type Validator interface {
	Validate(ctx context.Context, accessToken string) (*authcore.Principal, error)
}

// ErrorHandler writes the response for a rejected request. err is
// ErrMissingToken, one of the authcore token errors, or an unexpected fault.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// ErrMissingToken is passed to the ErrorHandler when the request carries no
// bearer token.
var ErrMissingToken = errors.New("missing bearer token")

type principalContextKey struct{}

// PrincipalFromContext returns the principal Guard stored on the request.
func PrincipalFromContext(ctx context.Context) (*authcore.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*authcore.Principal)
	return p, ok
}

// WithPrincipal stores p on ctx, as Guard does.
func WithPrincipal(ctx context.Context, p *authcore.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Guard rejects requests without a valid access token and injects the
// principal into the request context. A nil onError uses DefaultErrorHandler.
func Guard(v Validator, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = DefaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				onError(w, r, authcore.ErrServiceNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				onError(w, r, ErrMissingToken)
				return
			}

			p, err := v.Validate(r.Context(), token)
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// DefaultErrorHandler answers 401 for token problems and 500 otherwise.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	if IsUnauthorized(err) {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// IsUnauthorized reports whether err means the caller is not authenticated,
// as opposed to a server-side fault.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, authcore.ErrTokenMalformed) ||
		errors.Is(err, authcore.ErrTokenExpired) ||
		errors.Is(err, authcore.ErrWrongTokenType) ||
		errors.Is(err, authcore.ErrUserNotFoundOrInactive)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
