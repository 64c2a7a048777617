package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/heartnote/authcore"
	"github.com/heartnote/authcore/middleware"
	"go.uber.org/zap"
)

// AuthService is the part of *authcore.Service the HTTP layer calls.
type AuthService interface {
	Register(ctx context.Context, req authcore.RegisterRequest) (*authcore.LoginResult, error)
	Login(ctx context.Context, email, password string) (*authcore.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*authcore.IssuedTokenPair, error)
	Validate(ctx context.Context, accessToken string) (*authcore.Principal, error)
	Logout(ctx context.Context, refreshToken string) error
}

var _ AuthService = (*authcore.Service)(nil)

// Deps configures NewRouter. Service is required.
type Deps struct {
	Service AuthService
	Logger  *zap.Logger

	// Throttle limits /auth/* per client IP. Nil disables it.
	Throttle *Throttle
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// Health is called by GET /healthz; nil always reports ok.
	Health func(ctx context.Context) error

	RequestTimeout time.Duration
}

const (
	defaultRequestTimeout = 10 * time.Second
	maxBodyBytes          = 1 << 20
)

type api struct {
	svc      AuthService
	logger   *zap.Logger
	validate *validator.Validate
	health   func(ctx context.Context) error
}

// NewRouter builds the chi router for the auth endpoints.
//
//	POST /auth/register
//	POST /auth/login
//	POST /auth/refresh
//	POST /auth/logout
//	GET  /auth/me       (bearer access token)
//	GET  /healthz
//	GET  /metrics       (when Deps.Metrics is set)
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	a := &api{
		svc:      deps.Service,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		health:   deps.Health,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(a.recoverPanics)
	r.Use(a.logRequests)
	r.Use(clientIP)

	r.Get("/healthz", a.healthz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(chimw.Timeout(timeout))
		if deps.Throttle != nil {
			r.Use(deps.Throttle.Middleware)
		}

		r.Post("/register", a.register)
		r.Post("/login", a.login)
		r.Post("/refresh", a.refresh)
		r.Post("/logout", a.logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(deps.Service, a.guardError))
			r.Get("/me", a.me)
		})
	})

	return r
}

func (a *api) guardError(w http.ResponseWriter, r *http.Request, err error) {
	a.writeError(w, r, err)
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health(r.Context()); err != nil {
			a.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
