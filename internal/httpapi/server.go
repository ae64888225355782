// Package httpapi mounts the reelauth engine on a chi router: the public
// /auth flows and the guarded /api resources.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/reelauth"
	"github.com/MrEthical07/reelauth/middleware"
	"github.com/MrEthical07/reelauth/recommend"
)

// Auth is the engine surface the handlers use. *reelauth.Engine implements it.
type Auth interface {
	Register(ctx context.Context, req reelauth.RegisterRequest) (*reelauth.RegisterResult, error)
	VerifyEmail(ctx context.Context, token, userID string) error
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*reelauth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*reelauth.LoginResult, error)
	Logout(ctx context.Context, refreshToken string)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, userID, newPassword string) error
	ValidateAccess(token string) (*reelauth.Identity, error)
	Profile(ctx context.Context, userID string) (*reelauth.User, error)
	AddToList(ctx context.Context, userID string, list reelauth.List, movieID int64) error
	RemoveFromList(ctx context.Context, userID string, list reelauth.List, movieID int64) error
	SetReaction(ctx context.Context, userID string, movieID int64, reaction reelauth.Reaction) error
}

// Options configures the router.
type Options struct {
	Auth Auth
	// Feed serves GET /api/feed. The route is not mounted when nil.
	Feed   *recommend.Service
	Logger *slog.Logger
	// ClientURL is where verify-email redirects after success.
	ClientURL string
	// AllowedOrigins for CORS; ClientURL when empty.
	AllowedOrigins []string
	// Production marks the refresh cookie Secure and SameSite=None.
	Production bool
	RefreshTTL time.Duration
	// Metrics records per-route request metrics when set.
	Metrics *middleware.HTTPMetrics
	// Timeout bounds every request. Zero disables it.
	Timeout time.Duration
	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers are honoured. Empty means the client IP is always RemoteAddr.
	TrustedProxies []netip.Prefix
}

// Handler serves the auth and api routes.
type Handler struct {
	auth      Auth
	feed      *recommend.Service
	logger    *slog.Logger
	clientURL string
	cookies   cookieConfig
	validate  *validator.Validate
}

// New validates opts and returns a Handler.
func New(opts Options) (*Handler, error) {
	if opts.Auth == nil {
		return nil, errors.New("httpapi: auth is required")
	}
	if opts.ClientURL == "" {
		return nil, errors.New("httpapi: client url is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.RefreshTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	return &Handler{
		auth:      opts.Auth,
		feed:      opts.Feed,
		logger:    logger,
		clientURL: strings.TrimRight(opts.ClientURL, "/"),
		cookies:   cookieConfig{production: opts.Production, maxAge: ttl},
		validate:  newValidator(),
	}, nil
}

// NewRouter builds the full middleware stack around the auth and api routes.
func NewRouter(opts Options) (chi.Router, error) {
	h, err := New(opts)
	if err != nil {
		return nil, err
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{h.clientURL}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RealIP(opts.TrustedProxies))
	r.Use(middleware.RequestLogger(h.logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Handler)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(origins))
	if opts.Timeout > 0 {
		r.Use(chimw.Timeout(opts.Timeout))
	}

	r.Mount("/auth", h.AuthRoutes())
	r.Mount("/api", h.APIRoutes())
	return r, nil
}

// AuthRoutes returns the unauthenticated flows.
func (h *Handler) AuthRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
	r.Post("/resend-verification", h.ResendVerification)
	r.Get("/verify-email", h.VerifyEmail)
	r.Post("/forgot", h.Forgot)
	r.Post("/reset", h.Reset)
	return r
}

// APIRoutes returns the resources behind the access guard.
func (h *Handler) APIRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Guard(h.auth))

	r.Get("/me", h.Me)
	r.Get("/sessions", h.Sessions)
	r.Put("/lists/{list}/{tmdbId}", h.AddToList)
	r.Delete("/lists/{list}/{tmdbId}", h.RemoveFromList)
	r.Put("/reactions/{tmdbId}", h.SetReaction)
	if h.feed != nil {
		r.Get("/feed", h.Feed)
	}
	return r
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
