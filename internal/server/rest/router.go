package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/api"
	"github.com/dmitrijs2005/sigauth/internal/logging"
	"github.com/dmitrijs2005/sigauth/internal/server/metrics"
	"github.com/dmitrijs2005/sigauth/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// AuthService is the business logic behind the /auth endpoints.
type AuthService interface {
	Signup(ctx context.Context, req api.SignupRequest) (api.SignupResponse, error)
	LoginChallenge(ctx context.Context, req api.LoginChallengeRequest) (api.LoginChallengeResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (services.LoginResult, error)
}

// HandlerConfig carries everything the HTTP surface needs. Zero limits
// fall back to 1 MiB and 2 s.
type HandlerConfig struct {
	Auth    AuthService
	Logger  logging.Logger
	Metrics *metrics.Metrics

	AllowedOrigins []string
	CookieDomain   string
	MaxBodyBytes   int64
	MaxRequestTime time.Duration
	ServerTiming   bool
	RateLimit      float64
	RateBurst      int

	// TrustProxyHeaders takes the client address from X-Forwarded-For /
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

type handler struct {
	auth           AuthService
	logger         logging.Logger
	metrics        *metrics.Metrics
	allowedOrigins []string
	originSet      map[string]struct{}
	cors           *cors.Cors
	limiter        *ipLimiter
	cookieDomain   string
	maxBodyBytes   int64
	maxRequestTime time.Duration
	serverTiming   bool
	now            func() time.Time
}

// anyOriginAllowed lists paths served without the origin check.
var anyOriginAllowed = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// NewHandler builds the router:
//
//	GET  /health
//	GET  /metrics
//	POST /auth/signup
//	POST /auth/login-challenge
//	POST /auth/login
func NewHandler(c HandlerConfig) http.Handler {
	h := &handler{
		auth:           c.Auth,
		logger:         c.Logger.With("module", "http"),
		metrics:        c.Metrics,
		allowedOrigins: append([]string{}, c.AllowedOrigins...),
		originSet:      make(map[string]struct{}, len(c.AllowedOrigins)),
		limiter:        newIPLimiter(c.RateLimit, c.RateBurst),
		cookieDomain:   c.CookieDomain,
		maxBodyBytes:   c.MaxBodyBytes,
		maxRequestTime: c.MaxRequestTime,
		serverTiming:   c.ServerTiming,
		now:            time.Now,
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = 1 << 20
	}
	if h.maxRequestTime <= 0 {
		h.maxRequestTime = 2 * time.Second
	}
	for _, o := range c.AllowedOrigins {
		h.originSet[o] = struct{}{}
	}
	h.cors = cors.New(cors.Options{
		AllowedOrigins:       h.allowedOrigins,
		AllowedMethods:       []string{http.MethodPost, http.MethodGet, http.MethodOptions, http.MethodDelete},
		AllowedHeaders:       []string{"Cookie", "Content-Type"},
		AllowCredentials:     true,
		MaxAge:               86400,
		OptionsSuccessStatus: http.StatusNoContent,
	})

	r := chi.NewRouter()
	if c.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(h.correlationID)
	r.Use(h.instrument)
	r.Use(h.recoverer)
	r.Use(h.originGuard)

	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.notFound)

	r.Get("/health", h.health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Post(api.PathSignup, handle(h, api.SignupRequestSchema(), h.signup))
		r.Post(api.PathLoginChallenge, handle(h, api.LoginChallengeRequestSchema(), h.loginChallenge))
		r.Post(api.PathLogin, handle(h, api.LoginRequestSchema(), h.login))
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), h.logger, w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), h.logger, w, http.StatusNotFound, statusBody{
		Code:   http.StatusNotFound,
		Reason: "no handler for " + r.Method + " " + r.URL.Path,
	})
}

// statusBody is the envelope of router-level rejections.
type statusBody struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

type forbiddenOriginBody struct {
	Code           int      `json:"code"`
	Reason         string   `json:"reason"`
	Origin         string   `json:"origin"`
	AllowedOrigins []string `json:"allowedOrigins"`
}
