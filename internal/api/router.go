// Package api wires the HTTP surface of the service: routing, middleware,
// and the server lifecycle.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aomanu/cidrd/internal/api/auth"
	"github.com/aomanu/cidrd/internal/api/handlers"
	apimw "github.com/aomanu/cidrd/internal/api/middleware"
	"github.com/aomanu/cidrd/internal/logger"
	"github.com/aomanu/cidrd/pkg/config"
	"github.com/aomanu/cidrd/pkg/metrics"
	"github.com/aomanu/cidrd/pkg/models"
)

// Deps bundles everything the router needs.
type Deps struct {
	Store   models.Store
	Tokens  *auth.Service
	Cache   *auth.TokenCache
	Metrics *metrics.Metrics
	DB      handlers.Pinger
	Config  config.APIConfig
	Cookie  string
}

// NewRouter builds the chi router.
//
// Routes:
//   - GET  /health, /health/ready - probes, unauthenticated
//   - GET  /metrics               - Prometheus registry, unauthenticated
//   - POST /v1/auth/token         - credentials to bearer token
//   - PUT  /v1/auth/password      - password change (credentials in body)
//   - POST /v1/admin/signup       - account creation, superuser only
//   - /v1/list...                 - list CRUD and CIDR job submission
//   - /v1/cidr...                 - read-only CIDR queries
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack, order matters.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(requestMetrics(deps.Metrics))
	r.Use(chimw.Recoverer)
	timeout := deps.Config.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r.Use(chimw.Timeout(timeout))

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	authHandler := handlers.NewAuthHandler(deps.Store, deps.Tokens)
	listHandler := handlers.NewListHandler(deps.Store)
	cidrHandler := handlers.NewCidrHandler(deps.Store)

	authenticate := apimw.Auth(deps.Tokens, deps.Store, deps.Cache, deps.Cookie)

	r.Route("/v1", func(r chi.Router) {
		// Credential endpoints carry their own proof, no token needed.
		r.Post("/auth/token", authHandler.Token)
		r.Put("/auth/password", authHandler.ChangePassword)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(apimw.RequireSuperuser)
			r.Post("/admin/signup", authHandler.Signup)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Route("/list", func(r chi.Router) {
				r.Get("/", listHandler.List)
				r.Post("/", listHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", listHandler.Get)
					r.Put("/", listHandler.Update)
					r.Delete("/", listHandler.Delete)
					r.Get("/cidr", listHandler.GetCidrs)
					r.Post("/cidr/add", listHandler.AddCidrs)
					r.Post("/cidr/delete", listHandler.DeleteCidrs)
					r.Post("/cidr/add/raw", listHandler.AddCidrsRaw)
					r.Post("/cidr/delete/raw", listHandler.DeleteCidrsRaw)
				})
			})

			r.Route("/cidr", func(r chi.Router) {
				r.Get("/", cidrHandler.Query)
				r.Get("/collapsed", cidrHandler.Collapsed)
				r.Get("/collapsed/by-ip-version", cidrHandler.CollapsedByVersion)
			})
		})
	})

	return r
}

// requestLogger logs request start at DEBUG and completion at INFO; health
// probes complete at DEBUG to keep orchestrator noise down.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimw.GetReqID(r.Context())

		logger.Debug("request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		args := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}
		if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
			logger.Debug("request completed", args...)
		} else {
			logger.Info("request completed", args...)
		}
	})
}

// requestMetrics counts completed requests by method, route pattern and
// status.
func requestMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		})
	}
}
