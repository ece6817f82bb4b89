// Package httpserver provides the HTTP/HTTPS server for Sevault.
package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/sevault-go/internal/server/httpserver/handler"
	"github.com/yndnr/sevault-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler carries the wired endpoint handlers.
	Handler *handler.Handler

	// Middleware carries the auth services the middleware chain uses.
	Middleware *MiddlewareConfig

	// Metrics feeds the request observations. May be nil.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// AdminAllowList is the IP/CIDR allowlist for the admin API
	// (empty = no restriction).
	AdminAllowList []string

	// MetricsAuthRequired indicates if /metrics requires authentication.
	MetricsAuthRequired bool

	// CORSAllowedOrigins is the list of allowed CORS origins (empty =
	// allow all).
	CORSAllowedOrigins []string

	// GlobalRateLimit is the per-IP rate limit (requests/second) applied
	// before authentication. Zero disables it.
	GlobalRateLimit int

	// LocalListener marks every request as arriving on the local socket,
	// making admin endpoints peer-trusted. Client endpoints still
	// authenticate.
	LocalListener bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		MetricsAuthRequired: true,
		GlobalRateLimit:     1000, // requests/second per IP
	}
}

// NewRouter creates and configures the HTTP router with all routes and
// middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	h := cfg.Handler

	base := []Middleware{
		RequestID(),
		Recover(cfg.Logger),
		Logging(cfg.Logger, cfg.Metrics),
	}
	if cfg.LocalListener {
		base = append(base, localCaller())
	}

	mux := http.NewServeMux()

	// Health endpoints - no authentication required
	probeHandler := Chain(h, base...)
	mux.Handle("GET /health", probeHandler)
	mux.Handle("GET /ready", probeHandler)

	// Metrics endpoint - configurable authentication
	mux.Handle("GET /metrics", Chain(h,
		append(append([]Middleware{}, base...),
			MetricsAuth(cfg.Middleware.Apps, cfg.MetricsAuthRequired))...))

	// Client API endpoints - require application authentication
	clientMiddlewares := append([]Middleware{}, base...)
	if cfg.GlobalRateLimit > 0 {
		clientMiddlewares = append(clientMiddlewares, RateLimit(cfg.GlobalRateLimit))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		clientMiddlewares = append(clientMiddlewares, CORS(cfg.CORSAllowedOrigins))
	}
	clientMiddlewares = append(clientMiddlewares, Auth(cfg.Middleware))
	clientHandler := Chain(h, clientMiddlewares...)

	// AEAD operation endpoints
	mux.Handle("POST /v1/aead/encrypt", clientHandler)
	mux.Handle("POST /v1/aead/decrypt", clientHandler)

	// Key management endpoints
	mux.Handle("POST /v1/keys", clientHandler)
	mux.Handle("GET /v1/keys", clientHandler)
	mux.Handle("GET /v1/keys/{name}", clientHandler)
	mux.Handle("DELETE /v1/keys/{name}", clientHandler)

	// Admin API endpoints - require admin role + optional network ACL
	adminMiddlewares := append([]Middleware{}, base...)
	if cfg.GlobalRateLimit > 0 {
		adminMiddlewares = append(adminMiddlewares, RateLimit(cfg.GlobalRateLimit))
	}
	if len(cfg.AdminAllowList) > 0 {
		adminMiddlewares = append(adminMiddlewares, NetworkACL(&NetworkACLConfig{
			AllowList: cfg.AdminAllowList,
			Logger:    cfg.Logger,
		}))
	}
	adminMiddlewares = append(adminMiddlewares, AdminAuth(cfg.Middleware))
	adminHandler := Chain(h, adminMiddlewares...)

	mux.Handle("GET /admin/v1/status/summary", adminHandler)
	mux.Handle("POST /admin/v1/apps", adminHandler)
	mux.Handle("GET /admin/v1/apps", adminHandler)
	mux.Handle("POST /admin/v1/apps/{app_id}/status", adminHandler)
	mux.Handle("POST /admin/v1/apps/{app_id}/rotate", adminHandler)
	mux.Handle("POST /admin/v1/backup", adminHandler)
	mux.Handle("GET /admin/v1/audit", adminHandler)

	return mux
}

// localCaller marks every request as accepted on the local socket.
func localCaller() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(handler.WithLocalCaller(r.Context())))
		})
	}
}
