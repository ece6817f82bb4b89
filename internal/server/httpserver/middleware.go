// Package httpserver provides the HTTP/HTTPS server for Sevault.
package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/sevault-go/internal/audit"
	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/internal/core/service"
	"github.com/yndnr/sevault-go/internal/server/httpserver/handler"
	"github.com/yndnr/sevault-go/internal/telemetry/metric"
)

// Context keys for request-scoped values.
type contextKey string

const (
	// ContextKeyRequestID is the context key for request ID.
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyStartTime is the context key for request start time.
	ContextKeyStartTime contextKey = "start_time"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// MiddlewareConfig holds configuration for middlewares.
type MiddlewareConfig struct {
	Apps   *service.ApplicationService
	Logger *slog.Logger

	// SkipAuthPaths are paths that don't require authentication.
	SkipAuthPaths []string

	// Audit, when set, receives a record for every rejected
	// authentication attempt.
	Audit *audit.Writer
}

// RequestID adds a unique request ID to each request.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Keep an existing request ID so callers can correlate
			// retries.
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = "req-" + ulid.Make().String()
			}

			// The handler reads the ID back from the request header.
			r.Header.Set("X-Request-ID", requestID)
			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), ContextKeyRequestID, requestID)
			ctx = context.WithValue(ctx, ContextKeyStartTime, time.Now())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Auth creates an authentication middleware for the client API. A valid
// application lands in the request context; its per-application rate
// limit is enforced after the credentials verify.
func Auth(cfg *MiddlewareConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range cfg.SkipAuthPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			app, ok := authenticate(cfg, w, r)
			if !ok {
				return
			}

			if err := cfg.Apps.CheckRateLimit(r.Context(), app.ID, app.RateLimit); err != nil {
				w.Header().Set("Retry-After", "1")
				writeAuthError(w, domain.ErrRateLimited.Code, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r.WithContext(handler.WithApp(r.Context(), app)))
		})
	}
}

// AdminAuth creates an authentication middleware for the admin API. It
// requires the admin role, or a connection accepted on the local socket
// listener, whose file permissions already gate access.
func AdminAuth(cfg *MiddlewareConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if handler.IsLocalCaller(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			app, ok := authenticate(cfg, w, r)
			if !ok {
				return
			}

			if app.Role != domain.RoleAdmin {
				recordAuthFailure(cfg, r, app.ID, domain.ErrPermissionDenied.Code)
				writeAuthError(w, domain.ErrPermissionDenied.Code, "admin role required")
				return
			}

			if err := cfg.Apps.CheckRateLimit(r.Context(), app.ID, app.RateLimit); err != nil {
				w.Header().Set("Retry-After", "1")
				writeAuthError(w, domain.ErrRateLimited.Code, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r.WithContext(handler.WithApp(r.Context(), app)))
		})
	}
}

// MetricsAuth creates an authentication middleware for the metrics
// endpoint. It can be configured to allow unauthenticated access.
func MetricsAuth(apps *service.ApplicationService, authRequired bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authRequired {
				next.ServeHTTP(w, r)
				return
			}

			appID, secret := extractCredentials(r)
			if appID == "" || secret == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			resp, err := apps.Authenticate(r.Context(), &service.AuthenticateRequest{
				AppID:    appID,
				Secret:   secret,
				ClientIP: getClientIP(r),
			})
			if err != nil || !resp.Valid || resp.App == nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			if err := apps.CheckPermission(resp.App, domain.PermMetricsRead); err != nil {
				w.WriteHeader(http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// authenticate verifies the request's application credentials, writing
// the error response itself when they do not hold.
func authenticate(cfg *MiddlewareConfig, w http.ResponseWriter, r *http.Request) (*domain.Application, bool) {
	appID, secret := extractCredentials(r)
	if appID == "" || secret == "" {
		writeAuthError(w, domain.ErrCredentialsMissing.Code, "application credentials not provided")
		return nil, false
	}

	resp, err := cfg.Apps.Authenticate(r.Context(), &service.AuthenticateRequest{
		AppID:    appID,
		Secret:   secret,
		ClientIP: getClientIP(r),
	})
	if err != nil {
		code := domain.GetErrorCode(err)
		if code == "" {
			code = domain.ErrCredentialsInvalid.Code
		}
		recordAuthFailure(cfg, r, appID, code)
		writeAuthError(w, code, "invalid application credentials")
		return nil, false
	}
	if !resp.Valid || resp.App == nil {
		recordAuthFailure(cfg, r, appID, domain.ErrCredentialsInvalid.Code)
		writeAuthError(w, domain.ErrCredentialsInvalid.Code, "invalid application credentials")
		return nil, false
	}

	return resp.App, true
}

// recordAuthFailure appends an auth-failure audit record, best effort.
func recordAuthFailure(cfg *MiddlewareConfig, r *http.Request, appID, code string) {
	if cfg.Audit == nil {
		return
	}
	requestID, _ := r.Context().Value(ContextKeyRequestID).(string)
	rec := audit.NewRecord(audit.OpAuthFailure, requestID, appID, code).
		WithDetail(r.Method + " " + r.URL.Path + " from " + getClientIP(r))
	if err := cfg.Audit.Append(rec); err != nil && cfg.Logger != nil {
		cfg.Logger.Error("audit append failed", "op", "auth.failure", "error", err)
	}
}

// extractCredentials extracts application credentials from request
// headers. It supports two formats:
//  1. Authorization: Bearer <app_id>:<secret>
//  2. X-App-ID + X-App-Secret headers
func extractCredentials(r *http.Request) (appID, secret string) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		parts := strings.SplitN(strings.TrimPrefix(authHeader, "Bearer "), ":", 2)
		if len(parts) == 2 {
			return parts[0], parts[1]
		}
	}

	return r.Header.Get("X-App-ID"), r.Header.Get("X-App-Secret")
}

// RateLimit applies global per-IP rate limiting in front of
// authentication, reusing the service registry's token buckets keyed by
// client address.
func RateLimit(requestsPerSecond int) Middleware {
	limiters := service.NewRateLimiterRegistry()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := limiters.GetOrCreate("ip/"+getClientIP(r), requestsPerSecond)
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeAuthError(w, domain.ErrRateLimited.Code, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Logging logs request completions and feeds the request metrics.
func Logging(logger *slog.Logger, metrics *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			requestID, _ := r.Context().Value(ContextKeyRequestID).(string)
			startTime, _ := r.Context().Value(ContextKeyStartTime).(time.Time)
			duration := time.Since(startTime)

			if metrics != nil {
				metrics.ObserveRequest(r.Method, r.URL.Path, wrapped.statusCode, duration)
			}

			attrs := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"client_ip", getClientIP(r),
			}

			if app := handler.AppFromContext(r.Context()); app != nil {
				attrs = append(attrs, "app_id", app.ID)
				attrs = append(attrs, "role", string(app.Role))
			}

			switch {
			case wrapped.statusCode >= 500:
				logger.Error("request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				logger.Warn("request completed with client error", attrs...)
			default:
				logger.Info("request completed", attrs...)
			}
		})
	}
}

// Recover recovers from panics and returns 500 error.
func Recover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID, _ := r.Context().Value(ContextKeyRequestID).(string)
					logger.Error("panic recovered",
						"request_id", requestID,
						"error", err,
						"path", r.URL.Path,
					)

					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("X-Error-Code", "SV-SYS-5000")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"code":    "SV-SYS-5000",
						"message": "internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// NetworkACLConfig holds configuration for network ACL middleware.
type NetworkACLConfig struct {
	// AllowList is the list of allowed IP/CIDR entries.
	// Empty list means no restriction.
	AllowList []string

	// Logger for logging denied requests.
	Logger *slog.Logger
}

// NetworkACL creates a middleware that checks client IP against an allowlist.
func NetworkACL(cfg *NetworkACLConfig) Middleware {
	// Parse CIDR blocks at initialization time
	var networks []*net.IPNet
	var singleIPs []net.IP

	for _, entry := range cfg.AllowList {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				if cfg.Logger != nil {
					cfg.Logger.Warn("invalid CIDR in allowlist", "entry", entry, "error", err)
				}
				continue
			}
			networks = append(networks, ipNet)
		} else {
			ip := net.ParseIP(entry)
			if ip == nil {
				if cfg.Logger != nil {
					cfg.Logger.Warn("invalid IP in allowlist", "entry", entry)
				}
				continue
			}
			singleIPs = append(singleIPs, ip)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// If allowlist is empty, no restriction
			if len(networks) == 0 && len(singleIPs) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := getClientIP(r)
			ip := net.ParseIP(clientIP)
			if ip == nil {
				writeAuthError(w, domain.ErrIPNotAllowed.Code, "invalid client IP")
				return
			}

			for _, allowedIP := range singleIPs {
				if allowedIP.Equal(ip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			for _, network := range networks {
				if network.Contains(ip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if cfg.Logger != nil {
				cfg.Logger.Warn("request denied by network ACL",
					"client_ip", clientIP,
					"path", r.URL.Path,
				)
			}
			writeAuthError(w, domain.ErrIPNotAllowed.Code, "IP not in allowlist")
		})
	}
}

// CORS adds Cross-Origin Resource Sharing headers.
func CORS(allowedOrigins []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Check if origin is allowed
			allowed := len(allowedOrigins) == 0 // Empty means allow all
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-App-ID, X-App-Secret, X-Request-ID, Authorization")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			// Handle preflight
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// GetRequestIDFromContext retrieves the request ID from context.
func GetRequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// writeAuthError writes an authentication error response.
func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)

	status := http.StatusUnauthorized
	// Check for 403x error codes (Forbidden)
	if strings.Contains(code, "-403") {
		status = http.StatusForbidden
	} else if strings.HasSuffix(code, "-4290") {
		status = http.StatusTooManyRequests
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	// Use net.SplitHostPort to correctly handle IPv6 addresses like [::1]:8080
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// If SplitHostPort fails, return as-is (might be just an IP without port)
		return r.RemoteAddr
	}
	return host
}
