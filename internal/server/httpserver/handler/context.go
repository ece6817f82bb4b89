// Package handler provides HTTP request handlers for Sevault.
package handler

import (
	"context"

	"github.com/yndnr/sevault-go/internal/core/domain"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	// appContextKey carries the authenticated application.
	appContextKey contextKey = "app"

	// localContextKey marks requests accepted on the local Unix socket
	// listener.
	localContextKey contextKey = "local_caller"
)

// WithApp returns a context carrying the authenticated application. The
// auth middleware sets it after credential verification.
func WithApp(ctx context.Context, app *domain.Application) context.Context {
	return context.WithValue(ctx, appContextKey, app)
}

// AppFromContext returns the authenticated application, or nil when the
// request was not authenticated.
func AppFromContext(ctx context.Context) *domain.Application {
	if app, ok := ctx.Value(appContextKey).(*domain.Application); ok {
		return app
	}
	return nil
}

// WithLocalCaller marks the context as belonging to a connection accepted
// on the local Unix socket. Socket file permissions gate access on that
// path, so admin endpoints treat such callers as implicit admins.
func WithLocalCaller(ctx context.Context) context.Context {
	return context.WithValue(ctx, localContextKey, true)
}

// IsLocalCaller reports whether the request arrived on the local socket.
func IsLocalCaller(ctx context.Context) bool {
	local, _ := ctx.Value(localContextKey).(bool)
	return local
}

// callerID names the caller for audit records: the authenticated
// application ID, or "local" for implicit local-socket admins.
func callerID(ctx context.Context) string {
	if app := AppFromContext(ctx); app != nil {
		return app.ID
	}
	if IsLocalCaller(ctx) {
		return "local"
	}
	return ""
}
