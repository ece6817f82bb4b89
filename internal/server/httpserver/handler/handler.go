// Package handler provides HTTP request handlers for Sevault.
package handler

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/yndnr/sevault-go/internal/audit"
	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/internal/core/service"
	"github.com/yndnr/sevault-go/internal/device"
	"github.com/yndnr/sevault-go/internal/storage"
	"github.com/yndnr/sevault-go/internal/storage/backup"
	"github.com/yndnr/sevault-go/pkg/crypto/atrest"
)

// Config wires the handler to its services and operational collaborators.
// Element, Engine, Backups, Audit and Metrics are optional; endpoints that
// need a missing collaborator answer with service-unavailable.
type Config struct {
	Aead *service.AeadService
	Keys *service.KeyService
	Apps *service.ApplicationService

	// Element backs the status summary's serial and slot figures.
	Element device.SecureElement

	// Engine backs the status summary's storage figures and the backup
	// snapshot stream.
	Engine storage.KVEngine

	Backups *backup.Manager

	// Audit receives one record per completed vault operation. AuditDir
	// and AuditCipher let the tail endpoint read the trail back.
	Audit       *audit.Writer
	AuditDir    string
	AuditCipher atrest.Cipher

	// Metrics serves GET /metrics.
	Metrics http.Handler

	Logger *slog.Logger
}

// Handler is the main HTTP handler that routes requests to the vault
// services.
type Handler struct {
	cfg    Config
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a new Handler.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Handler{
		cfg:    cfg,
		logger: cfg.Logger,
		mux:    http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	// Health endpoints (no auth required)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	// AEAD operation endpoints
	h.mux.HandleFunc("POST /v1/aead/encrypt", h.handleEncrypt)
	h.mux.HandleFunc("POST /v1/aead/decrypt", h.handleDecrypt)

	// Key management endpoints (caller's own namespace)
	h.mux.HandleFunc("POST /v1/keys", h.handleCreateKey)
	h.mux.HandleFunc("GET /v1/keys", h.handleListKeys)
	h.mux.HandleFunc("GET /v1/keys/{name}", h.handleGetKey)
	h.mux.HandleFunc("DELETE /v1/keys/{name}", h.handleDestroyKey)

	// Metrics endpoint
	if h.cfg.Metrics != nil {
		h.mux.Handle("GET /metrics", h.cfg.Metrics)
	}

	// Admin endpoints
	h.mux.HandleFunc("GET /admin/v1/status/summary", h.handleAdminStatus)
	h.mux.HandleFunc("POST /admin/v1/apps", h.handleRegisterApp)
	h.mux.HandleFunc("GET /admin/v1/apps", h.handleListApps)
	h.mux.HandleFunc("POST /admin/v1/apps/{app_id}/status", h.handleSetAppStatus)
	h.mux.HandleFunc("POST /admin/v1/apps/{app_id}/rotate", h.handleRotateApp)
	h.mux.HandleFunc("POST /admin/v1/backup", h.handleBackup)
	h.mux.HandleFunc("GET /admin/v1/audit", h.handleAuditTail)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// getRequestID extracts the request ID set by the middleware.
func getRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}
	return ""
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsDomainError(err, "") {
		code := domain.GetErrorCode(err)
		status := errorCodeToHTTPStatus(code)
		h.writeError(w, r, status, code, err.Error(), nil)
		return
	}

	// Generic internal error
	h.logger.Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, "SV-SYS-5000", "internal server error", nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"), strings.HasSuffix(code, "-4041"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"), strings.HasSuffix(code, "-4091"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4001"), strings.HasSuffix(code, "-4002"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4010"), strings.HasSuffix(code, "-4011"), strings.HasSuffix(code, "-4012"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"), strings.HasSuffix(code, "-4031"):
		return http.StatusForbidden
	case strings.HasPrefix(code, "SV-ARG-"):
		return http.StatusBadRequest
	case strings.HasPrefix(code, "SV-ALG-"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// resultCode names an operation outcome for audit records: CodeOK on
// success, the domain code otherwise.
func resultCode(err error) string {
	if err == nil {
		return audit.CodeOK
	}
	if code := domain.GetErrorCode(err); code != "" {
		return code
	}
	return domain.ErrInternalServer.Code
}

// record appends an audit record, best effort. A gap in the trail is an
// operational incident, not a request failure; append errors are logged
// and the response still goes out.
func (h *Handler) record(rec *audit.Record) {
	if h.cfg.Audit == nil {
		return
	}
	if err := h.cfg.Audit.Append(rec); err != nil {
		h.logger.Error("audit append failed", "op", rec.Op.String(), "error", err)
	}
}

// getClientIP extracts client IP from request.
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
		return r.RemoteAddr
	}
	return host
}
