// Package handler provides HTTP request handlers for Sevault.
package handler

import "time"

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses
// Prometheus format). Binary fields inside Data are base64-encoded by
// the JSON codec.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"` // Additional error details
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// Algorithm selects the AEAD family and tag length for one operation.
// TagLength zero means the family default (16 bytes).
type Algorithm struct {
	Family    string `json:"family"`
	TagLength int    `json:"tag_length,omitempty"`
}

// EncryptRequest is the request body for POST /v1/aead/encrypt.
// Nonce, AAD and Plaintext travel base64-encoded.
type EncryptRequest struct {
	KeyName   string    `json:"key_name"`
	Algorithm Algorithm `json:"algorithm"`
	Nonce     []byte    `json:"nonce,omitempty"`
	AAD       []byte    `json:"aad,omitempty"`
	Plaintext []byte    `json:"plaintext"`
}

// EncryptResponse is the response body for POST /v1/aead/encrypt.
// Ciphertext is the encrypted payload with the tag appended.
type EncryptResponse struct {
	Ciphertext []byte `json:"ciphertext"`
}

// DecryptRequest is the request body for POST /v1/aead/decrypt.
type DecryptRequest struct {
	KeyName    string    `json:"key_name"`
	Algorithm  Algorithm `json:"algorithm"`
	Nonce      []byte    `json:"nonce,omitempty"`
	AAD        []byte    `json:"aad,omitempty"`
	Ciphertext []byte    `json:"ciphertext"`
}

// DecryptResponse is the response body for POST /v1/aead/decrypt.
type DecryptResponse struct {
	Plaintext []byte `json:"plaintext"`
}

// KeyUsage selects the operations a key may serve.
type KeyUsage struct {
	Encrypt bool `json:"encrypt"`
	Decrypt bool `json:"decrypt"`
}

// KeyAttributes describes a key's type, size and algorithm policy.
type KeyAttributes struct {
	Type      string   `json:"type"`
	Bits      int      `json:"bits"`
	Usage     KeyUsage `json:"usage"`
	Algorithm string   `json:"algorithm"`
}

// CreateKeyRequest is the request body for POST /v1/keys.
type CreateKeyRequest struct {
	Name       string        `json:"name"`
	Attributes KeyAttributes `json:"attributes"`
}

// KeyResponse represents a stored key in API responses. Slot numbers are
// an element-internal detail and never appear here.
type KeyResponse struct {
	Name       string        `json:"name"`
	Provider   string        `json:"provider"`
	Attributes KeyAttributes `json:"attributes"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ListKeysResponse is the response body for GET /v1/keys.
type ListKeysResponse struct {
	Keys []KeyResponse `json:"keys"`
}

// RegisterAppRequest is the request body for POST /admin/v1/apps.
type RegisterAppRequest struct {
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Description string   `json:"description,omitempty"`
	Allowlist   []string `json:"allowlist,omitempty"`
	RateLimit   int      `json:"rate_limit,omitempty"`
	ExpiresAt   int64    `json:"expires_at,omitempty"` // Unix ms, 0 = never
}

// RegisterAppResponse is the response body for POST /admin/v1/apps.
// Secret is the plaintext credential, returned exactly once.
type RegisterAppResponse struct {
	AppID     string    `json:"app_id"`
	Secret    string    `json:"secret"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// AppResponse represents an application in list responses (no credential
// material).
type AppResponse struct {
	AppID       string    `json:"app_id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	RateLimit   int       `json:"rate_limit"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at,omitempty"`
}

// ListAppsResponse is the response body for GET /admin/v1/apps.
type ListAppsResponse struct {
	Apps []AppResponse `json:"apps"`
}

// SetAppStatusRequest is the request body for
// POST /admin/v1/apps/{app_id}/status.
type SetAppStatusRequest struct {
	Enabled bool `json:"enabled"`
}

// RotateAppResponse is the response body for
// POST /admin/v1/apps/{app_id}/rotate. The old secret keeps working for
// the grace period.
type RotateAppResponse struct {
	AppID     string `json:"app_id"`
	NewSecret string `json:"new_secret"`
}

// ElementStatus describes the secure element in the status summary.
type ElementStatus struct {
	Serial     string `json:"serial"`
	SlotsUsed  int    `json:"slots_used"`
	SlotsTotal int    `json:"slots_total"`
}

// StorageStatus describes the storage engine in the status summary.
type StorageStatus struct {
	TotalKeys  uint64 `json:"total_keys"`
	TotalSize  uint64 `json:"total_size"`
	LastGCTime int64  `json:"last_gc_time,omitempty"` // Unix ms, 0 = never ran
}

// StatusSummaryResponse is the response body for
// GET /admin/v1/status/summary.
type StatusSummaryResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Time    string         `json:"time"`
	Element *ElementStatus `json:"element,omitempty"`
	Storage *StorageStatus `json:"storage,omitempty"`
}

// BackupRequest is the request body for POST /admin/v1/backup.
type BackupRequest struct {
	Passphrase string `json:"passphrase"`
}

// BackupResponse is the response body for POST /admin/v1/backup.
type BackupResponse struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditRecord represents one audit trail record in API responses.
type AuditRecord struct {
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	App       string    `json:"app,omitempty"`
	Key       string    `json:"key,omitempty"`
	Algorithm string    `json:"algorithm,omitempty"`
	Code      string    `json:"code"`
	Detail    string    `json:"detail,omitempty"`
}

// AuditTailResponse is the response body for GET /admin/v1/audit. Records
// are the newest entries in trail order.
type AuditTailResponse struct {
	Records []AuditRecord `json:"records"`
	Total   int           `json:"total"`
}
