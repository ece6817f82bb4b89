// Package handler provides HTTP request handlers for Sevault.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/yndnr/sevault-go/internal/audit"
	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/internal/core/service"
)

// handleCreateKey handles POST /v1/keys.
func (h *Handler) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	app := AppFromContext(r.Context())
	if app == nil {
		h.writeError(w, r, http.StatusUnauthorized, domain.ErrCredentialsMissing.Code, "authentication required", nil)
		return
	}

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "SV-SYS-4000", "invalid request body", nil)
		return
	}
	if req.Name == "" {
		h.writeError(w, r, http.StatusBadRequest, "SV-ARG-1002", "name is required", nil)
		return
	}

	resp, err := h.cfg.Keys.CreateKey(r.Context(), &service.CreateKeyRequest{
		App:  app.ID,
		Name: req.Name,
		Attributes: domain.KeyAttributes{
			Type: domain.KeyType(req.Attributes.Type),
			Bits: req.Attributes.Bits,
			Usage: domain.UsageFlags{
				Encrypt: req.Attributes.Usage.Encrypt,
				Decrypt: req.Attributes.Usage.Decrypt,
			},
			Algorithm: domain.Family(req.Attributes.Algorithm),
		},
	})

	h.record(audit.NewRecord(audit.OpKeyCreate, getRequestID(r), app.ID, resultCode(err)).
		WithKey(domain.NewKeyTriple(app.ID, req.Name).String()))

	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, keyToResponse(resp.Info))
}

// handleGetKey handles GET /v1/keys/{name}.
func (h *Handler) handleGetKey(w http.ResponseWriter, r *http.Request) {
	app := AppFromContext(r.Context())
	if app == nil {
		h.writeError(w, r, http.StatusUnauthorized, domain.ErrCredentialsMissing.Code, "authentication required", nil)
		return
	}

	name := r.PathValue("name")
	if name == "" {
		h.writeError(w, r, http.StatusBadRequest, "SV-ARG-1002", "name is required", nil)
		return
	}

	resp, err := h.cfg.Keys.GetKey(r.Context(), &service.GetKeyRequest{
		App:  app.ID,
		Name: name,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, keyToResponse(resp.Info))
}

// handleListKeys handles GET /v1/keys.
func (h *Handler) handleListKeys(w http.ResponseWriter, r *http.Request) {
	app := AppFromContext(r.Context())
	if app == nil {
		h.writeError(w, r, http.StatusUnauthorized, domain.ErrCredentialsMissing.Code, "authentication required", nil)
		return
	}

	resp, err := h.cfg.Keys.ListKeys(r.Context(), &service.ListKeysRequest{
		App: app.ID,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	keys := make([]KeyResponse, len(resp.Infos))
	for i, info := range resp.Infos {
		keys[i] = keyToResponse(info)
	}

	h.writeJSON(w, r, http.StatusOK, ListKeysResponse{Keys: keys})
}

// handleDestroyKey handles DELETE /v1/keys/{name}.
func (h *Handler) handleDestroyKey(w http.ResponseWriter, r *http.Request) {
	app := AppFromContext(r.Context())
	if app == nil {
		h.writeError(w, r, http.StatusUnauthorized, domain.ErrCredentialsMissing.Code, "authentication required", nil)
		return
	}

	name := r.PathValue("name")
	if name == "" {
		h.writeError(w, r, http.StatusBadRequest, "SV-ARG-1002", "name is required", nil)
		return
	}

	err := h.cfg.Keys.DestroyKey(r.Context(), &service.DestroyKeyRequest{
		App:  app.ID,
		Name: name,
	})

	h.record(audit.NewRecord(audit.OpKeyDestroy, getRequestID(r), app.ID, resultCode(err)).
		WithKey(domain.NewKeyTriple(app.ID, name).String()))

	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

// keyToResponse converts a domain.KeyInfo to a KeyResponse. Slot numbers
// stay inside the service boundary.
func keyToResponse(info *domain.KeyInfo) KeyResponse {
	return KeyResponse{
		Name:     info.Triple.Name,
		Provider: string(info.Triple.Provider),
		Attributes: KeyAttributes{
			Type: string(info.Attributes.Type),
			Bits: info.Attributes.Bits,
			Usage: KeyUsage{
				Encrypt: info.Attributes.Usage.Encrypt,
				Decrypt: info.Attributes.Usage.Decrypt,
			},
			Algorithm: string(info.Attributes.Algorithm),
		},
		CreatedAt: time.UnixMilli(info.CreatedAt),
	}
}
