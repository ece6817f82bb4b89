// Package handler provides HTTP request handlers for Sevault.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/yndnr/sevault-go/internal/audit"
	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/internal/core/service"
)

// handleEncrypt handles POST /v1/aead/encrypt.
func (h *Handler) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	app := AppFromContext(r.Context())
	if app == nil {
		h.writeError(w, r, http.StatusUnauthorized, domain.ErrCredentialsMissing.Code, "authentication required", nil)
		return
	}

	var req EncryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "SV-SYS-4000", "invalid request body", nil)
		return
	}
	if req.KeyName == "" {
		h.writeError(w, r, http.StatusBadRequest, "SV-ARG-1002", "key_name is required", nil)
		return
	}

	alg := domain.Algorithm{
		Family:    domain.Family(req.Algorithm.Family),
		TagLength: req.Algorithm.TagLength,
	}

	resp, err := h.cfg.Aead.Encrypt(r.Context(), &service.EncryptRequest{
		App:       app.ID,
		KeyName:   req.KeyName,
		Algorithm: alg,
		Nonce:     req.Nonce,
		AAD:       req.AAD,
		Plaintext: req.Plaintext,
	})

	h.record(audit.NewRecord(audit.OpEncrypt, getRequestID(r), app.ID, resultCode(err)).
		WithKey(domain.NewKeyTriple(app.ID, req.KeyName).String()).
		WithAlgorithm(alg.String()))

	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, EncryptResponse{
		Ciphertext: resp.Ciphertext,
	})
}

// handleDecrypt handles POST /v1/aead/decrypt.
func (h *Handler) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	app := AppFromContext(r.Context())
	if app == nil {
		h.writeError(w, r, http.StatusUnauthorized, domain.ErrCredentialsMissing.Code, "authentication required", nil)
		return
	}

	var req DecryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "SV-SYS-4000", "invalid request body", nil)
		return
	}
	if req.KeyName == "" {
		h.writeError(w, r, http.StatusBadRequest, "SV-ARG-1002", "key_name is required", nil)
		return
	}

	alg := domain.Algorithm{
		Family:    domain.Family(req.Algorithm.Family),
		TagLength: req.Algorithm.TagLength,
	}

	resp, err := h.cfg.Aead.Decrypt(r.Context(), &service.DecryptRequest{
		App:        app.ID,
		KeyName:    req.KeyName,
		Algorithm:  alg,
		Nonce:      req.Nonce,
		AAD:        req.AAD,
		Ciphertext: req.Ciphertext,
	})

	h.record(audit.NewRecord(audit.OpDecrypt, getRequestID(r), app.ID, resultCode(err)).
		WithKey(domain.NewKeyTriple(app.ID, req.KeyName).String()).
		WithAlgorithm(alg.String()))

	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, DecryptResponse{
		Plaintext: resp.Plaintext,
	})
}
