// Package handler provides HTTP request handlers for Sevault.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/yndnr/sevault-go/internal/audit"
	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/internal/core/service"
	"github.com/yndnr/sevault-go/internal/infra/buildinfo"
	"github.com/yndnr/sevault-go/internal/storage/backup"
)

// defaultAuditTailLimit bounds GET /admin/v1/audit when the caller does
// not pass ?limit.
const defaultAuditTailLimit = 100

// handleAdminStatus handles GET /admin/v1/status/summary.
func (h *Handler) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusSummaryResponse{
		Status:  "running",
		Version: buildinfo.Get().Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	if h.cfg.Element != nil && h.cfg.Keys != nil {
		used, total := h.cfg.Keys.SlotUsage()
		resp.Element = &ElementStatus{
			Serial:     h.cfg.Element.Serial(),
			SlotsUsed:  used,
			SlotsTotal: total,
		}
	}

	if h.cfg.Engine != nil {
		stats, err := h.cfg.Engine.Stats(r.Context())
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		resp.Storage = &StorageStatus{
			TotalKeys:  stats.TotalKeys,
			TotalSize:  stats.TotalSize,
			LastGCTime: stats.LastGCTime,
		}
	}

	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleRegisterApp handles POST /admin/v1/apps.
func (h *Handler) handleRegisterApp(w http.ResponseWriter, r *http.Request) {
	var req RegisterAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "SV-SYS-4000", "invalid request body", nil)
		return
	}

	if req.Name == "" {
		h.writeError(w, r, http.StatusBadRequest, "SV-ARG-1002", "name is required", nil)
		return
	}
	if !domain.IsValidRole(req.Role) {
		h.writeError(w, r, http.StatusBadRequest, "SV-APP-4001", "invalid role, must be one of: client, admin", nil)
		return
	}

	resp, err := h.cfg.Apps.RegisterApplication(r.Context(), &service.RegisterApplicationRequest{
		Name:        req.Name,
		Role:        req.Role,
		Description: req.Description,
		Allowlist:   req.Allowlist,
		RateLimit:   req.RateLimit,
		ExpiresAt:   req.ExpiresAt,
		CreatedBy:   callerID(r.Context()),
	})

	h.record(audit.NewRecord(audit.OpAppRegister, getRequestID(r), callerID(r.Context()), resultCode(err)).
		WithDetail(req.Name))

	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	// The plaintext secret appears in this response and nowhere else.
	h.writeJSON(w, r, http.StatusCreated, RegisterAppResponse{
		AppID:     resp.AppID,
		Secret:    resp.Secret,
		Name:      resp.Name,
		Role:      resp.Role,
		CreatedAt: resp.CreatedAt,
	})
}

// handleListApps handles GET /admin/v1/apps.
func (h *Handler) handleListApps(w http.ResponseWriter, r *http.Request) {
	resp, err := h.cfg.Apps.ListApplications(r.Context(), &service.ListApplicationsRequest{
		Role: r.URL.Query().Get("role"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	apps := make([]AppResponse, len(resp.Apps))
	for i, app := range resp.Apps {
		apps[i] = AppResponse{
			AppID:       app.AppID,
			Name:        app.Name,
			Role:        app.Role,
			Description: app.Description,
			Status:      app.Status,
			RateLimit:   app.RateLimit,
			CreatedAt:   app.CreatedAt,
			LastUsedAt:  app.LastUsedAt,
		}
	}

	h.writeJSON(w, r, http.StatusOK, ListAppsResponse{Apps: apps})
}

// handleSetAppStatus handles POST /admin/v1/apps/{app_id}/status.
func (h *Handler) handleSetAppStatus(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("app_id")
	if appID == "" {
		h.writeError(w, r, http.StatusBadRequest, "SV-ARG-1002", "app_id is required", nil)
		return
	}

	var req SetAppStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "SV-SYS-4000", "invalid request body", nil)
		return
	}

	_, err := h.cfg.Apps.SetApplicationStatus(r.Context(), &service.SetApplicationStatusRequest{
		AppID:   appID,
		Enabled: req.Enabled,
	})

	h.record(audit.NewRecord(audit.OpAppStatus, getRequestID(r), callerID(r.Context()), resultCode(err)).
		WithDetail(appID + " enabled=" + strconv.FormatBool(req.Enabled)))

	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

// handleRotateApp handles POST /admin/v1/apps/{app_id}/rotate.
func (h *Handler) handleRotateApp(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("app_id")
	if appID == "" {
		h.writeError(w, r, http.StatusBadRequest, "SV-ARG-1002", "app_id is required", nil)
		return
	}

	resp, err := h.cfg.Apps.RotateApplicationSecret(r.Context(), &service.RotateApplicationSecretRequest{
		AppID: appID,
	})

	h.record(audit.NewRecord(audit.OpAppRotate, getRequestID(r), callerID(r.Context()), resultCode(err)).
		WithDetail(appID))

	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, RotateAppResponse{
		AppID:     resp.AppID,
		NewSecret: resp.NewSecret,
	})
}

// handleBackup handles POST /admin/v1/backup.
func (h *Handler) handleBackup(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Backups == nil || h.cfg.Engine == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Code, "backups not configured", nil)
		return
	}

	var req BackupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "SV-SYS-4000", "invalid request body", nil)
		return
	}
	if req.Passphrase == "" {
		h.writeError(w, r, http.StatusBadRequest, "SV-ARG-1002", "passphrase is required", nil)
		return
	}

	info, err := h.createBackup(r, []byte(req.Passphrase))

	h.record(audit.NewRecord(audit.OpBackup, getRequestID(r), callerID(r.Context()), resultCode(err)))

	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, BackupResponse{
		ID:        info.ID,
		Path:      info.Path,
		Size:      info.Size,
		Checksum:  info.Checksum,
		CreatedAt: time.UnixMilli(info.CreatedAt),
	})
}

// createBackup streams the engine snapshot into a sealed backup file.
func (h *Handler) createBackup(r *http.Request, passphrase []byte) (*backup.Info, error) {
	snapshot, err := h.cfg.Engine.SaveSnapshot(r.Context())
	if err != nil {
		return nil, err
	}
	defer snapshot.Close()

	info, err := h.cfg.Backups.Create(snapshot, passphrase)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return info, nil
}

// handleAuditTail handles GET /admin/v1/audit.
func (h *Handler) handleAuditTail(w http.ResponseWriter, r *http.Request) {
	if h.cfg.AuditDir == "" {
		h.writeError(w, r, http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Code, "audit trail not configured", nil)
		return
	}

	limit := defaultAuditTailLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, r, http.StatusBadRequest, "SV-ARG-1001", "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	// Flush buffered records so the tail includes the operations that
	// just happened.
	if h.cfg.Audit != nil {
		if err := h.cfg.Audit.Flush(); err != nil {
			h.handleServiceError(w, r, domain.ErrStorageError.WithCause(err))
			return
		}
	}

	reader, err := audit.NewReader(h.cfg.AuditDir, h.cfg.AuditCipher)
	if err != nil {
		h.handleServiceError(w, r, domain.ErrStorageError.WithCause(err))
		return
	}
	defer reader.Close()

	filter := audit.Filter{App: r.URL.Query().Get("app")}
	if opName := r.URL.Query().Get("op"); opName != "" {
		op, ok := audit.ParseOp(opName)
		if !ok {
			h.writeError(w, r, http.StatusBadRequest, "SV-ARG-1001", "unknown op filter", nil)
			return
		}
		filter.Op = op
	}

	all, err := reader.Query(filter)
	if err != nil {
		h.handleServiceError(w, r, domain.ErrStorageError.WithCause(err))
		return
	}

	// The reader yields trail order; keep the newest records.
	records := all
	if len(records) > limit {
		records = records[len(records)-limit:]
	}

	out := make([]AuditRecord, len(records))
	for i, rec := range records {
		out[i] = AuditRecord{
			Op:        rec.Op.String(),
			Timestamp: time.UnixMilli(rec.Timestamp),
			RequestID: rec.RequestID,
			App:       rec.App,
			Key:       rec.Key,
			Algorithm: rec.Algorithm,
			Code:      rec.Code,
			Detail:    rec.Detail,
		}
	}

	h.writeJSON(w, r, http.StatusOK, AuditTailResponse{
		Records: out,
		Total:   len(all),
	})
}
