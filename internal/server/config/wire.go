// Package config defines the server configuration structure.
package config

import (
	"encoding/hex"
	"fmt"

	"github.com/yndnr/sevault-go/internal/audit"
	"github.com/yndnr/sevault-go/internal/core/service"
	"github.com/yndnr/sevault-go/internal/storage"
	"github.com/yndnr/sevault-go/internal/storage/backup"
	"github.com/yndnr/sevault-go/pkg/crypto/atrest"
)

// ToKVConfig converts the storage section to a storage.KVConfig.
//
// Engine-specific tuning not exposed here keeps the storage defaults.
func ToKVConfig(cfg *ServerConfig) storage.KVConfig {
	kv := storage.DefaultKVConfig(cfg.Storage.DataDir)
	kv.Engine = cfg.Storage.Engine
	kv.Badger.SyncWrites = cfg.Storage.SyncWrites
	if cfg.Storage.GCInterval > 0 {
		kv.Badger.GCInterval = cfg.Storage.GCInterval.String()
	}
	return kv
}

// ToAuditConfig converts the audit section to an audit.Config, resolving
// the at-rest key material. Reads the keyfile when one is configured.
func ToAuditConfig(cfg *ServerConfig) (audit.Config, error) {
	ac := audit.DefaultConfig(cfg.Audit.Dir)
	if cfg.Audit.SyncMode != "" {
		ac.SyncMode = audit.SyncMode(cfg.Audit.SyncMode)
	}
	if cfg.Audit.SyncInterval > 0 {
		ac.SyncInterval = cfg.Audit.SyncInterval
	}
	if cfg.Audit.MaxFileSize > 0 {
		ac.MaxFileSize = cfg.Audit.MaxFileSize
	}
	if cfg.Audit.MaxRecords > 0 {
		ac.MaxRecords = cfg.Audit.MaxRecords
	}

	key, err := auditKey(&cfg.Audit)
	if err != nil {
		return audit.Config{}, err
	}
	if key != nil {
		cipherType := atrest.CipherType(cfg.Audit.Cipher)
		if cipherType == "" {
			cipherType = atrest.CipherAESGCM
		}
		cipher, err := atrest.New(key, cipherType)
		if err != nil {
			return audit.Config{}, fmt.Errorf("audit cipher: %w", err)
		}
		ac.Cipher = cipher
	}

	return ac, nil
}

// ToRetentionOptions returns the audit retention options from the config.
// An empty slice means retention never deletes anything.
func ToRetentionOptions(cfg *ServerConfig) []audit.RetentionOption {
	var opts []audit.RetentionOption
	if cfg.Audit.RetainSegments > 0 {
		opts = append(opts, audit.WithMaxSegments(cfg.Audit.RetainSegments))
	}
	if cfg.Audit.RetainAge > 0 {
		opts = append(opts, audit.WithMaxAge(cfg.Audit.RetainAge))
	}
	return opts
}

// ToBackupConfig converts the backup section to a backup.Config.
func ToBackupConfig(cfg *ServerConfig) backup.Config {
	return backup.Config{
		Dir:            cfg.Backup.Dir,
		RetentionCount: cfg.Backup.RetentionCount,
		RetentionDays:  cfg.Backup.RetentionDays,
	}
}

// ToAuthConfig converts the auth section to a service
// ApplicationServiceConfig, filling gaps with the service defaults.
func ToAuthConfig(cfg *ServerConfig) *service.ApplicationServiceConfig {
	ac := service.DefaultApplicationServiceConfig()
	if cfg.Auth.CacheTTL > 0 {
		ac.CacheTTL = cfg.Auth.CacheTTL
	}
	if cfg.Auth.CacheSize > 0 {
		ac.CacheSize = cfg.Auth.CacheSize
	}
	if len(cfg.Auth.Allowlist) > 0 {
		ac.GlobalAllowlist = cfg.Auth.Allowlist
	}
	return ac
}

// auditKey resolves the configured at-rest key, preferring the inline key
// over the keyfile. Returns nil when neither is set.
func auditKey(cfg *AuditSection) ([]byte, error) {
	switch {
	case cfg.Key != "":
		key, err := hex.DecodeString(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("audit.key: %w", err)
		}
		return key, nil
	case cfg.KeyFile != "":
		return atrest.LoadKeyfile(cfg.KeyFile)
	default:
		return nil, nil
	}
}
