// Package config defines the server configuration structure.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/yndnr/sevault-go/pkg/crypto/atrest"
)

// maxSocketPath is the portable sun_path limit (104 bytes on the BSDs,
// 108 on Linux).
const maxSocketPath = 104

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyDevice(&cfg.Device); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyAuth(&cfg.Auth); err != nil {
		return err
	}
	if err := verifyAudit(&cfg.Audit); err != nil {
		return err
	}
	if err := verifyBackup(&cfg.Backup); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr %q: %w", cfg.HTTP.Addr, err)
	}

	cert, key := cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile
	if (cert == "") != (key == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	if cert != "" {
		if err := fileExists("server.http.tls_cert_file", cert); err != nil {
			return err
		}
		if err := fileExists("server.http.tls_key_file", key); err != nil {
			return err
		}
	}
	if cfg.HTTP.ClientCAFile != "" {
		if cert == "" {
			return errors.New("server.http.client_ca_file requires TLS to be configured")
		}
		if err := fileExists("server.http.client_ca_file", cfg.HTTP.ClientCAFile); err != nil {
			return err
		}
	}

	if cfg.Local.Enabled {
		if cfg.Local.Path == "" {
			return errors.New("server.local.path is required when the local socket is enabled")
		}
		if len(cfg.Local.Path) > maxSocketPath {
			return fmt.Errorf("server.local.path exceeds %d bytes", maxSocketPath)
		}
	}

	return nil
}

func verifyDevice(cfg *DeviceSection) error {
	if cfg.Driver != "soft" {
		return fmt.Errorf("device.driver %q is unknown (supported: soft)", cfg.Driver)
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Engine {
	case "badger":
		if cfg.DataDir == "" {
			return errors.New("storage.data_dir is required")
		}

		// Check the data directory exists or can be created
		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return errors.New("cannot create data directory: " + err.Error())
		}
	case "memory":
		// Nothing on disk.
	default:
		return fmt.Errorf("storage.engine %q is unknown (supported: badger, memory)", cfg.Engine)
	}

	if cfg.GCInterval < 0 {
		return errors.New("storage.gc_interval must not be negative")
	}

	return nil
}

func verifyAuth(cfg *AuthSection) error {
	if cfg.CacheTTL < 0 {
		return errors.New("auth.cache_ttl must not be negative")
	}
	if cfg.CacheSize < 0 {
		return errors.New("auth.cache_size must not be negative")
	}

	for _, entry := range cfg.Allowlist {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return fmt.Errorf("auth.allowlist entry %q: %w", entry, err)
			}
		} else if net.ParseIP(entry) == nil {
			return fmt.Errorf("auth.allowlist entry %q is not an IP address", entry)
		}
	}

	return nil
}

func verifyAudit(cfg *AuditSection) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.Dir == "" {
		return errors.New("audit.dir is required when audit is enabled")
	}

	switch cfg.SyncMode {
	case "", "sync", "batch":
	default:
		return fmt.Errorf("audit.sync_mode %q is unknown (supported: sync, batch)", cfg.SyncMode)
	}

	if cfg.SyncInterval < 0 || cfg.RetainAge < 0 {
		return errors.New("audit durations must not be negative")
	}
	if cfg.MaxFileSize < 0 || cfg.MaxRecords < 0 || cfg.RetainSegments < 0 {
		return errors.New("audit limits must not be negative")
	}

	switch atrest.CipherType(cfg.Cipher) {
	case "", atrest.CipherAESGCM, atrest.CipherChaCha20:
	default:
		return fmt.Errorf("audit.cipher %q is unknown (supported: %s, %s)",
			cfg.Cipher, atrest.CipherAESGCM, atrest.CipherChaCha20)
	}

	if cfg.Key != "" && cfg.KeyFile != "" {
		return errors.New("audit.key and audit.key_file are mutually exclusive")
	}
	if cfg.Key != "" {
		key, err := hex.DecodeString(cfg.Key)
		if err != nil {
			return fmt.Errorf("audit.key: %w", err)
		}
		if len(key) != atrest.KeySize {
			return fmt.Errorf("audit.key is %d bytes, want %d", len(key), atrest.KeySize)
		}
	}
	if cfg.KeyFile != "" {
		if err := fileExists("audit.key_file", cfg.KeyFile); err != nil {
			return err
		}
	}

	return nil
}

func verifyBackup(cfg *BackupSection) error {
	if cfg.Dir == "" {
		return errors.New("backup.dir is required")
	}
	if cfg.RetentionCount < 0 || cfg.RetentionDays < 0 {
		return errors.New("backup retention must not be negative")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is unknown (supported: debug, info, warn, error)", cfg.Level)
	}

	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q is unknown (supported: json, text, console)", cfg.Format)
	}

	return nil
}

func fileExists(key, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s: %s is a directory", key, path)
	}
	return nil
}
