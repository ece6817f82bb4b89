// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for sevault-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Device  DeviceSection  `koanf:"device"`
	Storage StorageSection `koanf:"storage"`
	Auth    AuthSection    `koanf:"auth"`
	Audit   AuditSection   `koanf:"audit"`
	Backup  BackupSection  `koanf:"backup"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP  HTTPConfig  `koanf:"http"`
	Local LocalConfig `koanf:"local"`
}

// HTTPConfig configures the HTTP server. Setting both TLSCertFile and
// TLSKeyFile enables TLS; additionally setting ClientCAFile requires
// clients to present a certificate signed by one of the CA roots.
type HTTPConfig struct {
	Addr         string `koanf:"addr"`
	TLSCertFile  string `koanf:"tls_cert_file"`
	TLSKeyFile   string `koanf:"tls_key_file"`
	ClientCAFile string `koanf:"client_ca_file"`
}

// LocalConfig configures the local management socket. The socket serves
// the same API as the HTTP listener for same-host callers.
type LocalConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// DeviceSection configures the secure element backing key storage.
type DeviceSection struct {
	// Driver selects the element implementation. Only "soft" is
	// available; the field exists so hardware drivers slot in without a
	// config change.
	Driver string `koanf:"driver"`
}

// StorageSection configures the key-info store.
type StorageSection struct {
	// Engine specifies the KV engine type ("badger", "memory").
	Engine string `koanf:"engine"`

	// DataDir is the storage directory (badger only).
	DataDir string `koanf:"data_dir"`

	// SyncWrites fsyncs every write. Key metadata is low-volume and must
	// not be lost, so this defaults to true.
	SyncWrites bool `koanf:"sync_writes"`

	// GCInterval is the interval between value-log GC runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// AuthSection configures application authentication.
type AuthSection struct {
	// CacheTTL is how long an authenticated application stays cached
	// before the argon2 verification is repeated.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// CacheSize is the maximum number of cached applications.
	CacheSize int `koanf:"cache_size"`

	// Allowlist is the global IP/CIDR allowlist applied to every
	// application. Empty means no restriction.
	Allowlist []string `koanf:"allowlist"`
}

// AuditSection configures the audit trail. Zero values for the sizing
// fields fall back to the audit writer's own defaults.
type AuditSection struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`

	// SyncMode is "sync" (fsync per record) or "batch".
	SyncMode     string        `koanf:"sync_mode"`
	SyncInterval time.Duration `koanf:"sync_interval"`

	// MaxFileSize and MaxRecords bound a segment before rotation.
	MaxFileSize int64 `koanf:"max_file_size"`
	MaxRecords  int   `koanf:"max_records"`

	// RetainSegments and RetainAge bound how much history retention
	// keeps. Zero means unlimited.
	RetainSegments int           `koanf:"retain_segments"`
	RetainAge      time.Duration `koanf:"retain_age"`

	// Cipher selects the at-rest algorithm ("aes-256-gcm",
	// "chacha20-poly1305") when a key is configured.
	Cipher string `koanf:"cipher"`

	// Key is a hex-encoded 256-bit at-rest key placed directly in the
	// config. KeyFile points at a file holding the same hex encoding and
	// is the recommended form; the two are mutually exclusive. With
	// neither set, segments are written in the clear.
	Key     string `koanf:"key"`
	KeyFile string `koanf:"key_file"`
}

// BackupSection configures encrypted backups. Zero retention values fall
// back to the backup manager's defaults.
type BackupSection struct {
	Dir            string `koanf:"dir"`
	RetentionCount int    `koanf:"retention_count"`
	RetentionDays  int    `koanf:"retention_days"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
