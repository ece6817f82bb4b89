// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr    = "127.0.0.1:5090"
	DefaultLocalSocket = "/var/run/sevault/sevault.sock"

	DefaultDeviceDriver = "soft"

	DefaultStorageEngine = "badger"
	DefaultDataDir       = "/var/lib/sevault/data"
	DefaultGCInterval    = 10 * time.Minute

	DefaultAuthCacheTTL  = 60 * time.Second
	DefaultAuthCacheSize = 10000

	DefaultAuditDir      = "/var/lib/sevault/audit"
	DefaultAuditSyncMode = "batch"
	DefaultAuditCipher   = "aes-256-gcm"

	DefaultBackupDir = "/var/lib/sevault/backup"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
			Local: LocalConfig{
				Enabled: true,
				Path:    DefaultLocalSocket,
			},
		},
		Device: DeviceSection{
			Driver: DefaultDeviceDriver,
		},
		Storage: StorageSection{
			Engine:     DefaultStorageEngine,
			DataDir:    DefaultDataDir,
			SyncWrites: true,
			GCInterval: DefaultGCInterval,
		},
		Auth: AuthSection{
			CacheTTL:  DefaultAuthCacheTTL,
			CacheSize: DefaultAuthCacheSize,
		},
		Audit: AuditSection{
			Enabled:  true,
			Dir:      DefaultAuditDir,
			SyncMode: DefaultAuditSyncMode,
			Cipher:   DefaultAuditCipher,
		},
		Backup: BackupSection{
			Dir: DefaultBackupDir,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
