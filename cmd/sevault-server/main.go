// Package main provides the entry point for sevault-server.
//
// sevault-server is the vault service process for Sevault, a
// cryptographic-service provider that fronts a secure element with an
// authenticated AEAD API.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/sevault-go/internal/audit"
	"github.com/yndnr/sevault-go/internal/core/service"
	"github.com/yndnr/sevault-go/internal/device"
	"github.com/yndnr/sevault-go/internal/infra/confloader"
	"github.com/yndnr/sevault-go/internal/infra/shutdown"
	"github.com/yndnr/sevault-go/internal/server/config"
	"github.com/yndnr/sevault-go/internal/server/httpserver"
	"github.com/yndnr/sevault-go/internal/server/httpserver/handler"
	"github.com/yndnr/sevault-go/internal/server/localserver"
	"github.com/yndnr/sevault-go/internal/storage"
	"github.com/yndnr/sevault-go/internal/storage/backup"
	"github.com/yndnr/sevault-go/internal/storage/keyinfo"
	"github.com/yndnr/sevault-go/internal/telemetry/logger"
	"github.com/yndnr/sevault-go/internal/telemetry/metric"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// restorePassphraseEnv names the environment variable that carries the
// backup passphrase for the -restore flag. Passing secrets on the command
// line leaks them through the process table.
const restorePassphraseEnv = "SEVAULT_RESTORE_PASSPHRASE"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command line flags
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		restoreFile = flag.String("restore", "", "Restore metadata from an encrypted backup file before serving")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("sevault-server %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return nil
	}

	// Load configuration
	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize logger
	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting sevault-server",
		"version", version,
		"commit", commit,
		"config", *configFile)

	// Metrics registry collects everything downstream, so it comes first.
	metrics := metric.NewRegistry()

	// Initialize the metadata store
	engine, err := initStorage(cfg, slogLogger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	engine.RegisterMetrics(metrics.Prometheus())

	ctx := context.Background()

	// Restore from a backup before anything reads the store.
	if *restoreFile != "" {
		if err := restoreBackup(ctx, engine, cfg, *restoreFile); err != nil {
			engine.Close()
			return fmt.Errorf("restore: %w", err)
		}
		log.Info("metadata restored from backup", "file", *restoreFile)
	}

	// Open the secure element
	element, err := initElement(cfg)
	if err != nil {
		engine.Close()
		return fmt.Errorf("init device: %w", err)
	}
	element = metric.InstrumentElement(element, metrics)

	// Initialize services
	services, err := initServices(ctx, engine, element, cfg, slogLogger)
	if err != nil {
		engine.Close()
		return fmt.Errorf("init services: %w", err)
	}
	metrics.RegisterSlotUsage(services.Keys.SlotUsage)

	// Audit trail
	auditWriter, auditCfg, retention, err := initAudit(cfg)
	if err != nil {
		engine.Close()
		return fmt.Errorf("init audit: %w", err)
	}

	// Backup manager
	backups, err := backup.NewManager(config.ToBackupConfig(cfg))
	if err != nil {
		engine.Close()
		return fmt.Errorf("init backup: %w", err)
	}

	// Create HTTP handler
	httpHandler := handler.New(handler.Config{
		Aead:        services.Aead,
		Keys:        services.Keys,
		Apps:        services.Apps,
		Element:     element,
		Engine:      engine,
		Backups:     backups,
		Audit:       auditWriter,
		AuditDir:    cfg.Audit.Dir,
		AuditCipher: auditCfg.Cipher,
		Metrics:     metrics.Handler(),
		Logger:      slogLogger,
	})

	middleware := &httpserver.MiddlewareConfig{
		Apps:   services.Apps,
		Logger: slogLogger,
		Audit:  auditWriter,
	}

	// Network listener
	routerCfg := httpserver.DefaultRouterConfig()
	routerCfg.Handler = httpHandler
	routerCfg.Middleware = middleware
	routerCfg.Metrics = metrics
	routerCfg.Logger = slogLogger
	routerCfg.AdminAllowList = cfg.Auth.Allowlist
	httpServer := httpserver.New(cfg.Server.HTTP.Addr, httpserver.NewRouter(routerCfg))

	// Local management socket serves the same API but trusts its peers
	// for admin operations.
	var localServer *localserver.Server
	if cfg.Server.Local.Enabled {
		localCfg := httpserver.DefaultRouterConfig()
		localCfg.Handler = httpHandler
		localCfg.Middleware = middleware
		localCfg.Metrics = metrics
		localCfg.Logger = slogLogger
		localCfg.LocalListener = true
		localServer = localserver.New(cfg.Server.Local.Path, httpserver.NewRouter(localCfg))
	}

	// Setup graceful shutdown
	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	// SIGHUP and config-file edits both re-read the file and apply the
	// log level.
	applyReload := func() {
		reloaded, err := loadConfig(*configFile)
		if err != nil {
			log.Error("config reload failed", "error", err)
			return
		}
		logger.SetLevel(reloaded.Log.Level)
		log.Info("log level reloaded", "level", reloaded.Log.Level)
	}

	reloadHandler := shutdown.NewReloadHandler(applyReload)
	reloadHandler.Start()

	var confWatcher *confloader.Watcher
	if *configFile != "" {
		confWatcher, err = confloader.NewWatcher(confloader.WithWatcherLogger(slogLogger))
		if err != nil {
			log.Warn("config watcher unavailable", "error", err)
		} else if err := confWatcher.Watch(*configFile); err != nil {
			log.Warn("config watch failed", "file", *configFile, "error", err)
			confWatcher = nil
		} else {
			confWatcher.OnChange(func(string) { applyReload() })
			confWatcher.StartAsync()
		}
	}

	// Periodic audit retention sweep.
	retentionStop := make(chan struct{})
	if retention != nil {
		go retentionLoop(retention, retentionStop, log)
	}

	// Register shutdown hooks (reverse order of startup)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})

	if localServer != nil {
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down local socket server")
			return localServer.Shutdown(ctx)
		})
	}

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		reloadHandler.Stop()
		if confWatcher != nil {
			confWatcher.Stop()
		}
		close(retentionStop)
		return nil
	})

	if auditWriter != nil {
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("closing audit trail")
			return auditWriter.Close()
		})
	}

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("closing secure element")
		return element.Close()
	})

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("closing metadata store")
		return engine.Close()
	})

	// Start HTTP server in goroutine
	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr)

		var err error
		if cfg.Server.HTTP.TLSCertFile != "" && cfg.Server.HTTP.TLSKeyFile != "" {
			err = httpServer.ListenAndServeTLS(
				cfg.Server.HTTP.TLSCertFile,
				cfg.Server.HTTP.TLSKeyFile,
				cfg.Server.HTTP.ClientCAFile)
		} else {
			err = httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	if localServer != nil {
		go func() {
			log.Info("local socket listening", "path", localServer.Path())
			if err := localServer.ListenAndServe(); err != nil {
				log.Error("local socket error", "error", err)
			}
		}()
	}

	// Wait for shutdown signal
	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	// Start with defaults
	cfg := config.Default()

	// Create loader with optional config file
	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)

	// Load and unmarshal
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger initializes the structured logger.
// Returns both the logger interface and slog.Logger for components that need it.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}

	// Set as default logger
	logger.SetDefault(log)

	return log, logger.Slog(log), nil
}

// initStorage opens the badger-backed metadata store.
func initStorage(cfg *config.ServerConfig, log *slog.Logger) (*storage.BadgerEngine, error) {
	return storage.NewBadgerEngine(config.ToKVConfig(cfg), log)
}

// initElement opens the configured secure element driver.
func initElement(cfg *config.ServerConfig) (device.SecureElement, error) {
	switch cfg.Device.Driver {
	case "", "soft":
		return device.NewSoftElement()
	default:
		return nil, fmt.Errorf("unknown device driver %q", cfg.Device.Driver)
	}
}

// restoreBackup decrypts a backup archive and loads it into the store.
func restoreBackup(ctx context.Context, engine *storage.BadgerEngine, cfg *config.ServerConfig, path string) error {
	passphrase := os.Getenv(restorePassphraseEnv)
	if passphrase == "" {
		return fmt.Errorf("%s must be set to restore a backup", restorePassphraseEnv)
	}

	mgr, err := backup.NewManager(config.ToBackupConfig(cfg))
	if err != nil {
		return err
	}

	data, info, err := mgr.Read(path, []byte(passphrase))
	if err != nil {
		return err
	}

	if err := engine.LoadSnapshot(ctx, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("load snapshot %s: %w", info.ID, err)
	}
	return nil
}

// Services holds all initialized services.
type Services struct {
	Aead *service.AeadService
	Keys *service.KeyService
	Apps *service.ApplicationService
}

// initServices initializes all domain services over the persistent stores.
func initServices(ctx context.Context, engine storage.KVEngine, element device.SecureElement, cfg *config.ServerConfig, log *slog.Logger) (*Services, error) {
	keyStore := keyinfo.NewKeyInfoStore(engine)
	appStore := keyinfo.NewApplicationStore(engine)

	keySvc := service.NewKeyService(keyStore, element)

	// Rebind persisted key metadata to element slots before serving.
	if err := keySvc.Recover(ctx); err != nil {
		return nil, fmt.Errorf("key recovery: %w", err)
	}

	aeadSvc := service.NewAeadService(keyStore, element, logger.Default())
	appSvc := service.NewApplicationService(appStore, config.ToAuthConfig(cfg))

	log.Info("services initialized",
		"aead_service", "ready",
		"key_service", "ready",
		"application_service", "ready")

	return &Services{
		Aead: aeadSvc,
		Keys: keySvc,
		Apps: appSvc,
	}, nil
}

// initAudit opens the audit trail writer and its retention policy. A
// disabled trail returns all nils.
func initAudit(cfg *config.ServerConfig) (*audit.Writer, audit.Config, *audit.Retention, error) {
	if !cfg.Audit.Enabled {
		return nil, audit.Config{}, nil, nil
	}

	auditCfg, err := config.ToAuditConfig(cfg)
	if err != nil {
		return nil, audit.Config{}, nil, err
	}

	writer, err := audit.NewWriter(auditCfg)
	if err != nil {
		return nil, audit.Config{}, nil, err
	}

	var retention *audit.Retention
	if opts := config.ToRetentionOptions(cfg); len(opts) > 0 {
		retention = audit.NewRetention(cfg.Audit.Dir, opts...)
	}

	return writer, auditCfg, retention, nil
}

// retentionLoop applies the audit retention policy hourly until stopped.
func retentionLoop(retention *audit.Retention, stop <-chan struct{}, log logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := retention.Apply(); err != nil {
				log.Warn("audit retention sweep failed", "error", err)
			}
		case <-stop:
			return
		}
	}
}
