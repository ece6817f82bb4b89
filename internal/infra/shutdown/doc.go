// Package shutdown provides graceful shutdown for Sevault.
//
// This package handles process termination signals:
//
//   - Signal handling (SIGINT, SIGTERM)
//   - Timeout-bounded cleanup hooks, run in reverse registration order
//   - SIGHUP reload callbacks for configuration changes
//
// Usage:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown(func(ctx context.Context) error { return server.Stop(ctx) })
//	h.OnShutdown(func(ctx context.Context) error { return engine.Close() })
//	return h.Wait() // blocks until SIGINT/SIGTERM, then runs hooks
package shutdown
