// Package httpserver provides the HTTP/HTTPS server for Sevault.
//
// It uses the Go standard library net/http for implementation,
// providing RESTful API endpoints for AEAD operations, key and
// application management.
package httpserver

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net/http"

	"github.com/yndnr/sevault-go/internal/infra/tlsroots"
)

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	watcher    *tlsroots.Watcher
	handler    http.Handler
}

// New creates a new HTTP server.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
		handler: handler,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// ListenAndServeTLS starts the HTTPS server with hot-reloaded
// certificates. When clientCAFile is non-empty, clients must present a
// certificate signed by one of its roots.
func (s *Server) ListenAndServeTLS(certFile, keyFile, clientCAFile string) error {
	watcher, err := tlsroots.NewWatcher(certFile, keyFile)
	if err != nil {
		return err
	}
	watcher.StartAsync()
	s.watcher = watcher

	tlsConfig := &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: watcher.GetCertificate,
	}

	if clientCAFile != "" {
		pool := tlsroots.NewEmptyPool()
		if err := pool.AddCertFile(clientCAFile); err != nil {
			watcher.Stop()
			return err
		}
		tlsConfig.ClientCAs = pool.Pool()
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}

	s.httpServer.TLSConfig = tlsConfig

	// Certificates come from the watcher, not from files passed here.
	return s.httpServer.ListenAndServeTLS("", "")
}

// ClientCAs returns the configured client CA pool, nil without mTLS.
func (s *Server) ClientCAs() *x509.CertPool {
	if s.httpServer.TLSConfig == nil {
		return nil
	}
	return s.httpServer.TLSConfig.ClientCAs
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
