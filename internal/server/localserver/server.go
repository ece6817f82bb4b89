package localserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
)

// socketMode keeps the socket owner/group accessible only. Group
// membership is the deployment's admin gate.
const socketMode = 0o660

// Server serves an http.Handler over a Unix domain socket.
type Server struct {
	httpServer *http.Server
	path       string
}

// New creates a new local server serving handler on socketPath.
func New(socketPath string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{Handler: handler},
		path:       socketPath,
	}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// ListenAndServe binds the socket and serves until Shutdown. A stale
// socket file from an unclean exit is removed first; a live one is
// left alone so two servers cannot fight over the same path.
func (s *Server) ListenAndServe() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("localserver: socket dir: %w", err)
	}
	if err := removeStaleSocket(s.path); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("localserver: listen: %w", err)
	}
	if err := os.Chmod(s.path, socketMode); err != nil {
		listener.Close()
		return fmt.Errorf("localserver: chmod socket: %w", err)
	}

	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server and removes the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}

// removeStaleSocket deletes a leftover socket file nobody answers on.
func removeStaleSocket(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("localserver: stat socket: %w", err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("localserver: %s exists and is not a socket", path)
	}

	conn, err := net.Dial("unix", path)
	if err == nil {
		conn.Close()
		return fmt.Errorf("localserver: %s already in use", path)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("localserver: remove stale socket: %w", err)
	}
	return nil
}
