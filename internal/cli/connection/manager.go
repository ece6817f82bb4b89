// Package connection provides connection management for sevault-cli.
package connection

import (
	"fmt"
	"os"
)

// Target describes where and how to reach a server. Socket wins over
// Server when both are set: local admin work should not round-trip
// through the network listener.
type Target struct {
	Server    string
	Socket    string
	AppID     string
	AppSecret string
}

// Manager resolves targets to clients and caches the active one.
type Manager struct {
	current *Client
	target  Target
}

// NewManager creates a new connection manager.
func NewManager() *Manager {
	return &Manager{}
}

// Connect resolves the target and sets it as the active connection.
func (m *Manager) Connect(target Target) (*Client, error) {
	client, err := Dial(target)
	if err != nil {
		return nil, err
	}
	m.current = client
	m.target = target
	return client, nil
}

// Current returns the active client, or nil if not connected.
func (m *Manager) Current() *Client {
	return m.current
}

// Disconnect drops the active connection.
func (m *Manager) Disconnect() {
	m.current = nil
	m.target = Target{}
}

// Dial creates a client for the target without touching manager state.
func Dial(target Target) (*Client, error) {
	if target.Socket != "" {
		if _, err := os.Stat(target.Socket); err != nil {
			return nil, fmt.Errorf("socket %s: %w", target.Socket, err)
		}
		return NewSocketClient(target.Socket, target.AppID, target.AppSecret), nil
	}
	if target.Server == "" {
		return nil, fmt.Errorf("no server address or socket path configured")
	}
	return NewHTTPClient(target.Server, target.AppID, target.AppSecret), nil
}
