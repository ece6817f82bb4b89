// Package connection provides connection management for sevault-cli.
package connection

import (
	"context"
	"net"
	"net/http"
	"time"
)

// NewSocketClient creates a client that speaks HTTP over the server's
// local Unix domain socket. Credentials are optional there: the socket's
// file permissions already gate admin access.
func NewSocketClient(socketPath, appID, appSecret string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}

	return &Client{
		// Host is a placeholder; the transport always dials the socket.
		baseURL:   "http://sevault",
		appID:     appID,
		appSecret: appSecret,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}
