package connection

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
)

func TestNewSocketClient(t *testing.T) {
	client := NewSocketClient("/run/sevault/sevault.sock", "", "")
	if client == nil {
		t.Fatal("NewSocketClient returned nil")
	}
}

func TestSocketClient_Request(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sevault.sock")

	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-App-ID") != "" {
			t.Errorf("X-App-ID should be empty for credential-less socket client")
		}
		w.Write([]byte(`{"code":"OK","data":{"status":"healthy"}}`))
	})
	srv := &http.Server{Handler: mux}
	go srv.Serve(listener)
	defer srv.Close()

	client := NewSocketClient(path, "", "")
	resp, err := client.Get(context.Background(), "/health")
	if err != nil {
		t.Fatalf("Get over socket failed: %v", err)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := ParseResponse(resp, &health); err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("status = %q, want healthy", health.Status)
	}
}

func TestSocketClient_Credentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sevault.sock")

	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/keys", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-App-ID"); got != "sva-abc" {
			t.Errorf("X-App-ID = %q, want sva-abc", got)
		}
		w.Write([]byte(`{"code":"OK"}`))
	})
	srv := &http.Server{Handler: mux}
	go srv.Serve(listener)
	defer srv.Close()

	client := NewSocketClient(path, "sva-abc", "svs_secret")
	resp, err := client.Get(context.Background(), "/v1/keys")
	if err != nil {
		t.Fatalf("Get over socket failed: %v", err)
	}
	resp.Body.Close()
}

func TestSocketClient_NoServer(t *testing.T) {
	client := NewSocketClient(filepath.Join(t.TempDir(), "absent.sock"), "", "")
	if _, err := client.Get(context.Background(), "/health"); err == nil {
		t.Error("expected error dialing absent socket")
	}
}
