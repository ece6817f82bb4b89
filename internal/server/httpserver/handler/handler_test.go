// Package handler provides HTTP request handlers for Sevault.
package handler

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/internal/core/service"
	"github.com/yndnr/sevault-go/internal/device"
	"github.com/yndnr/sevault-go/internal/storage/memory"
)

// testVault wires a handler over the in-memory stores and the software
// element, the same composition the server uses minus persistence.
type testVault struct {
	handler *Handler
	keys    *service.KeyService
	apps    *service.ApplicationService
	app     *domain.Application
	secret  string
}

func newTestVault(t *testing.T) *testVault {
	t.Helper()

	element, err := device.NewSoftElement()
	if err != nil {
		t.Fatalf("NewSoftElement: %v", err)
	}
	t.Cleanup(func() { element.Close() })

	keyStore := memory.NewKeyInfoStore()
	appStore := memory.NewApplicationStore()

	keySvc := service.NewKeyService(keyStore, element)
	aeadSvc := service.NewAeadService(keyStore, element, nil)
	appSvc := service.NewApplicationService(appStore, service.DefaultApplicationServiceConfig())

	app, secret, err := domain.NewApplication("test-app", domain.RoleClient)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	if err := appStore.Create(t.Context(), app); err != nil {
		t.Fatalf("Create app: %v", err)
	}

	h := New(Config{
		Aead:    aeadSvc,
		Keys:    keySvc,
		Apps:    appSvc,
		Element: element,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return &testVault{
		handler: h,
		keys:    keySvc,
		apps:    appSvc,
		app:     app,
		secret:  secret,
	}
}

// do sends a request through the handler, optionally authenticated as the
// vault's test application.
func (v *testVault) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Request-ID", "req-test")
	if authed {
		req = req.WithContext(WithApp(req.Context(), v.app))
	}

	w := httptest.NewRecorder()
	v.handler.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var envelope struct {
		Code string          `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	var data T
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	return data
}

func (v *testVault) createKey(t *testing.T, name string, family string) {
	t.Helper()

	w := v.do(t, http.MethodPost, "/v1/keys", CreateKeyRequest{
		Name: name,
		Attributes: KeyAttributes{
			Type:      "aes",
			Bits:      128,
			Usage:     KeyUsage{Encrypt: true, Decrypt: true},
			Algorithm: family,
		},
	}, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("create key: status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandler_Health(t *testing.T) {
	v := newTestVault(t)

	w := v.do(t, http.MethodGet, "/health", nil, false)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	w = v.do(t, http.MethodGet, "/ready", nil, false)
	if w.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", w.Code)
	}
}

func TestHandler_EncryptDecryptRoundTrip(t *testing.T) {
	for _, family := range []string{"aead-gcm", "aead-ccm"} {
		t.Run(family, func(t *testing.T) {
			v := newTestVault(t)
			v.createKey(t, "rt", family)

			nonce := make([]byte, 12)
			rand.Read(nonce)
			plaintext := []byte("hello")

			w := v.do(t, http.MethodPost, "/v1/aead/encrypt", EncryptRequest{
				KeyName:   "rt",
				Algorithm: Algorithm{Family: family},
				Nonce:     nonce,
				AAD:       []byte("header"),
				Plaintext: plaintext,
			}, true)
			if w.Code != http.StatusOK {
				t.Fatalf("encrypt status = %d, body = %s", w.Code, w.Body.String())
			}

			enc := decodeData[EncryptResponse](t, w)
			if len(enc.Ciphertext) != len(plaintext)+domain.DefaultTagLength {
				t.Errorf("ciphertext length = %d, want %d", len(enc.Ciphertext), len(plaintext)+domain.DefaultTagLength)
			}

			w = v.do(t, http.MethodPost, "/v1/aead/decrypt", DecryptRequest{
				KeyName:    "rt",
				Algorithm:  Algorithm{Family: family},
				Nonce:      nonce,
				AAD:        []byte("header"),
				Ciphertext: enc.Ciphertext,
			}, true)
			if w.Code != http.StatusOK {
				t.Fatalf("decrypt status = %d, body = %s", w.Code, w.Body.String())
			}

			dec := decodeData[DecryptResponse](t, w)
			if !bytes.Equal(dec.Plaintext, plaintext) {
				t.Errorf("plaintext = %q, want %q", dec.Plaintext, plaintext)
			}
		})
	}
}

func TestHandler_EncryptErrors(t *testing.T) {
	v := newTestVault(t)
	v.createKey(t, "k1", "aead-gcm")

	nonce := make([]byte, 12)

	t.Run("requires authentication", func(t *testing.T) {
		w := v.do(t, http.MethodPost, "/v1/aead/encrypt", EncryptRequest{
			KeyName:   "k1",
			Algorithm: Algorithm{Family: "aead-gcm"},
			Nonce:     nonce,
			Plaintext: []byte("x"),
		}, false)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("rejects invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/aead/encrypt", bytes.NewReader([]byte("{")))
		req = req.WithContext(WithApp(req.Context(), v.app))
		w := httptest.NewRecorder()
		v.handler.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("rejects missing key name", func(t *testing.T) {
		w := v.do(t, http.MethodPost, "/v1/aead/encrypt", EncryptRequest{
			Algorithm: Algorithm{Family: "aead-gcm"},
			Nonce:     nonce,
			Plaintext: []byte("x"),
		}, true)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("rejects non-AEAD family", func(t *testing.T) {
		w := v.do(t, http.MethodPost, "/v1/aead/encrypt", EncryptRequest{
			KeyName:   "k1",
			Algorithm: Algorithm{Family: "cipher-ctr"},
			Nonce:     nonce,
			Plaintext: []byte("x"),
		}, true)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if got := w.Header().Get("X-Error-Code"); got != "SV-KEY-4030" {
			t.Errorf("error code = %s, want SV-KEY-4030", got)
		}
	})

	t.Run("unknown key is 404", func(t *testing.T) {
		w := v.do(t, http.MethodPost, "/v1/aead/encrypt", EncryptRequest{
			KeyName:   "missing",
			Algorithm: Algorithm{Family: "aead-gcm"},
			Nonce:     nonce,
			Plaintext: []byte("x"),
		}, true)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

func TestHandler_DecryptErrors(t *testing.T) {
	v := newTestVault(t)
	v.createKey(t, "k1", "aead-gcm")

	nonce := make([]byte, 12)

	t.Run("short ciphertext is a bad request", func(t *testing.T) {
		w := v.do(t, http.MethodPost, "/v1/aead/decrypt", DecryptRequest{
			KeyName:    "k1",
			Algorithm:  Algorithm{Family: "aead-gcm"},
			Nonce:      nonce,
			Ciphertext: []byte("tiny"),
		}, true)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		if got := w.Header().Get("X-Error-Code"); got != "SV-ARG-1004" {
			t.Errorf("error code = %s, want SV-ARG-1004", got)
		}
	})

	t.Run("tampered tag is the opaque failure", func(t *testing.T) {
		w := v.do(t, http.MethodPost, "/v1/aead/encrypt", EncryptRequest{
			KeyName:   "k1",
			Algorithm: Algorithm{Family: "aead-gcm"},
			Nonce:     nonce,
			Plaintext: []byte("payload"),
		}, true)
		if w.Code != http.StatusOK {
			t.Fatalf("encrypt status = %d", w.Code)
		}
		enc := decodeData[EncryptResponse](t, w)
		enc.Ciphertext[len(enc.Ciphertext)-1] ^= 0x01

		w = v.do(t, http.MethodPost, "/v1/aead/decrypt", DecryptRequest{
			KeyName:    "k1",
			Algorithm:  Algorithm{Family: "aead-gcm"},
			Nonce:      nonce,
			Ciphertext: enc.Ciphertext,
		}, true)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", w.Code)
		}
		if got := w.Header().Get("X-Error-Code"); got != "SV-CRYPT-5000" {
			t.Errorf("error code = %s, want SV-CRYPT-5000", got)
		}
	})
}

func TestHandler_KeyLifecycle(t *testing.T) {
	v := newTestVault(t)

	t.Run("create", func(t *testing.T) {
		v.createKey(t, "lifecycle", "aead-gcm")
	})

	t.Run("duplicate create conflicts", func(t *testing.T) {
		w := v.do(t, http.MethodPost, "/v1/keys", CreateKeyRequest{
			Name: "lifecycle",
			Attributes: KeyAttributes{
				Type:      "aes",
				Bits:      128,
				Usage:     KeyUsage{Encrypt: true, Decrypt: true},
				Algorithm: "aead-gcm",
			},
		}, true)
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})

	t.Run("get", func(t *testing.T) {
		w := v.do(t, http.MethodGet, "/v1/keys/lifecycle", nil, true)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		key := decodeData[KeyResponse](t, w)
		if key.Name != "lifecycle" {
			t.Errorf("name = %s, want lifecycle", key.Name)
		}
		if key.Attributes.Algorithm != "aead-gcm" {
			t.Errorf("algorithm = %s, want aead-gcm", key.Attributes.Algorithm)
		}
	})

	t.Run("list", func(t *testing.T) {
		w := v.do(t, http.MethodGet, "/v1/keys", nil, true)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		list := decodeData[ListKeysResponse](t, w)
		if len(list.Keys) != 1 {
			t.Errorf("len(keys) = %d, want 1", len(list.Keys))
		}
	})

	t.Run("destroy", func(t *testing.T) {
		w := v.do(t, http.MethodDelete, "/v1/keys/lifecycle", nil, true)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}

		w = v.do(t, http.MethodGet, "/v1/keys/lifecycle", nil, true)
		if w.Code != http.StatusNotFound {
			t.Errorf("get after destroy: status = %d, want 404", w.Code)
		}
	})

	t.Run("invalid attributes rejected", func(t *testing.T) {
		w := v.do(t, http.MethodPost, "/v1/keys", CreateKeyRequest{
			Name: "weird",
			Attributes: KeyAttributes{
				Type:      "aes",
				Bits:      192,
				Usage:     KeyUsage{Encrypt: true},
				Algorithm: "aead-gcm",
			},
		}, true)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestHandler_AppAdmin(t *testing.T) {
	v := newTestVault(t)

	var appID string

	t.Run("register", func(t *testing.T) {
		w := v.do(t, http.MethodPost, "/admin/v1/apps", RegisterAppRequest{
			Name: "payments",
			Role: "client",
		}, true)
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		resp := decodeData[RegisterAppResponse](t, w)
		if resp.AppID == "" || resp.Secret == "" {
			t.Fatal("register response missing app_id or secret")
		}
		appID = resp.AppID
	})

	t.Run("register with bad role", func(t *testing.T) {
		w := v.do(t, http.MethodPost, "/admin/v1/apps", RegisterAppRequest{
			Name: "x",
			Role: "superuser",
		}, true)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("list", func(t *testing.T) {
		w := v.do(t, http.MethodGet, "/admin/v1/apps", nil, true)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		list := decodeData[ListAppsResponse](t, w)
		// The registered app plus the vault's own test application.
		if len(list.Apps) != 2 {
			t.Errorf("len(apps) = %d, want 2", len(list.Apps))
		}
		for _, app := range list.Apps {
			if app.AppID == "" {
				t.Error("listed app has empty id")
			}
		}
	})

	t.Run("disable and rotate", func(t *testing.T) {
		w := v.do(t, http.MethodPost, "/admin/v1/apps/"+appID+"/status", SetAppStatusRequest{Enabled: false}, true)
		if w.Code != http.StatusOK {
			t.Fatalf("disable status = %d", w.Code)
		}

		w = v.do(t, http.MethodPost, "/admin/v1/apps/"+appID+"/rotate", nil, true)
		if w.Code != http.StatusOK {
			t.Fatalf("rotate status = %d", w.Code)
		}
		resp := decodeData[RotateAppResponse](t, w)
		if resp.NewSecret == "" {
			t.Error("rotate returned empty secret")
		}
	})

	t.Run("status of unknown app", func(t *testing.T) {
		w := v.do(t, http.MethodPost, "/admin/v1/apps/sva-missing/status", SetAppStatusRequest{Enabled: true}, true)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

func TestHandler_StatusSummary(t *testing.T) {
	v := newTestVault(t)
	v.createKey(t, "s1", "aead-gcm")

	w := v.do(t, http.MethodGet, "/admin/v1/status/summary", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	resp := decodeData[StatusSummaryResponse](t, w)
	if resp.Status != "running" {
		t.Errorf("status = %s, want running", resp.Status)
	}
	if resp.Element == nil {
		t.Fatal("element status missing")
	}
	if resp.Element.SlotsUsed != 1 {
		t.Errorf("slots used = %d, want 1", resp.Element.SlotsUsed)
	}
	if resp.Element.Serial == "" {
		t.Error("element serial empty")
	}
}

func TestHandler_UnconfiguredCollaborators(t *testing.T) {
	v := newTestVault(t)

	t.Run("backup unavailable", func(t *testing.T) {
		w := v.do(t, http.MethodPost, "/admin/v1/backup", BackupRequest{Passphrase: "pw"}, true)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})

	t.Run("audit unavailable", func(t *testing.T) {
		w := v.do(t, http.MethodGet, "/admin/v1/audit", nil, true)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})
}
