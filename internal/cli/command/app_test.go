package command

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestAppCommand(t *testing.T) {
	cmd := AppCommand()
	if cmd == nil {
		t.Fatal("AppCommand returned nil")
	}

	if cmd.Name != "app" {
		t.Errorf("Name = %q, want %q", cmd.Name, "app")
	}

	subNames := make(map[string]bool)
	for _, sub := range cmd.Subcommands {
		subNames[sub.Name] = true
	}

	requiredSubs := []string{"list", "register", "disable", "enable", "rotate"}
	for _, name := range requiredSubs {
		if !subNames[name] {
			t.Errorf("missing subcommand: %s", name)
		}
	}
}

func TestAppCommand_RegisterFlags(t *testing.T) {
	cmd := AppCommand()

	var registerCmd *cli.Command
	for _, sub := range cmd.Subcommands {
		if sub.Name == "register" {
			registerCmd = sub
			break
		}
	}
	if registerCmd == nil {
		t.Fatal("register subcommand not found")
	}

	flagNames := make(map[string]bool)
	for _, flag := range registerCmd.Flags {
		flagNames[flag.Names()[0]] = true
	}

	requiredFlags := []string{"name", "role", "description", "allow", "rate-limit"}
	for _, name := range requiredFlags {
		if !flagNames[name] {
			t.Errorf("register should have --%s flag", name)
		}
	}
}

func TestAppList_Success(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/apps", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			errorResponse(w, http.StatusMethodNotAllowed, "SV-ARG-1000", "method not allowed")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]any{
			"apps": []map[string]any{
				{
					"app_id":     "sva-01kct9ns8he7a9m022x0tgbhds",
					"name":       "payments-service",
					"role":       "client",
					"status":     "active",
					"rate_limit": 100,
				},
			},
		})
	})

	ctx := testContext(server, "--output", "json")
	if err := appList(ctx); err != nil {
		t.Errorf("appList() error = %v", err)
	}
}

func TestAppList_TableFormat(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/apps", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"apps": []map[string]any{
				{
					"app_id":     "sva-test",
					"name":       "payments-service",
					"role":       "client",
					"status":     "active",
					"rate_limit": 100,
				},
			},
		})
	})

	ctx := testContext(server, "--output", "table")
	if err := appList(ctx); err != nil {
		t.Errorf("appList() table format error = %v", err)
	}
}

func TestAppList_ServerError(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/apps", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusInternalServerError, "SV-SYS-5000", "internal error")
	})

	ctx := testContext(server, "--output", "json")
	err := appList(ctx)
	if err == nil {
		t.Fatal("appList() expected error for server error")
	}
	if !strings.Contains(err.Error(), "SV-SYS-5000") {
		t.Errorf("error should carry the server code, got: %v", err)
	}
}

func TestAppRegister_Success(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/apps", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			errorResponse(w, http.StatusMethodNotAllowed, "SV-ARG-1000", "method not allowed")
			return
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["name"] != "payments-service" {
			t.Errorf("name = %v", body["name"])
		}
		if body["role"] != "client" {
			t.Errorf("role = %v", body["role"])
		}

		jsonResponse(w, http.StatusCreated, map[string]string{
			"app_id": "sva-new",
			"secret": "svs_plaintext_once",
		})
	})

	ctx := makeTestContext(server, map[string]any{
		"name": "payments-service",
		"role": "client",
	}, nil)

	if err := appRegister(ctx); err != nil {
		t.Errorf("appRegister() error = %v", err)
	}
}

func TestAppRegister_BadRole(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/apps", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusBadRequest, "SV-ARG-1002", "invalid role")
	})

	ctx := makeTestContext(server, map[string]any{
		"name": "x",
		"role": "superuser",
	}, nil)

	if err := appRegister(ctx); err == nil {
		t.Error("appRegister() expected error for bad role")
	}
}

func TestAppDisable_MissingID(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	ctx := testContext(server)
	err := appDisable(ctx)
	if err == nil {
		t.Fatal("appDisable() expected error for missing ID")
	}
	if !strings.Contains(err.Error(), "app ID required") {
		t.Errorf("expected 'app ID required' error, got: %v", err)
	}
}

func TestAppDisable_Force(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/apps/sva-x/status", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["enabled"] != false {
			t.Errorf("enabled = %v, want false", body["enabled"])
		}
		jsonResponse(w, http.StatusOK, nil)
	})

	ctx := makeTestContext(server, map[string]any{"force": true}, []string{"sva-x"})
	if err := appDisable(ctx); err != nil {
		t.Errorf("appDisable() error = %v", err)
	}
}

func TestAppEnable(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/apps/sva-x/status", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["enabled"] != true {
			t.Errorf("enabled = %v, want true", body["enabled"])
		}
		jsonResponse(w, http.StatusOK, nil)
	})

	ctx := testContext(server, "sva-x")
	if err := appEnable(ctx); err != nil {
		t.Errorf("appEnable() error = %v", err)
	}
}

func TestAppRotate_Force(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/apps/sva-x/rotate", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{
			"app_id":     "sva-x",
			"new_secret": "svs_rotated",
		})
	})

	ctx := makeTestContext(server, map[string]any{"force": true}, []string{"sva-x"})
	if err := appRotate(ctx); err != nil {
		t.Errorf("appRotate() error = %v", err)
	}
}

func TestAppRotate_NotFound(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/apps/", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusNotFound, "SV-APP-4040", "application not found")
	})

	ctx := makeTestContext(server, map[string]any{"force": true}, []string{"sva-missing"})
	if err := appRotate(ctx); err == nil {
		t.Error("appRotate() expected error for missing app")
	}
}
