package buildinfo

import (
	"encoding/json"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	// All fields carry at least their default values.
	if info.Version == "" {
		t.Error("Version should not be empty")
	}
	if info.Commit == "" {
		t.Error("Commit should not be empty")
	}
	if info.BuildTime == "" {
		t.Error("BuildTime should not be empty")
	}
	if info.GoVersion == "" {
		t.Error("GoVersion should not be empty")
	}
}

func TestString(t *testing.T) {
	s := String()

	if s == "" {
		t.Error("String() should not return empty")
	}

	// Format: "version (commit) built at time"
	expected := Version + " (" + Commit + ") built at " + BuildTime
	if s != expected {
		t.Errorf("String() = %q, want %q", s, expected)
	}
}

func TestInfo_JSONShape(t *testing.T) {
	// The status endpoint serializes Info; the wire names are part of the
	// response contract.
	data, err := json.Marshal(Get())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]string
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	for _, field := range []string{"version", "commit", "build_time", "go_version"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("serialized Info missing %q", field)
		}
	}
}

func TestDefaultValues(t *testing.T) {
	if Version != "dev" && Version != "unknown" && Version[0] != 'v' {
		t.Logf("Version has unexpected format: %s", Version)
	}
}
