package backup

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestDeriveFileKey(t *testing.T) {
	passphrase := []byte("correct horse battery staple")
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatal(err)
	}

	t.Run("deterministic for same inputs", func(t *testing.T) {
		key1, err := DeriveFileKey(passphrase, salt)
		if err != nil {
			t.Fatal(err)
		}
		key2, err := DeriveFileKey(passphrase, salt)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(key1, key2) {
			t.Error("expected identical keys for identical inputs")
		}
	})

	t.Run("different salt yields different key", func(t *testing.T) {
		key1, err := DeriveFileKey(passphrase, salt)
		if err != nil {
			t.Fatal(err)
		}
		salt2, err := GenerateSalt()
		if err != nil {
			t.Fatal(err)
		}
		key2, err := DeriveFileKey(passphrase, salt2)
		if err != nil {
			t.Fatal(err)
		}
		if bytes.Equal(key1, key2) {
			t.Error("expected different keys for different salts")
		}
	})

	t.Run("weak passphrase rejected", func(t *testing.T) {
		_, err := DeriveFileKey([]byte("short"), salt)
		if !errors.Is(err, ErrPassphraseTooWeak) {
			t.Errorf("expected ErrPassphraseTooWeak, got %v", err)
		}
	})

	t.Run("wrong salt length rejected", func(t *testing.T) {
		_, err := DeriveFileKey(passphrase, []byte{1, 2, 3})
		if err == nil {
			t.Error("expected error for short salt")
		}
	})
}

func TestManager_CreateAndRead(t *testing.T) {
	m := newTestManager(t)
	passphrase := []byte("backup-passphrase-1")
	snapshot := []byte(`{"key/sva-1/soft-element/orders":{"slot":3}}`)

	info, err := m.Create(bytes.NewReader(snapshot), passphrase)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if info.ID == "" {
		t.Error("expected non-empty backup ID")
	}
	if info.CreatedAt == 0 {
		t.Error("expected created_at to be set")
	}
	if info.Size == 0 {
		t.Error("expected non-zero size")
	}

	t.Run("payload is not stored in the clear", func(t *testing.T) {
		raw, err := os.ReadFile(info.Path)
		if err != nil {
			t.Fatal(err)
		}
		if bytes.Contains(raw, []byte("soft-element")) {
			t.Error("backup file contains plaintext payload")
		}
	})

	t.Run("read returns the snapshot", func(t *testing.T) {
		got, gotInfo, err := m.Read(info.Path, passphrase)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if !bytes.Equal(got, snapshot) {
			t.Errorf("snapshot mismatch: got %q", got)
		}
		if gotInfo.CreatedAt != info.CreatedAt {
			t.Errorf("expected created_at %d, got %d", info.CreatedAt, gotInfo.CreatedAt)
		}
		if gotInfo.Checksum != info.Checksum {
			t.Errorf("expected checksum %s, got %s", info.Checksum, gotInfo.Checksum)
		}
	})

	t.Run("wrong passphrase fails", func(t *testing.T) {
		_, _, err := m.Read(info.Path, []byte("not-the-passphrase"))
		if !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("expected ErrDecryptionFailed, got %v", err)
		}
	})

	t.Run("weak passphrase rejected at create", func(t *testing.T) {
		_, err := m.Create(bytes.NewReader(snapshot), []byte("short"))
		if !errors.Is(err, ErrPassphraseTooWeak) {
			t.Errorf("expected ErrPassphraseTooWeak, got %v", err)
		}
	})
}

func TestManager_Inspect(t *testing.T) {
	m := newTestManager(t)
	passphrase := []byte("backup-passphrase-1")

	info, err := m.Create(bytes.NewReader([]byte("snapshot-bytes")), passphrase)
	if err != nil {
		t.Fatal(err)
	}

	// Inspect needs no passphrase.
	got, err := m.Inspect(info.Path)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if got.CreatedAt != info.CreatedAt {
		t.Errorf("expected created_at %d, got %d", info.CreatedAt, got.CreatedAt)
	}
	if got.Checksum != info.Checksum {
		t.Errorf("expected checksum %s, got %s", info.Checksum, got.Checksum)
	}
}

func TestManager_TamperDetection(t *testing.T) {
	m := newTestManager(t)
	passphrase := []byte("backup-passphrase-1")

	info, err := m.Create(bytes.NewReader([]byte("snapshot-bytes")), passphrase)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("flipped byte", func(t *testing.T) {
		raw, err := os.ReadFile(info.Path)
		if err != nil {
			t.Fatal(err)
		}
		raw[len(magicBytes)+10] ^= 0xFF

		tampered := filepath.Join(t.TempDir(), "tampered.bak")
		if err := os.WriteFile(tampered, raw, 0600); err != nil {
			t.Fatal(err)
		}

		_, _, err = m.Read(tampered, passphrase)
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("expected ErrChecksumMismatch, got %v", err)
		}
	})

	t.Run("truncated file", func(t *testing.T) {
		raw, err := os.ReadFile(info.Path)
		if err != nil {
			t.Fatal(err)
		}

		truncated := filepath.Join(t.TempDir(), "truncated.bak")
		if err := os.WriteFile(truncated, raw[:len(raw)-5], 0600); err != nil {
			t.Fatal(err)
		}

		_, _, err = m.Read(truncated, passphrase)
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("expected ErrChecksumMismatch, got %v", err)
		}
	})

	t.Run("wrong magic with valid checksum", func(t *testing.T) {
		// Constructed by hand so the trailer checksum still matches.
		var buf bytes.Buffer
		buf.WriteString("NOTABCKP")
		buf.Write(make([]byte, 16))
		sum := sha256.Sum256(buf.Bytes())
		buf.Write(sum[:])

		bogus := filepath.Join(t.TempDir(), "bogus.bak")
		if err := os.WriteFile(bogus, buf.Bytes(), 0600); err != nil {
			t.Fatal(err)
		}

		_, _, err := m.Read(bogus, passphrase)
		if !errors.Is(err, ErrInvalidMagic) {
			t.Errorf("expected ErrInvalidMagic, got %v", err)
		}
	})
}

func TestManager_List(t *testing.T) {
	m := newTestManager(t)
	passphrase := []byte("backup-passphrase-1")

	infos, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected empty list, got %d", len(infos))
	}

	for i := 0; i < 3; i++ {
		if _, err := m.Create(bytes.NewReader([]byte("snapshot")), passphrase); err != nil {
			t.Fatal(err)
		}
	}

	infos, err = m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 backups, got %d", len(infos))
	}
	for _, info := range infos {
		if info.Size == 0 {
			t.Errorf("backup %s has zero size", info.ID)
		}
	}
}

func TestManager_Prune(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(Config{Dir: dir, RetentionCount: 2, RetentionDays: 1})
	if err != nil {
		t.Fatal(err)
	}
	passphrase := []byte("backup-passphrase-1")

	var paths []string
	for i := 0; i < 4; i++ {
		info, err := m.Create(bytes.NewReader([]byte("snapshot")), passphrase)
		if err != nil {
			t.Fatal(err)
		}
		paths = append(paths, info.Path)
	}

	// Age everything but the newest beyond the day-based retention.
	old := time.Now().Add(-48 * time.Hour)
	for _, p := range paths[:3] {
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatal(err)
		}
	}

	if err := m.Prune(); err != nil {
		t.Fatal(err)
	}

	infos, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	// RetentionCount keeps the newest two; day-based retention adds nothing
	// beyond those.
	if len(infos) != 2 {
		t.Fatalf("expected 2 backups after prune, got %d", len(infos))
	}

	newest := paths[len(paths)-1]
	found := false
	for _, info := range infos {
		if info.Path == newest {
			found = true
		}
	}
	if !found {
		t.Error("newest backup must survive pruning")
	}
}
