package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"
)

func TestBadgerEngine_BasicOperations(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "badger-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := DefaultKVConfig(tmpDir)
	cfg.Badger.GCInterval = "1h" // Disable auto GC for tests

	engine, err := NewBadgerEngine(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		key := []byte("test-key")
		value := []byte("test-value")

		if err := engine.Set(ctx, key, value); err != nil {
			t.Fatal(err)
		}

		got, err := engine.Get(ctx, key)
		if err != nil {
			t.Fatal(err)
		}

		if string(got) != string(value) {
			t.Errorf("expected %s, got %s", value, got)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		_, err := engine.Get(ctx, []byte("non-existent"))
		if err != ErrKeyNotFound {
			t.Errorf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		key := []byte("delete-key")
		value := []byte("delete-value")

		if err := engine.Set(ctx, key, value); err != nil {
			t.Fatal(err)
		}

		if err := engine.Delete(ctx, key); err != nil {
			t.Fatal(err)
		}

		_, err := engine.Get(ctx, key)
		if err != ErrKeyNotFound {
			t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
		}
	})
}

func TestBadgerEngine_Scan(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "badger-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := DefaultKVConfig(tmpDir)
	engine, err := NewBadgerEngine(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	ctx := context.Background()

	// Insert test data
	testData := map[string]string{
		"key/sva-1/soft-element/orders":   "a",
		"key/sva-1/soft-element/invoices": "b",
		"key/sva-2/soft-element/orders":   "c",
		"app/sva-1":                       "d",
	}

	for k, v := range testData {
		if err := engine.Set(ctx, []byte(k), []byte(v)); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("Scan with prefix", func(t *testing.T) {
		var results []string

		err := engine.Scan(ctx, []byte("key/"), func(key, value []byte) bool {
			results = append(results, string(value))
			return true
		})

		if err != nil {
			t.Fatal(err)
		}

		if len(results) != 3 {
			t.Errorf("expected 3 results, got %d", len(results))
		}
	})

	t.Run("Scan with app prefix", func(t *testing.T) {
		count := 0

		err := engine.Scan(ctx, []byte("key/sva-1/"), func(key, value []byte) bool {
			count++
			return true
		})

		if err != nil {
			t.Fatal(err)
		}

		if count != 2 {
			t.Errorf("expected 2 results, got %d", count)
		}
	})

	t.Run("Scan with early stop", func(t *testing.T) {
		count := 0

		err := engine.Scan(ctx, []byte("key/"), func(key, value []byte) bool {
			count++
			return count < 2 // Stop after 2 items
		})

		if err != nil {
			t.Fatal(err)
		}

		if count != 2 {
			t.Errorf("expected 2 iterations, got %d", count)
		}
	})
}

func TestBadgerEngine_Snapshot(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "badger-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := DefaultKVConfig(tmpDir)
	engine, err := NewBadgerEngine(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	// Insert test data
	testData := map[string]string{
		"key1": "value1",
		"key2": "value2",
		"key3": "value3",
	}

	for k, v := range testData {
		if err := engine.Set(ctx, []byte(k), []byte(v)); err != nil {
			t.Fatal(err)
		}
	}

	// Create snapshot
	snapshot, err := engine.SaveSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Read snapshot into buffer
	snapshotData, err := io.ReadAll(snapshot)
	if err != nil {
		t.Fatal(err)
	}
	snapshot.Close()

	engine.Close()

	if len(snapshotData) == 0 {
		t.Fatal("expected non-empty snapshot")
	}

	t.Log("Snapshot size:", len(snapshotData), "bytes")
}

func TestBadgerEngine_GC(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "badger-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := DefaultKVConfig(tmpDir)
	cfg.Badger.GCThreshold = 0.5
	cfg.Badger.GCInterval = "10m" // Disable auto GC

	engine, err := NewBadgerEngine(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	ctx := context.Background()

	// Insert and delete data to create garbage
	for i := 0; i < 100; i++ {
		key := []byte{byte(i)}
		value := make([]byte, 1000) // 1KB value
		if err := engine.Set(ctx, key, value); err != nil {
			t.Fatal(err)
		}
	}

	// Delete half of the data
	for i := 0; i < 50; i++ {
		key := []byte{byte(i)}
		if err := engine.Delete(ctx, key); err != nil {
			t.Fatal(err)
		}
	}

	// Trigger GC
	reclaimed, err := engine.GC(ctx)
	if err != nil {
		t.Fatal(err)
	}

	t.Logf("GC reclaimed ~%d bytes", reclaimed)
	// Note: Actual reclaimed bytes depend on Badger's internal behavior
}

func TestBadgerEngine_Stats(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "badger-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := DefaultKVConfig(tmpDir)
	engine, err := NewBadgerEngine(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	ctx := context.Background()

	// Insert some data
	for i := 0; i < 10; i++ {
		key := []byte{byte(i)}
		value := make([]byte, 100)
		if err := engine.Set(ctx, key, value); err != nil {
			t.Fatal(err)
		}
	}

	// Get stats
	stats, err := engine.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Note: Badger Size() may return 0 if data hasn't been flushed to disk yet
	// This is normal behavior, so we just log the stats instead of asserting

	t.Logf("Stats: TotalSize=%d, LSMSize=%d, ValueLogSize=%d",
		stats.TotalSize, stats.LSMSize, stats.ValueLogSize)

	if stats == nil {
		t.Error("expected non-nil stats")
	}
}

func TestBadgerEngine_AutoGC(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping auto-GC test in short mode")
	}

	tmpDir, err := os.MkdirTemp("", "badger-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := DefaultKVConfig(tmpDir)
	cfg.Badger.GCInterval = "2s" // Very short interval for testing

	engine, err := NewBadgerEngine(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	// Wait for at least one GC cycle
	time.Sleep(3 * time.Second)

	// Check that GC has run (lastGCTime should be non-zero)
	stats, err := engine.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Note: GC might not have run if there's no garbage to collect
	t.Logf("Auto-GC test completed, lastGCTime=%d", stats.LastGCTime)
}
