package audit

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/sevault-go/pkg/crypto/atrest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("x")
	if cfg.Dir != "x" {
		t.Fatalf("Dir = %q, want %q", cfg.Dir, "x")
	}
	if cfg.SyncMode != SyncModeBatch {
		t.Fatalf("SyncMode = %q, want %q", cfg.SyncMode, SyncModeBatch)
	}
	if cfg.BatchCount != DefaultBatchCount {
		t.Fatalf("BatchCount = %d, want %d", cfg.BatchCount, DefaultBatchCount)
	}
	if cfg.BatchBytes != DefaultBatchBytes {
		t.Fatalf("BatchBytes = %d, want %d", cfg.BatchBytes, DefaultBatchBytes)
	}
	if cfg.MaxFileSize != DefaultMaxFileSize {
		t.Fatalf("MaxFileSize = %d, want %d", cfg.MaxFileSize, DefaultMaxFileSize)
	}
	if cfg.MaxRecords != DefaultMaxRecords {
		t.Fatalf("MaxRecords = %d, want %d", cfg.MaxRecords, DefaultMaxRecords)
	}
}

func TestOpNames(t *testing.T) {
	if OpEncrypt.String() != "aead.encrypt" {
		t.Fatalf("OpEncrypt = %q", OpEncrypt.String())
	}
	if OpUnspecified.String() != "unspecified" {
		t.Fatalf("OpUnspecified = %q", OpUnspecified.String())
	}

	op, ok := ParseOp("key.destroy")
	if !ok || op != OpKeyDestroy {
		t.Fatalf("ParseOp(key.destroy) = %v, %v", op, ok)
	}
	if _, ok := ParseOp("nope"); ok {
		t.Fatal("ParseOp should reject unknown names")
	}
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(OpEncrypt, "req-1", "sva-app", CodeOK).
		WithKey("sva-app/secure-element/payments").
		WithAlgorithm("aes-gcm").
		WithDetail("tag length 16")

	if rec.Op != OpEncrypt {
		t.Fatalf("Op = %v, want %v", rec.Op, OpEncrypt)
	}
	if rec.Timestamp == 0 {
		t.Fatal("Timestamp should be set")
	}
	if rec.Key != "sva-app/secure-element/payments" {
		t.Fatalf("Key = %q", rec.Key)
	}
	if rec.Algorithm != "aes-gcm" {
		t.Fatalf("Algorithm = %q", rec.Algorithm)
	}
	if rec.Detail != "tag length 16" {
		t.Fatalf("Detail = %q", rec.Detail)
	}
}

func TestWriterReader_RoundTripPlain(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(Config{
		Dir:        dir,
		SyncMode:   SyncModeSync,
		BatchCount: 2,
		BatchBytes: 1,
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	r1 := NewRecord(OpEncrypt, "req-1", "sva-app1", CodeOK).WithKey("sva-app1/secure-element/k1")
	r2 := NewRecord(OpDecrypt, "req-2", "sva-app2", "SV-CRYPT-5000").WithKey("sva-app2/secure-element/k2")

	if err := w.Append(r1); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	if err := w.Append(r2); err != nil {
		t.Fatalf("Append 2: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Closed segments carry a checksum trailer.
	path := filepath.Join(dir, "audit-00000001.log")
	if err := VerifyTrailerChecksum(path); err != nil {
		t.Fatalf("VerifyTrailerChecksum: %v", err)
	}

	r, err := NewReader(dir, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	got1, err := r.Read()
	if err != nil {
		t.Fatalf("Read 1: %v", err)
	}
	if got1.Op != OpEncrypt || got1.App != "sva-app1" || got1.Code != CodeOK {
		t.Fatalf("got1 mismatch: %+v", got1)
	}
	if got1.PrevHash != "" {
		t.Fatalf("first record PrevHash = %q, want empty", got1.PrevHash)
	}

	got2, err := r.Read()
	if err != nil {
		t.Fatalf("Read 2: %v", err)
	}
	if got2.Op != OpDecrypt || got2.Code != "SV-CRYPT-5000" {
		t.Fatalf("got2 mismatch: %+v", got2)
	}
	if got2.PrevHash == "" {
		t.Fatal("second record should link to the first")
	}

	if _, err := r.Read(); err == nil {
		t.Fatal("expected EOF")
	}
}

func TestWriterReader_RoundTripEncrypted(t *testing.T) {
	dir := t.TempDir()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	c, err := atrest.New(key, atrest.CipherChaCha20)
	if err != nil {
		t.Fatalf("atrest.New: %v", err)
	}

	w, err := NewWriter(Config{
		Dir:        dir,
		SyncMode:   SyncModeSync,
		BatchCount: 1,
		BatchBytes: 1,
		Cipher:     c,
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	rec := NewRecord(OpKeyCreate, "req-9", "sva-secretive", CodeOK).
		WithKey("sva-secretive/secure-element/hidden")
	if err := w.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Identifying fields must not appear in the raw file.
	raw, err := os.ReadFile(filepath.Join(dir, "audit-00000001.log"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if bytes.Contains(raw, []byte("sva-secretive")) {
		t.Fatal("application ID leaked into the encrypted trail")
	}

	r, err := NewReader(dir, c)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	got, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.App != "sva-secretive" || got.Key != "sva-secretive/secure-element/hidden" {
		t.Fatalf("decrypted record mismatch: %+v", got)
	}

	// Without the cipher the identity stays sealed.
	r2, err := NewReader(dir, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r2.Close()
	if _, err := r2.Read(); err == nil {
		t.Fatal("expected error reading encrypted trail without cipher")
	}
}

func TestReader_VerifyChain(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(Config{
		Dir:        dir,
		SyncMode:   SyncModeSync,
		BatchCount: 1,
		BatchBytes: 1,
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := w.Append(NewRecord(OpEncrypt, "req", "sva-app", CodeOK)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(dir, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	count, err := r.VerifyChain()
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if count != 5 {
		t.Fatalf("verified = %d, want 5", count)
	}
}

func TestReader_VerifyChainDetectsBreaks(t *testing.T) {
	// Build a segment by hand so records can be mislinked and dropped.
	mkRecord := func(prev, app string) ([]byte, string) {
		rec := NewRecord(OpEncrypt, "req", app, CodeOK)
		rec.PrevHash = prev
		frame, fingerprint, err := encodeRecordFrame(rec, nil)
		if err != nil {
			t.Fatalf("encodeRecordFrame: %v", err)
		}
		return frame, fingerprint
	}

	writeSegment := func(dir string, frames ...[]byte) {
		var buf bytes.Buffer
		buf.WriteString(MagicBytes)
		for _, f := range frames {
			buf.Write(f)
		}
		path := filepath.Join(dir, formatSegmentFilename(1))
		if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	t.Run("mislinked record", func(t *testing.T) {
		dir := t.TempDir()
		f1, _ := mkRecord("", "sva-a")
		f2, _ := mkRecord("not-the-right-fingerprint", "sva-b")
		writeSegment(dir, f1, f2)

		r, err := NewReader(dir, nil)
		if err != nil {
			t.Fatalf("NewReader: %v", err)
		}
		defer r.Close()

		count, err := r.VerifyChain()
		if !errors.Is(err, ErrChainBroken) {
			t.Fatalf("VerifyChain err = %v, want ErrChainBroken", err)
		}
		if count != 1 {
			t.Fatalf("verified before break = %d, want 1", count)
		}
	})

	t.Run("dropped record", func(t *testing.T) {
		dir := t.TempDir()
		f1, h1 := mkRecord("", "sva-a")
		_, h2 := mkRecord(h1, "sva-b")
		f3, _ := mkRecord(h2, "sva-c")

		// Write the trail without the middle record.
		writeSegment(dir, f1, f3)

		r, err := NewReader(dir, nil)
		if err != nil {
			t.Fatalf("NewReader: %v", err)
		}
		defer r.Close()

		if _, err := r.VerifyChain(); !errors.Is(err, ErrChainBroken) {
			t.Fatalf("VerifyChain err = %v, want ErrChainBroken", err)
		}
	})
}

func TestWriter_RotationByRecordCount(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(Config{
		Dir:        dir,
		SyncMode:   SyncModeSync,
		BatchCount: 1,
		BatchBytes: 1,
		MaxRecords: 1,
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.Append(NewRecord(OpEncrypt, "req-1", "sva-a", CodeOK)); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	if err := w.Append(NewRecord(OpEncrypt, "req-2", "sva-a", CodeOK)); err != nil {
		t.Fatalf("Append 2: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("segment files = %d, want >= 2", len(entries))
	}

	// The chain must survive rotation.
	r, err := NewReader(dir, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	count, err := r.VerifyChain()
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if count != 2 {
		t.Fatalf("verified = %d, want 2", count)
	}
}

func TestWriter_RejectsUnspecifiedOp(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{
		Dir:        dir,
		SyncMode:   SyncModeSync,
		BatchCount: 1,
		BatchBytes: 1,
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	err = w.Append(&Record{Op: OpUnspecified, Timestamp: time.Now().UnixMilli()})
	if !errors.Is(err, ErrInvalidOp) {
		t.Fatalf("Append err = %v, want ErrInvalidOp", err)
	}
}

func TestNewWriter_ContinuesOpenSegmentChain(t *testing.T) {
	dir := t.TempDir()

	// Manually create an "open" segment: magic + one record, no trailer.
	rec := NewRecord(OpKeyCreate, "req-1", "sva-a", CodeOK)
	rec.PrevHash = ""
	frame, _, err := encodeRecordFrame(rec, nil)
	if err != nil {
		t.Fatalf("encodeRecordFrame: %v", err)
	}

	path := filepath.Join(dir, formatSegmentFilename(1))
	var buf bytes.Buffer
	buf.WriteString(MagicBytes)
	buf.Write(frame)
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// NewWriter should continue this segment and pick up the chain tail.
	w, err := NewWriter(Config{
		Dir:        dir,
		SyncMode:   SyncModeSync,
		BatchCount: 1,
		BatchBytes: 1,
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Append(NewRecord(OpKeyDestroy, "req-2", "sva-a", CodeOK)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := VerifyTrailerChecksum(path); err != nil {
		t.Fatalf("VerifyTrailerChecksum: %v", err)
	}

	r, err := NewReader(dir, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	count, err := r.VerifyChain()
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if count != 2 {
		t.Fatalf("verified = %d, want 2", count)
	}
}

func TestReader_Query(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(Config{
		Dir:        dir,
		SyncMode:   SyncModeSync,
		BatchCount: 1,
		BatchBytes: 1,
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	w.Append(NewRecord(OpEncrypt, "req-1", "sva-a", CodeOK))
	w.Append(NewRecord(OpDecrypt, "req-2", "sva-a", "SV-CRYPT-5000"))
	w.Append(NewRecord(OpEncrypt, "req-3", "sva-b", CodeOK))
	w.Append(NewRecord(OpKeyCreate, "req-4", "sva-b", CodeOK))
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	query := func(f Filter) []*Record {
		r, err := NewReader(dir, nil)
		if err != nil {
			t.Fatalf("NewReader: %v", err)
		}
		defer r.Close()
		out, err := r.Query(f)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		return out
	}

	if got := query(Filter{App: "sva-a"}); len(got) != 2 {
		t.Fatalf("App filter = %d records, want 2", len(got))
	}
	if got := query(Filter{Op: OpEncrypt}); len(got) != 2 {
		t.Fatalf("Op filter = %d records, want 2", len(got))
	}
	if got := query(Filter{Code: "SV-CRYPT-5000"}); len(got) != 1 {
		t.Fatalf("Code filter = %d records, want 1", len(got))
	}
	if got := query(Filter{Limit: 3}); len(got) != 3 {
		t.Fatalf("Limit filter = %d records, want 3", len(got))
	}
	if got := query(Filter{App: "sva-a", Op: OpDecrypt}); len(got) != 1 || got[0].RequestID != "req-2" {
		t.Fatalf("combined filter mismatch: %+v", got)
	}

	all := query(Filter{})
	if len(all) != 4 {
		t.Fatalf("empty filter = %d records, want 4", len(all))
	}

	// Time-window filter around the middle records.
	since := all[1].Timestamp
	until := all[3].Timestamp
	got := query(Filter{Since: since, Until: until})
	for _, rec := range got {
		if rec.Timestamp < since || rec.Timestamp >= until {
			t.Fatalf("record %q outside window", rec.RequestID)
		}
	}
}

func TestRetention_Apply(t *testing.T) {
	dir := t.TempDir()

	// Create 5 fake segment files.
	for i := 1; i <= 5; i++ {
		p := filepath.Join(dir, formatSegmentFilename(uint64(i)))
		if err := os.WriteFile(p, []byte("x"), 0600); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}

	t.Run("max segments", func(t *testing.T) {
		r := NewRetention(dir, WithMaxSegments(3))
		if err := r.Apply(); err != nil {
			t.Fatalf("Apply: %v", err)
		}

		count, err := r.FileCount()
		if err != nil {
			t.Fatalf("FileCount: %v", err)
		}
		if count != 3 {
			t.Fatalf("remaining segments = %d, want 3", count)
		}
	})

	t.Run("max age", func(t *testing.T) {
		// Age the oldest remaining file beyond the cutoff.
		files, _ := NewRetention(dir).listAuditFiles()
		if len(files) == 0 {
			t.Fatal("no files left")
		}
		old := time.Now().Add(-48 * time.Hour)
		if err := os.Chtimes(files[0], old, old); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}

		r := NewRetention(dir, WithMaxAge(24*time.Hour))
		if err := r.Apply(); err != nil {
			t.Fatalf("Apply: %v", err)
		}

		count, _ := r.FileCount()
		if count != 2 {
			t.Fatalf("remaining segments = %d, want 2", count)
		}
	})

	t.Run("newest segment survives", func(t *testing.T) {
		r := NewRetention(dir, WithMaxSegments(1), WithMaxAge(time.Nanosecond))
		time.Sleep(10 * time.Millisecond)
		if err := r.Apply(); err != nil {
			t.Fatalf("Apply: %v", err)
		}

		count, _ := r.FileCount()
		if count != 1 {
			t.Fatalf("remaining segments = %d, want 1", count)
		}
	})

	t.Run("no policy is a noop", func(t *testing.T) {
		before, _ := NewRetention(dir).FileCount()
		if err := NewRetention(dir).Apply(); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		after, _ := NewRetention(dir).FileCount()
		if before != after {
			t.Fatalf("file count changed %d -> %d without a policy", before, after)
		}
	})
}

func TestRetention_TotalSizeAndFileCount(t *testing.T) {
	dir := t.TempDir()

	r := NewRetention(dir)

	// Empty dir
	count, err := r.FileCount()
	if err != nil {
		t.Fatalf("FileCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("FileCount = %d, want 0", count)
	}

	size, err := r.TotalSize()
	if err != nil {
		t.Fatalf("TotalSize: %v", err)
	}
	if size != 0 {
		t.Fatalf("TotalSize = %d, want 0", size)
	}

	for i := 1; i <= 3; i++ {
		p := filepath.Join(dir, formatSegmentFilename(uint64(i)))
		content := make([]byte, 100)
		if err := os.WriteFile(p, content, 0600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	count, err = r.FileCount()
	if err != nil {
		t.Fatalf("FileCount: %v", err)
	}
	if count != 3 {
		t.Fatalf("FileCount = %d, want 3", count)
	}

	size, err = r.TotalSize()
	if err != nil {
		t.Fatalf("TotalSize: %v", err)
	}
	if size != 300 {
		t.Fatalf("TotalSize = %d, want 300", size)
	}
}
