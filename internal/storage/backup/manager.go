package backup

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Magic bytes identify backup files.
var magicBytes = []byte("SVABCKUP")

const (
	filePrefix    = "backup-"
	fileExtension = ".bak"
	checksumSize  = 32
	headerVersion = 1

	DefaultRetentionCount = 5
	DefaultRetentionDays  = 30
)

// File format errors.
var (
	ErrInvalidMagic     = errors.New("backup: invalid magic bytes")
	ErrChecksumMismatch = errors.New("backup: checksum mismatch")
)

// backupHeader is the plaintext file header. The salt must stay readable
// without the passphrase; Restore needs it to derive the file key.
type backupHeader struct {
	Version   int    `json:"version"`
	CreatedAt int64  `json:"created_at"`
	Algorithm string `json:"algorithm"`
	Salt      []byte `json:"salt"`
}

// Config configures the backup manager.
type Config struct {
	Dir string

	RetentionCount int
	RetentionDays  int
}

// DefaultConfig returns a backup configuration with default retention.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		RetentionCount: DefaultRetentionCount,
		RetentionDays:  DefaultRetentionDays,
	}
}

// Manager writes and reads encrypted backup files.
//
// A backup seals the storage engine's snapshot stream with AES-256-GCM
// under a key derived from an operator passphrase. Key material on the
// secure element is never part of a backup; only key metadata and
// application records leave the host.
type Manager struct {
	cfg Config
}

// NewManager creates a backup manager rooted at cfg.Dir.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backup: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("backup: create dir: %w", err)
	}
	if cfg.RetentionCount == 0 {
		cfg.RetentionCount = DefaultRetentionCount
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}

	return &Manager{cfg: cfg}, nil
}

// Info contains metadata about a backup file.
type Info struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
	Size      int64  `json:"size"`
	Path      string `json:"path"`
	Checksum  string `json:"checksum"`
}

// Create seals the snapshot stream from source into a new backup file.
func (m *Manager) Create(source io.Reader, passphrase []byte) (*Info, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	cipher, err := NewCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}

	snapshot, err := io.ReadAll(source)
	if err != nil {
		return nil, fmt.Errorf("backup: read snapshot: %w", err)
	}

	sealed, err := cipher.Encrypt(snapshot, nil)
	if err != nil {
		return nil, fmt.Errorf("backup: encrypt: %w", err)
	}

	now := time.Now()
	id := m.generateID(now)

	tempPath := filepath.Join(m.cfg.Dir, id+".tmp")
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("backup: create temp file: %w", err)
	}
	defer os.Remove(tempPath)

	hash := sha256.New()
	writer := io.MultiWriter(file, hash)

	if _, err := writer.Write(magicBytes); err != nil {
		file.Close()
		return nil, err
	}

	hdr := backupHeader{
		Version:   headerVersion,
		CreatedAt: now.UnixMilli(),
		Algorithm: string(cipher.Type()),
		Salt:      salt,
	}
	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("backup: marshal header: %w", err)
	}

	var hdrLen [4]byte
	binary.BigEndian.PutUint32(hdrLen[:], uint32(len(hdrJSON)))
	if _, err := writer.Write(hdrLen[:]); err != nil {
		file.Close()
		return nil, fmt.Errorf("backup: write header length: %w", err)
	}
	if _, err := writer.Write(hdrJSON); err != nil {
		file.Close()
		return nil, fmt.Errorf("backup: write header: %w", err)
	}

	var dataLen [4]byte
	binary.BigEndian.PutUint32(dataLen[:], uint32(len(sealed)))
	if _, err := writer.Write(dataLen[:]); err != nil {
		file.Close()
		return nil, fmt.Errorf("backup: write data length: %w", err)
	}
	if _, err := writer.Write(sealed); err != nil {
		file.Close()
		return nil, fmt.Errorf("backup: write data: %w", err)
	}

	// Checksum trailer is not part of the hash.
	sum := hash.Sum(nil)
	if _, err := file.Write(sum); err != nil {
		file.Close()
		return nil, fmt.Errorf("backup: write checksum: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("backup: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("backup: close: %w", err)
	}

	stat, err := os.Stat(tempPath)
	if err != nil {
		return nil, err
	}

	finalPath := filepath.Join(m.cfg.Dir, id+fileExtension)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return nil, fmt.Errorf("backup: rename: %w", err)
	}

	return &Info{
		ID:        id,
		CreatedAt: now.UnixMilli(),
		Size:      stat.Size(),
		Path:      finalPath,
		Checksum:  hex.EncodeToString(sum),
	}, nil
}

// Read verifies and unseals a backup file, returning the snapshot stream
// it contains. The caller feeds the stream back into the storage engine.
func (m *Manager) Read(path string, passphrase []byte) ([]byte, *Info, error) {
	hdr, sealed, info, err := m.readFile(path)
	if err != nil {
		return nil, nil, err
	}

	cipher, err := NewCipher(passphrase, hdr.Salt)
	if err != nil {
		return nil, nil, err
	}

	snapshot, err := cipher.Decrypt(sealed, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return snapshot, info, nil
}

// Inspect verifies a backup file and returns its metadata without
// decrypting the payload. No passphrase is needed.
func (m *Manager) Inspect(path string) (*Info, error) {
	_, _, info, err := m.readFile(path)
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (m *Manager) readFile(path string) (*backupHeader, []byte, *Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, nil, err
	}
	if stat.Size() < int64(len(magicBytes))+checksumSize {
		return nil, nil, nil, ErrChecksumMismatch
	}

	// Verify checksum.
	dataLen := stat.Size() - checksumSize
	expected := make([]byte, checksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, dataLen, checksumSize), expected); err != nil {
		return nil, nil, nil, err
	}
	h := sha256.New()
	if _, err := io.CopyN(h, io.NewSectionReader(f, 0, dataLen), dataLen); err != nil {
		return nil, nil, nil, err
	}
	if !bytes.Equal(h.Sum(nil), expected) {
		return nil, nil, nil, ErrChecksumMismatch
	}

	br := bufio.NewReader(io.NewSectionReader(f, 0, dataLen))

	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, nil, nil, err
	}
	if !bytes.Equal(magic, magicBytes) {
		return nil, nil, nil, ErrInvalidMagic
	}

	var hdrLenBuf [4]byte
	if _, err := io.ReadFull(br, hdrLenBuf[:]); err != nil {
		return nil, nil, nil, err
	}
	hdrLen := binary.BigEndian.Uint32(hdrLenBuf[:])
	if hdrLen == 0 {
		return nil, nil, nil, fmt.Errorf("backup: empty header")
	}
	hdrJSON := make([]byte, hdrLen)
	if _, err := io.ReadFull(br, hdrJSON); err != nil {
		return nil, nil, nil, err
	}

	var hdr backupHeader
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, nil, nil, fmt.Errorf("backup: unmarshal header: %w", err)
	}

	var dataLenBuf [4]byte
	if _, err := io.ReadFull(br, dataLenBuf[:]); err != nil {
		return nil, nil, nil, err
	}
	sealedSize := binary.BigEndian.Uint32(dataLenBuf[:])
	sealed := make([]byte, sealedSize)
	if _, err := io.ReadFull(br, sealed); err != nil {
		return nil, nil, nil, err
	}

	info := &Info{
		ID:        strings.TrimSuffix(filepath.Base(path), fileExtension),
		CreatedAt: hdr.CreatedAt,
		Size:      stat.Size(),
		Path:      path,
		Checksum:  hex.EncodeToString(expected),
	}

	return &hdr, sealed, info, nil
}

// List lists backup files (metadata from file stat only).
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExtension) {
			paths = append(paths, filepath.Join(m.cfg.Dir, name))
		}
	}
	sort.Strings(paths)

	var infos []*Info
	for _, p := range paths {
		stat, err := os.Stat(p)
		if err != nil {
			continue
		}
		infos = append(infos, &Info{
			ID:   strings.TrimSuffix(filepath.Base(p), fileExtension),
			Path: p,
			Size: stat.Size(),
		})
	}
	return infos, nil
}

// Prune applies the retention policy and deletes old backups.
func (m *Manager) Prune() error {
	infos, err := m.List()
	if err != nil {
		return err
	}
	if len(infos) <= 1 {
		return nil
	}

	keep := make(map[string]struct{}, len(infos))

	// Keep last RetentionCount.
	if m.cfg.RetentionCount > 0 {
		start := len(infos) - m.cfg.RetentionCount
		if start < 0 {
			start = 0
		}
		for _, info := range infos[start:] {
			keep[info.Path] = struct{}{}
		}
	}

	// Keep those within RetentionDays based on mtime.
	if m.cfg.RetentionDays > 0 {
		cutoff := time.Now().Add(-time.Duration(m.cfg.RetentionDays) * 24 * time.Hour)
		for _, info := range infos {
			st, err := os.Stat(info.Path)
			if err != nil {
				continue
			}
			if st.ModTime().After(cutoff) {
				keep[info.Path] = struct{}{}
			}
		}
	}

	// Always keep at least the newest.
	keep[infos[len(infos)-1].Path] = struct{}{}

	for _, info := range infos {
		if _, ok := keep[info.Path]; ok {
			continue
		}
		_ = os.Remove(info.Path)
	}
	return nil
}

func (m *Manager) generateID(t time.Time) string {
	ts := t.Format("20060102150405")
	seq := 1

	entries, _ := os.ReadDir(m.cfg.Dir)
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, filePrefix+ts+"-") || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		seq++
	}

	return fmt.Sprintf("%s%s-%04d", filePrefix, ts, seq)
}
