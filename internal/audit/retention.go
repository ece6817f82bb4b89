// Package audit provides the append-only operation trail for Sevault.
package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Retention prunes old audit segments. The newest segment is never
// deleted; it may still be the writer's active file.
type Retention struct {
	dir         string
	maxSegments int           // 0 = unlimited
	maxAge      time.Duration // 0 = unlimited
}

// RetentionOption configures the Retention.
type RetentionOption func(*Retention)

// WithMaxSegments keeps at most n segment files.
func WithMaxSegments(n int) RetentionOption {
	return func(r *Retention) {
		if n > 0 {
			r.maxSegments = n
		}
	}
}

// WithMaxAge deletes finalized segments whose last write is older than d.
func WithMaxAge(d time.Duration) RetentionOption {
	return func(r *Retention) {
		if d > 0 {
			r.maxAge = d
		}
	}
}

// NewRetention creates a Retention for an audit directory. Without
// options it never deletes anything.
func NewRetention(dir string, opts ...RetentionOption) *Retention {
	r := &Retention{
		dir: dir,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Apply enforces the retention policy, deleting the oldest segments
// first.
func (r *Retention) Apply() error {
	files, err := r.listAuditFiles()
	if err != nil {
		return err
	}

	// The newest segment stays regardless of policy.
	if len(files) < 2 {
		return nil
	}
	candidates := files[:len(files)-1]

	var toDelete []string

	if r.maxSegments > 0 && len(files) > r.maxSegments {
		toDelete = append(toDelete, candidates[:len(files)-r.maxSegments]...)
	}

	if r.maxAge > 0 {
		cutoff := time.Now().Add(-r.maxAge)
		for _, file := range candidates {
			info, err := os.Stat(file)
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) && !contains(toDelete, file) {
				toDelete = append(toDelete, file)
			}
		}
	}

	var errs []error
	for _, file := range toDelete {
		if err := os.Remove(file); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", file, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("audit: failed to delete %d files: %w", len(errs), errors.Join(errs...))
	}

	return nil
}

// TotalSize returns the total size of all audit files in bytes.
func (r *Retention) TotalSize() (int64, error) {
	files, err := r.listAuditFiles()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		total += info.Size()
	}

	return total, nil
}

// FileCount returns the number of audit segment files.
func (r *Retention) FileCount() (int, error) {
	files, err := r.listAuditFiles()
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// listAuditFiles returns all audit files sorted by segment ID (oldest
// first).
func (r *Retention) listAuditFiles() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := parseSegmentFilename(entry.Name()); ok {
			files = append(files, filepath.Join(r.dir, entry.Name()))
		}
	}

	// Zero-padded segment IDs sort correctly by name
	sort.Strings(files)
	return files, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
