// Package audit provides the append-only operation trail for Sevault.
package audit

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/yndnr/sevault-go/pkg/crypto/atrest"
)

// ErrCorrupted reports an unreadable segment.
var ErrCorrupted = errors.New("audit: corrupted segment")

type segmentInfo struct {
	id   uint64
	path string
}

// Reader reads audit records across all segments in order.
type Reader struct {
	dir    string
	cipher atrest.Cipher

	segments []segmentInfo
	segIndex int

	file     *os.File
	dataLen  int64
	reader   *bufio.Reader
	headerOK bool
}

// NewReader creates a new audit reader for a directory.
func NewReader(dir string, cipher atrest.Cipher) (*Reader, error) {
	r := &Reader{
		dir:    dir,
		cipher: cipher,
	}
	if err := r.scanSegments(); err != nil {
		return nil, err
	}
	return r, nil
}

// Read reads the next record from the trail. Corrupted frames skip the
// rest of their segment, like torn tails after a crash.
func (r *Reader) Read() (*Record, error) {
	for {
		// Need next segment.
		if r.reader == nil {
			if err := r.openNextSegment(); err != nil {
				return nil, err
			}
		}

		if !r.headerOK {
			if err := r.readAndValidateHeader(); err != nil {
				if errors.Is(err, ErrCorrupted) || errors.Is(err, errInvalidMagic) {
					r.closeCurrent()
					continue
				}
				return nil, err
			}
		}

		rec, _, err := r.readOneRecord()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				r.closeCurrent()
				continue
			}
			if errors.Is(err, ErrCorruptedRecord) || errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrInvalidOp) {
				r.closeCurrent()
				continue
			}
			return nil, err
		}
		return rec, nil
	}
}

// ReadAll reads all records from the trail.
func (r *Reader) ReadAll() ([]*Record, error) {
	var out []*Record
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		out = append(out, rec)
	}
}

// Filter selects records from the trail. Zero values match everything.
type Filter struct {
	App   string
	Op    Op
	Code  string
	Since int64 // Unix ms inclusive
	Until int64 // Unix ms exclusive, 0 = unbounded
	Limit int   // 0 = unbounded
}

func (f Filter) matches(rec *Record) bool {
	if f.App != "" && rec.App != f.App {
		return false
	}
	if f.Op != OpUnspecified && rec.Op != f.Op {
		return false
	}
	if f.Code != "" && rec.Code != f.Code {
		return false
	}
	if f.Since != 0 && rec.Timestamp < f.Since {
		return false
	}
	if f.Until != 0 && rec.Timestamp >= f.Until {
		return false
	}
	return true
}

// Query reads the trail and returns the records matching the filter.
func (r *Reader) Query(f Filter) ([]*Record, error) {
	var out []*Record
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		if !f.matches(rec) {
			continue
		}
		out = append(out, rec)
		if f.Limit > 0 && len(out) >= f.Limit {
			return out, nil
		}
	}
}

// VerifyChain re-reads the trail from the beginning and checks that every
// record links to the fingerprint of its predecessor. It returns the
// number of verified records; any gap, reorder or tamper surfaces as
// ErrChainBroken at the first record that fails to link.
func (r *Reader) VerifyChain() (int, error) {
	r.rewind()

	prev := ""
	count := 0
	for {
		if r.reader == nil {
			if err := r.openNextSegment(); err != nil {
				if errors.Is(err, io.EOF) {
					return count, nil
				}
				return count, err
			}
		}

		if !r.headerOK {
			if err := r.readAndValidateHeader(); err != nil {
				return count, fmt.Errorf("audit: segment header: %w", err)
			}
		}

		rec, fingerprint, err := r.readOneRecord()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				r.closeCurrent()
				continue
			}
			return count, err
		}

		if rec.PrevHash != prev {
			return count, fmt.Errorf("%w: record %d does not link", ErrChainBroken, count)
		}
		prev = fingerprint
		count++
	}
}

// Close closes any open segment file.
func (r *Reader) Close() error {
	return r.closeCurrent()
}

func (r *Reader) rewind() {
	r.closeCurrent()
	r.segIndex = 0
}

func (r *Reader) scanSegments() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			r.segments = nil
			return nil
		}
		return err
	}

	var segs []segmentInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := parseSegmentFilename(e.Name())
		if !ok {
			continue
		}
		segs = append(segs, segmentInfo{
			id:   id,
			path: filepath.Join(r.dir, e.Name()),
		})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].id < segs[j].id })
	r.segments = segs
	return nil
}

func (r *Reader) openNextSegment() error {
	r.closeCurrent()

	if r.segIndex >= len(r.segments) {
		return io.EOF
	}

	seg := r.segments[r.segIndex]
	r.segIndex++

	f, err := os.Open(seg.path)
	if err != nil {
		return err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	closed, dataLen, err := verifyChecksumTrailer(f, stat.Size())
	if err != nil {
		f.Close()
		return err
	}
	if closed && dataLen < MagicBytesSize {
		f.Close()
		return ErrCorrupted
	}
	r.file = f

	// Limit reads to the data portion, excluding the checksum trailer on
	// finalized segments.
	if closed {
		r.dataLen = dataLen
	} else {
		r.dataLen = stat.Size()
	}

	r.reader = bufio.NewReader(io.NewSectionReader(f, 0, r.dataLen))
	r.headerOK = false
	return nil
}

func (r *Reader) readAndValidateHeader() error {
	magic := make([]byte, MagicBytesSize)
	if _, err := io.ReadFull(r.reader, magic); err != nil {
		return err
	}
	if string(magic) != MagicBytes {
		return errInvalidMagic
	}
	r.headerOK = true
	return nil
}

func (r *Reader) closeCurrent() error {
	r.reader = nil
	r.headerOK = false

	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

func (r *Reader) readOneRecord() (*Record, string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.reader, lenBuf[:]); err != nil {
		return nil, "", err
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length < 5 {
		return nil, "", ErrCorruptedRecord
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r.reader, frame); err != nil {
		return nil, "", err
	}

	return decodeRecordFrame(frame, r.cipher)
}

// VerifyTrailerChecksum checks that a finalized segment carries a valid
// SHA-256 trailer.
func VerifyTrailerChecksum(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	closed, _, err := verifyChecksumTrailer(f, stat.Size())
	if err != nil {
		return err
	}
	if !closed {
		return errChecksumInvalid
	}
	return nil
}
