// Package audit provides the append-only operation trail for Sevault.
package audit

import (
	"errors"
	"time"
)

// File format constants.
const (
	// headerSize is the size of record header: length (4) + crc (4) = 8 bytes.
	headerSize = 8

	// minRecordSize is the minimum record size: header (8) + op (1).
	minRecordSize = headerSize + 1
)

// Errors for audit trail operations.
var (
	ErrCorruptedRecord  = errors.New("audit: corrupted record")
	ErrChecksumMismatch = errors.New("audit: checksum mismatch")
	ErrInvalidOp        = errors.New("audit: invalid operation type")
	ErrChainBroken      = errors.New("audit: hash chain broken")
)

// CodeOK is the result code recorded for successful operations.
const CodeOK = "OK"

// Op identifies the audited operation.
type Op uint8

const (
	OpUnspecified Op = iota
	OpEncrypt
	OpDecrypt
	OpKeyCreate
	OpKeyDestroy
	OpAppRegister
	OpAppStatus
	OpAppRotate
	OpAuthFailure
	OpBackup
)

var opNames = map[Op]string{
	OpEncrypt:     "aead.encrypt",
	OpDecrypt:     "aead.decrypt",
	OpKeyCreate:   "key.create",
	OpKeyDestroy:  "key.destroy",
	OpAppRegister: "app.register",
	OpAppStatus:   "app.status",
	OpAppRotate:   "app.rotate",
	OpAuthFailure: "auth.failure",
	OpBackup:      "system.backup",
}

// String returns the wire name of the operation.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unspecified"
}

// ParseOp parses an operation name as produced by String.
func ParseOp(s string) (Op, bool) {
	for op, name := range opNames {
		if name == s {
			return op, true
		}
	}
	return OpUnspecified, false
}

// Record is one audited operation. PrevHash links the record to the
// fingerprint of its predecessor and is set by the writer on append.
//
// Timestamp uses Unix milliseconds like the rest of the domain.
type Record struct {
	Op        Op
	Timestamp int64
	RequestID string
	App       string
	Key       string
	Algorithm string
	Code      string
	Detail    string
	PrevHash  string
}

// NewRecord creates an audit record for an operation outcome. Code is
// CodeOK or the domain error code the caller observed.
func NewRecord(op Op, requestID, appID, code string) *Record {
	return &Record{
		Op:        op,
		Timestamp: time.Now().UnixMilli(),
		RequestID: requestID,
		App:       appID,
		Code:      code,
	}
}

// WithKey sets the key triple the operation touched.
func (r *Record) WithKey(triple string) *Record {
	r.Key = triple
	return r
}

// WithAlgorithm sets the algorithm name the operation used.
func (r *Record) WithAlgorithm(alg string) *Record {
	r.Algorithm = alg
	return r
}

// WithDetail sets a free-form detail string.
func (r *Record) WithDetail(detail string) *Record {
	r.Detail = detail
	return r
}
