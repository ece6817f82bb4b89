package audit

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/yndnr/sevault-go/pkg/crypto/atrest"
	"github.com/yndnr/sevault-go/pkg/secret"
)

// wirePayload is the JSON body of one record frame. Timestamp, code and
// chain hash stay in the clear so retention and chain verification work
// without the at-rest key; the identifying fields move into the encrypted
// blob when a cipher is configured.
type wirePayload struct {
	Timestamp int64  `json:"ts"`
	Code      string `json:"code,omitempty"`
	PrevHash  string `json:"prev,omitempty"`

	RequestID string `json:"rid,omitempty"`
	App       string `json:"app,omitempty"`
	Key       string `json:"key,omitempty"`
	Algorithm string `json:"alg,omitempty"`
	Detail    string `json:"detail,omitempty"`

	// Encrypted is base64 of atrest.Cipher.Encrypt(identityJSON).
	Encrypted string `json:"enc,omitempty"`
}

// identityPayload holds the fields hidden by at-rest encryption.
type identityPayload struct {
	RequestID string `json:"rid,omitempty"`
	App       string `json:"app,omitempty"`
	Key       string `json:"key,omitempty"`
	Algorithm string `json:"alg,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// encodeRecordFrame serializes a record into its wire frame and returns
// the frame together with the payload fingerprint the next record must
// chain to.
func encodeRecordFrame(r *Record, cipher atrest.Cipher) ([]byte, string, error) {
	if r == nil {
		return nil, "", fmt.Errorf("audit: record is nil")
	}
	if r.Op == OpUnspecified {
		return nil, "", ErrInvalidOp
	}

	p := wirePayload{
		Timestamp: r.Timestamp,
		Code:      r.Code,
		PrevHash:  r.PrevHash,
	}

	if cipher == nil {
		p.RequestID = r.RequestID
		p.App = r.App
		p.Key = r.Key
		p.Algorithm = r.Algorithm
		p.Detail = r.Detail
	} else {
		plain, err := json.Marshal(identityPayload{
			RequestID: r.RequestID,
			App:       r.App,
			Key:       r.Key,
			Algorithm: r.Algorithm,
			Detail:    r.Detail,
		})
		if err != nil {
			return nil, "", fmt.Errorf("audit: marshal identity: %w", err)
		}
		encrypted, err := cipher.Encrypt(plain, nil)
		if err != nil {
			return nil, "", fmt.Errorf("audit: encrypt identity: %w", err)
		}
		p.Encrypted = base64.StdEncoding.EncodeToString(encrypted)
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, "", fmt.Errorf("audit: marshal payload: %w", err)
	}

	opByte := []byte{byte(r.Op)}
	crc := crc32.ChecksumIEEE(append(opByte, payload...))

	// Length = CRC(4) + Op(1) + Payload.
	length := uint32(4 + 1 + len(payload))
	if length < 5 {
		return nil, "", ErrCorruptedRecord
	}

	out := make([]byte, 0, 4+int(length))
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], length)
	out = append(out, header[:]...)

	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc)
	out = append(out, crcBuf[:]...)

	out = append(out, opByte...)
	out = append(out, payload...)
	return out, secret.FingerprintBytes(payload), nil
}

// decodeRecordFrame parses a wire frame and returns the record together
// with its payload fingerprint.
func decodeRecordFrame(frame []byte, cipher atrest.Cipher) (*Record, string, error) {
	// Frame layout: [crc32:4][op:1][payload...]
	if len(frame) < 5 {
		return nil, "", ErrCorruptedRecord
	}

	wantCRC := binary.BigEndian.Uint32(frame[:4])
	opByte := frame[4]
	payload := frame[5:]

	gotCRC := crc32.ChecksumIEEE(append([]byte{opByte}, payload...))
	if gotCRC != wantCRC {
		return nil, "", ErrChecksumMismatch
	}

	var p wirePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, "", fmt.Errorf("audit: unmarshal payload: %w", err)
	}

	op := Op(opByte)
	if _, ok := opNames[op]; !ok {
		return nil, "", ErrInvalidOp
	}

	out := &Record{
		Op:        op,
		Timestamp: p.Timestamp,
		Code:      p.Code,
		PrevHash:  p.PrevHash,
		RequestID: p.RequestID,
		App:       p.App,
		Key:       p.Key,
		Algorithm: p.Algorithm,
		Detail:    p.Detail,
	}

	fingerprint := secret.FingerprintBytes(payload)

	if p.Encrypted == "" {
		return out, fingerprint, nil
	}
	if cipher == nil {
		return nil, "", fmt.Errorf("audit: encrypted record requires cipher")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(p.Encrypted)
	if err != nil {
		return nil, "", fmt.Errorf("audit: decode encrypted identity: %w", err)
	}

	plain, err := cipher.Decrypt(ciphertext, nil)
	if err != nil {
		return nil, "", fmt.Errorf("audit: decrypt identity: %w", err)
	}

	var id identityPayload
	if err := json.Unmarshal(plain, &id); err != nil {
		return nil, "", fmt.Errorf("audit: unmarshal identity: %w", err)
	}
	out.RequestID = id.RequestID
	out.App = id.App
	out.Key = id.Key
	out.Algorithm = id.Algorithm
	out.Detail = id.Detail
	return out, fingerprint, nil
}
