package device

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// SoftSlots is the number of key slots a soft element provides, matching
// the slot count of the hardware parts it stands in for.
const SoftSlots = 16

// SoftElement is a software secure element. It keeps AES key material in
// process memory, addressed by slot, and implements the same AEAD surface
// as the hardware element. A single mutex serializes all calls the way the
// hardware bus does.
type SoftElement struct {
	mu     sync.Mutex
	slots  [][]byte
	serial string
	closed bool
}

var _ SecureElement = (*SoftElement)(nil)

// NewSoftElement creates an empty soft element with a fresh serial number.
// The serial follows the 01 23 .. EE byte layout of production parts.
func NewSoftElement() (*SoftElement, error) {
	serial := make([]byte, 9)
	if _, err := rand.Read(serial[2:8]); err != nil {
		return nil, fmt.Errorf("device: serial generation: %w", err)
	}
	serial[0], serial[1], serial[8] = 0x01, 0x23, 0xEE

	return &SoftElement{
		slots:  make([][]byte, SoftSlots),
		serial: hex.EncodeToString(serial),
	}, nil
}

// GenerateKey fills slot with a fresh random AES key of the given size.
// The slot must be empty; destroying before regenerating is explicit.
func (e *SoftElement) GenerateKey(_ context.Context, slot Slot, bits int) error {
	var size int
	switch bits {
	case 128:
		size = 16
	case 256:
		size = 32
	default:
		return fmt.Errorf("%w: %d bits", ErrKeySize, bits)
	}

	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("device: key generation: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if int(slot) >= len(e.slots) {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	if e.slots[slot] != nil {
		return fmt.Errorf("%w: %d", ErrSlotOccupied, slot)
	}

	e.slots[slot] = key
	return nil
}

// DestroyKey zeroizes and frees the key in slot. Destroying an empty slot
// is an error so double frees surface.
func (e *SoftElement) DestroyKey(_ context.Context, slot Slot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if int(slot) >= len(e.slots) {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	if e.slots[slot] == nil {
		return fmt.Errorf("%w: %d", ErrSlotEmpty, slot)
	}

	zeroize(e.slots[slot])
	e.slots[slot] = nil
	return nil
}

// AeadEncrypt encrypts buf in place under the key in slot and returns the
// authentication tag.
func (e *SoftElement) AeadEncrypt(_ context.Context, con Construction, slot Slot, buf []byte) ([]byte, error) {
	p := con.Params()

	e.mu.Lock()
	defer e.mu.Unlock()

	aead, err := e.aeadLocked(con.Mode(), slot, len(p.Nonce), p.TagLength)
	if err != nil {
		return nil, err
	}
	if con.Mode() == ModeCCM {
		if err := checkCCMLength(len(p.Nonce), len(buf)); err != nil {
			return nil, err
		}
	}

	sealed := aead.Seal(nil, p.Nonce, buf, p.AAD)
	copy(buf, sealed[:len(buf)])
	return sealed[len(buf):], nil
}

// AeadDecrypt verifies the tag carried in the construction parameters and,
// on success, decrypts buf in place. A tag that does not verify yields
// (false, nil); errors are reserved for the device itself failing.
func (e *SoftElement) AeadDecrypt(_ context.Context, con Construction, slot Slot, buf []byte) (bool, error) {
	p := con.Params()

	e.mu.Lock()
	defer e.mu.Unlock()

	aead, err := e.aeadLocked(con.Mode(), slot, len(p.Nonce), len(p.Tag))
	if err != nil {
		return false, err
	}
	if con.Mode() == ModeCCM {
		if err := checkCCMLength(len(p.Nonce), len(buf)); err != nil {
			return false, err
		}
	}

	sealed := make([]byte, 0, len(buf)+len(p.Tag))
	sealed = append(sealed, buf...)
	sealed = append(sealed, p.Tag...)

	plain, err := aead.Open(nil, p.Nonce, sealed, p.AAD)
	if err != nil {
		// The only failure left after parameter validation is the
		// authenticity check itself.
		return false, nil
	}

	copy(buf, plain)
	return true, nil
}

// Slots returns the element's slot count.
func (e *SoftElement) Slots() int {
	return SoftSlots
}

// Serial returns the element serial number as lowercase hex.
func (e *SoftElement) Serial() string {
	return e.serial
}

// Close zeroizes all key material and rejects further calls.
func (e *SoftElement) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	for i, key := range e.slots {
		if key != nil {
			zeroize(key)
			e.slots[i] = nil
		}
	}
	e.closed = true
	return nil
}

// aeadLocked resolves the slot key and builds the AEAD for mode. The
// caller holds e.mu.
func (e *SoftElement) aeadLocked(mode Mode, slot Slot, nonceLen, tagLen int) (cipher.AEAD, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if int(slot) >= len(e.slots) {
		return nil, fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	key := e.slots[slot]
	if key == nil {
		return nil, fmt.Errorf("%w: %d", ErrSlotEmpty, slot)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("device: cipher setup: %w", err)
	}

	switch mode {
	case ModeCCM:
		return newCCM(block, nonceLen, tagLen)
	case ModeGCM:
		return newGCM(block, nonceLen, tagLen)
	default:
		return nil, fmt.Errorf("%w: %d", ErrModeUnknown, mode)
	}
}

// checkCCMLength rejects payloads that do not fit the CCM length field,
// which shrinks as the nonce grows: 15-nonceLen bytes encode the payload
// size.
func checkCCMLength(nonceLen, payloadLen int) error {
	lenFieldBytes := 15 - nonceLen
	if lenFieldBytes >= 8 {
		return nil
	}
	if uint64(payloadLen) >= uint64(1)<<(8*lenFieldBytes) {
		return fmt.Errorf("%w: %d bytes exceeds ccm limit for a %d-byte nonce",
			ErrPayloadTooLarge, payloadLen, nonceLen)
	}
	return nil
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
