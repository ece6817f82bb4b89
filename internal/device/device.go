// Package device defines the secure-element contract for Sevault.
package device

import (
	"context"
	"errors"
	"fmt"
)

// Element-level errors. The service layer never forwards these to callers;
// they surface as the opaque cryptographic-failure code and are logged with
// full detail server-side.
var (
	ErrSlotOutOfRange  = errors.New("device: slot out of range")
	ErrSlotEmpty       = errors.New("device: slot holds no key")
	ErrSlotOccupied    = errors.New("device: slot already holds a key")
	ErrKeySize         = errors.New("device: unsupported key size")
	ErrNonceLength     = errors.New("device: nonce length outside supported window")
	ErrTagLength       = errors.New("device: tag length outside supported window")
	ErrPayloadTooLarge = errors.New("device: payload too large for construction")
	ErrModeUnknown     = errors.New("device: unknown construction mode")
	ErrClosed          = errors.New("device: element closed")
)

// Slot is an element key handle. Key material is addressed only through
// slots; it never crosses the device boundary.
type Slot uint8

// Mode discriminates the two AEAD constructions the element implements.
type Mode uint8

const (
	// ModeCCM is AES-CCM.
	ModeCCM Mode = iota + 1

	// ModeGCM is AES-GCM.
	ModeGCM
)

// String returns the mode name for logs.
func (m Mode) String() string {
	switch m {
	case ModeCCM:
		return "ccm"
	case ModeGCM:
		return "gcm"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Params carries the per-call AEAD parameters. TagLength and Tag are
// mutually exclusive: an encrypt call supplies the length of the tag to
// produce, a decrypt call supplies the tag value extracted from the
// ciphertext tail (its length is the tag length). Values are built fresh
// per call and never retained by the element.
type Params struct {
	Nonce     []byte
	TagLength int
	Tag       []byte
	AAD       []byte
}

// Construction pairs a mode with its parameters. The two variants are
// built through CCM and GCM only, so a construction value always carries
// exactly one mode and one parameter set; nothing is shared or cloned
// between the branches.
type Construction struct {
	mode   Mode
	params Params
}

// CCM builds the AES-CCM variant.
func CCM(p Params) Construction {
	return Construction{mode: ModeCCM, params: p}
}

// GCM builds the AES-GCM variant.
func GCM(p Params) Construction {
	return Construction{mode: ModeGCM, params: p}
}

// Mode returns the construction's discriminant.
func (c Construction) Mode() Mode {
	return c.mode
}

// Params returns the construction's parameters.
func (c Construction) Params() Params {
	return c.params
}

// SecureElement is the device interface the service layer drives. Elements
// serialize slot access internally; callers treat every call as atomic.
//
// Both AEAD calls mutate buf in place: AeadEncrypt overwrites the plaintext
// with the encrypted bytes and returns the authentication tag separately;
// AeadDecrypt overwrites the encrypted bytes with plaintext when, and only
// when, it returns authenticated == true. A false return with nil error
// means the tag did not verify; an error return means the device itself
// failed. Callers must not read buf after a false or error return.
type SecureElement interface {
	AeadEncrypt(ctx context.Context, con Construction, slot Slot, buf []byte) (tag []byte, err error)
	AeadDecrypt(ctx context.Context, con Construction, slot Slot, buf []byte) (authenticated bool, err error)

	GenerateKey(ctx context.Context, slot Slot, bits int) error
	DestroyKey(ctx context.Context, slot Slot) error

	// Slots returns the number of key slots the element provides.
	Slots() int

	// Serial returns the element's unique serial number.
	Serial() string

	Close() error
}
