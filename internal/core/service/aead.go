// Package service provides domain services for Sevault.
package service

import (
	"context"
	"fmt"

	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/internal/device"
	"github.com/yndnr/sevault-go/internal/telemetry/logger"
)

// KeyResolver resolves stored key metadata for cryptographic operations.
type KeyResolver interface {
	// GetKeyInfo retrieves key metadata by its fully qualified triple.
	GetKeyInfo(ctx context.Context, triple domain.KeyTriple) (*domain.KeyInfo, error)
}

// AeadService executes authenticated encryption and decryption against the
// secure element. It resolves key metadata, enforces usage policy and
// shapes buffers; all key use happens inside the element.
//
// The service is safe for concurrent use. The element serializes slot
// access internally.
type AeadService struct {
	keys    KeyResolver
	element device.SecureElement
	log     logger.Logger
}

// NewAeadService creates a new AeadService. A nil logger falls back to
// the process default; element faults and verification failures are
// reported to clients as one opaque code, so the logger is the only
// place the distinction survives.
func NewAeadService(keys KeyResolver, element device.SecureElement, log logger.Logger) *AeadService {
	if log == nil {
		log = logger.Default()
	}
	return &AeadService{
		keys:    keys,
		element: element,
		log:     log,
	}
}

// EncryptRequest contains parameters for authenticated encryption.
type EncryptRequest struct {
	App       string           // Owning application ID
	KeyName   string           // Key name within the application namespace
	Algorithm domain.Algorithm // AEAD selection, zero TagLength means default
	Nonce     []byte           // Caller-supplied nonce
	AAD       []byte           // Additional authenticated data (optional)
	Plaintext []byte           // Data to encrypt
}

// EncryptResponse contains the result of authenticated encryption.
type EncryptResponse struct {
	Ciphertext []byte // Encrypted payload with the tag appended
}

// Encrypt encrypts the request plaintext under the named key.
//
// The returned ciphertext is the encrypted payload followed by the
// authentication tag, so its length is len(Plaintext) plus the resolved
// tag length.
func (s *AeadService) Encrypt(ctx context.Context, req *EncryptRequest) (*EncryptResponse, error) {
	// 1. Resolve the tag length. A non-AEAD family fails here, before
	// the key store is touched.
	tagLen, err := req.Algorithm.ResolveTagLength()
	if err != nil {
		return nil, err
	}

	// 2. Resolve the key. Resolution failures pass through untouched so
	// a missing key stays distinguishable from a storage fault.
	info, err := s.keys.GetKeyInfo(ctx, domain.NewKeyTriple(req.App, req.KeyName))
	if err != nil {
		return nil, err
	}

	// 3. Enforce the key's usage policy.
	if err := info.Attributes.PermitsEncrypt(req.Algorithm); err != nil {
		return nil, err
	}

	// 4. Drive the element against a working copy. The element encrypts
	// in place and returns the tag separately; nonce and tag size
	// windows are its call, not ours.
	buf := make([]byte, len(req.Plaintext), len(req.Plaintext)+tagLen)
	copy(buf, req.Plaintext)

	con := buildConstruction(req.Algorithm, device.Params{
		Nonce:     req.Nonce,
		TagLength: tagLen,
		AAD:       req.AAD,
	})

	tag, err := s.element.AeadEncrypt(ctx, con, device.Slot(info.Slot), buf)
	if err != nil {
		s.log.Error("element encrypt failed",
			"app", req.App, "name", req.KeyName, "slot", info.Slot, "error", err)
		return nil, domain.ErrCryptoFailure.WithCause(err)
	}

	// 5. Ciphertext is encrypted payload || tag.
	return &EncryptResponse{Ciphertext: append(buf, tag...)}, nil
}

// DecryptRequest contains parameters for authenticated decryption.
type DecryptRequest struct {
	App        string           // Owning application ID
	KeyName    string           // Key name within the application namespace
	Algorithm  domain.Algorithm // Must match the encrypting selection
	Nonce      []byte           // Nonce used at encryption time
	AAD        []byte           // Additional authenticated data (optional)
	Ciphertext []byte           // Encrypted payload with the tag appended
}

// DecryptResponse contains the result of authenticated decryption.
type DecryptResponse struct {
	Plaintext []byte
}

// Decrypt verifies and decrypts the request ciphertext under the named
// key.
//
// The tag is split off the ciphertext tail using the resolved tag length
// alone. A verification failure and an element failure surface as the
// same opaque error code; callers must not be able to probe which check
// failed, so the distinction lives only in server-side logs.
func (s *AeadService) Decrypt(ctx context.Context, req *DecryptRequest) (*DecryptResponse, error) {
	// 1. Resolve the tag length. A non-AEAD family fails here, before
	// the key store is touched.
	tagLen, err := req.Algorithm.ResolveTagLength()
	if err != nil {
		return nil, err
	}

	// 2. Resolve the key.
	info, err := s.keys.GetKeyInfo(ctx, domain.NewKeyTriple(req.App, req.KeyName))
	if err != nil {
		return nil, err
	}

	// 3. Enforce the key's usage policy.
	if err := info.Attributes.PermitsDecrypt(req.Algorithm); err != nil {
		return nil, err
	}

	// 4. Split payload and tag. The length check needs no secrets, so
	// rejecting short input here opens no oracle.
	if len(req.Ciphertext) < tagLen {
		return nil, domain.ErrCiphertextTooShort.WithDetails(
			fmt.Sprintf("need at least %d bytes, got %d", tagLen, len(req.Ciphertext)))
	}
	split := len(req.Ciphertext) - tagLen

	buf := make([]byte, split)
	copy(buf, req.Ciphertext[:split])

	con := buildConstruction(req.Algorithm, device.Params{
		Nonce: req.Nonce,
		Tag:   req.Ciphertext[split:],
		AAD:   req.AAD,
	})

	// 5. Verify and decrypt. Both failure legs collapse to the one
	// opaque code; only the element fault keeps its cause for logging.
	authenticated, err := s.element.AeadDecrypt(ctx, con, device.Slot(info.Slot), buf)
	if err != nil {
		s.log.Error("element decrypt failed",
			"app", req.App, "name", req.KeyName, "slot", info.Slot, "error", err)
		return nil, domain.ErrCryptoFailure.WithCause(err)
	}
	if !authenticated {
		s.log.Warn("decrypt authentication failed",
			"app", req.App, "name", req.KeyName)
		return nil, domain.ErrCryptoFailure
	}

	return &DecryptResponse{Plaintext: buf}, nil
}

// buildConstruction maps the algorithm family onto an element
// construction. CCM is selected only for the CCM family; every other
// AEAD family runs the GCM path.
func buildConstruction(alg domain.Algorithm, p device.Params) device.Construction {
	if alg.IsCCM() {
		return device.CCM(p)
	}
	return device.GCM(p)
}
