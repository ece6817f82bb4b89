// Package service provides domain services for Sevault.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/internal/device"
)

// KeyRepository defines the storage interface for key provisioning.
type KeyRepository interface {
	// GetKeyInfo retrieves key metadata by triple.
	GetKeyInfo(ctx context.Context, triple domain.KeyTriple) (*domain.KeyInfo, error)

	// PutKeyInfo stores metadata for a new key. It fails with
	// domain.ErrKeyExists when the triple is already present.
	PutKeyInfo(ctx context.Context, info *domain.KeyInfo) error

	// DeleteKeyInfo removes metadata by triple.
	DeleteKeyInfo(ctx context.Context, triple domain.KeyTriple) error

	// ListKeyInfos lists metadata for one application.
	ListKeyInfos(ctx context.Context, app string) ([]*domain.KeyInfo, error)

	// ListAllKeyInfos lists every stored record, used to rebuild slot
	// occupancy after a restart.
	ListAllKeyInfos(ctx context.Context) ([]*domain.KeyInfo, error)
}

// KeyService provisions and destroys keys on the secure element and keeps
// the triple-to-slot mapping consistent with slot occupancy.
//
// Mutating operations serialize on one mutex: slot allocation, element
// programming and metadata writes must not interleave.
type KeyService struct {
	mu      sync.Mutex
	repo    KeyRepository
	element device.SecureElement
	slots   []bool // true = occupied
}

// NewKeyService creates a new KeyService. Call Recover before serving to
// rebuild slot occupancy from stored metadata.
func NewKeyService(repo KeyRepository, element device.SecureElement) *KeyService {
	return &KeyService{
		repo:    repo,
		element: element,
		slots:   make([]bool, element.Slots()),
	}
}

// Recover marks the slots referenced by stored key metadata as occupied.
// Records pointing past the element's slot range fail recovery; serving
// with a truncated mapping would hand out slots that still hold keys.
func (s *KeyService) Recover(ctx context.Context) error {
	infos, err := s.repo.ListAllKeyInfos(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, info := range infos {
		if int(info.Slot) >= len(s.slots) {
			return domain.ErrStorageError.WithDetails(
				fmt.Sprintf("key %s references slot %d beyond element capacity %d",
					info.Triple, info.Slot, len(s.slots)))
		}
		s.slots[info.Slot] = true
	}
	return nil
}

// CreateKeyRequest contains parameters for key provisioning.
type CreateKeyRequest struct {
	App        string               // Owning application ID
	Name       string               // Caller-chosen key name
	Attributes domain.KeyAttributes // Type, size, usage and algorithm policy
}

// CreateKeyResponse contains the stored metadata of the new key.
type CreateKeyResponse struct {
	Info *domain.KeyInfo
}

// CreateKey generates a key in a free element slot and stores its
// metadata. The key material never leaves the element; callers receive
// only the metadata record.
func (s *KeyService) CreateKey(ctx context.Context, req *CreateKeyRequest) (*CreateKeyResponse, error) {
	triple := domain.NewKeyTriple(req.App, req.Name)
	info := domain.NewKeyInfo(triple, 0, req.Attributes)
	if err := info.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Reject duplicates before burning a slot. The store's create-only
	// put is the backstop.
	if _, err := s.repo.GetKeyInfo(ctx, triple); err == nil {
		return nil, domain.ErrKeyExists.WithDetails(triple.String())
	} else if !errors.Is(err, domain.ErrKeyNotFound) {
		return nil, err
	}

	slot, ok := s.reserveLocked()
	if !ok {
		return nil, domain.ErrSlotsExhausted.WithDetails(
			fmt.Sprintf("all %d element slots hold keys", len(s.slots)))
	}

	if err := s.element.GenerateKey(ctx, slot, req.Attributes.Bits); err != nil {
		s.slots[slot] = false
		return nil, domain.ErrCryptoFailure.WithCause(err)
	}

	info.Slot = uint8(slot)
	if err := s.repo.PutKeyInfo(ctx, info); err != nil {
		// Unwind the element so the slot does not leak.
		if derr := s.element.DestroyKey(ctx, slot); derr == nil {
			s.slots[slot] = false
		}
		return nil, err
	}

	return &CreateKeyResponse{Info: info}, nil
}

// DestroyKeyRequest identifies the key to destroy.
type DestroyKeyRequest struct {
	App  string
	Name string
}

// DestroyKey removes the key's metadata and erases its slot. Metadata goes
// first: a key that is gone from the store but still programmed is
// unreachable, the reverse would leave a record pointing at an empty slot.
func (s *KeyService) DestroyKey(ctx context.Context, req *DestroyKeyRequest) error {
	triple := domain.NewKeyTriple(req.App, req.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.repo.GetKeyInfo(ctx, triple)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteKeyInfo(ctx, triple); err != nil {
		return err
	}

	if err := s.element.DestroyKey(ctx, device.Slot(info.Slot)); err != nil {
		// The slot stays marked occupied; it cannot be reissued until
		// the element confirms erasure.
		return domain.ErrCryptoFailure.WithCause(err)
	}
	s.slots[info.Slot] = false
	return nil
}

// GetKeyRequest identifies the key to look up.
type GetKeyRequest struct {
	App  string
	Name string
}

// GetKeyResponse contains the stored metadata.
type GetKeyResponse struct {
	Info *domain.KeyInfo
}

// GetKey retrieves stored key metadata.
func (s *KeyService) GetKey(ctx context.Context, req *GetKeyRequest) (*GetKeyResponse, error) {
	info, err := s.repo.GetKeyInfo(ctx, domain.NewKeyTriple(req.App, req.Name))
	if err != nil {
		return nil, err
	}
	return &GetKeyResponse{Info: info}, nil
}

// ListKeysRequest scopes the listing to one application.
type ListKeysRequest struct {
	App string
}

// ListKeysResponse contains the application's key metadata records.
type ListKeysResponse struct {
	Infos []*domain.KeyInfo
}

// ListKeys lists the application's keys.
func (s *KeyService) ListKeys(ctx context.Context, req *ListKeysRequest) (*ListKeysResponse, error) {
	infos, err := s.repo.ListKeyInfos(ctx, req.App)
	if err != nil {
		return nil, err
	}
	return &ListKeysResponse{Infos: infos}, nil
}

// SlotUsage reports occupied and total element slots.
func (s *KeyService) SlotUsage() (used, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, occupied := range s.slots {
		if occupied {
			used++
		}
	}
	return used, len(s.slots)
}

// reserveLocked claims the lowest free slot. The caller holds s.mu.
func (s *KeyService) reserveLocked() (device.Slot, bool) {
	for i, occupied := range s.slots {
		if !occupied {
			s.slots[i] = true
			return device.Slot(i), true
		}
	}
	return 0, false
}
