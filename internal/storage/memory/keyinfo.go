package memory

import (
	"context"

	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/pkg/cmap"
)

// KeyInfoStore provides in-memory storage for key metadata records.
//
// The primary index maps the canonical triple form (app/provider/name) to
// the record. Reads happen on every AEAD request in memory mode, so the
// index is sharded.
type KeyInfoStore struct {
	infos *cmap.Map[string, *domain.KeyInfo]
}

// NewKeyInfoStore creates a new in-memory key metadata store.
func NewKeyInfoStore() *KeyInfoStore {
	return &KeyInfoStore{
		infos: cmap.New[string, *domain.KeyInfo](),
	}
}

// GetKeyInfo retrieves key metadata by triple.
func (s *KeyInfoStore) GetKeyInfo(_ context.Context, triple domain.KeyTriple) (*domain.KeyInfo, error) {
	info, ok := s.infos.Get(triple.String())
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return info.Clone(), nil
}

// PutKeyInfo stores metadata for a new key.
// Returns domain.ErrKeyExists when the triple is already present.
func (s *KeyInfoStore) PutKeyInfo(_ context.Context, info *domain.KeyInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	if !s.infos.SetIfAbsent(info.Triple.String(), info.Clone()) {
		return domain.ErrKeyExists
	}
	return nil
}

// DeleteKeyInfo removes metadata by triple.
// Returns domain.ErrKeyNotFound when the triple is absent.
func (s *KeyInfoStore) DeleteKeyInfo(_ context.Context, triple domain.KeyTriple) error {
	if _, ok := s.infos.Pop(triple.String()); !ok {
		return domain.ErrKeyNotFound
	}
	return nil
}

// ListKeyInfos lists metadata for one application.
func (s *KeyInfoStore) ListKeyInfos(_ context.Context, app string) ([]*domain.KeyInfo, error) {
	var infos []*domain.KeyInfo
	s.infos.Range(func(_ string, info *domain.KeyInfo) bool {
		if info.Triple.App == app {
			infos = append(infos, info.Clone())
		}
		return true
	})
	return infos, nil
}

// ListAllKeyInfos lists every stored record across all applications.
func (s *KeyInfoStore) ListAllKeyInfos(_ context.Context) ([]*domain.KeyInfo, error) {
	infos := make([]*domain.KeyInfo, 0, s.infos.Count())
	s.infos.Range(func(_ string, info *domain.KeyInfo) bool {
		infos = append(infos, info.Clone())
		return true
	})
	return infos, nil
}

// Count returns the number of stored records.
func (s *KeyInfoStore) Count() int {
	return s.infos.Count()
}
