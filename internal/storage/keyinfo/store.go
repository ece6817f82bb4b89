// Package keyinfo persists key metadata and application records over a
// KVEngine.
//
// Records are JSON values under two key prefixes:
//
//	key/<app>/<provider>/<name>  -> KeyInfo
//	app/<app-id>                 -> Application
//
// Key material never enters the store; a KeyInfo record carries only the
// slot number the triple resolves to.
package keyinfo

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/internal/storage"
)

// Key prefixes inside the engine.
const (
	keyPrefix = "key/"
	appPrefix = "app/"
)

// KeyInfoStore stores key metadata records in a KVEngine.
type KeyInfoStore struct {
	engine storage.KVEngine

	// Guards check-then-set sequences; the engine alone cannot make
	// PutKeyInfo's existence check atomic.
	mu sync.Mutex
}

// NewKeyInfoStore creates a key metadata store over the given engine.
func NewKeyInfoStore(engine storage.KVEngine) *KeyInfoStore {
	return &KeyInfoStore{engine: engine}
}

func keyInfoKey(triple domain.KeyTriple) []byte {
	return []byte(keyPrefix + triple.String())
}

// GetKeyInfo retrieves key metadata by triple.
func (s *KeyInfoStore) GetKeyInfo(ctx context.Context, triple domain.KeyTriple) (*domain.KeyInfo, error) {
	value, err := s.engine.Get(ctx, keyInfoKey(triple))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}

	var info domain.KeyInfo
	if err := json.Unmarshal(value, &info); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	return &info, nil
}

// PutKeyInfo stores metadata for a new key.
// Returns domain.ErrKeyExists when the triple is already present.
func (s *KeyInfoStore) PutKeyInfo(ctx context.Context, info *domain.KeyInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyInfoKey(info.Triple)

	_, err := s.engine.Get(ctx, key)
	if err == nil {
		return domain.ErrKeyExists
	}
	if !errors.Is(err, storage.ErrKeyNotFound) {
		return domain.ErrStorageError.WithCause(err)
	}

	value, err := json.Marshal(info)
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}

	if err := s.engine.Set(ctx, key, value); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// DeleteKeyInfo removes metadata by triple.
// Returns domain.ErrKeyNotFound when the triple is absent.
func (s *KeyInfoStore) DeleteKeyInfo(ctx context.Context, triple domain.KeyTriple) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyInfoKey(triple)

	if _, err := s.engine.Get(ctx, key); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return domain.ErrKeyNotFound
		}
		return domain.ErrStorageError.WithCause(err)
	}

	if err := s.engine.Delete(ctx, key); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// ListKeyInfos lists metadata for one application.
func (s *KeyInfoStore) ListKeyInfos(ctx context.Context, app string) ([]*domain.KeyInfo, error) {
	return s.scan(ctx, []byte(keyPrefix+app+"/"))
}

// ListAllKeyInfos lists every stored record across all applications.
func (s *KeyInfoStore) ListAllKeyInfos(ctx context.Context) ([]*domain.KeyInfo, error) {
	return s.scan(ctx, []byte(keyPrefix))
}

func (s *KeyInfoStore) scan(ctx context.Context, prefix []byte) ([]*domain.KeyInfo, error) {
	var infos []*domain.KeyInfo
	var decodeErr error

	err := s.engine.Scan(ctx, prefix, func(_, value []byte) bool {
		var info domain.KeyInfo
		if err := json.Unmarshal(value, &info); err != nil {
			decodeErr = err
			return false
		}
		infos = append(infos, &info)
		return true
	})
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	if decodeErr != nil {
		return nil, domain.ErrStorageError.WithCause(decodeErr)
	}

	return infos, nil
}
