package keyinfo

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/yndnr/sevault-go/internal/core/domain"
	"github.com/yndnr/sevault-go/internal/storage"
)

// storedApplication is the persistence form of an Application. The domain
// struct hides the secret hashes from JSON; the store must keep them.
type storedApplication struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	SecretHash     string   `json:"secret_hash"`
	OldSecretHash  string   `json:"old_secret_hash,omitempty"`
	GracePeriodEnd int64    `json:"grace_period_end,omitempty"`
	Role           string   `json:"role"`
	Allowlist      []string `json:"allowlist,omitempty"`
	RateLimit      int      `json:"rate_limit"`
	ExpiresAt      int64    `json:"expires_at,omitempty"`
	Status         string   `json:"status"`
	Description    string   `json:"description,omitempty"`
	CreatedAt      int64    `json:"created_at"`
	CreatedBy      string   `json:"created_by"`
	LastUsed       int64    `json:"last_used,omitempty"`
	Version        uint64   `json:"version"`
}

func storedApplicationFromDomain(a *domain.Application) storedApplication {
	return storedApplication{
		ID:             a.ID,
		Name:           a.Name,
		SecretHash:     a.SecretHash,
		OldSecretHash:  a.OldSecretHash,
		GracePeriodEnd: a.GracePeriodEnd,
		Role:           string(a.Role),
		Allowlist:      a.Allowlist,
		RateLimit:      a.RateLimit,
		ExpiresAt:      a.ExpiresAt,
		Status:         string(a.Status),
		Description:    a.Description,
		CreatedAt:      a.CreatedAt,
		CreatedBy:      a.CreatedBy,
		LastUsed:       a.LastUsed,
		Version:        a.Version,
	}
}

func (a storedApplication) toDomain() *domain.Application {
	return &domain.Application{
		ID:             a.ID,
		Name:           a.Name,
		SecretHash:     a.SecretHash,
		OldSecretHash:  a.OldSecretHash,
		GracePeriodEnd: a.GracePeriodEnd,
		Role:           domain.Role(a.Role),
		Allowlist:      a.Allowlist,
		RateLimit:      a.RateLimit,
		ExpiresAt:      a.ExpiresAt,
		Status:         domain.AppStatus(a.Status),
		Description:    a.Description,
		CreatedAt:      a.CreatedAt,
		CreatedBy:      a.CreatedBy,
		LastUsed:       a.LastUsed,
		Version:        a.Version,
	}
}

// ApplicationStore stores application records in a KVEngine.
type ApplicationStore struct {
	engine storage.KVEngine
	mu     sync.Mutex
}

// NewApplicationStore creates an application store over the given engine.
func NewApplicationStore(engine storage.KVEngine) *ApplicationStore {
	return &ApplicationStore{engine: engine}
}

func applicationKey(appID string) []byte {
	return []byte(appPrefix + appID)
}

// Get retrieves an application by ID.
func (s *ApplicationStore) Get(ctx context.Context, appID string) (*domain.Application, error) {
	value, err := s.engine.Get(ctx, applicationKey(appID))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, domain.ErrApplicationNotFound
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}

	var stored storedApplication
	if err := json.Unmarshal(value, &stored); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	return stored.toDomain(), nil
}

// Create stores a new application.
// Returns domain.ErrApplicationConflict when the ID is already present.
func (s *ApplicationStore) Create(ctx context.Context, app *domain.Application) error {
	if err := app.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := applicationKey(app.ID)

	_, err := s.engine.Get(ctx, key)
	if err == nil {
		return domain.ErrApplicationConflict
	}
	if !errors.Is(err, storage.ErrKeyNotFound) {
		return domain.ErrStorageError.WithCause(err)
	}

	return s.put(ctx, key, app)
}

// Update overwrites an existing application.
// Returns domain.ErrApplicationNotFound when the ID is absent.
func (s *ApplicationStore) Update(ctx context.Context, app *domain.Application) error {
	if err := app.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := applicationKey(app.ID)

	if _, err := s.engine.Get(ctx, key); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return domain.ErrApplicationNotFound
		}
		return domain.ErrStorageError.WithCause(err)
	}

	return s.put(ctx, key, app)
}

// Delete removes an application by ID.
// Returns domain.ErrApplicationNotFound when the ID is absent.
func (s *ApplicationStore) Delete(ctx context.Context, appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := applicationKey(appID)

	if _, err := s.engine.Get(ctx, key); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return domain.ErrApplicationNotFound
		}
		return domain.ErrStorageError.WithCause(err)
	}

	if err := s.engine.Delete(ctx, key); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// List retrieves all applications.
func (s *ApplicationStore) List(ctx context.Context) ([]*domain.Application, error) {
	var apps []*domain.Application
	var decodeErr error

	err := s.engine.Scan(ctx, []byte(appPrefix), func(_, value []byte) bool {
		var stored storedApplication
		if err := json.Unmarshal(value, &stored); err != nil {
			decodeErr = err
			return false
		}
		apps = append(apps, stored.toDomain())
		return true
	})
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	if decodeErr != nil {
		return nil, domain.ErrStorageError.WithCause(decodeErr)
	}

	return apps, nil
}

func (s *ApplicationStore) put(ctx context.Context, key []byte, app *domain.Application) error {
	stored := storedApplicationFromDomain(app)
	value, err := json.Marshal(stored)
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}

	if err := s.engine.Set(ctx, key, value); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}
