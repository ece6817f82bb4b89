package memory

import (
	"context"
	"sync"

	"github.com/yndnr/sevault-go/internal/core/domain"
)

// ApplicationStore provides in-memory storage for applications.
type ApplicationStore struct {
	mu   sync.RWMutex
	apps map[string]*domain.Application
}

// NewApplicationStore creates a new application store.
func NewApplicationStore() *ApplicationStore {
	return &ApplicationStore{
		apps: make(map[string]*domain.Application),
	}
}

// Get retrieves an application by ID.
func (s *ApplicationStore) Get(_ context.Context, appID string) (*domain.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[appID]
	if !ok {
		return nil, domain.ErrApplicationNotFound
	}

	return app.Clone(), nil
}

// Create creates a new application.
func (s *ApplicationStore) Create(_ context.Context, app *domain.Application) error {
	if err := app.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apps[app.ID]; exists {
		return domain.ErrApplicationConflict
	}

	s.apps[app.ID] = app.Clone()
	return nil
}

// Update updates an existing application.
func (s *ApplicationStore) Update(_ context.Context, app *domain.Application) error {
	if err := app.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apps[app.ID]; !exists {
		return domain.ErrApplicationNotFound
	}

	s.apps[app.ID] = app.Clone()
	return nil
}

// Delete deletes an application by ID.
func (s *ApplicationStore) Delete(_ context.Context, appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apps[appID]; !exists {
		return domain.ErrApplicationNotFound
	}

	delete(s.apps, appID)
	return nil
}

// List retrieves all applications.
func (s *ApplicationStore) List(_ context.Context) ([]*domain.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]*domain.Application, 0, len(s.apps))
	for _, app := range s.apps {
		apps = append(apps, app.Clone())
	}

	return apps, nil
}
