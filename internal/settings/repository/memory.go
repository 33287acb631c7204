package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/platform/apperr"
)

// MemoryStore is an in-memory Store implementation for tests and local runs.
type MemoryStore struct {
	mu       sync.Mutex
	settings map[domain.Category]domain.DomainSettings
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory settings store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		settings: make(map[domain.Category]domain.DomainSettings),
		now:      time.Now,
	}
}

// SetClock overrides the store clock, for tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Get(_ context.Context, category domain.Category) (domain.DomainSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings, ok := m.settings[category]
	if !ok {
		return domain.DomainSettings{}, apperr.NotFound(notFoundMessage)
	}
	return settings, nil
}

func (m *MemoryStore) List(_ context.Context) ([]domain.DomainSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.DomainSettings, 0, len(m.settings))
	for _, s := range m.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, settings domain.DomainSettings, expectedVersion int64) (domain.DomainSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.settings[settings.Category]
	if expectedVersion == 0 {
		if exists {
			return domain.DomainSettings{}, apperr.Conflict(staleVersionMessage)
		}
		settings.Version = 1
		settings.UpdatedAt = m.now()
		m.settings[settings.Category] = settings
		return settings, nil
	}

	if !exists {
		return domain.DomainSettings{}, apperr.NotFound(notFoundMessage)
	}
	if current.Version != expectedVersion {
		return domain.DomainSettings{}, apperr.Conflict(staleVersionMessage)
	}

	settings.Version = current.Version + 1
	settings.UpdatedAt = m.now()
	m.settings[settings.Category] = settings
	return settings, nil
}
