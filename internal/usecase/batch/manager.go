package batch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/resdomain/internal/domain"
)

// Manager keeps one service per entity type.
type Manager struct {
	mu       sync.RWMutex
	services map[string]*Service
}

// NewManager creates a registry holding services.
func NewManager(services ...*Service) *Manager {
	m := &Manager{services: make(map[string]*Service, len(services))}
	for _, s := range services {
		m.Add(s)
	}
	return m
}

// Add registers s, replacing any service of the same entity type.
func (m *Manager) Add(s *Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.EntityType()] = s
}

// Get returns the service of entityType.
func (m *Manager) Get(entityType string) (*Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[entityType]
	if !ok {
		return nil, fmt.Errorf("service %q: %w", entityType, domain.ErrUnknownEntityType)
	}
	return s, nil
}

// Has reports whether entityType has a service.
func (m *Manager) Has(entityType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.services[entityType]
	return ok
}

// Types returns the registered entity types, sorted.
func (m *Manager) Types() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.services))
	for t := range m.services {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
