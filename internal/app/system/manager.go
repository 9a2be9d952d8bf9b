package system

import (
	"context"
	"fmt"
	"sync"
)

// Manager starts registered services in registration order and stops them in
// reverse. A start failure stops the services already started.
type Manager struct {
	mu       sync.Mutex
	services []Service
	names    map[string]struct{}
	started  bool
}

// NewManager builds an empty manager.
func NewManager() *Manager {
	return &Manager{names: make(map[string]struct{})}
}

// Register adds a service. Names must be unique; registration after Start is
// rejected.
func (m *Manager) Register(svc Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("cannot register %q after start", svc.Name())
	}
	if _, exists := m.names[svc.Name()]; exists {
		return fmt.Errorf("service %q already registered", svc.Name())
	}
	m.names[svc.Name()] = struct{}{}
	m.services = append(m.services, svc)
	return nil
}

// Start starts every registered service. On failure the services started so
// far are stopped in reverse order before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	for i, svc := range m.services {
		if err := svc.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.services[j].Stop(ctx)
			}
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
	}
	m.started = true
	return nil
}

// Stop stops every service in reverse registration order, collecting the
// first error while still stopping the rest.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	var firstErr error
	for i := len(m.services) - 1; i >= 0; i-- {
		if err := m.services[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop %s: %w", m.services[i].Name(), err)
		}
	}
	m.started = false
	return firstErr
}
