package catalog

import (
	"context"
	"sync"
)

// MockSource is a static Source for tests. Set Err to simulate an outage.
type MockSource struct {
	mu       sync.Mutex
	Services []*Service
	Err      error
	calls    int
}

func NewMockSource(services ...*Service) *MockSource {
	return &MockSource{Services: services}
}

func (m *MockSource) ListActiveServices(_ context.Context) ([]*Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Services, nil
}

// Calls returns the number of loads.
func (m *MockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// SetServices replaces the served services.
func (m *MockSource) SetServices(services ...*Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Services = services
}
