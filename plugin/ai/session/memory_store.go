package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps dialogs in process memory. It backs the interactive
// chat and tests; LoadErr and SaveErr simulate an unavailable store.
type MemoryStore struct {
	mu      sync.RWMutex
	dialogs map[string]*Dialog

	LoadErr error
	SaveErr error

	saves int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{dialogs: make(map[string]*Dialog)}
}

// Load returns a copy of the stored dialog.
func (m *MemoryStore) Load(_ context.Context, dialogID string) (*Dialog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	d, ok := m.dialogs[dialogID]
	if !ok {
		return NewDialog(dialogID), nil
	}
	return d.Clone(), nil
}

// Save stores a copy of the dialog.
func (m *MemoryStore) Save(_ context.Context, dialog *Dialog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	now := time.Now().Unix()
	if dialog.CreatedAt == 0 {
		dialog.CreatedAt = now
	}
	dialog.UpdatedAt = now
	m.dialogs[dialog.ID] = dialog.Clone()
	m.saves++
	return nil
}

// Delete forgets the dialog.
func (m *MemoryStore) Delete(_ context.Context, dialogID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dialogs, dialogID)
	return nil
}

// CleanupExpired deletes dialogs idle for longer than retention.
func (m *MemoryStore) CleanupExpired(_ context.Context, retention time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-retention).Unix()
	var deleted int64
	for id, d := range m.dialogs {
		if d.UpdatedAt < cutoff {
			delete(m.dialogs, id)
			deleted++
		}
	}
	return deleted, nil
}

// Put stores a dialog as is, keeping its timestamps.
func (m *MemoryStore) Put(dialog *Dialog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialogs[dialog.ID] = dialog.Clone()
}

// Saves returns the number of successful saves.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

var _ DialogStore = (*MemoryStore)(nil)
