// Package storage provides the string key-value backends the record store
// persists into. A Backend plays the role browser localStorage plays for the
// web client: flat keys, opaque string values, whole-value reads and writes.
package storage

import (
	"context"
	"errors"
	"sync"
)

// Well-known keys.
const (
	// KeyData holds the sealed record document.
	KeyData = "sentrivault_data"
	// KeyCurrentUser holds the plaintext id of the signed-in user.
	KeyCurrentUser = "sentrivault_current_user"
)

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("storage: backend is closed")

// Backend is a string key-value store.
type Backend interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// MemoryBackend is an in-process Backend. The zero value is ready to use.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.values, key)
	return nil
}

// Close marks the backend closed; later calls return ErrClosed.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
