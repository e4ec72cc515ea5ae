package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

// Memory is an in-process Ledger. The mutex only protects the map; it does
// not make sequences of calls atomic, so the index read-modify-write hazard
// is reproducible against it just as against a remote store.
type Memory struct {
	mu          sync.RWMutex
	data        map[string][]byte
	unavailable bool
}

// NewMemory returns an empty, available Memory ledger.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// SetAvailable toggles whether the ledger answers calls. While unavailable,
// Get, Set and CompareAndSwap fail with domain.ErrNetwork.
func (m *Memory) SetAvailable(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = !ok
}

// Get returns a copy of the value stored at key, or an empty slice.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unavailable {
		return nil, fmt.Errorf("ledger: memory get %s: %w", key, domain.ErrNetwork)
	}
	return bytes.Clone(m.data[key]), nil
}

// Set stores a copy of value at key, overwriting any previous value.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return fmt.Errorf("ledger: memory set %s: %w", key, domain.ErrNetwork)
	}
	m.data[key] = bytes.Clone(value)
	return nil
}

// IsAvailable reports the availability toggle.
func (m *Memory) IsAvailable(_ context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.unavailable
}

// CompareAndSwap stores new at key only when the current value equals old.
// An absent key compares equal to an empty old value.
func (m *Memory) CompareAndSwap(_ context.Context, key string, old, new []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return false, fmt.Errorf("ledger: memory swap %s: %w", key, domain.ErrNetwork)
	}
	if !bytes.Equal(m.data[key], old) {
		return false, nil
	}
	m.data[key] = bytes.Clone(new)
	return true, nil
}

// Compile-time interface check.
var _ domain.SwapLedger = (*Memory)(nil)
