package creds

import (
	"sync"

	"github.com/kavinraju/cirrus/internal/errs"
)

// Memory is an in-memory Provider for tests. Safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	pairs map[string]Credentials
}

// NewMemory returns an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{pairs: make(map[string]Credentials)}
}

// Load implements Provider.
func (m *Memory) Load(ref string) (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.pairs[ref]
	if !ok {
		return Credentials{}, errs.New(errs.ErrKindNotFound, "no credentials stored for ref "+ref)
	}
	return c, nil
}

// Save implements Provider.
func (m *Memory) Save(c Credentials, ref string) error {
	if ref == "" {
		return errs.New(errs.ErrKindConfiguration, "invalid credentials ref")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs[ref] = c
	return nil
}

// Delete implements Provider.
func (m *Memory) Delete(ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pairs, ref)
}
