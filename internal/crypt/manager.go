package crypt

import (
	"fmt"
	"sync"
)

// EncryptionError means the cipher state for a connection is missing or
// desynchronized. Fatal to the request; the caller decides whether the
// connection survives.
type EncryptionError struct {
	ConnectionID string
	Reason       string
}

func (e *EncryptionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("encryption error: %s: connection %s", e.Reason, e.ConnectionID)
	}
	return fmt.Sprintf("session not found for connection %s", e.ConnectionID)
}

// Manager owns the cipher sessions keyed by connection id. Each session
// is only ever touched by the goroutine owning its connection; the
// manager's lock covers the table, not the stream state.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*CipherSession
}

// NewManager creates an empty cipher session table.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*CipherSession)}
}

// SelectOrCreate returns the existing session for the connection, or
// derives a new one from the key material and stores it. Repeated calls
// for the same connection always return the same state, whatever key is
// offered later: re-keying mid-connection would corrupt the stream.
func (m *Manager) SelectOrCreate(connectionID string, keyMaterial []byte) (*CipherSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cs, ok := m.sessions[connectionID]; ok {
		return cs, nil
	}
	cs, err := NewCipherSession(keyMaterial)
	if err != nil {
		return nil, fmt.Errorf("creating cipher session for connection %s: %w", connectionID, err)
	}
	m.sessions[connectionID] = cs
	return cs, nil
}

// Get returns the session for a connection that requires encryption.
// Fails with EncryptionError when none exists.
func (m *Manager) Get(connectionID string) (*CipherSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.sessions[connectionID]
	if !ok {
		return nil, &EncryptionError{ConnectionID: connectionID}
	}
	return cs, nil
}

// Remove drops the session for a closed connection.
func (m *Manager) Remove(connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, connectionID)
}
