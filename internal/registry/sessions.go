package registry

import (
	"strconv"
	"sync"
	"time"

	"github.com/drazisil/mcos-sub001/internal/msg"
)

// SessionEntry binds an issued session key to its customer, login
// context and current connection.
type SessionEntry struct {
	Key          msg.SessionKey
	CustomerID   uint32
	ContextID    string
	ConnectionID string
	CreatedAt    time.Time
}

// SessionRegistry is the process-wide session table, indexed three ways:
// by key hex, by customer id and by connection id. Initialized empty at
// process start, torn down at shutdown; nothing persists here.
type SessionRegistry struct {
	mu           sync.RWMutex
	byKeyHex     map[string]*SessionEntry
	byCustomer   map[uint32]*SessionEntry
	byConnection map[string]*SessionEntry
}

// NewSessionRegistry creates an empty session table.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byKeyHex:     make(map[string]*SessionEntry),
		byCustomer:   make(map[uint32]*SessionEntry),
		byConnection: make(map[string]*SessionEntry),
	}
}

// UpdateSessionKey upserts the session for a customer. A later call with
// the same customer id replaces the prior entry and unindexes the old
// key: lookups by the old value must fail, not silently succeed.
func (r *SessionRegistry) UpdateSessionKey(customerID uint32, key msg.SessionKey, contextID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byCustomer[customerID]; ok {
		delete(r.byKeyHex, old.Key.Hex())
		delete(r.byConnection, old.ConnectionID)
	}

	entry := &SessionEntry{
		Key:          key,
		CustomerID:   customerID,
		ContextID:    contextID,
		ConnectionID: connectionID,
		CreatedAt:    time.Now(),
	}
	r.byCustomer[customerID] = entry
	r.byKeyHex[key.Hex()] = entry
	r.byConnection[connectionID] = entry
}

// FetchSessionKeyByCustomerID returns the current key for a customer,
// or NotFoundError.
func (r *SessionRegistry) FetchSessionKeyByCustomerID(customerID uint32) (msg.SessionKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byCustomer[customerID]
	if !ok {
		return msg.SessionKey{}, &NotFoundError{Kind: "session", Key: "customer " + strconv.FormatUint(uint64(customerID), 10)}
	}
	return entry.Key, nil
}

// FetchSessionKeyByConnectionID returns the key bound to a connection,
// or NotFoundError.
func (r *SessionRegistry) FetchSessionKeyByConnectionID(connectionID string) (msg.SessionKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byConnection[connectionID]
	if !ok {
		return msg.SessionKey{}, &NotFoundError{Kind: "session", Key: "connection " + connectionID}
	}
	return entry.Key, nil
}

// FetchByKeyHex resolves a session by the hex rendering of its key
// material, or NotFoundError. A replaced key never resolves here.
func (r *SessionRegistry) FetchByKeyHex(keyHex string) (*SessionEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byKeyHex[keyHex]
	if !ok {
		return nil, &NotFoundError{Kind: "session", Key: "key " + keyHex}
	}
	return entry, nil
}

// RemoveByConnectionID drops the session bound to a closed connection.
func (r *SessionRegistry) RemoveByConnectionID(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byConnection[connectionID]
	if !ok {
		return
	}
	delete(r.byConnection, connectionID)
	delete(r.byKeyHex, entry.Key.Hex())
	delete(r.byCustomer, entry.CustomerID)
}

// CleanExpired drops sessions older than ttl.
func (r *SessionRegistry) CleanExpired(ttl time.Duration) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for customerID, entry := range r.byCustomer {
		if now.Sub(entry.CreatedAt) > ttl {
			delete(r.byCustomer, customerID)
			delete(r.byKeyHex, entry.Key.Hex())
			delete(r.byConnection, entry.ConnectionID)
		}
	}
}

// Count returns the number of active sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCustomer)
}
