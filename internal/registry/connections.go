package registry

import (
	"fmt"
	"sync"
)

// ConnectionRegistry is the process-wide table of live connections,
// keyed by connection id. All mutation is single-key upsert/lookup
// under one mutex; no cross-key transactions.
type ConnectionRegistry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewConnectionRegistry creates an empty connection table.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{connections: make(map[string]*Connection, 256)}
}

// Register adds a connection. Called on socket accept.
func (r *ConnectionRegistry) Register(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[conn.ID()] = conn
}

// Get returns the connection for id, or NotFoundError.
func (r *ConnectionRegistry) Get(id string) (*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[id]
	if !ok {
		return nil, &NotFoundError{Kind: "connection", Key: id}
	}
	return conn, nil
}

// Remove drops the connection. Called on socket close or idle timeout;
// cipher and session entries tied to the id become unreachable through
// their own key removal, there is no pointer-based cleanup.
func (r *ConnectionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, id)
}

// Count returns the number of live connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// State bundles the process-wide registries constructed once at start
// and passed by handle into every dispatcher and handler call.
type State struct {
	Connections *ConnectionRegistry
	Sessions    *SessionRegistry
}

// NewState creates empty registries.
func NewState() *State {
	return &State{
		Connections: NewConnectionRegistry(),
		Sessions:    NewSessionRegistry(),
	}
}

// String implements fmt.Stringer for debug logging.
func (s *State) String() string {
	return fmt.Sprintf("state{connections=%d, sessions=%d}", s.Connections.Count(), s.Sessions.Count())
}
