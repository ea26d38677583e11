// Package registry holds the process-wide connection and session tables.
// There are no ambient statics: a State is constructed once at bootstrap
// and handed into every dispatcher and handler, so tests get isolated
// instances.
package registry

import (
	"sync"
	"time"

	"github.com/drazisil/mcos-sub001/internal/crypt"
)

// ConnectionStatus is the lifecycle state of one live socket.
type ConnectionStatus int

const (
	StatusInactive ConnectionStatus = iota // accepted, handshake pending
	StatusActive                           // handshake complete
	StatusClosePending                     // graceful shutdown requested, in-flight work remains
	StatusSoftKill                         // drop after the current response flushes
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusInactive:
		return "INACTIVE"
	case StatusActive:
		return "ACTIVE"
	case StatusClosePending:
		return "CLOSE_PENDING"
	case StatusSoftKill:
		return "SOFT_KILL"
	default:
		return "UNKNOWN"
	}
}

// Connection is the per-socket record. One exists per live connection
// for the process lifetime of that socket; handlers obtain it from the
// registry, mutate it in place and drop the reference when the request
// is done.
type Connection struct {
	id         string
	remoteAddr string
	port       int

	mu            sync.Mutex
	status        ConnectionStatus
	useEncryption bool
	cipher        *crypt.CipherSession
	personaID     uint32
	customerID    uint32
	lastMessageAt time.Time
}

// NewConnection creates a connection record in the INACTIVE state.
func NewConnection(id, remoteAddr string, port int) *Connection {
	return &Connection{
		id:            id,
		remoteAddr:    remoteAddr,
		port:          port,
		status:        StatusInactive,
		lastMessageAt: time.Now(),
	}
}

// ID returns the process-unique connection id.
func (c *Connection) ID() string { return c.id }

// RemoteAddr returns the peer address.
func (c *Connection) RemoteAddr() string { return c.remoteAddr }

// Port returns the local listener port the connection arrived on.
func (c *Connection) Port() int { return c.port }

// Status returns the lifecycle status.
func (c *Connection) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus sets the lifecycle status.
func (c *Connection) SetStatus(s ConnectionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}

// UseEncryption reports whether command traffic is enciphered.
func (c *Connection) UseEncryption() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.useEncryption
}

// ArmCipher binds cipher state to the connection. The first call wins;
// the cipher is never swapped mid-connection.
func (c *Connection) ArmCipher(cs *crypt.CipherSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cipher != nil {
		return
	}
	c.cipher = cs
	c.useEncryption = true
}

// Cipher returns the bound cipher state, nil before negotiation.
func (c *Connection) Cipher() *crypt.CipherSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cipher
}

// Identity returns the resolved customer and persona ids, zero before
// authentication/persona selection.
func (c *Connection) Identity() (customerID, personaID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.customerID, c.personaID
}

// SetCustomerID records the customer once authentication succeeds.
func (c *Connection) SetCustomerID(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customerID = id
}

// SetPersonaID records the persona once selection succeeds.
func (c *Connection) SetPersonaID(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.personaID = id
}

// Touch updates the last-message timestamp. Called on every inbound
// frame; the idle-timeout policy lives with the surrounding server.
func (c *Connection) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastMessageAt = time.Now()
}

// LastMessageAt returns the timestamp of the latest inbound frame.
func (c *Connection) LastMessageAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMessageAt
}
