package nps

import (
	"context"
	"fmt"

	"github.com/drazisil/mcos-sub001/internal/msg"
	"github.com/drazisil/mcos-sub001/internal/registry"
)

// Request is one decoded inbound frame handed to a handler. Body is the
// payload after the header, already deciphered when the opcode demands
// it.
type Request struct {
	Opcode  uint32
	Version uint16 // game-message frames only, post-coercion
	Body    []byte
}

// HandlerFunc processes one request for one connection and returns zero
// or more outbound messages. Zero is a valid result: some opcodes are
// acknowledged by side effect only.
type HandlerFunc func(ctx context.Context, conn *registry.Connection, req *Request) ([]msg.Message, error)

// Entry registers one opcode in a sub-server's table.
type Entry struct {
	Opcode    uint32
	Name      string
	Encrypted bool
	Fn        HandlerFunc
}

// Table is the immutable opcode→handler mapping of one sub-server,
// built once at startup.
type Table struct {
	entries map[uint32]Entry
}

// NewTable builds the mapping, failing fast on duplicate opcode
// registration rather than silently shadowing a handler.
func NewTable(entries []Entry) (*Table, error) {
	m := make(map[uint32]Entry, len(entries))
	for _, e := range entries {
		if e.Fn == nil {
			return nil, fmt.Errorf("opcode 0x%04X (%s): nil handler", e.Opcode, e.Name)
		}
		if prev, ok := m[e.Opcode]; ok {
			return nil, fmt.Errorf("duplicate opcode 0x%04X: %s already registered, refusing %s", e.Opcode, prev.Name, e.Name)
		}
		m[e.Opcode] = e
	}
	return &Table{entries: m}, nil
}

// MustTable is NewTable for static tables assembled at startup.
func MustTable(entries []Entry) *Table {
	t, err := NewTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the entry for an opcode.
func (t *Table) Lookup(opcode uint32) (Entry, bool) {
	e, ok := t.entries[opcode]
	return e, ok
}

// Len returns the number of registered opcodes.
func (t *Table) Len() int { return len(t.entries) }
