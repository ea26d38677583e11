package nps

import (
	"context"
	"fmt"

	"github.com/drazisil/mcos-sub001/internal/codec"
	"github.com/drazisil/mcos-sub001/internal/crypt"
	"github.com/drazisil/mcos-sub001/internal/msg"
	"github.com/drazisil/mcos-sub001/internal/registry"
)

// Dispatcher resolves inbound frames of one sub-server to handlers.
// The header variant is fixed per sub-server. Frames of one connection
// are dispatched strictly in arrival order by the connection's own
// goroutine; the dispatcher itself holds no per-frame state.
type Dispatcher struct {
	variant codec.Variant
	table   *Table
	state   *registry.State
	ciphers *crypt.Manager
}

// NewDispatcher wires a table to the shared registries.
func NewDispatcher(variant codec.Variant, table *Table, state *registry.State, ciphers *crypt.Manager) *Dispatcher {
	return &Dispatcher{variant: variant, table: table, state: state, ciphers: ciphers}
}

// Variant returns the header shape this dispatcher parses.
func (d *Dispatcher) Variant() codec.Variant { return d.variant }

// Dispatch parses one raw frame, resolves its opcode and invokes the
// handler. Handler failures come back wrapped in DispatchError; they
// never take the dispatch loop down.
func (d *Dispatcher) Dispatch(ctx context.Context, connectionID string, raw []byte) (out []msg.Message, err error) {
	h, err := codec.DecodeHeader(raw, d.variant)
	if err != nil {
		return nil, err
	}
	if h.DeclaredLen > len(raw) {
		return nil, &codec.FrameError{Op: "dispatch", Reason: "declared length exceeds frame"}
	}
	body := raw[h.HeaderSize:h.DeclaredLen]

	// The game-message id carries a version tag the client sometimes
	// zeroes out. Normalize before the table lookup so one entry serves
	// both spellings of the same request.
	opcode := h.Opcode
	var version uint16
	if d.variant == codec.VariantGame {
		gm := msg.FromGameMessage(msg.VersionCompat, &msg.GameMessage{
			MsgNo:   uint16(h.Opcode & 0xFFFF),
			Version: uint16(h.Opcode >> 16),
			Payload: body,
		})
		opcode = uint32(gm.MsgNo)
		version = gm.Version
	}

	entry, ok := d.table.Lookup(opcode)
	if !ok {
		return nil, &UnsupportedOpcodeError{Opcode: opcode}
	}

	conn, err := d.state.Connections.Get(connectionID)
	if err != nil {
		return nil, err
	}
	conn.Touch()

	if entry.Encrypted {
		cs, err := d.ciphers.Get(connectionID)
		if err != nil {
			return nil, err
		}
		// Exactly one decrypt per inbound frame, in arrival order; the
		// stream state advances with every call.
		cs.Decrypt(body)
	}

	defer func() {
		if r := recover(); r != nil {
			err = &DispatchError{ConnectionID: connectionID, Opcode: opcode, Err: fmt.Errorf("handler panic: %v", r)}
		}
	}()

	out, err = entry.Fn(ctx, conn, &Request{Opcode: opcode, Version: version, Body: body})
	if err != nil {
		return nil, &DispatchError{ConnectionID: connectionID, Opcode: opcode, Err: err}
	}
	return out, nil
}
