package nps

import "fmt"

// UnsupportedOpcodeError means the opcode has no handler in the
// sub-server's table. The dispatcher never invents a response for an
// unknown opcode; the connection loop decides whether to continue or
// close.
type UnsupportedOpcodeError struct {
	Opcode uint32
}

func (e *UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("unsupported opcode 0x%04X (%d)", e.Opcode, e.Opcode)
}

// DispatchError wraps a handler failure with the connection and opcode
// it belongs to, so operators can correlate failures to a specific
// client frame.
type DispatchError struct {
	ConnectionID string
	Opcode       uint32
	Err          error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed: connection=%s opcode=0x%04X: %v", e.ConnectionID, e.Opcode, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
