package msg

import (
	"github.com/drazisil/mcos-sub001/internal/codec"
)

// LegacyMessage is the oldest frame shape, little-endian 4-byte header.
//
//	[length:uint16][opcode:uint16][payload...]
//
// length covers header + payload.
type LegacyMessage struct {
	Opcode  uint16
	Payload []byte
}

// NewLegacyMessage creates a LegacyMessage.
func NewLegacyMessage(opcode uint16, payload []byte) *LegacyMessage {
	return &LegacyMessage{Opcode: opcode, Payload: payload}
}

// Size returns the serialized frame size.
func (m *LegacyMessage) Size() int {
	return codec.MinHeaderSize(codec.VariantLegacy) + len(m.Payload)
}

// Serialize writes the frame into a fresh exactly-sized buffer.
func (m *LegacyMessage) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, m.Size()))
	if err := w.WriteUint16LE(uint16(m.Size())); err != nil {
		return nil, err
	}
	if err := w.WriteUint16LE(m.Opcode); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(m.Payload); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Deserialize parses one framed legacy message.
func (m *LegacyMessage) Deserialize(buf []byte) error {
	h, err := codec.DecodeHeader(buf, codec.VariantLegacy)
	if err != nil {
		return err
	}
	if h.DeclaredLen > len(buf) {
		return &codec.FrameError{Op: "legacy", Reason: "declared length exceeds buffer"}
	}
	payload := make([]byte, h.DeclaredLen-h.HeaderSize)
	copy(payload, buf[h.HeaderSize:h.DeclaredLen])
	m.Opcode = uint16(h.Opcode)
	m.Payload = payload
	return nil
}

// RawMessage is an unheadered frame: two opcode bytes, body is the rest.
type RawMessage struct {
	Opcode  uint16
	Payload []byte
}

// Size returns the serialized frame size.
func (m *RawMessage) Size() int {
	return 2 + len(m.Payload)
}

// Serialize writes the frame into a fresh exactly-sized buffer.
func (m *RawMessage) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, m.Size()))
	if err := w.WriteUint16LE(m.Opcode); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(m.Payload); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Deserialize parses one raw frame.
func (m *RawMessage) Deserialize(buf []byte) error {
	h, err := codec.DecodeHeader(buf, codec.VariantRaw)
	if err != nil {
		return err
	}
	payload := make([]byte, len(buf)-h.HeaderSize)
	copy(payload, buf[h.HeaderSize:])
	m.Opcode = uint16(h.Opcode)
	m.Payload = payload
	return nil
}
