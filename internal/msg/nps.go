package msg

import (
	"github.com/drazisil/mcos-sub001/internal/codec"
)

// NPSMessage is the 8-byte-header frame spoken by the login, persona and
// lobby sub-servers. Header fields are big-endian.
//
//	[subLength:uint32][opcode:uint32][payload...]
//
// subLength = 4 + len(payload): it excludes itself but includes the
// opcode field. The outer framed length is subLength + 4.
type NPSMessage struct {
	Opcode  uint32
	Payload []byte
}

// NewNPSMessage creates an NPSMessage with the given opcode and payload.
func NewNPSMessage(opcode uint32, payload []byte) *NPSMessage {
	return &NPSMessage{Opcode: opcode, Payload: payload}
}

// Size returns the serialized frame size.
func (m *NPSMessage) Size() int {
	return codec.MinHeaderSize(codec.VariantNPS) + len(m.Payload)
}

// Serialize writes the frame into a fresh exactly-sized buffer.
func (m *NPSMessage) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, m.Size()))
	if err := w.WriteUint32BE(uint32(4 + len(m.Payload))); err != nil {
		return nil, err
	}
	if err := w.WriteUint32BE(m.Opcode); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(m.Payload); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Deserialize parses one framed NPS message.
func (m *NPSMessage) Deserialize(buf []byte) error {
	h, err := codec.DecodeHeader(buf, codec.VariantNPS)
	if err != nil {
		return err
	}
	if h.DeclaredLen > len(buf) {
		return &codec.FrameError{Op: "nps", Reason: "declared length exceeds buffer"}
	}
	payload := make([]byte, h.DeclaredLen-h.HeaderSize)
	copy(payload, buf[h.HeaderSize:h.DeclaredLen])
	m.Opcode = h.Opcode
	m.Payload = payload
	return nil
}
