package msg

import (
	"github.com/drazisil/mcos-sub001/internal/codec"
)

// VersionCompat is the version tag the dispatch table is keyed against.
// Some client builds send version 0 on messages that must be treated as
// version 257. That is a known client bug the server compensates for;
// see FromGameMessage.
const VersionCompat uint16 = 257

// GameMessage is the frame spoken by the transaction sub-server.
// Header fields are little-endian.
//
//	[subLength:uint32][msgNo:uint16][version:uint16][payload...]
//
// subLength = 4 + len(payload): the client quirk is that it excludes the
// 4-byte sub-length field itself while the outer framed length includes
// everything.
type GameMessage struct {
	MsgNo   uint16
	Version uint16
	Payload []byte
}

// NewGameMessage creates a GameMessage with the compat version tag.
func NewGameMessage(msgNo uint16, payload []byte) *GameMessage {
	return &GameMessage{MsgNo: msgNo, Version: VersionCompat, Payload: payload}
}

// FromGameMessage returns a copy of src with only the version tag
// rewritten. The body is preserved byte for byte. Only the observed
// zero-version case is coerced; any other tag passes through untouched
// so a genuine mismatch surfaces instead of being silently absorbed.
func FromGameMessage(targetVersion uint16, src *GameMessage) *GameMessage {
	out := &GameMessage{MsgNo: src.MsgNo, Version: src.Version, Payload: src.Payload}
	if src.Version == 0 {
		out.Version = targetVersion
	}
	return out
}

// Size returns the serialized frame size.
func (m *GameMessage) Size() int {
	return codec.MinHeaderSize(codec.VariantGame) + len(m.Payload)
}

// Serialize writes the frame into a fresh exactly-sized buffer.
func (m *GameMessage) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, m.Size()))
	if err := w.WriteUint32LE(uint32(4 + len(m.Payload))); err != nil {
		return nil, err
	}
	if err := w.WriteUint16LE(m.MsgNo); err != nil {
		return nil, err
	}
	if err := w.WriteUint16LE(m.Version); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(m.Payload); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Deserialize parses one framed game message.
func (m *GameMessage) Deserialize(buf []byte) error {
	h, err := codec.DecodeHeader(buf, codec.VariantGame)
	if err != nil {
		return err
	}
	if h.DeclaredLen > len(buf) {
		return &codec.FrameError{Op: "game", Reason: "declared length exceeds buffer"}
	}
	payload := make([]byte, h.DeclaredLen-h.HeaderSize)
	copy(payload, buf[h.HeaderSize:h.DeclaredLen])
	m.MsgNo = uint16(h.Opcode & 0xFFFF)
	m.Version = uint16(h.Opcode >> 16)
	m.Payload = payload
	return nil
}
