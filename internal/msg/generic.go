package msg

import (
	"github.com/drazisil/mcos-sub001/internal/codec"
)

// GenericRequest is the little-endian request envelope used by a number
// of transaction opcodes that carry two opaque 4-byte arguments.
type GenericRequest struct {
	MsgNo uint16
	Data  [4]byte
	Data2 [4]byte
}

// Size returns the serialized record size.
func (m *GenericRequest) Size() int { return 2 + 4 + 4 }

// Serialize writes the record into a fresh exactly-sized buffer.
func (m *GenericRequest) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, m.Size()))
	if err := w.WriteUint16LE(m.MsgNo); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(m.Data[:]); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(m.Data2[:]); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Deserialize parses the record, leaving m untouched on failure.
func (m *GenericRequest) Deserialize(buf []byte) error {
	r := codec.NewReader(buf)
	msgNo, err := r.ReadUint16LE()
	if err != nil {
		return err
	}
	data, err := r.ReadBytes(4)
	if err != nil {
		return err
	}
	data2, err := r.ReadBytes(4)
	if err != nil {
		return err
	}
	m.MsgNo = msgNo
	copy(m.Data[:], data)
	copy(m.Data2[:], data2)
	return nil
}

// GenericReply mirrors GenericRequest on the way out, with the number of
// the message being answered and an opaque result word.
type GenericReply struct {
	MsgNo    uint16
	MsgReply uint16
	Result   [4]byte
	Data     [4]byte
	Data2    [4]byte
}

// Size returns the serialized record size.
func (m *GenericReply) Size() int { return 2 + 2 + 4 + 4 + 4 }

// Serialize writes the record into a fresh exactly-sized buffer.
func (m *GenericReply) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, m.Size()))
	if err := w.WriteUint16LE(m.MsgNo); err != nil {
		return nil, err
	}
	if err := w.WriteUint16LE(m.MsgReply); err != nil {
		return nil, err
	}
	for _, f := range [][]byte{m.Result[:], m.Data[:], m.Data2[:]} {
		if err := w.WriteBytes(f); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// Deserialize parses the record, leaving m untouched on failure.
func (m *GenericReply) Deserialize(buf []byte) error {
	r := codec.NewReader(buf)
	msgNo, err := r.ReadUint16LE()
	if err != nil {
		return err
	}
	msgReply, err := r.ReadUint16LE()
	if err != nil {
		return err
	}
	rest, err := r.ReadBytes(12)
	if err != nil {
		return err
	}
	m.MsgNo = msgNo
	m.MsgReply = msgReply
	copy(m.Result[:], rest[0:4])
	copy(m.Data[:], rest[4:8])
	copy(m.Data2[:], rest[8:12])
	return nil
}
