package codec

import "encoding/binary"

// Reader provides bounds-checked reads over one frame's payload.
// Both byte orders are exposed because the protocol mixes them:
// NPS-family records are big-endian, game-message records little-endian.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a new frame reader.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if r.pos >= len(r.data) {
		return 0, frameErrf("uint8", "not enough data (pos=%d, len=%d)", r.pos, len(r.data))
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadUint16BE reads a big-endian uint16.
func (r *Reader) ReadUint16BE() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, frameErrf("uint16", "not enough data (pos=%d, len=%d)", r.pos, len(r.data))
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadUint16LE reads a little-endian uint16.
func (r *Reader) ReadUint16LE() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, frameErrf("uint16", "not enough data (pos=%d, len=%d)", r.pos, len(r.data))
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadUint32BE reads a big-endian uint32.
func (r *Reader) ReadUint32BE() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, frameErrf("uint32", "not enough data (pos=%d, len=%d)", r.pos, len(r.data))
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadUint32LE reads a little-endian uint32.
func (r *Reader) ReadUint32LE() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, frameErrf("uint32", "not enough data (pos=%d, len=%d)", r.pos, len(r.data))
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadPrefixedString reads a string with a 16-bit length prefix.
// Fails with FrameError when the prefix exceeds the remaining buffer.
func (r *Reader) ReadPrefixedString(bigEndian bool) (string, error) {
	b, err := r.ReadPrefixedBytes(bigEndian)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadPrefixedBytes reads a blob with a 16-bit length prefix.
// Returns a mutable copy, the frame buffer is pooled by the caller.
func (r *Reader) ReadPrefixedBytes(bigEndian bool) ([]byte, error) {
	var n uint16
	var err error
	if bigEndian {
		n, err = r.ReadUint16BE()
	} else {
		n, err = r.ReadUint16LE()
	}
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.data) {
		return nil, frameErrf("blob", "declared length %d exceeds remaining %d", n, len(r.data)-r.pos)
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

// ReadBytes reads n bytes as a mutable copy.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, frameErrf("bytes", "negative count %d", n)
	}
	if r.pos+n > len(r.data) {
		return nil, frameErrf("bytes", "not enough data (pos=%d, need=%d, len=%d)", r.pos, n, len(r.data))
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Position returns the current read position.
func (r *Reader) Position() int {
	return r.pos
}
