package codec

import "encoding/binary"

// Writer writes into a fixed, caller-sized buffer. It never grows the
// buffer: every message type computes its exact serialized size first and
// the buffer is allocated to match. A write past the end fails loudly
// instead of truncating, which is how size-calculation bugs get caught.
type Writer struct {
	buf []byte
	pos int
}

// NewWriter wraps buf. len(buf) is the hard limit for all writes.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

func (w *Writer) need(n int, op string) error {
	if w.pos+n > len(w.buf) {
		return frameErrf(op, "write past end of %d-byte buffer (pos=%d, need=%d)", len(w.buf), w.pos, n)
	}
	return nil
}

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(v uint8) error {
	if err := w.need(1, "uint8"); err != nil {
		return err
	}
	w.buf[w.pos] = v
	w.pos++
	return nil
}

// WriteUint16BE writes a big-endian uint16.
func (w *Writer) WriteUint16BE(v uint16) error {
	if err := w.need(2, "uint16"); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(w.buf[w.pos:], v)
	w.pos += 2
	return nil
}

// WriteUint16LE writes a little-endian uint16.
func (w *Writer) WriteUint16LE(v uint16) error {
	if err := w.need(2, "uint16"); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(w.buf[w.pos:], v)
	w.pos += 2
	return nil
}

// WriteUint32BE writes a big-endian uint32.
func (w *Writer) WriteUint32BE(v uint32) error {
	if err := w.need(4, "uint32"); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
	return nil
}

// WriteUint32LE writes a little-endian uint32.
func (w *Writer) WriteUint32LE(v uint32) error {
	if err := w.need(4, "uint32"); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
	return nil
}

// WriteBytes writes b verbatim.
func (w *Writer) WriteBytes(b []byte) error {
	if err := w.need(len(b), "bytes"); err != nil {
		return err
	}
	copy(w.buf[w.pos:], b)
	w.pos += len(b)
	return nil
}

// WritePrefixedBytes writes a 16-bit length prefix followed by b.
func (w *Writer) WritePrefixedBytes(b []byte, bigEndian bool) error {
	if len(b) > 0xFFFF {
		return frameErrf("blob", "blob of %d bytes exceeds 16-bit prefix", len(b))
	}
	var err error
	if bigEndian {
		err = w.WriteUint16BE(uint16(len(b)))
	} else {
		err = w.WriteUint16LE(uint16(len(b)))
	}
	if err != nil {
		return err
	}
	return w.WriteBytes(b)
}

// WritePrefixedString writes a 16-bit length prefix followed by s.
func (w *Writer) WritePrefixedString(s string, bigEndian bool) error {
	return w.WritePrefixedBytes([]byte(s), bigEndian)
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.pos
}

// Bytes returns the written portion of the buffer.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.pos]
}
