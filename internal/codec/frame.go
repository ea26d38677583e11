package codec

import (
	"fmt"
	"io"
)

// ReadFrame reads one complete frame from r into buf and returns the
// framed bytes (header included). buf must be at least MaxFrameSize for
// the framed variants; the byte pool sizes it that way.
//
// Raw frames carry no length field, so one Read is one frame there.
func ReadFrame(r io.Reader, v Variant, buf []byte) ([]byte, error) {
	if v == VariantRaw {
		n, err := r.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading raw frame: %w", err)
		}
		if n < MinHeaderSize(v) {
			return nil, frameErrf("frame", "raw frame of %d bytes below opcode size", n)
		}
		return buf[:n], nil
	}

	hs := MinHeaderSize(v)
	if len(buf) < hs {
		return nil, frameErrf("frame", "read buffer smaller than %s header", v)
	}
	if _, err := io.ReadFull(r, buf[:hs]); err != nil {
		return nil, fmt.Errorf("reading %s header: %w", v, err)
	}

	h, err := DecodeHeader(buf[:hs], v)
	if err != nil {
		return nil, err
	}
	if h.DeclaredLen > len(buf) {
		return nil, frameErrf("frame", "declared length %d exceeds buffer %d", h.DeclaredLen, len(buf))
	}
	if _, err := io.ReadFull(r, buf[hs:h.DeclaredLen]); err != nil {
		return nil, fmt.Errorf("reading %s body: %w", v, err)
	}
	return buf[:h.DeclaredLen], nil
}
