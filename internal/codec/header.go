package codec

import "encoding/binary"

// Variant selects one of the header shapes spoken by the sub-servers.
// Endianness is not uniform across the family: NPS headers are big-endian,
// the legacy and game-message headers are little-endian. This is a protocol
// fact, not a style choice.
type Variant int

const (
	// VariantLegacy: [length:uint16][opcode:uint16], little-endian.
	// length covers header + body.
	VariantLegacy Variant = iota
	// VariantNPS: [subLength:uint32][opcode:uint32], big-endian.
	// subLength = 4 + body length (excludes itself, includes the opcode field).
	VariantNPS
	// VariantGame: [subLength:uint32][msgNo:uint16][version:uint16],
	// little-endian. Same sub-length rule as NPS.
	VariantGame
	// VariantRaw: [opcode:uint16] little-endian, body is the rest of the
	// buffer. Used where the peer sends one frame per datagram-style write.
	VariantRaw
)

func (v Variant) String() string {
	switch v {
	case VariantLegacy:
		return "legacy"
	case VariantNPS:
		return "nps"
	case VariantGame:
		return "game"
	case VariantRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// MaxFrameSize caps the declared length of any inbound frame. The legacy
// clients never send frames anywhere near this; a larger declaration is a
// corrupt or hostile header.
const MaxFrameSize = 1 << 16

// Header is the decoded outer header of one frame.
type Header struct {
	Opcode      uint32
	DeclaredLen int // total framed size including the header
	HeaderSize  int
}

// MinHeaderSize returns the number of bytes the variant's header occupies.
func MinHeaderSize(v Variant) int {
	switch v {
	case VariantLegacy:
		return 4
	case VariantNPS, VariantGame:
		return 8
	case VariantRaw:
		return 2
	default:
		return 0
	}
}

// DecodeHeader parses the outer header of buf for the given variant.
// Fails with FrameError when buf is shorter than the header or the
// declared length is outside the unsigned sane domain.
func DecodeHeader(buf []byte, v Variant) (Header, error) {
	hs := MinHeaderSize(v)
	if hs == 0 {
		return Header{}, frameErrf("header", "unknown variant %d", v)
	}
	if len(buf) < hs {
		return Header{}, frameErrf("header", "%s header needs %d bytes, have %d", v, hs, len(buf))
	}

	var h Header
	h.HeaderSize = hs

	switch v {
	case VariantLegacy:
		h.DeclaredLen = int(binary.LittleEndian.Uint16(buf[0:2]))
		h.Opcode = uint32(binary.LittleEndian.Uint16(buf[2:4]))
		if h.DeclaredLen < hs {
			return Header{}, frameErrf("header", "legacy length %d below header size", h.DeclaredLen)
		}
	case VariantNPS:
		subLen := binary.BigEndian.Uint32(buf[0:4])
		h.Opcode = binary.BigEndian.Uint32(buf[4:8])
		if subLen < 4 {
			return Header{}, frameErrf("header", "nps sub-length %d below opcode size", subLen)
		}
		h.DeclaredLen = int(subLen) + 4
	case VariantGame:
		subLen := binary.LittleEndian.Uint32(buf[0:4])
		h.Opcode = binary.LittleEndian.Uint32(buf[4:8])
		if subLen < 4 {
			return Header{}, frameErrf("header", "game sub-length %d below id size", subLen)
		}
		h.DeclaredLen = int(subLen) + 4
	case VariantRaw:
		h.Opcode = uint32(binary.LittleEndian.Uint16(buf[0:2]))
		h.DeclaredLen = len(buf)
	}

	if h.DeclaredLen > MaxFrameSize {
		return Header{}, frameErrf("header", "%s declared length %d exceeds maximum %d", v, h.DeclaredLen, MaxFrameSize)
	}
	return h, nil
}
