package msg

import (
	"encoding/hex"

	"github.com/drazisil/mcos-sub001/internal/codec"
)

// SessionKey is the proof of authentication issued at login. Immutable
// once issued: a new login produces a new key and the old value stops
// resolving.
//
// Wire form (big-endian): [keyLen:uint16][keyLen bytes][timestamp:uint32]
type SessionKey struct {
	Key       []byte
	Timestamp uint32 // expiry marker, seconds
}

// ParseNPSSessionKey decodes the wire form of a session key record.
func ParseNPSSessionKey(buf []byte) (SessionKey, error) {
	r := codec.NewReader(buf)
	key, err := r.ReadPrefixedBytes(true)
	if err != nil {
		return SessionKey{}, err
	}
	ts, err := r.ReadUint32BE()
	if err != nil {
		return SessionKey{}, err
	}
	return SessionKey{Key: key, Timestamp: ts}, nil
}

// Hex renders the key material for registry lookup.
func (sk SessionKey) Hex() string {
	return hex.EncodeToString(sk.Key)
}

// Size returns the serialized record size.
func (sk SessionKey) Size() int {
	return 2 + len(sk.Key) + 4
}

// Serialize writes the record into a fresh exactly-sized buffer.
func (sk SessionKey) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, sk.Size()))
	if err := w.WritePrefixedBytes(sk.Key, true); err != nil {
		return nil, err
	}
	if err := w.WriteUint32BE(sk.Timestamp); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Deserialize parses the wire form in place.
func (sk *SessionKey) Deserialize(buf []byte) error {
	parsed, err := ParseNPSSessionKey(buf)
	if err != nil {
		return err
	}
	*sk = parsed
	return nil
}
