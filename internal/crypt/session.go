// Package crypt holds the per-connection symmetric cipher state negotiated
// after login. The legacy client pins the algorithms: RC4 for command
// traffic and DES-CBC for the session-key style block exchanges.
package crypt

import (
	"crypto/cipher"
	"crypto/des"
	"crypto/rc4"
	"fmt"
)

// desIV is the fixed initialization vector the legacy client uses for the
// block exchanges. Bug-compatible: it never varies per session.
var desIV = []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF}

// CipherSession is the symmetric state bound 1:1 to a connection once
// encryption is negotiated. It holds two independent directional RC4
// states: the underlying cipher is stream-like and stateful, so client→
// server and server→client keystreams advance separately. Once created
// for a connection it is never swapped; re-keying requires a new
// connection.
type CipherSession struct {
	cmdIn  *rc4.Cipher // client → server
	cmdOut *rc4.Cipher // server → client

	blockEnc cipher.BlockMode
	blockDec cipher.BlockMode
}

// NewCipherSession derives fresh directional cipher state from the
// session key material.
func NewCipherSession(keyMaterial []byte) (*CipherSession, error) {
	if len(keyMaterial) == 0 {
		return nil, fmt.Errorf("deriving cipher session: empty key material")
	}

	in, err := rc4.NewCipher(keyMaterial)
	if err != nil {
		return nil, fmt.Errorf("deriving inbound rc4 state: %w", err)
	}
	out, err := rc4.NewCipher(keyMaterial)
	if err != nil {
		return nil, fmt.Errorf("deriving outbound rc4 state: %w", err)
	}

	// DES key is the first 8 bytes of the session key.
	desKey := keyMaterial
	if len(desKey) > 8 {
		desKey = desKey[:8]
	} else {
		for len(desKey) < 8 {
			desKey = append(desKey, 0)
		}
	}
	block, err := des.NewCipher(desKey)
	if err != nil {
		return nil, fmt.Errorf("deriving des state: %w", err)
	}

	return &CipherSession{
		cmdIn:    in,
		cmdOut:   out,
		blockEnc: cipher.NewCBCEncrypter(block, desIV),
		blockDec: cipher.NewCBCDecrypter(block, desIV),
	}, nil
}

// Decrypt advances the client→server keystream over data in place.
// Call exactly once per inbound frame, in arrival order: skipping or
// reordering calls desynchronizes the stream. That is a property of the
// legacy cipher the server has to reproduce.
func (cs *CipherSession) Decrypt(data []byte) {
	cs.cmdIn.XORKeyStream(data, data)
}

// Encrypt advances the server→client keystream over data in place.
// Same once-per-frame, in-order discipline as Decrypt.
func (cs *CipherSession) Encrypt(data []byte) {
	cs.cmdOut.XORKeyStream(data, data)
}

// EncryptBlock runs the DES-CBC encryptor over data in place.
// len(data) must be a multiple of the 8-byte block size.
func (cs *CipherSession) EncryptBlock(data []byte) error {
	if len(data)%des.BlockSize != 0 {
		return fmt.Errorf("des encrypt: size %d is not a multiple of %d", len(data), des.BlockSize)
	}
	cs.blockEnc.CryptBlocks(data, data)
	return nil
}

// DecryptBlock runs the DES-CBC decryptor over data in place.
func (cs *CipherSession) DecryptBlock(data []byte) error {
	if len(data)%des.BlockSize != 0 {
		return fmt.Errorf("des decrypt: size %d is not a multiple of %d", len(data), des.BlockSize)
	}
	cs.blockDec.CryptBlocks(data, data)
	return nil
}
