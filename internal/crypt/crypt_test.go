package crypt

import (
	"bytes"
	"strings"
	"testing"
)

func testKey() []byte {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i*13 + 7)
	}
	return key
}

func TestCipherSession_InOrderRoundTrip(t *testing.T) {
	// Two sessions keyed identically model the two ends of the wire.
	client, err := NewCipherSession(testKey())
	if err != nil {
		t.Fatal(err)
	}
	server, err := NewCipherSession(testKey())
	if err != nil {
		t.Fatal(err)
	}

	frames := [][]byte{
		[]byte("first frame"),
		[]byte("second"),
		[]byte("third, a bit longer than the others"),
	}
	for _, original := range frames {
		data := make([]byte, len(original))
		copy(data, original)

		client.Encrypt(data)
		if bytes.Equal(data, original) && len(original) > 4 {
			t.Fatal("Encrypt left data unchanged")
		}
		server.Decrypt(data)
		if !bytes.Equal(data, original) {
			t.Fatalf("in-order round trip: got %q, want %q", data, original)
		}
	}
}

func TestCipherSession_OutOfOrderProducesGarbage(t *testing.T) {
	client, _ := NewCipherSession(testKey())
	server, _ := NewCipherSession(testKey())

	a := []byte("frame A")
	b := []byte("frame B")
	ea := append([]byte(nil), a...)
	eb := append([]byte(nil), b...)
	client.Encrypt(ea)
	client.Encrypt(eb)

	// Decrypting B before A desynchronizes the keystream.
	server.Decrypt(eb)
	if bytes.Equal(eb, b) {
		t.Fatal("out-of-order decrypt should not recover plaintext")
	}
}

func TestCipherSession_DirectionalStreamsAreIndependent(t *testing.T) {
	cs, _ := NewCipherSession(testKey())

	// Inbound traffic must not advance the outbound stream.
	inbound := []byte("client to server")
	cs.Decrypt(inbound)

	peer, _ := NewCipherSession(testKey())
	out := []byte("server to client")
	want := append([]byte(nil), out...)
	cs.Encrypt(out)
	peer.Decrypt(out)
	if !bytes.Equal(out, want) {
		t.Fatal("outbound stream was perturbed by inbound traffic")
	}
}

func TestCipherSession_BlockRoundTrip(t *testing.T) {
	cs, _ := NewCipherSession(testKey())
	peer, _ := NewCipherSession(testKey())

	data := []byte("16 byte multiple") // len 16
	want := append([]byte(nil), data...)
	if err := cs.EncryptBlock(data); err != nil {
		t.Fatal(err)
	}
	if err := peer.DecryptBlock(data); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("block round trip: got %q, want %q", data, want)
	}
}

func TestCipherSession_BlockRejectsPartialBlocks(t *testing.T) {
	cs, _ := NewCipherSession(testKey())
	if err := cs.EncryptBlock([]byte("seven b")); err == nil {
		t.Fatal("EncryptBlock accepted a non-multiple of the block size")
	}
}

func TestManager_SelectOrCreateNeverRekeys(t *testing.T) {
	m := NewManager()
	first, err := m.SelectOrCreate("conn-1", testKey())
	if err != nil {
		t.Fatal(err)
	}

	// A second call with different material returns the existing session.
	other := []byte("completely different")
	second, err := m.SelectOrCreate("conn-1", other)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("SelectOrCreate replaced an existing session")
	}
}

func TestManager_GetMissingIsEncryptionError(t *testing.T) {
	m := NewManager()
	_, err := m.Get("ghost")
	if err == nil {
		t.Fatal("Get succeeded for unknown connection")
	}
	if !strings.Contains(err.Error(), "session not found for connection ghost") {
		t.Fatalf("error = %q, want the session-not-found message", err)
	}
}

func TestManager_RemoveForgets(t *testing.T) {
	m := NewManager()
	if _, err := m.SelectOrCreate("conn-2", testKey()); err != nil {
		t.Fatal(err)
	}
	m.Remove("conn-2")
	if _, err := m.Get("conn-2"); err == nil {
		t.Fatal("session survived Remove")
	}
}

func TestSessionKeyWrapUnwrap(t *testing.T) {
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	material := testKey()
	blob, err := WrapSessionKey(&priv.PublicKey, material)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnwrapSessionKey(priv, blob)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, material) {
		t.Fatalf("unwrapped key = %x, want %x", got, material)
	}
}

func TestUnwrapSessionKey_GarbageBlob(t *testing.T) {
	priv, _ := GeneratePrivateKey()
	if _, err := UnwrapSessionKey(priv, []byte("not an rsa blob")); err == nil {
		t.Fatal("UnwrapSessionKey accepted garbage")
	}
}
