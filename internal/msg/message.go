// Package msg holds the typed message records exchanged with the legacy
// client. Every concrete type fully implements Message; there is no shared
// base carrying unimplemented stubs.
package msg

// Message is the capability every wire record implements.
//
// Serialize is deterministic and produces exactly Size() bytes.
// Deserialize either fully succeeds or leaves the receiver unchanged.
// Size never depends on prior Serialize calls.
type Message interface {
	Serialize() ([]byte, error)
	Deserialize(buf []byte) error
	Size() int
}
