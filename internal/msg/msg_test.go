package msg

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drazisil/mcos-sub001/internal/codec"
)

func TestGameMessage_RoundTrip(t *testing.T) {
	src := NewGameMessage(438, []byte{0x01, 0x02, 0x03})
	raw, err := src.Serialize()
	require.NoError(t, err)
	require.Len(t, raw, src.Size())

	var got GameMessage
	require.NoError(t, got.Deserialize(raw))
	assert.Equal(t, uint16(438), got.MsgNo)
	assert.Equal(t, VersionCompat, got.Version)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, got.Payload)
}

func TestFromGameMessage_CoercesOnlyZeroVersion(t *testing.T) {
	zero := &GameMessage{MsgNo: 109, Version: 0, Payload: []byte{0xAA}}
	out := FromGameMessage(VersionCompat, zero)
	assert.Equal(t, VersionCompat, out.Version)
	assert.Equal(t, uint16(109), out.MsgNo)
	// Body preserved byte for byte.
	assert.True(t, bytes.Equal(zero.Payload, out.Payload))

	// A genuine mismatch passes through so it can surface downstream.
	other := &GameMessage{MsgNo: 109, Version: 99}
	assert.Equal(t, uint16(99), FromGameMessage(VersionCompat, other).Version)

	// Already-compat stays untouched.
	compat := &GameMessage{MsgNo: 109, Version: VersionCompat}
	assert.Equal(t, VersionCompat, FromGameMessage(VersionCompat, compat).Version)
}

func TestNPSMessage_RoundTrip(t *testing.T) {
	src := NewNPSMessage(0x601, []byte{0xDE, 0xAD})
	raw, err := src.Serialize()
	require.NoError(t, err)

	var got NPSMessage
	require.NoError(t, got.Deserialize(raw))
	assert.Equal(t, uint32(0x601), got.Opcode)
	assert.Equal(t, []byte{0xDE, 0xAD}, got.Payload)
}

func TestLegacyMessage_RoundTrip(t *testing.T) {
	src := NewLegacyMessage(0x501, []byte{0x10, 0x20, 0x30, 0x40})
	raw, err := src.Serialize()
	require.NoError(t, err)
	require.Len(t, raw, src.Size())
	// Declared length covers header and payload, little-endian.
	assert.Equal(t, byte(0x08), raw[0])
	assert.Equal(t, byte(0x00), raw[1])

	var got LegacyMessage
	require.NoError(t, got.Deserialize(raw))
	assert.Equal(t, uint16(0x501), got.Opcode)
	assert.Equal(t, []byte{0x10, 0x20, 0x30, 0x40}, got.Payload)
}

func TestLegacyMessage_Truncated(t *testing.T) {
	src := NewLegacyMessage(0x501, []byte{0x10, 0x20, 0x30, 0x40})
	raw, err := src.Serialize()
	require.NoError(t, err)

	var fe *codec.FrameError
	// Below header size.
	var got LegacyMessage
	require.True(t, errors.As(got.Deserialize(raw[:3]), &fe))
	// Header intact but body cut short of the declared length.
	require.True(t, errors.As(got.Deserialize(raw[:6]), &fe))
	assert.Empty(t, got.Payload)
}

func TestRawMessage_RoundTrip(t *testing.T) {
	src := RawMessage{Opcode: 0x207, Payload: []byte{0xCA, 0xFE}}
	raw, err := src.Serialize()
	require.NoError(t, err)
	require.Len(t, raw, src.Size())

	var got RawMessage
	require.NoError(t, got.Deserialize(raw))
	assert.Equal(t, uint16(0x207), got.Opcode)
	assert.Equal(t, []byte{0xCA, 0xFE}, got.Payload)

	// A single opcode byte is not a frame.
	var fe *codec.FrameError
	require.True(t, errors.As(got.Deserialize(raw[:1]), &fe))
}

func TestSessionKey_WireForm(t *testing.T) {
	sk := SessionKey{Key: []byte{0x11, 0x22, 0x33}, Timestamp: 0x5F000000}
	raw, err := sk.Serialize()
	require.NoError(t, err)
	require.Len(t, raw, sk.Size())

	parsed, err := ParseNPSSessionKey(raw)
	require.NoError(t, err)
	assert.Equal(t, sk.Key, parsed.Key)
	assert.Equal(t, sk.Timestamp, parsed.Timestamp)
	assert.Equal(t, "112233", parsed.Hex())
}

func TestSessionKey_TruncatedRecord(t *testing.T) {
	// Key length says 8 but only 2 key bytes follow.
	_, err := ParseNPSSessionKey([]byte{0x00, 0x08, 0x01, 0x02})
	require.Error(t, err)
}

func TestGenericReply_RoundTrip(t *testing.T) {
	src := GenericReply{MsgNo: 101, MsgReply: 438}
	src.Result[0] = 1
	raw, err := src.Serialize()
	require.NoError(t, err)
	require.Len(t, raw, src.Size())

	var got GenericReply
	require.NoError(t, got.Deserialize(raw))
	assert.Equal(t, src, got)
}

func TestProfileList_RoundTrip(t *testing.T) {
	list := ProfileList{Profiles: []ProfileInfo{
		{CustomerID: 5551212, ProfileID: 1000, ProfileName: "Dr Brown", ShardID: 44, ProfileLevel: 1},
		{CustomerID: 5551212, ProfileID: 1001, ProfileName: "Biff", ShardID: 44},
	}}
	raw, err := list.Serialize()
	require.NoError(t, err)

	var got ProfileList
	require.NoError(t, got.Deserialize(raw))
	require.Len(t, got.Profiles, 2)
	assert.Equal(t, "Dr Brown", got.Profiles[0].ProfileName)
	assert.Equal(t, uint32(1001), got.Profiles[1].ProfileID)
}

func TestProfileList_AbsurdCountRefused(t *testing.T) {
	// Count of 0xFFFFFFFF with no records behind it.
	var got ProfileList
	err := got.Deserialize([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	require.Error(t, err)
	assert.Empty(t, got.Profiles)
}

func TestMiniRiffList_RoundTrip(t *testing.T) {
	list := MiniRiffList{Riffs: []MiniRiffInfo{
		{Riff: "MC141", CommID: 141, Population: 3},
		{Riff: "MC142", CommID: 142},
	}}
	raw, err := list.Serialize()
	require.NoError(t, err)

	var got MiniRiffList
	require.NoError(t, got.Deserialize(raw))
	require.Len(t, got.Riffs, 2)
	assert.Equal(t, "MC141", got.Riffs[0].Riff)
	assert.Equal(t, uint16(3), got.Riffs[0].Population)
}

func TestOwnedVehiclesList_Serialize(t *testing.T) {
	list := OwnedVehiclesList{Vehicles: []OwnedVehicleInfo{
		{VehicleID: 5000, BrandedPartID: 101},
	}}
	raw, err := list.Serialize()
	require.NoError(t, err)
	// count + one 8-byte record, little-endian
	require.Len(t, raw, 12)
	assert.Equal(t, byte(0x01), raw[0])
	assert.Equal(t, byte(0x88), raw[4]) // 5000 = 0x1388
	assert.Equal(t, byte(0x13), raw[5])
}
