package nps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drazisil/mcos-sub001/internal/codec"
	"github.com/drazisil/mcos-sub001/internal/crypt"
	"github.com/drazisil/mcos-sub001/internal/msg"
	"github.com/drazisil/mcos-sub001/internal/registry"
)

func newTestDispatcher(t *testing.T, variant codec.Variant, entries []Entry) (*Dispatcher, *registry.State, *crypt.Manager) {
	t.Helper()
	table, err := NewTable(entries)
	require.NoError(t, err)
	state := registry.NewState()
	ciphers := crypt.NewManager()
	return NewDispatcher(variant, table, state, ciphers), state, ciphers
}

func registerConn(state *registry.State, id string) *registry.Connection {
	conn := registry.NewConnection(id, "127.0.0.1:9999", 7003)
	state.Connections.Register(conn)
	return conn
}

func npsFrame(opcode uint32, body []byte) []byte {
	m := msg.NewNPSMessage(opcode, body)
	raw, err := m.Serialize()
	if err != nil {
		panic(err)
	}
	return raw
}

func TestNewTable_DuplicateOpcodeFails(t *testing.T) {
	noop := func(context.Context, *registry.Connection, *Request) ([]msg.Message, error) {
		return nil, nil
	}
	_, err := NewTable([]Entry{
		{Opcode: 0x501, Name: "UserLogin", Fn: noop},
		{Opcode: 0x501, Name: "Impostor", Fn: noop},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate opcode")
}

func TestNewTable_NilHandlerFails(t *testing.T) {
	_, err := NewTable([]Entry{{Opcode: 0x501, Name: "UserLogin"}})
	require.Error(t, err)
}

func TestDispatch_RawHeartbeatIsSilent(t *testing.T) {
	var seen uint32
	d, state, _ := newTestDispatcher(t, codec.VariantRaw, []Entry{
		{Opcode: 123, Name: "Heartbeat", Fn: func(_ context.Context, _ *registry.Connection, req *Request) ([]msg.Message, error) {
			seen = req.Opcode
			return nil, nil
		}},
	})
	registerConn(state, "conn-hb")

	out, err := d.Dispatch(context.Background(), "conn-hb", []byte{0x7B, 0x00})
	require.NoError(t, err)
	assert.Empty(t, out, "heartbeat produces zero outbound messages")
	assert.Equal(t, uint32(123), seen)
}

func TestDispatch_UnknownOpcode(t *testing.T) {
	d, state, _ := newTestDispatcher(t, codec.VariantNPS, nil)
	registerConn(state, "conn-1")

	_, err := d.Dispatch(context.Background(), "conn-1", npsFrame(0xBEEF, nil))
	var unsupported *UnsupportedOpcodeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, uint32(0xBEEF), unsupported.Opcode)
}

func TestDispatch_UnknownConnection(t *testing.T) {
	noop := func(context.Context, *registry.Connection, *Request) ([]msg.Message, error) {
		return nil, nil
	}
	d, _, _ := newTestDispatcher(t, codec.VariantNPS, []Entry{{Opcode: 0x501, Name: "UserLogin", Fn: noop}})

	_, err := d.Dispatch(context.Background(), "ghost", npsFrame(0x501, nil))
	var nf *registry.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestDispatch_HandlerErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	d, state, _ := newTestDispatcher(t, codec.VariantNPS, []Entry{
		{Opcode: 0x519, Name: "GetUserInfo", Fn: func(context.Context, *registry.Connection, *Request) ([]msg.Message, error) {
			return nil, boom
		}},
	})
	registerConn(state, "conn-2")

	_, err := d.Dispatch(context.Background(), "conn-2", npsFrame(0x519, nil))
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "conn-2", de.ConnectionID)
	assert.Equal(t, uint32(0x519), de.Opcode)
	assert.ErrorIs(t, err, boom)
}

func TestDispatch_HandlerPanicBecomesError(t *testing.T) {
	d, state, _ := newTestDispatcher(t, codec.VariantNPS, []Entry{
		{Opcode: 0x777, Name: "Panicky", Fn: func(context.Context, *registry.Connection, *Request) ([]msg.Message, error) {
			panic("unexpected body shape")
		}},
	})
	registerConn(state, "conn-3")

	_, err := d.Dispatch(context.Background(), "conn-3", npsFrame(0x777, nil))
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Error(), "handler panic")
}

func TestDispatch_GameVersionCoercion(t *testing.T) {
	var gotVersion uint16
	d, state, _ := newTestDispatcher(t, codec.VariantGame, []Entry{
		{Opcode: 438, Name: "ClientConnect", Fn: func(_ context.Context, _ *registry.Connection, req *Request) ([]msg.Message, error) {
			gotVersion = req.Version
			return nil, nil
		}},
	})
	registerConn(state, "conn-4")

	// Version tag zeroed by the client: must still hit the 438 entry.
	zeroed := &msg.GameMessage{MsgNo: 438, Version: 0, Payload: []byte{0x01}}
	raw, err := zeroed.Serialize()
	require.NoError(t, err)
	_, err = d.Dispatch(context.Background(), "conn-4", raw)
	require.NoError(t, err)
	assert.Equal(t, msg.VersionCompat, gotVersion)
}

func TestDispatch_EncryptedOpcodeWithoutSession(t *testing.T) {
	noop := func(context.Context, *registry.Connection, *Request) ([]msg.Message, error) {
		return nil, nil
	}
	d, state, _ := newTestDispatcher(t, codec.VariantNPS, []Entry{
		{Opcode: 0x109, Name: "SetOptions", Encrypted: true, Fn: noop},
	})
	registerConn(state, "conn-5")

	_, err := d.Dispatch(context.Background(), "conn-5", npsFrame(0x109, []byte{0xAA}))
	var ee *crypt.EncryptionError
	require.ErrorAs(t, err, &ee)
}

func TestDispatch_EncryptedBodyIsDeciphered(t *testing.T) {
	var gotBody []byte
	d, state, ciphers := newTestDispatcher(t, codec.VariantNPS, []Entry{
		{Opcode: 0x109, Name: "SetOptions", Encrypted: true, Fn: func(_ context.Context, _ *registry.Connection, req *Request) ([]msg.Message, error) {
			gotBody = append([]byte(nil), req.Body...)
			return nil, nil
		}},
	})
	registerConn(state, "conn-6")

	keyMaterial := []byte("0123456789abcdef")
	_, err := ciphers.SelectOrCreate("conn-6", keyMaterial)
	require.NoError(t, err)

	// The client side enciphers with an identically keyed session.
	clientSide, err := crypt.NewCipherSession(keyMaterial)
	require.NoError(t, err)
	plaintext := []byte("option words")
	body := append([]byte(nil), plaintext...)
	clientSide.Encrypt(body)

	_, err = d.Dispatch(context.Background(), "conn-6", npsFrame(0x109, body))
	require.NoError(t, err)
	assert.Equal(t, plaintext, gotBody)
}
