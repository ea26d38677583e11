package nps

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drazisil/mcos-sub001/internal/codec"
	"github.com/drazisil/mcos-sub001/internal/crypt"
	"github.com/drazisil/mcos-sub001/internal/msg"
	"github.com/drazisil/mcos-sub001/internal/registry"
)

// startServer runs a Server on an ephemeral port and returns its
// address. Shutdown happens through test cleanup.
func startServer(t *testing.T, table *Table, opts ...ServerOption) string {
	t.Helper()
	state := registry.NewState()
	ciphers := crypt.NewManager()
	srv := NewServer("test", "127.0.0.1", 0, NewDispatcher(codec.VariantNPS, table, state, ciphers), state, ciphers, opts...)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})
	return ln.Addr().String()
}

func readNPSReply(t *testing.T, conn net.Conn) *msg.NPSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, codec.MaxFrameSize)
	frame, err := codec.ReadFrame(conn, codec.VariantNPS, buf)
	require.NoError(t, err)
	var reply msg.NPSMessage
	require.NoError(t, reply.Deserialize(frame))
	return &reply
}

func TestServer_RequestReplyRoundTrip(t *testing.T) {
	table := MustTable([]Entry{
		{Opcode: 0x101, Name: "Echo", Fn: func(_ context.Context, _ *registry.Connection, req *Request) ([]msg.Message, error) {
			return []msg.Message{msg.NewNPSMessage(0x201, req.Body)}, nil
		}},
	})
	addr := startServer(t, table)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	out, err := msg.NewNPSMessage(0x101, []byte("ping")).Serialize()
	require.NoError(t, err)
	_, err = conn.Write(out)
	require.NoError(t, err)

	reply := readNPSReply(t, conn)
	assert.Equal(t, uint32(0x201), reply.Opcode)
	assert.Equal(t, []byte("ping"), reply.Payload)

	// The connection stays up for the next frame.
	_, err = conn.Write(out)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x201), readNPSReply(t, conn).Opcode)
}

func TestServer_MultipleRepliesCoalesced(t *testing.T) {
	table := MustTable([]Entry{
		{Opcode: 0x102, Name: "Fanout", Fn: func(_ context.Context, _ *registry.Connection, _ *Request) ([]msg.Message, error) {
			return []msg.Message{
				msg.NewNPSMessage(0x201, []byte("one")),
				msg.NewNPSMessage(0x202, []byte("two")),
			}, nil
		}},
	})
	addr := startServer(t, table)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	out, err := msg.NewNPSMessage(0x102, nil).Serialize()
	require.NoError(t, err)
	_, err = conn.Write(out)
	require.NoError(t, err)

	// Both frames arrive intact, in registration order.
	first := readNPSReply(t, conn)
	assert.Equal(t, uint32(0x201), first.Opcode)
	assert.Equal(t, []byte("one"), first.Payload)
	second := readNPSReply(t, conn)
	assert.Equal(t, uint32(0x202), second.Opcode)
	assert.Equal(t, []byte("two"), second.Payload)

	// The send buffer is pooled; a follow-up frame reuses it cleanly.
	_, err = conn.Write(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), readNPSReply(t, conn).Payload)
	assert.Equal(t, []byte("two"), readNPSReply(t, conn).Payload)
}

func TestServer_UnknownOpcodeSkipsFrame(t *testing.T) {
	table := MustTable([]Entry{
		{Opcode: 0x101, Name: "Echo", Fn: func(_ context.Context, _ *registry.Connection, req *Request) ([]msg.Message, error) {
			return []msg.Message{msg.NewNPSMessage(0x201, nil)}, nil
		}},
	})
	addr := startServer(t, table)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	// Default policy: the unknown frame is skipped, the connection lives.
	unknown, err := msg.NewNPSMessage(0xDEAD, nil).Serialize()
	require.NoError(t, err)
	_, err = conn.Write(unknown)
	require.NoError(t, err)

	known, err := msg.NewNPSMessage(0x101, nil).Serialize()
	require.NoError(t, err)
	_, err = conn.Write(known)
	require.NoError(t, err)

	assert.Equal(t, uint32(0x201), readNPSReply(t, conn).Opcode)
}

func TestServer_SoftKillClosesAfterReply(t *testing.T) {
	table := MustTable([]Entry{
		{Opcode: 0x50F, Name: "Logout", Fn: func(_ context.Context, conn *registry.Connection, _ *Request) ([]msg.Message, error) {
			conn.SetStatus(registry.StatusSoftKill)
			return []msg.Message{msg.NewNPSMessage(0x207, nil)}, nil
		}},
	})
	addr := startServer(t, table)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	out, err := msg.NewNPSMessage(0x50F, nil).Serialize()
	require.NoError(t, err)
	_, err = conn.Write(out)
	require.NoError(t, err)

	// The ack arrives, then the server closes its side.
	assert.Equal(t, uint32(0x207), readNPSReply(t, conn).Opcode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestServer_MalformedHeaderDropsConnection(t *testing.T) {
	table := MustTable([]Entry{
		{Opcode: 0x101, Name: "Echo", Fn: func(context.Context, *registry.Connection, *Request) ([]msg.Message, error) {
			return nil, nil
		}},
	})
	addr := startServer(t, table)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	// NPS sub-length below the opcode field size: unrecoverable on a
	// byte stream.
	_, err = conn.Write([]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x01, 0x01})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestBytePool_Reuse(t *testing.T) {
	p := NewBytePool(64)
	b := p.Get(16)
	require.Len(t, b, 16)
	for i := range b {
		b[i] = 0xFF
	}
	p.Put(b)

	// A pooled buffer comes back zeroed.
	b2 := p.Get(16)
	for i, v := range b2 {
		require.Zero(t, v, "byte %d not cleared", i)
	}

	// Requests beyond the pooled capacity still work.
	big := p.Get(128)
	assert.Len(t, big, 128)
}
