package mcots

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drazisil/mcos-sub001/internal/crypt"
	"github.com/drazisil/mcos-sub001/internal/db"
	"github.com/drazisil/mcos-sub001/internal/msg"
	"github.com/drazisil/mcos-sub001/internal/nps"
	"github.com/drazisil/mcos-sub001/internal/registry"
)

type mcotsEnv struct {
	handler *Handler
	store   *db.MemoryStore
	state   *registry.State
	ciphers *crypt.Manager
	conn    *registry.Connection
}

func newMcotsEnv(t *testing.T) *mcotsEnv {
	t.Helper()
	store := db.NewMemoryStore()
	state := registry.NewState()
	ciphers := crypt.NewManager()
	conn := registry.NewConnection("tx-conn", "127.0.0.1:4242", 43300)
	state.Connections.Register(conn)
	return &mcotsEnv{
		handler: NewHandler(store, state, ciphers),
		store:   store,
		state:   state,
		ciphers: ciphers,
		conn:    conn,
	}
}

func genericReply(t *testing.T, out []msg.Message) msg.GenericReply {
	t.Helper()
	require.Len(t, out, 1)
	gm, ok := out[0].(*msg.GameMessage)
	require.True(t, ok)
	var gr msg.GenericReply
	require.NoError(t, gr.Deserialize(gm.Payload))
	return gr
}

func resultOf(gr msg.GenericReply) uint32 {
	return binary.LittleEndian.Uint32(gr.Result[:])
}

func TestClientConnect_BindsIdentityAndArmsCipher(t *testing.T) {
	e := newMcotsEnv(t)
	e.state.Sessions.UpdateSessionKey(5551212,
		msg.SessionKey{Key: []byte("0123456789abcdef"), Timestamp: 1}, "ctx", "login-conn")

	body, err := (&ClientConnect{CustomerID: 5551212, PersonaID: 1000, PersonaName: "Doc"}).Serialize()
	require.NoError(t, err)

	out, err := e.handler.handleClientConnect(context.Background(), e.conn,
		&nps.Request{Opcode: MsgClientConnect, Body: body})
	require.NoError(t, err)

	gr := genericReply(t, out)
	assert.Equal(t, uint16(MsgReplyOk), gr.MsgNo)
	assert.Equal(t, uint16(MsgClientConnect), gr.MsgReply)
	assert.Equal(t, uint32(1), resultOf(gr))

	customerID, personaID := e.conn.Identity()
	assert.Equal(t, uint32(5551212), customerID)
	assert.Equal(t, uint32(1000), personaID)
	assert.True(t, e.conn.UseEncryption())

	_, err = e.ciphers.Get(e.conn.ID())
	require.NoError(t, err)
}

func TestClientConnect_WithoutSession(t *testing.T) {
	e := newMcotsEnv(t)
	body, err := (&ClientConnect{CustomerID: 42, PersonaID: 7, PersonaName: "Ghost"}).Serialize()
	require.NoError(t, err)

	out, err := e.handler.handleClientConnect(context.Background(), e.conn,
		&nps.Request{Opcode: MsgClientConnect, Body: body})
	require.NoError(t, err, "missing session is answered over the protocol")

	gr := genericReply(t, out)
	assert.Zero(t, resultOf(gr))
	assert.False(t, e.conn.UseEncryption())
}

func TestTracking_Silent(t *testing.T) {
	e := newMcotsEnv(t)
	out, err := e.handler.handleTracking(context.Background(), e.conn, &nps.Request{Opcode: MsgTracking})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLogout_SoftKillsAndDropsSession(t *testing.T) {
	e := newMcotsEnv(t)
	e.state.Sessions.UpdateSessionKey(5551212,
		msg.SessionKey{Key: []byte{1}}, "ctx", e.conn.ID())

	out, err := e.handler.handleLogout(context.Background(), e.conn, &nps.Request{Opcode: MsgLogout})
	require.NoError(t, err)
	gr := genericReply(t, out)
	assert.Equal(t, uint16(MsgLogout), gr.MsgReply)
	assert.Equal(t, registry.StatusSoftKill, e.conn.Status())
	assert.Zero(t, e.state.Sessions.Count())
}

func TestGetLobbies(t *testing.T) {
	e := newMcotsEnv(t)
	out, err := e.handler.handleGetLobbies(context.Background(), e.conn, &nps.Request{Opcode: MsgGetLobbies})
	require.NoError(t, err)

	gm := out[0].(*msg.GameMessage)
	require.Equal(t, uint16(MsgGetLobbies), gm.MsgNo)

	var list LobbyList
	require.NoError(t, list.Deserialize(gm.Payload))
	require.Len(t, list.Lobbies, len(DefaultLobbies))
	assert.Equal(t, "Gasoline Alley", list.Lobbies[0].Name)
}

func TestGetOwnedVehicles(t *testing.T) {
	e := newMcotsEnv(t)
	e.conn.SetPersonaID(1000)
	_, err := e.store.PurchaseStockCar(context.Background(), 1000, 101, 1)
	require.NoError(t, err)

	out, err := e.handler.handleGetOwnedVehicles(context.Background(), e.conn,
		&nps.Request{Opcode: MsgGetOwnedVehicles})
	require.NoError(t, err)

	gm := out[0].(*msg.GameMessage)
	var list msg.OwnedVehiclesList
	require.NoError(t, list.Deserialize(gm.Payload))
	require.Len(t, list.Vehicles, 1)
	assert.Equal(t, uint32(101), list.Vehicles[0].BrandedPartID)
}

func TestGetOwnedParts_ForeignVehicleRefused(t *testing.T) {
	e := newMcotsEnv(t)
	e.conn.SetPersonaID(1000)
	foreign, err := e.store.PurchaseStockCar(context.Background(), 2000, 102, 1)
	require.NoError(t, err)

	var req msg.GenericRequest
	req.MsgNo = MsgGetOwnedParts
	binary.LittleEndian.PutUint32(req.Data[:], foreign.VehicleID)
	body, err := req.Serialize()
	require.NoError(t, err)

	out, err := e.handler.handleGetOwnedParts(context.Background(), e.conn,
		&nps.Request{Opcode: MsgGetOwnedParts, Body: body})
	require.NoError(t, err)
	assert.Zero(t, resultOf(genericReply(t, out)))
}

func TestGetOwnedParts(t *testing.T) {
	e := newMcotsEnv(t)
	e.conn.SetPersonaID(1000)
	v, err := e.store.PurchaseStockCar(context.Background(), 1000, 101, 1)
	require.NoError(t, err)

	var req msg.GenericRequest
	req.MsgNo = MsgGetOwnedParts
	binary.LittleEndian.PutUint32(req.Data[:], v.VehicleID)
	body, err := req.Serialize()
	require.NoError(t, err)

	out, err := e.handler.handleGetOwnedParts(context.Background(), e.conn,
		&nps.Request{Opcode: MsgGetOwnedParts, Body: body})
	require.NoError(t, err)

	gm := out[0].(*msg.GameMessage)
	require.Equal(t, uint16(MsgGetOwnedParts), gm.MsgNo)
	// [vehicleId][count] lead the payload, little-endian.
	assert.Equal(t, v.VehicleID, binary.LittleEndian.Uint32(gm.Payload[0:4]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(gm.Payload[4:8]))
}

func TestPurchaseStockCar(t *testing.T) {
	e := newMcotsEnv(t)
	e.conn.SetPersonaID(1000)

	body, err := (&PurchaseStockCar{DealerID: 1, BrandedPartID: 103, SkinID: 5}).Serialize()
	require.NoError(t, err)

	out, err := e.handler.handlePurchaseStockCar(context.Background(), e.conn,
		&nps.Request{Opcode: MsgPurchaseStockCar, Body: body})
	require.NoError(t, err)

	gr := genericReply(t, out)
	vehicleID := resultOf(gr)
	require.NotZero(t, vehicleID)

	stored, err := e.store.GetVehicle(context.Background(), vehicleID)
	require.NoError(t, err)
	assert.Equal(t, uint32(103), stored.BrandedPartID)
	assert.Equal(t, uint32(5), stored.SkinID)
}

func TestPurchaseStockCar_NoPersonaBound(t *testing.T) {
	e := newMcotsEnv(t)
	body, err := (&PurchaseStockCar{BrandedPartID: 103}).Serialize()
	require.NoError(t, err)

	out, err := e.handler.handlePurchaseStockCar(context.Background(), e.conn,
		&nps.Request{Opcode: MsgPurchaseStockCar, Body: body})
	require.NoError(t, err)
	assert.Zero(t, resultOf(genericReply(t, out)))
}

func TestStockCarInfo(t *testing.T) {
	e := newMcotsEnv(t)

	var req msg.GenericRequest
	req.MsgNo = MsgStockCarInfo
	binary.LittleEndian.PutUint32(req.Data[:], 7) // dealer
	body, err := req.Serialize()
	require.NoError(t, err)

	out, err := e.handler.handleStockCarInfo(context.Background(), e.conn,
		&nps.Request{Opcode: MsgStockCarInfo, Body: body})
	require.NoError(t, err)

	gm := out[0].(*msg.GameMessage)
	require.Equal(t, uint16(MsgStockCarInfo), gm.MsgNo)
	assert.Equal(t, uint32(starterCash), binary.LittleEndian.Uint32(gm.Payload[0:4]))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(gm.Payload[4:8]))
	carCount := binary.LittleEndian.Uint16(gm.Payload[12:14])
	assert.Equal(t, uint16(len(defaultStockCars)), carCount)
}

func TestEncryptedReplyRoundTrip(t *testing.T) {
	e := newMcotsEnv(t)
	e.state.Sessions.UpdateSessionKey(5551212,
		msg.SessionKey{Key: []byte("0123456789abcdef")}, "ctx", "login-conn")

	body, err := (&ClientConnect{CustomerID: 5551212, PersonaID: 1000}).Serialize()
	require.NoError(t, err)
	_, err = e.handler.handleClientConnect(context.Background(), e.conn,
		&nps.Request{Opcode: MsgClientConnect, Body: body})
	require.NoError(t, err)

	// After connect the replies ride the outbound keystream. A client
	// keyed with the same material must recover the plaintext.
	clientSide, err := crypt.NewCipherSession([]byte("0123456789abcdef"))
	require.NoError(t, err)

	out, err := e.handler.handleGetLobbies(context.Background(), e.conn,
		&nps.Request{Opcode: MsgGetLobbies})
	require.NoError(t, err)

	gm := out[0].(*msg.GameMessage)
	clientSide.Decrypt(gm.Payload)
	var list LobbyList
	require.NoError(t, list.Deserialize(gm.Payload))
	assert.Len(t, list.Lobbies, len(DefaultLobbies))
}

func TestTable_AllOpcodesRegistered(t *testing.T) {
	e := newMcotsEnv(t)
	table, err := e.handler.Table()
	require.NoError(t, err)
	for _, opcode := range []uint32{
		MsgClientConnect, MsgTracking, MsgLogout, MsgSetOptions,
		MsgUpdatePlayerPhysical, MsgGetLobbies, MsgGetOwnedVehicles,
		MsgGetOwnedParts, MsgPurchaseStockCar, MsgStockCarInfo,
	} {
		_, ok := table.Lookup(opcode)
		assert.True(t, ok, "opcode %d missing", opcode)
	}
	assert.Equal(t, 10, table.Len())
}
