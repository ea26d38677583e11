// Package mcots is the transaction sub-server: it speaks the
// little-endian game-message framing and mutates persona-owned game
// state (options, physical state, vehicles and parts).
package mcots

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/drazisil/mcos-sub001/internal/crypt"
	"github.com/drazisil/mcos-sub001/internal/db"
	"github.com/drazisil/mcos-sub001/internal/msg"
	"github.com/drazisil/mcos-sub001/internal/nps"
	"github.com/drazisil/mcos-sub001/internal/registry"
)

// Client message numbers. The version tag of inbound frames is
// normalized by the dispatcher before these are matched.
const (
	MsgLogout               = 106
	MsgSetOptions           = 109
	MsgStockCarInfo         = 141
	MsgPurchaseStockCar     = 142
	MsgGetOwnedParts        = 174
	MsgGetOwnedVehicles     = 172
	MsgUpdatePlayerPhysical = 266
	MsgGetLobbies           = 324
	MsgClientConnect        = 438
	MsgTracking             = 440
)

// MsgReplyOk is the generic success reply number.
const MsgReplyOk = 101

// Handler processes transaction packets.
type Handler struct {
	vehicles db.VehicleRepository
	state    *registry.State
	ciphers  *crypt.Manager
}

// NewHandler creates the transaction packet handler.
func NewHandler(vehicles db.VehicleRepository, state *registry.State, ciphers *crypt.Manager) *Handler {
	return &Handler{vehicles: vehicles, state: state, ciphers: ciphers}
}

// Table builds the transaction opcode table. Everything after the
// connect handshake rides the command cipher.
func (h *Handler) Table() (*nps.Table, error) {
	return nps.NewTable([]nps.Entry{
		{Opcode: MsgClientConnect, Name: "ClientConnect", Fn: h.handleClientConnect},
		{Opcode: MsgTracking, Name: "Tracking", Encrypted: true, Fn: h.handleTracking},
		{Opcode: MsgLogout, Name: "Logout", Encrypted: true, Fn: h.handleLogout},
		{Opcode: MsgSetOptions, Name: "SetOptions", Encrypted: true, Fn: h.handleSetOptions},
		{Opcode: MsgUpdatePlayerPhysical, Name: "UpdatePlayerPhysical", Encrypted: true, Fn: h.handleUpdatePlayerPhysical},
		{Opcode: MsgGetLobbies, Name: "GetLobbies", Encrypted: true, Fn: h.handleGetLobbies},
		{Opcode: MsgGetOwnedVehicles, Name: "GetOwnedVehicles", Encrypted: true, Fn: h.handleGetOwnedVehicles},
		{Opcode: MsgGetOwnedParts, Name: "GetOwnedParts", Encrypted: true, Fn: h.handleGetOwnedParts},
		{Opcode: MsgPurchaseStockCar, Name: "PurchaseStockCar", Encrypted: true, Fn: h.handlePurchaseStockCar},
		{Opcode: MsgStockCarInfo, Name: "StockCarInfo", Encrypted: true, Fn: h.handleStockCarInfo},
	})
}

// reply wraps payload into a game-message frame, running the outbound
// keystream over it when the connection is enciphered. Exactly one
// encrypt per outbound frame.
func (h *Handler) reply(conn *registry.Connection, msgNo uint16, payload []byte) []msg.Message {
	if cs := conn.Cipher(); cs != nil && conn.UseEncryption() {
		cs.Encrypt(payload)
	}
	return []msg.Message{msg.NewGameMessage(msgNo, payload)}
}

// ack answers req with the generic success envelope.
func (h *Handler) ack(conn *registry.Connection, reqNo uint16, result uint32) ([]msg.Message, error) {
	gr := msg.GenericReply{MsgNo: MsgReplyOk, MsgReply: reqNo}
	binary.LittleEndian.PutUint32(gr.Result[:], result)
	payload, err := gr.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serializing generic reply: %w", err)
	}
	return h.reply(conn, MsgReplyOk, payload), nil
}

// handleClientConnect processes MC_CLIENT_CONNECT (438), the only
// plaintext message. Body (little-endian):
// [customerId:uint32][personaId:uint32][personaName string].
// Binds the session identity to the connection and arms the command
// cipher from the key issued at login.
func (h *Handler) handleClientConnect(_ context.Context, conn *registry.Connection, req *nps.Request) ([]msg.Message, error) {
	var cc ClientConnect
	if err := cc.Deserialize(req.Body); err != nil {
		return nil, fmt.Errorf("parsing client connect: %w", err)
	}

	key, err := h.state.Sessions.FetchSessionKeyByCustomerID(cc.CustomerID)
	if err != nil {
		// No login, no transactions. The handler owns this decision and
		// answers over the protocol rather than killing the socket.
		var nf *registry.NotFoundError
		if errors.As(err, &nf) {
			slog.Warn("client connect without session", "customer", cc.CustomerID, "connection", conn.ID())
			return h.ack(conn, MsgClientConnect, 0)
		}
		return nil, err
	}

	cs, err := h.ciphers.SelectOrCreate(conn.ID(), key.Key)
	if err != nil {
		return nil, fmt.Errorf("arming command cipher: %w", err)
	}
	conn.ArmCipher(cs)
	conn.SetCustomerID(cc.CustomerID)
	conn.SetPersonaID(cc.PersonaID)

	slog.Info("transaction client connected",
		"customer", cc.CustomerID, "persona", cc.PersonaID, "name", cc.PersonaName, "connection", conn.ID())

	// Connect ack goes out before the cipher is considered armed for
	// this frame exchange, so it is deliberately not enciphered.
	gr := msg.GenericReply{MsgNo: MsgReplyOk, MsgReply: MsgClientConnect}
	binary.LittleEndian.PutUint32(gr.Result[:], 1)
	payload, err := gr.Serialize()
	if err != nil {
		return nil, err
	}
	return []msg.Message{msg.NewGameMessage(MsgReplyOk, payload)}, nil
}

// handleTracking processes MC_TRACKING_MSG (440). The documented
// outcome is silence.
func (h *Handler) handleTracking(_ context.Context, conn *registry.Connection, _ *nps.Request) ([]msg.Message, error) {
	customerID, _ := conn.Identity()
	slog.Debug("tracking ping", "customer", customerID, "connection", conn.ID())
	return nil, nil
}

// handleLogout processes MC_LOGOUT (106). Drops the session and marks
// the connection SOFT_KILL so it closes after the ack flushes.
func (h *Handler) handleLogout(_ context.Context, conn *registry.Connection, _ *nps.Request) ([]msg.Message, error) {
	h.state.Sessions.RemoveByConnectionID(conn.ID())
	conn.SetStatus(registry.StatusSoftKill)
	return h.ack(conn, MsgLogout, 1)
}

// handleSetOptions processes MC_SET_OPTIONS (109). The option words are
// opaque to the server; the request is acknowledged by envelope.
func (h *Handler) handleSetOptions(_ context.Context, conn *registry.Connection, req *nps.Request) ([]msg.Message, error) {
	var gr msg.GenericRequest
	if err := gr.Deserialize(req.Body); err != nil {
		return nil, fmt.Errorf("parsing set options: %w", err)
	}
	return h.ack(conn, MsgSetOptions, 1)
}

// handleUpdatePlayerPhysical processes MC_UPDATE_PLAYER_PHYSICAL (266).
func (h *Handler) handleUpdatePlayerPhysical(_ context.Context, conn *registry.Connection, req *nps.Request) ([]msg.Message, error) {
	var gr msg.GenericRequest
	if err := gr.Deserialize(req.Body); err != nil {
		return nil, fmt.Errorf("parsing player physical: %w", err)
	}
	_, personaID := conn.Identity()
	if personaID == 0 {
		return h.ack(conn, MsgUpdatePlayerPhysical, 0)
	}
	return h.ack(conn, MsgUpdatePlayerPhysical, 1)
}
