// Package lobby is the sub-server that serves room and roster listings
// and performs the encrypted-session handshake that arms the command
// cipher for a connection.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/drazisil/mcos-sub001/internal/codec"
	"github.com/drazisil/mcos-sub001/internal/crypt"
	"github.com/drazisil/mcos-sub001/internal/db"
	"github.com/drazisil/mcos-sub001/internal/msg"
	"github.com/drazisil/mcos-sub001/internal/nps"
	"github.com/drazisil/mcos-sub001/internal/registry"
)

// Client opcodes. The lobby speaks raw frames: two opcode bytes, body is
// the rest.
const (
	OpcodeHeartbeat           = 0x7B // acknowledged by side effect only
	OpcodeRequestMiniUserList = 0x229
	OpcodeSendMiniRiffList    = 0x30C
	OpcodeEncryptSessionKey   = 0x1101
)

// Server reply opcodes.
const (
	OpcodeAck          = 0x207
	OpcodeUserListOk   = 0x229
	OpcodeRiffListOk   = 0x30C
	OpcodeLobbyRefused = 0x602
)

// Room is one static lobby room advertised in the riff list.
type Room struct {
	Riff       string
	CommID     uint16
	Population uint16
}

// DefaultRooms is the room set the legacy shard always advertised.
var DefaultRooms = []Room{
	{Riff: "MC141", CommID: 141},
	{Riff: "MC142", CommID: 142},
	{Riff: "MC143", CommID: 143},
}

// Handler processes lobby packets.
type Handler struct {
	profiles db.ProfileRepository
	state    *registry.State
	ciphers  *crypt.Manager
	rooms    []Room
}

// NewHandler creates the lobby packet handler.
func NewHandler(profiles db.ProfileRepository, state *registry.State, ciphers *crypt.Manager, rooms []Room) *Handler {
	if rooms == nil {
		rooms = DefaultRooms
	}
	return &Handler{profiles: profiles, state: state, ciphers: ciphers, rooms: rooms}
}

// Table builds the lobby opcode table.
func (h *Handler) Table() (*nps.Table, error) {
	return nps.NewTable([]nps.Entry{
		{Opcode: OpcodeHeartbeat, Name: "Heartbeat", Fn: h.handleHeartbeat},
		{Opcode: OpcodeEncryptSessionKey, Name: "EncryptSessionKey", Fn: h.handleEncryptSessionKey},
		{Opcode: OpcodeRequestMiniUserList, Name: "RequestMiniUserList", Fn: h.handleRequestMiniUserList},
		{Opcode: OpcodeSendMiniRiffList, Name: "SendMiniRiffList", Fn: h.handleSendMiniRiffList},
	})
}

// handleHeartbeat processes the tracking ping (0x7B). Silence is the
// documented outcome: the dispatcher already refreshed the connection's
// last-message timestamp.
func (h *Handler) handleHeartbeat(_ context.Context, _ *registry.Connection, _ *nps.Request) ([]msg.Message, error) {
	return nil, nil
}

// handleEncryptSessionKey processes the cipher handshake (0x1101).
// Body: the session key wire record issued at login. The key is resolved
// by its hex rendering; a key replaced by a newer login no longer
// resolves and the handshake is refused.
func (h *Handler) handleEncryptSessionKey(_ context.Context, conn *registry.Connection, req *nps.Request) ([]msg.Message, error) {
	key, err := msg.ParseNPSSessionKey(req.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing session key record: %w", err)
	}

	entry, err := h.state.Sessions.FetchByKeyHex(key.Hex())
	if err != nil {
		var nf *registry.NotFoundError
		if errors.As(err, &nf) {
			slog.Warn("handshake with unknown session key", "connection", conn.ID())
			return lobbyRefuse("session not recognized")
		}
		return nil, err
	}

	cs, err := h.ciphers.SelectOrCreate(conn.ID(), entry.Key.Key)
	if err != nil {
		return nil, fmt.Errorf("arming cipher session: %w", err)
	}
	conn.ArmCipher(cs)
	conn.SetCustomerID(entry.CustomerID)

	slog.Info("command cipher armed", "customer", entry.CustomerID, "connection", conn.ID())
	return []msg.Message{&msg.RawMessage{Opcode: OpcodeAck}}, nil
}

// handleRequestMiniUserList processes 0x229: the roster of the
// customer's personas in this lobby.
func (h *Handler) handleRequestMiniUserList(ctx context.Context, conn *registry.Connection, _ *nps.Request) ([]msg.Message, error) {
	customerID, _ := conn.Identity()
	if customerID == 0 {
		return lobbyRefuse("not authenticated")
	}

	profiles, err := h.profiles.GetProfilesForCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("loading roster for customer %d: %w", customerID, err)
	}

	list := msg.MiniUserList{Users: make([]msg.MiniUserInfo, 0, len(profiles))}
	for _, p := range profiles {
		list.Users = append(list.Users, msg.MiniUserInfo{UserID: p.ProfileID, UserName: p.ProfileName})
	}
	payload, err := list.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serializing mini user list: %w", err)
	}
	return []msg.Message{&msg.RawMessage{Opcode: OpcodeUserListOk, Payload: payload}}, nil
}

// handleSendMiniRiffList processes 0x30C: the static room listing.
func (h *Handler) handleSendMiniRiffList(_ context.Context, _ *registry.Connection, _ *nps.Request) ([]msg.Message, error) {
	list := msg.MiniRiffList{Riffs: make([]msg.MiniRiffInfo, 0, len(h.rooms))}
	for _, room := range h.rooms {
		list.Riffs = append(list.Riffs, msg.MiniRiffInfo{
			Riff:       room.Riff,
			CommID:     room.CommID,
			Population: room.Population,
		})
	}
	payload, err := list.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serializing mini riff list: %w", err)
	}
	return []msg.Message{&msg.RawMessage{Opcode: OpcodeRiffListOk, Payload: payload}}, nil
}

func lobbyRefuse(reason string) ([]msg.Message, error) {
	payload := codec.NewWriter(make([]byte, 2+len(reason)))
	if err := payload.WritePrefixedString(reason, true); err != nil {
		return nil, err
	}
	return []msg.Message{&msg.RawMessage{Opcode: OpcodeLobbyRefused, Payload: payload.Bytes()}}, nil
}
