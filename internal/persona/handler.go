// Package persona is the sub-server that manages customer-owned game
// identities: listing, creation, validation, selection and deletion.
package persona

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/drazisil/mcos-sub001/internal/codec"
	"github.com/drazisil/mcos-sub001/internal/db"
	"github.com/drazisil/mcos-sub001/internal/model"
	"github.com/drazisil/mcos-sub001/internal/msg"
	"github.com/drazisil/mcos-sub001/internal/nps"
	"github.com/drazisil/mcos-sub001/internal/registry"
)

// Client opcodes.
const (
	OpcodeSelectGamePersona   = 0x503
	OpcodeCreatePersona       = 0x507
	OpcodeDeletePersona       = 0x50E
	OpcodeLogoutGameUser      = 0x50F
	OpcodeGetPersonaMaps      = 0x532
	OpcodeValidatePersonaName = 0x533
)

// Server reply opcodes.
const (
	OpcodeAck             = 0x207
	OpcodePersonaOk       = 0x601
	OpcodePersonaRefused  = 0x602
	OpcodePersonaMapReply = 0x607
)

// Handler processes persona packets.
type Handler struct {
	profiles db.ProfileRepository
	state    *registry.State
}

// NewHandler creates the persona packet handler.
func NewHandler(profiles db.ProfileRepository, state *registry.State) *Handler {
	return &Handler{profiles: profiles, state: state}
}

// Table builds the persona opcode table.
func (h *Handler) Table() (*nps.Table, error) {
	return nps.NewTable([]nps.Entry{
		{Opcode: OpcodeGetPersonaMaps, Name: "GetPersonaMaps", Fn: h.handleGetPersonaMaps},
		{Opcode: OpcodeSelectGamePersona, Name: "SelectGamePersona", Fn: h.handleSelectGamePersona},
		{Opcode: OpcodeValidatePersonaName, Name: "ValidatePersonaName", Fn: h.handleValidatePersonaName},
		{Opcode: OpcodeCreatePersona, Name: "CreatePersona", Fn: h.handleCreatePersona},
		{Opcode: OpcodeDeletePersona, Name: "DeletePersona", Fn: h.handleDeletePersona},
		{Opcode: OpcodeLogoutGameUser, Name: "LogoutGameUser", Fn: h.handleLogoutGameUser},
	})
}

// handleGetPersonaMaps processes NPS_GET_PERSONA_MAPS (0x532).
// Body: [customerId:uint32]. Zero owned personas is a valid outcome and
// produces an empty list, not an error.
func (h *Handler) handleGetPersonaMaps(ctx context.Context, conn *registry.Connection, req *nps.Request) ([]msg.Message, error) {
	r := codec.NewReader(req.Body)
	customerID, err := r.ReadUint32BE()
	if err != nil {
		return nil, fmt.Errorf("reading customer id: %w", err)
	}

	profiles, err := h.profiles.GetProfilesForCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("loading profiles for customer %d: %w", customerID, err)
	}

	list := msg.ProfileList{Profiles: make([]msg.ProfileInfo, 0, len(profiles))}
	for _, p := range profiles {
		list.Profiles = append(list.Profiles, profileInfo(p))
	}

	payload, err := list.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serializing profile list: %w", err)
	}

	slog.Debug("persona maps served", "customer", customerID, "count", len(profiles), "connection", conn.ID())
	return []msg.Message{msg.NewNPSMessage(OpcodePersonaMapReply, payload)}, nil
}

// handleSelectGamePersona processes NPS_SELECT_GAME_PERSONA (0x503).
// Body: [personaId:uint32].
func (h *Handler) handleSelectGamePersona(ctx context.Context, conn *registry.Connection, req *nps.Request) ([]msg.Message, error) {
	r := codec.NewReader(req.Body)
	personaID, err := r.ReadUint32BE()
	if err != nil {
		return nil, fmt.Errorf("reading persona id: %w", err)
	}

	p, err := h.profiles.GetProfile(ctx, personaID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nack("no such persona")
		}
		return nil, fmt.Errorf("loading persona %d: %w", personaID, err)
	}

	customerID, _ := conn.Identity()
	if customerID != 0 && customerID != p.CustomerID {
		slog.Warn("persona select across customers",
			"connection", conn.ID(), "customer", customerID, "owner", p.CustomerID)
		return nack("persona not owned")
	}

	conn.SetPersonaID(p.ProfileID)
	slog.Info("persona selected", "persona", p.ProfileID, "customer", p.CustomerID, "connection", conn.ID())

	payload := codec.NewWriter(make([]byte, 4))
	if err := payload.WriteUint32BE(p.ProfileID); err != nil {
		return nil, err
	}
	return []msg.Message{msg.NewNPSMessage(OpcodeAck, payload.Bytes())}, nil
}

// handleValidatePersonaName processes NPS_VALIDATE_PERSONA_NAME (0x533).
// Body: [name string]. A taken name gets the documented duplicate-name
// negative acknowledgement, not a socket error.
func (h *Handler) handleValidatePersonaName(ctx context.Context, _ *registry.Connection, req *nps.Request) ([]msg.Message, error) {
	r := codec.NewReader(req.Body)
	name, err := r.ReadPrefixedString(true)
	if err != nil {
		return nil, fmt.Errorf("reading persona name: %w", err)
	}
	if name == "" {
		return nack("empty persona name")
	}

	inUse, err := h.profiles.ProfileNameInUse(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking persona name %q: %w", name, err)
	}
	if inUse {
		return nack("persona name in use")
	}
	return []msg.Message{msg.NewNPSMessage(OpcodePersonaOk, nil)}, nil
}

// handleCreatePersona processes NPS_NEW_GAME_ACCOUNT (0x507).
// Body: [customerId:uint32][name string].
func (h *Handler) handleCreatePersona(ctx context.Context, conn *registry.Connection, req *nps.Request) ([]msg.Message, error) {
	r := codec.NewReader(req.Body)
	customerID, err := r.ReadUint32BE()
	if err != nil {
		return nil, fmt.Errorf("reading customer id: %w", err)
	}
	name, err := r.ReadPrefixedString(true)
	if err != nil {
		return nil, fmt.Errorf("reading persona name: %w", err)
	}

	inUse, err := h.profiles.ProfileNameInUse(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking persona name %q: %w", name, err)
	}
	if inUse {
		return nack("persona name in use")
	}

	p := &model.Profile{
		CustomerID:   customerID,
		ProfileName:  name,
		ProfileLevel: 0,
	}
	if err := h.profiles.CreateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("creating persona %q: %w", name, err)
	}

	slog.Info("persona created", "persona", p.ProfileID, "customer", customerID, "connection", conn.ID())

	payload := codec.NewWriter(make([]byte, 4))
	if err := payload.WriteUint32BE(p.ProfileID); err != nil {
		return nil, err
	}
	return []msg.Message{msg.NewNPSMessage(OpcodePersonaOk, payload.Bytes())}, nil
}

// handleDeletePersona processes NPS_DELETE_GAME_PERSONA (0x50E).
// Body: [personaId:uint32].
func (h *Handler) handleDeletePersona(ctx context.Context, conn *registry.Connection, req *nps.Request) ([]msg.Message, error) {
	r := codec.NewReader(req.Body)
	personaID, err := r.ReadUint32BE()
	if err != nil {
		return nil, fmt.Errorf("reading persona id: %w", err)
	}

	if err := h.profiles.DeleteProfile(ctx, personaID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nack("no such persona")
		}
		return nil, fmt.Errorf("deleting persona %d: %w", personaID, err)
	}

	slog.Info("persona deleted", "persona", personaID, "connection", conn.ID())
	return []msg.Message{msg.NewNPSMessage(OpcodePersonaOk, nil)}, nil
}

// handleLogoutGameUser processes NPS_LOGOUT_GAME_USER (0x50F). The
// session is dropped and the connection marked SOFT_KILL: the server
// closes it once the acknowledgement has flushed.
func (h *Handler) handleLogoutGameUser(_ context.Context, conn *registry.Connection, _ *nps.Request) ([]msg.Message, error) {
	h.state.Sessions.RemoveByConnectionID(conn.ID())
	conn.SetStatus(registry.StatusSoftKill)
	customerID, _ := conn.Identity()
	slog.Info("game user logout", "customer", customerID, "connection", conn.ID())
	return []msg.Message{msg.NewNPSMessage(OpcodeAck, nil)}, nil
}

func nack(reason string) ([]msg.Message, error) {
	payload := codec.NewWriter(make([]byte, 2+len(reason)))
	if err := payload.WritePrefixedString(reason, true); err != nil {
		return nil, err
	}
	return []msg.Message{msg.NewNPSMessage(OpcodePersonaRefused, payload.Bytes())}, nil
}

func profileInfo(p *model.Profile) msg.ProfileInfo {
	return msg.ProfileInfo{
		CustomerID:   p.CustomerID,
		ProfileID:    p.ProfileID,
		ProfileName:  p.ProfileName,
		ShardID:      p.ShardID,
		ProfileLevel: p.ProfileLevel,
		GameBlob:     p.GameBlob,
		PersonalBlob: p.PersonalBlob,
		PictureBlob:  p.PictureBlob,
	}
}
