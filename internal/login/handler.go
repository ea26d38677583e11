// Package login is the sub-server that turns a patch-service ticket into
// an authenticated session: it unwraps the client's session key, indexes
// it in the session registry and answers with the customer identity.
package login

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/drazisil/mcos-sub001/internal/codec"
	"github.com/drazisil/mcos-sub001/internal/crypt"
	"github.com/drazisil/mcos-sub001/internal/db"
	"github.com/drazisil/mcos-sub001/internal/msg"
	"github.com/drazisil/mcos-sub001/internal/nps"
	"github.com/drazisil/mcos-sub001/internal/registry"
)

// Client opcodes.
const (
	OpcodeUserLogin   = 0x501
	OpcodeGetUserInfo = 0x519
)

// Server reply opcodes.
const (
	OpcodeUserValid    = 0x601
	OpcodeLoginRefused = 0x602
)

// Handler processes login packets. Один на сервер.
type Handler struct {
	sessions   db.SessionRepository
	state      *registry.State
	ciphers    *crypt.Manager
	privateKey *rsa.PrivateKey
	sessionTTL time.Duration
}

// NewHandler creates the login packet handler.
func NewHandler(sessions db.SessionRepository, state *registry.State, ciphers *crypt.Manager, privateKey *rsa.PrivateKey, sessionTTL time.Duration) *Handler {
	return &Handler{
		sessions:   sessions,
		state:      state,
		ciphers:    ciphers,
		privateKey: privateKey,
		sessionTTL: sessionTTL,
	}
}

// Table builds the login opcode table.
func (h *Handler) Table() (*nps.Table, error) {
	return nps.NewTable([]nps.Entry{
		{Opcode: OpcodeUserLogin, Name: "UserLogin", Fn: h.handleUserLogin},
		{Opcode: OpcodeGetUserInfo, Name: "GetUserInfo", Fn: h.handleGetUserInfo},
	})
}

// handleUserLogin processes NPS_USER_LOGIN (0x501).
//
// Body (big-endian): [contextId string][wrapped session key blob].
// The blob is the client's session key encrypted with the shard's RSA
// public key.
func (h *Handler) handleUserLogin(ctx context.Context, conn *registry.Connection, req *nps.Request) ([]msg.Message, error) {
	r := codec.NewReader(req.Body)
	contextID, err := r.ReadPrefixedString(true)
	if err != nil {
		return nil, fmt.Errorf("reading context id: %w", err)
	}
	wrapped, err := r.ReadPrefixedBytes(true)
	if err != nil {
		return nil, fmt.Errorf("reading wrapped session key: %w", err)
	}

	row, err := h.sessions.FindSessionByContext(ctx, contextID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			slog.Warn("login with unknown context", "context", contextID, "connection", conn.ID())
			return refuse("ticket not recognized")
		}
		return nil, fmt.Errorf("resolving context %q: %w", contextID, err)
	}

	keyMaterial, err := crypt.UnwrapSessionKey(h.privateKey, wrapped)
	if err != nil {
		slog.Warn("failed to unwrap session key", "connection", conn.ID(), "error", err)
		return refuse("session key rejected")
	}

	sessionKey := msg.SessionKey{
		Key:       keyMaterial,
		Timestamp: uint32(time.Now().Add(h.sessionTTL).Unix()),
	}

	// A fresh login replaces any prior key for the customer; the old
	// value stops resolving.
	h.state.Sessions.UpdateSessionKey(row.CustomerID, sessionKey, contextID, conn.ID())
	if _, err := h.ciphers.SelectOrCreate(conn.ID(), keyMaterial); err != nil {
		return nil, fmt.Errorf("arming cipher session: %w", err)
	}
	conn.SetCustomerID(row.CustomerID)

	if err := h.sessions.UpsertSession(ctx, contextID, row.CustomerID, 0); err != nil {
		slog.Error("failed to persist session", "context", contextID, "error", err)
	}

	slog.Info("login success", "customer", row.CustomerID, "connection", conn.ID())

	keyRecord, err := sessionKey.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serializing session key record: %w", err)
	}

	// Reply: [customerId][session key record][EA profile blob].
	// The profile blob content is opaque to the client at this stage.
	payload := codec.NewWriter(make([]byte, 4+len(keyRecord)+2))
	if err := payload.WriteUint32BE(row.CustomerID); err != nil {
		return nil, err
	}
	if err := payload.WriteBytes(keyRecord); err != nil {
		return nil, err
	}
	if err := payload.WritePrefixedBytes(nil, true); err != nil {
		return nil, err
	}

	return []msg.Message{msg.NewNPSMessage(OpcodeUserValid, payload.Bytes())}, nil
}

// handleGetUserInfo processes NPS_GET_USER_INFO (0x519): resolves the
// session bound to this connection and echoes the customer identity.
func (h *Handler) handleGetUserInfo(_ context.Context, conn *registry.Connection, _ *nps.Request) ([]msg.Message, error) {
	key, err := h.state.Sessions.FetchSessionKeyByConnectionID(conn.ID())
	if err != nil {
		var nf *registry.NotFoundError
		if errors.As(err, &nf) {
			return refuse("not logged in")
		}
		return nil, err
	}

	customerID, _ := conn.Identity()
	payload := codec.NewWriter(make([]byte, 4+4))
	if err := payload.WriteUint32BE(customerID); err != nil {
		return nil, err
	}
	if err := payload.WriteUint32BE(key.Timestamp); err != nil {
		return nil, err
	}
	return []msg.Message{msg.NewNPSMessage(OpcodeUserValid, payload.Bytes())}, nil
}

// refuse builds the negative-acknowledgement reply. The legacy protocol
// has no structured error envelope, just an opcode and a reason string.
func refuse(reason string) ([]msg.Message, error) {
	payload := codec.NewWriter(make([]byte, 2+len(reason)))
	if err := payload.WritePrefixedString(reason, true); err != nil {
		return nil, err
	}
	return []msg.Message{msg.NewNPSMessage(OpcodeLoginRefused, payload.Bytes())}, nil
}
