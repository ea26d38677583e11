package mcots

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/drazisil/mcos-sub001/internal/msg"
	"github.com/drazisil/mcos-sub001/internal/nps"
	"github.com/drazisil/mcos-sub001/internal/registry"
)

// DefaultLobbies is what the lobby browser sees until rooms are driven
// from real race data.
var DefaultLobbies = []LobbyInfo{
	{LobbyID: 1, RaceTypeID: 1, TurfID: 1, Name: "Gasoline Alley"},
	{LobbyID: 2, RaceTypeID: 2, TurfID: 1, Name: "Woodward Ave"},
	{LobbyID: 3, RaceTypeID: 3, TurfID: 2, Name: "Thunder Road"},
}

// defaultStockCars is the dealership inventory offered to fresh
// personas. Prices are in in-game dollars.
var defaultStockCars = []StockCar{
	{BrandedPartID: 101, RetailPrice: 1450},
	{BrandedPartID: 102, RetailPrice: 1800},
	{BrandedPartID: 103, RetailPrice: 2250, IsDealOfTheDay: 1},
}

// starterCash is granted once at persona creation and reported with the
// dealership inventory.
const starterCash = 5000

func (h *Handler) handleGetLobbies(_ context.Context, conn *registry.Connection, _ *nps.Request) ([]msg.Message, error) {
	list := LobbyList{Lobbies: DefaultLobbies}
	payload, err := list.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serializing lobby list: %w", err)
	}
	return h.reply(conn, MsgGetLobbies, payload), nil
}

func (h *Handler) handleGetOwnedVehicles(ctx context.Context, conn *registry.Connection, _ *nps.Request) ([]msg.Message, error) {
	_, personaID := conn.Identity()
	vehicles, err := h.vehicles.VehiclesForPersona(ctx, personaID)
	if err != nil {
		return nil, fmt.Errorf("loading vehicles for persona %d: %w", personaID, err)
	}

	list := msg.OwnedVehiclesList{Vehicles: make([]msg.OwnedVehicleInfo, 0, len(vehicles))}
	for _, v := range vehicles {
		list.Vehicles = append(list.Vehicles, msg.OwnedVehicleInfo{
			VehicleID:     v.VehicleID,
			BrandedPartID: v.BrandedPartID,
		})
	}
	payload, err := list.Serialize()
	if err != nil {
		return nil, err
	}
	return h.reply(conn, MsgGetOwnedVehicles, payload), nil
}

// handleGetOwnedParts answers with the part tree of the requested
// vehicle. Ownership is checked against the connection identity so one
// persona cannot walk another's garage.
func (h *Handler) handleGetOwnedParts(ctx context.Context, conn *registry.Connection, req *nps.Request) ([]msg.Message, error) {
	var gr msg.GenericRequest
	if err := gr.Deserialize(req.Body); err != nil {
		return nil, fmt.Errorf("parsing owned parts request: %w", err)
	}
	vehicleID := leUint32(gr.Data)

	_, personaID := conn.Identity()
	vehicle, err := h.vehicles.GetVehicle(ctx, vehicleID)
	if err != nil {
		return h.ack(conn, MsgGetOwnedParts, 0)
	}
	if vehicle.PersonaID != personaID {
		slog.Warn("owned parts request for foreign vehicle",
			"vehicle", vehicleID, "owner", vehicle.PersonaID, "persona", personaID)
		return h.ack(conn, MsgGetOwnedParts, 0)
	}

	parts, err := h.vehicles.PartsForVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("loading parts for vehicle %d: %w", vehicleID, err)
	}
	list := OwnedPartsList{VehicleID: vehicleID, Parts: make([]OwnedPartInfo, 0, len(parts))}
	for _, p := range parts {
		list.Parts = append(list.Parts, OwnedPartInfo{
			PartID:        p.PartID,
			ParentPartID:  p.ParentPartID,
			BrandedPartID: p.BrandedPartID,
		})
	}
	payload, err := list.Serialize()
	if err != nil {
		return nil, err
	}
	return h.reply(conn, MsgGetOwnedParts, payload), nil
}

func (h *Handler) handlePurchaseStockCar(ctx context.Context, conn *registry.Connection, req *nps.Request) ([]msg.Message, error) {
	var purchase PurchaseStockCar
	if err := purchase.Deserialize(req.Body); err != nil {
		return nil, fmt.Errorf("parsing stock car purchase: %w", err)
	}

	_, personaID := conn.Identity()
	if personaID == 0 {
		return h.ack(conn, MsgPurchaseStockCar, 0)
	}

	vehicle, err := h.vehicles.PurchaseStockCar(ctx, personaID, purchase.BrandedPartID, purchase.SkinID)
	if err != nil {
		return nil, fmt.Errorf("purchasing stock car for persona %d: %w", personaID, err)
	}
	slog.Info("stock car purchased",
		"persona", personaID, "vehicle", vehicle.VehicleID, "brandedPart", purchase.BrandedPartID)
	return h.ack(conn, MsgPurchaseStockCar, vehicle.VehicleID)
}

func (h *Handler) handleStockCarInfo(_ context.Context, conn *registry.Connection, req *nps.Request) ([]msg.Message, error) {
	var gr msg.GenericRequest
	if err := gr.Deserialize(req.Body); err != nil {
		return nil, fmt.Errorf("parsing stock car info request: %w", err)
	}

	list := StockCarList{
		StarterCash: starterCash,
		DealerID:    leUint32(gr.Data),
		BrandID:     leUint32(gr.Data2),
		Cars:        defaultStockCars,
	}
	payload, err := list.Serialize()
	if err != nil {
		return nil, err
	}
	return h.reply(conn, MsgStockCarInfo, payload), nil
}

func leUint32(b [4]byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
