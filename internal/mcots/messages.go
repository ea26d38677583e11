package mcots

import (
	"github.com/drazisil/mcos-sub001/internal/codec"
)

// ClientConnect is the connect-handshake request body (little-endian,
// game-message family).
type ClientConnect struct {
	CustomerID  uint32
	PersonaID   uint32
	PersonaName string
}

// Size returns the serialized body size.
func (c *ClientConnect) Size() int { return 4 + 4 + 2 + len(c.PersonaName) }

// Serialize writes the body into a fresh exactly-sized buffer.
func (c *ClientConnect) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, c.Size()))
	if err := w.WriteUint32LE(c.CustomerID); err != nil {
		return nil, err
	}
	if err := w.WriteUint32LE(c.PersonaID); err != nil {
		return nil, err
	}
	if err := w.WritePrefixedString(c.PersonaName, false); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Deserialize parses the body, leaving c untouched on failure.
func (c *ClientConnect) Deserialize(buf []byte) error {
	r := codec.NewReader(buf)
	var out ClientConnect
	var err error
	if out.CustomerID, err = r.ReadUint32LE(); err != nil {
		return err
	}
	if out.PersonaID, err = r.ReadUint32LE(); err != nil {
		return err
	}
	if out.PersonaName, err = r.ReadPrefixedString(false); err != nil {
		return err
	}
	*c = out
	return nil
}

// lobbyNameLen is the fixed on-wire width of a lobby name. Shorter names
// are zero padded, longer ones truncated.
const lobbyNameLen = 32

// LobbyInfo is a single fixed-width entry of the lobby-list reply.
type LobbyInfo struct {
	LobbyID    uint32
	RaceTypeID uint32
	TurfID     uint32
	Name       string
}

// Size returns the serialized record size.
func (l *LobbyInfo) Size() int { return 4 + 4 + 4 + lobbyNameLen }

func (l *LobbyInfo) writeTo(w *codec.Writer) error {
	if err := w.WriteUint32LE(l.LobbyID); err != nil {
		return err
	}
	if err := w.WriteUint32LE(l.RaceTypeID); err != nil {
		return err
	}
	if err := w.WriteUint32LE(l.TurfID); err != nil {
		return err
	}
	name := make([]byte, lobbyNameLen)
	copy(name, l.Name)
	return w.WriteBytes(name)
}

func (l *LobbyInfo) readFrom(r *codec.Reader) error {
	var out LobbyInfo
	var err error
	if out.LobbyID, err = r.ReadUint32LE(); err != nil {
		return err
	}
	if out.RaceTypeID, err = r.ReadUint32LE(); err != nil {
		return err
	}
	if out.TurfID, err = r.ReadUint32LE(); err != nil {
		return err
	}
	raw, err := r.ReadBytes(lobbyNameLen)
	if err != nil {
		return err
	}
	out.Name = cString(raw)
	*l = out
	return nil
}

// Serialize writes the record into a fresh exactly-sized buffer.
func (l *LobbyInfo) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, l.Size()))
	if err := l.writeTo(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Deserialize parses the record, leaving l untouched on failure.
func (l *LobbyInfo) Deserialize(buf []byte) error {
	return l.readFrom(codec.NewReader(buf))
}

// LobbyList is the lobby-list reply body: a 32-bit count followed by
// fixed-width lobby records.
type LobbyList struct {
	Lobbies []LobbyInfo
}

// Size returns the serialized container size.
func (l *LobbyList) Size() int {
	n := 4
	for i := range l.Lobbies {
		n += l.Lobbies[i].Size()
	}
	return n
}

// Serialize writes the container into a fresh exactly-sized buffer.
func (l *LobbyList) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, l.Size()))
	if err := w.WriteUint32LE(uint32(len(l.Lobbies))); err != nil {
		return nil, err
	}
	for i := range l.Lobbies {
		if err := l.Lobbies[i].writeTo(w); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// Deserialize parses the container, leaving l untouched on failure.
func (l *LobbyList) Deserialize(buf []byte) error {
	r := codec.NewReader(buf)
	count, err := r.ReadUint32LE()
	if err != nil {
		return err
	}
	if count > 1024 {
		return &codec.FrameError{Op: "lobby list", Reason: "absurd record count"}
	}
	lobbies := make([]LobbyInfo, count)
	for i := range lobbies {
		if err := lobbies[i].readFrom(r); err != nil {
			return err
		}
	}
	l.Lobbies = lobbies
	return nil
}

// StockCar is one purchasable car in the stock-car-info reply.
type StockCar struct {
	BrandedPartID uint32
	RetailPrice   uint32
	IsDealOfTheDay uint16
}

// Size returns the serialized record size.
func (s *StockCar) Size() int { return 4 + 4 + 2 }

func (s *StockCar) writeTo(w *codec.Writer) error {
	if err := w.WriteUint32LE(s.BrandedPartID); err != nil {
		return err
	}
	if err := w.WriteUint32LE(s.RetailPrice); err != nil {
		return err
	}
	return w.WriteUint16LE(s.IsDealOfTheDay)
}

// StockCarList is the stock-car-info reply body.
type StockCarList struct {
	StarterCash uint32
	DealerID    uint32
	BrandID     uint32
	Cars        []StockCar
}

// Size returns the serialized container size.
func (l *StockCarList) Size() int {
	return 4 + 4 + 4 + 2 + 10*len(l.Cars)
}

// Serialize writes the container into a fresh exactly-sized buffer.
func (l *StockCarList) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, l.Size()))
	if err := w.WriteUint32LE(l.StarterCash); err != nil {
		return nil, err
	}
	if err := w.WriteUint32LE(l.DealerID); err != nil {
		return nil, err
	}
	if err := w.WriteUint32LE(l.BrandID); err != nil {
		return nil, err
	}
	if err := w.WriteUint16LE(uint16(len(l.Cars))); err != nil {
		return nil, err
	}
	for i := range l.Cars {
		if err := l.Cars[i].writeTo(w); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// PurchaseStockCar is the purchase request body.
type PurchaseStockCar struct {
	DealerID      uint32
	BrandedPartID uint32
	SkinID        uint32
	TradeInID     uint32
}

// Size returns the serialized body size.
func (p *PurchaseStockCar) Size() int { return 16 }

// Serialize writes the body into a fresh exactly-sized buffer.
func (p *PurchaseStockCar) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, p.Size()))
	for _, v := range []uint32{p.DealerID, p.BrandedPartID, p.SkinID, p.TradeInID} {
		if err := w.WriteUint32LE(v); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// Deserialize parses the body, leaving p untouched on failure.
func (p *PurchaseStockCar) Deserialize(buf []byte) error {
	r := codec.NewReader(buf)
	var out PurchaseStockCar
	var err error
	if out.DealerID, err = r.ReadUint32LE(); err != nil {
		return err
	}
	if out.BrandedPartID, err = r.ReadUint32LE(); err != nil {
		return err
	}
	if out.SkinID, err = r.ReadUint32LE(); err != nil {
		return err
	}
	if out.TradeInID, err = r.ReadUint32LE(); err != nil {
		return err
	}
	*p = out
	return nil
}

// OwnedPartInfo is one part record in the owned-parts reply.
type OwnedPartInfo struct {
	PartID        uint32
	ParentPartID  uint32
	BrandedPartID uint32
}

// OwnedPartsList is the owned-parts reply body.
type OwnedPartsList struct {
	VehicleID uint32
	Parts     []OwnedPartInfo
}

// Size returns the serialized container size.
func (l *OwnedPartsList) Size() int { return 4 + 4 + 12*len(l.Parts) }

// Serialize writes the container into a fresh exactly-sized buffer.
func (l *OwnedPartsList) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, l.Size()))
	if err := w.WriteUint32LE(l.VehicleID); err != nil {
		return nil, err
	}
	if err := w.WriteUint32LE(uint32(len(l.Parts))); err != nil {
		return nil, err
	}
	for i := range l.Parts {
		if err := w.WriteUint32LE(l.Parts[i].PartID); err != nil {
			return nil, err
		}
		if err := w.WriteUint32LE(l.Parts[i].ParentPartID); err != nil {
			return nil, err
		}
		if err := w.WriteUint32LE(l.Parts[i].BrandedPartID); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func cString(raw []byte) string {
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}
