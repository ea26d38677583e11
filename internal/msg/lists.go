package msg

import (
	"github.com/drazisil/mcos-sub001/internal/codec"
)

// maxListCount bounds every list container's declared record count.
// The legacy client never owns more than a few hundred of anything.
const maxListCount = 4096

// MiniUserInfo is one entry of the lobby user roster (big-endian).
type MiniUserInfo struct {
	UserID   uint32
	UserName string
}

// MiniUserList is the lobby roster reply: 32-bit count + records.
type MiniUserList struct {
	Users []MiniUserInfo
}

// Size returns the serialized container size.
func (l *MiniUserList) Size() int {
	n := 4
	for i := range l.Users {
		n += 4 + 2 + len(l.Users[i].UserName)
	}
	return n
}

// Serialize writes the container into a fresh exactly-sized buffer.
func (l *MiniUserList) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, l.Size()))
	if err := w.WriteUint32BE(uint32(len(l.Users))); err != nil {
		return nil, err
	}
	for i := range l.Users {
		if err := w.WriteUint32BE(l.Users[i].UserID); err != nil {
			return nil, err
		}
		if err := w.WritePrefixedString(l.Users[i].UserName, true); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// Deserialize parses the container, stopping exactly at the declared
// count. Leaves l untouched on failure.
func (l *MiniUserList) Deserialize(buf []byte) error {
	r := codec.NewReader(buf)
	count, err := r.ReadUint32BE()
	if err != nil {
		return err
	}
	if int(count) > maxListCount {
		return &codec.FrameError{Op: "mini user list", Reason: "absurd record count"}
	}
	users := make([]MiniUserInfo, count)
	for i := range users {
		if users[i].UserID, err = r.ReadUint32BE(); err != nil {
			return err
		}
		if users[i].UserName, err = r.ReadPrefixedString(true); err != nil {
			return err
		}
	}
	l.Users = users
	return nil
}

// MiniRiffInfo is one lobby room record (big-endian).
type MiniRiffInfo struct {
	Riff       string
	CommID     uint16
	Population uint16
}

// MiniRiffList is the lobby room listing: 32-bit count + records.
type MiniRiffList struct {
	Riffs []MiniRiffInfo
}

// Size returns the serialized container size.
func (l *MiniRiffList) Size() int {
	n := 4
	for i := range l.Riffs {
		n += 2 + len(l.Riffs[i].Riff) + 2 + 2
	}
	return n
}

// Serialize writes the container into a fresh exactly-sized buffer.
func (l *MiniRiffList) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, l.Size()))
	if err := w.WriteUint32BE(uint32(len(l.Riffs))); err != nil {
		return nil, err
	}
	for i := range l.Riffs {
		if err := w.WritePrefixedString(l.Riffs[i].Riff, true); err != nil {
			return nil, err
		}
		if err := w.WriteUint16BE(l.Riffs[i].CommID); err != nil {
			return nil, err
		}
		if err := w.WriteUint16BE(l.Riffs[i].Population); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// Deserialize parses the container, stopping exactly at the declared
// count. Leaves l untouched on failure.
func (l *MiniRiffList) Deserialize(buf []byte) error {
	r := codec.NewReader(buf)
	count, err := r.ReadUint32BE()
	if err != nil {
		return err
	}
	if int(count) > maxListCount {
		return &codec.FrameError{Op: "mini riff list", Reason: "absurd record count"}
	}
	riffs := make([]MiniRiffInfo, count)
	for i := range riffs {
		if riffs[i].Riff, err = r.ReadPrefixedString(true); err != nil {
			return err
		}
		if riffs[i].CommID, err = r.ReadUint16BE(); err != nil {
			return err
		}
		if riffs[i].Population, err = r.ReadUint16BE(); err != nil {
			return err
		}
	}
	l.Riffs = riffs
	return nil
}

// OwnedVehicleInfo is one fixed-width vehicle record (little-endian,
// game-message family).
type OwnedVehicleInfo struct {
	VehicleID     uint32
	BrandedPartID uint32
}

// OwnedVehiclesList is the owned-vehicles reply: 32-bit count + records.
type OwnedVehiclesList struct {
	Vehicles []OwnedVehicleInfo
}

// Size returns the serialized container size.
func (l *OwnedVehiclesList) Size() int {
	return 4 + 8*len(l.Vehicles)
}

// Serialize writes the container into a fresh exactly-sized buffer.
func (l *OwnedVehiclesList) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, l.Size()))
	if err := w.WriteUint32LE(uint32(len(l.Vehicles))); err != nil {
		return nil, err
	}
	for i := range l.Vehicles {
		if err := w.WriteUint32LE(l.Vehicles[i].VehicleID); err != nil {
			return nil, err
		}
		if err := w.WriteUint32LE(l.Vehicles[i].BrandedPartID); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// Deserialize parses the container, stopping exactly at the declared
// count. Leaves l untouched on failure.
func (l *OwnedVehiclesList) Deserialize(buf []byte) error {
	r := codec.NewReader(buf)
	count, err := r.ReadUint32LE()
	if err != nil {
		return err
	}
	if int(count) > maxListCount {
		return &codec.FrameError{Op: "owned vehicles list", Reason: "absurd record count"}
	}
	vehicles := make([]OwnedVehicleInfo, count)
	for i := range vehicles {
		if vehicles[i].VehicleID, err = r.ReadUint32LE(); err != nil {
			return err
		}
		if vehicles[i].BrandedPartID, err = r.ReadUint32LE(); err != nil {
			return err
		}
	}
	l.Vehicles = vehicles
	return nil
}
