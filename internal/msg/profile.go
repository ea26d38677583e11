package msg

import (
	"github.com/drazisil/mcos-sub001/internal/codec"
)

// ProfileInfo is one customer-owned game identity as carried on the wire
// (big-endian, NPS family). The game, personal and picture blobs are
// opaque to the server.
type ProfileInfo struct {
	CustomerID   uint32
	ProfileID    uint32
	ProfileName  string
	ShardID      uint32
	ProfileLevel uint8
	GameBlob     []byte
	PersonalBlob []byte
	PictureBlob  []byte
}

// Size returns the serialized record size.
func (p *ProfileInfo) Size() int {
	return 4 + 4 + (2 + len(p.ProfileName)) + 4 + 1 +
		(2 + len(p.GameBlob)) + (2 + len(p.PersonalBlob)) + (2 + len(p.PictureBlob))
}

func (p *ProfileInfo) writeTo(w *codec.Writer) error {
	if err := w.WriteUint32BE(p.CustomerID); err != nil {
		return err
	}
	if err := w.WriteUint32BE(p.ProfileID); err != nil {
		return err
	}
	if err := w.WritePrefixedString(p.ProfileName, true); err != nil {
		return err
	}
	if err := w.WriteUint32BE(p.ShardID); err != nil {
		return err
	}
	if err := w.WriteUint8(p.ProfileLevel); err != nil {
		return err
	}
	for _, blob := range [][]byte{p.GameBlob, p.PersonalBlob, p.PictureBlob} {
		if err := w.WritePrefixedBytes(blob, true); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProfileInfo) readFrom(r *codec.Reader) error {
	var out ProfileInfo
	var err error
	if out.CustomerID, err = r.ReadUint32BE(); err != nil {
		return err
	}
	if out.ProfileID, err = r.ReadUint32BE(); err != nil {
		return err
	}
	if out.ProfileName, err = r.ReadPrefixedString(true); err != nil {
		return err
	}
	if out.ShardID, err = r.ReadUint32BE(); err != nil {
		return err
	}
	if out.ProfileLevel, err = r.ReadUint8(); err != nil {
		return err
	}
	if out.GameBlob, err = r.ReadPrefixedBytes(true); err != nil {
		return err
	}
	if out.PersonalBlob, err = r.ReadPrefixedBytes(true); err != nil {
		return err
	}
	if out.PictureBlob, err = r.ReadPrefixedBytes(true); err != nil {
		return err
	}
	*p = out
	return nil
}

// Serialize writes the record into a fresh exactly-sized buffer.
func (p *ProfileInfo) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, p.Size()))
	if err := p.writeTo(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Deserialize parses the record, leaving p untouched on failure.
func (p *ProfileInfo) Deserialize(buf []byte) error {
	return p.readFrom(codec.NewReader(buf))
}

// ProfileList is the persona-maps reply body: a 32-bit count followed by
// that many ProfileInfo records. Deserialize stops exactly at the count.
type ProfileList struct {
	Profiles []ProfileInfo
}

// Size returns the serialized container size.
func (l *ProfileList) Size() int {
	n := 4
	for i := range l.Profiles {
		n += l.Profiles[i].Size()
	}
	return n
}

// Serialize writes the container into a fresh exactly-sized buffer.
func (l *ProfileList) Serialize() ([]byte, error) {
	w := codec.NewWriter(make([]byte, l.Size()))
	if err := w.WriteUint32BE(uint32(len(l.Profiles))); err != nil {
		return nil, err
	}
	for i := range l.Profiles {
		if err := l.Profiles[i].writeTo(w); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// Deserialize parses the container, leaving l untouched on failure.
func (l *ProfileList) Deserialize(buf []byte) error {
	r := codec.NewReader(buf)
	count, err := r.ReadUint32BE()
	if err != nil {
		return err
	}
	if int(count) > maxListCount {
		return &codec.FrameError{Op: "profile list", Reason: "absurd record count"}
	}
	profiles := make([]ProfileInfo, count)
	for i := range profiles {
		if err := profiles[i].readFrom(r); err != nil {
			return err
		}
	}
	l.Profiles = profiles
	return nil
}
