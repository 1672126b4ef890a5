package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Writer builds one outgoing message. Fields are appended in wire order and
// the length field in the header is patched by Finalize once the body is
// complete.
type Writer struct {
	buf []byte
}

func NewWriter(kind MessageKind) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.buf = append(w.buf, byte(kind))
	w.buf = append(w.buf, 0, 0, 0, 0) // length, patched by Finalize
	return w
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteFloat32(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *Writer) WriteVec2(v Vec2) {
	w.WriteFloat32(v.X)
	w.WriteFloat32(v.Y)
}

func (w *Writer) WritePlayerState(ps PlayerState) {
	w.WriteUint32(ps.ID)
	w.WriteVec2(ps.Position)
	w.WriteUint32(ps.Score)
	w.WriteUint32(ps.LastInputSeq)
	w.WriteUint32(ps.LastInputTS)
}

func (w *Writer) WriteCoinState(cs CoinState) {
	w.WriteUint32(cs.ID)
	w.WriteVec2(cs.Position)
}

// Finalize patches the total message length into the header and returns the
// complete wire bytes.
func (w *Writer) Finalize() []byte {
	binary.BigEndian.PutUint32(w.buf[1:HeaderSize], uint32(len(w.buf)))
	return w.buf
}

func EncodeConnect() []byte {
	return NewWriter(ClientConnect).Finalize()
}

func EncodeDisconnect() []byte {
	return NewWriter(ClientDisconnect).Finalize()
}

func EncodeInput(in Input) []byte {
	w := NewWriter(ClientInput)
	w.WriteVec2(in.Direction)
	w.WriteUint32(in.Timestamp)
	w.WriteUint32(in.Seq)
	return w.Finalize()
}

func EncodeGameStart(playerID uint32) []byte {
	w := NewWriter(ServerGameStart)
	w.WriteUint32(playerID)
	return w.Finalize()
}

// EncodeSnapshot lays out the roster counts as single bytes, so a snapshot is
// limited to 255 players and 255 coins.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	if len(snap.Players) > math.MaxUint8 {
		return nil, fmt.Errorf("snapshot holds %d players, wire limit is %d", len(snap.Players), math.MaxUint8)
	}
	if len(snap.Coins) > math.MaxUint8 {
		return nil, fmt.Errorf("snapshot holds %d coins, wire limit is %d", len(snap.Coins), math.MaxUint8)
	}

	w := NewWriter(ServerSnapshot)
	w.WriteUint32(snap.Timestamp)
	w.WriteUint8(uint8(len(snap.Players)))
	w.WriteUint8(uint8(len(snap.Coins)))
	for _, ps := range snap.Players {
		w.WritePlayerState(ps)
	}
	for _, cs := range snap.Coins {
		w.WriteCoinState(cs)
	}
	return w.Finalize(), nil
}
