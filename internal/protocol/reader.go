package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer reports that a message ended before a field could be read.
// It marks the message as truncated or malformed; callers drop the message
// and move on.
var ErrShortBuffer = errors.New("protocol: message too short")

// Reader walks one complete message. Every read checks the remaining bytes
// first, so a truncated or lying message fails cleanly instead of panicking.
type Reader struct {
	data   []byte
	offset int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) remaining() int {
	return len(r.data) - r.offset
}

// ReadHeader consumes the message header and returns its kind and declared
// total length. It does not validate the length against the buffer; framing
// owns that check.
func (r *Reader) ReadHeader() (MessageKind, uint32, error) {
	if r.remaining() < HeaderSize {
		return 0, 0, ErrShortBuffer
	}
	kind := MessageKind(r.data[r.offset])
	length := binary.BigEndian.Uint32(r.data[r.offset+1 : r.offset+HeaderSize])
	r.offset += HeaderSize
	return kind, length, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrShortBuffer
	}
	v := r.data[r.offset]
	r.offset++
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint32(r.data[r.offset : r.offset+4])
	r.offset += 4
	return v, nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	bits, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func (r *Reader) ReadVec2() (Vec2, error) {
	x, err := r.ReadFloat32()
	if err != nil {
		return Vec2{}, err
	}
	y, err := r.ReadFloat32()
	if err != nil {
		return Vec2{}, err
	}
	return Vec2{X: x, Y: y}, nil
}

func (r *Reader) ReadPlayerState() (PlayerState, error) {
	var ps PlayerState
	var err error
	if ps.ID, err = r.ReadUint32(); err != nil {
		return ps, err
	}
	if ps.Position, err = r.ReadVec2(); err != nil {
		return ps, err
	}
	if ps.Score, err = r.ReadUint32(); err != nil {
		return ps, err
	}
	if ps.LastInputSeq, err = r.ReadUint32(); err != nil {
		return ps, err
	}
	if ps.LastInputTS, err = r.ReadUint32(); err != nil {
		return ps, err
	}
	return ps, nil
}

func (r *Reader) ReadCoinState() (CoinState, error) {
	var cs CoinState
	var err error
	if cs.ID, err = r.ReadUint32(); err != nil {
		return cs, err
	}
	if cs.Position, err = r.ReadVec2(); err != nil {
		return cs, err
	}
	return cs, nil
}

// DecodeInput parses a complete ClientInput message, header included.
func DecodeInput(data []byte) (Input, error) {
	r := NewReader(data)
	kind, _, err := r.ReadHeader()
	if err != nil {
		return Input{}, err
	}
	if kind != ClientInput {
		return Input{}, fmt.Errorf("protocol: expected input message, got kind %d", kind)
	}
	var in Input
	if in.Direction, err = r.ReadVec2(); err != nil {
		return Input{}, err
	}
	if in.Timestamp, err = r.ReadUint32(); err != nil {
		return Input{}, err
	}
	if in.Seq, err = r.ReadUint32(); err != nil {
		return Input{}, err
	}
	return in, nil
}

// DecodeGameStart parses a complete ServerGameStart message and returns the
// controller id the server assigned.
func DecodeGameStart(data []byte) (uint32, error) {
	r := NewReader(data)
	kind, _, err := r.ReadHeader()
	if err != nil {
		return 0, err
	}
	if kind != ServerGameStart {
		return 0, fmt.Errorf("protocol: expected game start message, got kind %d", kind)
	}
	return r.ReadUint32()
}

// DecodeSnapshot parses a complete ServerSnapshot message, header included.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	r := NewReader(data)
	kind, _, err := r.ReadHeader()
	if err != nil {
		return Snapshot{}, err
	}
	if kind != ServerSnapshot {
		return Snapshot{}, fmt.Errorf("protocol: expected snapshot message, got kind %d", kind)
	}

	var snap Snapshot
	if snap.Timestamp, err = r.ReadUint32(); err != nil {
		return Snapshot{}, err
	}
	playerCount, err := r.ReadUint8()
	if err != nil {
		return Snapshot{}, err
	}
	coinCount, err := r.ReadUint8()
	if err != nil {
		return Snapshot{}, err
	}

	snap.Players = make([]PlayerState, 0, playerCount)
	for i := 0; i < int(playerCount); i++ {
		ps, err := r.ReadPlayerState()
		if err != nil {
			return Snapshot{}, err
		}
		snap.Players = append(snap.Players, ps)
	}
	snap.Coins = make([]CoinState, 0, coinCount)
	for i := 0; i < int(coinCount); i++ {
		cs, err := r.ReadCoinState()
		if err != nil {
			return Snapshot{}, err
		}
		snap.Coins = append(snap.Coins, cs)
	}
	return snap, nil
}
