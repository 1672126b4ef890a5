// Package protocol defines the wire format shared by the server and the
// client: a 5 byte header of [kind:1][length:4] followed by a fixed-layout
// body per message kind. All multi-byte fields are big-endian and floats are
// IEEE-754 binary32, so the encoding is identical on every architecture.
package protocol

import "time"

type MessageKind uint8

const (
	ClientConnect    MessageKind = 1
	ClientInput      MessageKind = 2
	ServerSnapshot   MessageKind = 3
	ServerGameStart  MessageKind = 4
	ClientDisconnect MessageKind = 5
)

// HeaderSize is kind (1 byte) plus total message length (4 bytes).
// The length field covers the header itself and the body.
const HeaderSize = 5

// MaxMessageSize is the sanity cap on a declared message length. A header
// announcing more than this is treated as a desynchronized stream.
const MaxMessageSize = 64 * 1024

type Vec2 struct {
	X float32
	Y float32
}

// PlayerState is a player entity as it appears inside a snapshot. LastInputSeq
// and LastInputTS echo the newest input the server has applied for this
// player; the client uses them for reconciliation and ping sampling.
type PlayerState struct {
	ID           uint32
	Position     Vec2
	Score        uint32
	LastInputSeq uint32
	LastInputTS  uint32
}

type CoinState struct {
	ID       uint32
	Position Vec2
}

// Input is a single movement command. Direction does not have to be
// normalized; the server normalizes before integrating. Seq increases by one
// per input for the lifetime of the connection.
type Input struct {
	Direction Vec2
	Timestamp uint32
	Seq       uint32
}

// Snapshot is the full authoritative roster at Timestamp.
type Snapshot struct {
	Timestamp uint32
	Players   []PlayerState
	Coins     []CoinState
}

// Millis collapses a wall-clock time onto the 32-bit millisecond timeline
// used for every timestamp on the wire.
func Millis(t time.Time) uint32 {
	return uint32(t.UnixMilli())
}
