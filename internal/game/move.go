// Package game holds the authoritative world: the movement model, the
// session roster, collisions and scoring, and the coin spawner. The movement
// model lives here rather than on the server loop because the client runs the
// exact same integration for prediction and replay.
package game

import (
	"math"
	"time"

	"coindash/internal/protocol"
)

// Tunables are the world constants. Both ends of a connection must agree on
// them or prediction drifts from the authoritative result.
type Tunables struct {
	WorldWidth   float32
	WorldHeight  float32
	PlayerRadius float32
	CoinRadius   float32
	PlayerSpeed  float32 // units per second

	// Directions shorter than InputEpsilon count as standing still.
	InputEpsilon float32

	// Elapsed time per input is clamped: anything above MaxInputDelta
	// (a stalled connection, a debugger pause) integrates as NominalDelta
	// instead, so one input can never teleport a player across the map.
	MaxInputDelta time.Duration
	NominalDelta  time.Duration

	SpawnPoint   protocol.Vec2
	InitialCoins int
}

func DefaultTunables() Tunables {
	return Tunables{
		WorldWidth:    800,
		WorldHeight:   600,
		PlayerRadius:  25,
		CoinRadius:    20,
		PlayerSpeed:   200,
		InputEpsilon:  0.01,
		MaxInputDelta: 100 * time.Millisecond,
		NominalDelta:  16 * time.Millisecond,
		SpawnPoint:    protocol.Vec2{X: 400, Y: 300},
		InitialCoins:  3,
	}
}

// ClampDelta applies the integration ceiling: a zero or oversized elapsed
// time is replaced by the nominal frame duration.
func (t Tunables) ClampDelta(dt time.Duration) time.Duration {
	if dt <= 0 || dt > t.MaxInputDelta {
		return t.NominalDelta
	}
	return dt
}

// Integrate advances pos by one input: normalize the direction, move at
// PlayerSpeed for dt, clamp per-axis into the rectangle inset by the player
// radius. A direction below the epsilon leaves pos unchanged. This function
// is the shared movement model; it must stay deterministic.
func (t Tunables) Integrate(pos protocol.Vec2, dir protocol.Vec2, dt time.Duration) protocol.Vec2 {
	length := float32(math.Sqrt(float64(dir.X*dir.X + dir.Y*dir.Y)))
	if length < t.InputEpsilon {
		return pos
	}

	step := t.PlayerSpeed * float32(dt.Seconds())
	pos.X += dir.X / length * step
	pos.Y += dir.Y / length * step

	pos.X = clamp(pos.X, t.PlayerRadius, t.WorldWidth-t.PlayerRadius)
	pos.Y = clamp(pos.Y, t.PlayerRadius, t.WorldHeight-t.PlayerRadius)
	return pos
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
