package client

import (
	"time"

	"coindash/internal/protocol"
)

// PlayerView is one entity as the renderer should draw it this frame.
type PlayerView struct {
	ID       uint32
	Position protocol.Vec2
	Score    uint32
	Self     bool
}

// View is everything the renderer needs for one frame. It is a copy; the
// renderer never holds a reference into synchronizer state.
type View struct {
	Connected bool
	Started   bool
	SelfID    uint32
	Ping      time.Duration
	Players   []PlayerView
	Coins     []protocol.CoinState
}

// Frame produces the render view for now and advances per-frame smoothing
// state (correction decay, exponential fallbacks). Call it once per rendered
// frame.
//
// The controlled entity is always drawn from prediction, never from the
// snapshot buffer. Everyone else is drawn at a reference time one
// interpolation delay behind the newest snapshot: between the two buffered
// snapshots bracketing that time when possible, by velocity extrapolation
// when the buffer has no bracket, and by exponential smoothing toward the
// last known position as the final fallback.
func (s *Synchronizer) Frame(now time.Time) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := View{
		Connected: s.connected,
		Started:   s.started,
		SelfID:    s.selfID,
		Ping:      s.ping,
	}

	if len(s.history) == 0 {
		if s.started {
			view.Players = append(view.Players, s.selfView())
		}
		return view
	}

	latest := s.history[len(s.history)-1]
	refMS := int64(latest.serverTS) +
		now.Sub(latest.receivedAt).Milliseconds() -
		s.params.InterpolationDelay.Milliseconds()

	seen := make(map[uint32]bool, len(latest.players))
	for id, ps := range latest.players {
		if s.started && id == s.selfID {
			continue
		}
		pos, ok := s.interpolate(id, refMS)
		if !ok {
			pos = s.smooth(id, ps.Position)
		}
		s.renderPos[id] = pos
		seen[id] = true
		view.Players = append(view.Players, PlayerView{ID: id, Position: pos, Score: ps.Score})
	}
	for id := range s.renderPos {
		if !seen[id] {
			delete(s.renderPos, id)
		}
	}

	if s.started {
		s.decayCorrection()
		view.Players = append(view.Players, s.selfView())
	}
	sortPlayers(view.Players)

	view.Coins = s.coinsAt(refMS)
	return view
}

func (s *Synchronizer) selfView() PlayerView {
	return PlayerView{
		ID:       s.selfID,
		Position: add(s.predicted, s.correction),
		Score:    s.score,
		Self:     true,
	}
}

// decayCorrection bleeds off the visual offset left by a blended
// reconciliation a little more each frame.
func (s *Synchronizer) decayCorrection() {
	s.correction.X *= 1 - s.params.CorrectionRate
	s.correction.Y *= 1 - s.params.CorrectionRate
	if dist(s.correction, protocol.Vec2{}) < 0.05 {
		s.correction = protocol.Vec2{}
	}
}

// interpolate places an entity at the reference time from the snapshot
// buffer: a linear blend between the bracketing pair, or a capped velocity
// extrapolation when the reference time has run past the newest snapshot.
// ok is false when neither applies.
func (s *Synchronizer) interpolate(id uint32, refMS int64) (protocol.Vec2, bool) {
	for i := len(s.history) - 1; i >= 1; i-- {
		older, newer := s.history[i-1], s.history[i]
		if int64(older.serverTS) <= refMS && refMS < int64(newer.serverTS) {
			a, okA := older.players[id]
			b, okB := newer.players[id]
			if !okA || !okB {
				return protocol.Vec2{}, false
			}
			t := float32(refMS-int64(older.serverTS)) / float32(newer.serverTS-older.serverTS)
			return lerp(a.Position, b.Position, t), true
		}
	}

	// Reference time beyond the buffer: project forward along the last
	// observed velocity, but never further than the extrapolation limit.
	newest := s.history[len(s.history)-1]
	if refMS >= int64(newest.serverTS) && len(s.history) >= 2 {
		prev := s.history[len(s.history)-2]
		a, okA := prev.players[id]
		b, okB := newest.players[id]
		span := int64(newest.serverTS) - int64(prev.serverTS)
		if okA && okB && span > 0 {
			ahead := refMS - int64(newest.serverTS)
			if limit := s.params.ExtrapolationLimit.Milliseconds(); ahead > limit {
				ahead = limit
			}
			f := float32(ahead) / float32(span)
			return protocol.Vec2{
				X: b.Position.X + (b.Position.X-a.Position.X)*f,
				Y: b.Position.Y + (b.Position.Y-a.Position.Y)*f,
			}, true
		}
	}
	return protocol.Vec2{}, false
}

// smooth is the last fallback: ease the rendered position toward the target
// a fraction per frame instead of teleporting.
func (s *Synchronizer) smooth(id uint32, target protocol.Vec2) protocol.Vec2 {
	cur, ok := s.renderPos[id]
	if !ok {
		return target
	}
	cur.X += (target.X - cur.X) * s.params.SmoothingRate
	cur.Y += (target.Y - cur.Y) * s.params.SmoothingRate
	return cur
}

// coinsAt renders coins from the newest snapshot at or before the reference
// time, so pickups disappear on the same delayed timeline the players move
// on. Before any snapshot is that old, the oldest buffered roster serves.
func (s *Synchronizer) coinsAt(refMS int64) []protocol.CoinState {
	coins := s.history[0].coins
	for _, rec := range s.history {
		if int64(rec.serverTS) > refMS {
			break
		}
		coins = rec.coins
	}
	out := make([]protocol.CoinState, len(coins))
	copy(out, coins)
	return out
}
