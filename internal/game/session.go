package game

import (
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"coindash/internal/protocol"
)

type playerEntry struct {
	state       protocol.PlayerState
	lastInputAt time.Time
}

// Session is the canonical world. It is not safe for concurrent use: the
// server loop is its single owner and every mutation happens on that loop.
// State changes on each accepted input; snapshots are taken on the caller's
// own schedule.
type Session struct {
	tun Tunables
	rng *rand.Rand

	players map[uint32]*playerEntry
	coins   map[uint32]protocol.CoinState

	nextCoinID uint32
	running    bool
}

func NewSession(tun Tunables, rng *rand.Rand) *Session {
	return &Session{
		tun:        tun,
		rng:        rng,
		players:    make(map[uint32]*playerEntry),
		coins:      make(map[uint32]protocol.CoinState),
		nextCoinID: 1,
	}
}

func (s *Session) Running() bool {
	return s.running
}

func (s *Session) PlayerCount() int {
	return len(s.players)
}

// AddPlayer puts a new player on the roster at the spawn point.
func (s *Session) AddPlayer(id uint32) {
	s.players[id] = &playerEntry{
		state: protocol.PlayerState{
			ID:       id,
			Position: s.tun.SpawnPoint,
		},
	}
	log.Info().Uint32("player_id", id).Int("total", len(s.players)).Msg("player joined")
}

func (s *Session) RemovePlayer(id uint32) {
	delete(s.players, id)
	log.Info().Uint32("player_id", id).Int("total", len(s.players)).Msg("player left")
}

// Start begins the game: spawns the initial coin batch and accepts input
// from now on. Starting twice is a no-op. The caller owns the respawn timer
// and calls SpawnCoin on each tick.
func (s *Session) Start() {
	if s.running {
		return
	}
	s.running = true
	for i := 0; i < s.tun.InitialCoins; i++ {
		s.SpawnCoin()
	}
	log.Info().Int("players", len(s.players)).Msg("game starting")
}

// ApplyInput integrates one movement input for a player and collects any
// coins the move reaches. Input for an unknown player, or before the game
// started, is dropped without touching state. Elapsed time is measured from
// that player's previous accepted input and clamped by the tunables.
func (s *Session) ApplyInput(id uint32, in protocol.Input, now time.Time) {
	p, ok := s.players[id]
	if !ok || !s.running {
		return
	}

	var dt time.Duration
	if !p.lastInputAt.IsZero() {
		dt = now.Sub(p.lastInputAt)
	}
	dt = s.tun.ClampDelta(dt)

	p.state.Position = s.tun.Integrate(p.state.Position, in.Direction, dt)
	p.state.LastInputSeq = in.Seq
	p.state.LastInputTS = in.Timestamp
	p.lastInputAt = now

	s.collectCoins(p)
}

// collectCoins removes every coin strictly overlapping the player and scores
// one point each. Touching exactly at the sum of the radii does not collect.
func (s *Session) collectCoins(p *playerEntry) {
	threshold := s.tun.PlayerRadius + s.tun.CoinRadius
	for id, coin := range s.coins {
		dx := p.state.Position.X - coin.Position.X
		dy := p.state.Position.Y - coin.Position.Y
		if dx*dx+dy*dy < threshold*threshold {
			delete(s.coins, id)
			p.state.Score++
			log.Info().
				Uint32("player_id", p.state.ID).
				Uint32("coin_id", id).
				Uint32("score", p.state.Score).
				Msg("coin collected")
		}
	}
}

// SpawnCoin places one coin at a uniform-random position inside the world
// rectangle inset by the coin radius.
func (s *Session) SpawnCoin() {
	coin := protocol.CoinState{
		ID: s.nextCoinID,
		Position: protocol.Vec2{
			X: s.randomCoord(s.tun.CoinRadius, s.tun.WorldWidth),
			Y: s.randomCoord(s.tun.CoinRadius, s.tun.WorldHeight),
		},
	}
	s.nextCoinID++
	s.coins[coin.ID] = coin
	log.Debug().
		Uint32("coin_id", coin.ID).
		Float32("x", coin.Position.X).
		Float32("y", coin.Position.Y).
		Msg("coin spawned")
}

func (s *Session) randomCoord(radius, dim float32) float32 {
	return radius + s.rng.Float32()*(dim-2*radius)
}

func (s *Session) CoinCount() int {
	return len(s.coins)
}

// Snapshot assembles the full roster with each player's last accepted input
// echoed back, stamped with the given time.
func (s *Session) Snapshot(now time.Time) protocol.Snapshot {
	snap := protocol.Snapshot{
		Timestamp: protocol.Millis(now),
		Players:   make([]protocol.PlayerState, 0, len(s.players)),
		Coins:     make([]protocol.CoinState, 0, len(s.coins)),
	}
	for _, p := range s.players {
		snap.Players = append(snap.Players, p.state)
	}
	for _, c := range s.coins {
		snap.Coins = append(snap.Coins, c)
	}
	return snap
}
