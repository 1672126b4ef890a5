// Package client keeps a terminal player's view of the world consistent with
// the server: it predicts the controlled entity locally, reconciles against
// authoritative snapshots, interpolates everyone else a fixed delay in the
// past, and estimates the round-trip time. The renderer only ever sees the
// View this package produces.
package client

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"coindash/internal/game"
	"coindash/internal/protocol"
)

// Params tune the synchronizer. The divergence thresholds and rates are
// local feel knobs, not protocol contracts; both sides only have to agree on
// the Tunables.
type Params struct {
	Tunables game.Tunables

	// InterpolationDelay is how far behind the newest snapshot remote
	// entities are rendered, chosen near the one-way latency so a
	// bracketing snapshot pair is almost always buffered.
	InterpolationDelay time.Duration
	// HistoryWindow bounds the retained snapshot span.
	HistoryWindow time.Duration
	// ExtrapolationLimit caps how far past the newest snapshot a remote
	// entity is projected when the buffer runs dry.
	ExtrapolationLimit time.Duration

	// SnapTolerance and SnapThreshold split prediction divergence into
	// three tiers: below tolerance is ignored, below threshold is blended
	// away, above it snaps to the server value.
	SnapTolerance float32
	SnapThreshold float32
	// CorrectionRate is the fraction of the remaining visual correction
	// applied per rendered frame in the blended tier.
	CorrectionRate float32
	// SmoothingRate drives the last-resort exponential approach toward an
	// entity's newest known position.
	SmoothingRate float32

	// PingAlpha weighs new round-trip samples into the moving average.
	PingAlpha float64
}

func DefaultParams() Params {
	return Params{
		Tunables:           game.DefaultTunables(),
		InterpolationDelay: 200 * time.Millisecond,
		HistoryWindow:      time.Second,
		ExtrapolationLimit: 250 * time.Millisecond,
		SnapTolerance:      0.5,
		SnapThreshold:      80,
		CorrectionRate:     0.2,
		SmoothingRate:      0.15,
		PingAlpha:          0.125,
	}
}

type pendingInput struct {
	seq       uint32
	direction protocol.Vec2
	timestamp uint32
	delta     time.Duration
	sentAt    time.Time
}

type snapshotRecord struct {
	serverTS   uint32
	receivedAt time.Time
	players    map[uint32]protocol.PlayerState
	coins      []protocol.CoinState
}

// Synchronizer owns the client-side copy of the world. The network goroutine
// and the render/input loop both touch it, so all state lives behind one
// mutex held only for the duration of each call, never across I/O.
type Synchronizer struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	params Params

	connected bool
	started   bool
	selfID    uint32

	// Controlled entity: prediction state.
	predicted   protocol.Vec2
	correction  protocol.Vec2 // decaying visual offset from a blended reconciliation
	score       uint32
	pending     []pendingInput
	nextSeq     uint32
	lastAck     uint32
	lastInputAt time.Time

	// Remote entities: snapshot history and per-entity render state.
	history   []snapshotRecord
	renderPos map[uint32]protocol.Vec2

	ping     time.Duration
	havePing bool
}

func NewSynchronizer(params Params, clock clockwork.Clock) *Synchronizer {
	return &Synchronizer{
		clock:     clock,
		params:    params,
		renderPos: make(map[uint32]protocol.Vec2),
	}
}

func (s *Synchronizer) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// HandleGameStart records which entity this client controls and seeds the
// prediction at the spawn point.
func (s *Synchronizer) HandleGameStart(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfID = id
	s.started = true
	s.predicted = s.params.Tunables.SpawnPoint
}

// LocalInput applies one movement command to the predicted position
// immediately — the controlled entity never waits for the server — and
// queues it until the server acknowledges it. The returned Input is what the
// caller ships over the wire; ok is false before the game has started.
func (s *Synchronizer) LocalInput(dir protocol.Vec2) (in protocol.Input, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return protocol.Input{}, false
	}

	now := s.clock.Now()
	var dt time.Duration
	if !s.lastInputAt.IsZero() {
		dt = now.Sub(s.lastInputAt)
	}
	dt = s.params.Tunables.ClampDelta(dt)
	s.lastInputAt = now

	s.nextSeq++
	in = protocol.Input{
		Direction: dir,
		Timestamp: protocol.Millis(now),
		Seq:       s.nextSeq,
	}

	s.predicted = s.params.Tunables.Integrate(s.predicted, dir, dt)
	s.pending = append(s.pending, pendingInput{
		seq:       in.Seq,
		direction: dir,
		timestamp: in.Timestamp,
		delta:     dt,
		sentAt:    now,
	})
	return in, true
}

// ApplySnapshot buffers an authoritative snapshot and reconciles the
// controlled entity against it. Snapshots not newer than the buffered head
// are dropped, keeping the history strictly timestamp-ordered.
func (s *Synchronizer) ApplySnapshot(snap protocol.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) > 0 && snap.Timestamp <= s.history[len(s.history)-1].serverTS {
		return
	}

	now := s.clock.Now()
	rec := snapshotRecord{
		serverTS:   snap.Timestamp,
		receivedAt: now,
		players:    make(map[uint32]protocol.PlayerState, len(snap.Players)),
		coins:      snap.Coins,
	}
	for _, ps := range snap.Players {
		rec.players[ps.ID] = ps
	}
	s.history = append(s.history, rec)
	s.trimHistory()

	if s.started {
		if self, ok := rec.players[s.selfID]; ok {
			s.reconcile(self, now)
		}
	}
}

// trimHistory drops the oldest snapshots once the retained span exceeds the
// history window, bounding memory while keeping enough past to interpolate.
func (s *Synchronizer) trimHistory() {
	newest := s.history[len(s.history)-1].serverTS
	cut := 0
	for cut < len(s.history)-1 &&
		time.Duration(newest-s.history[cut].serverTS)*time.Millisecond > s.params.HistoryWindow {
		cut++
	}
	if cut > 0 {
		s.history = append(s.history[:0:0], s.history[cut:]...)
	}
}

// reconcile corrects prediction drift against the server's authoritative
// report: drop every input the server has already applied, replay the rest
// from the server position, then respond to the divergence by tier.
func (s *Synchronizer) reconcile(self protocol.PlayerState, now time.Time) {
	s.score = self.Score
	ack := self.LastInputSeq

	if ack > s.lastAck {
		s.observePing(ack, self.LastInputTS, now)
		s.lastAck = ack
	}

	// Trim acknowledged inputs off the front of the queue.
	keep := 0
	for keep < len(s.pending) && s.pending[keep].seq <= ack {
		keep++
	}
	if keep > 0 {
		s.pending = append(s.pending[:0:0], s.pending[keep:]...)
	}

	// Replay what the server has not seen yet on top of its position.
	corrected := self.Position
	for _, p := range s.pending {
		corrected = s.params.Tunables.Integrate(corrected, p.direction, p.delta)
	}

	switch diff := dist(corrected, s.predicted); {
	case diff < s.params.SnapTolerance:
		// Negligible: the prediction is already right, keep it.
	case diff < s.params.SnapThreshold:
		// Moderate: adopt the corrected position as truth but carry the
		// difference as a visual offset that decays over the next
		// frames, so the entity glides instead of popping.
		rendered := add(s.predicted, s.correction)
		s.predicted = corrected
		s.correction = sub(rendered, corrected)
	default:
		// Severe: prediction is hopeless, snap.
		s.predicted = corrected
		s.correction = protocol.Vec2{}
	}
}

// observePing folds one round-trip sample into the moving average. The
// sample is measured from the send time of the newest acknowledged input
// when that input is still queued, otherwise from the server's echo of the
// input's own timestamp.
func (s *Synchronizer) observePing(ack uint32, echoTS uint32, now time.Time) {
	var sample time.Duration
	found := false
	for _, p := range s.pending {
		if p.seq == ack {
			sample = now.Sub(p.sentAt)
			found = true
			break
		}
	}
	if !found {
		if echoTS == 0 {
			return
		}
		sample = time.Duration(protocol.Millis(now)-echoTS) * time.Millisecond
	}
	if sample < 0 {
		return
	}

	if !s.havePing {
		s.ping = sample
		s.havePing = true
		return
	}
	s.ping += time.Duration(s.params.PingAlpha * float64(sample-s.ping))
}

func (s *Synchronizer) Ping() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ping
}

func dist(a, b protocol.Vec2) float32 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return float32(math.Sqrt(float64(dx*dx + dy*dy)))
}

func add(a, b protocol.Vec2) protocol.Vec2 {
	return protocol.Vec2{X: a.X + b.X, Y: a.Y + b.Y}
}

func sub(a, b protocol.Vec2) protocol.Vec2 {
	return protocol.Vec2{X: a.X - b.X, Y: a.Y - b.Y}
}

func lerp(a, b protocol.Vec2, t float32) protocol.Vec2 {
	return protocol.Vec2{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
	}
}

// sortPlayers keeps the view stable frame to frame.
func sortPlayers(players []PlayerView) {
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
}
