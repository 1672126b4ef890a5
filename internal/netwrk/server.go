package netwrk

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"coindash/internal/game"
	"coindash/internal/protocol"
)

// Options are the server's operational knobs.
type Options struct {
	// MinPlayers is how many connections must join before the game starts.
	MinPlayers int
	// BroadcastInterval is the fixed snapshot fan-out cadence. It is
	// independent of how often state mutates.
	BroadcastInterval time.Duration
	// CoinRespawnInterval schedules one new coin for the life of the game.
	CoinRespawnInterval time.Duration
	// SimulatedLatency delays every inbound dispatch and every outbound
	// send by this much, modeling a WAN in each direction. Zero disables
	// the delay path entirely.
	SimulatedLatency time.Duration

	Tunables game.Tunables
}

func DefaultOptions() Options {
	return Options{
		MinPlayers:          2,
		BroadcastInterval:   50 * time.Millisecond,
		CoinRespawnInterval: 3 * time.Second,
		SimulatedLatency:    200 * time.Millisecond,
		Tunables:            game.DefaultTunables(),
	}
}

// Server owns the listener, the connection registry and the authoritative
// session. One goroutine (Run) multiplexes every event that mutates
// canonical state — joins, inputs, disconnects, broadcast and spawn ticks —
// so the session needs no locking.
type Server struct {
	opts     Options
	clock    clockwork.Clock
	delay    *DelayQueue
	session  *game.Session
	listener net.Listener

	conns  map[uint32]*Conn
	nextID uint32

	events   chan any
	quit     chan struct{}
	stopOnce sync.Once
}

// Events consumed by the run loop.
type joinEvent struct{ sock net.Conn }
type frameEvent struct {
	connID uint32
	data   []byte
}
type leaveEvent struct {
	connID uint32
	err    error
}

func NewServer(listener net.Listener, opts Options, clock clockwork.Clock, rng *rand.Rand) *Server {
	return &Server{
		opts:     opts,
		clock:    clock,
		delay:    NewDelayQueue(clock),
		session:  game.NewSession(opts.Tunables, rng),
		listener: listener,
		conns:    make(map[uint32]*Conn),
		events:   make(chan any, 256),
		quit:     make(chan struct{}),
	}
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop closes the listener and shuts the run loop down.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.listener.Close()
	})
}

// Run accepts connections and drives the game until Stop. It blocks.
func (s *Server) Run() {
	go s.acceptLoop()

	broadcast := s.clock.NewTicker(s.opts.BroadcastInterval)
	defer broadcast.Stop()

	// Armed once the game starts.
	var spawnTicker clockwork.Ticker
	var spawnC <-chan time.Time
	defer func() {
		if spawnTicker != nil {
			spawnTicker.Stop()
		}
	}()

	for {
		select {
		case <-s.quit:
			for id := range s.conns {
				s.dropConn(id)
			}
			s.delay.Stop()
			return

		case ev := <-s.events:
			switch ev := ev.(type) {
			case joinEvent:
				s.handleJoin(ev.sock)
				if s.session.Running() && spawnC == nil {
					spawnTicker = s.clock.NewTicker(s.opts.CoinRespawnInterval)
					spawnC = spawnTicker.Chan()
				}
			case frameEvent:
				s.handleFrame(ev.connID, ev.data)
			case leaveEvent:
				if _, ok := s.conns[ev.connID]; ok {
					logDisconnect(ev.connID, ev.err)
					s.dropConn(ev.connID)
				}
			}

		case <-broadcast.Chan():
			s.broadcast()

		case <-spawnC:
			s.session.SpawnCoin()
		}
	}
}

func (s *Server) acceptLoop() {
	for {
		sock, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
			default:
				log.Error().Err(err).Msg("accept failed, no longer accepting connections")
			}
			return
		}
		s.post(joinEvent{sock: sock})
	}
}

// handleJoin registers the connection, assigns the next controller id, puts
// the player on the roster and tells the client which entity it controls.
// The game starts once enough controllers have joined.
func (s *Server) handleJoin(sock net.Conn) {
	s.nextID++
	c := newConn(s.nextID, sock)
	s.conns[c.ID] = c

	go c.writeLoop(func(err error) {
		s.post(leaveEvent{connID: c.ID, err: err})
	})
	go s.readLoop(c)

	s.session.AddPlayer(c.ID)
	s.sendDelayed(c, protocol.EncodeGameStart(c.ID))
	log.Info().Uint32("conn_id", c.ID).Str("remote", sock.RemoteAddr().String()).Msg("connection registered")

	if !s.session.Running() && len(s.conns) >= s.opts.MinPlayers {
		s.session.Start()
	}
}

// readLoop reassembles frames off one socket and hands them to the run loop
// through the inbound latency path. Any framing or transport error tears
// down only this connection.
func (s *Server) readLoop(c *Conn) {
	for {
		frame, err := ReadFrame(c.sock)
		if err != nil {
			s.post(leaveEvent{connID: c.ID, err: err})
			return
		}
		s.afterLatency(func() {
			s.post(frameEvent{connID: c.ID, data: frame})
		})
	}
}

// post hands an event to the run loop, giving up if the server is stopping.
func (s *Server) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.quit:
	}
}

// handleFrame dispatches one complete inbound message. A malformed body is
// dropped and the connection stays open.
func (s *Server) handleFrame(connID uint32, data []byte) {
	if _, ok := s.conns[connID]; !ok {
		// Delayed frame from a connection that died in flight.
		return
	}

	switch protocol.MessageKind(data[0]) {
	case protocol.ClientConnect:
		log.Debug().Uint32("conn_id", connID).Msg("client hello")

	case protocol.ClientInput:
		in, err := protocol.DecodeInput(data)
		if err != nil {
			log.Debug().Err(err).Uint32("conn_id", connID).Msg("dropping malformed input")
			return
		}
		s.session.ApplyInput(connID, in, s.clock.Now())

	case protocol.ClientDisconnect:
		log.Info().Uint32("conn_id", connID).Msg("client said goodbye")
		s.dropConn(connID)

	default:
		log.Debug().Uint8("kind", data[0]).Uint32("conn_id", connID).Msg("dropping message of unknown kind")
	}
}

// broadcast snapshots the session once and schedules an independently
// delayed delivery to every open connection.
func (s *Server) broadcast() {
	if len(s.conns) == 0 {
		return
	}
	snap := s.session.Snapshot(s.clock.Now())
	data, err := protocol.EncodeSnapshot(snap)
	if err != nil {
		log.Error().Err(err).Msg("snapshot does not fit the wire format, skipping broadcast")
		return
	}
	for _, c := range s.conns {
		s.sendDelayed(c, data)
	}
}

func (s *Server) sendDelayed(c *Conn, data []byte) {
	s.afterLatency(func() {
		c.Send(data)
	})
}

func (s *Server) afterLatency(fn func()) {
	if s.opts.SimulatedLatency <= 0 {
		fn()
		return
	}
	s.delay.Schedule(s.opts.SimulatedLatency, fn)
}

// dropConn removes the connection from the registry and its player from the
// roster. Idempotent: late error reports for an already-dropped id are
// ignored by the caller's registry check or by this lookup.
func (s *Server) dropConn(id uint32) {
	c, ok := s.conns[id]
	if !ok {
		return
	}
	delete(s.conns, id)
	c.Close()
	s.session.RemovePlayer(id)
}

func logDisconnect(id uint32, err error) {
	if err == nil || errors.Is(err, net.ErrClosed) {
		return
	}
	log.Info().Err(err).Uint32("conn_id", id).Msg("connection lost")
}
