package netwrk

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/exp/rand"

	"coindash/internal/protocol"
)

// testOptions removes the WAN simulation and tightens the timers so the
// end-to-end tests finish quickly.
func testOptions() Options {
	opts := DefaultOptions()
	opts.SimulatedLatency = 0
	opts.BroadcastInterval = 10 * time.Millisecond
	opts.CoinRespawnInterval = 100 * time.Millisecond
	return opts
}

func startTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := NewServer(ln, opts, clockwork.NewRealClock(), rand.New(rand.NewSource(7)))
	go s.Run()
	t.Cleanup(s.Stop)
	return s
}

func dialTestServer(t *testing.T, s *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := conn.Write(protocol.EncodeConnect()); err != nil {
		t.Fatalf("send hello: %v", err)
	}
	return conn
}

func readFrameWithin(t *testing.T, conn net.Conn, d time.Duration) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(d))
	frame, err := ReadFrame(conn)
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	return frame
}

// nextSnapshot skips frames until a snapshot arrives.
func nextSnapshot(t *testing.T, conn net.Conn) protocol.Snapshot {
	t.Helper()
	for i := 0; i < 50; i++ {
		frame := readFrameWithin(t, conn, time.Second)
		if protocol.MessageKind(frame[0]) != protocol.ServerSnapshot {
			continue
		}
		snap, err := protocol.DecodeSnapshot(frame)
		if err != nil {
			t.Fatalf("decoding snapshot: %v", err)
		}
		return snap
	}
	t.Fatal("no snapshot within 50 frames")
	return protocol.Snapshot{}
}

func TestGameStartGatingAndCoinLifecycle(t *testing.T) {
	s := startTestServer(t, testOptions())

	// First player: gets its id, sees itself in snapshots, but the game
	// must not start (no coins) until the second player joins.
	c1 := dialTestServer(t, s)
	frame := readFrameWithin(t, c1, time.Second)
	id1, err := protocol.DecodeGameStart(frame)
	if err != nil {
		t.Fatalf("expected game start notice first, got kind %d", frame[0])
	}
	if id1 != 1 {
		t.Errorf("first player id: got %d, want 1", id1)
	}

	snap := nextSnapshot(t, c1)
	if len(snap.Players) != 1 {
		t.Errorf("solo roster: got %d players, want 1", len(snap.Players))
	}
	if len(snap.Coins) != 0 {
		t.Errorf("game started with one player: %d coins", len(snap.Coins))
	}

	// Second player joins: the game starts with exactly the initial batch.
	c2 := dialTestServer(t, s)
	frame = readFrameWithin(t, c2, time.Second)
	id2, err := protocol.DecodeGameStart(frame)
	if err != nil {
		t.Fatalf("second player game start: %v", err)
	}
	if id2 != 2 {
		t.Errorf("second player id: got %d, want 2", id2)
	}

	var started protocol.Snapshot
	for i := 0; i < 50; i++ {
		started = nextSnapshot(t, c1)
		if len(started.Coins) > 0 {
			break
		}
	}
	if len(started.Players) != 2 {
		t.Errorf("roster after second join: got %d players, want 2", len(started.Players))
	}
	if len(started.Coins) != testOptions().Tunables.InitialCoins {
		t.Errorf("coins right after start: got %d, want %d",
			len(started.Coins), testOptions().Tunables.InitialCoins)
	}

	// Nobody moves, so nothing is collected: across several respawn
	// intervals the coin count must only ever grow.
	last := len(started.Coins)
	deadline := time.Now().Add(350 * time.Millisecond)
	for time.Now().Before(deadline) {
		n := len(nextSnapshot(t, c1).Coins)
		if n < last {
			t.Fatalf("coin count dropped from %d to %d without a collection", last, n)
		}
		last = n
	}
	if last <= testOptions().Tunables.InitialCoins {
		t.Errorf("spawner never added a coin: still %d after several intervals", last)
	}
}

func TestInputMovesPlayerInSnapshots(t *testing.T) {
	s := startTestServer(t, testOptions())
	c1 := dialTestServer(t, s)
	c2 := dialTestServer(t, s)
	_ = readFrameWithin(t, c2, time.Second) // game start notice

	start := nextSnapshot(t, c1)
	var before float32
	for _, p := range start.Players {
		if p.ID == 1 {
			before = p.Position.X
		}
	}

	for seq := uint32(1); seq <= 5; seq++ {
		in := protocol.Input{Direction: protocol.Vec2{X: 1}, Timestamp: 1000 + seq, Seq: seq}
		if _, err := c1.Write(protocol.EncodeInput(in)); err != nil {
			t.Fatalf("send input: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		snap := nextSnapshot(t, c1)
		for _, p := range snap.Players {
			if p.ID != 1 {
				continue
			}
			if p.Position.X > before && p.LastInputSeq == 5 && p.LastInputTS == 1005 {
				return // moved and echoed, all good
			}
		}
	}
	t.Fatal("player never moved right or input echo never arrived")
}

func TestMalformedBodyIsDroppedConnectionSurvives(t *testing.T) {
	s := startTestServer(t, testOptions())
	c1 := dialTestServer(t, s)
	c2 := dialTestServer(t, s)
	_ = c2

	// Valid framing, garbage body: an input message two bytes long.
	bad := make([]byte, protocol.HeaderSize+2)
	bad[0] = byte(protocol.ClientInput)
	binary.BigEndian.PutUint32(bad[1:], uint32(len(bad)))
	if _, err := c1.Write(bad); err != nil {
		t.Fatalf("send malformed input: %v", err)
	}

	// The message is dropped but the connection must stay open and keep
	// receiving broadcasts.
	for i := 0; i < 3; i++ {
		nextSnapshot(t, c1)
	}
}

func TestInvalidDeclaredLengthTerminatesConnection(t *testing.T) {
	s := startTestServer(t, testOptions())
	c1 := dialTestServer(t, s)
	c2 := dialTestServer(t, s)

	// A header declaring a length beyond the cap desynchronizes the
	// stream; the server must drop this connection.
	bad := make([]byte, protocol.HeaderSize)
	bad[0] = byte(protocol.ClientInput)
	binary.BigEndian.PutUint32(bad[1:], protocol.MaxMessageSize+1)
	if _, err := c1.Write(bad); err != nil {
		t.Fatalf("send bad header: %v", err)
	}

	c1.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, err := ReadFrame(c1); err != nil {
			break // torn down, as required
		}
	}

	// The other connection is unaffected and its roster shrinks to one.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(nextSnapshot(t, c2).Players) == 1 {
			return
		}
	}
	t.Fatal("roster never dropped the terminated connection")
}

func TestDisconnectMessageRemovesPlayer(t *testing.T) {
	s := startTestServer(t, testOptions())
	c1 := dialTestServer(t, s)
	c2 := dialTestServer(t, s)

	if _, err := c1.Write(protocol.EncodeDisconnect()); err != nil {
		t.Fatalf("send goodbye: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(nextSnapshot(t, c2).Players) == 1 {
			return
		}
	}
	t.Fatal("roster kept the departed player")
}
