package protocol

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestInputRoundTrip(t *testing.T) {
	in := Input{
		Direction: Vec2{X: -0.5, Y: 1},
		Timestamp: 123456789,
		Seq:       42,
	}

	data := EncodeInput(in)
	got, err := DecodeInput(data)
	if err != nil {
		t.Fatalf("DecodeInput: %v", err)
	}
	if got != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, in)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := Snapshot{
		Timestamp: 987654321,
		Players: []PlayerState{
			{ID: 1, Position: Vec2{X: 400, Y: 300}, Score: 0, LastInputSeq: 0, LastInputTS: 0},
			{ID: 2, Position: Vec2{X: 25.5, Y: 574.25}, Score: 7, LastInputSeq: 190, LastInputTS: 555555},
			{ID: 9, Position: Vec2{X: 775, Y: 25}, Score: 3, LastInputSeq: 88, LastInputTS: 444444},
		},
		Coins: []CoinState{
			{ID: 100, Position: Vec2{X: 20, Y: 20}},
			{ID: 101, Position: Vec2{X: 780, Y: 580}},
		},
	}

	data, err := EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	got, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}

	if got.Timestamp != snap.Timestamp {
		t.Errorf("timestamp: got %d, want %d", got.Timestamp, snap.Timestamp)
	}
	if len(got.Players) != len(snap.Players) || len(got.Coins) != len(snap.Coins) {
		t.Fatalf("counts: got %d/%d, want %d/%d",
			len(got.Players), len(got.Coins), len(snap.Players), len(snap.Coins))
	}
	for i, ps := range snap.Players {
		if got.Players[i] != ps {
			t.Errorf("player %d: got %+v, want %+v", i, got.Players[i], ps)
		}
	}
	for i, cs := range snap.Coins {
		if got.Coins[i] != cs {
			t.Errorf("coin %d: got %+v, want %+v", i, got.Coins[i], cs)
		}
	}
}

func TestHeaderLayout(t *testing.T) {
	data := EncodeGameStart(7)

	if len(data) != HeaderSize+4 {
		t.Fatalf("message length: got %d, want %d", len(data), HeaderSize+4)
	}
	if MessageKind(data[0]) != ServerGameStart {
		t.Errorf("kind byte: got %d, want %d", data[0], ServerGameStart)
	}
	if declared := binary.BigEndian.Uint32(data[1:5]); declared != uint32(len(data)) {
		t.Errorf("declared length: got %d, want %d", declared, len(data))
	}
	if id := binary.BigEndian.Uint32(data[5:9]); id != 7 {
		t.Errorf("player id on wire: got %d, want 7", id)
	}
}

func TestEmptyBodyMessages(t *testing.T) {
	for _, tc := range []struct {
		name string
		data []byte
		kind MessageKind
	}{
		{"connect", EncodeConnect(), ClientConnect},
		{"disconnect", EncodeDisconnect(), ClientDisconnect},
	} {
		if len(tc.data) != HeaderSize {
			t.Errorf("%s: length %d, want bare header %d", tc.name, len(tc.data), HeaderSize)
		}
		r := NewReader(tc.data)
		kind, length, err := r.ReadHeader()
		if err != nil {
			t.Fatalf("%s: ReadHeader: %v", tc.name, err)
		}
		if kind != tc.kind || length != HeaderSize {
			t.Errorf("%s: header got kind %d len %d, want kind %d len %d",
				tc.name, kind, length, tc.kind, HeaderSize)
		}
	}
}

func TestTruncatedMessagesFailCleanly(t *testing.T) {
	snap := Snapshot{
		Timestamp: 1000,
		Players:   []PlayerState{{ID: 1, Position: Vec2{X: 1, Y: 2}, Score: 3}},
		Coins:     []CoinState{{ID: 2, Position: Vec2{X: 3, Y: 4}}},
	}
	full, err := EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}

	// Every prefix shorter than the full message must fail with
	// ErrShortBuffer, never panic or return partial data as success.
	for n := 0; n < len(full); n++ {
		_, err := DecodeSnapshot(full[:n])
		if !errors.Is(err, ErrShortBuffer) {
			t.Errorf("prefix of %d bytes: got err %v, want ErrShortBuffer", n, err)
		}
	}

	if _, err := DecodeInput(EncodeInput(Input{})[:HeaderSize+3]); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("truncated input: got err %v, want ErrShortBuffer", err)
	}
}

func TestDecodeRejectsWrongKind(t *testing.T) {
	if _, err := DecodeInput(EncodeConnect()); err == nil {
		t.Error("DecodeInput accepted a connect message")
	}
	if _, err := DecodeSnapshot(EncodeInput(Input{Seq: 1})); err == nil {
		t.Error("DecodeSnapshot accepted an input message")
	}
	if _, err := DecodeGameStart(EncodeDisconnect()); err == nil {
		t.Error("DecodeGameStart accepted a disconnect message")
	}
}

func TestSnapshotRosterTooLarge(t *testing.T) {
	players := make([]PlayerState, 256)
	if _, err := EncodeSnapshot(Snapshot{Players: players}); err == nil {
		t.Error("EncodeSnapshot accepted 256 players")
	}
	coins := make([]CoinState, 300)
	if _, err := EncodeSnapshot(Snapshot{Coins: coins}); err == nil {
		t.Error("EncodeSnapshot accepted 300 coins")
	}
}
