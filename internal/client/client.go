package client

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog/log"

	"coindash/internal/netwrk"
	"coindash/internal/protocol"
)

// Client is the network half of the controller: it owns the TCP connection
// and feeds decoded server messages into the synchronizer. Rendering and
// input sampling run on their own control flow and only meet the network
// through the synchronizer's mutex.
type Client struct {
	conn net.Conn
	sync *Synchronizer

	writeMu sync.Mutex
}

// Dial connects, announces the client, and marks the synchronizer connected.
// A failure here is fatal to the caller; there is no game without a server.
func Dial(addr string, s *Synchronizer) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial game server at %s: %w", addr, err)
	}
	c := &Client{conn: conn, sync: s}
	if err := c.write(protocol.EncodeConnect()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}
	s.SetConnected(true)
	log.Info().Str("server", addr).Msg("connected")
	return c, nil
}

// Run reads and dispatches frames until the connection drops, then flips the
// synchronizer to disconnected. It blocks; run it on its own goroutine.
func (c *Client) Run() {
	for {
		frame, err := netwrk.ReadFrame(c.conn)
		if err != nil {
			c.sync.SetConnected(false)
			if !errors.Is(err, net.ErrClosed) {
				log.Warn().Err(err).Msg("server connection lost")
			}
			return
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame []byte) {
	switch protocol.MessageKind(frame[0]) {
	case protocol.ServerGameStart:
		id, err := protocol.DecodeGameStart(frame)
		if err != nil {
			log.Debug().Err(err).Msg("dropping malformed game start")
			return
		}
		log.Info().Uint32("player_id", id).Msg("game started, controlling entity")
		c.sync.HandleGameStart(id)

	case protocol.ServerSnapshot:
		snap, err := protocol.DecodeSnapshot(frame)
		if err != nil {
			log.Debug().Err(err).Msg("dropping malformed snapshot")
			return
		}
		c.sync.ApplySnapshot(snap)

	default:
		log.Debug().Uint8("kind", frame[0]).Msg("dropping message of unknown kind")
	}
}

// SendInput predicts the movement locally and ships the input to the server.
func (c *Client) SendInput(dir protocol.Vec2) {
	in, ok := c.sync.LocalInput(dir)
	if !ok {
		return
	}
	if err := c.write(protocol.EncodeInput(in)); err != nil {
		log.Debug().Err(err).Msg("input write failed")
	}
}

// Close says goodbye best-effort and closes the connection.
func (c *Client) Close() {
	if err := c.write(protocol.EncodeDisconnect()); err == nil {
		log.Debug().Msg("sent goodbye")
	}
	c.conn.Close()
}

func (c *Client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(data)
	return err
}
