package netwrk

import (
	"net"
	"sync"

	"github.com/rs/zerolog/log"
)

// Conn is one registered client connection. Outbound messages go through a
// buffered egress channel drained by a single writer goroutine, so writes on
// one connection are strictly serialized and never interleave.
type Conn struct {
	ID   uint32
	sock net.Conn

	mu     sync.Mutex
	closed bool
	egress chan []byte
}

func newConn(id uint32, sock net.Conn) *Conn {
	return &Conn{
		ID:     id,
		sock:   sock,
		egress: make(chan []byte, 64),
	}
}

// Send queues data for the writer goroutine. After Close it is a silent
// no-op, which lets delayed deliveries for a dead connection expire
// harmlessly instead of needing explicit cancellation.
func (c *Conn) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.egress <- data:
	default:
		log.Warn().Uint32("conn_id", c.ID).Msg("send queue full, dropping outbound message")
	}
}

// Close shuts the socket and stops the writer. Safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.egress)
	c.sock.Close()
}

// writeLoop drains egress onto the socket until the channel closes or a
// write fails. onError reports a failed write back to the server loop.
func (c *Conn) writeLoop(onError func(error)) {
	for data := range c.egress {
		if _, err := c.sock.Write(data); err != nil {
			onError(err)
			return
		}
	}
}
