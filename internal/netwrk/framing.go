// Package netwrk carries framed protocol messages over TCP: per-connection
// stream reassembly, the server's connection registry and run loop, the
// broadcast scheduler, and the delay queue that simulates WAN latency.
package netwrk

import (
	"encoding/binary"
	"errors"
	"io"

	"coindash/internal/protocol"
)

var (
	ErrFrameTooSmall = errors.New("netwrk: declared frame length smaller than header")
	ErrFrameTooLarge = errors.New("netwrk: declared frame length above cap")
)

// ReadFrame runs one cycle of the framing state machine: block for a full
// header, validate the declared length, then block for the body. It returns
// the complete message, header included.
//
// An insane declared length means the stream is desynchronized; without a
// frame checksum there is no way to validate a byte-skip resync, so the
// error is returned and the caller tears the connection down.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[1:])
	if length < protocol.HeaderSize {
		return nil, ErrFrameTooSmall
	}
	if length > protocol.MaxMessageSize {
		return nil, ErrFrameTooLarge
	}

	frame := make([]byte, length)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[protocol.HeaderSize:]); err != nil {
		return nil, err
	}
	return frame, nil
}
