package renderer

import "coindash/internal/protocol"

type UiAction int

const (
	Unknown UiAction = iota
	Quit
	Left
	Right
	Up
	Down
)

// ParseKey maps a raw stdin read (raw mode, so arrow keys arrive as
// 3-byte escape sequences) to a UI action.
func ParseKey(buf []byte) UiAction {
	if len(buf) == 0 {
		return Unknown
	}
	if len(buf) >= 3 && buf[0] == 0x1b && buf[1] == '[' {
		switch buf[2] {
		case 'A':
			return Up
		case 'B':
			return Down
		case 'C':
			return Right
		case 'D':
			return Left
		}
		return Unknown
	}
	switch buf[0] {
	case 'w', 'W':
		return Up
	case 's', 'S':
		return Down
	case 'a', 'A':
		return Left
	case 'd', 'D':
		return Right
	case 'q', 'Q', 0x1b, 0x03: // q, bare Esc, Ctrl-C
		return Quit
	}
	return Unknown
}

// Direction converts a movement action into a unit direction vector.
// Non-movement actions yield the zero vector.
func (a UiAction) Direction() protocol.Vec2 {
	switch a {
	case Up:
		return protocol.Vec2{Y: -1}
	case Down:
		return protocol.Vec2{Y: 1}
	case Left:
		return protocol.Vec2{X: -1}
	case Right:
		return protocol.Vec2{X: 1}
	}
	return protocol.Vec2{}
}
