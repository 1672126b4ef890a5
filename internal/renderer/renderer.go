package renderer

import (
	"fmt"
	"os"
	"strings"
	"time"

	"coindash/internal/ansii"
	"coindash/internal/client"
	"coindash/internal/game"
	"coindash/internal/protocol"
)

const (
	targetFps = 30
	hudRows   = 2
)

// Run owns the terminal until the user quits or the connection drops. It
// reads keys on one goroutine, and on a fixed frame tick sends the latest
// direction to the server and draws the synchronizer's view.
func Run(c *client.Client, s *client.Synchronizer, tun game.Tunables) error {
	prev, err := ansii.MakeTermRaw()
	if err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	defer func() {
		os.Stdout.WriteString(string(ansii.Screen.ShowCursor))
		os.Stdout.WriteString(string(ansii.Screen.ClearScreen))
		os.Stdout.WriteString(string(ansii.Screen.PlaceCursor(1, 1)))
		ansii.RestoreTerm(prev)
	}()
	os.Stdout.WriteString(string(ansii.Screen.HideCursor))

	quit := make(chan struct{})
	directions := make(chan protocol.Vec2, 16)
	go readKeys(directions, quit)

	ticker := time.NewTicker(time.Second / targetFps)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return nil
		case now := <-ticker.C:
		drain:
			for {
				select {
				case dir := <-directions:
					c.SendInput(dir)
				default:
					break drain
				}
			}

			view := s.Frame(now)
			drawFrame(view, tun)
			if !view.Connected {
				return fmt.Errorf("server closed the connection")
			}
		}
	}
}

func readKeys(directions chan<- protocol.Vec2, quit chan<- struct{}) {
	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			close(quit)
			return
		}
		action := ParseKey(buf[:n])
		switch action {
		case Quit:
			close(quit)
			return
		case Up, Down, Left, Right:
			select {
			case directions <- action.Direction():
			default: // renderer is behind, drop the key
			}
		}
	}
}

func drawFrame(view client.View, tun game.Tunables) {
	termWidth, termHeight := ansii.GetTermSize()
	fieldHeight := termHeight - hudRows

	var builder strings.Builder
	builder.WriteString(string(ansii.Screen.ClearScreen))
	ansii.DrawBox(&builder, ansii.Offset{X: 1, Y: 1}, fieldHeight, termWidth, ansii.Colors.White)

	// World coordinates scale onto the cells inside the border.
	toCell := func(pos protocol.Vec2) ansii.Offset {
		x := 2 + int(pos.X/tun.WorldWidth*float32(termWidth-2))
		y := 2 + int(pos.Y/tun.WorldHeight*float32(fieldHeight-2))
		return ansii.Offset{X: clampCell(x, 2, termWidth-1), Y: clampCell(y, 2, fieldHeight-1)}
	}

	for _, coin := range view.Coins {
		ansii.DrawCellStyle(&builder, toCell(coin.Position), ansii.Colors.Yellow)
	}

	var selfScore uint32
	for _, p := range view.Players {
		style := ansii.Colors.Cyan
		if p.Self {
			style = ansii.Colors.Green
			selfScore = p.Score
		}
		ansii.DrawCellStyle(&builder, toCell(p.Position), style)
	}

	hud := fmt.Sprintf("score %d   ping %dms   wasd/arrows move, q quits",
		selfScore, view.Ping.Milliseconds())
	if !view.Started {
		hud = "waiting for another player..."
	}
	if !view.Connected {
		hud = "disconnected"
	}
	ansii.WriteAt(&builder, ansii.Offset{X: 1, Y: termHeight - 1}, ansii.Styles.Bold, hud)

	os.Stdout.WriteString(builder.String())
}

func clampCell(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
