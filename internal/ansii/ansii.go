package ansii

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

type ANSI string

const (
	reset       ANSI = "\033[0m"
	plain       ANSI = ""
	bold        ANSI = "\033[1m"
	underline   ANSI = "\033[4m"
	black       ANSI = "\033[30m"
	red         ANSI = "\033[31m"
	green       ANSI = "\033[32m"
	yellow      ANSI = "\033[33m"
	blue        ANSI = "\033[34m"
	purple      ANSI = "\033[35m"
	cyan        ANSI = "\033[36m"
	white       ANSI = "\033[37m"
	clearScreen ANSI = "\033[2J"
	hideCursor  ANSI = "\033[?25l"
	showCursor  ANSI = "\033[?25h"
)

// Offset is a terminal cell position, 1-based like the cursor escape codes.
type Offset struct {
	X int
	Y int
}

type style struct {
	Reset     ANSI
	Plain     ANSI
	Bold      ANSI
	Underline ANSI
}

type color struct {
	Black  ANSI
	Red    ANSI
	Green  ANSI
	Yellow ANSI
	Blue   ANSI
	Purple ANSI
	Cyan   ANSI
	White  ANSI
}

type screen struct {
	ClearScreen ANSI
	HideCursor  ANSI
	ShowCursor  ANSI
}

type ascii struct {
	Block string
}

func GetTermSize() (width int, height int) {
	var fd int = int(os.Stdout.Fd())
	width, height, err := term.GetSize(fd)
	if err != nil {
		fmt.Println(string(Screen.ClearScreen) + "Fatal: error getting terminal size.")
		os.Exit(1)
	}
	return width, height
}

func MakeTermRaw() (*term.State, error) {
	var fd int = int(os.Stdout.Fd())
	return term.MakeRaw(fd)
}

func RestoreTerm(prev *term.State) error {
	var fd int = int(os.Stdout.Fd())
	return term.Restore(fd, prev)
}

func (s screen) PlaceCursor(X, Y int) ANSI {
	return ANSI(fmt.Sprintf("\033[%d;%dH", Y, X))
}

var (
	Styles = style{Bold: bold, Underline: underline, Reset: reset, Plain: plain}
	Colors = color{Black: black, Red: red, Green: green, Yellow: yellow, Blue: blue, Purple: purple, Cyan: cyan, White: white}
	Screen = screen{ClearScreen: clearScreen, HideCursor: hideCursor, ShowCursor: showCursor}
	Blocks = ascii{Block: "█"}
)

// DrawBox draws the outline of a box with `offset` as its top left cell.
func DrawBox(builder *strings.Builder, offset Offset, height int, width int, style ANSI) {
	builder.WriteString(string(style))
	for hIdx := 0; hIdx < height; hIdx++ {
		if hIdx == 0 || hIdx == height-1 {
			for wIdx := 0; wIdx < width; wIdx++ {
				drawCell(builder, offset.X+wIdx, offset.Y+hIdx)
			}
		} else {
			drawCell(builder, offset.X, offset.Y+hIdx)
			drawCell(builder, offset.X+width-1, offset.Y+hIdx)
		}
	}
	builder.WriteString(string(Styles.Reset))
}

func drawCell(builder *strings.Builder, x, y int) {
	builder.WriteString(string(Screen.PlaceCursor(x, y) + ANSI(Blocks.Block)))
}

func DrawCellStyle(builder *strings.Builder, offset Offset, style ANSI) {
	builder.WriteString(string(style))
	drawCell(builder, offset.X, offset.Y)
	builder.WriteString(string(Styles.Reset))
}

// WriteAt places styled text at a cell without drawing a block.
func WriteAt(builder *strings.Builder, offset Offset, style ANSI, text string) {
	builder.WriteString(string(Screen.PlaceCursor(offset.X, offset.Y)))
	builder.WriteString(string(style))
	builder.WriteString(text)
	builder.WriteString(string(Styles.Reset))
}
