package ui

import (
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI color and style constants for CLI output
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

// Enabled turns styling on. It is off when NO_COLOR is set or stdout is not
// a terminal.
var Enabled = os.Getenv("NO_COLOR") == "" && isatty.IsTerminal(os.Stdout.Fd())

func style(codes, s string) string {
	if !Enabled {
		return s
	}
	return codes + s + ColorReset
}

func Bold(s string) string {
	return style(ColorBold+ColorWhite, s)
}

// Heading is used for the command name at the top of help output.
func Heading(s string) string {
	return style(ColorBold+ColorCyan, s)
}

func Command(s string) string {
	return style(ColorCyan, s)
}

func Highlight(s string) string {
	return style(ColorYellow, s)
}

func Dim(s string) string {
	return style(ColorDim, s)
}

func Success(s string) string {
	return style(ColorGreen, s)
}

func Info(s string) string {
	return style(ColorDim+ColorYellow, s)
}

func Error(s string) string {
	return style(ColorRed, s)
}
