package runner

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const verbosePrefix = "[parareq]"

const (
	ansiReset = "\x1b[0m"
	ansiDim   = "\x1b[2m"
	ansiGray  = "\x1b[90m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiBlue  = "\x1b[34m"
)

type verboseStyle int

const (
	styleDefault verboseStyle = iota
	styleAdmit
	styleSuccess
	styleRetry
	styleError
)

// logVerbose prints one styled progress line.
func logVerbose(writer io.Writer, noColor bool, style verboseStyle, format string, args ...any) {
	if writer == nil {
		return
	}
	palette := paletteFor(writer, noColor)
	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(writer, "%s %s\n", palette.prefix(verbosePrefix), palette.apply(style, line))
}

type verbosePalette struct {
	enabled bool
}

// paletteFor enables color only for TTY writers without NO_COLOR set.
func paletteFor(writer io.Writer, noColor bool) verbosePalette {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return verbosePalette{}
	}
	f, ok := writer.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return verbosePalette{}
	}
	return verbosePalette{enabled: true}
}

// prefix renders the dimmed log prefix.
func (p verbosePalette) prefix(text string) string {
	if !p.enabled {
		return text
	}
	return ansiDim + ansiGray + text + ansiReset
}

// apply colors a line for its style.
func (p verbosePalette) apply(style verboseStyle, line string) string {
	if !p.enabled {
		return line
	}
	switch style {
	case styleAdmit:
		return ansiBlue + line + ansiReset
	case styleSuccess:
		return ansiGreen + line + ansiReset
	case styleRetry:
		return ansiGray + line + ansiReset
	case styleError:
		return ansiRed + line + ansiReset
	default:
		return line
	}
}
