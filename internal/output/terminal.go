package output

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

const defaultTerminalWidth = 80

// TerminalWidth returns the current terminal width or a fallback when unavailable.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = defaultTerminalWidth
	}

	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if parsed, err := strconv.Atoi(cols); err == nil && parsed > 0 {
			return parsed
		}
	}

	return fallback
}

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Truncate shortens s to width runes, ending in "..." when cut.
func Truncate(s string, width int) string {
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
