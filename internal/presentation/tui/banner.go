package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ruleflow banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	// Using a subtle gradient-like color scheme (Indigo/Violet)
	lines := []struct{ text, color string }{
		{"             _       __ _               ", "#818cf8"},
		{"  _ __ _   _| | ___ / _| | _____      __", "#a78bfa"},
		{" | '__| | | | |/ _ \\ |_| |/ _ \\ \\ /\\ / /", "#c084fc"},
		{" | |  | |_| | |  __/  _| | (_) \\ V  V / ", "#e879f9"},
		{" |_|   \\__,_|_|\\___|_| |_|\\___/ \\_/\\_/  ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  "+version).Faint())
	fmt.Fprintln(w)
}
