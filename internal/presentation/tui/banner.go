package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`                        _     _`, "#34d399"},
	{`   __ _ _ __ __ _ _ __ | |__ | | ___ _ __  ___`, "#2dd4bf"},
	{`  / _' | '__/ _' | '_ \| '_ \| |/ _ \ '_ \/ __|`, "#22d3ee"},
	{` | (_| | | | (_| | |_) | | | | |  __/ | | \__ \`, "#38bdf8"},
	{`  \__, |_|  \__,_| .__/|_| |_|_|\___|_| |_|___/`, "#60a5fa"},
	{`  |___/          |_|`, "#818cf8"},
}

// PrintBanner writes the ASCII banner, colored when out is a color terminal.
func PrintBanner(out io.Writer) {
	o := termenv.NewOutput(out)
	p := o.ColorProfile()

	fmt.Fprintln(out)
	for _, l := range bannerLines {
		fmt.Fprintln(out, o.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(out)
}
