package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/term"
)

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// ReadInput reads a workflow file. "-" reads stdin, in which case name
// supplies the filename used for format detection.
func ReadInput(path, name string, stdin io.Reader) (string, []byte, error) {
	if path == "-" {
		if name == "" {
			return "", nil, fmt.Errorf("reading stdin requires --name (e.g. --name workflow.png)")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return name, data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	if name == "" {
		name = filepath.Base(path)
	}
	return name, data, nil
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// WriteJSON encodes v to w, indented when pretty is set.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// PrintSystemMessage prints a standardized status line to w.
func PrintSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}
