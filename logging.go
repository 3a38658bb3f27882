package otsim

import (
	"fmt"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// NewLogger builds a logger that fans records out to stderr and, when logFile
// is non-empty, to a per-process log file. The returned func closes the file.
func NewLogger(logFile string) (*slog.Logger, func(), error) {
	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, nil),
	}
	closer := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewTextHandler(f, nil))
		closer = func() { _ = f.Close() }
	}
	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}
