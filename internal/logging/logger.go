package logging

import (
	"io"
	"log/slog"
	"os"
)

type config struct {
	out  io.Writer
	json bool
}

// Option tweaks the logger built by New.
type Option func(*config)

// WithWriter sends records to w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.out = w }
}

// WithJSON switches to JSON records (for the HTTP server and log shippers).
func WithJSON() Option {
	return func(c *config) { c.json = true }
}

// New creates the application logger.
// It writes to stderr by default, keeping stdout free for rendered output and
// the MCP stdio transport, and renames the "error" key to "err".
func New(level slog.Level, opts ...Option) *slog.Logger {
	cfg := config{out: os.Stderr}
	for _, opt := range opts {
		opt(&cfg)
	}

	handlerOpts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}
	if cfg.json {
		return slog.New(slog.NewJSONHandler(cfg.out, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(cfg.out, handlerOpts))
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
