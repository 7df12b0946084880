package logging

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// Session identifies one CLI invocation in every log line it produces.
type Session struct {
	ID      string
	Command string
}

// NewSession starts a session for command with a fresh random ID.
func NewSession(command string) Session {
	return Session{ID: uuid.NewString(), Command: command}
}

// Attrs returns the attributes stamped on each record
func (s Session) Attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 2)
	if s.ID != "" {
		attrs = append(attrs, slog.String("session", s.ID))
	}
	if s.Command != "" {
		attrs = append(attrs, slog.String("command", s.Command))
	}
	return attrs
}

// fanout hands every record to each of its handlers that accepts the level.
type fanout []slog.Handler

// Fanout combines handlers into one. Nil handlers are dropped and a single
// remaining handler is returned as is.
func Fanout(handlers ...slog.Handler) slog.Handler {
	f := make(fanout, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			f = append(f, h)
		}
	}
	if len(f) == 1 {
		return f[0]
	}
	return f
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle keeps going after a failing handler and reports all failures.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
