package security

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the process logger: a text or JSON handler on w, wrapped
// in a RedactingHandler. Anything other than "json" selects text output.
func NewLogger(w io.Writer, format string, level slog.Leveler, redactor *Redactor) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(format, "json") {
		inner = slog.NewJSONHandler(w, opts)
	}
	return slog.New(NewRedactingHandler(inner, redactor))
}

// ParseLevel maps a config level name to a slog.Level. Unknown names map
// to info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// RedactingHandler scrubs the message and every attribute of a record
// before the inner handler sees it. Attributes whose key looks like a
// secret ("token", "password", ...) are replaced whatever their value.
type RedactingHandler struct {
	inner    slog.Handler
	redactor *Redactor
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler wraps inner.
func NewRedactingHandler(inner slog.Handler, redactor *Redactor) *RedactingHandler {
	return &RedactingHandler{inner: inner, redactor: redactor}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, h.redactor.Redact(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.scrub(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = h.scrub(a)
	}
	return NewRedactingHandler(h.inner.WithAttrs(scrubbed), h.redactor)
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return NewRedactingHandler(h.inner.WithGroup(name), h.redactor)
}

func (h *RedactingHandler) scrub(a slog.Attr) slog.Attr {
	// Resolve LogValuers first so their final form is what gets checked.
	a.Value = a.Value.Resolve()

	switch kind := a.Value.Kind(); {
	case kind == slog.KindGroup:
		attrs := a.Value.Group()
		scrubbed := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			scrubbed[i] = h.scrub(ga)
		}
		a.Value = slog.GroupValue(scrubbed...)
	case secretKeyPattern.MatchString(a.Key) && (kind == slog.KindString || kind == slog.KindAny):
		a.Value = slog.StringValue(RedactPlaceholder)
	case kind == slog.KindString:
		a.Value = slog.StringValue(h.redactor.Redact(a.Value.String()))
	case kind == slog.KindAny:
		// Errors and Stringers are logged through their text form.
		text := a.Value.String()
		if red := h.redactor.Redact(text); red != text {
			a.Value = slog.StringValue(red)
		}
	}
	return a
}
