package console

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/muesli/termenv"
)

// handler renders records as "[georoute LEVEL] message key=value ...".
// Level tags are colored when the writer is a color-capable terminal.
type handler struct {
	mu    *sync.Mutex
	out   *termenv.Output
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
	group string
}

func newHandler(w io.Writer, level slog.Level) *handler {
	return &handler{
		mu:    &sync.Mutex{},
		out:   termenv.NewOutput(w),
		w:     w,
		level: level,
	}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *handler) tag(level slog.Level) string {
	switch {
	case level >= LevelFatal:
		return h.out.String("[georoute FATAL]").Foreground(termenv.ANSIRed).Bold().String()
	case level >= slog.LevelError:
		return h.out.String("[georoute ERROR]").Foreground(termenv.ANSIRed).Bold().String()
	case level >= slog.LevelWarn:
		return h.out.String("[georoute WARNING]").Foreground(termenv.ANSIYellow).Bold().String()
	case level >= slog.LevelInfo:
		return "[georoute INFO]"
	default:
		return "[georoute DEBUG]"
	}
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.WriteString(h.tag(r.Level))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	writeAttr := func(a slog.Attr) bool {
		if a.Equal(slog.Attr{}) {
			return true
		}
		buf.WriteByte(' ')
		if h.group != "" {
			buf.WriteString(h.group)
			buf.WriteByte('.')
		}
		buf.WriteString(a.Key)
		buf.WriteByte('=')
		buf.WriteString(a.Value.Resolve().String())
		return true
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(writeAttr)
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &h2
}

func (h *handler) WithGroup(name string) slog.Handler {
	h2 := *h
	if h2.group != "" {
		h2.group += "." + name
	} else {
		h2.group = name
	}
	return &h2
}
