package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// ColorHandler is a slog.Handler that writes human-readable colored lines.
// Warnings render yellow, errors red, debug gray, and info lines that report
// persistence progress render green.
type ColorHandler struct {
	opts  slog.HandlerOptions
	mu    *sync.Mutex
	out   io.Writer
	attrs []slog.Attr
	group string
}

// NewColorHandler creates a ColorHandler writing to out.
func NewColorHandler(out io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	h := &ColorHandler{
		mu:  &sync.Mutex{},
		out: out,
	}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	return h
}

// NewDefaultLogger creates a colored logger at the given level writing to
// stderr.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Enabled implements slog.Handler.
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle implements slog.Handler.
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	sb.WriteString(colorGray)
	sb.WriteString(r.Time.Format(time.TimeOnly))
	sb.WriteString(colorReset)
	sb.WriteByte(' ')

	color := levelColor(r.Level, r.Message)
	sb.WriteString(color)
	sb.WriteString(fmt.Sprintf("%-5s", r.Level.String()))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)
	sb.WriteString(colorReset)

	writeAttr := func(a slog.Attr) {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		sb.WriteString(colorCyan)
		sb.WriteByte(' ')
		sb.WriteString(key)
		sb.WriteString(colorReset)
		sb.WriteByte('=')
		sb.WriteString(a.Value.String())
	}

	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, sb.String())
	return err
}

// WithAttrs implements slog.Handler.
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &h2
}

// WithGroup implements slog.Handler.
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	h2 := *h
	if h.group != "" {
		h2.group = h.group + "." + name
	} else {
		h2.group = name
	}
	return &h2
}

func levelColor(level slog.Level, msg string) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		if strings.Contains(strings.ToLower(msg), "persist") {
			return colorGreen
		}
		return ""
	default:
		return colorGray
	}
}
