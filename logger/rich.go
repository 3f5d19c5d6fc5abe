package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
)

type RichLoggerOptions struct {
	Output       io.Writer
	TimeFormat   string
	Level        slog.Level
	EnableJSON   bool
	EnableColors bool
	ShowTime     bool
}

func DefaultOptions() *RichLoggerOptions {
	return &RichLoggerOptions{
		Level:        slog.LevelInfo,
		EnableColors: true,
		ShowTime:     true,
		TimeFormat:   "2006-01-02 15:04:05.000",
		Output:       os.Stdout,
	}
}

// RichHandler is a slog.Handler that prints one line per record, either as
// coloured text or as a compact JSON object.
type RichHandler struct {
	opts   *RichLoggerOptions
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

func NewRichHandler(opts *RichLoggerOptions) *RichHandler {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &RichHandler{
		opts: opts,
		mu:   &sync.Mutex{},
	}
}

func (h *RichHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

func (h *RichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	for _, a := range attrs {
		h2.attrs = append(h2.attrs, h.qualify(a))
	}
	return h2
}

func (h *RichHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.groups = append(h2.groups, name)
	return h2
}

// clone shares the mutex so that derived handlers never interleave writes.
func (h *RichHandler) clone() *RichHandler {
	h2 := &RichHandler{
		opts:   h.opts,
		mu:     h.mu,
		attrs:  make([]slog.Attr, len(h.attrs)),
		groups: make([]string, len(h.groups)),
	}
	copy(h2.attrs, h.attrs)
	copy(h2.groups, h.groups)
	return h2
}

func (h *RichHandler) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) == 0 {
		return a
	}
	a.Key = strings.Join(h.groups, ".") + "." + a.Key
	return a
}

func (h *RichHandler) collectAttrs(record slog.Record) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(h.attrs)+record.NumAttrs())
	attrs = append(attrs, h.attrs...)
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.qualify(a))
		return true
	})
	return attrs
}

func (h *RichHandler) Handle(_ context.Context, record slog.Record) error {
	var line string
	if h.opts.EnableJSON {
		data, err := h.formatJSON(record)
		if err != nil {
			return err
		}
		line = string(data)
	} else {
		line = h.formatText(record)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := fmt.Fprintln(h.opts.Output, line)
	return err
}

func (h *RichHandler) formatJSON(record slog.Record) ([]byte, error) {
	jsonMap := make(map[string]interface{})

	if h.opts.ShowTime && !record.Time.IsZero() {
		jsonMap["time"] = record.Time.Format(h.opts.TimeFormat)
	}
	jsonMap["level"] = record.Level.String()
	jsonMap["msg"] = stripColors(record.Message)

	for _, a := range h.collectAttrs(record) {
		jsonMap[a.Key] = a.Value.Resolve().Any()
	}

	return json.Marshal(jsonMap)
}

var levelColors = map[slog.Level]string{
	slog.LevelDebug: Cyan,
	slog.LevelInfo:  Green,
	slog.LevelWarn:  Yellow,
	slog.LevelError: Red,
}

func (h *RichHandler) formatText(record slog.Record) string {
	var builder strings.Builder

	paint := func(color, s string) {
		if h.opts.EnableColors && color != "" {
			builder.WriteString(color)
			builder.WriteString(s)
			builder.WriteString(Reset)
			return
		}
		builder.WriteString(s)
	}

	if h.opts.ShowTime && !record.Time.IsZero() {
		paint(Blue, record.Time.Format(h.opts.TimeFormat))
		builder.WriteString(" ")
	}

	paint(levelColors[record.Level]+Bold, fmt.Sprintf("%-5s", strings.ToUpper(record.Level.String())))
	builder.WriteString(" ")

	builder.WriteString(record.Message)

	for _, a := range h.collectAttrs(record) {
		builder.WriteString(" ")
		paint(Magenta, a.Key+"=")
		builder.WriteString(a.Value.Resolve().String())
	}

	return builder.String()
}

// stripColors removes the ANSI sequences Console may have added to a message.
func stripColors(s string) string {
	if !strings.Contains(s, "\033[") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func NewRichLogger(opts *RichLoggerOptions) *slog.Logger {
	return slog.New(NewRichHandler(opts))
}
