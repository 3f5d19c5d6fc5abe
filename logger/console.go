package logger

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Console prints human-oriented progress lines through a slog.Logger.
type Console struct {
	Logger    *slog.Logger
	Colorized bool

	out io.Writer
}

func NewConsole(opts *RichLoggerOptions) *Console {
	if opts == nil {
		opts = DefaultOptions()
	}
	handler := NewRichHandler(opts)

	return &Console{
		Logger:    slog.New(handler),
		Colorized: opts.EnableColors && !opts.EnableJSON,
		out:       handler.opts.Output,
	}
}

func (c *Console) StartTimer(name string) *Timer {
	return &Timer{
		Name:      name,
		StartTime: time.Now(),
		Console:   c,
	}
}

func (c *Console) decorate(prefix, color, format string, args []interface{}) string {
	msg := prefix + fmt.Sprintf(format, args...)
	if c.Colorized && color != "" {
		msg = color + msg + Reset
	}
	return msg
}

func (c *Console) Success(format string, args ...interface{}) {
	c.Logger.Info(c.decorate("✓ ", Green+Bold, format, args))
}

func (c *Console) Info(format string, args ...interface{}) {
	c.Logger.Info(c.decorate("ℹ ", Blue+Bold, format, args))
}

func (c *Console) Log(format string, args ...interface{}) {
	c.Logger.Info(c.decorate("", "", format, args))
}

func (c *Console) Debug(format string, args ...interface{}) {
	c.Logger.Debug(c.decorate("· ", Cyan, format, args))
}

func (c *Console) Warn(format string, args ...interface{}) {
	c.Logger.Warn(c.decorate("⚠ ", Yellow+Bold, format, args))
}

func (c *Console) Error(format string, args ...interface{}) {
	c.Logger.Error(c.decorate("✖ ", Red+Bold, format, args))
}

func (c *Console) NewTable(headers []string) *Table {
	return NewTable(headers, c.out)
}
