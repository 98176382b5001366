package mtproto

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// LogHandler receives level-tagged log lines from the sender.
type LogHandler interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(err error, msg string)
}

// Logger wraps a LogHandler with printf-style formatting, so call sites
// read like `l.Debug("popped %d pending packet(s)", n)`.
type Logger struct {
	hnd LogHandler
}

func NewLogger(hnd LogHandler) Logger { return Logger{hnd: hnd} }

func (l Logger) Debug(format string, args ...any) {
	if l.hnd == nil {
		return
	}
	l.hnd.Debug(fmt.Sprintf(format, args...))
}

func (l Logger) Info(format string, args ...any) {
	if l.hnd == nil {
		return
	}
	l.hnd.Info(fmt.Sprintf(format, args...))
}

func (l Logger) Warn(format string, args ...any) {
	if l.hnd == nil {
		return
	}
	l.hnd.Warn(fmt.Sprintf(format, args...))
}

func (l Logger) Error(err error, format string, args ...any) {
	if l.hnd == nil {
		return
	}
	l.hnd.Error(err, fmt.Sprintf(format, args...))
}

// SimpleLogHandler renders level-tagged, color-coded lines to stderr.
// Color is disabled automatically when stderr isn't a terminal.
type SimpleLogHandler struct {
	writer io.Writer
	plain  bool
}

func NewSimpleLogHandler() *SimpleLogHandler {
	return &SimpleLogHandler{
		writer: colorable.NewColorable(os.Stderr),
		plain:  !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}
}

func (h *SimpleLogHandler) line(c *color.Color, level, msg string) {
	ts := time.Now().Format("15:04:05.000")
	if h.plain {
		fmt.Fprintf(h.writer, "%s [%s] %s\n", ts, level, msg)
		return
	}
	c.Fprintf(h.writer, "%s [%s] %s\n", ts, level, msg)
}

func (h *SimpleLogHandler) Debug(msg string) {
	h.line(color.New(color.FgHiBlack), "DEBUG", msg)
}

func (h *SimpleLogHandler) Info(msg string) {
	h.line(color.New(color.FgCyan), "INFO", msg)
}

func (h *SimpleLogHandler) Warn(msg string) {
	h.line(color.New(color.FgYellow), "WARN", msg)
}

func (h *SimpleLogHandler) Error(err error, msg string) {
	h.line(color.New(color.FgRed, color.Bold), "ERROR", fmt.Sprintf("%s: %v", msg, err))
}
