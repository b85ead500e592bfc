// Package notify provides NotificationSink implementations.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const (
	colorSuccess lipgloss.Color = "#a6e3a1"
	colorError   lipgloss.Color = "#f38ba8"
)

type (
	// Sink surfaces success / failure messages.
	Sink interface {
		Success(message string)
		Failure(message string)
	}

	// Terminal writes styled messages to a terminal.
	Terminal struct {
		mu           sync.Mutex
		out          io.Writer
		successStyle lipgloss.Style
		failureStyle lipgloss.Style
	}

	// Logger writes messages to a structured logger.
	Logger struct {
		logger *slog.Logger
	}

	// Multi fans messages out to several sinks in order.
	Multi []Sink
)

// Success implements Sink interface.
func (t *Terminal) Success(message string) {
	t.write(t.successStyle.Render("✓ " + message))
}

// Failure implements Sink interface.
func (t *Terminal) Failure(message string) {
	t.write(t.failureStyle.Render("✗ " + message))
}

func (t *Terminal) write(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.out, line)
}

// NewTerminal creates a new Terminal sink.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{
		out:          out,
		successStyle: lipgloss.NewStyle().Foreground(colorSuccess),
		failureStyle: lipgloss.NewStyle().Foreground(colorError).Bold(true),
	}
}

// Success implements Sink interface.
func (l *Logger) Success(message string) {
	l.logger.Info(message, "outcome", "success")
}

// Failure implements Sink interface.
func (l *Logger) Failure(message string) {
	l.logger.Warn(message, "outcome", "failure")
}

// NewLogger creates a new Logger sink.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}

	return &Logger{logger: logger.With("component", "Notifications")}
}

// Success implements Sink interface.
func (m Multi) Success(message string) {
	for _, s := range m {
		s.Success(message)
	}
}

// Failure implements Sink interface.
func (m Multi) Failure(message string) {
	for _, s := range m {
		s.Failure(message)
	}
}
