// Package logging provides the leveled logger shared by the reader, the
// writer and the command line host.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
)

// Config selects where log lines go.
type Config struct {
	// File is the log file path; empty means stderr.
	File string `yaml:"file"`

	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int `yaml:"maxSizeMB"`

	// MaxAgeDays is how long rotated files are kept.
	MaxAgeDays int `yaml:"maxAgeDays"`

	// Verbose enables Debugf output.
	Verbose bool `yaml:"-"`
}

// Logger writes timestamped, leveled lines. It is safe for concurrent use.
type Logger struct {
	out     *log.Logger
	closer  io.Closer
	verbose bool
}

// New builds a logger from cfg. Call Close when done if cfg.File was set.
func New(cfg Config) (*Logger, error) {
	if cfg.File == "" {
		return NewWriter(os.Stderr, cfg.Verbose), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	lj := &lumberjack.Logger{
		Filename: cfg.File,
		MaxSize:  cfg.MaxSizeMB,  // megabytes
		MaxAge:   cfg.MaxAgeDays, // days
	}
	l := NewWriter(lj, cfg.Verbose)
	l.closer = lj
	return l, nil
}

// NewWriter logs to w.
func NewWriter(w io.Writer, verbose bool) *Logger {
	return &Logger{
		out:     log.New(w, "", log.LstdFlags),
		verbose: verbose,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWriter(io.Discard, false)
}

// Close closes the rotating log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Verbose reports whether debug lines are emitted.
func (l *Logger) Verbose() bool {
	return l != nil && l.verbose
}

func (l *Logger) line(level, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.out.Printf("%-5s %s", level, fmt.Sprintf(format, args...))
}

// Debugf logs only when the logger is verbose.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.Verbose() {
		return
	}
	l.line("DEBUG", format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.line("INFO", format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.line("WARN", format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.line("ERROR", format, args...)
}
