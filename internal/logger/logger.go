package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger wraps log.Logger with file persistence.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	std     *log.Logger
	verbose bool
}

// New creates a file-based logger rooted at dir.
func New(dir string, verbose bool) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("hotdrop-%s.log", time.Now().Format("20060102"))
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	lg := &Logger{file: file, verbose: verbose}
	lg.std = log.New(file, "", log.LstdFlags|log.Lmicroseconds)
	return lg, nil
}

// NewWriter logs to an arbitrary writer; nothing is closed on Close.
func NewWriter(w io.Writer, verbose bool) *Logger {
	return &Logger{std: log.New(w, "", log.LstdFlags|log.Lmicroseconds), verbose: verbose}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWriter(io.Discard, false)
}

// Close flushes and closes underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.std = nil
		return err
	}
	return nil
}

// Debug logs only when the logger was created verbose.
func (l *Logger) Debug(format string, args ...any) {
	if l == nil || !l.verbose {
		return
	}
	l.output("DEBUG", format, args...)
}

// Info logs informational messages.
func (l *Logger) Info(format string, args ...any) {
	l.output("INFO", format, args...)
}

// Warn logs recoverable problems.
func (l *Logger) Warn(format string, args ...any) {
	l.output("WARN", format, args...)
}

// Error logs error messages.
func (l *Logger) Error(format string, args ...any) {
	l.output("ERROR", format, args...)
}

func (l *Logger) output(level, format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.std == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.std.Printf("[%s] %s", level, msg)
}
