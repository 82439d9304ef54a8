// Package logger provides verbose logging for the recall CLI.
// When verbose mode is enabled via the --verbose flag, messages are written
// to stderr through a zap console encoder so users can follow index builds,
// retrieval and LLM calls. Nothing is written when verbose mode is off.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	sugar             = build(os.Stderr)
)

func build(w io.Writer) *zap.SugaredLogger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      bracketLevel,
		ConsoleSeparator: " ",
		LineEnding:       zapcore.DefaultLineEnding,
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel)
	return zap.New(core).Sugar()
}

func bracketLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + l.CapitalString() + "]")
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for verbose logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	sugar = build(w)
}

// Zap returns the underlying logger, or a no-op logger when not verbose.
func Zap() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose {
		return zap.NewNop()
	}
	return sugar.Desugar()
}

// active returns the logger when verbose, nil otherwise.
func active() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose {
		return nil
	}
	return sugar
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	if l := active(); l != nil {
		l.Debugf(format, args...)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	if l := active(); l != nil {
		l.Infof(format, args...)
	}
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	if l := active(); l != nil {
		l.Warnf(format, args...)
	}
}

// Debugw prints a message with key-value pairs if verbose mode is enabled.
func Debugw(msg string, keysAndValues ...any) {
	if l := active(); l != nil {
		l.Debugw(msg, keysAndValues...)
	}
}

// Infow prints a message with key-value pairs if verbose mode is enabled.
func Infow(msg string, keysAndValues ...any) {
	if l := active(); l != nil {
		l.Infow(msg, keysAndValues...)
	}
}

// Warnw prints a warning with key-value pairs if verbose mode is enabled.
func Warnw(msg string, keysAndValues ...any) {
	if l := active(); l != nil {
		l.Warnw(msg, keysAndValues...)
	}
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
