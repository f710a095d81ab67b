// Package log provides logging utilities: colored console output for the
// CLI and a structured zap logger for the tunnel engine.
package log

import (
	"os"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var red = color.New(color.FgRed).FprintfFunc()
var blue = color.New(color.FgBlue).FprintfFunc()

// ErrorMsg prints an error message to stderr in red color.
func ErrorMsg(format string, a ...interface{}) {
	red(os.Stderr, "[!] Error: "+format, a...)
}

// InfoMsg prints an informational message to stderr in blue color.
func InfoMsg(format string, a ...interface{}) {
	blue(os.Stderr, "[+] "+format, a...)
}

// Logger carries the console helpers plus a verbosity switch so that
// components can emit debug output only when requested.
type Logger struct {
	Verbose bool
}

// NewLogger creates a Logger with the given verbosity.
func NewLogger(verbose bool) *Logger {
	return &Logger{Verbose: verbose}
}

// ErrorMsg prints an error message to stderr in red color.
func (l *Logger) ErrorMsg(format string, a ...interface{}) {
	ErrorMsg(format, a...)
}

// InfoMsg prints an informational message to stderr in blue color.
func (l *Logger) InfoMsg(format string, a ...interface{}) {
	InfoMsg(format, a...)
}

// VerboseMsg prints a message to stderr only when verbose mode is on.
func (l *Logger) VerboseMsg(format string, a ...interface{}) {
	if l == nil || !l.Verbose {
		return
	}
	blue(os.Stderr, "[v] "+format+"\n", a...)
}

// NewEngine builds the structured logger used inside the tunnel engine.
// It logs to stderr so stdout stays free for the IPC envelope. Verbose
// lowers the level to Debug.
func NewEngine(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}

	return cfg.Build()
}
