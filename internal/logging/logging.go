// Package logging builds the CLI's zap logger and its logr bridge.
package logging

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level maps the -v and -q flags to a zap level.
// Warnings are shown by default, -v adds info and -vv adds debug.
func Level(verbose int, quiet bool) zapcore.Level {
	switch {
	case quiet:
		return zapcore.ErrorLevel
	case verbose >= 2:
		return zapcore.DebugLevel
	case verbose == 1:
		return zapcore.InfoLevel
	default:
		return zapcore.WarnLevel
	}
}

// New returns a console logger writing to w (stderr in the CLI).
func New(w io.Writer, verbose int, quiet bool, color bool) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	if color {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(Level(verbose, quiet)),
	)
	return zap.New(core)
}

// NewFromLevel builds a logger from a textual level such as "debug" or "warn".
func NewFromLevel(w io.Writer, level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

// Logr adapts a zap logger for the SDK packages, which accept logr.Logger.
// logr V(n) maps to zap level -n, so V(1) is debug.
func Logr(z *zap.Logger) logr.Logger {
	if z == nil {
		return logr.Discard()
	}
	return zapr.NewLogger(z)
}
