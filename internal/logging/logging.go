// Package logging configures the zap logger shared across the alpharng
// packages, using the logfmt encoding favored for operational logs.
package logging

import (
	"os"

	zaplogfmt "github.com/sykesm/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the verbosity and destination of the shared logger.
type Config struct {
	// Debug enables debug-level logging; otherwise info-level and above.
	Debug bool
}

// New builds a *zap.Logger that writes logfmt lines to stderr, matching the
// encoding convention used for host-side diagnostic output.
func New(cfg Config) *zap.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Debug {
		level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zaplogfmt.NewEncoder(encoderCfg)

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
