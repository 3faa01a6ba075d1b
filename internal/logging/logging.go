// Package logging builds the process-wide zap logger used by the CLI and
// every long-lived component (pipeline, scraper, archive replay).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger, bumped to debug level when verbose.
// Components that are not handed a logger explicitly should fall back to
// zap.NewNop() rather than reach for a package-level global.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
