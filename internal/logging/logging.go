// Package logging completes the structured-logging stub the rest of the
// pack only sketched: a zap.Logger built from the typed LoggingConfig,
// switching between a JSON production encoder and a human-readable
// console encoder, with the level read from config.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reconciler/internal/config"
)

// New builds a zap.Logger from cfg. Format "json" selects the production
// encoder; anything else (including "console" and an empty value) selects
// the console encoder, which is friendlier for local runs.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// RunFields returns the standard per-run structured fields attached to
// every log line emitted during a reconciliation run.
func RunFields(runID, component string, tradeDate string) []zap.Field {
	return []zap.Field{
		zap.String("run_id", runID),
		zap.String("component", component),
		zap.String("trade_date", tradeDate),
	}
}
