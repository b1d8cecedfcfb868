// Package logging builds the process logger and keeps credentials and PHI
// values out of log lines.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the root logger for the environment: JSON in production,
// console otherwise.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
