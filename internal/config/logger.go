// Package config builds process-wide infrastructure from CLI options.
package config

import (
	"fmt"

	"go.uber.org/zap"
)

// Logger configures the zap logger.
type Logger struct {
	// Env is "production" (JSON, sampled) or anything else for the
	// development console encoder.
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
	Name  string `yaml:"name"`
	// OutputPaths defaults to stderr.
	OutputPaths []string `yaml:"outputPaths"`
}

// BuildLogger creates the root logger.
func (c Logger) BuildLogger(opts ...zap.Option) (*zap.Logger, error) {
	conf := zap.NewDevelopmentConfig()
	if c.Env == "production" {
		conf = zap.NewProductionConfig()
		conf.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	}
	if c.Level != "" {
		level, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		conf.Level = level
	}
	conf.OutputPaths = []string{"stderr"}
	if len(c.OutputPaths) > 0 {
		conf.OutputPaths = c.OutputPaths
	}
	conf.ErrorOutputPaths = []string{"stderr"}

	logger, err := conf.Build(opts...)
	if err != nil {
		return nil, err
	}
	if len(c.Name) > 0 {
		logger = logger.Named(c.Name)
	}
	return logger, nil
}
