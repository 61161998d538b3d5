package config

import (
	"fmt"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"github.com/kart-io/logger/option"
)

// InitLogger builds the structured logger from cfg and installs it as the
// global logger.
func InitLogger(cfg LogConfig, service, version string) (core.Logger, error) {
	opt := option.DefaultLogOption()
	opt.Level = cfg.Level
	opt.Format = cfg.Format
	opt.OutputPaths = []string{cfg.File}
	opt.AddInitialField("service.name", service)
	opt.AddInitialField("service.version", version)
	if err := opt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid log options: %w", err)
	}

	l, err := logger.New(opt)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.SetGlobal(l)
	return l, nil
}
