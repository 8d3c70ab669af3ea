package app

import (
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/config"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
)

// newLogger is replaced in tests.
var newLogger = func(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.ServiceName, cfg.ServiceEnv, cfg.LogLevel)
}
