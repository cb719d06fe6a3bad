package logger

import (
	"strings"

	"go.uber.org/zap"
)

// New returns a development logger for local environments and a JSON
// production logger otherwise.
func New(env string) (*zap.Logger, error) {
	switch strings.ToLower(env) {
	case "", "dev", "development", "local":
		cfg := zap.NewDevelopmentConfig()
		return cfg.Build()
	}
	return zap.NewProduction()
}
