package config

import "go.uber.org/zap"

// NewLogger returns a production logger unless env names a development setup.
func NewLogger(env string) (*zap.Logger, error) {
	switch env {
	case "development", "dev", "test":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}
