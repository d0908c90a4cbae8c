package utils

import (
	"go.uber.org/zap"
)

// NewLogger builds a development logger for APP_ENV=development, production otherwise.
func NewLogger(env string) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if env == "development" || env == "dev" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return log
}
