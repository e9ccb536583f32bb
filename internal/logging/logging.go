package logging

import (
	"go.uber.org/zap"
)

// New returns a production JSON logger when env is "production" and a
// console development logger otherwise.
func New(env, service string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", service)), nil
}
