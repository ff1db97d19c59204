package logx

import (
	"go.uber.org/zap"
)

// Init builds the process-wide logger and installs it as the zap global.
// mode "dev" switches to the console encoder with debug level.
func Init(mode, service string) (*zap.Logger, error) {
	var cfg zap.Config
	if mode == "dev" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build(zap.Fields(zap.String("service", service)))
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
