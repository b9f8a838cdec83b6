package cmd

import (
	"os"

	"github.com/am6737/zenset/api/interfaces"
	"github.com/am6737/zenset/config"
	"github.com/am6737/zenset/ipset"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.Out = os.Stdout
	logger.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	})

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log.level")
	}
	logger.SetLevel(level)
	return logger, nil
}

func newEngine(cfg *config.Config, logger *logrus.Logger) (interfaces.SetEngine, error) {
	switch cfg.Engine {
	case config.EngineKernel:
		return ipset.NewKernel(logger)
	default:
		return ipset.NewMemoryFromConfig(cfg.Sets, logger)
	}
}
