package cmd

import (
	"github.com/am6737/zenset/config"
	"github.com/am6737/zenset/controllers"
	"github.com/am6737/zenset/nfqueue"
	"github.com/am6737/zenset/rules"
	"github.com/urfave/cli/v2"
)

func run(c *cli.Context) error {
	configFile := c.String("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create set engine")
		return err
	}

	rulesEngine, err := rules.NewRulesFromConfig(cfg, engine, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to install rules")
		return err
	}
	logger.WithField("rules", len(rulesEngine.Rules())).
		WithField("engine", cfg.Engine).
		Info("Rules installed")

	ctx := c.Context
	queue := nfqueue.NewQueue(cfg.Queue, rulesEngine, logger)
	ctrl := controllers.NewControllersManager(logger, rulesEngine, queue)
	ctrl.Start(ctx)
	return ctrl.Shutdown(ctx)
}
