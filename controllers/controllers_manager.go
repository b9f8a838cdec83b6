package controllers

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/am6737/zenset/api/interfaces"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

// ControllersManager runs the packet sources against one rules engine and
// tears everything down again on shutdown.
type ControllersManager struct {
	logger *logrus.Logger
	rules  interfaces.RulesEngine

	runnables runnables

	cancel context.CancelFunc
	errs   chan error
	wg     sync.WaitGroup
	stop   sync.Once
}

type runnables struct {
	runnables []interfaces.QueueController
}

func NewControllersManager(logger *logrus.Logger, rules interfaces.RulesEngine, queues ...interfaces.QueueController) *ControllersManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ControllersManager{
		logger:    logger,
		rules:     rules,
		runnables: runnables{runnables: queues},
		errs:      make(chan error, len(queues)),
	}
}

// Start launches every queue controller in its own goroutine.
func (c *ControllersManager) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	for _, r := range c.runnables.runnables {
		c.wg.Add(1)
		go func(rn interfaces.Runnable) {
			defer c.wg.Done()
			if err := rn.Start(ctx); err != nil {
				c.logger.WithError(err).Error("Failed to run queue controller")
				c.errs <- err
			}
		}(r)
	}
}

// Stop cancels the queue controllers, waits for them to return and destroys
// every installed rule. Only the first call has an effect.
func (c *ControllersManager) Stop() {
	c.stop.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		for _, r := range c.runnables.runnables {
			if err := r.Close(); err != nil {
				c.logger.WithError(err).Error("Failed to close queue controller")
			}
		}
		c.wg.Wait()

		if err := c.rules.Close(); err != nil {
			c.logger.WithError(err).Error("Failed to close rules engine")
		}

		metrics.DefaultRegistry.Each(func(name string, i interface{}) {
			if cnt, ok := i.(metrics.Counter); ok {
				c.logger.WithField("metric", name).WithField("count", cnt.Count()).Info("Final counter")
			}
		})
		c.logger.Info("Goodbye")
	})
}

// Shutdown blocks until SIGINT or SIGTERM arrives, ctx is done or a queue
// controller fails, then stops the manager. The error of a failed queue
// controller is returned.
func (c *ControllersManager) Shutdown(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	signal.Notify(sigChan, syscall.SIGINT)
	defer signal.Stop(sigChan)

	var err error
	select {
	case rawSig := <-sigChan:
		c.logger.WithField("signal", rawSig.String()).Info("Caught signal, shutting down")
	case <-ctx.Done():
		c.logger.Info("Context done, shutting down")
	case err = <-c.errs:
	}

	c.Stop()
	return err
}
