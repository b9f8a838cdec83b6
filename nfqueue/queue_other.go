//go:build !linux

package nfqueue

import (
	"context"
	"errors"

	"github.com/am6737/zenset/api/interfaces"
	"github.com/am6737/zenset/config"
	"github.com/sirupsen/logrus"
)

var _ interfaces.QueueController = &Queue{}

var errNoQueue = errors.New("nfqueue is only available on linux")

type Queue struct {
	filter *filter
}

func NewQueue(cfg config.QueueConfig, rules interfaces.RulesEngine, logger *logrus.Logger) *Queue {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Queue{filter: &filter{rules: rules, logger: logger}}
}

func (q *Queue) Start(ctx context.Context) error {
	return errNoQueue
}

func (q *Queue) Close() error {
	return nil
}
