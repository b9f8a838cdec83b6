package nfqueue

import (
	"context"
	"sync"

	"github.com/am6737/zenset/api/interfaces"
	"github.com/am6737/zenset/config"
	"github.com/florianl/go-nfqueue"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var _ interfaces.QueueController = &Queue{}

// Queue binds one NFQUEUE number and filters every packet the kernel hands
// to it.
type Queue struct {
	cfg    config.QueueConfig
	filter *filter
	logger *logrus.Logger

	mu sync.Mutex
	nf *nfqueue.Nfqueue
}

func NewQueue(cfg config.QueueConfig, rules interfaces.RulesEngine, logger *logrus.Logger) *Queue {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Queue{
		cfg:    cfg,
		filter: &filter{rules: rules, logger: logger},
		logger: logger,
	}
}

// Start opens the queue and blocks until ctx is done.
func (q *Queue) Start(ctx context.Context) error {
	nf, err := nfqueue.Open(&nfqueue.Config{
		NfQueue:      q.cfg.Num,
		MaxPacketLen: q.cfg.MaxPacketLen,
		MaxQueueLen:  q.cfg.MaxQueueLen,
		Copymode:     nfqueue.NfQnlCopyPacket,
		WriteTimeout: q.cfg.WriteTimeout,
	})
	if err != nil {
		return errors.Wrapf(err, "open nfqueue %d", q.cfg.Num)
	}
	q.mu.Lock()
	q.nf = nf
	q.mu.Unlock()
	defer q.Close()

	fn := func(a nfqueue.Attribute) int {
		if a.PacketID == nil {
			return 0
		}
		verdict := nfqueue.NfAccept
		if a.Payload != nil && !q.filter.accept(*a.Payload) {
			verdict = nfqueue.NfDrop
		}
		if err := nf.SetVerdict(*a.PacketID, verdict); err != nil {
			q.logger.WithError(err).WithField("id", *a.PacketID).Error("Failed to set verdict")
		}
		return 0
	}
	errFn := func(err error) int {
		if ctx.Err() != nil {
			return 1
		}
		q.logger.WithError(err).WithField("queue", q.cfg.Num).Warn("Error while receiving from nfqueue")
		return 0
	}

	if err := nf.RegisterWithErrorFunc(ctx, fn, errFn); err != nil {
		return errors.Wrapf(err, "register nfqueue %d", q.cfg.Num)
	}
	q.logger.WithField("queue", q.cfg.Num).Info("Listening on nfqueue")

	<-ctx.Done()
	return nil
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.nf == nil {
		return nil
	}
	err := q.nf.Close()
	q.nf = nil
	return err
}
