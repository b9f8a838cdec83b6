package nfqueue

import (
	"errors"

	"github.com/am6737/zenset/api/interfaces"
	"github.com/am6737/zenset/rules"
	"github.com/am6737/zenset/transport/packet"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

var (
	received  = metrics.GetOrRegisterCounter("zenset.queue.received", nil)
	malformed = metrics.GetOrRegisterCounter("zenset.queue.malformed", nil)
)

// filter turns raw queued packets into accept/drop decisions. It is driven
// from a single queue goroutine and reuses one Packet between calls.
type filter struct {
	rules  interfaces.RulesEngine
	logger *logrus.Logger
	p      packet.Packet
}

// accept reports whether data may pass. Packets that cannot be parsed are
// let through untouched.
func (f *filter) accept(data []byte) bool {
	received.Inc(1)

	if err := packet.ParsePacket(data, &f.p); err != nil {
		malformed.Inc(1)
		f.logger.WithError(err).Debug("Error while parsing queued packet")
		return true
	}

	err := f.rules.Filter(&f.p)
	if err == nil {
		return true
	}
	if !errors.Is(err, rules.ErrDrop) {
		f.logger.WithError(err).WithField("packet", &f.p).Error("Unexpected filter error")
		return true
	}

	if f.logger.IsLevelEnabled(logrus.DebugLevel) {
		f.logger.WithField("packet", &f.p).Debug("Dropping packet")
	}
	return false
}
