package rules

import (
	"sync"

	"github.com/am6737/zenset/api"
	"github.com/am6737/zenset/api/interfaces"
	"github.com/am6737/zenset/proxy"
	"github.com/am6737/zenset/transport/packet"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

var (
	proxyUnwrapped = metrics.GetOrRegisterCounter("zenset.proxy.unwrapped", nil)
	lookupErrors   = metrics.GetOrRegisterCounter("zenset.lookup.errors", nil)
	counterErrors  = metrics.GetOrRegisterCounter("zenset.counters.errors", nil)
)

// Match is an installed set match. It holds a reference on its set from
// Install until Destroy and is safe for concurrent use by packet workers.
type Match struct {
	info   MatchInfo
	opt    api.QueryOptions
	set    api.SetID
	engine interfaces.SetEngine
	logger *logrus.Logger

	release sync.Once
}

// Install resolves setName through engine and compiles opts into an
// installed match. On any error the set reference taken here is released
// before returning.
func Install(engine interfaces.SetEngine, logger *logrus.Logger, setName string, dirs []api.Direction, opts ...Option) (m *Match, err error) {
	if len(setName) > api.MaxNameLen-1 {
		return nil, wrapConfigError(api.ErrNameTooLong, "setname `%s' too long, max %d characters.", setName, api.MaxNameLen-1)
	}

	id, err := engine.Resolve(setName)
	if err != nil {
		return nil, wrapConfigError(err, "Cannot find set identified by name %s to match", setName)
	}
	defer func() {
		if err != nil {
			engine.Release(id)
		}
	}()

	if len(dirs) == 0 || len(dirs) > api.DimMax {
		return nil, wrapConfigError(api.ErrDimOverLimit, "Protocol error: set match dimension %d is out of range 1-%d", len(dirs), api.DimMax)
	}

	info, err := NewMatchInfo(setName, dirs, opts...)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Match{
		info:   *info,
		opt:    info.queryOptions(),
		set:    id,
		engine: engine,
		logger: logger,
	}, nil
}

func (m *Match) Info() MatchInfo {
	return m.info
}

// Destroy releases the set reference. Only the first call has an effect.
func (m *Match) Destroy() {
	m.release.Do(func() {
		m.engine.Release(m.set)
	})
}

// Match reports whether p matches. Lookup failures and malformed input never
// surface as errors: they count as no match or no substitution.
func (m *Match) Match(p *packet.Packet) bool {
	key := p.Key()
	if m.info.Flags.ProxyProtocol {
		if k, ok := proxy.Unwrap(p); ok {
			proxyUnwrapped.Inc(1)
			key = k
		}
	}

	matched, err := m.query(key)
	if err != nil {
		lookupErrors.Inc(1)
		m.logger.WithError(err).WithField("set", m.info.SetName).Debug("Set lookup failed, treating as no match")
		return false
	}
	if !matched || !m.opt.MatchCounters {
		return matched
	}

	c, err := m.engine.Counters(m.set, key, &m.opt)
	if err != nil {
		counterErrors.Inc(1)
		m.logger.WithError(err).WithField("set", m.info.SetName).Debug("Counter read failed, treating as no match")
		return false
	}

	if !m.info.Packets.Match(c.Packets) {
		return false
	}
	return m.info.Bytes.Match(c.Bytes)
}

// query asks the engine about key and applies the match level inversion.
func (m *Match) query(key packet.Key) (bool, error) {
	ok, err := m.engine.Test(m.set, key, &m.opt)
	if err != nil {
		return false, err
	}
	return ok != m.info.Flags.Invert, nil
}
