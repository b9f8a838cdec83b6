package rules

import (
	"github.com/am6737/zenset/api/interfaces"
	"github.com/am6737/zenset/config"
	"github.com/am6737/zenset/transport/packet"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

var _ interfaces.RulesEngine = &Rules{}

var (
	allowed = metrics.GetOrRegisterCounter("zenset.verdict.allow", nil)
	denied  = metrics.GetOrRegisterCounter("zenset.verdict.deny", nil)
)

// Rule pairs an installed match with the action taken when it matches.
type Rule struct {
	Match  *Match
	Action string
}

type RulesOption func(*Rules)

func WithDefaultAction(action string) RulesOption {
	return func(r *Rules) {
		r.defaultAction = action
	}
}

func WithLogger(logger *logrus.Logger) RulesOption {
	return func(r *Rules) {
		r.logger = logger
	}
}

func NewRules(rules []Rule, opts ...RulesOption) *Rules {
	r := &Rules{
		rules:         rules,
		defaultAction: config.ActionAllow,
		logger:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRulesFromConfig installs every configured rule against engine. When a
// rule fails, the rules installed before it are destroyed again.
func NewRulesFromConfig(cfg *config.Config, engine interfaces.SetEngine, logger *logrus.Logger) (*Rules, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var installed []Rule
	for n, rc := range cfg.Rules {
		def, err := ParseLine(rc.Match)
		if err == nil {
			for _, w := range def.Warnings {
				logger.WithField("rule", n).Warn(w)
			}
			var m *Match
			if m, err = def.Install(engine, logger); err == nil {
				installed = append(installed, Rule{Match: m, Action: rc.Action})
				logger.WithField("rule", n).WithField("match", m.String()).Debug("Installed rule")
				continue
			}
		}

		for _, r := range installed {
			r.Match.Destroy()
		}
		return nil, errors.Wrapf(err, "rule %d (%s)", n, rc)
	}

	return NewRules(installed, WithDefaultAction(cfg.DefaultAction), WithLogger(logger)), nil
}

type Rules struct {
	rules         []Rule
	defaultAction string
	logger        *logrus.Logger
}

func (r *Rules) Filter(p *packet.Packet) error {
	for _, rule := range r.rules {
		if !rule.Match.Match(p) {
			continue // Set doesn't match
		}
		return r.verdict(rule.Action)
	}

	return r.verdict(r.defaultAction) // No matching rule found
}

func (r *Rules) verdict(action string) error {
	if action == config.ActionDeny {
		denied.Inc(1)
		return ErrDrop // Packet should be dropped
	}
	allowed.Inc(1)
	return nil // Packet should be allowed
}

// Rules returns the installed rules in evaluation order.
func (r *Rules) Rules() []Rule {
	return r.rules
}

func (r *Rules) Close() error {
	for _, rule := range r.rules {
		rule.Match.Destroy()
	}
	return nil
}
