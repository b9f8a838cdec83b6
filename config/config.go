package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	EngineMemory = "memory"
	EngineKernel = "kernel"

	ActionAllow = "allow"
	ActionDeny  = "deny"
)

type Config struct {
	Log           LogConfig   `yaml:"log"`
	Engine        string      `yaml:"engine"`
	Queue         QueueConfig `yaml:"queue"`
	Sets          []SetConfig `yaml:"sets"`
	Rules         []Rule      `yaml:"rules"`
	DefaultAction string      `yaml:"default_action"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// QueueConfig selects the NFQUEUE the packets are read from.
type QueueConfig struct {
	Num          uint16        `yaml:"num"`
	MaxPacketLen uint32        `yaml:"max_packet_len"`
	MaxQueueLen  uint32        `yaml:"max_queue_len"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// SetConfig declares a set for the memory engine.
type SetConfig struct {
	Name string `yaml:"name"`
	// Type is hash:<comp>[,<comp>...] with comps ip, net and port.
	Type     string   `yaml:"type"`
	Counters bool     `yaml:"counters"`
	Members  []string `yaml:"members"`
	// Nomatch members are stored with the nomatch flag.
	Nomatch []string `yaml:"nomatch"`
}

type Rule struct {
	// Match holds the set match options, e.g. "--match-set blocklist src".
	Match string `yaml:"match"`
	// "allow" or "deny"
	Action string `yaml:"action"`
}

func (r Rule) String() string {
	return fmt.Sprintf("match=%q action=%s", r.Match, r.Action)
}

func (s SetConfig) String() string {
	return fmt.Sprintf("name=%s type=%s counters=%v members=%d", s.Name, s.Type, s.Counters, len(s.Members))
}

func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", filename)
	}

	cfg := GenerateConfigTemplate()
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", filename)
	}

	if err = cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", filename)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Engine {
	case EngineMemory, EngineKernel:
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if !validAction(c.DefaultAction) {
		return fmt.Errorf("unknown default action %q", c.DefaultAction)
	}
	for n, r := range c.Rules {
		if !validAction(r.Action) {
			return fmt.Errorf("rule %d: unknown action %q", n, r.Action)
		}
		if r.Match == "" {
			return fmt.Errorf("rule %d: empty match", n)
		}
	}
	return nil
}

func validAction(a string) bool {
	return a == ActionAllow || a == ActionDeny
}

var (
	defaultLog = LogConfig{
		Level: "info",
	}

	defaultQueue = QueueConfig{
		Num:          0,
		MaxPacketLen: 0xffff,
		MaxQueueLen:  1024,
		WriteTimeout: 15 * time.Millisecond,
	}
)

// GenerateConfigTemplate returns a configuration holding every default.
func GenerateConfigTemplate() Config {
	return Config{
		Log:           defaultLog,
		Engine:        EngineMemory,
		Queue:         defaultQueue,
		DefaultAction: ActionAllow,
	}
}
