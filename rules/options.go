package rules

import "github.com/am6737/zenset/api"

// Flags are the independent switches of a set match.
type Flags struct {
	// Invert negates the set membership answer. Counter comparisons are
	// inverted separately, see CounterMatch.
	Invert               bool
	ReturnNomatch        bool
	SkipCounterUpdate    bool
	SkipSubcounterUpdate bool
	// ProxyProtocol looks the set up with the address announced by a
	// PROXY preamble instead of the packet source.
	ProxyProtocol bool
}

// MatchInfo is the compiled configuration of one set match.
type MatchInfo struct {
	SetName string
	Dirs    []api.Direction
	Flags   Flags
	Packets CounterMatch
	Bytes   CounterMatch
}

func (i *MatchInfo) Dim() int {
	return len(i.Dirs)
}

// countersEngaged reports whether the engine has to be asked for counters.
func (i *MatchInfo) countersEngaged() bool {
	return i.Packets.Engaged() || i.Bytes.Engaged()
}

func (i *MatchInfo) queryOptions() api.QueryOptions {
	return api.QueryOptions{
		Dirs:                 i.Dirs,
		ReturnNomatch:        i.Flags.ReturnNomatch,
		SkipCounterUpdate:    i.Flags.SkipCounterUpdate,
		SkipSubcounterUpdate: i.Flags.SkipSubcounterUpdate,
		MatchCounters:        i.countersEngaged(),
	}
}

// Option modifies a MatchInfo and fails on combinations that are not allowed.
type Option func(*MatchInfo) error

func Invert() Option {
	return func(i *MatchInfo) error {
		i.Flags.Invert = true
		return nil
	}
}

func ReturnNomatch() Option {
	return func(i *MatchInfo) error {
		i.Flags.ReturnNomatch = true
		return nil
	}
}

func SkipCounterUpdate() Option {
	return func(i *MatchInfo) error {
		i.Flags.SkipCounterUpdate = true
		return nil
	}
}

func SkipSubcounterUpdate() Option {
	return func(i *MatchInfo) error {
		i.Flags.SkipSubcounterUpdate = true
		return nil
	}
}

func ProxyProtocol() Option {
	return func(i *MatchInfo) error {
		i.Flags.ProxyProtocol = true
		return nil
	}
}

// Packets compares the per-entry packet counter. Only CounterEq may be inverted.
func Packets(op CounterOp, value uint64, invert bool) Option {
	return func(i *MatchInfo) error {
		return i.Packets.set("packets", op, value, invert)
	}
}

// Bytes compares the per-entry byte counter. Only CounterEq may be inverted.
func Bytes(op CounterOp, value uint64, invert bool) Option {
	return func(i *MatchInfo) error {
		return i.Bytes.set("bytes", op, value, invert)
	}
}

// NewMatchInfo applies opts in order and stops at the first failing one.
func NewMatchInfo(setName string, dirs []api.Direction, opts ...Option) (*MatchInfo, error) {
	info := &MatchInfo{
		SetName: setName,
		Dirs:    append([]api.Direction(nil), dirs...),
	}
	for _, opt := range opts {
		if err := opt(info); err != nil {
			return nil, err
		}
	}
	return info, nil
}
