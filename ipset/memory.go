package ipset

import (
	"fmt"
	"sync"

	"github.com/am6737/zenset/api"
	"github.com/am6737/zenset/api/interfaces"
	"github.com/am6737/zenset/config"
	"github.com/am6737/zenset/transport/packet"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var _ interfaces.SetEngine = &Memory{}

type entry struct {
	values  []value
	nomatch bool
	packets uint64
	bytes   uint64
}

type set struct {
	sync.Mutex
	name     string
	typ      string
	comps    []Component
	counters bool
	refs     int
	entries  map[string]*entry
}

// lookup returns the most specific element covering t.
func (s *set) lookup(t []value) *entry {
	if e, ok := s.entries[elemKey(t)]; ok {
		return e
	}

	var best *entry
	bestBits := -1
	for _, e := range s.entries {
		if ok, bits := contains(e.values, t); ok && bits > bestBits {
			best, bestBits = e, bits
		}
	}
	return best
}

// Memory is a set engine keeping its sets in process memory. Sets are
// reference counted the same way the kernel counts rules referring to them.
type Memory struct {
	mu     sync.RWMutex
	sets   []*set
	byName map[string]api.SetID
	logger *logrus.Logger
}

func NewMemory(logger *logrus.Logger) *Memory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Memory{
		byName: map[string]api.SetID{},
		logger: logger,
	}
}

// NewMemoryFromConfig creates and fills every configured set.
func NewMemoryFromConfig(sets []config.SetConfig, logger *logrus.Logger) (*Memory, error) {
	m := NewMemory(logger)
	for _, sc := range sets {
		var opts []SetOpt
		if sc.Counters {
			opts = append(opts, OptCounters())
		}
		if err := m.Create(sc.Name, sc.Type, opts...); err != nil {
			return nil, err
		}
		for _, elem := range sc.Members {
			if err := m.Add(sc.Name, elem); err != nil {
				return nil, err
			}
		}
		for _, elem := range sc.Nomatch {
			if err := m.Add(sc.Name, elem, OptNomatch()); err != nil {
				return nil, err
			}
		}
		m.logger.WithField("set", sc.Name).WithField("type", sc.Type).
			Debugf("Loaded %d members", len(sc.Members)+len(sc.Nomatch))
	}
	return m, nil
}

type SetOpt func(*set)

// OptCounters keeps packet and byte counters for every element.
func OptCounters() SetOpt {
	return func(s *set) {
		s.counters = true
	}
}

type MemberOpt func(*entry)

// OptNomatch stores the element as an exception: a lookup hitting it does
// not match, unless the match asked for return-nomatch.
func OptNomatch() MemberOpt {
	return func(e *entry) {
		e.nomatch = true
	}
}

func OptPackets(packets uint64) MemberOpt {
	return func(e *entry) {
		e.packets = packets
	}
}

func OptBytes(bytes uint64) MemberOpt {
	return func(e *entry) {
		e.bytes = bytes
	}
}

func (m *Memory) Create(name, typ string, opts ...SetOpt) error {
	if len(name) == 0 || len(name) > api.MaxNameLen-1 {
		return errors.Wrapf(api.ErrNameTooLong, "create %q", name)
	}
	comps, err := ParseType(typ)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; ok {
		return fmt.Errorf("set %s already exists", name)
	}

	s := &set{
		name:    name,
		typ:     typ,
		comps:   comps,
		entries: map[string]*entry{},
	}
	for _, opt := range opts {
		opt(s)
	}

	// Ids are never reused: a destroyed set leaves a nil slot so stale
	// references keep failing with api.ErrSetNotFound.
	if len(m.sets) >= int(api.InvalidSetID) {
		return fmt.Errorf("no free set slot for %s", name)
	}
	id := api.SetID(len(m.sets))
	m.sets = append(m.sets, s)
	m.byName[name] = id
	return nil
}

// Destroy removes a set. A referenced set is only removed when force is set,
// lookups through existing references then fail with api.ErrSetNotFound.
func (m *Memory) Destroy(name string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byName[name]
	if !ok {
		return errors.Wrapf(api.ErrSetNotFound, "destroy %s", name)
	}
	s := m.sets[id]
	s.Lock()
	refs := s.refs
	s.Unlock()
	if refs > 0 && !force {
		return errors.Wrapf(api.ErrSetInUse, "destroy %s: %d references", name, refs)
	}

	m.sets[id] = nil
	delete(m.byName, name)
	return nil
}

func (m *Memory) Add(name, elem string, opts ...MemberOpt) error {
	s, err := m.byNameLocked(name)
	if err != nil {
		return err
	}
	values, err := parseElem(s.comps, elem)
	if err != nil {
		return err
	}

	e := &entry{values: values}
	for _, opt := range opts {
		opt(e)
	}

	s.Lock()
	defer s.Unlock()
	s.entries[elemKey(values)] = e
	return nil
}

func (m *Memory) Del(name, elem string) error {
	s, err := m.byNameLocked(name)
	if err != nil {
		return err
	}
	values, err := parseElem(s.comps, elem)
	if err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()
	k := elemKey(values)
	if _, ok := s.entries[k]; !ok {
		return fmt.Errorf("element %s is not in set %s", elem, name)
	}
	delete(s.entries, k)
	return nil
}

// Refs returns the number of references held on a set.
func (m *Memory) Refs(name string) (int, error) {
	s, err := m.byNameLocked(name)
	if err != nil {
		return 0, err
	}
	s.Lock()
	defer s.Unlock()
	return s.refs, nil
}

func (m *Memory) byNameLocked(name string) (*set, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[name]
	if !ok {
		return nil, errors.Wrapf(api.ErrSetNotFound, "set %s", name)
	}
	return m.sets[id], nil
}

func (m *Memory) get(id api.SetID) (*set, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(id) >= len(m.sets) || m.sets[id] == nil {
		return nil, errors.Wrapf(api.ErrSetNotFound, "set id %d", id)
	}
	return m.sets[id], nil
}

func (m *Memory) Resolve(name string) (api.SetID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[name]
	if !ok {
		return api.InvalidSetID, errors.Wrapf(api.ErrSetNotFound, "set %s", name)
	}
	s := m.sets[id]
	s.Lock()
	s.refs++
	s.Unlock()
	return id, nil
}

func (m *Memory) Release(id api.SetID) {
	s, err := m.get(id)
	if err != nil {
		m.logger.WithError(err).Debug("Release of a removed set")
		return
	}
	s.Lock()
	defer s.Unlock()
	if s.refs == 0 {
		m.logger.WithField("set", s.name).Warn("Release without reference")
		return
	}
	s.refs--
}

func (m *Memory) Name(id api.SetID) (string, error) {
	s, err := m.get(id)
	if err != nil {
		return "", err
	}
	return s.name, nil
}

func (m *Memory) Test(id api.SetID, key packet.Key, opt *api.QueryOptions) (bool, error) {
	s, err := m.get(id)
	if err != nil {
		return false, err
	}

	t, ok := tuple(s.comps, key, opt)
	if !ok {
		return false, nil
	}

	s.Lock()
	defer s.Unlock()
	e := s.lookup(t)
	if e == nil {
		return false, nil
	}

	if !e.nomatch && s.counters && !opt.SkipCounterUpdate {
		e.packets++
		e.bytes += uint64(key.Len)
	}

	// return-nomatch swaps the answer for plain and nomatch elements
	if opt.ReturnNomatch {
		return e.nomatch, nil
	}
	return !e.nomatch, nil
}

func (m *Memory) Counters(id api.SetID, key packet.Key, opt *api.QueryOptions) (api.Counters, error) {
	s, err := m.get(id)
	if err != nil {
		return api.Counters{}, err
	}

	t, ok := tuple(s.comps, key, opt)
	if !ok {
		return api.Counters{}, nil
	}

	s.Lock()
	defer s.Unlock()
	e := s.lookup(t)
	if e == nil {
		return api.Counters{}, nil
	}
	return api.Counters{Packets: e.packets, Bytes: e.bytes}, nil
}
