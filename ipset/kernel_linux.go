package ipset

import (
	"net"
	"net/netip"
	"sync"

	"github.com/am6737/zenset/api"
	"github.com/am6737/zenset/api/interfaces"
	"github.com/am6737/zenset/transport/packet"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

var _ interfaces.SetEngine = &Kernel{}

type kernelSet struct {
	name  string
	typ   string
	comps []Component
	refs  int
}

// Kernel queries the sets of the Linux ipset subsystem over netlink.
//
// The netlink test command carries no match flags, so return-nomatch and the
// counter update switches are left to the kernel defaults, and tests issued
// from here do not move the element counters.
//
// Counters lists the whole set on every call, so matches with counter
// comparisons cost time proportional to the set size per packet. Keep such
// matches on small sets.
type Kernel struct {
	mu     sync.RWMutex
	sets   map[api.SetID]*kernelSet
	byName map[string]api.SetID
	next   api.SetID
	logger *logrus.Logger
}

func NewKernel(logger *logrus.Logger) (*Kernel, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Kernel{
		sets:   map[api.SetID]*kernelSet{},
		byName: map[string]api.SetID{},
		logger: logger,
	}, nil
}

func kernelError(err error, format string, args ...interface{}) error {
	if errors.Is(err, unix.ENOENT) {
		err = api.ErrSetNotFound
	}
	return errors.Wrapf(err, format, args...)
}

func (k *Kernel) Resolve(name string) (api.SetID, error) {
	res, err := netlink.IpsetList(name)
	if err != nil {
		return api.InvalidSetID, kernelError(err, "list set %s", name)
	}
	comps, err := ParseType(res.TypeName)
	if err != nil {
		return api.InvalidSetID, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if id, ok := k.byName[name]; ok {
		k.sets[id].refs++
		return id, nil
	}

	id := k.next
	if id == api.InvalidSetID {
		return api.InvalidSetID, errors.Errorf("no free set id for %s", name)
	}
	k.next++
	k.sets[id] = &kernelSet{name: name, typ: res.TypeName, comps: comps, refs: 1}
	k.byName[name] = id
	k.logger.WithField("set", name).WithField("type", res.TypeName).Debug("Resolved kernel set")
	return id, nil
}

func (k *Kernel) Release(id api.SetID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.sets[id]
	if !ok {
		k.logger.WithField("id", id).Warn("Release of an unknown set")
		return
	}
	s.refs--
	if s.refs <= 0 {
		delete(k.sets, id)
		delete(k.byName, s.name)
	}
}

func (k *Kernel) get(id api.SetID) (*kernelSet, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	s, ok := k.sets[id]
	if !ok {
		return nil, errors.Wrapf(api.ErrSetNotFound, "set id %d", id)
	}
	return s, nil
}

func (k *Kernel) Name(id api.SetID) (string, error) {
	s, err := k.get(id)
	if err != nil {
		return "", err
	}
	return s.name, nil
}

func (k *Kernel) Test(id api.SetID, key packet.Key, opt *api.QueryOptions) (bool, error) {
	s, err := k.get(id)
	if err != nil {
		return false, err
	}
	t, ok := tuple(s.comps, key, opt)
	if !ok {
		return false, nil
	}

	matched, err := netlink.IpsetTest(s.name, toEntry(s.comps, t))
	if err != nil {
		return false, kernelError(err, "test set %s", s.name)
	}
	return matched, nil
}

func (k *Kernel) Counters(id api.SetID, key packet.Key, opt *api.QueryOptions) (api.Counters, error) {
	s, err := k.get(id)
	if err != nil {
		return api.Counters{}, err
	}
	t, ok := tuple(s.comps, key, opt)
	if !ok {
		return api.Counters{}, nil
	}

	res, err := netlink.IpsetList(s.name)
	if err != nil {
		return api.Counters{}, kernelError(err, "list set %s", s.name)
	}

	var best *netlink.IPSetEntry
	bestBits := -1
	for i := range res.Entries {
		e := &res.Entries[i]
		values := fromEntry(s.comps, e)
		if values == nil {
			continue
		}
		if ok, bits := contains(values, t); ok && bits > bestBits {
			best, bestBits = e, bits
		}
	}

	var c api.Counters
	if best != nil {
		if best.Packets != nil {
			c.Packets = *best.Packets
		}
		if best.Bytes != nil {
			c.Bytes = *best.Bytes
		}
	}
	return c, nil
}

// toEntry places the tuple into the attributes the kernel expects for comps.
func toEntry(comps []Component, t []value) *netlink.IPSetEntry {
	e := &netlink.IPSetEntry{}
	addrs := 0
	for i, c := range comps {
		switch c {
		case CompIP, CompNet:
			ip := net.IP(t[i].prefix.Addr().AsSlice())
			if addrs == 0 {
				e.IP = ip
			} else {
				e.IP2 = ip
			}
			addrs++
		case CompPort:
			proto, port := t[i].proto, t[i].port
			e.Protocol = &proto
			e.Port = &port
		}
	}
	return e
}

func fromEntry(comps []Component, e *netlink.IPSetEntry) []value {
	values := make([]value, len(comps))
	addrs := 0
	for i, c := range comps {
		switch c {
		case CompIP, CompNet:
			ip, cidr := e.IP, e.CIDR
			if addrs > 0 {
				ip, cidr = e.IP2, e.CIDR2
			}
			addrs++
			addr, ok := netip.AddrFromSlice(ip.To4())
			if !ok {
				return nil
			}
			if c == CompIP || cidr == 0 {
				cidr = 32
			}
			values[i].prefix = netip.PrefixFrom(addr, int(cidr)).Masked()
		case CompPort:
			if e.Protocol != nil {
				values[i].proto = *e.Protocol
			}
			if e.Port != nil {
				values[i].port = *e.Port
			}
		}
	}
	return values
}
