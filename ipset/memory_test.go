package ipset

import (
	"errors"
	"testing"

	"github.com/am6737/zenset/api"
	"github.com/am6737/zenset/config"
	"github.com/am6737/zenset/transport/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ip(s string) api.IP {
	v, err := api.ParseIP(s)
	if err != nil {
		panic(err)
	}
	return v
}

func key(src, dst string, sport, dport uint16, proto uint8) packet.Key {
	return packet.Key{
		SrcIP:    ip(src),
		DstIP:    ip(dst),
		SrcPort:  sport,
		DstPort:  dport,
		Protocol: proto,
		Len:      100,
	}
}

func opts(dirs ...api.Direction) *api.QueryOptions {
	return &api.QueryOptions{Dirs: dirs}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		typ      string
		expected []Component
		err      bool
	}{
		{SetHashIp, []Component{CompIP}, false},
		{SetHashNet, []Component{CompNet}, false},
		{SetHashIpPort, []Component{CompIP, CompPort}, false},
		{SetHashIpPortNet, []Component{CompIP, CompPort, CompNet}, false},
		{"bitmap:ip", nil, true},
		{"hash:mac", nil, true},
		{"hash:", nil, true},
		{"hash:ip,ip,ip,ip,ip,ip,ip", nil, true},
	}

	for _, test := range tests {
		comps, err := ParseType(test.typ)
		if test.err {
			assert.Error(t, err, "type %s", test.typ)
			continue
		}
		assert.NoError(t, err, "type %s", test.typ)
		assert.Equal(t, test.expected, comps)
	}
}

func TestMemory_ResolveRelease(t *testing.T) {
	m := NewMemory(nil)
	require.NoError(t, m.Create("blocklist", SetHashIp))

	_, err := m.Resolve("missing")
	assert.True(t, errors.Is(err, api.ErrSetNotFound))

	id, err := m.Resolve("blocklist")
	require.NoError(t, err)
	name, err := m.Name(id)
	require.NoError(t, err)
	assert.Equal(t, "blocklist", name)

	refs, _ := m.Refs("blocklist")
	assert.Equal(t, 1, refs)

	err = m.Destroy("blocklist", false)
	assert.True(t, errors.Is(err, api.ErrSetInUse))

	m.Release(id)
	refs, _ = m.Refs("blocklist")
	assert.Equal(t, 0, refs)
	require.NoError(t, m.Destroy("blocklist", false))

	_, err = m.Name(id)
	assert.True(t, errors.Is(err, api.ErrSetNotFound))
}

func TestMemory_ForcedDestroy(t *testing.T) {
	m := NewMemory(nil)
	require.NoError(t, m.Create("blocklist", SetHashIp))
	require.NoError(t, m.Add("blocklist", "10.0.0.5"))

	id, err := m.Resolve("blocklist")
	require.NoError(t, err)
	require.NoError(t, m.Destroy("blocklist", true))

	_, err = m.Test(id, key("10.0.0.5", "10.0.0.1", 1, 2, packet.ProtoTCP), opts(api.Src))
	assert.True(t, errors.Is(err, api.ErrSetNotFound))

	m.Release(id)
}

func TestMemory_DestroyedIdNotReused(t *testing.T) {
	m := NewMemory(nil)
	require.NoError(t, m.Create("old", SetHashIp))
	stale, err := m.Resolve("old")
	require.NoError(t, err)
	require.NoError(t, m.Destroy("old", true))

	require.NoError(t, m.Create("fresh", SetHashIp))
	require.NoError(t, m.Add("fresh", "192.168.1.10"))
	live, err := m.Resolve("fresh")
	require.NoError(t, err)
	assert.NotEqual(t, stale, live)

	k := key("192.168.1.10", "10.0.0.1", 1, 2, packet.ProtoTCP)
	_, err = m.Test(stale, k, opts(api.Src))
	assert.True(t, errors.Is(err, api.ErrSetNotFound))
	_, err = m.Counters(stale, k, opts(api.Src))
	assert.True(t, errors.Is(err, api.ErrSetNotFound))
	_, err = m.Name(stale)
	assert.True(t, errors.Is(err, api.ErrSetNotFound))

	ok, err := m.Test(live, k, opts(api.Src))
	require.NoError(t, err)
	assert.True(t, ok)

	m.Release(stale)
	refs, err := m.Refs("fresh")
	require.NoError(t, err)
	assert.Equal(t, 1, refs)

	err = m.Destroy("fresh", false)
	assert.True(t, errors.Is(err, api.ErrSetInUse))
}

func TestMemory_Test(t *testing.T) {
	m := NewMemory(nil)
	require.NoError(t, m.Create("hosts", SetHashIp))
	require.NoError(t, m.Add("hosts", "10.0.0.5"))
	require.NoError(t, m.Create("nets", SetHashNet))
	require.NoError(t, m.Add("nets", "192.168.0.0/16"))
	require.NoError(t, m.Add("nets", "192.168.7.0/24", OptNomatch()))
	require.NoError(t, m.Create("services", SetHashIpPort))
	require.NoError(t, m.Add("services", "10.0.0.1,tcp:443"))
	require.NoError(t, m.Add("services", "10.0.0.1,udp:53"))

	hosts, _ := m.Resolve("hosts")
	nets, _ := m.Resolve("nets")
	services, _ := m.Resolve("services")

	tests := []struct {
		name     string
		id       api.SetID
		key      packet.Key
		opt      *api.QueryOptions
		expected bool
	}{
		{"src in hash:ip", hosts, key("10.0.0.5", "10.0.0.1", 1000, 80, packet.ProtoTCP), opts(api.Src), true},
		{"dst not in hash:ip", hosts, key("10.0.0.5", "10.0.0.1", 1000, 80, packet.ProtoTCP), opts(api.Dst), false},
		{"extra dimensions ignored", hosts, key("10.0.0.5", "10.0.0.1", 1000, 80, packet.ProtoTCP), opts(api.Src, api.Dst), true},
		{"net contains", nets, key("192.168.1.1", "10.0.0.1", 1, 2, packet.ProtoUDP), opts(api.Src), true},
		{"nomatch exception", nets, key("192.168.7.1", "10.0.0.1", 1, 2, packet.ProtoUDP), opts(api.Src), false},
		{"net outside", nets, key("172.16.0.1", "10.0.0.1", 1, 2, packet.ProtoUDP), opts(api.Src), false},
		{"return-nomatch on exception", nets, key("192.168.7.1", "10.0.0.1", 1, 2, packet.ProtoUDP),
			&api.QueryOptions{Dirs: []api.Direction{api.Src}, ReturnNomatch: true}, true},
		{"return-nomatch on plain element", nets, key("192.168.1.1", "10.0.0.1", 1, 2, packet.ProtoUDP),
			&api.QueryOptions{Dirs: []api.Direction{api.Src}, ReturnNomatch: true}, false},
		{"ip,port dst", services, key("10.9.9.9", "10.0.0.1", 40000, 443, packet.ProtoTCP), opts(api.Dst, api.Dst), true},
		{"ip,port wrong proto", services, key("10.9.9.9", "10.0.0.1", 40000, 443, packet.ProtoUDP), opts(api.Dst, api.Dst), false},
		{"ip,port udp", services, key("10.9.9.9", "10.0.0.1", 40000, 53, packet.ProtoUDP), opts(api.Dst, api.Dst), true},
		{"ip,port icmp", services, key("10.9.9.9", "10.0.0.1", 0, 0, packet.ProtoICMP), opts(api.Dst, api.Dst), false},
		{"dimension below set dimension", services, key("10.9.9.9", "10.0.0.1", 40000, 443, packet.ProtoTCP), opts(api.Dst), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := m.Test(tt.id, tt.key, tt.opt)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestMemory_Counters(t *testing.T) {
	m := NewMemory(nil)
	require.NoError(t, m.Create("counted", SetHashIp, OptCounters()))
	require.NoError(t, m.Add("counted", "10.0.0.5", OptPackets(10), OptBytes(1000)))

	id, err := m.Resolve("counted")
	require.NoError(t, err)

	k := key("10.0.0.5", "10.0.0.1", 1, 2, packet.ProtoTCP)
	ok, err := m.Test(id, k, opts(api.Src))
	require.NoError(t, err)
	require.True(t, ok)

	c, err := m.Counters(id, k, opts(api.Src))
	require.NoError(t, err)
	assert.Equal(t, api.Counters{Packets: 11, Bytes: 1100}, c)

	skip := &api.QueryOptions{Dirs: []api.Direction{api.Src}, SkipCounterUpdate: true}
	_, err = m.Test(id, k, skip)
	require.NoError(t, err)
	c, err = m.Counters(id, k, skip)
	require.NoError(t, err)
	assert.Equal(t, api.Counters{Packets: 11, Bytes: 1100}, c)

	c, err = m.Counters(id, key("10.0.0.6", "10.0.0.1", 1, 2, packet.ProtoTCP), opts(api.Src))
	require.NoError(t, err)
	assert.Equal(t, api.Counters{}, c, "non members report zero")
}

func TestMemory_AddDel(t *testing.T) {
	m := NewMemory(nil)
	require.NoError(t, m.Create("hosts", SetHashIp))
	assert.Error(t, m.Create("hosts", SetHashIp))
	assert.Error(t, m.Create("this-name-is-much-too-long-for-a-set", SetHashIp))

	assert.Error(t, m.Add("hosts", "10.0.0.0/24"))
	assert.Error(t, m.Add("hosts", "10.0.0.1,80"))
	assert.Error(t, m.Add("hosts", "::1"))
	assert.Error(t, m.Add("missing", "10.0.0.1"))

	require.NoError(t, m.Add("hosts", "10.0.0.1"))
	require.NoError(t, m.Del("hosts", "10.0.0.1"))
	assert.Error(t, m.Del("hosts", "10.0.0.1"))
}

func TestNewMemoryFromConfig(t *testing.T) {
	m, err := NewMemoryFromConfig([]config.SetConfig{
		{Name: "blocklist", Type: SetHashNet, Counters: true, Members: []string{"10.0.0.0/8"}, Nomatch: []string{"10.1.0.0/16"}},
	}, nil)
	require.NoError(t, err)

	id, err := m.Resolve("blocklist")
	require.NoError(t, err)

	ok, err := m.Test(id, key("10.2.0.1", "1.1.1.1", 1, 2, packet.ProtoTCP), opts(api.Src))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Test(id, key("10.1.0.1", "1.1.1.1", 1, 2, packet.ProtoTCP), opts(api.Src))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewMemoryFromConfig([]config.SetConfig{{Name: "bad", Type: "list:set"}}, nil)
	assert.Error(t, err)
}
