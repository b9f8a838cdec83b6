package nfqueue

import (
	"errors"
	"net"
	"testing"

	"github.com/am6737/zenset/rules"
	"github.com/am6737/zenset/transport/packet"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRules struct {
	err  error
	seen []packet.Key
}

func (r *fakeRules) Filter(p *packet.Packet) error {
	r.seen = append(r.seen, p.Key())
	return r.err
}

func (r *fakeRules) Close() error {
	return nil
}

func udpPacket(t *testing.T) []byte {
	data, err := packet.BuildIPv4Packet(packet.BuildOptions{
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
		SrcPort:  5353,
		DstPort:  53,
		Protocol: packet.ProtoUDP,
		Payload:  []byte("query"),
	})
	require.NoError(t, err)
	return data
}

func TestFilter_Accept(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"allowed", nil, true},
		{"dropped", rules.ErrDrop, false},
		{"wrapped drop", errors.Join(errors.New("rule 1"), rules.ErrDrop), false},
		{"other error", errors.New("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRules{err: tt.err}
			f := &filter{rules: r, logger: logrus.New()}

			assert.Equal(t, tt.expected, f.accept(udpPacket(t)))
			require.Len(t, r.seen, 1)
			assert.Equal(t, "10.0.0.1:5353 -> 10.0.0.2:53 udp", r.seen[0].String())
		})
	}
}

func TestFilter_Malformed(t *testing.T) {
	r := &fakeRules{err: rules.ErrDrop}
	f := &filter{rules: r, logger: logrus.New()}

	assert.True(t, f.accept([]byte{0x45, 0x00}))
	assert.True(t, f.accept(nil))
	assert.Empty(t, r.seen, "unparsable packets never reach the rules")
}
