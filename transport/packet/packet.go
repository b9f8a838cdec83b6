package packet

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/am6737/zenset/api"
	"golang.org/x/net/ipv4"
)

type m map[string]interface{}

const (
	ProtoAny  = 0
	ProtoICMP = 1
	ProtoTCP  = 6
	ProtoUDP  = 17
)

var protocolMap = map[uint8]string{
	ProtoTCP:  "tcp",
	ProtoUDP:  "udp",
	ProtoICMP: "icmp",
}

func TypeName(t uint8) string {
	if n, ok := protocolMap[t]; ok {
		return n
	}

	return "unknown"
}

// Packet is the parsed view of an IPv4 packet as delivered by the packet
// source. It is never modified once parsed.
type Packet struct {
	SrcIP    api.IP
	DstIP    api.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
	Fragment bool
	// Len is the IPv4 total length.
	Len uint16
	// Payload is the transport payload, set for unfragmented TCP only.
	Payload []byte
}

// Key is the part of a packet a set lookup looks at. It is small enough to be
// passed by value, so substituting the source address never touches the
// packet it was taken from.
type Key struct {
	SrcIP    api.IP
	DstIP    api.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
	Len      uint16
}

func (p *Packet) Key() Key {
	return Key{
		SrcIP:    p.SrcIP,
		DstIP:    p.DstIP,
		SrcPort:  p.SrcPort,
		DstPort:  p.DstPort,
		Protocol: p.Protocol,
		Len:      p.Len,
	}
}

// IP returns the address on the given side of the key.
func (k Key) IP(d api.Direction) api.IP {
	if d == api.Src {
		return k.SrcIP
	}
	return k.DstIP
}

// Port returns the port on the given side of the key.
func (k Key) Port(d api.Direction) uint16 {
	if d == api.Src {
		return k.SrcPort
	}
	return k.DstPort
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d %s", k.SrcIP, k.SrcPort, k.DstIP, k.DstPort, TypeName(k.Protocol))
}

func (p *Packet) String() string {
	fragment := "no"
	if p.Fragment {
		fragment = "yes"
	}
	return fmt.Sprintf("SrcIP=%s DstIP=%s SrcPort=%d DstPort=%d Protocol=%s Fragment=%v Len=%d",
		p.SrcIP, p.DstIP, p.SrcPort, p.DstPort, TypeName(p.Protocol), fragment, p.Len)
}

func (p Packet) MarshalJSON() ([]byte, error) {
	var proto string
	switch p.Protocol {
	case ProtoTCP:
		proto = "tcp"
	case ProtoICMP:
		proto = "icmp"
	case ProtoUDP:
		proto = "udp"
	default:
		proto = fmt.Sprintf("unknown %v", p.Protocol)
	}
	return json.Marshal(m{
		"SrcIP":    p.SrcIP.String(),
		"DstIP":    p.DstIP.String(),
		"SrcPort":  p.SrcPort,
		"DstPort":  p.DstPort,
		"Protocol": proto,
		"Fragment": p.Fragment,
		"Len":      p.Len,
	})
}

const (
	minPacketLen = 4
	minTCPLen    = 20
)

// ParsePacket parses an IPv4 packet into p. The payload slice of p aliases data.
func ParsePacket(data []byte, p *Packet) error {
	// Do we at least have an ipv4 header worth of data?
	if len(data) < ipv4.HeaderLen {
		return fmt.Errorf("packet is less than %v bytes", ipv4.HeaderLen)
	}

	// Is it an ipv4 packet?
	if int((data[0]>>4)&0x0f) != ipv4.Version {
		return fmt.Errorf("packet is not ipv4, type: %v", int((data[0]>>4)&0x0f))
	}

	// Adjust our start position based on the advertised ip header length
	ihl := int(data[0]&0x0f) << 2

	// Well formed ip header length?
	if ihl < ipv4.HeaderLen {
		return fmt.Errorf("packet had an invalid header length: %v", ihl)
	}

	p.Len = binary.BigEndian.Uint16(data[2:4])

	// Check if this is the second or further fragment of a fragmented packet.
	flagsfrags := binary.BigEndian.Uint16(data[6:8])
	p.Fragment = (flagsfrags & 0x1FFF) != 0

	p.Protocol = data[9]

	// Accounting for a variable header length, do we have enough data for our src/dst tuples?
	minLen := ihl
	if !p.Fragment && p.Protocol != ProtoICMP {
		minLen += minPacketLen
	}
	if len(data) < minLen {
		return fmt.Errorf("packet is less than %v bytes, ip header len: %v", minLen, ihl)
	}

	p.SrcIP = api.IPFromSlice(data[12:16])
	p.DstIP = api.IPFromSlice(data[16:20])
	p.Payload = nil
	if p.Fragment || p.Protocol == ProtoICMP {
		p.SrcPort = 0
		p.DstPort = 0
		return nil
	}

	p.SrcPort = binary.BigEndian.Uint16(data[ihl : ihl+2])
	p.DstPort = binary.BigEndian.Uint16(data[ihl+2 : ihl+4])

	if p.Protocol == ProtoTCP {
		p.Payload = tcpPayload(data, ihl, int(p.Len))
	}

	return nil
}

// tcpPayload bounds the payload by the advertised total length and by what
// was actually captured, whichever is shorter.
func tcpPayload(data []byte, ihl, totLen int) []byte {
	if len(data) < ihl+minTCPLen {
		return nil
	}
	thl := int(data[ihl+12]>>4) << 2
	if thl < minTCPLen {
		return nil
	}
	end := totLen
	if end > len(data) {
		end = len(data)
	}
	start := ihl + thl
	if start >= end {
		return nil
	}
	return data[start:end]
}
