package packet

import (
	"fmt"
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// BuildOptions describes a packet for BuildIPv4Packet.
type BuildOptions struct {
	SrcIP    net.IP
	DstIP    net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
	// FragOffset marks the packet as a non-first fragment when non zero.
	FragOffset uint16
	Payload    []byte
}

// BuildIPv4Packet serializes a well formed IPv4 packet that ParsePacket accepts.
func BuildIPv4Packet(o BuildOptions) ([]byte, error) {
	ip := &layers.IPv4{
		Version:    4,
		TTL:        64,
		Protocol:   layers.IPProtocol(o.Protocol),
		SrcIP:      o.SrcIP.To4(),
		DstIP:      o.DstIP.To4(),
		FragOffset: o.FragOffset,
	}
	if ip.SrcIP == nil || ip.DstIP == nil {
		return nil, fmt.Errorf("invalid IPv4 addresses %v -> %v", o.SrcIP, o.DstIP)
	}

	stack := []gopacket.SerializableLayer{ip}
	switch {
	case o.FragOffset != 0:
	case o.Protocol == ProtoTCP:
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(o.SrcPort),
			DstPort: layers.TCPPort(o.DstPort),
			PSH:     true,
			ACK:     true,
			Window:  65535,
		}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		stack = append(stack, tcp)
	case o.Protocol == ProtoUDP:
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(o.SrcPort),
			DstPort: layers.UDPPort(o.DstPort),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		stack = append(stack, udp)
	case o.Protocol == ProtoICMP:
		stack = append(stack, &layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		})
	}
	stack = append(stack, gopacket.Payload(o.Payload))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, stack...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
