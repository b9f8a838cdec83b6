// Package ipset provides the set engines set matches are evaluated against:
// an in-process engine (Memory) and the Linux kernel ipset subsystem (Kernel).
package ipset

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/am6737/zenset/api"
	"github.com/am6737/zenset/transport/packet"
	"github.com/pkg/errors"
)

const (
	SetHashIp        = "hash:ip"
	SetHashNet       = "hash:net"
	SetHashIpPort    = "hash:ip,port"
	SetHashNetPort   = "hash:net,port"
	SetHashIpPortIp  = "hash:ip,port,ip"
	SetHashIpPortNet = "hash:ip,port,net"
	SetHashNetNet    = "hash:net,net"
)

// Component is one dimension of a set type.
type Component uint8

const (
	CompIP Component = iota
	CompNet
	CompPort
)

func (c Component) String() string {
	switch c {
	case CompIP:
		return "ip"
	case CompNet:
		return "net"
	case CompPort:
		return "port"
	}
	return "unknown"
}

// ParseType splits a hash:<comp>[,<comp>...] set type into its components.
func ParseType(typ string) ([]Component, error) {
	method, list, ok := strings.Cut(typ, ":")
	if !ok || method != "hash" || list == "" {
		return nil, fmt.Errorf("unsupported set type %q", typ)
	}

	var comps []Component
	for _, name := range strings.Split(list, ",") {
		switch name {
		case "ip":
			comps = append(comps, CompIP)
		case "net":
			comps = append(comps, CompNet)
		case "port":
			comps = append(comps, CompPort)
		default:
			return nil, fmt.Errorf("unsupported set type %q: unknown component %q", typ, name)
		}
	}
	if len(comps) > api.DimMax {
		return nil, fmt.Errorf("unsupported set type %q: %w", typ, api.ErrDimOverLimit)
	}
	return comps, nil
}

// value is one component of an element or of a lookup tuple.
type value struct {
	prefix netip.Prefix
	proto  uint8
	port   uint16
}

func (v value) String() string {
	if v.prefix.IsValid() {
		if v.prefix.IsSingleIP() {
			return v.prefix.Addr().String()
		}
		return v.prefix.String()
	}
	return fmt.Sprintf("%s:%d", packet.TypeName(v.proto), v.port)
}

// parseElem parses a member such as "10.0.0.0/24,udp:53" against comps.
func parseElem(comps []Component, elem string) ([]value, error) {
	parts := strings.Split(elem, ",")
	if len(parts) != len(comps) {
		return nil, fmt.Errorf("element %q does not fit %d components", elem, len(comps))
	}

	values := make([]value, len(parts))
	for i, part := range parts {
		var err error
		switch comps[i] {
		case CompIP:
			var addr netip.Addr
			addr, err = netip.ParseAddr(part)
			if err == nil && !addr.Is4() {
				err = fmt.Errorf("not an IPv4 address")
			}
			if err == nil {
				values[i].prefix = netip.PrefixFrom(addr, 32)
			}
		case CompNet:
			values[i].prefix, err = parseNet(part)
		case CompPort:
			values[i].proto, values[i].port, err = parsePort(part)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "element %q component %d", elem, i+1)
		}
	}
	return values, nil
}

func parseNet(s string) (netip.Prefix, error) {
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		s = addr.String() + "/32"
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("not an IPv4 network")
	}
	return p.Masked(), nil
}

// parsePort accepts "80", "tcp:80" and "udp:53"; tcp is the default.
func parsePort(s string) (uint8, uint16, error) {
	proto := uint8(packet.ProtoTCP)
	if name, port, ok := strings.Cut(s, ":"); ok {
		switch name {
		case "tcp":
			proto = packet.ProtoTCP
		case "udp":
			proto = packet.ProtoUDP
		default:
			return 0, 0, fmt.Errorf("unsupported protocol %q", name)
		}
		s = port
	}
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, 0, err
	}
	return proto, uint16(port), nil
}

// tuple selects the lookup values of key for comps, one per dimension of
// opt. ok is false when the key cannot be looked up in such a set.
func tuple(comps []Component, key packet.Key, opt *api.QueryOptions) ([]value, bool) {
	if opt.Dim() < len(comps) {
		return nil, false
	}

	values := make([]value, len(comps))
	for i, c := range comps {
		dir := opt.Dirs[i]
		switch c {
		case CompIP, CompNet:
			values[i].prefix = netip.PrefixFrom(key.IP(dir).ToNetIpAddr(), 32)
		case CompPort:
			if key.Protocol != packet.ProtoTCP && key.Protocol != packet.ProtoUDP {
				return nil, false
			}
			values[i].proto = key.Protocol
			values[i].port = key.Port(dir)
		}
	}
	return values, true
}

// contains reports whether elem covers t and how specific the match is.
func contains(elem, t []value) (bool, int) {
	if len(elem) != len(t) {
		return false, 0
	}
	bits := 0
	for i := range elem {
		if elem[i].prefix.IsValid() {
			if !elem[i].prefix.Contains(t[i].prefix.Addr()) {
				return false, 0
			}
			bits += elem[i].prefix.Bits()
			continue
		}
		if elem[i].proto != t[i].proto || elem[i].port != t[i].port {
			return false, 0
		}
	}
	return true, bits
}

func elemKey(values []value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}
