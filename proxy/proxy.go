// Package proxy recovers the originating client address from a PROXY
// protocol v1 preamble carried at the start of a TCP payload.
package proxy

import (
	"bytes"

	"github.com/am6737/zenset/api"
	"github.com/am6737/zenset/transport/packet"
)

const (
	Preamble = "PROXY TCP4 "

	// maxAddrLen is the longest dotted quad plus its delimiter.
	maxAddrLen = len("255.255.255.255") + 1

	// MinPayloadLen is the shortest payload an extraction is attempted on.
	MinPayloadLen = len(Preamble) + maxAddrLen
)

// Source extracts the IPv4 source address announced by a preamble at the
// start of payload. The address must be followed by a single space.
func Source(payload []byte) (api.IP, bool) {
	if len(payload) < MinPayloadLen {
		return 0, false
	}
	if !bytes.HasPrefix(payload, []byte(Preamble)) {
		return 0, false
	}

	field := payload[len(Preamble) : len(Preamble)+maxAddrLen]
	end := bytes.IndexByte(field, ' ')
	if end <= 0 {
		return 0, false
	}

	return parseDottedQuad(field[:end])
}

// parseDottedQuad reads four decimal octets separated by dots. Leading zeros
// are decimal, the way the kernel's in4_pton reads them.
func parseDottedQuad(b []byte) (api.IP, bool) {
	var ip uint32
	octets, digits, octet := 0, 0, 0
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9':
			octet = octet*10 + int(c-'0')
			if octet > 255 {
				return 0, false
			}
			digits++
		case c == '.' && digits > 0 && octets < 3:
			ip = ip<<8 | uint32(octet)
			octets++
			digits, octet = 0, 0
		default:
			return 0, false
		}
	}
	if octets != 3 || digits == 0 {
		return 0, false
	}
	return api.IP(ip<<8 | uint32(octet)), true
}

// Unwrap returns the lookup key of p with the source address replaced by the
// one announced in its PROXY preamble. ok is false when p is not TCP or
// carries no well formed preamble; p itself is never modified.
func Unwrap(p *packet.Packet) (key packet.Key, ok bool) {
	if p.Protocol != packet.ProtoTCP || p.Fragment {
		return packet.Key{}, false
	}

	src, ok := Source(p.Payload)
	if !ok {
		return packet.Key{}, false
	}

	key = p.Key()
	key.SrcIP = src
	return key, true
}
