package api

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

const (
	// DimMax is the largest number of tuple components a set lookup may use.
	DimMax = 6
	// MaxNameLen includes the terminating byte the kernel reserves.
	MaxNameLen = 32
)

var (
	ErrSetNotFound  = errors.New("set not found")
	ErrDimOverLimit = errors.New("set match dimension is over the limit")
	ErrNameTooLong  = errors.New("set name too long")
	ErrSetInUse     = errors.New("set is referenced")
)

// SetID identifies a resolved set inside a SetEngine.
type SetID uint16

// InvalidSetID is never handed out by an engine.
const InvalidSetID SetID = 0xffff

type Direction uint8

const (
	Dst Direction = iota
	Src
)

func (d Direction) String() string {
	if d == Src {
		return "src"
	}
	return "dst"
}

// QueryOptions are passed verbatim to the set engine on every lookup.
type QueryOptions struct {
	// Dirs holds one entry per dimension, len(Dirs) is the dimension.
	Dirs []Direction

	ReturnNomatch        bool
	SkipCounterUpdate    bool
	SkipSubcounterUpdate bool
	// MatchCounters asks the engine to keep counters ready for a read.
	MatchCounters bool
}

func (o *QueryOptions) Dim() int {
	return len(o.Dirs)
}

// Counters is a snapshot of the per-entry counters of a set element.
type Counters struct {
	Packets uint64
	Bytes   uint64
}

type IP uint32

const maxIPv4StringLen = len("255.255.255.255")

func (ip IP) String() string {
	b := make([]byte, maxIPv4StringLen)

	n := ubtoa(b, 0, byte(ip>>24))
	b[n] = '.'
	n++

	n += ubtoa(b, n, byte(ip>>16&255))
	b[n] = '.'
	n++

	n += ubtoa(b, n, byte(ip>>8&255))
	b[n] = '.'
	n++

	n += ubtoa(b, n, byte(ip&255))
	return string(b[:n])
}

func (ip IP) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%s\"", ip.String())), nil
}

func (ip *IP) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseIP(s)
	if err != nil {
		return err
	}

	*ip = parsed
	return nil
}

func (ip IP) ToIP() net.IP {
	nip := make(net.IP, 4)
	binary.BigEndian.PutUint32(nip, uint32(ip))
	return nip
}

func (ip IP) ToNetIpAddr() netip.Addr {
	var nip [4]byte
	binary.BigEndian.PutUint32(nip[:], uint32(ip))
	return netip.AddrFrom4(nip)
}

// IPFromSlice accepts both 4 and 16 byte forms.
func IPFromSlice(ip []byte) IP {
	if len(ip) == 16 {
		return IP(binary.BigEndian.Uint32(ip[12:16]))
	}
	return IP(binary.BigEndian.Uint32(ip))
}

func IPFromAddr(addr netip.Addr) (IP, error) {
	if !addr.Is4() && !addr.Is4In6() {
		return 0, fmt.Errorf("invalid IPv4 address: %s", addr)
	}
	b := addr.As4()
	return IP(binary.BigEndian.Uint32(b[:])), nil
}

func ParseIP(str string) (IP, error) {
	ip := net.ParseIP(str)
	if ip == nil {
		return 0, fmt.Errorf("invalid IP address: %s", str)
	}
	ipBytes := ip.To4()
	if ipBytes == nil {
		return 0, fmt.Errorf("invalid IPv4 address: %s", str)
	}
	return IP(binary.BigEndian.Uint32(ipBytes)), nil
}

// ubtoa encodes the string form of the integer v to dst[start:] and
// returns the number of bytes written to dst. The caller must ensure
// that dst has sufficient length.
func ubtoa(dst []byte, start int, v byte) int {
	if v < 10 {
		dst[start] = v + '0'
		return 1
	} else if v < 100 {
		dst[start+1] = v%10 + '0'
		dst[start] = v/10 + '0'
		return 2
	}

	dst[start+2] = v%10 + '0'
	dst[start+1] = (v/10)%10 + '0'
	dst[start] = v/100 + '0'
	return 3
}
