package ospfd

import (
	"encoding/binary"
	"net"
)

// RouterID is a 32-bit router identifier, conventionally written and
// compared like an IPv4 address but never used for delivery.
type RouterID uint32

// AreaID is a 32-bit area identifier. AreaID(0) is the backbone.
type AreaID uint32

// BackboneArea is area 0.0.0.0.
const BackboneArea AreaID = 0

func (r RouterID) String() string { return ip4String(uint32(r)) }
func (a AreaID) String() string   { return ip4String(uint32(a)) }

func ip4String(v uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return net.IP(b[:]).String()
}

// ParseIPv4ToUint32 converts a dotted-quad string to its big-endian
// uint32 form, as used for router IDs, area IDs and LSA identifiers.
func ParseIPv4ToUint32(s string) (uint32, bool) {
	ip := net.ParseIP(s)
	if ip == nil {
		return 0, false
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(ip4), true
}

// Uint32ToIPv4 is the inverse of ParseIPv4ToUint32.
func Uint32ToIPv4(v uint32) net.IP {
	b := make(net.IP, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// NetworkType enumerates the OSPF network types an interface can run.
type NetworkType uint8

const (
	NetworkBroadcast NetworkType = iota
	NetworkNBMA
	NetworkPointToPoint
	NetworkPointToMultipoint
	NetworkVirtualLink
)

func (n NetworkType) String() string {
	switch n {
	case NetworkBroadcast:
		return "Broadcast"
	case NetworkNBMA:
		return "NBMA"
	case NetworkPointToPoint:
		return "PointToPoint"
	case NetworkPointToMultipoint:
		return "PointToMultipoint"
	case NetworkVirtualLink:
		return "VirtualLink"
	default:
		return "Unknown"
	}
}

// Protocol-wide constants from RFC 2328.
const (
	MaxAge             = 3600 // seconds
	MaxAgeDiff         = 900  // seconds
	LSRefreshTime      = 1800 // seconds
	InitialSequenceNum = int32(-2147483647) // 0x80000001 as signed 32-bit
	MaxSequenceNum     = int32(2147483647)  // 0x7FFFFFFF
	DefaultSpfHoldTime = 5                  // seconds, implementation-defined per §4.5
)

// Well-known multicast destinations (network byte order uint32 form is
// computed on demand by transports; these are the canonical strings).
const (
	AllSPFRouters = "224.0.0.5"
	AllDRouters   = "224.0.0.6"
)

// IPProtocolOSPF is IPv4 protocol number 89.
const IPProtocolOSPF = 89
