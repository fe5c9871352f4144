package ospfd

import (
	"encoding/binary"
)

// Packet types (§4.1).
const (
	TypeHello                = 1
	TypeDatabaseDescription  = 2
	TypeLinkStateRequest     = 3
	TypeLinkStateUpdate      = 4
	TypeLinkStateAck         = 5
)

// HeaderLen is the fixed 24-octet OSPF packet header size.
const HeaderLen = 24

// Header is the 24-octet header shared by all five OSPF packet types.
type Header struct {
	Version        uint8
	Type           uint8
	Length         uint16
	RouterID       uint32
	AreaID         uint32
	Checksum       uint16
	AuType         uint16
	Authentication uint64
}

// Body is implemented by each packet type's payload.
type Body interface {
	packetType() uint8
	bytes() []byte
}

// Packet is a decoded OSPF packet: header plus typed body.
type Packet struct {
	Header
	Body Body
}

// AuthPolicy decides whether a packet's authentication fields are
// acceptable for a given interface. The core only ever parses the
// auth header fields (§1 Non-goals exclude cryptographic auth); a
// real deployment supplies its own AuthPolicy.
type AuthPolicy interface {
	Accept(h *Header) bool
}

// NoAuth accepts only AuType 0 (none), which is the only mode this
// engine originates.
type NoAuth struct{}

func (NoAuth) Accept(h *Header) bool { return h.AuType == 0 }

// NewPacket builds a packet with a freshly computed checksum.
func NewPacket(typ uint8, routerID, areaID uint32, body Body) *Packet {
	p := &Packet{
		Header: Header{
			Version:  2,
			Type:     typ,
			RouterID: routerID,
			AreaID:   areaID,
		},
		Body: body,
	}
	raw := body.bytes()
	p.Length = uint16(HeaderLen + len(raw))
	p.Checksum = packetChecksum(p)
	return p
}

// Encode serializes a packet to its wire form, recomputing the
// checksum over the final bytes as §4.1 requires ("computed after all
// other fields are set").
func Encode(p *Packet) []byte {
	p.Checksum = packetChecksum(p)
	return encodeWithChecksum(p, p.Checksum)
}

func encodeWithChecksum(p *Packet, checksum uint16) []byte {
	body := p.Body.bytes()
	buf := make([]byte, HeaderLen+len(body))
	buf[0] = p.Version
	buf[1] = p.Type
	binary.BigEndian.PutUint16(buf[2:4], uint16(HeaderLen+len(body)))
	binary.BigEndian.PutUint32(buf[4:8], p.RouterID)
	binary.BigEndian.PutUint32(buf[8:12], p.AreaID)
	binary.BigEndian.PutUint16(buf[12:14], checksum)
	binary.BigEndian.PutUint16(buf[14:16], p.AuType)
	binary.BigEndian.PutUint64(buf[16:24], p.Authentication)
	copy(buf[24:], body)
	return buf
}

// packetChecksum computes the standard IP one's-complement checksum
// over the whole packet excluding the 64-bit authentication field
// (§4.1: "computed after all other fields are set").
func packetChecksum(p *Packet) uint16 {
	buf := encodeWithChecksum(p, 0)
	return ipChecksum(buf, 16, 24)
}

// ipChecksum computes the standard 16-bit one's-complement checksum
// over data, treating the half-open byte range [skipFrom, skipTo) as
// zero (used to exclude the checksum field itself, or here the
// authentication field per §4.1).
func ipChecksum(data []byte, skipFrom, skipTo int) uint16 {
	var sum uint32
	n := len(data)
	for i := 0; i < n; i += 2 {
		if i >= skipFrom && i < skipTo {
			continue
		}
		var word uint16
		if i+1 < n {
			word = uint16(data[i])<<8 | uint16(data[i+1])
		} else {
			word = uint16(data[i]) << 8
		}
		sum += uint32(word)
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// Decode parses an OSPF packet out of a raw byte slice, enforcing the
// decode contract in §4.1: version, length, checksum and area must all
// check out or the packet is rejected.
func Decode(data []byte, expectedArea uint32, auth AuthPolicy) (*Packet, error) {
	if len(data) < HeaderLen {
		return nil, decodeErrorf(ErrShortPacket, "decode: got %d bytes", len(data))
	}

	h := Header{
		Version:        data[0],
		Type:           data[1],
		Length:         binary.BigEndian.Uint16(data[2:4]),
		RouterID:       binary.BigEndian.Uint32(data[4:8]),
		AreaID:         binary.BigEndian.Uint32(data[8:12]),
		Checksum:       binary.BigEndian.Uint16(data[12:14]),
		AuType:         binary.BigEndian.Uint16(data[14:16]),
		Authentication: binary.BigEndian.Uint64(data[16:24]),
	}

	if h.Version != 2 {
		return nil, decodeErrorf(ErrBadVersion, "decode: version %d", h.Version)
	}
	if int(h.Length) != len(data) {
		return nil, decodeErrorf(ErrBadLength, "decode: header says %d, have %d", h.Length, len(data))
	}
	if ipChecksum(data, 16, 24) != 0 {
		return nil, decodeErrorf(ErrBadChecksum, "decode: checksum mismatch")
	}
	if h.AreaID != expectedArea {
		return nil, decodeErrorf(ErrAreaMismatch, "decode: area %#x, want %#x", h.AreaID, expectedArea)
	}
	if auth != nil && !auth.Accept(&h) {
		return nil, decodeErrorf(ErrAuthMismatch, "decode: auth type %d rejected", h.AuType)
	}

	body := data[HeaderLen:]
	var parsedBody Body
	var err error
	switch h.Type {
	case TypeHello:
		parsedBody, err = decodeHello(body)
	case TypeDatabaseDescription:
		parsedBody, err = decodeDBDescription(body)
	case TypeLinkStateRequest:
		parsedBody, err = decodeLSRequest(body)
	case TypeLinkStateUpdate:
		parsedBody, err = decodeLSUpdate(body)
	case TypeLinkStateAck:
		parsedBody, err = decodeLSAck(body)
	default:
		return nil, decodeErrorf(ErrUnknownType, "decode: type %d", h.Type)
	}
	if err != nil {
		return nil, err
	}

	return &Packet{Header: h, Body: parsedBody}, nil
}
