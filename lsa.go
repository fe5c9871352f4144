package ospfd

import "encoding/binary"

// LSA type codes (§3).
const (
	LSATypeRouter       uint8 = 1
	LSATypeNetwork      uint8 = 2
	LSATypeSummaryNet   uint8 = 3
	LSATypeSummaryASBR  uint8 = 4
	LSATypeASExternal   uint8 = 5
)

// LSAHeaderLen is the fixed 20-octet LSA header size (§3).
const LSAHeaderLen = 20

// LSAIdentifier is the (type, link_state_id, advertising_router)
// triple that is the key into the LSDB (§3 invariant 1).
type LSAIdentifier struct {
	LSType            uint8
	LinkStateID       uint32
	AdvertisingRouter uint32
}

// LSAHeader is the 20-octet header common to every LSA.
type LSAHeader struct {
	Age               uint16
	Options           uint8
	LSType            uint8
	LinkStateID       uint32
	AdvertisingRouter uint32
	SequenceNumber    int32
	Checksum          uint16
	Length            uint16
}

// ID returns the header's LSAIdentifier.
func (h LSAHeader) ID() LSAIdentifier {
	return LSAIdentifier{LSType: h.LSType, LinkStateID: h.LinkStateID, AdvertisingRouter: h.AdvertisingRouter}
}

func (h LSAHeader) bytes() []byte {
	buf := make([]byte, LSAHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], h.Age)
	buf[2] = h.Options
	buf[3] = h.LSType
	binary.BigEndian.PutUint32(buf[4:8], h.LinkStateID)
	binary.BigEndian.PutUint32(buf[8:12], h.AdvertisingRouter)
	binary.BigEndian.PutUint32(buf[12:16], uint32(h.SequenceNumber))
	binary.BigEndian.PutUint16(buf[16:18], h.Checksum)
	binary.BigEndian.PutUint16(buf[18:20], h.Length)
	return buf
}

func decodeLSAHeader(data []byte) (LSAHeader, error) {
	if len(data) < LSAHeaderLen {
		return LSAHeader{}, decodeErrorf(ErrBadLSAHeader, "lsa header: got %d bytes", len(data))
	}
	return LSAHeader{
		Age:               binary.BigEndian.Uint16(data[0:2]),
		Options:           data[2],
		LSType:            data[3],
		LinkStateID:       binary.BigEndian.Uint32(data[4:8]),
		AdvertisingRouter: binary.BigEndian.Uint32(data[8:12]),
		SequenceNumber:    int32(binary.BigEndian.Uint32(data[12:16])),
		Checksum:          binary.BigEndian.Uint16(data[16:18]),
		Length:            binary.BigEndian.Uint16(data[18:20]),
	}, nil
}

// RouterLink is one entry in a router-LSA's links vector (§3).
type RouterLink struct {
	LinkID   uint32
	LinkData uint32
	LinkType uint8
	TOSCount uint8
	Metric   uint16
}

// Router-LSA link types.
const (
	LinkPointToPoint uint8 = 1
	LinkTransit      uint8 = 2
	LinkStub         uint8 = 3
	LinkVirtual      uint8 = 4
)

// RouterLSABody is the body of a type-1 LSA.
type RouterLSABody struct {
	Flags uint8 // low 3 bits: V, E, B per RFC 2328 A.4.2
	Links []RouterLink
}

// NetworkLSABody is the body of a type-2 LSA, originated by the DR of
// a broadcast/NBMA network.
type NetworkLSABody struct {
	NetworkMask     uint32
	AttachedRouters []uint32
}

// SummaryLSABody is the body of a type-3 (network summary) or type-4
// (ASBR summary) LSA.
type SummaryLSABody struct {
	NetworkMask uint32
	Metric      uint32 // low 24 bits significant
}

// ASExternalLSABody is the body of a type-5 LSA.
type ASExternalLSABody struct {
	NetworkMask       uint32
	ExternalType2     bool // true selects external metric type 2
	Metric            uint32 // low 24 bits significant
	ForwardingAddress uint32
	RouteTag          uint32
}

// LSA is a tagged variant over the four LSA bodies: the discriminant
// is Header.LSType, exactly one of the body pointers is non-nil, and
// there is no dynamic dispatch — callers switch on LSType like the
// rest of this codec does for packet bodies.
type LSA struct {
	Header     LSAHeader
	Router     *RouterLSABody
	Network    *NetworkLSABody
	Summary    *SummaryLSABody
	ASExternal *ASExternalLSABody
}

func (l LSA) ID() LSAIdentifier { return l.Header.ID() }

func (l LSA) bodyBytes() []byte {
	switch l.Header.LSType {
	case LSATypeRouter:
		b := l.Router
		buf := make([]byte, 4+12*len(b.Links))
		buf[0] = 0
		buf[1] = b.Flags
		binary.BigEndian.PutUint16(buf[2:4], uint16(len(b.Links)))
		for i, link := range b.Links {
			o := 4 + 12*i
			binary.BigEndian.PutUint32(buf[o:o+4], link.LinkID)
			binary.BigEndian.PutUint32(buf[o+4:o+8], link.LinkData)
			buf[o+8] = link.LinkType
			buf[o+9] = link.TOSCount
			binary.BigEndian.PutUint16(buf[o+10:o+12], link.Metric)
		}
		return buf
	case LSATypeNetwork:
		b := l.Network
		buf := make([]byte, 4+4*len(b.AttachedRouters))
		binary.BigEndian.PutUint32(buf[0:4], b.NetworkMask)
		for i, r := range b.AttachedRouters {
			binary.BigEndian.PutUint32(buf[4+4*i:8+4*i], r)
		}
		return buf
	case LSATypeSummaryNet, LSATypeSummaryASBR:
		b := l.Summary
		buf := make([]byte, 8)
		binary.BigEndian.PutUint32(buf[0:4], b.NetworkMask)
		binary.BigEndian.PutUint32(buf[4:8], b.Metric&0x00ffffff)
		return buf
	case LSATypeASExternal:
		b := l.ASExternal
		buf := make([]byte, 16)
		binary.BigEndian.PutUint32(buf[0:4], b.NetworkMask)
		metricWord := b.Metric & 0x00ffffff
		if b.ExternalType2 {
			metricWord |= 0x80000000
		}
		binary.BigEndian.PutUint32(buf[4:8], metricWord)
		binary.BigEndian.PutUint32(buf[8:12], b.ForwardingAddress)
		binary.BigEndian.PutUint32(buf[12:16], b.RouteTag)
		return buf
	}
	return nil
}

// Bytes serializes the full LSA (header + body) to wire form. The
// header's Length and Checksum must already be set (ComputeChecksum
// does so).
func (l LSA) Bytes() []byte {
	return append(l.Header.bytes(), l.bodyBytes()...)
}

// DecodeLSA parses a complete LSA (header + body) out of data, which
// must be exactly Header.Length bytes (the caller, e.g. LSUpdate
// decoding, is responsible for slicing to that length).
func DecodeLSA(data []byte) (LSA, error) {
	hdr, err := decodeLSAHeader(data)
	if err != nil {
		return LSA{}, err
	}
	if int(hdr.Length) != len(data) {
		return LSA{}, decodeErrorf(ErrBadLSAHeader, "lsa: length %d, have %d", hdr.Length, len(data))
	}
	body := data[LSAHeaderLen:]
	lsa := LSA{Header: hdr}
	switch hdr.LSType {
	case LSATypeRouter:
		if len(body) < 4 {
			return LSA{}, decodeErrorf(ErrShortBody, "router-lsa body")
		}
		n := binary.BigEndian.Uint16(body[2:4])
		links := make([]RouterLink, 0, n)
		off := 4
		for i := uint16(0); i < n; i++ {
			if off+12 > len(body) {
				return LSA{}, decodeErrorf(ErrShortBody, "router-lsa link %d", i)
			}
			links = append(links, RouterLink{
				LinkID:   binary.BigEndian.Uint32(body[off : off+4]),
				LinkData: binary.BigEndian.Uint32(body[off+4 : off+8]),
				LinkType: body[off+8],
				TOSCount: body[off+9],
				Metric:   binary.BigEndian.Uint16(body[off+10 : off+12]),
			})
			off += 12
		}
		lsa.Router = &RouterLSABody{Flags: body[1], Links: links}
	case LSATypeNetwork:
		if len(body) < 4 || (len(body)-4)%4 != 0 {
			return LSA{}, decodeErrorf(ErrShortBody, "network-lsa body")
		}
		n := (len(body) - 4) / 4
		routers := make([]uint32, n)
		for i := 0; i < n; i++ {
			routers[i] = binary.BigEndian.Uint32(body[4+4*i : 8+4*i])
		}
		lsa.Network = &NetworkLSABody{NetworkMask: binary.BigEndian.Uint32(body[0:4]), AttachedRouters: routers}
	case LSATypeSummaryNet, LSATypeSummaryASBR:
		if len(body) < 8 {
			return LSA{}, decodeErrorf(ErrShortBody, "summary-lsa body")
		}
		lsa.Summary = &SummaryLSABody{
			NetworkMask: binary.BigEndian.Uint32(body[0:4]),
			Metric:      binary.BigEndian.Uint32(body[4:8]) & 0x00ffffff,
		}
	case LSATypeASExternal:
		if len(body) < 16 {
			return LSA{}, decodeErrorf(ErrShortBody, "as-external-lsa body")
		}
		metricWord := binary.BigEndian.Uint32(body[4:8])
		lsa.ASExternal = &ASExternalLSABody{
			NetworkMask:       binary.BigEndian.Uint32(body[0:4]),
			ExternalType2:     metricWord&0x80000000 != 0,
			Metric:            metricWord & 0x00ffffff,
			ForwardingAddress: binary.BigEndian.Uint32(body[8:12]),
			RouteTag:          binary.BigEndian.Uint32(body[12:16]),
		}
	default:
		return LSA{}, decodeErrorf(ErrUnknownType, "lsa type %d", hdr.LSType)
	}
	return lsa, nil
}

// ComputeChecksum sets l.Header.Length and l.Header.Checksum from the
// current body, using the RFC 1008 Fletcher checksum over the LSA
// excluding the Age field, per §3's "checksum (Fletcher)".
func (l *LSA) ComputeChecksum() {
	body := l.bodyBytes()
	l.Header.Length = uint16(LSAHeaderLen + len(body))
	withoutAge := append(l.Header.bytes()[2:], body...)
	// checksum field sits at offset 16 in the full LSA, i.e. offset 14
	// in withoutAge; zero it before computing, as fletcherChecksum
	// expects.
	withoutAge[14] = 0
	withoutAge[15] = 0
	l.Header.Checksum = fletcherChecksum(withoutAge, 14)
}

// VerifyChecksum recomputes and compares the checksum, used on
// reception (§4.4 step 1: "Discard if checksum invalid").
func (l LSA) VerifyChecksum() bool {
	got := l.Header.Checksum
	cp := l
	cp.ComputeChecksum()
	return cp.Header.Checksum == got
}

// fletcherChecksum implements the RFC 1008 Fletcher checksum with
// embedded-checksum placement at byte offset checkIndex within data
// (data[checkIndex] and data[checkIndex+1] must already be zeroed by
// the caller).
func fletcherChecksum(data []byte, checkIndex int) uint16 {
	var c0, c1 int
	for _, b := range data {
		c0 = (c0 + int(b)) % 255
		c1 = (c1 + c0) % 255
	}
	mul := len(data) - checkIndex - 1
	x := (mul*c0 - c1) % 255
	if x <= 0 {
		x += 255
	}
	y := 510 - c0 - x
	if y > 255 {
		y -= 255
	}
	return uint16(x)<<8 | uint16(y)
}

// compareRecency implements the §4.3 "more recent" comparison. It
// returns >0 if a is more recent than b, <0 if b is more recent, and 0
// if they are the same instance.
func compareRecency(a, b LSAHeader) int {
	if a.SequenceNumber != b.SequenceNumber {
		if a.SequenceNumber > b.SequenceNumber {
			return 1
		}
		return -1
	}
	if a.Checksum != b.Checksum {
		if a.Checksum > b.Checksum {
			return 1
		}
		return -1
	}
	aMax := a.Age == MaxAge
	bMax := b.Age == MaxAge
	if aMax != bMax {
		if aMax {
			return 1
		}
		return -1
	}
	diff := int(a.Age) - int(b.Age)
	if diff > MaxAgeDiff {
		return -1
	}
	if diff < -MaxAgeDiff {
		return 1
	}
	return 0
}

// incSequence implements §3 invariant 3: sequence numbers increment
// normally but MaxSequenceNumber requires a premature flush-restart,
// handled by the caller (origination.go) rather than here.
func incSequence(seq int32) (next int32, wrapped bool) {
	if seq == MaxSequenceNum {
		return InitialSequenceNum, true
	}
	return seq + 1, false
}
