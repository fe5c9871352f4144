package ospfd

import "encoding/binary"

// DD flag bits (§4.1).
const (
	DDFlagMS = 1 << 0 // Master/Slave
	DDFlagM  = 1 << 1 // More
	DDFlagI  = 1 << 2 // Init
)

// DBDescription is the type-2 packet body.
type DBDescription struct {
	InterfaceMTU     uint16
	Options          uint8
	Flags            uint8
	DDSequenceNumber uint32
	LSAHeaders       []LSAHeader
}

func (*DBDescription) packetType() uint8 { return TypeDatabaseDescription }

func (d *DBDescription) bytes() []byte {
	buf := make([]byte, 8+LSAHeaderLen*len(d.LSAHeaders))
	binary.BigEndian.PutUint16(buf[0:2], d.InterfaceMTU)
	buf[2] = d.Options
	buf[3] = d.Flags
	binary.BigEndian.PutUint32(buf[4:8], d.DDSequenceNumber)
	for i, hdr := range d.LSAHeaders {
		copy(buf[8+i*LSAHeaderLen:], hdr.bytes())
	}
	return buf
}

func decodeDBDescription(data []byte) (*DBDescription, error) {
	if len(data) < 8 {
		return nil, decodeErrorf(ErrShortBody, "dd: got %d bytes", len(data))
	}
	rest := data[8:]
	if len(rest)%LSAHeaderLen != 0 {
		return nil, decodeErrorf(ErrBadLSAHeader, "dd: trailing %d bytes not a whole header", len(rest)%LSAHeaderLen)
	}
	n := len(rest) / LSAHeaderLen
	headers := make([]LSAHeader, n)
	for i := 0; i < n; i++ {
		hdr, err := decodeLSAHeader(rest[i*LSAHeaderLen : (i+1)*LSAHeaderLen])
		if err != nil {
			return nil, err
		}
		headers[i] = hdr
	}
	return &DBDescription{
		InterfaceMTU:     binary.BigEndian.Uint16(data[0:2]),
		Options:          data[2],
		Flags:            data[3],
		DDSequenceNumber: binary.BigEndian.Uint32(data[4:8]),
		LSAHeaders:       headers,
	}, nil
}

func (d *DBDescription) isMaster() bool { return d.Flags&DDFlagMS != 0 }
func (d *DBDescription) more() bool     { return d.Flags&DDFlagM != 0 }
func (d *DBDescription) init() bool     { return d.Flags&DDFlagI != 0 }
