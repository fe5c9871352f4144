package ospfd

import "encoding/binary"

// LSUpdate is the type-4 packet body: a count followed by that many
// complete LSAs.
type LSUpdate struct {
	LSAs []LSA
}

func (*LSUpdate) packetType() uint8 { return TypeLinkStateUpdate }

func (u *LSUpdate) bytes() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(len(u.LSAs)))
	for _, lsa := range u.LSAs {
		buf = append(buf, lsa.Bytes()...)
	}
	return buf
}

func decodeLSUpdate(data []byte) (*LSUpdate, error) {
	if len(data) < 4 {
		return nil, decodeErrorf(ErrShortBody, "lsu: got %d bytes", len(data))
	}
	count := binary.BigEndian.Uint32(data[0:4])
	rest := data[4:]
	lsas := make([]LSA, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < LSAHeaderLen {
			return nil, decodeErrorf(ErrShortBody, "lsu: truncated LSA %d/%d", i, count)
		}
		length := binary.BigEndian.Uint16(rest[18:20])
		if int(length) > len(rest) || length < LSAHeaderLen {
			return nil, decodeErrorf(ErrBadLSAHeader, "lsu: LSA length %d out of range", length)
		}
		lsa, err := DecodeLSA(rest[:length])
		if err != nil {
			return nil, err
		}
		lsas = append(lsas, lsa)
		rest = rest[length:]
	}
	return &LSUpdate{LSAs: lsas}, nil
}
