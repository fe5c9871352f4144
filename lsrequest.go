package ospfd

import "encoding/binary"

// LSRequestEntry identifies one LSA a neighbor is being asked to send
// in full (§4.1 type-3 body).
type LSRequestEntry struct {
	LSType            uint32
	LinkStateID       uint32
	AdvertisingRouter uint32
}

func (e LSRequestEntry) ID() LSAIdentifier {
	return LSAIdentifier{LSType: uint8(e.LSType), LinkStateID: e.LinkStateID, AdvertisingRouter: e.AdvertisingRouter}
}

// LSRequest is the type-3 packet body.
type LSRequest struct {
	Entries []LSRequestEntry
}

func (*LSRequest) packetType() uint8 { return TypeLinkStateRequest }

func (r *LSRequest) bytes() []byte {
	buf := make([]byte, 12*len(r.Entries))
	for i, e := range r.Entries {
		binary.BigEndian.PutUint32(buf[12*i:12*i+4], e.LSType)
		binary.BigEndian.PutUint32(buf[12*i+4:12*i+8], e.LinkStateID)
		binary.BigEndian.PutUint32(buf[12*i+8:12*i+12], e.AdvertisingRouter)
	}
	return buf
}

func decodeLSRequest(data []byte) (*LSRequest, error) {
	if len(data)%12 != 0 {
		return nil, decodeErrorf(ErrShortBody, "lsr: %d bytes not a multiple of 12", len(data))
	}
	n := len(data) / 12
	entries := make([]LSRequestEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = LSRequestEntry{
			LSType:            binary.BigEndian.Uint32(data[12*i : 12*i+4]),
			LinkStateID:       binary.BigEndian.Uint32(data[12*i+4 : 12*i+8]),
			AdvertisingRouter: binary.BigEndian.Uint32(data[12*i+8 : 12*i+12]),
		}
	}
	return &LSRequest{Entries: entries}, nil
}
