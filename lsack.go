package ospfd

// LSAck is the type-5 packet body: a vector of LSA headers being
// acknowledged.
type LSAck struct {
	Headers []LSAHeader
}

func (*LSAck) packetType() uint8 { return TypeLinkStateAck }

func (a *LSAck) bytes() []byte {
	buf := make([]byte, 0, LSAHeaderLen*len(a.Headers))
	for _, h := range a.Headers {
		buf = append(buf, h.bytes()...)
	}
	return buf
}

func decodeLSAck(data []byte) (*LSAck, error) {
	if len(data)%LSAHeaderLen != 0 {
		return nil, decodeErrorf(ErrBadLSAHeader, "lsack: %d bytes not a multiple of %d", len(data), LSAHeaderLen)
	}
	n := len(data) / LSAHeaderLen
	headers := make([]LSAHeader, n)
	for i := 0; i < n; i++ {
		hdr, err := decodeLSAHeader(data[i*LSAHeaderLen : (i+1)*LSAHeaderLen])
		if err != nil {
			return nil, err
		}
		headers[i] = hdr
	}
	return &LSAck{Headers: headers}, nil
}
