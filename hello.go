package ospfd

import "encoding/binary"

// Hello is the type-1 packet body (§4.1).
type Hello struct {
	NetworkMask        uint32
	HelloInterval      uint16
	Options            uint8
	RouterPriority     uint8
	RouterDeadInterval uint32
	DesignatedRouter   uint32
	BackupDesRouter    uint32
	Neighbors          []uint32
}

func (*Hello) packetType() uint8 { return TypeHello }

func (h *Hello) bytes() []byte {
	buf := make([]byte, 20+4*len(h.Neighbors))
	binary.BigEndian.PutUint32(buf[0:4], h.NetworkMask)
	binary.BigEndian.PutUint16(buf[4:6], h.HelloInterval)
	buf[6] = h.Options
	buf[7] = h.RouterPriority
	binary.BigEndian.PutUint32(buf[8:12], h.RouterDeadInterval)
	binary.BigEndian.PutUint32(buf[12:16], h.DesignatedRouter)
	binary.BigEndian.PutUint32(buf[16:20], h.BackupDesRouter)
	for i, n := range h.Neighbors {
		binary.BigEndian.PutUint32(buf[20+4*i:24+4*i], n)
	}
	return buf
}

func decodeHello(data []byte) (*Hello, error) {
	if len(data) < 20 {
		return nil, decodeErrorf(ErrShortBody, "hello: got %d bytes", len(data))
	}
	n := (len(data) - 20) / 4
	neighbors := make([]uint32, n)
	for i := 0; i < n; i++ {
		neighbors[i] = binary.BigEndian.Uint32(data[20+4*i : 24+4*i])
	}
	return &Hello{
		NetworkMask:        binary.BigEndian.Uint32(data[0:4]),
		HelloInterval:      binary.BigEndian.Uint16(data[4:6]),
		Options:            data[6],
		RouterPriority:     data[7],
		RouterDeadInterval: binary.BigEndian.Uint32(data[8:12]),
		DesignatedRouter:   binary.BigEndian.Uint32(data[12:16]),
		BackupDesRouter:    binary.BigEndian.Uint32(data[16:20]),
		Neighbors:          neighbors,
	}, nil
}

// HasNeighbor reports whether id appears in the Hello's neighbor list,
// used to decide the TwoWayReceived/OneWayReceived neighbor event.
func (h *Hello) HasNeighbor(id uint32) bool {
	for _, n := range h.Neighbors {
		if n == id {
			return true
		}
	}
	return false
}
