package ospfd

import "sync"

// BytesPool is a sync.Pool of fixed-size byte slices, used to avoid an
// allocation on every packet receive (§5's per-interface goroutines all
// read at a steady rate, so reusing one pool across them keeps GC
// pressure flat rather than scaling with traffic).
type BytesPool struct {
	pool sync.Pool
	size int
}

// NewBytesPool creates a pool of slices of exactly size bytes.
func NewBytesPool(size int) *BytesPool {
	return &BytesPool{
		pool: sync.Pool{New: func() interface{} { return make([]byte, size) }},
		size: size,
	}
}

// Get returns a zeroed slice of the pool's configured size.
func (p *BytesPool) Get() []byte {
	buf := p.pool.Get().([]byte)
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Put returns buf to the pool if its capacity still matches.
func (p *BytesPool) Put(buf []byte) {
	if cap(buf) >= p.size {
		p.pool.Put(buf[:p.size])
	}
}

// recvBufferSize comfortably holds the largest OSPF packet this engine
// will ever decode: a Link State Update carrying a full router-LSA set
// at the 65535-byte IPv4 datagram ceiling.
const recvBufferSize = 65536

var recvBufferPool = NewBytesPool(recvBufferSize)

// getRecvBuffer and putRecvBuffer are used by the platform transports'
// receive loops (transport_linux.go, transport_generic.go) to recycle
// the raw-read scratch buffer across packets.
func getRecvBuffer() []byte  { return recvBufferPool.Get() }
func putRecvBuffer(b []byte) { recvBufferPool.Put(b) }
