package ospfd

import (
	"context"
	"sync"
)

// fakeTransport is an in-memory Transport used across the test suite: it
// records every packet Send writes and lets a test inject packets for
// Recv to deliver, without touching any real socket or interface.
type fakeTransport struct {
	mu      sync.Mutex
	joined  map[string]bool
	sent    []sentPacket
	inbox   chan rawDatagram
	closed  bool
}

type sentPacket struct {
	ifaceName string
	dest      string
	raw       []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{joined: make(map[string]bool), inbox: make(chan rawDatagram, 64)}
}

func (f *fakeTransport) Join(ifaceName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined[ifaceName] = true
	return nil
}

func (f *fakeTransport) Send(ifaceName, dest string, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(raw))
	copy(cp, raw)
	f.sent = append(f.sent, sentPacket{ifaceName: ifaceName, dest: dest, raw: cp})
	return nil
}

func (f *fakeTransport) Recv(ctx context.Context) (string, string, []byte, error) {
	select {
	case <-ctx.Done():
		return "", "", nil, ctx.Err()
	case d := <-f.inbox:
		return d.ifaceName, d.src, d.payload, nil
	}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) lastSent() (sentPacket, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentPacket{}, false
	}
	return f.sent[len(f.sent)-1], true
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestEngine(t interface{ Fatalf(string, ...any) }, ifaces ...InterfaceConfig) (*Engine, *fakeTransport) {
	ft := newFakeTransport()
	cfg := EngineConfig{
		RouterID:   RouterID(0x01010101),
		Interfaces: ifaces,
		Transport:  ft,
	}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, ft
}

func testInterfaceConfig(name string, addr, mask uint32, nt NetworkType, prio uint8) InterfaceConfig {
	return InterfaceConfig{
		Name:               name,
		Address:            addr,
		Mask:               mask,
		Area:               BackboneArea,
		NetworkType:        nt,
		Cost:               10,
		HelloInterval:      10,
		RouterDeadInterval: 40,
		RetransmitInterval: 5,
		InfTransDelay:      1,
		Priority:           prio,
	}
}
