package ospfd

import "testing"

func TestInterfacesSnapshotsConfiguredLinks(t *testing.T) {
	e, _ := newTestEngine(t,
		testInterfaceConfig("eth0", 0x0a000001, 0xffffff00, NetworkBroadcast, 1),
		testInterfaceConfig("eth1", 0x0b000001, 0xfffffffe, NetworkPointToPoint, 1),
	)

	statuses := e.Interfaces()
	if len(statuses) != 2 {
		t.Fatalf("got %d interface statuses, want 2", len(statuses))
	}
	byName := make(map[string]InterfaceStatus, len(statuses))
	for _, s := range statuses {
		byName[s.Name] = s
	}
	if _, ok := byName["eth0"]; !ok {
		t.Error("eth0 missing from Interfaces() snapshot")
	}
	if _, ok := byName["eth1"]; !ok {
		t.Error("eth1 missing from Interfaces() snapshot")
	}
}

func TestNeighborsReturnsErrorForUnknownInterface(t *testing.T) {
	e, _ := newTestEngine(t, testInterfaceConfig("eth0", 0x0a000001, 0xffffff00, NetworkBroadcast, 1))
	if _, err := e.Neighbors("eth9"); err == nil {
		t.Fatal("expected an error for an unconfigured interface")
	}
}

func TestNeighborsSnapshotsAdjacency(t *testing.T) {
	e, _ := newTestEngine(t, testInterfaceConfig("eth0", 0x0a000001, 0xffffff00, NetworkBroadcast, 1))
	ifc := e.interfaceByName("eth0")
	nbr := ifc.addNeighbor(RouterID(2), 0x0a000002, 3)
	nbr.setState(NbrFull)

	statuses, err := e.Neighbors("eth0")
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("got %d neighbor statuses, want 1", len(statuses))
	}
	s := statuses[0]
	if s.RouterID != RouterID(2) || s.Address != 0x0a000002 || s.Priority != 3 || s.State != NbrFull {
		t.Errorf("got %+v, want RouterID=2 Address=0x0a000002 Priority=3 State=Full", s)
	}
}

func TestLSDBReturnsAreaHeadersPlusASExternal(t *testing.T) {
	e, _ := newTestEngine(t, testInterfaceConfig("eth0", 0x0a000001, 0xffffff00, NetworkBroadcast, 1))
	area := e.areaFor(BackboneArea)
	area.LSDB.Install(routerLSA(1, 1, InitialSequenceNum), e.now())

	ext := LSA{
		Header:     LSAHeader{LSType: LSATypeASExternal, LinkStateID: 0xc0a80000, AdvertisingRouter: 9, SequenceNumber: InitialSequenceNum},
		ASExternal: &ASExternalLSABody{NetworkMask: 0xffffff00, Metric: 20},
	}
	ext.ComputeChecksum()
	e.asExternal.Install(ext, e.now())

	headers := e.LSDB(BackboneArea)
	var sawRouter, sawExternal bool
	for _, h := range headers {
		if h.LSType == LSATypeRouter && h.LinkStateID == 1 {
			sawRouter = true
		}
		if h.LSType == LSATypeASExternal && h.LinkStateID == 0xc0a80000 {
			sawExternal = true
		}
	}
	if !sawRouter {
		t.Error("LSDB(BackboneArea) missing the installed router-LSA")
	}
	if !sawExternal {
		t.Error("LSDB(BackboneArea) missing the AS-external LSA")
	}
}

func TestHandlePacketDropsUnknownInterface(t *testing.T) {
	e, _ := newTestEngine(t, testInterfaceConfig("eth0", 0x0a000001, 0xffffff00, NetworkBroadcast, 1))
	// Must not panic when the interface name isn't configured.
	e.handlePacket("eth9", "10.0.0.9", []byte{0x02, 0x01})
}

func TestHandlePacketHelloCreatesNeighborAndEntersTwoWay(t *testing.T) {
	e, _ := newTestEngine(t, testInterfaceConfig("eth0", 0x0a000001, 0xffffff00, NetworkBroadcast, 1))
	ifc := e.interfaceByName("eth0")

	hello := &Hello{
		NetworkMask:        ifc.Mask,
		HelloInterval:      ifc.HelloInterval,
		RouterDeadInterval: ifc.RouterDeadInterval,
		RouterPriority:     1,
		Neighbors:          []uint32{uint32(e.RouterID)},
	}
	pkt := NewPacket(TypeHello, 2, uint32(BackboneArea), hello)
	raw := Encode(pkt)

	e.handlePacket("eth0", "10.0.0.2", raw)

	nbr := ifc.neighborByAddress(RouterID(2), "10.0.0.2")
	if nbr == nil {
		t.Fatal("handlePacket did not create a neighbor from the Hello")
	}
	waitForNeighborState(t, nbr, NbrTwoWay)
}

func TestHandlePacketHelloWithMismatchedDeadIntervalIsRejected(t *testing.T) {
	e, _ := newTestEngine(t, testInterfaceConfig("eth0", 0x0a000001, 0xffffff00, NetworkBroadcast, 1))
	ifc := e.interfaceByName("eth0")

	hello := &Hello{
		NetworkMask:        ifc.Mask,
		HelloInterval:      ifc.HelloInterval,
		RouterDeadInterval: ifc.RouterDeadInterval + 1,
		RouterPriority:     1,
	}
	pkt := NewPacket(TypeHello, 2, uint32(BackboneArea), hello)
	raw := Encode(pkt)

	e.handlePacket("eth0", "10.0.0.2", raw)

	if nbr := ifc.neighborByAddress(RouterID(2), "10.0.0.2"); nbr != nil {
		t.Fatal("a Hello with a mismatched RouterDeadInterval must not create a neighbor")
	}
	snap := ifc.counters.snapshot()
	if snap.PolicyErrors == 0 {
		t.Error("mismatched Hello parameters should increment PolicyErrors")
	}
}
