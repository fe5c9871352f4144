package ospfd

import "testing"

func TestOriginateRouterLSAPointToPointLink(t *testing.T) {
	e, _ := newTestEngine(t, testInterfaceConfig("eth0", 0x0a000001, 0xfffffffe, NetworkPointToPoint, 1))
	ifc := e.interfaceByName("eth0")
	ifc.setState(IfPointToPoint)
	nbr := ifc.addNeighbor(RouterID(2), 0x0a000002, 1)
	nbr.setState(NbrFull)

	area := e.areaFor(BackboneArea)
	e.originateRouterLSA(area)

	lsa, ok := area.LSDB.Get(LSAIdentifier{LSType: LSATypeRouter, LinkStateID: uint32(e.RouterID), AdvertisingRouter: uint32(e.RouterID)})
	if !ok {
		t.Fatal("router-LSA was not installed")
	}
	if len(lsa.Router.Links) != 1 {
		t.Fatalf("got %d links, want 1", len(lsa.Router.Links))
	}
	link := lsa.Router.Links[0]
	if link.LinkType != LinkPointToPoint {
		t.Errorf("link type = %d, want LinkPointToPoint", link.LinkType)
	}
	if link.LinkID != 2 {
		t.Errorf("link ID = %#x, want the peer's router ID (2)", link.LinkID)
	}
}

func TestOriginateRouterLSABroadcastWithoutDRIsStub(t *testing.T) {
	e, _ := newTestEngine(t, testInterfaceConfig("eth0", 0x0a000001, 0xffffff00, NetworkBroadcast, 1))
	ifc := e.interfaceByName("eth0")
	ifc.setState(IfDROther)

	area := e.areaFor(BackboneArea)
	e.originateRouterLSA(area)

	lsa, ok := area.LSDB.Get(LSAIdentifier{LSType: LSATypeRouter, LinkStateID: uint32(e.RouterID), AdvertisingRouter: uint32(e.RouterID)})
	if !ok {
		t.Fatal("router-LSA was not installed")
	}
	link := lsa.Router.Links[0]
	if link.LinkType != LinkStub {
		t.Errorf("link type = %d, want LinkStub (no DR/no adjacent neighbor yet)", link.LinkType)
	}
	if link.LinkID != (0x0a000001 & 0xffffff00) {
		t.Errorf("stub link ID = %#x, want the network address", link.LinkID)
	}
}

func TestOriginateRouterLSABroadcastWithAdjacencyIsTransit(t *testing.T) {
	e, _ := newTestEngine(t, testInterfaceConfig("eth0", 0x0a000001, 0xffffff00, NetworkBroadcast, 1))
	ifc := e.interfaceByName("eth0")
	ifc.setState(IfDR)
	nbr := ifc.addNeighbor(RouterID(2), 0x0a000002, 1)
	nbr.setState(NbrFull)
	ifc.mu.Lock()
	ifc.dr = ifc.Address
	ifc.mu.Unlock()

	area := e.areaFor(BackboneArea)
	e.originateRouterLSA(area)

	lsa, ok := area.LSDB.Get(LSAIdentifier{LSType: LSATypeRouter, LinkStateID: uint32(e.RouterID), AdvertisingRouter: uint32(e.RouterID)})
	if !ok {
		t.Fatal("router-LSA was not installed")
	}
	link := lsa.Router.Links[0]
	if link.LinkType != LinkTransit {
		t.Errorf("link type = %d, want LinkTransit once adjacent over a DR'd broadcast link", link.LinkType)
	}
	if link.LinkID != ifc.Address {
		t.Errorf("transit link ID = %#x, want the DR's address (%#x)", link.LinkID, ifc.Address)
	}
}

func TestOriginateRouterLSASkipsWhenLinksUnchanged(t *testing.T) {
	e, _ := newTestEngine(t, testInterfaceConfig("eth0", 0x0a000001, 0xfffffffe, NetworkPointToPoint, 1))
	ifc := e.interfaceByName("eth0")
	ifc.setState(IfPointToPoint)

	area := e.areaFor(BackboneArea)
	e.originateRouterLSA(area)
	first, ok := area.LSDB.Get(LSAIdentifier{LSType: LSATypeRouter, LinkStateID: uint32(e.RouterID), AdvertisingRouter: uint32(e.RouterID)})
	if !ok {
		t.Fatal("router-LSA was not installed on first call")
	}

	e.originateRouterLSA(area)
	second, _ := area.LSDB.Get(LSAIdentifier{LSType: LSATypeRouter, LinkStateID: uint32(e.RouterID), AdvertisingRouter: uint32(e.RouterID)})
	if second.Header.SequenceNumber != first.Header.SequenceNumber {
		t.Errorf("sequence number changed from %d to %d on an unchanged links vector", first.Header.SequenceNumber, second.Header.SequenceNumber)
	}
}

func TestOriginateNetworkLSARequiresAFullNeighbor(t *testing.T) {
	e, _ := newTestEngine(t, testInterfaceConfig("eth0", 0x0a000001, 0xffffff00, NetworkBroadcast, 1))
	ifc := e.interfaceByName("eth0")
	ifc.setState(IfDR)
	area := e.areaFor(BackboneArea)

	e.originateNetworkLSA(area, ifc)
	if _, ok := area.LSDB.Get(LSAIdentifier{LSType: LSATypeNetwork, LinkStateID: ifc.Address, AdvertisingRouter: uint32(e.RouterID)}); ok {
		t.Fatal("a network-LSA must not be originated with no fully adjacent neighbor")
	}

	nbr := ifc.addNeighbor(RouterID(2), 0x0a000002, 1)
	nbr.setState(NbrFull)
	e.originateNetworkLSA(area, ifc)

	lsa, ok := area.LSDB.Get(LSAIdentifier{LSType: LSATypeNetwork, LinkStateID: ifc.Address, AdvertisingRouter: uint32(e.RouterID)})
	if !ok {
		t.Fatal("network-LSA was not installed once a neighbor reached Full")
	}
	if len(lsa.Network.AttachedRouters) != 2 {
		t.Errorf("got %d attached routers, want 2 (self + the full neighbor)", len(lsa.Network.AttachedRouters))
	}
}

func TestFlushAndReoriginateAgesOutTheOldInstanceFirst(t *testing.T) {
	e, _ := newTestEngine(t, testInterfaceConfig("eth0", 0x0a000001, 0xfffffffe, NetworkPointToPoint, 1))
	area := e.areaFor(BackboneArea)

	id := LSAIdentifier{LSType: LSATypeRouter, LinkStateID: uint32(e.RouterID), AdvertisingRouter: uint32(e.RouterID)}
	existing := routerLSA(uint32(e.RouterID), uint32(e.RouterID), MaxSequenceNum)
	area.LSDB.Install(existing, e.now())

	reoriginated := false
	e.flushAndReoriginate(area, LSATypeRouter, uint32(e.RouterID), func() { reoriginated = true })

	flushed, ok := area.LSDB.Get(id)
	if !ok {
		t.Fatal("the old instance should still be present, now at MaxAge")
	}
	if flushed.Header.Age != MaxAge {
		t.Errorf("age = %d, want MaxAge (%d)", flushed.Header.Age, MaxAge)
	}
	if !reoriginated {
		t.Error("flushAndReoriginate must always invoke the continuation")
	}
}
