package ospfd

// originateForInterface rebuilds and, if changed, reinstalls and
// refloods this router's router-LSA for ifc's area, and its network-LSA
// if it is that area's DR (§4.4's "an LSA's contents change" trigger).
func (e *Engine) originateForInterface(ifc *Interface) {
	area := e.areaFor(ifc.Area)
	if area == nil {
		return
	}
	e.originateRouterLSA(area)
	if ifc.State() == IfDR {
		e.originateNetworkLSA(area, ifc)
	}
}

// originateRouterLSA builds this router's router-LSA for area from the
// current state of every interface attached to it, and installs it only
// if the links vector actually changed (§3 invariant 3, §4.4).
func (e *Engine) originateRouterLSA(area *Area) {
	e.mu.RLock()
	var links []RouterLink
	var hasVirtualLink, hasTransitNetwork bool
	for _, ifc := range e.interfaces {
		if ifc.Area != area.ID {
			continue
		}
		st := ifc.State()
		if st == IfDown || st == IfLoopback {
			continue
		}
		switch ifc.NetworkType {
		case NetworkPointToPoint:
			links = append(links, RouterLink{
				LinkID:   ifc.peerRouterIDOrSelf(),
				LinkData: ifc.Address,
				LinkType: LinkPointToPoint,
				Metric:   ifc.Cost,
			})
		case NetworkVirtualLink:
			hasVirtualLink = true
			links = append(links, RouterLink{
				LinkID:   ifc.peerRouterIDOrSelf(),
				LinkData: ifc.Address,
				LinkType: LinkVirtual,
				Metric:   ifc.Cost,
			})
		default:
			dr, _ := ifc.drBdr()
			if dr != 0 && ifc.hasAdjacentNeighbor() {
				hasTransitNetwork = true
				links = append(links, RouterLink{
					LinkID:   dr,
					LinkData: ifc.Address,
					LinkType: LinkTransit,
					Metric:   ifc.Cost,
				})
			} else {
				links = append(links, RouterLink{
					LinkID:   ifc.Address & ifc.Mask,
					LinkData: ifc.Mask,
					LinkType: LinkStub,
					Metric:   ifc.Cost,
				})
			}
		}
	}
	e.mu.RUnlock()

	if !area.linksChanged(links) {
		return
	}
	area.setLastRouterLinks(links)

	seq, mustFlush := area.nextRouterSeq()
	if mustFlush {
		e.flushAndReoriginate(area, LSATypeRouter, uint32(e.RouterID), func() {
			area.restartRouterSeq()
			area.forceRouterRefresh()
			e.originateRouterLSA(area)
		})
		return
	}

	flags := uint8(0)
	if hasVirtualLink {
		flags |= 0x04 // V-bit
	}
	if hasTransitNetwork {
		// B/E bits are deployment policy this engine does not set by
		// default; left as a future extension point.
		_ = hasTransitNetwork
	}

	lsa := LSA{
		Header: LSAHeader{
			Age:               0,
			Options:           0x02,
			LSType:            LSATypeRouter,
			LinkStateID:       uint32(e.RouterID),
			AdvertisingRouter: uint32(e.RouterID),
			SequenceNumber:    seq,
		},
		Router: &RouterLSABody{Flags: flags, Links: links},
	}
	lsa.ComputeChecksum()
	e.floodAndInstall(nil, nil, lsa, area, area.LSDB)
}

// originateNetworkLSA builds the network-LSA for the broadcast/NBMA
// network attached to ifc, listing every fully adjacent neighbor plus
// ourselves (§4.4). Only called while ifc is DR for its network.
func (e *Engine) originateNetworkLSA(area *Area, ifc *Interface) {
	ifc.mu.RLock()
	attached := []uint32{uint32(e.RouterID)}
	anyFull := false
	for _, n := range ifc.neighbors {
		if n.State() == NbrFull {
			attached = append(attached, uint32(n.RouterID()))
			anyFull = true
		}
	}
	ifc.mu.RUnlock()

	if !anyFull {
		area.LSDB.Remove(LSAIdentifier{LSType: LSATypeNetwork, LinkStateID: ifc.Address, AdvertisingRouter: uint32(e.RouterID)})
		return
	}

	seq, mustFlush := area.nextNetworkSeq(ifc.Address)
	if mustFlush {
		e.flushAndReoriginate(area, LSATypeNetwork, ifc.Address, func() {
			area.mu.Lock()
			delete(area.networkSeq, ifc.Address)
			area.mu.Unlock()
			e.originateNetworkLSA(area, ifc)
		})
		return
	}

	lsa := LSA{
		Header: LSAHeader{
			Options:           0x02,
			LSType:            LSATypeNetwork,
			LinkStateID:       ifc.Address,
			AdvertisingRouter: uint32(e.RouterID),
			SequenceNumber:    seq,
		},
		Network: &NetworkLSABody{NetworkMask: ifc.Mask, AttachedRouters: attached},
	}
	lsa.ComputeChecksum()
	e.floodAndInstall(nil, nil, lsa, area, area.LSDB)
}

// flushAndReoriginate implements the MaxSequenceNumber wraparound
// procedure (§3 invariant 3, S6): flood the current instance at MaxAge,
// then invoke again at once to originate a fresh instance at
// InitialSequenceNumber. It does not wait for neighbors to acknowledge
// the MaxAge instance before calling again.
func (e *Engine) flushAndReoriginate(area *Area, lsType uint8, linkStateID uint32, again func()) {
	id := LSAIdentifier{LSType: lsType, LinkStateID: linkStateID, AdvertisingRouter: uint32(e.RouterID)}
	lsa, ok := area.LSDB.Get(id)
	if !ok {
		again()
		return
	}
	lsa.Header.Age = MaxAge
	lsa.ComputeChecksum()
	e.floodAndInstall(nil, nil, lsa, area, area.LSDB)
	again()
}

func (ifc *Interface) peerRouterIDOrSelf() uint32 {
	ifc.mu.RLock()
	defer ifc.mu.RUnlock()
	for _, n := range ifc.neighbors {
		return uint32(n.RouterID())
	}
	return 0
}

func (ifc *Interface) hasAdjacentNeighbor() bool {
	ifc.mu.RLock()
	defer ifc.mu.RUnlock()
	for _, n := range ifc.neighbors {
		if n.State() == NbrFull {
			return true
		}
	}
	return false
}
