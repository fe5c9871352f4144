package ospfd

import "time"

// scheduleSPF coalesces SPF runs so that at most one executes per
// SpfHoldTime window (§4.5: "recomputation is not run more than once
// per hold time").
func (e *Engine) scheduleSPF() {
	e.spfMu.Lock()
	defer e.spfMu.Unlock()

	if e.spfPending {
		return
	}
	elapsed := time.Since(e.spfLast)
	if elapsed >= e.spfHoldTime {
		e.spfPending = true
		go e.runSPFNow()
		return
	}
	e.spfPending = true
	delay := e.spfHoldTime - elapsed
	e.spfTimer = time.AfterFunc(delay, e.runSPFNow)
}

func (e *Engine) runSPFNow() {
	e.spfMu.Lock()
	e.spfPending = false
	e.spfLast = time.Now()
	e.spfMu.Unlock()

	routes := e.computeSPF()
	if e.Routes != nil {
		if err := e.Routes.Replace(routes); err != nil {
			e.log.WithError(err).Warn("route install failed")
		}
	}
}

// spfVertex is one node in the per-area SPF graph: either a router
// (keyed by RouterID) or a transit network (keyed by the DR's address
// with bit 32 of the uint64 key set, in the same map; see key).
type spfVertex struct {
	isNetwork bool
	routerID  uint32 // valid when !isNetwork
	netAddr   uint32 // valid when isNetwork
	netMask   uint32

	dist     uint32
	nextHops map[uint32]string // nexthop IP -> egress interface name
	links    []RouterLink       // only populated for router vertices

	// attachedRouters lists the router IDs a transit network's
	// network-LSA names (§12.4.2), letting dijkstra relax edges from the
	// network vertex out to every router it connects at zero cost.
	attachedRouters []uint32
}

func (v spfVertex) key() uint64 {
	if v.isNetwork {
		return 0x1_00000000 | uint64(v.netAddr)
	}
	return uint64(v.routerID)
}

// computeSPF runs Dijkstra independently per area (§4.5) and then
// resolves inter-area and external routes from summary- and
// AS-external-LSAs, returning the full route set to install.
func (e *Engine) computeSPF() []Route {
	e.mu.RLock()
	areas := make([]*Area, 0, len(e.areas))
	for _, a := range e.areas {
		areas = append(areas, a)
	}
	e.mu.RUnlock()

	var routes []Route
	intraAreaNets := make(map[uint64]bool)

	for _, area := range areas {
		vertices := e.buildGraph(area)
		self := uint64(e.RouterID)
		if _, ok := vertices[self]; !ok {
			continue
		}
		e.dijkstra(vertices, self)
		for _, v := range vertices {
			if v.isNetwork {
				if len(v.nextHops) == 0 {
					continue
				}
				for nh, ifaceName := range v.nextHops {
					if ifaceName == "" {
						ifaceName = e.ifaceTowards(nh)
					}
					routes = append(routes, Route{
						Destination: v.netAddr & v.netMask,
						Mask:        v.netMask,
						NextHop:     nh,
						IfaceName:   ifaceName,
						Metric:      v.dist,
						PathType:    PathIntraArea,
					})
				}
				intraAreaNets[0x1_00000000|uint64(v.netAddr&v.netMask)] = true
			}
		}
	}

	routes = append(routes, e.resolveInterArea(areas, intraAreaNets)...)
	routes = append(routes, e.resolveExternal(intraAreaNets)...)
	return routes
}

// buildGraph constructs the per-area SPF graph from router- and
// network-LSAs (§4.5): one vertex per router and per transit network,
// edges taken from each router-LSA's links vector.
func (e *Engine) buildGraph(area *Area) map[uint64]*spfVertex {
	vertices := make(map[uint64]*spfVertex)

	for _, lsa := range area.LSDB.Router.all() {
		if lsa.Router == nil {
			continue
		}
		v := &spfVertex{routerID: lsa.Header.AdvertisingRouter, dist: ^uint32(0), nextHops: map[uint32]string{}, links: lsa.Router.Links}
		vertices[uint64(v.routerID)] = v
	}
	for _, lsa := range area.LSDB.Network.all() {
		if lsa.Network == nil {
			continue
		}
		v := &spfVertex{
			isNetwork:       true,
			netAddr:         lsa.Header.LinkStateID,
			netMask:         lsa.Network.NetworkMask,
			dist:            ^uint32(0),
			nextHops:        map[uint32]string{},
			attachedRouters: lsa.Network.AttachedRouters,
		}
		vertices[v.key()] = v
	}
	return vertices
}

// linkBackAddress searches target's own router-LSA links for the entry
// pointing back at fromKey (a router ID for point-to-point/virtual links,
// or a network's key for transit links) and returns its Link Data: the
// address target itself advertises on that link, i.e. the real next-hop
// gateway a root one hop away would use to reach it (§16.1, case 1).
func linkBackAddress(target *spfVertex, fromKey uint64) (uint32, bool) {
	for _, link := range target.links {
		var linkKey uint64
		switch link.LinkType {
		case LinkPointToPoint, LinkVirtual:
			linkKey = uint64(link.LinkID)
		case LinkTransit:
			linkKey = 0x1_00000000 | uint64(link.LinkID)
		default:
			continue
		}
		if linkKey == fromKey {
			return link.LinkData, true
		}
	}
	return 0, false
}

// dijkstra runs the standard relaxation loop over vertices rooted at
// root, whose key must already be present (§4.5).
func (e *Engine) dijkstra(vertices map[uint64]*spfVertex, root uint64) {
	vertices[root].dist = 0
	visited := make(map[uint64]bool)

	for {
		var u *spfVertex
		var uKey uint64
		best := ^uint32(0)
		for k, v := range vertices {
			if visited[k] {
				continue
			}
			if v.dist < best {
				best = v.dist
				u = v
				uKey = k
			}
		}
		if u == nil || u.dist == ^uint32(0) {
			break
		}
		visited[uKey] = true

		if u.isNetwork {
			// A transit network reaches every router it attaches at
			// zero cost (§12.4.2); the network itself is never root,
			// since root is always this router.
			for _, attached := range u.attachedRouters {
				nv, ok := vertices[uint64(attached)]
				if !ok {
					continue
				}
				if u.dist < nv.dist {
					nv.dist = u.dist
					nv.nextHops = u.nextHops
					if addr, ok := linkBackAddress(nv, uKey); ok {
						nv.nextHops = map[uint32]string{addr: ""}
					}
				}
			}
			continue
		}
		for _, link := range u.links {
			var neighborKey uint64
			var cost uint32
			switch link.LinkType {
			case LinkPointToPoint, LinkVirtual:
				neighborKey = uint64(link.LinkID)
				cost = uint32(link.Metric)
			case LinkTransit:
				neighborKey = 0x1_00000000 | uint64(link.LinkID)
				cost = uint32(link.Metric)
			default:
				continue
			}
			nv, ok := vertices[neighborKey]
			if !ok {
				continue
			}
			nd := u.dist + cost
			if nd < nv.dist {
				nv.dist = nd
				switch {
				case uKey == root && nv.isNetwork:
					// Root is directly attached to this network: no
					// gateway is needed, only the egress interface.
					nv.nextHops = map[uint32]string{link.LinkData: ""}
				case uKey == root:
					if addr, ok := linkBackAddress(nv, root); ok {
						nv.nextHops = map[uint32]string{addr: ""}
					} else {
						nv.nextHops = map[uint32]string{link.LinkData: ""}
					}
				default:
					nv.nextHops = u.nextHops
				}
			}
		}
	}
}

// resolveInterArea promotes summary-LSA routes for networks not already
// reached intra-area (§4.5's simplified inter-area rule: no full
// virtual-link transit computation, recorded as an explicit scope
// decision). Every area's summaries are used alike: no area's view is
// preferred, and a network summarised in several areas yields one route
// per area rather than only the cheapest.
func (e *Engine) resolveInterArea(areas []*Area, intraAreaNets map[uint64]bool) []Route {
	var routes []Route
	for _, area := range areas {
		for _, lsa := range area.LSDB.Summary.all() {
			if lsa.Summary == nil || lsa.Header.LSType != LSATypeSummaryNet {
				continue
			}
			key := 0x1_00000000 | uint64(lsa.Header.LinkStateID)
			if intraAreaNets[key] {
				continue
			}
			border, ok := e.routerReachable(area, lsa.Header.AdvertisingRouter)
			if !ok {
				continue
			}
			routes = append(routes, Route{
				Destination: lsa.Header.LinkStateID,
				Mask:        lsa.Summary.NetworkMask,
				NextHop:     border.nextHop,
				IfaceName:   border.iface,
				Metric:      border.dist + lsa.Summary.Metric,
				PathType:    PathInterArea,
			})
		}
	}
	return routes
}

type borderReach struct {
	dist    uint32
	nextHop uint32
	iface   string
}

// routerReachable reports the SPF distance and next hop to routerID
// within area, rebuilding area's graph and running a full Dijkstra pass
// on every call.
func (e *Engine) routerReachable(area *Area, routerID uint32) (borderReach, bool) {
	vertices := e.buildGraph(area)
	self := uint64(e.RouterID)
	if _, ok := vertices[self]; !ok {
		return borderReach{}, false
	}
	e.dijkstra(vertices, self)
	v, ok := vertices[uint64(routerID)]
	if !ok || v.dist == ^uint32(0) {
		return borderReach{}, false
	}
	for nh := range v.nextHops {
		ifaceName := e.ifaceTowards(nh)
		return borderReach{dist: v.dist, nextHop: nh, iface: ifaceName}, true
	}
	return borderReach{}, false
}

func (e *Engine) ifaceTowards(nextHop uint32) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ifc := range e.interfaces {
		if ifc.Address&ifc.Mask == nextHop&ifc.Mask {
			return ifc.Name
		}
	}
	return ""
}

// resolveExternal promotes AS-external-LSA routes reachable from any
// ASBR this router can reach intra-area in one of its areas (§4.5); an
// ASBR known only through ASBR-summary-LSAs is not used.
func (e *Engine) resolveExternal(intraAreaNets map[uint64]bool) []Route {
	var routes []Route
	e.mu.RLock()
	areas := make([]*Area, 0, len(e.areas))
	for _, a := range e.areas {
		areas = append(areas, a)
	}
	e.mu.RUnlock()

	for _, lsa := range e.asExternal.All() {
		if lsa.ASExternal == nil {
			continue
		}
		var best *borderReach
		for _, area := range areas {
			if br, ok := e.routerReachable(area, lsa.Header.AdvertisingRouter); ok {
				if best == nil || br.dist < best.dist {
					best = &br
				}
			}
		}
		if best == nil {
			continue
		}
		pt := PathExternalType1
		if lsa.ASExternal.ExternalType2 {
			pt = PathExternalType2
		}
		metric := lsa.ASExternal.Metric
		if pt == PathIntraArea || pt == PathExternalType1 {
			metric += best.dist
		}
		routes = append(routes, Route{
			Destination: lsa.Header.LinkStateID,
			Mask:        lsa.ASExternal.NetworkMask,
			NextHop:     best.nextHop,
			IfaceName:   best.iface,
			Metric:      metric,
			PathType:    pt,
		})
	}
	return routes
}
