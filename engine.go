package ospfd

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Transport abstracts sending and receiving raw OSPF packets on a named
// interface (§6). Platform-specific implementations live in
// transport_linux.go, transport_darwin.go and the portable fallback in
// transport_generic.go.
type Transport interface {
	// Send transmits raw (a fully encoded OSPF packet, IP payload only)
	// to dest (a multicast group or unicast address) out ifaceName.
	Send(ifaceName, dest string, raw []byte) error
	// Recv blocks until the next OSPF packet arrives on any registered
	// interface, or ctx is done.
	Recv(ctx context.Context) (ifaceName string, src string, raw []byte, err error)
	// Join enables reception on ifaceName, joining the all-SPF-routers
	// and all-D-routers multicast groups.
	Join(ifaceName string) error
	Close() error
}

// RouteInstaller pushes SPF results into the host's forwarding table
// (§6). routeinstall_linux.go adapts it onto vishvananda/netlink; hosts
// without a RouteInstaller can pass nil to run ospfd purely as a route
// computation engine.
type RouteInstaller interface {
	Replace(routes []Route) error
}

// Route is one SPF-computed destination (§4.5).
type Route struct {
	Destination uint32
	Mask        uint32
	NextHop     uint32
	IfaceName   string
	Metric      uint32
	PathType    PathType
}

// PathType ranks SPF route preference (§4.5): intra-area beats
// inter-area beats external type-1 beats external type-2.
type PathType int

const (
	PathIntraArea PathType = iota
	PathInterArea
	PathExternalType1
	PathExternalType2
)

// EngineConfig is the static configuration needed to bring up an
// Engine (§3).
type EngineConfig struct {
	RouterID    RouterID
	Interfaces  []InterfaceConfig
	StubAreas   []AreaID
	SpfHoldTime time.Duration
	Transport   Transport
	Routes      RouteInstaller
}

// Engine is the top-level OSPF router instance: one per RouterID, with
// one Area per configured area and one Interface per configured link
// (§2 component breakdown, §5 concurrency model).
type Engine struct {
	RouterID RouterID
	Transport Transport
	Routes    RouteInstaller

	log *logrus.Entry

	mu         sync.RWMutex
	areas      map[AreaID]*Area
	stubAreas  map[AreaID]bool
	interfaces map[string]*Interface
	asExternal *ASExternalDB

	spfHoldTime time.Duration
	spfMu       sync.Mutex
	spfPending  bool
	spfLast     time.Time
	spfTimer    *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine constructs an Engine from cfg but does not start it; call
// Start to bring interfaces up and begin processing.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.RouterID == 0 {
		return nil, xerrors.New("ospfd: RouterID must be non-zero")
	}
	if cfg.Transport == nil {
		return nil, xerrors.New("ospfd: Transport is required")
	}
	hold := cfg.SpfHoldTime
	if hold <= 0 {
		hold = DefaultSpfHoldTime * time.Second
	}

	e := &Engine{
		RouterID:    cfg.RouterID,
		Transport:   cfg.Transport,
		Routes:      cfg.Routes,
		log:         routerLog(newLogger(), cfg.RouterID),
		areas:       make(map[AreaID]*Area),
		stubAreas:   make(map[AreaID]bool),
		interfaces:  make(map[string]*Interface),
		asExternal:  newASExternalDB(),
		spfHoldTime: hold,
	}
	for _, a := range cfg.StubAreas {
		e.stubAreas[a] = true
	}
	for _, icfg := range cfg.Interfaces {
		if err := e.addInterfaceLocked(icfg); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) addInterfaceLocked(cfg InterfaceConfig) error {
	if _, exists := e.interfaces[cfg.Name]; exists {
		return xerrors.Errorf("ospfd: duplicate interface %q", cfg.Name)
	}
	e.ensureArea(cfg.Area)
	ifc := newInterface(e, cfg)
	e.interfaces[cfg.Name] = ifc
	return nil
}

func (e *Engine) ensureArea(id AreaID) *Area {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.areas[id]
	if !ok {
		a = newArea(id)
		e.areas[id] = a
	}
	return a
}

func (e *Engine) areaFor(id AreaID) *Area {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.areas[id]
}

func (e *Engine) areaIsStub(id AreaID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stubAreas[id]
}

func (e *Engine) now() time.Time { return time.Now() }

// Start brings every configured interface up and begins the receive,
// aging and SPF-scheduling loops (§5).
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.mu.RLock()
	ifaces := make([]*Interface, 0, len(e.interfaces))
	for _, ifc := range e.interfaces {
		ifaces = append(ifaces, ifc)
	}
	areas := make([]*Area, 0, len(e.areas))
	for _, a := range e.areas {
		areas = append(areas, a)
	}
	e.mu.RUnlock()

	for _, ifc := range ifaces {
		if err := e.Transport.Join(ifc.Name); err != nil {
			e.log.WithError(err).WithField("iface", ifc.Name).Warn("join failed")
			continue
		}
		e.wg.Add(1)
		go func(ifc *Interface) {
			defer e.wg.Done()
			ifc.run(e.ctx)
		}(ifc)
		ifc.Send(EvInterfaceUp)
	}

	stop := make(chan struct{})
	go func() {
		<-e.ctx.Done()
		close(stop)
	}()
	for _, a := range areas {
		e.wg.Add(1)
		go func(a *Area) {
			defer e.wg.Done()
			a.runAging(stop, e.onAreaMaxAge)
		}(a)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.recvLoop(e.ctx)
	}()

	return nil
}

// Stop signals every interface, area ticker and the receive loop to
// exit and waits for them to finish.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) recvLoop(ctx context.Context) {
	for {
		ifaceName, src, raw, err := e.Transport.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.log.WithError(err).Debug("recv error")
			continue
		}
		e.handlePacket(ifaceName, src, raw)
	}
}

func (e *Engine) interfaceByName(name string) *Interface {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.interfaces[name]
}

func (e *Engine) interfaceByAddress(addr uint32) *Interface {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ifc := range e.interfaces {
		if ifc.Address == addr {
			return ifc
		}
	}
	return nil
}

func (e *Engine) handlePacket(ifaceName, src string, raw []byte) {
	ifc := e.interfaceByName(ifaceName)
	if ifc == nil {
		return
	}
	pkt, err := Decode(raw, uint32(ifc.Area), NoAuth{})
	if err != nil {
		ifc.counters.incDecode()
		ifc.log.WithError(err).WithField("src", src).Debug("decode failed")
		return
	}

	if pkt.Type == TypeHello {
		e.handleHello(ifc, src, pkt)
		return
	}

	nbr := ifc.neighborByAddress(RouterID(pkt.RouterID), src)
	if nbr == nil {
		return
	}

	switch pkt.Type {
	case TypeDatabaseDescription:
		e.handleDBDescription(ifc, nbr, pkt.Body.(*DBDescription))
	case TypeLinkStateRequest:
		e.receiveLSRequest(ifc, nbr, pkt.Body.(*LSRequest))
	case TypeLinkStateUpdate:
		e.receiveLSUpdate(ifc, nbr, pkt.Body.(*LSUpdate))
	case TypeLinkStateAck:
		e.receiveLSAck(nbr, pkt.Body.(*LSAck))
	}
}

func (e *Engine) handleHello(ifc *Interface, src string, pkt *Packet) {
	hello := pkt.Body.(*Hello)
	if hello.NetworkMask != ifc.Mask && ifc.NetworkType != NetworkPointToPoint {
		ifc.counters.incPolicy()
		return
	}
	if hello.HelloInterval != ifc.HelloInterval || hello.RouterDeadInterval != ifc.RouterDeadInterval {
		ifc.counters.incPolicy()
		return
	}

	srcAddr, _ := ParseIPv4ToUint32(src)
	nbr := ifc.neighborByAddress(RouterID(pkt.RouterID), src)
	if nbr == nil {
		nbr = ifc.addNeighbor(RouterID(pkt.RouterID), srcAddr, hello.RouterPriority)
	}
	nbr.observeHello(hello, srcAddr)
	nbr.Send(NbrHelloReceived)

	if hello.HasNeighbor(uint32(e.RouterID)) {
		nbr.Send(NbrTwoWayReceived)
	} else {
		nbr.Send(NbrOneWayReceived)
	}
}

func (e *Engine) handleDBDescription(ifc *Interface, nbr *Neighbor, dd *DBDescription) {
	nbr.receiveDD(e, ifc, dd)
}

// summaryFor returns the database-summary headers to announce during
// DD exchange for the given area: that area's router/network/summary
// LSAs plus, unless the area is a stub, the AS-external LSAs (§4.3).
func (e *Engine) summaryFor(areaID AreaID) []LSAHeader {
	area := e.areaFor(areaID)
	if area == nil {
		return nil
	}
	headers := area.LSDB.Headers()
	if !e.areaIsStub(areaID) {
		headers = append(headers, e.asExternal.Headers()...)
	}
	return headers
}

func (e *Engine) onAdjacencyFull(ifc *Interface, nbr *Neighbor) {
	e.log.WithFields(logrus.Fields{"iface": ifc.Name, "neighbor": nbr.RouterID().String()}).Info("adjacency full")
	e.originateForInterface(ifc)
	e.scheduleSPF()
}

func (e *Engine) onInterfaceStateChange(ifc *Interface, prev, next InterfaceState) {
	e.originateForInterface(ifc)
	e.scheduleSPF()
}

func (e *Engine) onDRChange(ifc *Interface) {
	e.originateForInterface(ifc)
	e.scheduleSPF()
}

// onAreaMaxAge drives §4.4's MaxAge-flush pipeline (core invariant 2,
// scenario S4) for every LSA that newly reached MaxAge this aging tick.
// An LSA we originated is re-originated fresh rather than left to stand;
// anyone else's is flooded one last time and, once every neighbor has
// acknowledged it, removed.
func (e *Engine) onAreaMaxAge(areaID AreaID, lsas []LSA) {
	area := e.areaFor(areaID)
	if area == nil {
		return
	}
	for _, lsa := range lsas {
		id := lsa.ID()
		db := e.dbFor(area, id.LSType)
		if db == nil {
			continue
		}
		if RouterID(lsa.Header.AdvertisingRouter) == e.RouterID {
			e.reoriginateAfterMaxAge(area, db, lsa)
			continue
		}
		e.log.WithField("lsa", id).Debug("lsa reached maxage")
		e.floodAndInstall(nil, nil, lsa, area, db)
		reapIfMaxAge(db, id)
	}
}

// reoriginateAfterMaxAge replaces a self-originated LSA that aged out
// naturally (rather than through flushAndReoriginate's own
// sequence-wrap path) with a fresh instance, superseding the stale one
// on every neighbor as soon as it is flooded. LSA types this router has
// no origination path for (e.g. summary-LSAs) fall back to flushing the
// MaxAge instance like any other router's flush.
func (e *Engine) reoriginateAfterMaxAge(area *Area, db lsaTable, lsa LSA) {
	switch lsa.Header.LSType {
	case LSATypeRouter:
		area.forceRouterRefresh()
		e.originateRouterLSA(area)
	case LSATypeNetwork:
		if ifc := e.interfaceByAddress(lsa.Header.LinkStateID); ifc != nil && ifc.State() == IfDR {
			e.originateNetworkLSA(area, ifc)
			return
		}
		e.floodAndInstall(nil, nil, lsa, area, db)
		reapIfMaxAge(db, lsa.ID())
	default:
		e.floodAndInstall(nil, nil, lsa, area, db)
		reapIfMaxAge(db, lsa.ID())
	}
}

// Interfaces returns a point-in-time snapshot of every configured
// interface's operational state, for control-plane inspection
// (SPEC_FULL.md supplemented CLI operations; this engine exposes plain
// methods rather than an interactive shell).
func (e *Engine) Interfaces() []InterfaceStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]InterfaceStatus, 0, len(e.interfaces))
	for _, ifc := range e.interfaces {
		dr, bdr := ifc.drBdr()
		out = append(out, InterfaceStatus{
			Name:  ifc.Name,
			Area:  ifc.Area,
			State: ifc.State(),
			DR:    dr,
			BDR:   bdr,
		})
	}
	return out
}

// InterfaceStatus is a snapshot of one interface's operational state.
type InterfaceStatus struct {
	Name  string
	Area  AreaID
	State InterfaceState
	DR    uint32
	BDR   uint32
}

// Neighbors returns a snapshot of the neighbors heard on ifaceName.
func (e *Engine) Neighbors(ifaceName string) ([]NeighborStatus, error) {
	ifc := e.interfaceByName(ifaceName)
	if ifc == nil {
		return nil, xerrors.Errorf("ospfd: no such interface %q", ifaceName)
	}
	ifc.mu.RLock()
	defer ifc.mu.RUnlock()
	out := make([]NeighborStatus, 0, len(ifc.neighbors))
	for _, n := range ifc.neighbors {
		out = append(out, NeighborStatus{
			RouterID: n.RouterID(),
			Address:  n.Address(),
			State:    n.State(),
			Priority: n.Priority(),
		})
	}
	return out, nil
}

// NeighborStatus is a snapshot of one neighbor's adjacency state.
type NeighborStatus struct {
	RouterID RouterID
	Address  uint32
	State    NeighborState
	Priority uint8
}

// LSDB returns a snapshot of the LSA headers held for areaID followed by
// the AS-external headers, or only the AS-external headers when areaID
// is not a configured area.
func (e *Engine) LSDB(areaID AreaID) []LSAHeader {
	if area := e.areaFor(areaID); area != nil {
		headers := area.LSDB.Headers()
		return append(headers, e.asExternal.Headers()...)
	}
	return e.asExternal.Headers()
}
