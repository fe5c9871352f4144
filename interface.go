package ospfd

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// InterfaceState is one of the seven interface FSM states (§4.2).
type InterfaceState int

const (
	IfDown InterfaceState = iota
	IfLoopback
	IfWaiting
	IfPointToPoint
	IfDROther
	IfBackup
	IfDR
)

func (s InterfaceState) String() string {
	switch s {
	case IfDown:
		return "Down"
	case IfLoopback:
		return "Loopback"
	case IfWaiting:
		return "Waiting"
	case IfPointToPoint:
		return "PointToPoint"
	case IfDROther:
		return "DRother"
	case IfBackup:
		return "Backup"
	case IfDR:
		return "DR"
	default:
		return "Unknown"
	}
}

// InterfaceEvent is one of the interface FSM's input events (§4.2).
type InterfaceEvent int

const (
	EvInterfaceUp InterfaceEvent = iota
	EvWaitTimer
	EvBackupSeen
	EvNeighborChange
	EvLoopInd
	EvUnloopInd
	EvInterfaceDown
)

// InterfaceConfig is the static, operator-supplied configuration for
// one interface (§3).
type InterfaceConfig struct {
	Name               string
	Address            uint32
	Mask               uint32
	Area               AreaID
	NetworkType        NetworkType
	Cost               uint16
	HelloInterval      uint16
	RouterDeadInterval uint32
	RetransmitInterval uint16
	InfTransDelay      uint16
	Priority           uint8
	AuthType           uint16
	AuthKey            uint64
	// NBMANeighbors lists the statically configured neighbor addresses
	// on an NBMA network, which require an explicit Start event instead
	// of Hello-triggered creation (§3, SPEC_FULL.md NBMA bootstrap).
	NBMANeighbors []uint32
}

// counters tracks the per-interface drop counts §7 and SPEC_FULL.md's
// supplemented "explicit area/auth-mismatch counters" call for.
type counters struct {
	mu            sync.Mutex
	DecodeErrors  uint64
	PolicyErrors  uint64
	IOFailures    uint64
}

func (c *counters) incDecode() { c.mu.Lock(); c.DecodeErrors++; c.mu.Unlock() }
func (c *counters) incPolicy() { c.mu.Lock(); c.PolicyErrors++; c.mu.Unlock() }
func (c *counters) incIO()     { c.mu.Lock(); c.IOFailures++; c.mu.Unlock() }

func (c *counters) snapshot() counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return counters{DecodeErrors: c.DecodeErrors, PolicyErrors: c.PolicyErrors, IOFailures: c.IOFailures}
}

// Interface is one logical actor per attached link (§2 Control flow).
// Its FSM, DR election and hello production run serially on the
// goroutine started by Engine.Start (§5(b): "within a single
// interface, DR election is serialised w.r.t. hello production").
type Interface struct {
	InterfaceConfig

	engine *Engine
	log    *logrus.Entry

	mu    sync.RWMutex
	state InterfaceState
	dr    uint32
	bdr   uint32

	neighbors map[uint32]*Neighbor // keyed by neighbor IP address

	events chan InterfaceEvent
	cancel context.CancelFunc

	counters counters
}

func newInterface(e *Engine, cfg InterfaceConfig) *Interface {
	return &Interface{
		InterfaceConfig: cfg,
		engine:          e,
		log:             ifaceLog(e.log.Logger, e.RouterID, cfg.Name),
		state:           IfDown,
		neighbors:       make(map[uint32]*Neighbor),
		events:          make(chan InterfaceEvent, 32),
	}
}

// State returns the interface's current FSM state.
func (ifc *Interface) State() InterfaceState {
	ifc.mu.RLock()
	defer ifc.mu.RUnlock()
	return ifc.state
}

func (ifc *Interface) drBdr() (dr, bdr uint32) {
	ifc.mu.RLock()
	defer ifc.mu.RUnlock()
	return ifc.dr, ifc.bdr
}

// run is the interface's event loop (§5: "one per interface FSM").
func (ifc *Interface) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	ifc.cancel = cancel

	var helloTicker *time.Ticker
	var waitTimer *time.Timer
	defer func() {
		if helloTicker != nil {
			helloTicker.Stop()
		}
		if waitTimer != nil {
			waitTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ifc.events:
			ifc.handle(ev, &helloTicker, &waitTimer)
		case <-tickerC(helloTicker):
			ifc.sendHello()
		case <-timerC(waitTimer):
			waitTimer = nil
			ifc.Send(EvWaitTimer)
		}
	}
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// Send enqueues an event for this interface's FSM (§5: events ordered
// per target, single-consumer).
func (ifc *Interface) Send(ev InterfaceEvent) {
	select {
	case ifc.events <- ev:
	default:
		ifc.log.Warn("interface event queue full, dropping event")
	}
}

func (ifc *Interface) handle(ev InterfaceEvent, helloTicker **time.Ticker, waitTimer **time.Timer) {
	ifc.mu.Lock()
	cur := ifc.state
	ifc.mu.Unlock()

	switch ev {
	case EvInterfaceUp:
		if cur != IfDown {
			return
		}
		*helloTicker = time.NewTicker(time.Duration(ifc.HelloInterval) * time.Second)
		var next InterfaceState
		if ifc.NetworkType == NetworkPointToPoint || ifc.NetworkType == NetworkVirtualLink {
			next = IfPointToPoint
		} else if ifc.Priority == 0 {
			next = IfDROther
		} else {
			next = IfWaiting
			*waitTimer = time.NewTimer(time.Duration(ifc.RouterDeadInterval) * time.Second)
		}
		ifc.setState(next)
		ifc.sendHello()

	case EvWaitTimer, EvBackupSeen:
		if cur != IfWaiting {
			return
		}
		ifc.electDRBDR()

	case EvNeighborChange:
		if cur != IfDR && cur != IfBackup && cur != IfDROther {
			return
		}
		ifc.electDRBDR()

	case EvInterfaceDown, EvLoopInd:
		ifc.killAllNeighbors()
		if *helloTicker != nil {
			(*helloTicker).Stop()
			*helloTicker = nil
		}
		if *waitTimer != nil {
			(*waitTimer).Stop()
			*waitTimer = nil
		}
		if ev == EvLoopInd {
			ifc.setState(IfLoopback)
		} else {
			ifc.setState(IfDown)
		}

	case EvUnloopInd:
		if cur != IfLoopback {
			return
		}
		ifc.setState(IfDown)
	}
}

func (ifc *Interface) setState(next InterfaceState) {
	ifc.mu.Lock()
	prev := ifc.state
	ifc.state = next
	ifc.mu.Unlock()
	if prev != next {
		ifc.log.WithFields(logrus.Fields{"from": prev.String(), "to": next.String()}).Info("interface state transition")
		ifc.engine.onInterfaceStateChange(ifc, prev, next)
	}
}

func (ifc *Interface) killAllNeighbors() {
	ifc.mu.RLock()
	nbrs := make([]*Neighbor, 0, len(ifc.neighbors))
	for _, n := range ifc.neighbors {
		nbrs = append(nbrs, n)
	}
	ifc.mu.RUnlock()
	for _, n := range nbrs {
		n.Send(NbrKillNbr)
	}
}

// electDRBDR implements §4.2's two-round DR/BDR election.
func (ifc *Interface) electDRBDR() {
	type candidate struct {
		id       uint32
		addr     uint32
		priority uint8
		declDR   uint32
		declBDR  uint32
	}

	ifc.mu.RLock()
	var candidates []candidate
	if ifc.Priority >= 1 {
		candidates = append(candidates, candidate{
			id: uint32(ifc.engine.RouterID), addr: ifc.Address, priority: ifc.Priority,
			declDR: ifc.dr, declBDR: ifc.bdr,
		})
	}
	for _, n := range ifc.neighbors {
		if n.State() < NbrTwoWay {
			continue
		}
		if n.Priority() == 0 {
			continue
		}
		candidates = append(candidates, candidate{
			id: uint32(n.RouterID()), addr: n.Address(), priority: n.Priority(),
			declDR: n.DeclaredDR(), declBDR: n.DeclaredBDR(),
		})
	}
	ifc.mu.RUnlock()

	self := uint32(ifc.engine.RouterID)

	electBDR := func(cs []candidate) uint32 {
		pick := func(pred func(candidate) bool) uint32 {
			var best *candidate
			for i := range cs {
				c := cs[i]
				if c.declDR == c.addr {
					continue // DR-declared candidates never win BDR
				}
				if !pred(c) {
					continue
				}
				if best == nil || c.priority > best.priority ||
					(c.priority == best.priority && c.id > best.id) {
					cc := c
					best = &cc
				}
			}
			if best == nil {
				return 0
			}
			return best.addr
		}
		if bdr := pick(func(c candidate) bool { return c.declBDR == c.addr }); bdr != 0 {
			return bdr
		}
		return pick(func(candidate) bool { return true })
	}

	electDR := func(cs []candidate, bdr uint32) uint32 {
		var best *candidate
		for i := range cs {
			c := cs[i]
			if c.declDR != c.addr {
				continue
			}
			if best == nil || c.priority > best.priority ||
				(c.priority == best.priority && c.id > best.id) {
				cc := c
				best = &cc
			}
		}
		if best != nil {
			return best.addr
		}
		return bdr
	}

	bdr := electBDR(candidates)
	dr := electDR(candidates, bdr)
	if dr == bdr && bdr != 0 {
		// DR was promoted from the BDR pool; re-elect BDR excluding it.
		remaining := make([]candidate, 0, len(candidates))
		for _, c := range candidates {
			if c.addr != dr {
				remaining = append(remaining, c)
			}
		}
		bdr = electBDR(remaining)
	}

	ifc.mu.Lock()
	selfWasDRorBDR := ifc.dr == ifc.Address || ifc.bdr == ifc.Address
	ifc.dr, ifc.bdr = dr, bdr
	selfIsDRorBDR := dr == ifc.Address || bdr == ifc.Address
	ifc.mu.Unlock()

	// §4.2 step 3: if our own role changed, settle once via
	// electDRBDRSettle, which re-applies the DR/BDR just chosen.
	if selfWasDRorBDR != selfIsDRorBDR {
		ifc.electDRBDRSettle(self)
		return
	}

	ifc.applyElectionResult(dr, bdr)
}

// electDRBDRSettle makes one extra pass after a local role change,
// without recursing further. The pass re-applies the stored DR/BDR; the
// two election rounds are not run again with this router's new
// DR/BDR declaration.
func (ifc *Interface) electDRBDRSettle(self uint32) {
	ifc.electDRBDRPass()
}

func (ifc *Interface) electDRBDRPass() {
	// Single extra pass: applies the DR/BDR already stored on ifc
	// without recomputing them.
	ifc.mu.RLock()
	dr, bdr := ifc.dr, ifc.bdr
	ifc.mu.RUnlock()
	ifc.applyElectionResult(dr, bdr)
}

func (ifc *Interface) applyElectionResult(dr, bdr uint32) {
	var next InterfaceState
	switch {
	case dr == ifc.Address:
		next = IfDR
	case bdr == ifc.Address:
		next = IfBackup
	default:
		next = IfDROther
	}
	ifc.setState(next)
	ifc.engine.onDRChange(ifc)
}

// sendHello builds and transmits a Hello listing every neighbor
// currently at state >= Init (§4.2).
func (ifc *Interface) sendHello() {
	ifc.mu.RLock()
	nbrs := make([]uint32, 0, len(ifc.neighbors))
	for addr, n := range ifc.neighbors {
		if n.State() >= NbrInit {
			nbrs = append(nbrs, uint32(n.RouterID()))
			_ = addr
		}
	}
	dr, bdr := ifc.dr, ifc.bdr
	ifc.mu.RUnlock()

	hello := &Hello{
		NetworkMask:        ifc.Mask,
		HelloInterval:      ifc.HelloInterval,
		Options:            0x02, // E-bit; set on every interface, including those in stub areas
		RouterPriority:     ifc.Priority,
		RouterDeadInterval: ifc.RouterDeadInterval,
		DesignatedRouter:   dr,
		BackupDesRouter:    bdr,
		Neighbors:          nbrs,
	}
	pkt := NewPacket(TypeHello, uint32(ifc.engine.RouterID), uint32(ifc.Area), hello)
	// Hellos always go to AllSPFRouters on Broadcast/P2P (§4.2); AllDRouters
	// is only ever a destination for LS Update floods from a DRother up to
	// the DR/BDR (flooding.go), never for Hello production.
	ifc.transmit(pkt, AllSPFRouters)
}

func (ifc *Interface) transmit(pkt *Packet, dest string) {
	raw := Encode(pkt)
	if err := ifc.engine.Transport.Send(ifc.Name, dest, raw); err != nil {
		ifc.counters.incIO()
		ifc.log.WithError(err).Debug("send failed")
	}
}

// neighborByAddress looks up an existing neighbor by source address,
// falling back to matching by RouterID for point-to-point links where
// the source address may not equal the neighbor's configured address.
func (ifc *Interface) neighborByAddress(routerID RouterID, src string) *Neighbor {
	addr, _ := ParseIPv4ToUint32(src)
	ifc.mu.RLock()
	defer ifc.mu.RUnlock()
	if n, ok := ifc.neighbors[addr]; ok {
		return n
	}
	if ifc.NetworkType == NetworkPointToPoint || ifc.NetworkType == NetworkPointToMultipoint {
		for _, n := range ifc.neighbors {
			if n.RouterID() == routerID {
				return n
			}
		}
	}
	return nil
}

// addNeighbor creates and registers a new neighbor heard on this
// interface (§4.2: a Hello from an unknown source creates one).
func (ifc *Interface) addNeighbor(routerID RouterID, addr uint32, priority uint8) *Neighbor {
	ifc.mu.Lock()
	defer ifc.mu.Unlock()
	if n, ok := ifc.neighbors[addr]; ok {
		return n
	}
	n := newNeighbor(ifc, routerID, addr, priority)
	ifc.neighbors[addr] = n
	return n
}

// unicastTo sends pkt to a specific neighbor's address rather than a
// multicast group (NBMA/P2MP unicast rules, §4.2 hello production; also
// used for immediate acks and unicast LSU retransmission, §4.4).
func (ifc *Interface) unicastTo(pkt *Packet, addr uint32) {
	raw := Encode(pkt)
	dest := Uint32ToIPv4(addr).String()
	if err := ifc.engine.Transport.Send(ifc.Name, dest, raw); err != nil {
		ifc.counters.incIO()
		ifc.log.WithError(err).Debug("unicast send failed")
	}
}
