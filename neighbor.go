package ospfd

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// NeighborState is one of the eight neighbor FSM states (§4.3), ordered
// so that plain comparison expresses "at least as adjacent as".
type NeighborState int

const (
	NbrDown NeighborState = iota
	NbrAttempt
	NbrInit
	NbrTwoWay
	NbrExStart
	NbrExchange
	NbrLoading
	NbrFull
)

func (s NeighborState) String() string {
	switch s {
	case NbrDown:
		return "Down"
	case NbrAttempt:
		return "Attempt"
	case NbrInit:
		return "Init"
	case NbrTwoWay:
		return "TwoWay"
	case NbrExStart:
		return "ExStart"
	case NbrExchange:
		return "Exchange"
	case NbrLoading:
		return "Loading"
	case NbrFull:
		return "Full"
	default:
		return "Unknown"
	}
}

// NeighborEvent is one of the neighbor FSM's input events (§4.3).
type NeighborEvent int

const (
	NbrHelloReceived NeighborEvent = iota
	NbrStart
	NbrTwoWayReceived
	NbrNegotiationDone
	NbrExchangeDone
	NbrBadLSReq
	NbrLoadingDone
	NbrAdjOK
	NbrSeqNumberMismatch
	NbrOneWayReceived
	NbrKillNbr
	NbrInactivityTimer
)

// Neighbor tracks one adjacency candidate seen on an interface (§4.3).
// Its FSM runs serially on the neighbor's own goroutine (run); Neighbor
// itself only guards the fields read concurrently by DR election and
// control-plane queries (§5).
type Neighbor struct {
	ifc *Interface
	log *logrus.Entry

	mu       sync.RWMutex
	state    NeighborState
	routerID RouterID
	address  uint32
	priority uint8
	options  uint8
	declDR   uint32
	declBDR  uint32

	isMaster   bool
	ddSeq      uint32
	lastDD     *DBDescription
	negotiated bool

	// databaseSummary is the list of LSA headers still to be announced
	// in outgoing DB Description packets (§4.3 Exchange).
	databaseSummary []LSAHeader
	// linkStateRequestList is the list of LSAs still to be requested
	// from this neighbor during Loading (§4.3).
	linkStateRequestList []LSAIdentifier
	// linkStateRetransmission holds LSAs flooded to this neighbor and
	// awaiting acknowledgement (§4.4).
	linkStateRetransmission map[LSAIdentifier]LSA

	inactivity *time.Timer
	rxmt       *time.Timer

	events chan NeighborEvent
	done   chan struct{}
}

func newNeighbor(ifc *Interface, routerID RouterID, address uint32, priority uint8) *Neighbor {
	n := &Neighbor{
		ifc:                     ifc,
		log:                     nbrLog(ifc.log.Logger, ifc.engine.RouterID, ifc.Name, routerID),
		state:                   NbrDown,
		routerID:                routerID,
		address:                 address,
		priority:                priority,
		linkStateRetransmission: make(map[LSAIdentifier]LSA),
		events:                  make(chan NeighborEvent, 32),
		done:                    make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *Neighbor) State() NeighborState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}
func (n *Neighbor) RouterID() RouterID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.routerID
}
func (n *Neighbor) Address() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.address
}
func (n *Neighbor) Priority() uint8 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.priority
}
func (n *Neighbor) DeclaredDR() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.declDR
}
func (n *Neighbor) DeclaredBDR() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.declBDR
}

// Send enqueues an event for this neighbor's FSM.
func (n *Neighbor) Send(ev NeighborEvent) {
	select {
	case n.events <- ev:
	case <-n.done:
	default:
		n.log.Warn("neighbor event queue full, dropping event")
	}
}

func (n *Neighbor) run() {
	for {
		select {
		case <-n.done:
			return
		case ev := <-n.events:
			n.handle(ev)
		case <-rxmtC(n.rxmt):
			n.retransmit()
		case <-inactivityC(n.inactivity):
			n.Send(NbrInactivityTimer)
		}
	}
}

func rxmtC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
func inactivityC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (n *Neighbor) resetInactivity() {
	d := time.Duration(n.ifc.RouterDeadInterval) * time.Second
	if n.inactivity == nil {
		n.inactivity = time.NewTimer(d)
		return
	}
	if !n.inactivity.Stop() {
		select {
		case <-n.inactivity.C:
		default:
		}
	}
	n.inactivity.Reset(d)
}

// handle implements the §4.3 neighbor state transition table.
func (n *Neighbor) handle(ev NeighborEvent) {
	n.mu.Lock()
	cur := n.state
	n.mu.Unlock()

	switch ev {
	case NbrHelloReceived:
		n.resetInactivity()
		if cur == NbrDown {
			n.setState(NbrInit)
		} else if cur == NbrAttempt {
			n.setState(NbrInit)
		}

	case NbrStart:
		if cur != NbrDown {
			return
		}
		n.setState(NbrAttempt)
		n.ifc.unicastTo(n.helloFor(), n.address)

	case NbrTwoWayReceived:
		if cur != NbrInit {
			return
		}
		if n.shouldBecomeAdjacent() {
			n.beginExStart()
		} else {
			n.setState(NbrTwoWay)
		}

	case NbrOneWayReceived:
		if cur < NbrTwoWay {
			return
		}
		n.tearDownAdjacency()
		n.setState(NbrInit)

	case NbrNegotiationDone:
		if cur != NbrExStart {
			return
		}
		n.databaseSummary = n.ifc.engine.summaryFor(n.ifc.Area)
		n.setState(NbrExchange)

	case NbrExchangeDone:
		if cur != NbrExchange {
			return
		}
		n.mu.RLock()
		pending := len(n.linkStateRequestList)
		n.mu.RUnlock()
		if pending == 0 {
			n.setState(NbrFull)
			n.ifc.engine.onAdjacencyFull(n.ifc, n)
		} else {
			n.setState(NbrLoading)
			n.requestNext(n.ifc.engine, n.ifc)
		}

	case NbrLoadingDone:
		if cur != NbrLoading {
			return
		}
		n.setState(NbrFull)
		n.ifc.engine.onAdjacencyFull(n.ifc, n)

	case NbrAdjOK:
		switch cur {
		case NbrTwoWay:
			if n.shouldBecomeAdjacent() {
				n.beginExStart()
			}
		case NbrExStart, NbrExchange, NbrLoading, NbrFull:
			if !n.shouldBecomeAdjacent() {
				n.tearDownAdjacency()
				n.setState(NbrTwoWay)
			}
		}

	case NbrSeqNumberMismatch, NbrBadLSReq:
		if cur < NbrExchange {
			return
		}
		n.tearDownAdjacency()
		n.beginExStart()

	case NbrKillNbr, NbrInactivityTimer:
		n.tearDownAdjacency()
		n.setState(NbrDown)
		if ev == NbrInactivityTimer {
			n.ifc.log.WithField("neighbor", n.routerID.String()).Info("neighbor inactivity timeout")
		}
	}
}

func (n *Neighbor) setState(next NeighborState) {
	n.mu.Lock()
	prev := n.state
	n.state = next
	n.mu.Unlock()
	if prev != next {
		n.log.WithFields(logrus.Fields{"from": prev.String(), "to": next.String()}).Info("neighbor state transition")
		if crossesTwoWay(prev, next) {
			n.ifc.Send(EvNeighborChange)
		}
	}
}

func crossesTwoWay(prev, next NeighborState) bool {
	return (prev >= NbrTwoWay) != (next >= NbrTwoWay)
}

// shouldBecomeAdjacent implements §4.3's "need adjacency" decision: on
// broadcast/NBMA links, adjacencies form only with the DR or BDR or
// from the DR/BDR's own perspective; point-to-point and virtual links
// always form.
func (n *Neighbor) shouldBecomeAdjacent() bool {
	switch n.ifc.NetworkType {
	case NetworkPointToPoint, NetworkPointToMultipoint, NetworkVirtualLink:
		return true
	}
	dr, bdr := n.ifc.drBdr()
	self := n.ifc.Address
	if dr == self || bdr == self {
		return true
	}
	if n.address == dr || n.address == bdr {
		return true
	}
	return false
}

func (n *Neighbor) beginExStart() {
	n.mu.Lock()
	n.negotiated = false
	n.ddSeq++
	seq := n.ddSeq
	n.mu.Unlock()
	n.setState(NbrExStart)
	dd := &DBDescription{
		InterfaceMTU:     0,
		Options:          0x02,
		Flags:            DDFlagMS | DDFlagM | DDFlagI,
		DDSequenceNumber: seq,
	}
	n.lastDD = dd
	n.sendDD(dd)
}

func (n *Neighbor) sendDD(dd *DBDescription) {
	pkt := NewPacket(TypeDatabaseDescription, uint32(n.ifc.engine.RouterID), uint32(n.ifc.Area), dd)
	n.ifc.unicastTo(pkt, n.address)
}

func (n *Neighbor) helloFor() *Packet {
	h := &Hello{
		NetworkMask:        n.ifc.Mask,
		HelloInterval:      n.ifc.HelloInterval,
		Options:            0x02,
		RouterPriority:     n.ifc.Priority,
		RouterDeadInterval: n.ifc.RouterDeadInterval,
	}
	return NewPacket(TypeHello, uint32(n.ifc.engine.RouterID), uint32(n.ifc.Area), h)
}

func (n *Neighbor) tearDownAdjacency() {
	n.mu.Lock()
	n.databaseSummary = nil
	n.linkStateRequestList = nil
	n.linkStateRetransmission = make(map[LSAIdentifier]LSA)
	n.mu.Unlock()
	if n.rxmt != nil {
		n.rxmt.Stop()
		n.rxmt = nil
	}
}

// retransmit resends every LSA still on this neighbor's retransmission
// list, per §4.4's retransmission-interval timer.
func (n *Neighbor) retransmit() {
	n.mu.RLock()
	if len(n.linkStateRetransmission) == 0 {
		n.mu.RUnlock()
		return
	}
	lsas := make([]LSA, 0, len(n.linkStateRetransmission))
	for _, l := range n.linkStateRetransmission {
		lsas = append(lsas, l)
	}
	n.mu.RUnlock()

	upd := &LSUpdate{LSAs: lsas}
	pkt := NewPacket(TypeLinkStateUpdate, uint32(n.ifc.engine.RouterID), uint32(n.ifc.Area), upd)
	n.ifc.unicastTo(pkt, n.address)

	n.rxmt = time.NewTimer(time.Duration(n.ifc.RetransmitInterval) * time.Second)
}

// addToRetransmission places lsa on this neighbor's retransmission list
// and arms the retransmission timer if it is not already running
// (§4.4: "flooding out... onto the retransmission list").
func (n *Neighbor) addToRetransmission(lsa LSA) {
	n.mu.Lock()
	if n.linkStateRetransmission == nil {
		n.linkStateRetransmission = make(map[LSAIdentifier]LSA)
	}
	n.linkStateRetransmission[lsa.ID()] = lsa
	needTimer := n.rxmt == nil
	n.mu.Unlock()
	if needTimer {
		n.rxmt = time.NewTimer(time.Duration(n.ifc.RetransmitInterval) * time.Second)
	}
}

// observeHello records the fields of a received Hello that later
// influence DR election and adjacency decisions (§4.2).
func (n *Neighbor) observeHello(h *Hello, srcAddr uint32) {
	n.mu.Lock()
	n.priority = h.RouterPriority
	n.options = h.Options
	n.declDR = h.DesignatedRouter
	n.declBDR = h.BackupDesRouter
	if srcAddr != 0 {
		n.address = srcAddr
	}
	n.mu.Unlock()
}

// receiveDD implements the §4.3 DD-exchange negotiation and steady
// exchange processing for one received Database Description packet.
func (n *Neighbor) receiveDD(e *Engine, ifc *Interface, dd *DBDescription) {
	state := n.State()
	if state < NbrInit {
		return
	}
	if state == NbrTwoWay {
		return
	}

	switch state {
	case NbrExStart:
		n.negotiate(e, ifc, dd)
	case NbrExchange:
		n.continueExchange(e, ifc, dd)
	case NbrLoading, NbrFull:
		if n.isDuplicateDD(dd) {
			n.retransmitLastDD()
		}
	}
}

func (n *Neighbor) isDuplicateDD(dd *DBDescription) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastDD != nil && dd.DDSequenceNumber == n.lastDD.DDSequenceNumber
}

func (n *Neighbor) retransmitLastDD() {
	n.mu.RLock()
	last := n.lastDD
	n.mu.RUnlock()
	if last != nil && !n.isMasterLocked() {
		n.sendDD(last)
	}
}

func (n *Neighbor) isMasterLocked() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.isMaster
}

// negotiate implements RFC 2328 10.6's ExStart handling: decides
// master/slave and, once both sides agree, seeds the outgoing database
// summary and moves to Exchange via NegotiationDone.
func (n *Neighbor) negotiate(e *Engine, ifc *Interface, dd *DBDescription) {
	weAreHigher := uint32(e.RouterID) > uint32(n.RouterID())

	if dd.init() && dd.more() && dd.isMaster() && len(dd.LSAHeaders) == 0 {
		if !weAreHigher {
			n.mu.Lock()
			n.isMaster = false
			n.ddSeq = dd.DDSequenceNumber
			n.mu.Unlock()
			n.Send(NbrNegotiationDone)
			n.sendNextDD(e, ifc, false)
			return
		}
	}
	if !dd.init() && !dd.isMaster() {
		n.mu.RLock()
		expect := n.ddSeq
		n.mu.RUnlock()
		if dd.DDSequenceNumber == expect && weAreHigher {
			n.mu.Lock()
			n.isMaster = true
			n.mu.Unlock()
			n.Send(NbrNegotiationDone)
			n.processExchangeHeaders(e, ifc, dd)
			n.sendNextDD(e, ifc, true)
		}
	}
}

func (n *Neighbor) continueExchange(e *Engine, ifc *Interface, dd *DBDescription) {
	if n.isDuplicateDD(dd) {
		n.retransmitLastDD()
		return
	}
	n.processExchangeHeaders(e, ifc, dd)

	n.mu.Lock()
	n.ddSeq = dd.DDSequenceNumber
	master := n.isMaster
	n.mu.Unlock()

	n.sendNextDD(e, ifc, master)

	if !dd.more() && len(n.pendingSummary()) == 0 {
		n.Send(NbrExchangeDone)
	}
}

// processExchangeHeaders compares each header the neighbor announced
// against our own LSDB, queuing anything we lack or hold a strictly
// older copy of onto the link state request list (§4.3).
func (n *Neighbor) processExchangeHeaders(e *Engine, ifc *Interface, dd *DBDescription) {
	var toRequest []LSAIdentifier
	for _, hdr := range dd.LSAHeaders {
		area := e.areaFor(ifc.Area)
		db := e.dbFor(area, hdr.LSType)
		if db == nil {
			continue
		}
		existing, ok := db.Get(hdr.ID())
		if !ok || compareRecency(hdr, existing.Header) > 0 {
			toRequest = append(toRequest, hdr.ID())
		}
	}
	if len(toRequest) == 0 {
		return
	}
	n.mu.Lock()
	n.linkStateRequestList = append(n.linkStateRequestList, toRequest...)
	n.mu.Unlock()
}

func (n *Neighbor) pendingSummary() []LSAHeader {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.databaseSummary
}

// sendNextDD sends the next outgoing DD packet, draining up to a
// batch's worth of the database summary (this implementation sends the
// whole remaining summary in one packet, which RFC 2328 permits when
// it fits within a single datagram).
func (n *Neighbor) sendNextDD(e *Engine, ifc *Interface, isMaster bool) {
	n.mu.Lock()
	summary := n.databaseSummary
	n.databaseSummary = nil
	if isMaster {
		n.ddSeq++
	}
	seq := n.ddSeq
	n.mu.Unlock()

	flags := uint8(0)
	if isMaster {
		flags |= DDFlagMS
	}
	if len(summary) > 0 {
		flags |= DDFlagM
	}
	dd := &DBDescription{
		Options:          0x02,
		Flags:            flags,
		DDSequenceNumber: seq,
		LSAHeaders:       summary,
	}
	n.lastDD = dd
	n.sendDD(dd)
}

// requestNext sends a Link State Request for every LSA still on the
// link state request list, called when entering or continuing Loading
// (§4.3 Loading state).
func (n *Neighbor) requestNext(e *Engine, ifc *Interface) {
	n.mu.RLock()
	ids := n.linkStateRequestList
	n.mu.RUnlock()
	if len(ids) == 0 {
		n.Send(NbrLoadingDone)
		return
	}
	entries := make([]LSRequestEntry, len(ids))
	for i, id := range ids {
		entries[i] = LSRequestEntry{LSType: uint32(id.LSType), LinkStateID: id.LinkStateID, AdvertisingRouter: id.AdvertisingRouter}
	}
	req := &LSRequest{Entries: entries}
	pkt := NewPacket(TypeLinkStateRequest, uint32(e.RouterID), uint32(ifc.Area), req)
	ifc.unicastTo(pkt, n.address)
}

func (n *Neighbor) clearFromRetransmission(id LSAIdentifier) {
	n.mu.Lock()
	delete(n.linkStateRetransmission, id)
	empty := len(n.linkStateRetransmission) == 0
	n.mu.Unlock()
	if empty && n.rxmt != nil {
		n.rxmt.Stop()
		n.rxmt = nil
	}
}

// clearFromRequestList removes id from the Loading-state link state
// request list, signalling LoadingDone once it empties (§4.3).
func (n *Neighbor) clearFromRequestList(id LSAIdentifier) {
	n.mu.Lock()
	out := n.linkStateRequestList[:0]
	for _, want := range n.linkStateRequestList {
		if want != id {
			out = append(out, want)
		}
	}
	n.linkStateRequestList = out
	empty := len(out) == 0
	n.mu.Unlock()
	if empty && n.State() == NbrLoading {
		n.Send(NbrLoadingDone)
	}
}
