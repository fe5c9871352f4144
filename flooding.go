package ospfd

import "time"

// receiveLSUpdate implements the §4.4 reception-processing algorithm
// for one Link State Update received from nbr on ifc. It is called
// from the engine's receive loop (via handlePacket), not from the
// neighbor's own goroutine, and touches nbr and ifc only through the
// locking those types provide.
func (e *Engine) receiveLSUpdate(ifc *Interface, nbr *Neighbor, upd *LSUpdate) {
	if nbr.State() < NbrExchange {
		return
	}

	var acks []LSAHeader
	for _, lsa := range upd.LSAs {
		if !lsa.VerifyChecksum() {
			ifc.counters.incDecode()
			continue
		}
		if lsa.Header.LSType == LSATypeASExternal && ifc.Area != BackboneArea && e.areaIsStub(ifc.Area) {
			continue
		}

		area := e.areaFor(ifc.Area)
		db := e.dbFor(area, lsa.Header.LSType)
		if db == nil {
			ifc.counters.incPolicy()
			continue
		}
		existing, had := db.Get(lsa.ID())

		nbr.clearFromRequestList(lsa.ID())
		ack := ackKey{ifaceName: ifc.Name, neighbor: nbr.RouterID()}

		switch {
		case !had:
			e.floodAndInstall(ifc, nbr, lsa, area, db)
			acks = append(acks, lsa.Header)

		case compareRecency(lsa.Header, existing.Header) > 0:
			if lsa.Header.Age == MaxAge && lsa.Header.SequenceNumber == existing.Header.SequenceNumber &&
				lsa.Header.Checksum == existing.Header.Checksum {
				// Premature aging re-flood of an identical instance: treat
				// as a duplicate ack rather than a fresh install.
				e.acknowledge(ifc, nbr, lsa.Header, existing)
				db.ClearPendingAck(lsa.ID(), ack)
				reapIfMaxAge(db, lsa.ID())
				continue
			}
			e.floodAndInstall(ifc, nbr, lsa, area, db)
			acks = append(acks, lsa.Header)

		case compareRecency(lsa.Header, existing.Header) == 0:
			nbr.clearFromRetransmission(lsa.ID())
			db.ClearPendingAck(lsa.ID(), ack)
			e.acknowledge(ifc, nbr, lsa.Header, existing)
			reapIfMaxAge(db, lsa.ID())

		default:
			// Our copy is more recent; if the neighbor is master and its
			// DD exchange is in progress this can indicate desync, but
			// during steady-state flooding we simply re-send ours.
			e.sendDirectLSU(ifc, nbr, existing)
		}
	}

	if len(acks) > 0 {
		e.sendAcks(ifc, nbr, acks)
	}
}

// floodAndInstall installs lsa into db and reliably floods it to every
// other adjacent neighbor per §4.4's flooding-out algorithm, placing it
// on each neighbor's retransmission list until acknowledged.
func (e *Engine) floodAndInstall(ifc *Interface, from *Neighbor, lsa LSA, area *Area, db lsaTable) {
	db.Install(lsa, e.now())

	e.mu.RLock()
	interfaces := make([]*Interface, 0, len(e.interfaces))
	for _, i := range e.interfaces {
		interfaces = append(interfaces, i)
	}
	e.mu.RUnlock()

	for _, out := range interfaces {
		out.mu.RLock()
		neighbors := make([]*Neighbor, 0, len(out.neighbors))
		for _, n := range out.neighbors {
			neighbors = append(neighbors, n)
		}
		out.mu.RUnlock()

		floodedOnThisLink := false
		for _, n := range neighbors {
			if n.State() < NbrExchange {
				continue
			}
			if from != nil && n == from && out == ifc {
				// §4.4: do not flood back out the receiving interface to
				// the sender.
				continue
			}
			n.addToRetransmission(lsa)
			db.AddPendingAck(lsa.ID(), ackKey{ifaceName: out.Name, neighbor: n.RouterID()})
			floodedOnThisLink = true
		}
		if floodedOnThisLink {
			e.sendDirectLSUBroadcast(out, lsa)
		}
	}
}

func (e *Engine) sendDirectLSUBroadcast(ifc *Interface, lsa LSA) {
	upd := &LSUpdate{LSAs: []LSA{lsa}}
	pkt := NewPacket(TypeLinkStateUpdate, uint32(e.RouterID), uint32(ifc.Area), upd)
	dest := AllSPFRouters
	if ifc.State() == IfDROther {
		dest = AllDRouters
	}
	if ifc.NetworkType == NetworkPointToPoint {
		ifc.transmit(pkt, AllSPFRouters)
		return
	}
	ifc.transmit(pkt, dest)
}

func (e *Engine) sendDirectLSU(ifc *Interface, nbr *Neighbor, lsa LSA) {
	upd := &LSUpdate{LSAs: []LSA{lsa}}
	pkt := NewPacket(TypeLinkStateUpdate, uint32(e.RouterID), uint32(ifc.Area), upd)
	ifc.unicastTo(pkt, nbr.Address())
}

// acknowledge sends an immediate unicast LSAck for hdr to nbr, whatever
// nbr's role. sendAcks also transmits at once: acknowledgements are
// never delayed, and are batched only across the LSAs of a single
// received Link State Update.
func (e *Engine) acknowledge(ifc *Interface, nbr *Neighbor, hdr LSAHeader, current LSA) {
	e.sendAcks(ifc, nbr, []LSAHeader{hdr})
}

func (e *Engine) sendAcks(ifc *Interface, nbr *Neighbor, headers []LSAHeader) {
	ack := &LSAck{Headers: headers}
	pkt := NewPacket(TypeLinkStateAck, uint32(e.RouterID), uint32(ifc.Area), ack)
	ifc.unicastTo(pkt, nbr.Address())
}

// receiveLSAck implements §4.4's acknowledgement-reception step: remove
// each acknowledged LSA from the neighbor's retransmission list and clear
// it from the database's pending-ack set, reaping it if that was the
// last outstanding ack on an instance already at MaxAge (§4.4, scenario
// S4).
func (e *Engine) receiveLSAck(nbr *Neighbor, ack *LSAck) {
	ifc := nbr.ifc
	area := e.areaFor(ifc.Area)
	for _, hdr := range ack.Headers {
		id := hdr.ID()
		nbr.clearFromRetransmission(id)
		db := e.dbFor(area, hdr.LSType)
		if db == nil {
			continue
		}
		db.ClearPendingAck(id, ackKey{ifaceName: ifc.Name, neighbor: nbr.RouterID()})
		reapIfMaxAge(db, id)
	}
}

// receiveLSRequest implements §4.4's request-reception step: for each
// requested LSA found in the relevant database, send it directly to
// the requester; any LSA not found is a protocol error (§4.3
// BadLSReq).
func (e *Engine) receiveLSRequest(ifc *Interface, nbr *Neighbor, req *LSRequest) {
	area := e.areaFor(ifc.Area)
	var found []LSA
	for _, entry := range req.Entries {
		db := e.dbFor(area, uint8(entry.LSType))
		lsa, ok := db.Get(entry.ID())
		if !ok {
			nbr.Send(NbrBadLSReq)
			return
		}
		found = append(found, lsa)
	}
	if len(found) == 0 {
		return
	}
	upd := &LSUpdate{LSAs: found}
	pkt := NewPacket(TypeLinkStateUpdate, uint32(e.RouterID), uint32(ifc.Area), upd)
	ifc.unicastTo(pkt, nbr.Address())
}

// lsaTable is the subset of *LSDB/*ASExternalDB behaviour the
// flooding code needs, letting it treat area-scoped and AS-wide tables
// uniformly.
type lsaTable interface {
	Get(LSAIdentifier) (LSA, bool)
	Install(LSA, time.Time)
	Remove(LSAIdentifier)
	AddPendingAck(LSAIdentifier, ackKey)
	ClearPendingAck(LSAIdentifier, ackKey)
	ReadyForMaxAgeRemoval(LSAIdentifier) bool
}

func (e *Engine) dbFor(area *Area, lsType uint8) lsaTable {
	if lsType == LSATypeASExternal {
		return e.asExternal
	}
	if area == nil {
		return nil
	}
	return area.LSDB
}

// reapIfMaxAge removes id from db once it is at MaxAge and every
// neighbor that was flooded a copy has acknowledged it (§3 invariant 2,
// §4.4 scenario S4).
func reapIfMaxAge(db lsaTable, id LSAIdentifier) {
	if db.ReadyForMaxAgeRemoval(id) {
		db.Remove(id)
	}
}
