package ospfd

import (
	"sync"
	"time"
)

// lsaMap is one of the LSDB's type-scoped tables, coarse-locked per
// §5 ("a write that changes membership must hold the containing table
// exclusively"; fine per-LSA locking is allowed but not required).
type lsaMap struct {
	mu      sync.RWMutex
	entries map[LSAIdentifier]*storedLSA
}

// storedLSA pairs an LSA instance with the install-time bookkeeping
// invariant 5's refresh/flush logic and the aging model (§3 invariant
// 2, §8 property 5) need.
type storedLSA struct {
	lsa         LSA
	installedAt time.Time
	// pendingAcks is the set of neighbors (by RouterID, scoped to the
	// interface they were heard on) still expected to acknowledge this
	// instance; used to gate MaxAge removal (§3 invariant 2, §4.4).
	pendingAcks map[ackKey]struct{}
}

type ackKey struct {
	ifaceName string
	neighbor  RouterID
}

func newLSAMap() *lsaMap {
	return &lsaMap{entries: make(map[LSAIdentifier]*storedLSA)}
}

func (m *lsaMap) get(id LSAIdentifier) (LSA, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.entries[id]
	if !ok {
		return LSA{}, false
	}
	return s.lsa, true
}

func (m *lsaMap) install(lsa LSA, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := lsa.ID()
	existing, had := m.entries[id]
	s := &storedLSA{lsa: lsa, installedAt: now, pendingAcks: make(map[ackKey]struct{})}
	if had {
		s.installedAt = existing.installedAt
	}
	m.entries[id] = s
}

func (m *lsaMap) remove(id LSAIdentifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

func (m *lsaMap) all() []LSA {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LSA, 0, len(m.entries))
	for _, s := range m.entries {
		out = append(out, s.lsa)
	}
	return out
}

func (m *lsaMap) headers() []LSAHeader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LSAHeader, 0, len(m.entries))
	for _, s := range m.entries {
		out = append(out, s.lsa.Header)
	}
	return out
}

// addPendingAck records that the given neighbor has not yet
// acknowledged id's current instance (called when the LSA is placed on
// a retransmission list, §4.4).
func (m *lsaMap) addPendingAck(id LSAIdentifier, k ackKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.entries[id]; ok {
		s.pendingAcks[k] = struct{}{}
	}
}

func (m *lsaMap) clearPendingAck(id LSAIdentifier, k ackKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.entries[id]; ok {
		delete(s.pendingAcks, k)
	}
}

// readyForMaxAgeRemoval reports whether id is at MaxAge and has no
// neighbor still expected to acknowledge it (§3 invariant 2, §4.4
// aging rule: "While an LSA sits at MaxAge but is still pending
// acknowledgement, it remains in the LSDB").
func (m *lsaMap) readyForMaxAgeRemoval(id LSAIdentifier) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.entries[id]
	if !ok {
		return false
	}
	return s.lsa.Header.Age >= MaxAge && len(s.pendingAcks) == 0
}

func (m *lsaMap) ageTick(delta uint16) (reachedMaxAge []LSA) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.entries {
		before := s.lsa.Header.Age
		if before >= MaxAge {
			continue
		}
		next := uint32(before) + uint32(delta)
		if next >= MaxAge {
			s.lsa.Header.Age = MaxAge
			reachedMaxAge = append(reachedMaxAge, s.lsa)
		} else {
			s.lsa.Header.Age = uint16(next)
		}
	}
	return reachedMaxAge
}

// LSDB is the per-area link-state database: three type-scoped tables
// for router-, network- and summary-LSAs (§3). AS-external LSAs are
// held AS-wide by the Engine, not here.
type LSDB struct {
	Router  *lsaMap
	Network *lsaMap
	Summary *lsaMap
}

func newLSDB() *LSDB {
	return &LSDB{Router: newLSAMap(), Network: newLSAMap(), Summary: newLSAMap()}
}

func (db *LSDB) tableFor(lsType uint8) *lsaMap {
	switch lsType {
	case LSATypeRouter:
		return db.Router
	case LSATypeNetwork:
		return db.Network
	case LSATypeSummaryNet, LSATypeSummaryASBR:
		return db.Summary
	default:
		return nil
	}
}

func (db *LSDB) Get(id LSAIdentifier) (LSA, bool) {
	t := db.tableFor(id.LSType)
	if t == nil {
		return LSA{}, false
	}
	return t.get(id)
}

func (db *LSDB) Install(lsa LSA, now time.Time) {
	t := db.tableFor(lsa.Header.LSType)
	if t == nil {
		return
	}
	t.install(lsa, now)
}

func (db *LSDB) Remove(id LSAIdentifier) {
	if t := db.tableFor(id.LSType); t != nil {
		t.remove(id)
	}
}

// AddPendingAck, ClearPendingAck and ReadyForMaxAgeRemoval forward to the
// type-scoped table holding id, letting flooding code that only holds an
// *LSDB drive the pending-ack bookkeeping §4.4's MaxAge removal rule
// depends on.
func (db *LSDB) AddPendingAck(id LSAIdentifier, k ackKey) {
	if t := db.tableFor(id.LSType); t != nil {
		t.addPendingAck(id, k)
	}
}

func (db *LSDB) ClearPendingAck(id LSAIdentifier, k ackKey) {
	if t := db.tableFor(id.LSType); t != nil {
		t.clearPendingAck(id, k)
	}
}

func (db *LSDB) ReadyForMaxAgeRemoval(id LSAIdentifier) bool {
	t := db.tableFor(id.LSType)
	if t == nil {
		return false
	}
	return t.readyForMaxAgeRemoval(id)
}

func (db *LSDB) All() []LSA {
	out := db.Router.all()
	out = append(out, db.Network.all()...)
	out = append(out, db.Summary.all()...)
	return out
}

func (db *LSDB) Headers() []LSAHeader {
	out := db.Router.headers()
	out = append(out, db.Network.headers()...)
	out = append(out, db.Summary.headers()...)
	return out
}

// AgeTick increments the age of every LSA in every table by delta
// seconds, saturating at MaxAge (§3 invariant 2, §9 open question (a):
// the source saturated inconsistently, this implementation always
// saturates). It returns the LSAs that newly reached MaxAge this tick
// so the caller can schedule the final flood.
func (db *LSDB) AgeTick(delta uint16) []LSA {
	out := db.Router.ageTick(delta)
	out = append(out, db.Network.ageTick(delta)...)
	out = append(out, db.Summary.ageTick(delta)...)
	return out
}

// ASExternalDB is the AS-wide table of AS-external LSAs (§3).
type ASExternalDB struct {
	table *lsaMap
}

func newASExternalDB() *ASExternalDB {
	return &ASExternalDB{table: newLSAMap()}
}

func (db *ASExternalDB) Get(id LSAIdentifier) (LSA, bool)      { return db.table.get(id) }
func (db *ASExternalDB) Install(lsa LSA, now time.Time)        { db.table.install(lsa, now) }
func (db *ASExternalDB) Remove(id LSAIdentifier)               { db.table.remove(id) }
func (db *ASExternalDB) All() []LSA                            { return db.table.all() }
func (db *ASExternalDB) Headers() []LSAHeader                  { return db.table.headers() }
func (db *ASExternalDB) AgeTick(delta uint16) []LSA            { return db.table.ageTick(delta) }

func (db *ASExternalDB) AddPendingAck(id LSAIdentifier, k ackKey) { db.table.addPendingAck(id, k) }
func (db *ASExternalDB) ClearPendingAck(id LSAIdentifier, k ackKey) {
	db.table.clearPendingAck(id, k)
}
func (db *ASExternalDB) ReadyForMaxAgeRemoval(id LSAIdentifier) bool {
	return db.table.readyForMaxAgeRemoval(id)
}
