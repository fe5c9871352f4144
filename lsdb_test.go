package ospfd

import (
	"testing"
	"time"
)

func routerLSA(linkStateID, advRouter uint32, seq int32) LSA {
	l := LSA{
		Header: LSAHeader{
			LSType:            LSATypeRouter,
			LinkStateID:       linkStateID,
			AdvertisingRouter: advRouter,
			SequenceNumber:    seq,
		},
		Router: &RouterLSABody{Flags: 0, Links: nil},
	}
	l.ComputeChecksum()
	return l
}

func TestLSDBInstallGetRemove(t *testing.T) {
	db := newLSDB()
	lsa := routerLSA(1, 1, InitialSequenceNum)

	if _, ok := db.Get(lsa.ID()); ok {
		t.Fatal("Get found an LSA before it was installed")
	}
	db.Install(lsa, time.Unix(0, 0))
	got, ok := db.Get(lsa.ID())
	if !ok {
		t.Fatal("Get did not find the installed LSA")
	}
	if got.Header.SequenceNumber != lsa.Header.SequenceNumber {
		t.Errorf("got sequence %d, want %d", got.Header.SequenceNumber, lsa.Header.SequenceNumber)
	}

	db.Remove(lsa.ID())
	if _, ok := db.Get(lsa.ID()); ok {
		t.Fatal("Get found the LSA after it was removed")
	}
}

func TestLSDBDispatchesByType(t *testing.T) {
	db := newLSDB()
	r := routerLSA(1, 1, InitialSequenceNum)
	n := LSA{Header: LSAHeader{LSType: LSATypeNetwork, LinkStateID: 2, AdvertisingRouter: 1}, Network: &NetworkLSABody{}}
	s := LSA{Header: LSAHeader{LSType: LSATypeSummaryNet, LinkStateID: 3, AdvertisingRouter: 1}, Summary: &SummaryLSABody{}}

	db.Install(r, time.Unix(0, 0))
	db.Install(n, time.Unix(0, 0))
	db.Install(s, time.Unix(0, 0))

	if len(db.Router.all()) != 1 || len(db.Network.all()) != 1 || len(db.Summary.all()) != 1 {
		t.Fatalf("expected one LSA in each table, got router=%d network=%d summary=%d",
			len(db.Router.all()), len(db.Network.all()), len(db.Summary.all()))
	}
	if got := len(db.All()); got != 3 {
		t.Errorf("All() returned %d LSAs, want 3", got)
	}
	if got := len(db.Headers()); got != 3 {
		t.Errorf("Headers() returned %d headers, want 3", got)
	}
}

func TestLSDBInstallPreservesInstallTime(t *testing.T) {
	db := newLSDB()
	lsa := routerLSA(1, 1, InitialSequenceNum)
	t0 := time.Unix(1000, 0)
	db.Install(lsa, t0)

	newer := routerLSA(1, 1, InitialSequenceNum+1)
	db.Install(newer, time.Unix(2000, 0))

	db.Router.mu.RLock()
	stored := db.Router.entries[lsa.ID()]
	db.Router.mu.RUnlock()
	if !stored.installedAt.Equal(t0) {
		t.Errorf("installedAt = %v, want preserved original %v", stored.installedAt, t0)
	}
}

func TestAgeTickSaturatesAtMaxAge(t *testing.T) {
	db := newLSDB()
	lsa := routerLSA(1, 1, InitialSequenceNum)
	db.Install(lsa, time.Unix(0, 0))

	reached := db.AgeTick(MaxAge - 1)
	if len(reached) != 0 {
		t.Fatalf("AgeTick to just under MaxAge reported %d LSAs reaching MaxAge, want 0", len(reached))
	}
	reached = db.AgeTick(10)
	if len(reached) != 1 {
		t.Fatalf("AgeTick crossing MaxAge reported %d LSAs, want 1", len(reached))
	}
	got, _ := db.Get(lsa.ID())
	if got.Header.Age != MaxAge {
		t.Errorf("Age = %d after saturation, want %d", got.Header.Age, MaxAge)
	}

	// further ticks must not report it again
	reached = db.AgeTick(10)
	if len(reached) != 0 {
		t.Errorf("AgeTick reported an already-MaxAge LSA again")
	}
}

func TestReadyForMaxAgeRemovalGatesOnPendingAcks(t *testing.T) {
	db := newLSDB()
	lsa := routerLSA(1, 1, InitialSequenceNum)
	db.Install(lsa, time.Unix(0, 0))
	db.AgeTick(MaxAge)

	k := ackKey{ifaceName: "eth0", neighbor: RouterID(2)}
	db.Router.addPendingAck(lsa.ID(), k)
	if db.Router.readyForMaxAgeRemoval(lsa.ID()) {
		t.Fatal("readyForMaxAgeRemoval true with a pending ack outstanding")
	}
	db.Router.clearPendingAck(lsa.ID(), k)
	if !db.Router.readyForMaxAgeRemoval(lsa.ID()) {
		t.Fatal("readyForMaxAgeRemoval false once all acks cleared")
	}
}

func TestASExternalDBIndependentOfAreaLSDB(t *testing.T) {
	areaDB := newLSDB()
	asDB := newASExternalDB()
	ext := LSA{Header: LSAHeader{LSType: LSATypeASExternal, LinkStateID: 1, AdvertisingRouter: 1}, ASExternal: &ASExternalLSABody{}}

	asDB.Install(ext, time.Unix(0, 0))
	if _, ok := areaDB.Get(ext.ID()); ok {
		t.Fatal("AS-external LSA leaked into the per-area LSDB")
	}
	if _, ok := asDB.Get(ext.ID()); !ok {
		t.Fatal("AS-external LSA missing from its own table")
	}
}
