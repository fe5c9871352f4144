package ospfd

import (
	"sync"
	"time"
)

// Area owns one area's independent LSDB and the bookkeeping needed to
// originate and refresh this router's own LSAs in it (§3).
type Area struct {
	ID   AreaID
	LSDB *LSDB

	mu               sync.Mutex
	routerSeq        int32 // sequence number of our own router-LSA
	routerSeqSet     bool
	networkSeq       map[uint32]int32 // per-DR-interface-address network-LSA sequence
	lastRouterLinks  []RouterLink     // last-originated links, to detect "links vector changed" (§4.4)
}

func newArea(id AreaID) *Area {
	return &Area{
		ID:         id,
		LSDB:       newLSDB(),
		networkSeq: make(map[uint32]int32),
	}
}

// nextRouterSeq returns the sequence number to use for the next
// self-originated router-LSA, implementing §3 invariant 3 and §4.4's
// "sequence number one greater than the previous" rule, including the
// MaxSequenceNumber flush-and-restart case (S6).
func (a *Area) nextRouterSeq() (seq int32, mustFlushFirst bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.routerSeqSet {
		a.routerSeqSet = true
		a.routerSeq = InitialSequenceNum
		return a.routerSeq, false
	}
	next, wrapped := incSequence(a.routerSeq)
	if wrapped {
		// Caller must flush the current instance at MaxAge first and
		// re-originate at InitialSequenceNum afterwards (§3 invariant 3,
		// §4.4, S6).
		return a.routerSeq, true
	}
	a.routerSeq = next
	return a.routerSeq, false
}

func (a *Area) restartRouterSeq() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routerSeq = InitialSequenceNum
	a.routerSeqSet = false
}

func (a *Area) nextNetworkSeq(drAddr uint32) (seq int32, mustFlushFirst bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur, ok := a.networkSeq[drAddr]
	if !ok {
		a.networkSeq[drAddr] = InitialSequenceNum
		return InitialSequenceNum, false
	}
	next, wrapped := incSequence(cur)
	if wrapped {
		return cur, true
	}
	a.networkSeq[drAddr] = next
	return next, false
}

func (a *Area) setLastRouterLinks(links []RouterLink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastRouterLinks = links
}

// forceRouterRefresh clears the last-originated links cache so the next
// originateRouterLSA call re-originates even though the links vector
// itself has not changed, needed to recover a self-originated router-LSA
// that reached MaxAge without having been refreshed (§4.4 scenario S4).
func (a *Area) forceRouterRefresh() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastRouterLinks = nil
}

func (a *Area) linksChanged(links []RouterLink) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(links) != len(a.lastRouterLinks) {
		return true
	}
	for i, l := range links {
		if l != a.lastRouterLinks[i] {
			return true
		}
	}
	return false
}

// AgeTick ages every LSA in this area's LSDB and returns the ones that
// newly reached MaxAge this tick (§3 invariant 2, §4.4).
func (a *Area) AgeTick(delta uint16) []LSA {
	return a.LSDB.AgeTick(delta)
}

// runAging drives the per-area aging ticker (§4.4: "A single aging
// ticker, running once per second"). It calls onMaxAge for each LSA
// that newly reaches MaxAge so the engine can schedule the final flood
// and deliver re-origination decisions.
func (a *Area) runAging(stop <-chan struct{}, onMaxAge func(AreaID, []LSA)) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if reached := a.AgeTick(1); len(reached) > 0 {
				onMaxAge(a.ID, reached)
			}
		}
	}
}
