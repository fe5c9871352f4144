package ospfd

import "testing"

func TestAreaNextRouterSeqStartsAtInitial(t *testing.T) {
	a := newArea(BackboneArea)
	seq, flush := a.nextRouterSeq()
	if flush || seq != InitialSequenceNum {
		t.Fatalf("first nextRouterSeq() = (%d, %v), want (%d, false)", seq, flush, InitialSequenceNum)
	}
	seq, flush = a.nextRouterSeq()
	if flush || seq != InitialSequenceNum+1 {
		t.Fatalf("second nextRouterSeq() = (%d, %v), want (%d, false)", seq, flush, InitialSequenceNum+1)
	}
}

func TestAreaNextRouterSeqRequestsFlushAtWrap(t *testing.T) {
	a := newArea(BackboneArea)
	a.routerSeqSet = true
	a.routerSeq = MaxSequenceNum

	seq, flush := a.nextRouterSeq()
	if !flush || seq != MaxSequenceNum {
		t.Fatalf("nextRouterSeq() at wrap = (%d, %v), want (%d, true)", seq, flush, MaxSequenceNum)
	}

	a.restartRouterSeq()
	seq, flush = a.nextRouterSeq()
	if flush || seq != InitialSequenceNum {
		t.Fatalf("nextRouterSeq() after restart = (%d, %v), want (%d, false)", seq, flush, InitialSequenceNum)
	}
}

func TestAreaLinksChanged(t *testing.T) {
	a := newArea(BackboneArea)
	links := []RouterLink{{LinkID: 1, LinkData: 2, LinkType: LinkStub, Metric: 10}}

	if !a.linksChanged(links) {
		t.Fatal("linksChanged false before any links were ever set")
	}
	a.setLastRouterLinks(links)
	if a.linksChanged(links) {
		t.Fatal("linksChanged true for an identical link set")
	}

	changed := []RouterLink{{LinkID: 1, LinkData: 2, LinkType: LinkStub, Metric: 20}}
	if !a.linksChanged(changed) {
		t.Fatal("linksChanged false despite a metric change")
	}
}
