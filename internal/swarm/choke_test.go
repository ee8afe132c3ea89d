package swarm

import (
	"io"
	"net"
	"testing"
	"time"
)

func pipedConnection(p *Peer, outbound bool) (*Connection, net.Conn) {
	local, remote := net.Pipe()
	go io.Copy(io.Discard, remote)
	return newConnection(p, local, outbound), remote
}

func TestPreferredTickUnchokesTopContributorDescending(t *testing.T) {
	p := NewPeer(1, "127.0.0.1", 0, 4, 1, 4, 1, time.Hour, time.Hour, nil, nil, false, true)

	c1, r1 := pipedConnection(p, true)
	c2, r2 := pipedConnection(p, true)
	c3, r3 := pipedConnection(p, true)
	defer r1.Close()
	defer r2.Close()
	defer r3.Close()

	c1.piecesReceived = 2
	c2.piecesReceived = 5
	c3.piecesReceived = 1
	p.connections = []*Connection{c1, c2, c3}

	p.preferredTick()

	if c2.choked {
		t.Fatalf("top contributor c2 should be unchoked")
	}
	if !c1.choked || !c3.choked {
		t.Fatalf("non-top contributors should remain choked: c1=%v c3=%v", c1.choked, c3.choked)
	}
	if c1.piecesReceived != 0 || c2.piecesReceived != 0 || c3.piecesReceived != 0 {
		t.Fatalf("piecesReceived counters should reset after a tick")
	}

	// A second tick with no new contributions changes nothing.
	p.preferredTick()
	if c2.choked {
		t.Fatalf("previously-unchoked top contributor should stay unchoked when no branch fires")
	}
}

func TestOptimisticTickRotatesAmongInterestedChoked(t *testing.T) {
	p := NewPeer(2, "127.0.0.1", 0, 4, 1, 4, 1, time.Hour, time.Hour, nil, nil, false, true)

	c1, r1 := pipedConnection(p, true)
	c2, r2 := pipedConnection(p, true)
	defer r1.Close()
	defer r2.Close()

	c1.remoteID = 101
	c2.remoteID = 102
	c1.interested = true
	c2.interested = false // not a candidate: not interested
	p.connections = []*Connection{c1, c2}

	p.optimisticTick()

	if c1.choked {
		t.Fatalf("sole interested-choked candidate should be unchoked")
	}
	if p.optimUnchokedID != 101 {
		t.Fatalf("optimUnchokedID = %d, want 101", p.optimUnchokedID)
	}

	// c1 is now unchoked, so a repeat tick finds no candidate and must
	// leave the current optimistic neighbor unchoked.
	p.optimisticTick()
	if c1.choked {
		t.Fatalf("a repeat tick must not choke the current optimistic neighbor")
	}
}

func TestOptimisticTickNoCandidates(t *testing.T) {
	p := NewPeer(3, "127.0.0.1", 0, 4, 1, 4, 1, time.Hour, time.Hour, nil, nil, false, true)
	c1, r1 := pipedConnection(p, true)
	defer r1.Close()
	p.connections = []*Connection{c1}

	p.optimisticTick()

	if p.optimUnchokedID != -1 {
		t.Fatalf("optimUnchokedID = %d, want -1 when nobody is interested", p.optimUnchokedID)
	}
}
