package swarm

import (
	"math/rand"
	"sort"
	"time"

	"github.com/rkpatel/swarmpeer/internal/wire"
)

// startChokeScheduler launches the two independent tickers that decide
// who gets unchoked: the preferred-neighbor tick (contribution-ranked)
// and the optimistic-unchoke tick (uniform random).
func (p *Peer) startChokeScheduler() {
	go p.preferredLoop()
	go p.optimisticLoop()
}

func (p *Peer) preferredLoop() {
	ticker := time.NewTicker(p.UnchokingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.preferredTick()
		}
	}
}

func (p *Peer) optimisticLoop() {
	ticker := time.NewTicker(p.OptimisticInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.optimisticTick()
		}
	}
}

// preferredTick recomputes the K preferred neighbors, where K is
// PreferredCount. A seed with fewer than K connections already unchoked
// and at least K interested neighbors fills its preferred slots by
// uniform random choice among the interested; otherwise, once at least
// K connections have contributed a piece since the last tick, the top K
// contributors by pieces received (descending) become preferred. Every
// connection's contribution counter resets at the end of the tick.
func (p *Peer) preferredTick() {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := p.PreferredCount
	if k < 0 {
		k = 0
	}

	var unchoked, interested, contributors []*Connection
	for _, c := range p.connections {
		if !c.choked {
			unchoked = append(unchoked, c)
		}
		if c.interested {
			interested = append(interested, c)
		}
		if c.piecesReceived > 0 {
			contributors = append(contributors, c)
		}
	}

	var toUnchoke, toChoke []*Connection
	switch {
	case p.have.IsComplete() && len(unchoked) < k && len(interested) >= k:
		shuffled := append([]*Connection(nil), interested...)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		toUnchoke = shuffled[:k]
	case len(contributors) >= k:
		ranked := append([]*Connection(nil), contributors...)
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].piecesReceived > ranked[j].piecesReceived })
		top := ranked[:k]
		toUnchoke = connDiff(top, unchoked)
		toChoke = connDiff(unchoked, top)
	}

	unchokeSet := connSet(toUnchoke)
	chokeSet := connSet(toChoke)

	for _, c := range p.connections {
		c.piecesReceived = 0
		if chokeSet[c] && !unchokeSet[c] {
			c.choked = true
			c.sendOrLog(wire.EncodeChoke())
		}
		if unchokeSet[c] {
			c.choked = false
			c.sendOrLog(wire.EncodeUnchoke())
		}
	}
}

// optimisticTick picks one choked-but-interested neighbor uniformly at
// random and unchokes it, choking whichever connection was previously
// the optimistic choice.
func (p *Peer) optimisticTick() {
	p.mu.Lock()
	defer p.mu.Unlock()

	var candidates []*Connection
	for _, c := range p.connections {
		if c.interested && c.choked {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return
	}

	chosen := candidates[rand.Intn(len(candidates))]
	if chosen.remoteID == p.optimUnchokedID {
		return
	}

	for _, c := range p.connections {
		if c.remoteID == p.optimUnchokedID {
			c.choked = true
			c.sendOrLog(wire.EncodeChoke())
		}
	}
	chosen.choked = false
	chosen.sendOrLog(wire.EncodeUnchoke())
	p.optimUnchokedID = chosen.remoteID
}

// connDiff returns the elements of a not present in b, by identity.
func connDiff(a, b []*Connection) []*Connection {
	inB := connSet(b)
	var out []*Connection
	for _, c := range a {
		if !inB[c] {
			out = append(out, c)
		}
	}
	return out
}

func connSet(conns []*Connection) map[*Connection]bool {
	set := make(map[*Connection]bool, len(conns))
	for _, c := range conns {
		set[c] = true
	}
	return set
}
