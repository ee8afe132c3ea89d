// Package swarm implements the peer-to-peer file-sharing engine: the
// wire-protocol connections between neighbors, the piece store each
// peer reads and writes against, and the choke/unchoke scheduling that
// decides who gets served.
package swarm

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/rkpatel/swarmpeer/internal/bitmap"
	"github.com/rkpatel/swarmpeer/internal/config"
	"github.com/rkpatel/swarmpeer/internal/wire"
)

// Peer owns every piece of mutable state shared across a peer's
// connections: the completion bitmap, the in-memory piece bytes, the
// live connection list, and the current optimistically-unchoked
// neighbor. A single mutex guards all of it; there are no per-connection
// locks.
type Peer struct {
	ID   uint32
	Host string
	Port int

	NumPieces int
	PieceSize int
	FileSize  int

	// PreferredCount is K = NumberOfPreferredNeighbors - 1, the number
	// of preferred-neighbor slots (the optimistic slot is separate).
	PreferredCount int

	UnchokingInterval  time.Duration
	OptimisticInterval time.Duration

	Quiet bool

	mu              sync.Mutex
	have            *bitmap.Bitmap
	pieces          map[int][]byte
	connections     []*Connection
	optimUnchokedID int64

	store    *Store
	listener net.Listener
	done     chan struct{}
}

// NewPeer constructs a Peer. initialPieces is the seed's preloaded piece
// set (nil/empty for a leech); hasFile marks a seed peer, whose
// completion bitmap starts full.
func NewPeer(id uint32, host string, port int, numPieces, pieceSize, fileSize, preferredCount int, unchokingInterval, optimisticInterval time.Duration, store *Store, initialPieces map[int][]byte, hasFile bool, quiet bool) *Peer {
	have := bitmap.New(numPieces)
	if hasFile {
		have.SetAll()
	}

	pieces := make(map[int][]byte, len(initialPieces))
	for k, v := range initialPieces {
		pieces[k] = v
	}

	return &Peer{
		ID:                 id,
		Host:               host,
		Port:               port,
		NumPieces:          numPieces,
		PieceSize:          pieceSize,
		FileSize:           fileSize,
		PreferredCount:     preferredCount,
		UnchokingInterval:  unchokingInterval,
		OptimisticInterval: optimisticInterval,
		Quiet:              quiet,
		have:               have,
		pieces:             pieces,
		optimUnchokedID:    -1,
		store:              store,
		done:               make(chan struct{}),
	}
}

func (p *Peer) logf(format string, args ...interface{}) {
	if p.Quiet {
		return
	}
	log.Printf(format, args...)
}

// Start binds the listening socket, launches the choke schedulers, dials
// every neighbor preceding this peer's own manifest line, and begins
// accepting inbound connections. It returns once the listener is bound;
// dialing and accepting continue in the background.
func (p *Peer) Start(neighbors []config.ManifestEntry) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", p.Host, p.Port))
	if err != nil {
		return fmt.Errorf("swarm: peer %d: listen on %s:%d: %w", p.ID, p.Host, p.Port, err)
	}
	p.listener = ln

	p.startChokeScheduler()

	for _, n := range neighbors {
		go p.dial(n)
	}
	go p.acceptLoop()

	return nil
}

func (p *Peer) dial(n config.ManifestEntry) {
	addr := fmt.Sprintf("%s:%d", n.Host, n.Port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		p.logf("peer %d: dial peer %d at %s: %v", p.ID, n.PeerID, addr, err)
		return
	}
	c := newConnection(p, conn, true)
	p.addConnection(c)
	c.run()
}

func (p *Peer) acceptLoop() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return
		}
		c := newConnection(p, conn, false)
		p.addConnection(c)
		go c.run()
	}
}

// Shutdown closes the listener, stops the choke schedulers, and closes
// every live connection. It is safe to call more than once.
func (p *Peer) Shutdown() {
	select {
	case <-p.done:
		return
	default:
		close(p.done)
	}

	if p.listener != nil {
		p.listener.Close()
	}

	p.mu.Lock()
	conns := append([]*Connection(nil), p.connections...)
	p.mu.Unlock()
	for _, c := range conns {
		c.conn.Close()
	}

	if p.store != nil {
		p.store.Close()
	}
}

func (p *Peer) addConnection(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connections = append(p.connections, c)
}

func (p *Peer) removeConnection(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, conn := range p.connections {
		if conn == c {
			p.connections = append(p.connections[:i], p.connections[i+1:]...)
			return
		}
	}
}

// missingPieces reports whether this peer still lacks at least one piece.
func (p *Peer) missingPieces() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.have.IsComplete()
}

// neighborMissingPieces reports whether any live neighbor is known to
// still lack at least one piece.
func (p *Peer) neighborMissingPieces() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.connections {
		if !c.remoteHave.IsComplete() {
			return true
		}
	}
	return false
}

func (p *Peer) hasAnyPiece() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.have.Count() > 0
}

func (p *Peer) bitfieldBytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.have.Bytes()
}

func (p *Peer) pieceData(index int) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= p.NumPieces {
		return nil, false
	}
	data, ok := p.pieces[index]
	return data, ok
}

// diffFor computes the pieces c's remote has that this peer still lacks.
func (p *Peer) diffFor(c *Connection) (*bitmap.Bitmap, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return c.remoteHave.AndNot(p.have)
}

func (p *Peer) validatePieceLen(index int, data []byte) error {
	if index < 0 || index >= p.NumPieces {
		return fmt.Errorf("swarm: piece index %d out of range [0,%d)", index, p.NumPieces)
	}
	want := p.store.PieceLen(index)
	if len(data) != want {
		return fmt.Errorf("swarm: piece %d has length %d, want %d", index, len(data), want)
	}
	return nil
}

// receivePiece records a freshly-arrived piece, persists it to the
// store, and broadcasts HAVE to every connection — all under the peer
// lock, so the broadcast is guaranteed to reach every neighbor before
// this connection processes anything else from its remote.
func (p *Peer) receivePiece(from *Connection, index int, data []byte) error {
	p.mu.Lock()
	if p.have.Get(index) {
		p.mu.Unlock()
		return nil
	}

	if err := p.store.WritePiece(index, data); err != nil {
		p.mu.Unlock()
		return err
	}
	p.pieces[index] = append([]byte(nil), data...)
	p.have.Set(index)
	from.piecesReceived++
	p.logf("peer %d: received piece %d from peer %d (%d/%d)", p.ID, index, from.remoteID, p.have.Count(), p.NumPieces)

	haveFrame := wire.EncodeHave(uint32(index))
	for _, c := range p.connections {
		c.sendOrLog(haveFrame)
	}
	p.mu.Unlock()
	return nil
}

// IsComplete reports whether this peer holds every piece of the file.
func (p *Peer) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.have.IsComplete()
}

// ConnectionSnapshot is a point-in-time, lock-free view of one
// connection's state, used by the TUI.
type ConnectionSnapshot struct {
	RemoteID        int64
	Outbound        bool
	Choked          bool
	Interested      bool
	PiecesReceived  int
	RemoteHaveCount int
}

// Snapshot is a point-in-time view of a peer's full state, used by the
// TUI to render without holding the peer lock itself.
type Snapshot struct {
	PeerID          uint32
	HaveCount       int
	NumPieces       int
	OptimUnchokedID int64
	Connections     []ConnectionSnapshot
}

// Snapshot captures the peer's current state for display.
func (p *Peer) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		PeerID:          p.ID,
		HaveCount:       p.have.Count(),
		NumPieces:       p.NumPieces,
		OptimUnchokedID: p.optimUnchokedID,
	}
	for _, c := range p.connections {
		snap.Connections = append(snap.Connections, ConnectionSnapshot{
			RemoteID:        c.remoteID,
			Outbound:        c.outbound,
			Choked:          c.choked,
			Interested:      c.interested,
			PiecesReceived:  c.piecesReceived,
			RemoteHaveCount: c.remoteHave.Count(),
		})
	}
	return snap
}
