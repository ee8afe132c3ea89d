package swarm

import (
	"fmt"
	"net"
	"sync"

	"github.com/rkpatel/swarmpeer/internal/bitmap"
	"github.com/rkpatel/swarmpeer/internal/wire"
)

// Connection runs one neighbor's wire-protocol session: a single
// goroutine blocking on reads, dispatching each message against the
// owning Peer's shared state. peer, conn and outbound are fixed at
// construction; every other field except writeMu is only ever written
// while the owning Peer's lock is held.
type Connection struct {
	peer     *Peer
	conn     net.Conn
	outbound bool

	remoteID       int64
	remoteHave     *bitmap.Bitmap
	interested     bool
	choked         bool
	piecesReceived int

	writeMu sync.Mutex
}

func newConnection(p *Peer, conn net.Conn, outbound bool) *Connection {
	return &Connection{
		peer:       p,
		conn:       conn,
		outbound:   outbound,
		remoteID:   -1,
		remoteHave: bitmap.New(p.NumPieces),
		choked:     true,
	}
}

// run is the connection's read loop. It exits, closing the socket and
// deregistering itself from the peer, as soon as both this peer and
// every live neighbor hold every piece, or on any protocol/socket error.
func (c *Connection) run() {
	defer func() {
		c.peer.removeConnection(c)
		c.conn.Close()
	}()

	if c.outbound {
		if err := c.sendHandshake(); err != nil {
			c.peer.logf("peer %d: handshake to peer at %s failed: %v", c.peer.ID, c.conn.RemoteAddr(), err)
			return
		}
	}

	for c.peer.missingPieces() || c.peer.neighborMissingPieces() {
		msg, err := wire.ReadMessage(c.conn)
		if err != nil {
			c.peer.logf("peer %d: connection to peer %d closed: %v", c.peer.ID, c.remoteID, err)
			return
		}
		if err := c.handle(msg); err != nil {
			c.peer.logf("peer %d: peer %d: %v", c.peer.ID, c.remoteID, err)
			return
		}
	}
}

func (c *Connection) handle(msg *wire.Message) error {
	switch msg.Type {
	case wire.Handshake:
		return c.handleHandshake(msg)
	case wire.Choke:
		return nil
	case wire.Unchoke:
		return c.requestPiece()
	case wire.Interested:
		c.peer.mu.Lock()
		c.interested = true
		c.peer.mu.Unlock()
		return nil
	case wire.NotInterested:
		c.peer.mu.Lock()
		c.interested = false
		c.peer.mu.Unlock()
		return nil
	case wire.Have:
		return c.handleHave(msg)
	case wire.Bitfield:
		return c.handleBitfield(msg)
	case wire.Request:
		return c.handleRequest(msg)
	case wire.Piece:
		return c.handlePiece(msg)
	default:
		return fmt.Errorf("unexpected message type %s", msg.Type)
	}
}

func (c *Connection) handleHandshake(msg *wire.Message) error {
	id, err := wire.HandshakePeerID(msg)
	if err != nil {
		return err
	}
	c.peer.mu.Lock()
	c.remoteID = int64(id)
	c.peer.mu.Unlock()

	if !c.outbound {
		if err := c.sendHandshake(); err != nil {
			return err
		}
	}
	if c.peer.hasAnyPiece() {
		return c.send(wire.EncodeBitfield(c.peer.bitfieldBytes()))
	}
	return nil
}

func (c *Connection) handleHave(msg *wire.Message) error {
	index, err := wire.PieceIndex(msg)
	if err != nil {
		return err
	}
	if int(index) < 0 || int(index) >= c.peer.NumPieces {
		return fmt.Errorf("have: piece index %d out of range", index)
	}

	c.peer.mu.Lock()
	c.remoteHave.Set(int(index))
	c.peer.mu.Unlock()

	return c.notifyInterest()
}

func (c *Connection) handleBitfield(msg *wire.Message) error {
	bm := bitmap.FromBytes(msg.Payload, c.peer.NumPieces)

	c.peer.mu.Lock()
	c.remoteHave = bm
	c.peer.mu.Unlock()

	return c.notifyInterest()
}

func (c *Connection) handleRequest(msg *wire.Message) error {
	index, err := wire.PieceIndex(msg)
	if err != nil {
		return err
	}
	data, ok := c.peer.pieceData(int(index))
	if !ok {
		return fmt.Errorf("request: piece %d not held", index)
	}
	return c.send(wire.EncodePiece(index, data))
}

func (c *Connection) handlePiece(msg *wire.Message) error {
	index, data, err := wire.SplitPiece(msg)
	if err != nil {
		return err
	}
	if err := c.peer.validatePieceLen(int(index), data); err != nil {
		return err
	}
	if err := c.peer.receivePiece(c, int(index), data); err != nil {
		return err
	}
	return c.requestPiece()
}

// notifyInterest sends INTERESTED or NOT_INTERESTED depending on
// whether the remote's bitfield still has anything this peer lacks.
func (c *Connection) notifyInterest() error {
	diff, err := c.peer.diffFor(c)
	if err != nil {
		return err
	}
	if diff.Count() > 0 {
		return c.send(wire.EncodeInterested())
	}
	return c.send(wire.EncodeNotInterested())
}

// requestPiece asks for one uniformly-random piece the remote has and
// this peer lacks. It is a no-op if there is nothing left to ask for.
func (c *Connection) requestPiece() error {
	diff, err := c.peer.diffFor(c)
	if err != nil {
		return err
	}
	index, ok := bitmap.RandomSetBit(diff)
	if !ok {
		return nil
	}
	return c.send(wire.EncodeRequest(uint32(index)))
}

func (c *Connection) sendHandshake() error {
	return c.send(wire.EncodeHandshake(c.peer.ID))
}

func (c *Connection) send(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(frame)
	return err
}

// sendOrLog is used for broadcasts and choke-scheduler sends issued
// while the peer lock is held: a failed send here means this neighbor's
// own read loop will observe the closed socket and clean itself up, so
// there is nothing further for the caller to do but log it.
func (c *Connection) sendOrLog(frame []byte) {
	if err := c.send(frame); err != nil {
		c.peer.logf("peer %d: send to peer %d failed: %v", c.peer.ID, c.remoteID, err)
	}
}
