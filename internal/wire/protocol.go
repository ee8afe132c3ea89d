// Package wire implements the binary framing used between swarm peers.
//
// Every frame except the handshake is length-prefixed, and that length
// field counts the type byte along with the payload: a CHOKE message
// carries zero payload bytes but still has length == 1. This is a
// deliberate departure from the more common "length of payload only"
// convention, kept because the rest of the swarm engine is built
// against it.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MessageType identifies the kind of a wire frame.
type MessageType uint8

const (
	Choke         MessageType = 0
	Unchoke       MessageType = 1
	Interested    MessageType = 2
	NotInterested MessageType = 3
	Have          MessageType = 4
	Bitfield      MessageType = 5
	Request       MessageType = 6
	Piece         MessageType = 7

	// Handshake never appears on the wire with this tag; it is recognized
	// by its literal prefix instead. The value is used only to label a
	// decoded Message for callers that switch on Type.
	Handshake MessageType = 10
)

func (t MessageType) String() string {
	switch t {
	case Choke:
		return "choke"
	case Unchoke:
		return "unchoke"
	case Interested:
		return "interested"
	case NotInterested:
		return "not_interested"
	case Have:
		return "have"
	case Bitfield:
		return "bitfield"
	case Request:
		return "request"
	case Piece:
		return "piece"
	case Handshake:
		return "handshake"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// handshakeMagic is the literal that makes a handshake frame
// self-identifying: a reader inspects the first 4 bytes of any frame
// and only needs to check them against this prefix.
const handshakeMagic = "P2PFILESHARINGPROJ"

// handshakeLen is the total size of a handshake frame: the 18-byte
// magic, 10 reserved zero bytes, and a 4-byte peer id.
const handshakeLen = len(handshakeMagic) + 10 + 4

// Message is a decoded wire frame.
type Message struct {
	Type    MessageType
	Payload []byte
}

// EncodeHandshake builds the 32-byte handshake frame for peerID.
func EncodeHandshake(peerID uint32) []byte {
	buf := make([]byte, handshakeLen)
	copy(buf, handshakeMagic)
	binary.BigEndian.PutUint32(buf[len(handshakeMagic)+10:], peerID)
	return buf
}

// DecodeHandshake extracts the peer id from a 32-byte handshake frame.
// Callers must have already recognized the frame via its magic prefix.
func DecodeHandshake(frame []byte) (uint32, error) {
	if len(frame) != handshakeLen {
		return 0, fmt.Errorf("wire: handshake frame has length %d, want %d", len(frame), handshakeLen)
	}
	return binary.BigEndian.Uint32(frame[len(handshakeMagic)+10:]), nil
}

func encodeFramed(t MessageType, payload []byte) []byte {
	length := uint32(1 + len(payload))
	buf := make([]byte, 4+len(payload)+1)
	binary.BigEndian.PutUint32(buf[0:4], length)
	buf[4] = byte(t)
	copy(buf[5:], payload)
	return buf
}

func EncodeChoke() []byte         { return encodeFramed(Choke, nil) }
func EncodeUnchoke() []byte       { return encodeFramed(Unchoke, nil) }
func EncodeInterested() []byte    { return encodeFramed(Interested, nil) }
func EncodeNotInterested() []byte { return encodeFramed(NotInterested, nil) }

// EncodeHave builds a HAVE frame announcing piece index.
func EncodeHave(index uint32) []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, index)
	return encodeFramed(Have, payload)
}

// EncodeBitfield builds a BITFIELD frame carrying the packed bitmap bytes.
func EncodeBitfield(packed []byte) []byte {
	return encodeFramed(Bitfield, packed)
}

// EncodeRequest builds a REQUEST frame for piece index.
func EncodeRequest(index uint32) []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, index)
	return encodeFramed(Request, payload)
}

// EncodePiece builds a PIECE frame carrying index followed by data.
func EncodePiece(index uint32, data []byte) []byte {
	payload := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(payload[:4], index)
	copy(payload[4:], data)
	return encodeFramed(Piece, payload)
}

// maxFrameLength bounds how large a single length-prefixed frame may
// claim to be, so a corrupt length field fails fast instead of
// allocating unbounded memory. It is sized well above any piece size
// this swarm is expected to carry.
const maxFrameLength = 64 << 20

// ReadMessage reads one frame from r: a handshake (recognized by its
// magic prefix) or a length-prefixed message. It blocks until a full
// frame has arrived or the read fails.
func ReadMessage(r io.Reader) (*Message, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}

	if string(head[:]) == handshakeMagic[:4] {
		rest := make([]byte, handshakeLen-4)
		if _, err := io.ReadFull(r, rest); err != nil {
			return nil, fmt.Errorf("wire: short handshake read: %w", err)
		}
		frame := append(head[:4:4], rest...)
		peerID, err := DecodeHandshake(frame)
		if err != nil {
			return nil, err
		}
		payload := make([]byte, 4)
		binary.BigEndian.PutUint32(payload, peerID)
		return &Message{Type: Handshake, Payload: payload}, nil
	}

	length := binary.BigEndian.Uint32(head[:])
	if length == 0 {
		return nil, fmt.Errorf("wire: zero-length frame")
	}
	if length > maxFrameLength {
		return nil, fmt.Errorf("wire: frame length %d exceeds maximum", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("wire: short frame read: %w", err)
	}

	return &Message{Type: MessageType(body[0]), Payload: body[1:]}, nil
}

// Decode parses a single frame already fully buffered in b, dispatching
// on the same magic-prefix rule ReadMessage uses. It exists alongside
// ReadMessage for round-trip tests that want to decode an encoded
// buffer without standing up an io.Reader.
func Decode(b []byte) (*Message, error) {
	if len(b) >= 4 && string(b[:4]) == handshakeMagic[:4] {
		if len(b) < handshakeLen {
			return nil, fmt.Errorf("wire: truncated handshake")
		}
		peerID, err := DecodeHandshake(b[:handshakeLen])
		if err != nil {
			return nil, err
		}
		payload := make([]byte, 4)
		binary.BigEndian.PutUint32(payload, peerID)
		return &Message{Type: Handshake, Payload: payload}, nil
	}

	if len(b) < 5 {
		return nil, fmt.Errorf("wire: frame too short")
	}
	length := binary.BigEndian.Uint32(b[:4])
	if int(length) != len(b)-4 {
		return nil, fmt.Errorf("wire: declared length %d does not match buffer", length)
	}
	return &Message{Type: MessageType(b[4]), Payload: b[5:]}, nil
}

// PieceIndex extracts the piece index carried by a HAVE or REQUEST message.
func PieceIndex(m *Message) (uint32, error) {
	if len(m.Payload) != 4 {
		return 0, fmt.Errorf("wire: %s payload has length %d, want 4", m.Type, len(m.Payload))
	}
	return binary.BigEndian.Uint32(m.Payload), nil
}

// SplitPiece separates a PIECE message's payload into its index and data.
func SplitPiece(m *Message) (uint32, []byte, error) {
	if len(m.Payload) < 4 {
		return 0, nil, fmt.Errorf("wire: piece payload has length %d, want >= 4", len(m.Payload))
	}
	return binary.BigEndian.Uint32(m.Payload[:4]), m.Payload[4:], nil
}

// HandshakePeerID extracts the peer id carried by a decoded handshake Message.
func HandshakePeerID(m *Message) (uint32, error) {
	if m.Type != Handshake || len(m.Payload) != 4 {
		return 0, fmt.Errorf("wire: not a handshake message")
	}
	return binary.BigEndian.Uint32(m.Payload), nil
}
