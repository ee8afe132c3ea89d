package wire

import (
	"bytes"
	"testing"
)

func TestHandshakeRoundTrip(t *testing.T) {
	frame := EncodeHandshake(42)
	if len(frame) != 32 {
		t.Fatalf("handshake frame length = %d, want 32", len(frame))
	}

	msg, err := ReadMessage(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Type != Handshake {
		t.Fatalf("Type = %v, want Handshake", msg.Type)
	}
	id, err := HandshakePeerID(msg)
	if err != nil {
		t.Fatalf("HandshakePeerID: %v", err)
	}
	if id != 42 {
		t.Fatalf("peer id = %d, want 42", id)
	}
}

func TestHandshakeLiteralBytes(t *testing.T) {
	// A handshake recognized purely from its literal bytes, independent
	// of any encoder.
	literal := []byte{
		0x50, 0x32, 0x50, 0x46, 0x49, 0x4C, 0x45, 0x53, 0x48, 0x41,
		0x52, 0x49, 0x4E, 0x47, 0x50, 0x52, 0x4F, 0x4A,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x2A,
	}

	msg, err := ReadMessage(bytes.NewReader(literal))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	id, err := HandshakePeerID(msg)
	if err != nil {
		t.Fatalf("HandshakePeerID: %v", err)
	}
	if id != 42 {
		t.Fatalf("peer id = %d, want 42", id)
	}
}

func TestRoundTripEmptyPayloadMessages(t *testing.T) {
	cases := []struct {
		name    string
		frame   []byte
		wantTyp MessageType
	}{
		{"choke", EncodeChoke(), Choke},
		{"unchoke", EncodeUnchoke(), Unchoke},
		{"interested", EncodeInterested(), Interested},
		{"not_interested", EncodeNotInterested(), NotInterested},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if len(tc.frame) != 5 {
				t.Fatalf("frame length = %d, want 5 (4 length + 1 type)", len(tc.frame))
			}

			msg, err := Decode(tc.frame)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if msg.Type != tc.wantTyp {
				t.Fatalf("Type = %v, want %v", msg.Type, tc.wantTyp)
			}
			if len(msg.Payload) != 0 {
				t.Fatalf("Payload = %v, want empty", msg.Payload)
			}

			read, err := ReadMessage(bytes.NewReader(tc.frame))
			if err != nil {
				t.Fatalf("ReadMessage: %v", err)
			}
			if read.Type != tc.wantTyp {
				t.Fatalf("ReadMessage Type = %v, want %v", read.Type, tc.wantTyp)
			}
		})
	}
}

func TestHaveAndRequestRoundTrip(t *testing.T) {
	for _, index := range []uint32{0, 1, 1<<20 - 1} {
		haveFrame := EncodeHave(index)
		msg, err := Decode(haveFrame)
		if err != nil {
			t.Fatalf("Decode(have): %v", err)
		}
		got, err := PieceIndex(msg)
		if err != nil {
			t.Fatalf("PieceIndex: %v", err)
		}
		if got != index {
			t.Fatalf("have index = %d, want %d", got, index)
		}

		reqFrame := EncodeRequest(index)
		msg, err = Decode(reqFrame)
		if err != nil {
			t.Fatalf("Decode(request): %v", err)
		}
		got, err = PieceIndex(msg)
		if err != nil {
			t.Fatalf("PieceIndex: %v", err)
		}
		if got != index {
			t.Fatalf("request index = %d, want %d", got, index)
		}
	}
}

func TestBitfieldRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},                 // empty bitfield (zero pieces)
		{0xFF},             // full bitfield
		{0b10110000, 0x00}, // partial
	}

	for _, packed := range cases {
		frame := EncodeBitfield(packed)
		msg, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if msg.Type != Bitfield {
			t.Fatalf("Type = %v, want Bitfield", msg.Type)
		}
		if !bytes.Equal(msg.Payload, packed) {
			t.Fatalf("Payload = %v, want %v", msg.Payload, packed)
		}
	}
}

func TestPieceRoundTrip(t *testing.T) {
	cases := []struct {
		index uint32
		data  []byte
	}{
		{0, []byte("ABCD")},
		{3, []byte("IJKL")},
		{2, []byte("XY")}, // ragged final piece tail
	}

	for _, tc := range cases {
		frame := EncodePiece(tc.index, tc.data)
		msg, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		index, data, err := SplitPiece(msg)
		if err != nil {
			t.Fatalf("SplitPiece: %v", err)
		}
		if index != tc.index {
			t.Fatalf("index = %d, want %d", index, tc.index)
		}
		if !bytes.Equal(data, tc.data) {
			t.Fatalf("data = %v, want %v", data, tc.data)
		}
	}
}

func TestLengthFieldIncludesTypeByte(t *testing.T) {
	frame := EncodeChoke()
	length := uint32(frame[3])
	if length != 1 {
		t.Fatalf("length field = %d, want 1 (type byte, no payload)", length)
	}

	frame = EncodeHave(7)
	length = uint32(frame[3])
	if length != 5 {
		t.Fatalf("length field = %d, want 5 (1 type byte + 4 byte index)", length)
	}
}

func TestDecodeRejectsMismatchedLength(t *testing.T) {
	frame := EncodeHave(1)
	frame = append(frame, 0xFF) // trailing garbage the length doesn't account for
	if _, err := Decode(frame); err == nil {
		t.Fatalf("Decode: expected error on mismatched length")
	}
}
