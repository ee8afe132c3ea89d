package swarm

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rkpatel/swarmpeer/internal/config"
)

// TestSingleSeedSingleLeechTransfer drives a real loopback TCP exchange
// between a seed and a leech for a small, raggedly-sized file and
// checks that the leech ends up with the exact bytes on disk.
func TestSingleSeedSingleLeechTransfer(t *testing.T) {
	dir := t.TempDir()
	content := []byte("abcdefghij") // 10 bytes / piece size 4 -> 3 pieces, last ragged
	seedFile := filepath.Join(dir, "source.dat")
	if err := os.WriteFile(seedFile, content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	const (
		pieceSize = 4
		fileSize  = 10
		numPieces = 3
	)

	seedStore, seedPieces, err := OpenSeedStore(seedFile, pieceSize, fileSize, numPieces)
	if err != nil {
		t.Fatalf("OpenSeedStore: %v", err)
	}
	seed := NewPeer(1001, "127.0.0.1", 0, numPieces, pieceSize, fileSize, 0,
		10*time.Millisecond, 20*time.Millisecond, seedStore, seedPieces, true, true)
	if err := seed.Start(nil); err != nil {
		t.Fatalf("seed.Start: %v", err)
	}
	defer seed.Shutdown()

	leechStore, err := OpenLeechStore(filepath.Join(dir, "peer_1002"), "source.dat", pieceSize, fileSize, numPieces)
	if err != nil {
		t.Fatalf("OpenLeechStore: %v", err)
	}
	leech := NewPeer(1002, "127.0.0.1", 0, numPieces, pieceSize, fileSize, 0,
		10*time.Millisecond, 20*time.Millisecond, leechStore, nil, false, true)
	if err := leech.Start([]config.ManifestEntry{
		{PeerID: 1001, Host: "127.0.0.1", Port: seed.listener.Addr().(*net.TCPAddr).Port, HasFile: true},
	}); err != nil {
		t.Fatalf("leech.Start: %v", err)
	}
	defer leech.Shutdown()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for !leech.IsComplete() {
		select {
		case <-deadline:
			t.Fatalf("leech never completed, have %d/%d pieces", leech.Snapshot().HaveCount, numPieces)
		case <-tick.C:
		}
	}

	got, err := os.ReadFile(filepath.Join(dir, "peer_1002", "source.dat"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("leech file = %q, want %q", got, content)
	}
}
