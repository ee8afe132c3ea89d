package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rkpatel/swarmpeer/internal/config"
	"github.com/rkpatel/swarmpeer/internal/swarm"
	"github.com/rkpatel/swarmpeer/internal/tui"
)

// RunWithTUI executes one swarm peer the same way Run does, but drives
// a bubbletea dashboard instead of printing progress lines.
func RunWithTUI(configPath, manifestPath string, peerID uint32, verbose bool) error {
	runner, err := tui.NewRunner(configPath, manifestPath, peerID, verbose)
	if err != nil {
		return err
	}
	return runner.Run()
}

// Run executes one swarm peer with the given parameters. It loads the
// common configuration and peer manifest, builds this peer's store and
// state, dials its preceding neighbors, and prints periodic progress
// until the transfer completes or the process is signaled.
func Run(configPath, manifestPath string, peerID uint32, verbose bool) error {
	p, neighbors, err := buildPeer(configPath, manifestPath, peerID, false)
	if err != nil {
		return err
	}

	fmt.Printf("peer %d: %d pieces, %d preferred neighbor slot(s)\n", peerID, p.NumPieces, p.PreferredCount+1)
	if err := p.Start(neighbors); err != nil {
		return err
	}
	defer p.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := p.Snapshot()
			fmt.Printf("peer %d: %d/%d pieces, %d connection(s)\n", peerID, snap.HaveCount, snap.NumPieces, len(snap.Connections))
			if verbose {
				for _, c := range snap.Connections {
					fmt.Printf("  peer %d: choked=%v interested=%v received=%d remote_have=%d/%d\n",
						c.RemoteID, c.Choked, c.Interested, c.PiecesReceived, c.RemoteHaveCount, snap.NumPieces)
				}
			}
			if transferComplete(p, snap) {
				fmt.Println("transfer complete")
				return nil
			}
		}
	}
}

// transferComplete reports whether this peer and every currently
// connected neighbor hold every piece. A peer with no live connections
// is never reported complete even if its own bitmap is full, since it
// has not yet finished serving anyone.
func transferComplete(p *swarm.Peer, snap swarm.Snapshot) bool {
	if !p.IsComplete() || len(snap.Connections) == 0 {
		return false
	}
	for _, c := range snap.Connections {
		if c.RemoteHaveCount < snap.NumPieces {
			return false
		}
	}
	return true
}

// buildPeer loads configuration and constructs a swarm.Peer ready to
// Start, along with the neighbors it must dial.
func buildPeer(configPath, manifestPath string, peerID uint32, quiet bool) (*swarm.Peer, []config.ManifestEntry, error) {
	common, err := config.LoadCommon(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cmd: %w", err)
	}

	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cmd: %w", err)
	}

	self, neighbors, err := config.Self(manifest, peerID)
	if err != nil {
		return nil, nil, fmt.Errorf("cmd: %w", err)
	}

	numPieces := common.NumPieces()

	var store *swarm.Store
	var pieces map[int][]byte
	if self.HasFile {
		store, pieces, err = swarm.OpenSeedStore(common.FileName, common.PieceSize, common.FileSize, numPieces)
	} else {
		dir := fmt.Sprintf("peer_%d", peerID)
		store, err = swarm.OpenLeechStore(dir, common.FileName, common.PieceSize, common.FileSize, numPieces)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("cmd: %w", err)
	}

	preferredCount := common.NumberOfPreferredNeighbors - 1
	p := swarm.NewPeer(
		peerID, self.Host, self.Port,
		numPieces, common.PieceSize, common.FileSize,
		preferredCount,
		time.Duration(common.UnchokingInterval)*time.Second,
		time.Duration(common.OptimisticUnchokingInterval)*time.Second,
		store, pieces, self.HasFile, quiet,
	)

	return p, neighbors, nil
}
