package tui

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rkpatel/swarmpeer/internal/config"
	"github.com/rkpatel/swarmpeer/internal/swarm"
)

// Runner drives the swarm peer and the bubbletea dashboard together.
type Runner struct {
	peerID    uint32
	peer      *swarm.Peer
	neighbors []config.ManifestEntry
	verbose   bool

	program *tea.Program
	model   Model

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner loads configuration and builds the peer the dashboard will
// display, without starting it yet.
func NewRunner(configPath, manifestPath string, peerID uint32, verbose bool) (*Runner, error) {
	common, err := config.LoadCommon(configPath)
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	self, neighbors, err := config.Self(manifest, peerID)
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
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
		return nil, fmt.Errorf("tui: %w", err)
	}

	preferredCount := common.NumberOfPreferredNeighbors - 1
	peer := swarm.NewPeer(
		peerID, self.Host, self.Port,
		numPieces, common.PieceSize, common.FileSize,
		preferredCount,
		time.Duration(common.UnchokingInterval)*time.Second,
		time.Duration(common.OptimisticUnchokingInterval)*time.Second,
		store, pieces, self.HasFile,
		true, // quiet: the peer must not write to stdout while the TUI owns the screen
	)

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		peerID:    peerID,
		peer:      peer,
		neighbors: neighbors,
		verbose:   verbose,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Run starts the peer and the TUI, blocking until the program exits.
func (r *Runner) Run() error {
	if err := r.peer.Start(r.neighbors); err != nil {
		return err
	}

	r.model = NewModel(r.peerID, r.peer.Snapshot)
	r.program = tea.NewProgram(r.model, tea.WithAltScreen())

	r.setupSignalHandling()
	go r.monitorCompletion()

	_, err := r.program.Run()
	r.peer.Shutdown()
	return err
}

func (r *Runner) monitorCompletion() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			snap := r.peer.Snapshot()
			if r.peer.IsComplete() && len(snap.Connections) > 0 {
				complete := true
				for _, c := range snap.Connections {
					if c.RemoteHaveCount < snap.NumPieces {
						complete = false
						break
					}
				}
				if complete {
					if r.program != nil {
						r.program.Send(completionMsg{})
					}
					return
				}
			}
		}
	}
}

func (r *Runner) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		r.shutdown()
	}()
}

func (r *Runner) shutdown() {
	r.cancel()
	r.peer.Shutdown()
	if r.program != nil {
		r.program.Quit()
	}
}
