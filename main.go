// swarmpeer is a small peer-to-peer file-sharing swarm: a fixed set of
// peers, declared up front in a manifest, exchange fixed-size pieces of
// one shared file over a length-prefixed TCP wire protocol until every
// peer holds the whole thing.
//
// This client is built for learning and demonstration purposes. It has
// no tracker, no DHT, and no piece-integrity hashing — membership and
// starting completion are both read straight from the manifest.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rkpatel/swarmpeer/cmd"
)

func main() {
	configPath := flag.String("config", "Common.cfg", "path to the common configuration file")
	manifestPath := flag.String("manifest", "PeerInfo.cfg", "path to the peer manifest")
	peerID := flag.Uint("peer", 0, "this peer's id, as it appears in the manifest")
	verbose := flag.Bool("verbose", false, "print per-connection detail alongside progress")
	useTUI := flag.Bool("tui", false, "show a terminal dashboard instead of printing progress lines")
	flag.Parse()

	if *peerID == 0 {
		fmt.Println("Usage: swarmpeer -peer <id> [-config Common.cfg] [-manifest PeerInfo.cfg] [-tui] [-verbose]")
		os.Exit(1)
	}

	var err error
	if *useTUI {
		err = cmd.RunWithTUI(*configPath, *manifestPath, uint32(*peerID), *verbose)
	} else {
		err = cmd.Run(*configPath, *manifestPath, uint32(*peerID), *verbose)
	}
	if err != nil {
		log.Fatal(err)
	}
}
