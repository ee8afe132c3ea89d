package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ManifestEntry is one line of the peer manifest: a peer's identity,
// bind address, and whether it starts as a seed.
type ManifestEntry struct {
	PeerID  uint32
	Host    string
	Port    int
	HasFile bool
}

// LoadManifest reads the peer manifest at path, preserving line order.
// Order is significant: a peer dials exactly the peers listed above its
// own line in the file.
func LoadManifest(path string) ([]ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening manifest %s: %w", path, err)
	}
	defer f.Close()

	var entries []ManifestEntry
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 4 {
			return nil, fmt.Errorf("config: manifest %s:%d: expected 4 fields, got %d", path, line, len(fields))
		}

		id, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: manifest %s:%d: peer id: %w", path, line, err)
		}
		port, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("config: manifest %s:%d: port: %w", path, line, err)
		}
		hasFile, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("config: manifest %s:%d: has_file: %w", path, line, err)
		}

		entries = append(entries, ManifestEntry{
			PeerID:  uint32(id),
			Host:    fields[1],
			Port:    port,
			HasFile: hasFile != 0,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading manifest %s: %w", path, err)
	}

	return entries, nil
}

// Self returns the manifest entry matching peerID, and the entries that
// precede it — the neighbors this peer must dial at startup.
func Self(entries []ManifestEntry, peerID uint32) (self ManifestEntry, precedingNeighbors []ManifestEntry, err error) {
	for i, e := range entries {
		if e.PeerID == peerID {
			return e, entries[:i], nil
		}
	}
	return ManifestEntry{}, nil, fmt.Errorf("config: peer id %d not found in manifest", peerID)
}
