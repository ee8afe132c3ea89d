// Package config loads the swarm's two plain-text input files: the
// common parameter file and the peer manifest. The common file holds
// one key=value per line, no whitespace around the '='; the manifest
// holds one space-separated "peer_id host port has_file" line per peer.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Common holds the swarm-wide parameters read from the common
// configuration file.
type Common struct {
	NumberOfPreferredNeighbors int
	UnchokingInterval          int // seconds
	OptimisticUnchokingInterval int // seconds
	FileName                   string
	FileSize                   int
	PieceSize                  int
}

// LoadCommon reads and parses the common configuration file at path.
// A missing or non-integer field is a fatal, wrapped error.
func LoadCommon(path string) (Common, error) {
	raw, err := parseKeyValue(path)
	if err != nil {
		return Common{}, err
	}

	var c Common
	var parseErr error
	getInt := func(key string) int {
		v, err := lookupInt(raw, key)
		if err != nil && parseErr == nil {
			parseErr = err
		}
		return v
	}
	getStr := func(key string) string {
		v, err := lookupStr(raw, key)
		if err != nil && parseErr == nil {
			parseErr = err
		}
		return v
	}

	c.NumberOfPreferredNeighbors = getInt("NumberOfPreferredNeighbors")
	c.UnchokingInterval = getInt("UnchokingInterval")
	c.OptimisticUnchokingInterval = getInt("OptimisticUnchokingInterval")
	c.FileName = getStr("FileName")
	c.FileSize = getInt("FileSize")
	c.PieceSize = getInt("PieceSize")

	if parseErr != nil {
		return Common{}, fmt.Errorf("config: %s: %w", path, parseErr)
	}
	return c, nil
}

func parseKeyValue(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		parts := strings.SplitN(text, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("config: %s:%d: malformed line %q", path, line, scanner.Text())
		}
		values[parts[0]] = parts[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return values, nil
}

func lookupInt(values map[string]string, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing required key %q", key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("key %q: %w", key, err)
	}
	return n, nil
}

func lookupStr(values map[string]string, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing required key %q", key)
	}
	return raw, nil
}

// NumPieces returns ceil(FileSize / PieceSize), the number of pieces the
// file is split into.
func (c Common) NumPieces() int {
	if c.PieceSize == 0 {
		return 0
	}
	return (c.FileSize + c.PieceSize - 1) / c.PieceSize
}
