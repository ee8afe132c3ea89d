package config

import "testing"

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "PeerInfo.cfg", ""+
		"1001 localhost 6001 1\n"+
		"1002 localhost 6002 0\n"+
		"1003 localhost 6003 0\n")

	entries, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].PeerID != 1001 || !entries[0].HasFile {
		t.Fatalf("entries[0] = %+v, want seed peer 1001", entries[0])
	}
	if entries[1].Port != 6002 || entries[1].HasFile {
		t.Fatalf("entries[1] = %+v, want leech peer on port 6002", entries[1])
	}
}

func TestManifestSelfAndPrecedingNeighbors(t *testing.T) {
	entries := []ManifestEntry{
		{PeerID: 1001, Host: "h1", Port: 6001, HasFile: true},
		{PeerID: 1002, Host: "h2", Port: 6002, HasFile: false},
		{PeerID: 1003, Host: "h3", Port: 6003, HasFile: false},
	}

	self, preceding, err := Self(entries, 1003)
	if err != nil {
		t.Fatalf("Self: %v", err)
	}
	if self.PeerID != 1003 {
		t.Fatalf("self.PeerID = %d, want 1003", self.PeerID)
	}
	if len(preceding) != 2 {
		t.Fatalf("len(preceding) = %d, want 2", len(preceding))
	}

	if _, _, err := Self(entries, 9999); err == nil {
		t.Fatalf("expected error for unknown peer id")
	}
}

func TestLoadManifestMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "PeerInfo.cfg", "1001 localhost 6001\n")

	if _, err := LoadManifest(path); err == nil {
		t.Fatalf("expected error for missing field")
	}
}
