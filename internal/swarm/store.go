package swarm

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store is the positioned-write file backing a single-file transfer.
// A seed's Store has no open file handle — its pieces are read once at
// construction and held in memory; a leech's Store owns the file it
// writes received pieces into.
type Store struct {
	pieceSize int
	fileSize  int
	numPieces int
	file      *os.File
}

// PieceLen returns the length of piece index: PieceSize for every piece
// except the last, which may be shorter.
func (s *Store) PieceLen(index int) int {
	return pieceLen(index, s.numPieces, s.pieceSize, s.fileSize)
}

func pieceLen(index, numPieces, pieceSize, fileSize int) int {
	if index != numPieces-1 {
		return pieceSize
	}
	last := fileSize - (numPieces-1)*pieceSize
	if last <= 0 {
		return pieceSize
	}
	return last
}

// OpenSeedStore reads fileName fully into numPieces in-memory pieces.
// It returns the Store (for piece-length bookkeeping; it never writes)
// and the loaded piece bytes keyed by index.
func OpenSeedStore(fileName string, pieceSize, fileSize, numPieces int) (*Store, map[int][]byte, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, nil, fmt.Errorf("swarm: opening seed file %s: %w", fileName, err)
	}
	defer f.Close()

	pieces := make(map[int][]byte, numPieces)
	for i := 0; i < numPieces; i++ {
		buf := make([]byte, pieceLen(i, numPieces, pieceSize, fileSize))
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, nil, fmt.Errorf("swarm: reading piece %d of %s: %w", i, fileName, err)
		}
		pieces[i] = buf
	}

	return &Store{pieceSize: pieceSize, fileSize: fileSize, numPieces: numPieces}, pieces, nil
}

// OpenLeechStore creates dir if absent and opens (creating if needed)
// dir/fileName, sized to fileSize, ready to receive positioned writes.
func OpenLeechStore(dir, fileName string, pieceSize, fileSize, numPieces int) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("swarm: creating directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("swarm: opening %s: %w", path, err)
	}
	if err := f.Truncate(int64(fileSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("swarm: sizing %s: %w", path, err)
	}

	return &Store{pieceSize: pieceSize, fileSize: fileSize, numPieces: numPieces, file: f}, nil
}

// WritePiece writes data at the file offset owned by index.
func (s *Store) WritePiece(index int, data []byte) error {
	if s.file == nil {
		return fmt.Errorf("swarm: store has no backing file to write to")
	}
	offset := int64(index) * int64(s.pieceSize)
	if _, err := s.file.WriteAt(data, offset); err != nil {
		return fmt.Errorf("swarm: writing piece %d at offset %d: %w", index, offset, err)
	}
	return nil
}

// Close releases the backing file handle, if any.
func (s *Store) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
