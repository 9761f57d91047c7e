package vector

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/tutor/internal/errs"
	"github.com/hyperjump/tutor/internal/models"
)

const snapshotVersion = 1

// snapshot is the gob-encoded on-disk form of a FlatIndex.
type snapshot struct {
	Version    int
	ModelID    string
	Dimensions int
	Chunks     []models.Chunk
	Vectors    [][]float32
}

// Save writes the index to path atomically: the snapshot is written to a temporary file in
// the same directory, synced, and renamed over path. Readers see the old or the new
// snapshot, never a partial one. On failure the previous snapshot is left untouched.
func (m *FlatIndex) Save(path string) error {
	m.mu.RLock()
	snap := snapshot{
		Version:    snapshotVersion,
		ModelID:    m.modelID,
		Dimensions: m.dimensions,
		Chunks:     make([]models.Chunk, len(m.entries)),
		Vectors:    make([][]float32, len(m.entries)),
	}
	for i, ec := range m.entries {
		snap.Chunks[i] = ec.Chunk
		snap.Vectors[i] = ec.Vector
	}
	m.mu.RUnlock()

	if err := writeAtomic(path, func(w *bufio.Writer) error {
		return gob.NewEncoder(w).Encode(&snap)
	}); err != nil {
		return errs.E(errs.Persist, "vector.save", err)
	}
	return nil
}

func writeAtomic(path string, write func(*bufio.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save. A missing file yields an error matching
// fs.ErrNotExist; any other failure is an IndexLoad error.
func Load(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.E(errs.IndexLoad, "vector.load", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&snap); err != nil {
		return nil, errs.E(errs.IndexLoad, "vector.load", fmt.Errorf("decode %s: %w", path, err))
	}
	if err := snap.validate(); err != nil {
		return nil, errs.E(errs.IndexLoad, "vector.load", fmt.Errorf("%s: %w", path, err))
	}
	idx := &FlatIndex{
		modelID:    snap.ModelID,
		dimensions: snap.Dimensions,
		entries:    make([]models.EmbeddedChunk, len(snap.Chunks)),
	}
	for i := range snap.Chunks {
		idx.entries[i] = models.EmbeddedChunk{Chunk: snap.Chunks[i], Vector: snap.Vectors[i]}
	}
	return idx, nil
}

func (s *snapshot) validate() error {
	if s.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if s.Dimensions <= 0 {
		return fmt.Errorf("invalid dimensions %d", s.Dimensions)
	}
	if len(s.Chunks) != len(s.Vectors) {
		return fmt.Errorf("%d chunks but %d vectors", len(s.Chunks), len(s.Vectors))
	}
	for i, v := range s.Vectors {
		if len(v) != s.Dimensions {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), s.Dimensions)
		}
	}
	return nil
}
