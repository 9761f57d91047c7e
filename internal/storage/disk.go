package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// walSuffixes are the sidecar files SQLite keeps next to a catalog in WAL mode.
var walSuffixes = []string{"-wal", "-shm"}

// Footprint is how much disk the persisted index takes.
type Footprint struct {
	SnapshotBytes int64 `json:"snapshot_bytes"`
	CatalogBytes  int64 `json:"catalog_bytes"`
}

// Total is the snapshot and catalog sizes combined.
func (f Footprint) Total() int64 {
	return f.SnapshotBytes + f.CatalogBytes
}

// MeasureFootprint sizes the snapshot file and the catalog database including its WAL
// sidecars. Paths that do not exist count as zero.
func MeasureFootprint(snapshotPath, catalogPath string) (Footprint, error) {
	var fp Footprint
	var err error
	if fp.SnapshotBytes, err = sizeOf(snapshotPath); err != nil {
		return Footprint{}, err
	}
	if catalogPath == "" {
		return fp, nil
	}
	for _, p := range append([]string{catalogPath}, sidecars(catalogPath)...) {
		n, err := sizeOf(p)
		if err != nil {
			return Footprint{}, err
		}
		fp.CatalogBytes += n
	}
	return fp, nil
}

func sidecars(catalogPath string) []string {
	out := make([]string, 0, len(walSuffixes))
	for _, s := range walSuffixes {
		out = append(out, catalogPath+s)
	}
	return out
}

// sizeOf returns the size of a file, or the summed size of the regular files under a directory.
func sizeOf(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
