package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func writeBytes(t *testing.T, path string, n int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, n), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMeasureFootprint(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "index.gob")
	catalog := filepath.Join(dir, "catalog.db")

	fp, err := MeasureFootprint(snapshot, catalog)
	if err != nil {
		t.Fatal(err)
	}
	if fp.Total() != 0 {
		t.Errorf("nothing on disk: got %d bytes, want 0", fp.Total())
	}

	writeBytes(t, snapshot, 100)
	writeBytes(t, catalog, 40)
	writeBytes(t, catalog+"-wal", 7)
	writeBytes(t, catalog+"-shm", 3)

	fp, err = MeasureFootprint(snapshot, catalog)
	if err != nil {
		t.Fatal(err)
	}
	if fp.SnapshotBytes != 100 {
		t.Errorf("SnapshotBytes = %d, want 100", fp.SnapshotBytes)
	}
	if fp.CatalogBytes != 50 {
		t.Errorf("CatalogBytes = %d, want 50 (db plus WAL sidecars)", fp.CatalogBytes)
	}
	if fp.Total() != 150 {
		t.Errorf("Total = %d, want 150", fp.Total())
	}
}

func TestMeasureFootprint_EmptyCatalogPath(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "index.gob")
	writeBytes(t, snapshot, 12)

	fp, err := MeasureFootprint(snapshot, "")
	if err != nil {
		t.Fatal(err)
	}
	if fp.Total() != 12 || fp.CatalogBytes != 0 {
		t.Errorf("got %+v, want snapshot only", fp)
	}
}

func TestSizeOf_Directory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeBytes(t, filepath.Join(dir, "a"), 2)
	writeBytes(t, filepath.Join(sub, "b"), 5)

	got, err := sizeOf(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Errorf("sizeOf(dir) = %d, want 7", got)
	}
}
