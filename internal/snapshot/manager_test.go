package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManagerSaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	orig := sampleTree()
	meta := Meta{RootPath: "/scan/root", ScanTime: time.Unix(1700000000, 0)}

	mgr := NewManager(dir, 0)
	path, err := mgr.Save(orig, meta)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("published snapshot missing: %v", err)
	}

	root, gotMeta, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if root.Name != orig.Name || root.Size != orig.Size {
		t.Fatalf("loaded tree differs: %q/%d", root.Name, root.Size)
	}
	if gotMeta.RootPath != meta.RootPath {
		t.Fatalf("meta root = %q, want %q", gotMeta.RootPath, meta.RootPath)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".db" && e.Name()[0] == '.' {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestManagerLatestSymlink(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir, 0)

	first, err := mgr.Save(sampleTree(), Meta{RootPath: "/r", ScanTime: time.Unix(1000000000, 0)})
	if err != nil {
		t.Fatalf("save first: %v", err)
	}
	second, err := mgr.Save(sampleTree(), Meta{RootPath: "/r", ScanTime: time.Unix(1100000000, 0)})
	if err != nil {
		t.Fatalf("save second: %v", err)
	}

	latest, err := mgr.GetLatest()
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if filepath.Base(latest) != filepath.Base(second) {
		t.Fatalf("latest = %s, want %s (not %s)", latest, second, first)
	}
}

func TestManagerRetention(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir, 2)

	for i := 0; i < 4; i++ {
		scanTime := time.Unix(int64(1000000000+i*1000), 0)
		if _, err := mgr.Save(sampleTree(), Meta{RootPath: "/r", ScanTime: scanTime}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	snaps, err := mgr.ListSnapshots()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("retention kept %d snapshots, want 2", len(snaps))
	}
}
