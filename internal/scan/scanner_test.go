package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"duviz/internal/entry"
	"duviz/internal/nav"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func scanTree(t *testing.T, root string, opts *Options) *entry.Entry {
	t.Helper()
	tree, err := New(opts).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("scan %s: %v", root, err)
	}
	return tree
}

func TestScanBuildsTree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), 100)
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), 200)
	writeFile(t, filepath.Join(dir, "sub", "c.txt"), 300)

	tree := scanTree(t, dir, nil)

	if tree.Name != filepath.Clean(dir) {
		t.Fatalf("root name = %q, want scan path", tree.Name)
	}
	if tree.Size != 600 {
		t.Fatalf("apparent size = %d, want 600", tree.Size)
	}
	d, _ := tree.Dir()
	if d.TotalItems != 4 {
		t.Fatalf("items = %d, want 4", d.TotalItems)
	}
	if !d.Scanned {
		t.Fatalf("root not marked scanned")
	}

	sub := tree.FindChild("sub")
	if sub == nil || !sub.IsDir() {
		t.Fatalf("sub missing or not a directory")
	}
	if sub.Size != 500 {
		t.Fatalf("sub size = %d, want 500", sub.Size)
	}
	if sub.FindChild("b.txt") == nil || sub.FindChild("c.txt") == nil {
		t.Fatalf("sub children missing")
	}
}

func TestScanMissingRootFails(t *testing.T) {
	_, err := New(nil).Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatalf("expected error for missing root")
	}
}

func TestScanFileRootFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	writeFile(t, path, 1)
	_, err := New(nil).Scan(context.Background(), path)
	if err == nil {
		t.Fatalf("expected error for non-directory root")
	}
}

func TestScanCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tree, err := New(nil).Scan(ctx, t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if tree != nil {
		t.Fatalf("aborted scan returned a partial tree")
	}
}

func TestYieldAbortsScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), 1)

	abort := errors.New("stop")
	opts := DefaultOptions()
	opts.Yield = func() error { return abort }

	_, err := New(opts).Scan(context.Background(), dir)
	if !errors.Is(err, abort) {
		t.Fatalf("err = %v, want yield error", err)
	}
}

func TestExcludePatternByName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.txt"), 100)
	writeFile(t, filepath.Join(dir, "skip.log"), 200)

	opts := DefaultOptions()
	opts.AddExcludePattern("*.log")
	tree := scanTree(t, dir, opts)

	skipped := tree.FindChild("skip.log")
	if skipped == nil {
		t.Fatalf("excluded entry missing from tree")
	}
	if !skipped.HasFlag(entry.FlagExcluded) {
		t.Fatalf("excluded entry not flagged")
	}
	if tree.Size != 100 {
		t.Fatalf("excluded entry contributed to size: %d", tree.Size)
	}
	d, _ := tree.Dir()
	if d.TotalItems != 2 {
		t.Fatalf("excluded entry must still count as an item, items = %d", d.TotalItems)
	}
}

func TestExcludePatternByPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sub", "data.txt"), 100)
	writeFile(t, filepath.Join(dir, "other", "data.txt"), 200)

	opts := DefaultOptions()
	opts.AddExcludePattern("sub/*")
	tree := scanTree(t, dir, opts)

	sub := tree.FindChild("sub")
	if sub.FindChild("data.txt") == nil || !sub.FindChild("data.txt").HasFlag(entry.FlagExcluded) {
		t.Fatalf("path pattern did not exclude sub/data.txt")
	}
	other := tree.FindChild("other")
	if other.FindChild("data.txt").HasFlag(entry.FlagExcluded) {
		t.Fatalf("path pattern excluded other/data.txt")
	}
	if tree.Size != 200 {
		t.Fatalf("size = %d, want 200", tree.Size)
	}
}

func TestExcludeCaches(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(dir, "cache")
	writeFile(t, filepath.Join(cache, "blob"), 500)
	tag := "Signature: 8a477f597d28d172789f06886806bc55\n# created by test\n"
	if err := os.WriteFile(filepath.Join(cache, "CACHEDIR.TAG"), []byte(tag), 0644); err != nil {
		t.Fatalf("write tag: %v", err)
	}
	writeFile(t, filepath.Join(dir, "keep"), 100)

	opts := DefaultOptions().WithExcludeCaches(true)
	tree := scanTree(t, dir, opts)

	c := tree.FindChild("cache")
	if c == nil || !c.HasFlag(entry.FlagExcluded) {
		t.Fatalf("tagged cache directory not excluded")
	}
	if cd, _ := c.Dir(); cd.Scanned {
		t.Fatalf("excluded cache directory was descended into")
	}
	if tree.Size != 100 {
		t.Fatalf("cache contents leaked into size: %d", tree.Size)
	}
}

func TestCachedirTagNeedsSignature(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(dir, "cache")
	writeFile(t, filepath.Join(cache, "blob"), 500)
	if err := os.WriteFile(filepath.Join(cache, "CACHEDIR.TAG"), []byte("not a tag"), 0644); err != nil {
		t.Fatalf("write tag: %v", err)
	}

	opts := DefaultOptions().WithExcludeCaches(true)
	tree := scanTree(t, dir, opts)

	c := tree.FindChild("cache")
	if c.HasFlag(entry.FlagExcluded) {
		t.Fatalf("directory excluded without a valid signature")
	}
}

func TestSymlinksNotFollowedByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "target", "big"), 1000)
	if err := os.Symlink(filepath.Join(dir, "target"), filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	tree := scanTree(t, dir, nil)
	link := tree.FindChild("link")
	if link == nil || link.Kind != entry.KindSymlink {
		t.Fatalf("symlink recorded as %v", link)
	}
	if link.IsDir() {
		t.Fatalf("symlink was descended into")
	}
	if tree.Size < 1000 || tree.Size >= 2000 {
		t.Fatalf("target contents counted twice or not at all: size %d", tree.Size)
	}
}

func TestHardlinkDeduplication(t *testing.T) {
	dir := t.TempDir()
	orig := filepath.Join(dir, "orig")
	writeFile(t, orig, 4096)
	if err := os.Link(orig, filepath.Join(dir, "copy")); err != nil {
		t.Skipf("hardlinks unavailable: %v", err)
	}

	tree := scanTree(t, dir, nil)

	a := tree.FindChild("orig")
	b := tree.FindChild("copy")
	if a.Kind != entry.KindHardlink || b.Kind != entry.KindHardlink {
		t.Fatalf("hardlinked files not classified as hardlinks: %v %v", a.Kind, b.Kind)
	}
	dups := 0
	if a.HasFlag(entry.FlagDuplicate) {
		dups++
	}
	if b.HasFlag(entry.FlagDuplicate) {
		dups++
	}
	if dups != 1 {
		t.Fatalf("expected exactly one duplicate occurrence, got %d", dups)
	}
	// Blocks counted once, apparent size for both names.
	if tree.Blocks != a.Blocks {
		t.Fatalf("blocks = %d, want single contribution %d", tree.Blocks, a.Blocks)
	}
	if tree.Size != a.Size+b.Size {
		t.Fatalf("apparent size = %d, want %d", tree.Size, a.Size+b.Size)
	}
	la, _ := a.Link()
	lb, _ := b.Link()
	if la.Dev != lb.Dev || la.Ino != lb.Ino {
		t.Fatalf("link payloads disagree: %+v vs %+v", la, lb)
	}
}

func TestUnreadableDirectoryIsRecorded(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	locked := filepath.Join(dir, "locked")
	writeFile(t, filepath.Join(locked, "hidden"), 100)
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	tree := scanTree(t, dir, nil)

	l := tree.FindChild("locked")
	if l == nil {
		t.Fatalf("unreadable directory missing from tree")
	}
	ld, _ := l.Dir()
	if !ld.HasError || !l.HasFlag(entry.FlagReadError) {
		t.Fatalf("read failure not recorded on the directory")
	}
	td, _ := tree.Dir()
	if !td.HasSubtreeError {
		t.Fatalf("read failure not propagated to ancestors")
	}
}

func TestRefreshMatchesFreshScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.txt"), 100)
	writeFile(t, filepath.Join(dir, "sub", "a.txt"), 200)
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), 300)

	s := New(nil)
	tree, err := s.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if err := os.Remove(filepath.Join(dir, "sub", "b.txt")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	writeFile(t, filepath.Join(dir, "sub", "new.txt"), 50)

	sub := tree.FindChild("sub")
	parents := nav.NewParents(tree)
	parents.Push(sub)
	if err := s.Refresh(context.Background(), parents); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// The refreshed node keeps its identity.
	if tree.FindChild("sub") != sub {
		t.Fatalf("refresh replaced the target node")
	}
	if sub.FindChild("b.txt") != nil {
		t.Fatalf("deleted file survived refresh")
	}
	if sub.FindChild("new.txt") == nil {
		t.Fatalf("new file missing after refresh")
	}

	fresh := scanTree(t, dir, nil)
	fd, _ := fresh.Dir()
	td, _ := tree.Dir()
	if tree.Size != fresh.Size || tree.Blocks != fresh.Blocks || td.TotalItems != fd.TotalItems {
		t.Fatalf("refreshed totals (%d, %d, %d) differ from fresh scan (%d, %d, %d)",
			tree.Size, tree.Blocks, td.TotalItems, fresh.Size, fresh.Blocks, fd.TotalItems)
	}
}

func TestRefreshAtRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), 100)

	s := New(nil)
	tree, err := s.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	writeFile(t, filepath.Join(dir, "b.txt"), 200)
	parents := nav.NewParents(tree)
	if err := s.Refresh(context.Background(), parents); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if tree.Size != 300 {
		t.Fatalf("root size after refresh = %d, want 300", tree.Size)
	}
	if tree.FindChild("b.txt") == nil {
		t.Fatalf("new file missing after root refresh")
	}
}

func TestRefreshAbortLeavesTreeIntact(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sub", "a.txt"), 100)

	s := New(nil)
	tree, err := s.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	sizeBefore := tree.Size

	writeFile(t, filepath.Join(dir, "sub", "extra.txt"), 900)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	parents := nav.NewParents(tree)
	parents.Push(tree.FindChild("sub"))
	if err := s.Refresh(ctx, parents); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	if tree.Size != sizeBefore {
		t.Fatalf("aborted refresh changed totals: %d -> %d", sizeBefore, tree.Size)
	}
	if tree.FindChild("sub").FindChild("extra.txt") != nil {
		t.Fatalf("aborted refresh attached partial results")
	}
}
