package browse

import (
	"testing"
	"time"

	"duviz/internal/entry"
)

func dirWith(children ...*entry.Entry) *entry.Entry {
	dir := entry.NewDir("d")
	d, _ := dir.Dir()
	var tail *entry.Entry
	for _, c := range children {
		if tail == nil {
			d.FirstChild = c
		} else {
			tail.Next = c
		}
		tail = c
	}
	return dir
}

func names(listing []*entry.Entry) []string {
	var out []string
	for _, e := range listing {
		if e == nil {
			out = append(out, "..")
			continue
		}
		out = append(out, e.Name)
	}
	return out
}

func TestListDefaultSortIsBlocksDesc(t *testing.T) {
	dir := dirWith(
		entry.NewFile("small", 1, 1),
		entry.NewFile("big", 9, 9),
		entry.NewFile("mid", 5, 5),
	)
	b := New()
	got := names(b.List(dir, true))
	want := []string{"big", "mid", "small"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("listing = %v, want %v", got, want)
		}
	}
}

func TestListPlaceholderWhenNotAtRoot(t *testing.T) {
	dir := dirWith(entry.NewFile("a", 1, 1))
	b := New()

	atRoot := b.List(dir, true)
	if len(atRoot) != 1 || atRoot[0] == nil {
		t.Fatalf("root listing has a placeholder: %v", names(atRoot))
	}

	below := b.List(dir, false)
	if len(below) != 2 || below[0] != nil {
		t.Fatalf("non-root listing missing leading placeholder: %v", names(below))
	}
}

func TestListHiddenFiltering(t *testing.T) {
	excluded := entry.NewFile("skipped", 1, 1)
	excluded.SetFlag(entry.FlagExcluded)
	dir := dirWith(
		entry.NewFile(".dotfile", 9, 9),
		entry.NewFile("backup~", 8, 8),
		excluded,
		entry.NewFile("plain", 1, 1),
	)
	b := New()

	got := names(b.List(dir, true))
	if len(got) != 1 || got[0] != "plain" {
		t.Fatalf("hidden entries leaked: %v", got)
	}

	b.ShowHidden = true
	got = names(b.List(dir, true))
	if len(got) != 4 {
		t.Fatalf("ShowHidden listing = %v, want all 4", got)
	}
}

func TestDirsFirst(t *testing.T) {
	sub := entry.NewDir("sub")
	sub.Blocks = 1
	dir := dirWith(entry.NewFile("huge", 100, 100), sub)

	b := New()
	b.DirsFirst = true
	got := names(b.List(dir, true))
	if got[0] != "sub" {
		t.Fatalf("directory not first: %v", got)
	}
}

func TestSortTieBreaksByName(t *testing.T) {
	dir := dirWith(
		entry.NewFile("b", 5, 5),
		entry.NewFile("a", 5, 5),
		entry.NewFile("c", 5, 5),
	)
	b := New()
	got := names(b.List(dir, true))
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie order = %v, want %v", got, want)
		}
	}
}

func TestResortIsStableUnderRepetition(t *testing.T) {
	dir := dirWith(
		entry.NewFile("b", 5, 5),
		entry.NewFile("a", 5, 5),
		entry.NewFile("c", 9, 9),
	)
	b := New()
	listing := b.List(dir, false)
	first := names(listing)
	b.Resort(listing)
	b.Resort(listing)
	second := names(listing)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("resort changed order: %v -> %v", first, second)
		}
	}
	if listing[0] != nil {
		t.Fatalf("placeholder not pinned first after resort")
	}
}

func TestMtimeSortMissingExtLast(t *testing.T) {
	old := entry.NewFile("old", 1, 1)
	old.Ext = &entry.Ext{ModTime: time.Unix(100, 0)}
	recent := entry.NewFile("recent", 1, 1)
	recent.Ext = &entry.Ext{ModTime: time.Unix(900, 0)}
	bare := entry.NewFile("bare", 1, 1)

	dir := dirWith(bare, old, recent)
	b := New()
	b.Col = ColMtime
	b.Ord = Desc

	got := names(b.List(dir, true))
	if got[len(got)-1] != "bare" {
		t.Fatalf("entry without Ext not sorted last: %v", got)
	}
	if got[0] != "recent" {
		t.Fatalf("mtime desc order wrong: %v", got)
	}

	b.Ord = Asc
	got = names(b.List(dir, true))
	if got[len(got)-1] != "bare" {
		t.Fatalf("entry without Ext must sort last regardless of order: %v", got)
	}
}

func TestSaveRestoreView(t *testing.T) {
	dir := dirWith(
		entry.NewFile("a", 9, 9),
		entry.NewFile("b", 5, 5),
		entry.NewFile("c", 1, 1),
	)
	b := New()
	listing := b.List(dir, true)

	b.SaveView(dir, 4, listing[1])
	cursor, scroll := b.RestoreView(dir, listing)
	if cursor != 1 || scroll != 4 {
		t.Fatalf("restore = (%d, %d), want (1, 4)", cursor, scroll)
	}
}

// The saved selection is re-matched by name, so it survives the child
// list being rebuilt with new nodes.
func TestRestoreViewAfterRebuild(t *testing.T) {
	dir := dirWith(entry.NewFile("a", 9, 9), entry.NewFile("b", 5, 5))
	b := New()
	listing := b.List(dir, true)
	b.SaveView(dir, 0, listing[1])

	d, _ := dir.Dir()
	na := entry.NewFile("a", 9, 9)
	nb := entry.NewFile("b", 5, 5)
	d.FirstChild = na
	na.Next = nb

	rebuilt := b.List(dir, true)
	cursor, _ := b.RestoreView(dir, rebuilt)
	if rebuilt[cursor].Name != "b" {
		t.Fatalf("selection not re-matched by name, cursor on %q", rebuilt[cursor].Name)
	}
}

func TestRestoreViewDefaults(t *testing.T) {
	dir := dirWith(entry.NewFile("a", 1, 1))
	b := New()

	listing := b.List(dir, false)
	cursor, scroll := b.RestoreView(dir, listing)
	if cursor != 1 || scroll != 0 {
		t.Fatalf("default = (%d, %d), want first real entry after placeholder", cursor, scroll)
	}

	// A vanished selection falls back to the default.
	b.SaveView(dir, 3, entry.NewFile("gone", 1, 1))
	cursor, scroll = b.RestoreView(dir, listing)
	if cursor != 1 || scroll != 0 {
		t.Fatalf("vanished selection = (%d, %d), want default", cursor, scroll)
	}
}

func TestForget(t *testing.T) {
	dir := dirWith(entry.NewFile("a", 1, 1))
	b := New()
	listing := b.List(dir, true)
	b.SaveView(dir, 2, listing[0])
	b.Forget(dir)

	cursor, scroll := b.RestoreView(dir, listing)
	if cursor != 0 || scroll != 0 {
		t.Fatalf("view survived Forget: (%d, %d)", cursor, scroll)
	}
}
