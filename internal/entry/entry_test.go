package entry

import (
	"os"
	"testing"
)

func TestPayloadsMatchKind(t *testing.T) {
	f := NewFile("a", 10, 8)
	if _, ok := f.Dir(); ok {
		t.Fatalf("file has directory payload")
	}
	if _, ok := f.Link(); ok {
		t.Fatalf("file has link payload")
	}

	d := NewDir("d")
	if _, ok := d.Dir(); !ok {
		t.Fatalf("directory missing directory payload")
	}
	if !d.IsDir() {
		t.Fatalf("IsDir false for directory")
	}

	h := NewHardlink("h", 10, 8, 1, 42, 3)
	l, ok := h.Link()
	if !ok {
		t.Fatalf("hardlink missing link payload")
	}
	if l.Dev != 1 || l.Ino != 42 || l.Nlink != 3 {
		t.Fatalf("unexpected link payload: %+v", l)
	}
	if h.IsDir() {
		t.Fatalf("IsDir true for hardlink")
	}
}

func TestDirStartsUnscanned(t *testing.T) {
	d, _ := NewDir("d").Dir()
	if d.Scanned {
		t.Fatalf("new directory reports scanned")
	}
	if d.FirstChild != nil {
		t.Fatalf("new directory has children")
	}
}

func TestFlags(t *testing.T) {
	e := NewFile("a", 0, 0)
	if e.HasFlag(FlagReadError) {
		t.Fatalf("flag set on new entry")
	}
	e.SetFlag(FlagReadError)
	e.SetFlag(FlagExcluded)
	if !e.HasFlag(FlagReadError) || !e.HasFlag(FlagExcluded) {
		t.Fatalf("flags not set")
	}
	if !e.HasFlag(FlagReadError | FlagExcluded) {
		t.Fatalf("combined flag check failed")
	}
	if e.HasFlag(FlagCrossFS) {
		t.Fatalf("unset flag reported set")
	}
}

func TestChildrenAndFindChild(t *testing.T) {
	parent := NewDir("p")
	d, _ := parent.Dir()

	a := NewFile("a", 1, 1)
	b := NewDir("b")
	c := NewFile("c", 2, 2)
	d.FirstChild = a
	a.Next = b
	b.Next = c

	kids := parent.Children()
	if len(kids) != 3 {
		t.Fatalf("expected 3 children, got %d", len(kids))
	}
	if kids[0] != a || kids[1] != b || kids[2] != c {
		t.Fatalf("children out of order")
	}

	if got := parent.FindChild("b"); got != b {
		t.Fatalf("FindChild(b) = %v", got)
	}
	if got := parent.FindChild("missing"); got != nil {
		t.Fatalf("FindChild(missing) = %v", got)
	}
	if got := a.FindChild("b"); got != nil {
		t.Fatalf("FindChild on non-directory = %v", got)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindFile:     "file",
		KindDir:      "directory",
		KindSymlink:  "symlink",
		KindHardlink: "hardlink",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestKindFromMode(t *testing.T) {
	if KindFromMode(os.ModeDir) != KindDir {
		t.Fatalf("dir mode not classified as directory")
	}
	if KindFromMode(os.ModeSymlink) != KindSymlink {
		t.Fatalf("symlink mode not classified as symlink")
	}
	if KindFromMode(0) != KindFile {
		t.Fatalf("regular mode not classified as file")
	}
}
