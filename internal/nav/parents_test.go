package nav

import (
	"path/filepath"
	"testing"

	"duviz/internal/entry"
)

func buildTree() (root, a, b *entry.Entry) {
	root = entry.NewDir("/scan/root")
	a = entry.NewDir("a")
	b = entry.NewDir("b")
	rd, _ := root.Dir()
	rd.FirstChild = a
	ad, _ := a.Dir()
	ad.FirstChild = b
	return root, a, b
}

func TestPushPop(t *testing.T) {
	root, a, b := buildTree()
	p := NewParents(root)

	if !p.AtRoot() || p.Top() != root || p.Depth() != 1 {
		t.Fatalf("cursor not at root after creation")
	}

	p.Push(a)
	p.Push(b)
	if p.Top() != b || p.Depth() != 3 || p.AtRoot() {
		t.Fatalf("cursor not at b after pushes")
	}
	if p.Root() != root {
		t.Fatalf("Root changed after pushes")
	}

	p.Pop()
	if p.Top() != a {
		t.Fatalf("Pop did not return to parent")
	}
	p.Pop()
	if !p.AtRoot() {
		t.Fatalf("cursor not at root after popping all")
	}

	// Pop at root is a no-op.
	p.Pop()
	if !p.AtRoot() || p.Top() != root {
		t.Fatalf("Pop at root moved the cursor")
	}
}

func TestPath(t *testing.T) {
	root, a, b := buildTree()
	p := NewParents(root)
	p.Push(a)
	p.Push(b)

	want := filepath.Join("/scan/root", "a", "b")
	if got := p.Path(); got != want {
		t.Fatalf("Path = %q, want %q", got, want)
	}
}

func TestAncestorsIsACopy(t *testing.T) {
	root, a, _ := buildTree()
	p := NewParents(root)
	p.Push(a)

	anc := p.Ancestors()
	if len(anc) != 2 || anc[0] != root || anc[1] != a {
		t.Fatalf("unexpected ancestors: %v", anc)
	}
	anc[1] = nil
	if p.Top() != a {
		t.Fatalf("mutating the returned slice moved the cursor")
	}
}

func TestPushNonChildPanics(t *testing.T) {
	root, _, b := buildTree()
	p := NewParents(root)

	defer func() {
		if recover() == nil {
			t.Fatalf("push of a non-child did not panic")
		}
	}()
	p.Push(b) // b is a grandchild, not a child
}

func TestPushNonDirectoryPanics(t *testing.T) {
	root, _, _ := buildTree()
	f := entry.NewFile("f", 1, 1)
	rd, _ := root.Dir()
	rd.FirstChild.Next = f
	p := NewParents(root)

	defer func() {
		if recover() == nil {
			t.Fatalf("push of a non-directory did not panic")
		}
	}()
	p.Push(f)
}
