package nav

import (
	"fmt"
	"path/filepath"

	"duviz/internal/entry"
)

// Parents is the navigation cursor: an ordered sequence of directory
// references from the root down to the active directory. It is a
// non-owning index into the tree; ownership of all nodes stays with the
// tree rooted at the global root. The scanner reuses the same structure
// as its explicit walk stack.
type Parents struct {
	stack []*entry.Entry
}

// NewParents creates a cursor positioned at root.
func NewParents(root *entry.Entry) *Parents {
	if !root.IsDir() {
		panic("nav: root must be a directory")
	}
	return &Parents{stack: []*entry.Entry{root}}
}

// Push makes child the active directory. Pushing an entry that is not a
// direct child of the current top is a programming error, not a
// user-facing condition, and panics.
func (p *Parents) Push(child *entry.Entry) {
	if !child.IsDir() {
		panic("nav: push of non-directory")
	}
	if p.Top().FindChild(child.Name) != child {
		panic(fmt.Sprintf("nav: %q is not a child of %q", child.Name, p.Top().Name))
	}
	p.stack = append(p.stack, child)
}

// Pop returns to the parent directory. At root it is a no-op.
func (p *Parents) Pop() {
	if len(p.stack) > 1 {
		p.stack = p.stack[:len(p.stack)-1]
	}
}

// Top returns the active directory.
func (p *Parents) Top() *entry.Entry {
	return p.stack[len(p.stack)-1]
}

// Root returns the tree root.
func (p *Parents) Root() *entry.Entry {
	return p.stack[0]
}

// AtRoot reports whether the cursor is at the tree root.
func (p *Parents) AtRoot() bool {
	return len(p.stack) == 1
}

// Depth returns the number of directories on the path, root included.
func (p *Parents) Depth() int {
	return len(p.stack)
}

// Path joins the names from root to top into a displayable path.
func (p *Parents) Path() string {
	out := p.stack[0].Name
	for _, d := range p.stack[1:] {
		out = filepath.Join(out, d.Name)
	}
	return out
}

// Ancestors returns the path as a slice, root first, top last. The
// returned slice is a copy; mutating it does not move the cursor.
func (p *Parents) Ancestors() []*entry.Entry {
	out := make([]*entry.Entry, len(p.stack))
	copy(out, p.stack)
	return out
}
