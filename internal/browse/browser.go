// Package browse derives the presented view of a directory: a
// filtered, sorted child listing plus a per-directory cursor cache so
// the selection survives re-sorts, re-scans, and re-entry.
package browse

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"duviz/internal/entry"
)

// Column selects the sort field.
type Column uint8

const (
	ColName Column = iota
	ColBlocks
	ColSize
	ColItems
	ColMtime
)

func (c Column) String() string {
	switch c {
	case ColName:
		return "name"
	case ColSize:
		return "size"
	case ColItems:
		return "items"
	case ColMtime:
		return "mtime"
	default:
		return "disk"
	}
}

// Order is the sort direction.
type Order uint8

const (
	Desc Order = iota
	Asc
)

// viewState remembers where the cursor was in a directory. The
// selection is stored as a name hash rather than a reference so it can
// be re-matched after the child list is rebuilt by a refresh; a
// collision may select a different entry of the same hash, an accepted
// approximation.
type viewState struct {
	scroll  int
	selHash uint64
}

// Browser produces listings over the tree. It holds presentation
// state only; the tree itself is owned elsewhere and read-only here.
type Browser struct {
	Col        Column
	Ord        Order
	DirsFirst  bool
	ShowHidden bool

	// views is keyed by directory node identity. A node replaced during
	// a refresh gets a new identity, so stale entries can only match
	// directories that still exist; Forget drops them eagerly anyway.
	views map[*entry.Entry]viewState
}

// New creates a browser with the default sort: disk usage, largest
// first.
func New() *Browser {
	return &Browser{
		Col:   ColBlocks,
		Ord:   Desc,
		views: make(map[*entry.Entry]viewState),
	}
}

// hidden reports whether the entry is filtered when hidden entries are
// not shown: dot names, editor backups, and excluded entries.
func hidden(e *entry.Entry) bool {
	return strings.HasPrefix(e.Name, ".") ||
		strings.HasSuffix(e.Name, "~") ||
		e.HasFlag(entry.FlagExcluded)
}

// List builds the presented sequence for dir: a synthetic parent
// placeholder (nil) first unless at the root, then the children,
// filtered and sorted per the browser's settings. The placeholder is
// never filtered and never sorted.
func (b *Browser) List(dir *entry.Entry, atRoot bool) []*entry.Entry {
	var out []*entry.Entry
	if !atRoot {
		out = append(out, nil)
	}
	for _, c := range dir.Children() {
		if !b.ShowHidden && hidden(c) {
			continue
		}
		out = append(out, c)
	}
	b.sortTail(out)
	return out
}

// Resort re-sorts an existing listing in place after a sort-setting
// change, leaving any placeholder pinned first.
func (b *Browser) Resort(listing []*entry.Entry) {
	b.sortTail(listing)
}

func (b *Browser) sortTail(listing []*entry.Entry) {
	start := 0
	if len(listing) > 0 && listing[0] == nil {
		start = 1
	}
	tail := listing[start:]
	sort.SliceStable(tail, func(i, j int) bool {
		return b.less(tail[i], tail[j])
	})
}

func (b *Browser) less(a, c *entry.Entry) bool {
	if b.DirsFirst && a.IsDir() != c.IsDir() {
		return a.IsDir()
	}

	var cmp int
	switch b.Col {
	case ColName:
		cmp = strings.Compare(a.Name, c.Name)
	case ColSize:
		cmp = compareInt64(a.Size, c.Size)
	case ColItems:
		cmp = compareInt64(items(a), items(c))
	case ColMtime:
		// Entries without extended metadata sort after those with it,
		// regardless of the requested order.
		switch {
		case a.Ext == nil && c.Ext == nil:
			cmp = 0
		case a.Ext == nil:
			return false
		case c.Ext == nil:
			return true
		default:
			cmp = a.Ext.ModTime.Compare(c.Ext.ModTime)
		}
	default:
		cmp = compareInt64(a.Blocks, c.Blocks)
	}

	if cmp == 0 {
		// Ties always break by name so ordering is deterministic.
		return a.Name < c.Name
	}
	if b.Ord == Asc {
		return cmp < 0
	}
	return cmp > 0
}

func items(e *entry.Entry) int64 {
	if d, ok := e.Dir(); ok {
		return d.TotalItems
	}
	return 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SaveView records the scroll offset and selected entry for dir before
// navigating away. A nil selection (the parent placeholder) stores a
// zero hash and restores to the default position.
func (b *Browser) SaveView(dir *entry.Entry, scroll int, selected *entry.Entry) {
	st := viewState{scroll: scroll}
	if selected != nil {
		st.selHash = xxhash.Sum64String(selected.Name)
	}
	b.views[dir] = st
}

// RestoreView returns the cursor index and scroll offset for dir in the
// given listing, matching the saved name hash. With no saved state or
// no match it defaults to the first real entry, after the placeholder
// if one is present.
func (b *Browser) RestoreView(dir *entry.Entry, listing []*entry.Entry) (cursor, scroll int) {
	def := 0
	if len(listing) > 0 && listing[0] == nil && len(listing) > 1 {
		def = 1
	}
	st, ok := b.views[dir]
	if !ok || st.selHash == 0 {
		return def, 0
	}
	for i, e := range listing {
		if e != nil && xxhash.Sum64String(e.Name) == st.selHash {
			return i, st.scroll
		}
	}
	return def, 0
}

// Forget drops the cached view for a directory whose node was replaced
// or deleted, so its identity can never be confused with a new node.
func (b *Browser) Forget(dir *entry.Entry) {
	delete(b.views, dir)
}
