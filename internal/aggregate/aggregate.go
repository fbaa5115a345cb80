// Package aggregate computes directory rollups over the in-memory tree:
// eager size/blocks/item totals as each directory's walk completes, and
// the lazy shared/unique block split requested at display time.
package aggregate

import "duviz/internal/entry"

// Totals is the aggregate contribution of one subtree.
type Totals struct {
	Size   int64
	Blocks int64
	Items  int64
}

// TotalsOf returns the contribution e makes to its ancestors'
// aggregates. Excluded entries contribute only their item count;
// duplicate hardlink occurrences contribute no blocks.
func TotalsOf(e *entry.Entry) Totals {
	t := Totals{Items: 1}
	if d, ok := e.Dir(); ok {
		t.Items += d.TotalItems
	}
	if e.HasFlag(entry.FlagExcluded) {
		return t
	}
	t.Size = e.Size
	if !e.HasFlag(entry.FlagDuplicate) {
		t.Blocks = e.Blocks
	}
	return t
}

// Complete finalizes a directory once its full child list is known.
// Aggregates of partially scanned directories are not valid; callers
// must treat them as "not yet known" until this has run.
func Complete(e *entry.Entry) {
	d, ok := e.Dir()
	if !ok {
		return
	}
	var size, blocks, items int64
	subErr := false
	for c := d.FirstChild; c != nil; c = c.Next {
		t := TotalsOf(c)
		size += t.Size
		blocks += t.Blocks
		items += t.Items
		if c.HasFlag(entry.FlagReadError) {
			subErr = true
		}
		if cd, ok := c.Dir(); ok && (cd.HasError || cd.HasSubtreeError) {
			subErr = true
		}
	}
	e.Size = size
	e.Blocks = blocks
	d.TotalItems = items
	d.HasSubtreeError = subErr
	d.Scanned = true
}

// Add applies a subtree's totals to every directory on the ancestor
// path. Used when a refreshed subtree is attached.
func Add(ancestors []*entry.Entry, t Totals) {
	apply(ancestors, t, 1)
}

// Subtract removes a subtree's totals from every directory on the
// ancestor path. Used when a subtree is detached before a refresh, so
// ancestor totals stay correct without a full-tree recompute.
func Subtract(ancestors []*entry.Entry, t Totals) {
	apply(ancestors, t, -1)
}

func apply(ancestors []*entry.Entry, t Totals, sign int64) {
	for _, a := range ancestors {
		d, ok := a.Dir()
		if !ok {
			continue
		}
		a.Size += sign * t.Size
		a.Blocks += sign * t.Blocks
		d.TotalItems += sign * t.Items
	}
}

// RecomputeSubtreeError rebuilds HasSubtreeError bottom-up along the
// ancestor path after a refresh, clearing bits that no longer hold.
func RecomputeSubtreeError(ancestors []*entry.Entry) {
	for i := len(ancestors) - 1; i >= 0; i-- {
		d, ok := ancestors[i].Dir()
		if !ok {
			continue
		}
		subErr := false
		for c := d.FirstChild; c != nil; c = c.Next {
			if c.HasFlag(entry.FlagReadError) {
				subErr = true
				break
			}
			if cd, ok := c.Dir(); ok && (cd.HasError || cd.HasSubtreeError) {
				subErr = true
				break
			}
		}
		d.HasSubtreeError = subErr
	}
}

type linkKey struct {
	dev uint64
	ino uint64
}

type linkStat struct {
	blocks        int64
	inside        int
	total         int
	primaryInside bool
}

// SharedBlocks returns the blocks counted into dir's aggregate that are
// also referenced from outside dir's subtree. It is derived from the
// finished tree, not from the scan-time inode registry, whose memory is
// released once a pass completes.
//
// An inode is shared for dir iff its primary occurrence lies inside
// dir's subtree while at least one occurrence lies outside. Inodes
// whose primary occurrence is outside contribute nothing to dir's
// blocks and so to neither split; this keeps
// unique + shared == dir.Blocks for every directory.
func SharedBlocks(root, dir *entry.Entry) int64 {
	if !dir.IsDir() {
		return 0
	}
	links := make(map[linkKey]*linkStat)
	walk(dir, func(e *entry.Entry) {
		l, ok := e.Link()
		if !ok || e.HasFlag(entry.FlagExcluded) {
			return
		}
		k := linkKey{dev: l.Dev, ino: l.Ino}
		s := links[k]
		if s == nil {
			s = &linkStat{}
			links[k] = s
		}
		s.inside++
		if !e.HasFlag(entry.FlagDuplicate) {
			s.primaryInside = true
			s.blocks = e.Blocks
		}
	})
	if len(links) == 0 {
		return 0
	}
	walk(root, func(e *entry.Entry) {
		l, ok := e.Link()
		if !ok || e.HasFlag(entry.FlagExcluded) {
			return
		}
		if s, ok := links[linkKey{dev: l.Dev, ino: l.Ino}]; ok {
			s.total++
		}
	})
	var shared int64
	for _, s := range links {
		if s.primaryInside && s.total > s.inside {
			shared += s.blocks
		}
	}
	return shared
}

// UniqueBlocks returns the disk space reclaimed if dir alone were
// deleted: its block total minus the shared portion.
func UniqueBlocks(root, dir *entry.Entry) int64 {
	return dir.Blocks - SharedBlocks(root, dir)
}

// walk visits every entry in the subtree rooted at e, e included, using
// an explicit stack so depth is bounded by memory rather than the call
// stack.
func walk(e *entry.Entry, visit func(*entry.Entry)) {
	stack := []*entry.Entry{e}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(n)
		if d, ok := n.Dir(); ok {
			for c := d.FirstChild; c != nil; c = c.Next {
				stack = append(stack, c)
			}
		}
	}
}
