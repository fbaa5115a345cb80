package inode

import "duviz/internal/entry"

// Occurrence classifies one sighting of a (device, inode) pair.
type Occurrence uint8

const (
	// Primary is the first sighting in the current pass; its blocks are
	// the ones counted into directory aggregates.
	Primary Occurrence = iota
	// Duplicate is any later sighting; it contributes apparent size and
	// item count but zero blocks.
	Duplicate
)

// Key identifies an inode across the scanned tree.
type Key struct {
	Dev uint64
	Ino uint64
}

type record struct {
	blocks  int64
	nlink   uint32
	entries []*entry.Entry
}

// Registry tracks hardlinked inodes for the duration of one scan pass
// (or one refreshed subtree). It is exclusively owned by the
// in-progress scan and discarded once that pass's aggregation is
// finalized, keeping memory proportional to the live duplicate set
// rather than to the whole tree.
//
// Only links visible within the current scan scope are deduplicated;
// nlink counting links outside the scanned subtree is a known, accepted
// approximation.
type Registry struct {
	m map[Key]*record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[Key]*record)}
}

// Observe records one sighting of (dev, ino). The first call for a key
// returns Primary and records its blocks; every later call returns
// Duplicate and does not re-add blocks to any total. The entry is kept
// so callers can enumerate occurrences discovered during the pass.
func (r *Registry) Observe(dev, ino uint64, blocks int64, nlink uint32, e *entry.Entry) Occurrence {
	k := Key{Dev: dev, Ino: ino}
	if rec, ok := r.m[k]; ok {
		rec.entries = append(rec.entries, e)
		return Duplicate
	}
	r.m[k] = &record{blocks: blocks, nlink: nlink, entries: []*entry.Entry{e}}
	return Primary
}

// Blocks returns the recorded block count for a key, from the first
// occurrence seen.
func (r *Registry) Blocks(dev, ino uint64) int64 {
	if rec, ok := r.m[Key{Dev: dev, Ino: ino}]; ok {
		return rec.blocks
	}
	return 0
}

// Len returns the number of distinct inodes observed.
func (r *Registry) Len() int {
	return len(r.m)
}
