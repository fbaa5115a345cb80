package entry

import (
	"os"
	"time"
)

// Kind represents the type of filesystem entry.
type Kind uint8

const (
	KindFile    Kind = 0
	KindDir     Kind = 1
	KindSymlink Kind = 2
	// KindHardlink marks a regular file whose inode has more than one
	// link. Both the first occurrence seen (which owns the blocks) and
	// later duplicates use this kind; duplicates additionally carry
	// FlagDuplicate.
	KindHardlink Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindHardlink:
		return "hardlink"
	default:
		return "file"
	}
}

// KindFromMode derives the Kind from an os.FileMode. Hardlink detection
// needs stat data, so this never returns KindHardlink.
func KindFromMode(mode os.FileMode) Kind {
	switch {
	case mode.IsDir():
		return KindDir
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	default:
		return KindFile
	}
}

// Flag holds per-entry status bits.
type Flag uint8

const (
	// FlagReadError marks an entry whose stat or listing failed.
	FlagReadError Flag = 1 << iota
	// FlagExcluded marks an entry skipped by an exclusion rule. It stays
	// in the tree but contributes nothing to ancestor aggregates.
	FlagExcluded
	// FlagCrossFS marks a directory on a different filesystem that was
	// not descended into.
	FlagCrossFS
	// FlagNotRegular marks sockets, devices, and fifos.
	FlagNotRegular
	// FlagDuplicate marks a hardlink occurrence whose blocks are already
	// counted under another entry.
	FlagDuplicate
)

// Ext holds extended metadata, collected only on request so that the
// per-entry memory cost is not paid by default.
type Ext struct {
	ModTime time.Time
	UID     uint32
	GID     uint32
	Mode    os.FileMode
}

// Dir is the directory payload of an Entry.
type Dir struct {
	// FirstChild heads the singly linked child list; children chain via
	// their Next pointers and are owned by this directory.
	FirstChild *Entry

	// TotalItems is the recursive count of all descendant entries.
	TotalItems int64

	// HasError is set when this directory's own listing failed.
	HasError bool
	// HasSubtreeError is set when any descendant directory has
	// HasError or HasSubtreeError.
	HasSubtreeError bool

	// Scanned distinguishes "scanned, empty" from "not yet scanned".
	// An unscanned directory contributes zero size but must not be
	// presented as verified empty.
	Scanned bool
}

// Link is the hardlink payload of an Entry: the identity of the
// underlying inode, needed to re-derive occurrence relationships from
// the finished tree and to round-trip deduplication through export.
type Link struct {
	Dev   uint64
	Ino   uint64
	Nlink uint32
}

// Entry is one node of the disk-usage tree. It is a tagged variant:
// the dir payload is non-nil exactly for KindDir, the link payload
// exactly for KindHardlink. Siblings chain through Next; the list is
// rooted at the parent's Dir.FirstChild.
type Entry struct {
	Name   string
	Size   int64 // apparent size; aggregate for directories
	Blocks int64 // allocated bytes (st_blocks * 512); aggregate for directories
	Kind   Kind
	Flags  Flag
	Next   *Entry

	dir  *Dir
	link *Link

	// Ext is nil unless extended metadata collection is enabled.
	Ext *Ext
}

// NewFile creates a regular-file entry.
func NewFile(name string, size, blocks int64) *Entry {
	return &Entry{Name: name, Size: size, Blocks: blocks, Kind: KindFile}
}

// NewDir creates a directory entry in the "not yet scanned" state.
func NewDir(name string) *Entry {
	return &Entry{Name: name, Kind: KindDir, dir: &Dir{}}
}

// NewSymlink creates a symbolic-link entry. When link following is
// disabled, symlinked directories are recorded with this kind and not
// descended into.
func NewSymlink(name string, size, blocks int64) *Entry {
	return &Entry{Name: name, Size: size, Blocks: blocks, Kind: KindSymlink}
}

// NewHardlink creates an entry for a file whose inode link count
// exceeds one.
func NewHardlink(name string, size, blocks int64, dev, ino uint64, nlink uint32) *Entry {
	return &Entry{
		Name:   name,
		Size:   size,
		Blocks: blocks,
		Kind:   KindHardlink,
		link:   &Link{Dev: dev, Ino: ino, Nlink: nlink},
	}
}

// Dir returns the directory payload, or false for non-directories.
func (e *Entry) Dir() (*Dir, bool) {
	if e == nil || e.dir == nil {
		return nil, false
	}
	return e.dir, true
}

// Link returns the hardlink payload, or false for entries that are not
// hardlinked files.
func (e *Entry) Link() (*Link, bool) {
	if e == nil || e.link == nil {
		return nil, false
	}
	return e.link, true
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool {
	return e != nil && e.dir != nil
}

// HasFlag reports whether all bits in f are set.
func (e *Entry) HasFlag(f Flag) bool {
	return e.Flags&f == f
}

// SetFlag sets the given bits.
func (e *Entry) SetFlag(f Flag) {
	e.Flags |= f
}

// Children returns a snapshot slice of a directory's child list, in
// list order. Returns nil for non-directories.
func (e *Entry) Children() []*Entry {
	d, ok := e.Dir()
	if !ok {
		return nil
	}
	var out []*Entry
	for c := d.FirstChild; c != nil; c = c.Next {
		out = append(out, c)
	}
	return out
}

// FindChild returns the direct child with the given name, or nil.
// Sibling names are unique within a parent, so at most one matches.
func (e *Entry) FindChild(name string) *Entry {
	d, ok := e.Dir()
	if !ok {
		return nil
	}
	for c := d.FirstChild; c != nil; c = c.Next {
		if c.Name == name {
			return c
		}
	}
	return nil
}
