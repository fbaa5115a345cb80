// Package export converts a scanned tree to and from a portable JSON
// document. The schema carries everything needed to rebuild an
// identical tree without touching the filesystem: per-node metadata,
// flags, child ordering, and the (device, inode) identity of hardlinked
// files so deduplication survives the round trip.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"duviz/internal/aggregate"
	"duviz/internal/entry"
)

// Node is one entry of the exported document. Directories carry their
// children in listing order; aggregate size/blocks are included for
// direct consumption but recomputed on import.
type Node struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Size   int64  `json:"size"`
	Blocks int64  `json:"blocks"`

	ReadError  bool `json:"read_error,omitempty"`
	Excluded   bool `json:"excluded,omitempty"`
	CrossFS    bool `json:"cross_fs,omitempty"`
	NotRegular bool `json:"not_regular,omitempty"`
	// Duplicate marks a hardlink occurrence whose blocks are counted
	// under the primary occurrence. Exported explicitly because replay
	// order at import time need not match discovery order at scan time.
	Duplicate bool `json:"duplicate,omitempty"`

	// Hardlink identity.
	Dev   uint64 `json:"dev,omitempty"`
	Ino   uint64 `json:"ino,omitempty"`
	Nlink uint32 `json:"nlink,omitempty"`

	Ext *ExtNode `json:"ext,omitempty"`

	// Scanned distinguishes a verified-empty directory from one that
	// was never walked (excluded, cross-filesystem, or failed).
	Scanned  bool    `json:"scanned,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// ExtNode is the optional extended metadata block.
type ExtNode struct {
	Mtime int64  `json:"mtime"`
	UID   uint32 `json:"uid"`
	GID   uint32 `json:"gid"`
	Mode  uint32 `json:"mode"`
}

// ErrMalformed is wrapped by all import validation failures.
var ErrMalformed = errors.New("malformed export document")

// Export converts a tree into its document form.
func Export(root *entry.Entry) *Node {
	n := &Node{
		Name:       root.Name,
		Kind:       root.Kind.String(),
		Size:       root.Size,
		Blocks:     root.Blocks,
		ReadError:  root.HasFlag(entry.FlagReadError),
		Excluded:   root.HasFlag(entry.FlagExcluded),
		CrossFS:    root.HasFlag(entry.FlagCrossFS),
		NotRegular: root.HasFlag(entry.FlagNotRegular),
		Duplicate:  root.HasFlag(entry.FlagDuplicate),
	}
	if l, ok := root.Link(); ok {
		n.Dev = l.Dev
		n.Ino = l.Ino
		n.Nlink = l.Nlink
	}
	if root.Ext != nil {
		n.Ext = &ExtNode{
			Mtime: root.Ext.ModTime.Unix(),
			UID:   root.Ext.UID,
			GID:   root.Ext.GID,
			Mode:  uint32(root.Ext.Mode),
		}
	}
	if d, ok := root.Dir(); ok {
		n.Scanned = d.Scanned
		for c := d.FirstChild; c != nil; c = c.Next {
			n.Children = append(n.Children, Export(c))
		}
	}
	return n
}

// Import rebuilds a tree from its document form. Aggregates are
// recomputed bottom-up, so an imported tree reports the same totals as
// the tree it was exported from. A malformed document returns an error
// and the partial tree is discarded, never exposed.
func Import(n *Node) (*entry.Entry, error) {
	root, err := importNode(n, true)
	if err != nil {
		return nil, err
	}
	if !root.IsDir() {
		return nil, fmt.Errorf("%w: root must be a directory, got %q", ErrMalformed, n.Kind)
	}
	return root, nil
}

func importNode(n *Node, isRoot bool) (*entry.Entry, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: null node", ErrMalformed)
	}
	if n.Name == "" {
		return nil, fmt.Errorf("%w: node without name", ErrMalformed)
	}

	var e *entry.Entry
	switch n.Kind {
	case "directory":
		e = entry.NewDir(n.Name)
	case "file":
		e = entry.NewFile(n.Name, n.Size, n.Blocks)
	case "symlink":
		e = entry.NewSymlink(n.Name, n.Size, n.Blocks)
	case "hardlink":
		if n.Dev == 0 && n.Ino == 0 {
			return nil, fmt.Errorf("%w: hardlink %q without device/inode", ErrMalformed, n.Name)
		}
		e = entry.NewHardlink(n.Name, n.Size, n.Blocks, n.Dev, n.Ino, n.Nlink)
	case "":
		return nil, fmt.Errorf("%w: node %q without kind", ErrMalformed, n.Name)
	default:
		return nil, fmt.Errorf("%w: node %q has unknown kind %q", ErrMalformed, n.Name, n.Kind)
	}

	if n.ReadError {
		e.SetFlag(entry.FlagReadError)
	}
	if n.Excluded {
		e.SetFlag(entry.FlagExcluded)
	}
	if n.CrossFS {
		e.SetFlag(entry.FlagCrossFS)
	}
	if n.NotRegular {
		e.SetFlag(entry.FlagNotRegular)
	}
	if n.Duplicate {
		e.SetFlag(entry.FlagDuplicate)
	}
	if n.Ext != nil {
		e.Ext = &entry.Ext{
			ModTime: time.Unix(n.Ext.Mtime, 0),
			UID:     n.Ext.UID,
			GID:     n.Ext.GID,
			Mode:    os.FileMode(n.Ext.Mode),
		}
	}

	d, isDir := e.Dir()
	if !isDir {
		if len(n.Children) > 0 {
			return nil, fmt.Errorf("%w: %s %q has children", ErrMalformed, n.Kind, n.Name)
		}
		return e, nil
	}

	d.HasError = n.ReadError
	seen := make(map[string]struct{}, len(n.Children))
	var tail *entry.Entry
	for _, cn := range n.Children {
		c, err := importNode(cn, false)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate sibling name %q under %q", ErrMalformed, c.Name, n.Name)
		}
		seen[c.Name] = struct{}{}
		if tail == nil {
			d.FirstChild = c
		} else {
			tail.Next = c
		}
		tail = c
	}

	if n.Scanned || len(n.Children) > 0 {
		aggregate.Complete(e)
	}
	return e, nil
}

// Encode writes the document for root to w.
func Encode(w io.Writer, root *entry.Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	if err := enc.Encode(Export(root)); err != nil {
		return fmt.Errorf("encode export document: %w", err)
	}
	return nil
}

// Decode reads a document from r and rebuilds the tree.
func Decode(r io.Reader) (*entry.Entry, error) {
	var n Node
	dec := json.NewDecoder(r)
	if err := dec.Decode(&n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Import(&n)
}
