package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	"duviz/internal/aggregate"
	"duviz/internal/entry"
	"duviz/internal/inode"
	"duviz/internal/nav"
)

// Scanner walks the filesystem and populates the in-memory tree. It is
// a single logical actor: it mutates the tree exclusively while
// running, yielding control between directory units so the caller can
// redraw and feed back cancellation.
type Scanner struct {
	opts *Options

	// onPath tracks the (dev, ino) of directories on the active walk
	// stack; consulted only when following symlinks, to break loops.
	onPath map[inode.Key]struct{}

	files atomic.Int64
	dirs  atomic.Int64
	errs  atomic.Int64
	bytes atomic.Int64
}

// Progress is a snapshot of the running scan counters, safe to read
// from another goroutine.
type Progress struct {
	Files  int64
	Dirs   int64
	Errors int64
	Bytes  int64
}

// New creates a scanner with the given options.
func New(opts *Options) *Scanner {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Scanner{opts: opts}
}

// Progress returns the current counters.
func (s *Scanner) Progress() Progress {
	return Progress{
		Files:  s.files.Load(),
		Dirs:   s.dirs.Load(),
		Errors: s.errs.Load(),
		Bytes:  s.bytes.Load(),
	}
}

// Scan walks rootPath and returns a freshly built tree. The root entry
// carries the full path as its name. A root that does not exist or is
// not a directory is a fatal startup failure: no partial tree is
// produced. An aborted scan returns the abort error and no tree.
func (s *Scanner) Scan(ctx context.Context, rootPath string) (*entry.Entry, error) {
	rootPath = filepath.Clean(rootPath)
	info, err := os.Lstat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("stat root %s: %w", rootPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", rootPath)
	}
	st := getStatInfo(info)

	root := entry.NewDir(rootPath)
	if s.opts.Extended {
		root.Ext = &entry.Ext{ModTime: info.ModTime(), UID: st.uid, GID: st.gid, Mode: info.Mode()}
	}

	reg := inode.NewRegistry()
	if err := s.walk(ctx, root, rootPath, st, reg); err != nil {
		return nil, err
	}
	return root, nil
}

// Refresh rebuilds the subtree at the cursor's active directory in
// place and reconciles ancestor aggregates: the old contribution is
// subtracted, the rebuilt one added back, so no full-tree recompute is
// needed. The walk populates a scratch node first; only on success is
// it adopted into the target, so an aborted refresh discards the
// partial rebuild and leaves the tree exactly as it was. The target
// keeps its identity, which is what lets the browser's cursor cache
// survive the reload; the replaced descendants get fresh identities.
//
// Refreshing at the root rebuilds the whole tree the same way.
func (s *Scanner) Refresh(ctx context.Context, parents *nav.Parents) error {
	target := parents.Top()
	path := parents.Path()

	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	st := getStatInfo(info)

	scratch := entry.NewDir(target.Name)
	if s.opts.Extended {
		scratch.Ext = &entry.Ext{ModTime: info.ModTime(), UID: st.uid, GID: st.gid, Mode: info.Mode()}
	}

	reg := inode.NewRegistry()
	if err := s.walk(ctx, scratch, path, st, reg); err != nil {
		return err
	}

	anc := parents.Ancestors()
	anc = anc[:len(anc)-1]

	aggregate.Subtract(anc, aggregate.TotalsOf(target))
	adopt(target, scratch)
	aggregate.Add(anc, aggregate.TotalsOf(target))
	aggregate.RecomputeSubtreeError(anc)
	return nil
}

// adopt moves the scratch rebuild into the long-lived target node.
func adopt(target, scratch *entry.Entry) {
	td, _ := target.Dir()
	sd, _ := scratch.Dir()
	td.FirstChild = sd.FirstChild
	td.TotalItems = sd.TotalItems
	td.HasError = sd.HasError
	td.HasSubtreeError = sd.HasSubtreeError
	td.Scanned = sd.Scanned
	target.Size = scratch.Size
	target.Blocks = scratch.Blocks
	target.Ext = scratch.Ext
	target.Flags &^= entry.FlagReadError
	if scratch.HasFlag(entry.FlagReadError) {
		target.SetFlag(entry.FlagReadError)
	}
}

// subdir is a directory child queued for descent, with the stat
// identity the loop guard needs.
type subdir struct {
	e   *entry.Entry
	dev uint64
	ino uint64
}

// frame is one directory on the explicit walk stack. The stack doubles
// as the ancestor path for error propagation; depth is bounded only by
// memory, and the walk can pause between frames.
type frame struct {
	dir     *entry.Entry
	path    string
	subdirs []subdir
	dev     uint64
	ino     uint64
}

func (s *Scanner) walk(ctx context.Context, root *entry.Entry, rootPath string, rootSt statInfo, reg *inode.Registry) error {
	s.onPath = make(map[inode.Key]struct{})

	stack := make([]*frame, 0, 64)
	push := func(dir *entry.Entry, path string, dev, ino uint64) {
		f := &frame{dir: dir, path: path, dev: dev, ino: ino}
		stack = append(stack, f)
		if s.opts.FollowSymlinks {
			s.onPath[inode.Key{Dev: dev, Ino: ino}] = struct{}{}
		}
		s.dirs.Add(1)
		s.listDir(f, rootPath, rootSt.dev, reg, stack)
	}

	checkpoint := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.opts.Yield != nil {
			if err := s.opts.Yield(); err != nil {
				return err
			}
		}
		return nil
	}

	push(root, rootPath, rootSt.dev, rootSt.ino)
	if err := checkpoint(); err != nil {
		return err
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if len(f.subdirs) > 0 {
			next := f.subdirs[0]
			f.subdirs = f.subdirs[1:]
			push(next.e, filepath.Join(f.path, next.e.Name), next.dev, next.ino)
			if err := checkpoint(); err != nil {
				return err
			}
			continue
		}
		aggregate.Complete(f.dir)
		if s.opts.FollowSymlinks {
			delete(s.onPath, inode.Key{Dev: f.dev, Ino: f.ino})
		}
		stack = stack[:len(stack)-1]
	}
	return nil
}

// listDir reads one directory and builds its child list in listing
// order. Per-entry failures are recorded on the offending entry and
// propagated as subtree errors to every ancestor on the stack; they
// never abort the walk.
func (s *Scanner) listDir(f *frame, rootPath string, rootDev uint64, reg *inode.Registry, stack []*frame) {
	d, _ := f.dir.Dir()

	dirEntries, err := os.ReadDir(f.path)
	if err != nil {
		d.HasError = true
		f.dir.SetFlag(entry.FlagReadError)
		s.errs.Add(1)
		s.opts.Logger.Warn("list directory failed", zap.String("path", f.path), zap.Error(err))
		markStackError(stack)
		return
	}

	var tail *entry.Entry
	appendChild := func(c *entry.Entry) {
		if tail == nil {
			d.FirstChild = c
		} else {
			tail.Next = c
		}
		tail = c
	}

	relDir, relErr := filepath.Rel(rootPath, f.path)

	for _, de := range dirEntries {
		name := de.Name()
		childPath := filepath.Join(f.path, name)

		// Pattern exclusion comes first; it needs no stat call.
		relPath := name
		if relErr == nil && relDir != "." {
			relPath = filepath.Join(relDir, name)
		}
		if s.opts.shouldExclude(relPath, name) {
			appendChild(s.newExcluded(de))
			continue
		}

		info, err := os.Lstat(childPath)
		if err != nil {
			appendChild(s.newFailed(de))
			s.errs.Add(1)
			s.opts.Logger.Warn("stat failed", zap.String("path", childPath), zap.Error(err))
			markStackError(stack)
			continue
		}
		followedLink := false
		if s.opts.FollowSymlinks && info.Mode()&os.ModeSymlink != 0 {
			if followed, ferr := os.Stat(childPath); ferr == nil {
				info = followed
				followedLink = true
			}
		}

		st := getStatInfo(info)
		var c *entry.Entry

		switch {
		case info.IsDir():
			c = entry.NewDir(name)
			switch {
			case s.opts.ExcludeCaches && hasCachedirTag(childPath):
				c.SetFlag(entry.FlagExcluded)
			case s.opts.ExcludeKernfs && isKernfs(childPath):
				c.SetFlag(entry.FlagExcluded)
			case s.opts.SameFilesystem && st.ok && st.dev != rootDev:
				c.SetFlag(entry.FlagCrossFS)
			case followedLink && s.looped(st):
				// A followed symlink pointing back onto the active path
				// would never terminate; record it as a symlink.
				c = entry.NewSymlink(name, 0, 0)
			default:
				f.subdirs = append(f.subdirs, subdir{e: c, dev: st.dev, ino: st.ino})
			}

		case info.Mode()&os.ModeSymlink != 0:
			c = entry.NewSymlink(name, info.Size(), st.blocks)
			s.files.Add(1)

		case st.notRegular:
			// Sockets, devices, and fifos occupy no accountable space.
			c = entry.NewFile(name, 0, 0)
			c.SetFlag(entry.FlagNotRegular)
			s.files.Add(1)

		case st.ok && st.nlink > 1:
			c = entry.NewHardlink(name, info.Size(), st.blocks, st.dev, st.ino, st.nlink)
			if reg.Observe(st.dev, st.ino, st.blocks, st.nlink, c) == inode.Duplicate {
				c.SetFlag(entry.FlagDuplicate)
			} else {
				s.bytes.Add(st.blocks)
			}
			s.files.Add(1)

		default:
			c = entry.NewFile(name, info.Size(), st.blocks)
			s.bytes.Add(st.blocks)
			s.files.Add(1)
		}

		if s.opts.Extended {
			c.Ext = &entry.Ext{ModTime: info.ModTime(), UID: st.uid, GID: st.gid, Mode: info.Mode()}
		}
		appendChild(c)
	}
}

// newExcluded builds the minimal record for a pattern-excluded entry:
// it stays visible to the browser but contributes nothing.
func (s *Scanner) newExcluded(de os.DirEntry) *entry.Entry {
	var c *entry.Entry
	switch {
	case de.IsDir():
		c = entry.NewDir(de.Name())
	case de.Type()&os.ModeSymlink != 0:
		c = entry.NewSymlink(de.Name(), 0, 0)
	default:
		c = entry.NewFile(de.Name(), 0, 0)
	}
	c.SetFlag(entry.FlagExcluded)
	return c
}

// newFailed builds the record for an entry whose stat call failed.
func (s *Scanner) newFailed(de os.DirEntry) *entry.Entry {
	var c *entry.Entry
	if de.IsDir() {
		c = entry.NewDir(de.Name())
		if d, ok := c.Dir(); ok {
			d.HasError = true
		}
	} else {
		c = entry.NewFile(de.Name(), 0, 0)
	}
	c.SetFlag(entry.FlagReadError)
	return c
}

func (s *Scanner) looped(st statInfo) bool {
	if !st.ok {
		return false
	}
	_, ok := s.onPath[inode.Key{Dev: st.dev, Ino: st.ino}]
	return ok
}

// markStackError flags every directory currently on the walk stack: a
// descendant failure gives each of them a subtree error.
func markStackError(stack []*frame) {
	for _, f := range stack {
		if d, ok := f.dir.Dir(); ok {
			d.HasSubtreeError = true
		}
	}
}
