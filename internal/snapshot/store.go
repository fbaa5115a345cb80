package snapshot

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"duviz/internal/aggregate"
	"duviz/internal/entry"
)

// Meta holds snapshot-level metadata.
type Meta struct {
	RootPath    string
	ScanTime    time.Time
	TotalSize   int64
	TotalBlocks int64
	ItemCount   int64
	ErrorCount  int64
}

// SaveTree writes a scanned tree and its metadata into db in one
// transaction. Rows are written with parent ids and sibling positions,
// so the reader can rebuild the exact child ordering.
func SaveTree(db *sql.DB, root *entry.Entry, meta Meta) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO nodes (id, parent_id, position, name, kind, size, blocks, flags, scanned, dev, ino, nlink, mtime, uid, gid, mode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	type item struct {
		e        *entry.Entry
		parentID int64
		position int
	}
	nextID := int64(1)
	stack := []item{{e: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		id := nextID
		nextID++

		var parentID any
		if it.parentID != 0 {
			parentID = it.parentID
		}
		scanned := 0
		if d, ok := it.e.Dir(); ok && d.Scanned {
			scanned = 1
		}
		var dev, ino uint64
		var nlink uint32
		if l, ok := it.e.Link(); ok {
			dev, ino, nlink = l.Dev, l.Ino, l.Nlink
		}
		var mtime, uid, gid, mode any
		if ext := it.e.Ext; ext != nil {
			mtime = ext.ModTime.Unix()
			uid = int64(ext.UID)
			gid = int64(ext.GID)
			mode = int64(ext.Mode)
		}

		if _, err := stmt.Exec(id, parentID, it.position, it.e.Name, int64(it.e.Kind), it.e.Size, it.e.Blocks,
			int64(it.e.Flags), scanned, int64(dev), int64(ino), int64(nlink), mtime, uid, gid, mode); err != nil {
			return fmt.Errorf("insert node %q: %w", it.e.Name, err)
		}

		if d, ok := it.e.Dir(); ok {
			pos := 0
			for c := d.FirstChild; c != nil; c = c.Next {
				stack = append(stack, item{e: c, parentID: id, position: pos})
				pos++
			}
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO scan_meta (id, root_path, scan_time, total_size, total_blocks, item_count, error_count)
		 VALUES (1, ?, ?, ?, ?, ?, ?)`,
		meta.RootPath, meta.ScanTime.Unix(), meta.TotalSize, meta.TotalBlocks, meta.ItemCount, meta.ErrorCount,
	); err != nil {
		return fmt.Errorf("insert scan_meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadTree rebuilds the in-memory tree from a snapshot database. The
// loaded tree carries the same aggregates a live scan of the same
// filesystem state would have produced.
func LoadTree(db *sql.DB) (*entry.Entry, error) {
	rows, err := db.Query(`
		SELECT id, COALESCE(parent_id, 0), name, kind, size, blocks, flags, scanned, dev, ino, nlink, mtime, uid, gid, mode
		FROM nodes ORDER BY parent_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	type loaded struct {
		e       *entry.Entry
		scanned bool
	}
	nodes := make(map[int64]loaded)
	tails := make(map[int64]*entry.Entry)
	var root *entry.Entry

	for rows.Next() {
		var (
			id, parentID, kind, size, blocks, flags, scanned, dev, ino, nlink int64
			name                                                              string
			mtime, uid, gid, mode                                             sql.NullInt64
		)
		if err := rows.Scan(&id, &parentID, &name, &kind, &size, &blocks, &flags, &scanned,
			&dev, &ino, &nlink, &mtime, &uid, &gid, &mode); err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}

		var e *entry.Entry
		switch entry.Kind(kind) {
		case entry.KindDir:
			e = entry.NewDir(name)
		case entry.KindSymlink:
			e = entry.NewSymlink(name, size, blocks)
		case entry.KindHardlink:
			e = entry.NewHardlink(name, size, blocks, uint64(dev), uint64(ino), uint32(nlink))
		default:
			e = entry.NewFile(name, size, blocks)
		}
		e.Flags = entry.Flag(flags)
		if d, ok := e.Dir(); ok {
			d.HasError = e.HasFlag(entry.FlagReadError)
		}
		if mtime.Valid {
			e.Ext = &entry.Ext{
				ModTime: time.Unix(mtime.Int64, 0),
				UID:     uint32(uid.Int64),
				GID:     uint32(gid.Int64),
				Mode:    os.FileMode(mode.Int64),
			}
		}

		nodes[id] = loaded{e: e, scanned: scanned != 0}

		if parentID == 0 {
			if root != nil {
				return nil, fmt.Errorf("snapshot has multiple roots")
			}
			root = e
			continue
		}
		parent, ok := nodes[parentID]
		if !ok {
			return nil, fmt.Errorf("node %d references missing parent %d", id, parentID)
		}
		pd, ok := parent.e.Dir()
		if !ok {
			return nil, fmt.Errorf("node %d has non-directory parent %d", id, parentID)
		}
		// Rows arrive ordered by (parent, position), so appending at the
		// tail reproduces the original sibling order.
		if tails[parentID] == nil {
			pd.FirstChild = e
		} else {
			tails[parentID].Next = e
		}
		tails[parentID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read nodes: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("snapshot has no root node")
	}
	if !root.IsDir() {
		return nil, fmt.Errorf("snapshot root is not a directory")
	}

	scanned := make(map[*entry.Entry]bool, len(nodes))
	for _, l := range nodes {
		scanned[l.e] = l.scanned
	}
	completeAll(root, scanned)
	return root, nil
}

// completeAll rebuilds aggregates bottom-up over the loaded tree;
// unscanned directories keep their zero totals.
func completeAll(e *entry.Entry, scanned map[*entry.Entry]bool) {
	d, ok := e.Dir()
	if !ok {
		return
	}
	for c := d.FirstChild; c != nil; c = c.Next {
		completeAll(c, scanned)
	}
	if scanned[e] {
		aggregate.Complete(e)
	}
}

// LoadMeta reads snapshot metadata.
func LoadMeta(db *sql.DB) (*Meta, error) {
	var m Meta
	var scanTime int64
	err := db.QueryRow(`
		SELECT root_path, scan_time, total_size, total_blocks, item_count, error_count
		FROM scan_meta WHERE id = 1
	`).Scan(&m.RootPath, &scanTime, &m.TotalSize, &m.TotalBlocks, &m.ItemCount, &m.ErrorCount)
	if err != nil {
		return nil, fmt.Errorf("read scan_meta: %w", err)
	}
	m.ScanTime = time.Unix(scanTime, 0)
	return &m, nil
}
