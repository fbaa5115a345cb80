package snapshot

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"duviz/internal/entry"

	_ "modernc.org/sqlite"
)

// Manager handles snapshot lifecycle: locking, atomic publication, the
// latest.db symlink, and retention pruning.
type Manager struct {
	outputDir string
	retention int
	lockFile  *os.File
	logger    *zap.Logger
}

// NewManager creates a snapshot manager writing under outputDir,
// keeping at most retention snapshots (0 = unlimited).
func NewManager(outputDir string, retention int) *Manager {
	return &Manager{outputDir: outputDir, retention: retention, logger: zap.NewNop()}
}

// WithLogger sets the diagnostic logger.
func (m *Manager) WithLogger(l *zap.Logger) *Manager {
	if l != nil {
		m.logger = l
	}
	return m
}

// Save writes the tree into a new timestamped snapshot database,
// publishes it with an atomic rename, repoints latest.db, and prunes
// old snapshots. Returns the published path.
func (m *Manager) Save(root *entry.Entry, meta Meta) (string, error) {
	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := m.acquireLock(); err != nil {
		return "", fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer m.releaseLock()

	tempPath := filepath.Join(m.outputDir, fmt.Sprintf(".duviz-temp-%d.db", time.Now().UnixNano()))
	db, err := sql.Open("sqlite", tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create database: %w", err)
	}

	fail := func(err error) (string, error) {
		db.Close()
		os.Remove(tempPath)
		return "", err
	}

	if err := InitSchema(db); err != nil {
		return fail(fmt.Errorf("failed to initialize schema: %w", err))
	}
	if err := ApplyWritePragmas(db); err != nil {
		return fail(fmt.Errorf("failed to apply pragmas: %w", err))
	}
	if err := SaveTree(db, root, meta); err != nil {
		return fail(fmt.Errorf("failed to write tree: %w", err))
	}
	if err := Finalize(db); err != nil {
		return fail(fmt.Errorf("failed to finalize database: %w", err))
	}
	db.Close()

	finalName := fmt.Sprintf("duviz-%s.db", meta.ScanTime.Format("20060102-150405"))
	finalPath := filepath.Join(m.outputDir, finalName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename database: %w", err)
	}

	// Repoint latest.db via temp symlink + rename so readers never see a
	// dangling link.
	latestPath := filepath.Join(m.outputDir, "latest.db")
	tempLink := filepath.Join(m.outputDir, ".latest.db.tmp")
	os.Remove(tempLink)
	if err := os.Symlink(finalName, tempLink); err == nil {
		if err := os.Rename(tempLink, latestPath); err != nil {
			os.Remove(tempLink)
			m.logger.Warn("failed to update latest.db symlink", zap.Error(err))
		}
	} else {
		m.logger.Warn("failed to create latest.db symlink", zap.Error(err))
	}

	if err := m.pruneOldSnapshots(); err != nil {
		m.logger.Warn("failed to prune old snapshots", zap.Error(err))
	}

	return finalPath, nil
}

// Open loads the tree and metadata from a snapshot database.
func Open(path string) (*entry.Entry, *Meta, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer db.Close()

	meta, err := LoadMeta(db)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	root, err := LoadTree(db)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return root, meta, nil
}

func (m *Manager) acquireLock() error {
	lockPath := filepath.Join(m.outputDir, ".duviz.lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("another snapshot write is in progress")
	}
	m.lockFile = f
	return nil
}

func (m *Manager) releaseLock() {
	if m.lockFile != nil {
		syscall.Flock(int(m.lockFile.Fd()), syscall.LOCK_UN)
		m.lockFile.Close()
		m.lockFile = nil
	}
}

func (m *Manager) pruneOldSnapshots() error {
	if m.retention <= 0 {
		return nil
	}
	names, err := m.snapshotNames()
	if err != nil {
		return err
	}
	for len(names) > m.retention {
		oldPath := filepath.Join(m.outputDir, names[0])
		if err := os.Remove(oldPath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", names[0], err)
		}
		names = names[1:]
	}
	return nil
}

// GetLatest returns the path of the latest snapshot.
func (m *Manager) GetLatest() (string, error) {
	latestPath := filepath.Join(m.outputDir, "latest.db")
	resolved, err := filepath.EvalSymlinks(latestPath)
	if err != nil {
		return "", fmt.Errorf("no latest snapshot found: %w", err)
	}
	return resolved, nil
}

// ListSnapshots returns all snapshot paths sorted by date.
func (m *Manager) ListSnapshots() ([]string, error) {
	names, err := m.snapshotNames()
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(m.outputDir, n)
	}
	return paths, nil
}

// snapshotNames lists duviz-*.db files; the timestamped names sort
// chronologically.
func (m *Manager) snapshotNames() ([]string, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "duviz-") && strings.HasSuffix(e.Name(), ".db") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
