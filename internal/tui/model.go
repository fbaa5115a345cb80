package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"duviz/internal/browse"
	"duviz/internal/entry"
	"duviz/internal/nav"
	"duviz/internal/scan"
)

// Model holds the TUI state: the tree, the navigation cursor, and the
// presentation settings. The tree is mutated only while a scan or
// refresh command runs, during which the view renders the progress
// screen and never touches tree nodes.
type Model struct {
	scanner  *scan.Scanner
	rootPath string

	root    *entry.Entry
	parents *nav.Parents
	browser *browse.Browser

	listing []*entry.Entry // presented sequence for the active directory
	visible []*entry.Entry // listing after the name filter
	cursor  int

	scanning   bool
	refreshing bool
	cancelScan context.CancelFunc
	// stale holds descendant directory nodes replaced by an in-flight
	// refresh; their cached views are dropped once it completes.
	stale []*entry.Entry

	filter       string
	filterActive bool

	width  int
	height int
	status string
	err    error
}

// NewModel creates a model that scans rootPath on startup.
func NewModel(scanner *scan.Scanner, rootPath string) *Model {
	return &Model{
		scanner:  scanner,
		rootPath: rootPath,
		browser:  browse.New(),
		scanning: true,
	}
}

// NewModelFromTree creates a model browsing an already built tree, as
// loaded from a snapshot or an import. A nil scanner disables refresh.
func NewModelFromTree(root *entry.Entry, scanner *scan.Scanner) *Model {
	m := &Model{
		scanner: scanner,
		root:    root,
		parents: nav.NewParents(root),
		browser: browse.New(),
	}
	m.reload()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.scanning {
		return tea.Batch(m.startScan(), tick())
	}
	return nil
}

type scanDoneMsg struct {
	root *entry.Entry
	err  error
}

type refreshDoneMsg struct {
	err error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) startScan() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelScan = cancel
	return func() tea.Msg {
		root, err := m.scanner.Scan(ctx, m.rootPath)
		return scanDoneMsg{root: root, err: err}
	}
}

func (m *Model) startRefresh() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelScan = cancel
	parents := m.parents
	return func() tea.Msg {
		return refreshDoneMsg{err: m.scanner.Refresh(ctx, parents)}
	}
}

// reload rebuilds the listing for the active directory and restores the
// remembered cursor position.
func (m *Model) reload() {
	top := m.parents.Top()
	m.listing = m.browser.List(top, m.parents.AtRoot())
	m.applyFilter()
	m.cursor, _ = m.browser.RestoreView(top, m.visible)
	m.clampCursor()
}

func (m *Model) applyFilter() {
	if m.filter == "" {
		m.visible = m.listing
		return
	}
	needle := strings.ToLower(m.filter)
	filtered := make([]*entry.Entry, 0, len(m.listing))
	for _, e := range m.listing {
		// The parent placeholder is never filtered out.
		if e == nil || strings.Contains(strings.ToLower(e.Name), needle) {
			filtered = append(filtered, e)
		}
	}
	m.visible = filtered
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// selected returns the entry under the cursor; nil for the parent
// placeholder or an empty listing.
func (m *Model) selected() *entry.Entry {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return nil
	}
	return m.visible[m.cursor]
}

// keepSelection moves the cursor back onto sel after the visible
// listing was rebuilt.
func (m *Model) keepSelection(sel *entry.Entry) {
	if sel == nil {
		return
	}
	for i, e := range m.visible {
		if e == sel {
			m.cursor = i
			return
		}
	}
}

// chromeLines approximates the fixed header and footer height; used to
// derive the saved scroll offset outside of View.
const chromeLines = 9

func (m *Model) visibleRows() int {
	rows := m.height - chromeLines
	if rows < 5 {
		rows = 5
	}
	return rows
}

func (m *Model) offset() int {
	if m.cursor >= m.visibleRows() {
		return m.cursor - m.visibleRows() + 1
	}
	return 0
}

func (m *Model) helpLine() string {
	if m.filterActive {
		return "Type to filter | Enter: apply | Esc: clear | q: quit"
	}
	return "↑/↓ move | Enter: open | Backspace: close | s/d/n/i/m: sort | r: refresh | .: hidden | /: filter | q: quit"
}
