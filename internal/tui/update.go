package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"duviz/internal/aggregate"
	"duviz/internal/browse"
	"duviz/internal/entry"
	"duviz/internal/nav"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.scanning {
			return m, tick()
		}
		return m, nil

	case scanDoneMsg:
		m.scanning = false
		m.cancelScan = nil
		if msg.err != nil {
			if errors.Is(msg.err, context.Canceled) {
				return m, tea.Quit
			}
			m.err = msg.err
			return m, nil
		}
		m.root = msg.root
		m.parents = nav.NewParents(m.root)
		m.reload()
		return m, nil

	case refreshDoneMsg:
		m.scanning = false
		m.refreshing = false
		m.cancelScan = nil
		if msg.err != nil {
			if !errors.Is(msg.err, context.Canceled) {
				m.status = fmt.Sprintf("refresh failed: %v", msg.err)
			}
			m.stale = nil
			m.reload()
			return m, nil
		}
		for _, d := range m.stale {
			m.browser.Forget(d)
		}
		m.stale = nil
		m.status = ""
		m.reload()
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.scanning {
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancelScan != nil {
				m.cancelScan()
			}
		}
		return m, nil
	}

	if m.filterActive {
		return m.handleFilterKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.status = ""
		return m, nil

	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
		m.status = ""
		return m, nil

	case "enter", "l", "right":
		sel := m.selected()
		if sel == nil {
			return m.goUp()
		}
		if sel.IsDir() {
			m.browser.SaveView(m.parents.Top(), m.offset(), sel)
			m.parents.Push(sel)
			m.resetFilter()
			m.status = ""
			m.reload()
		}
		return m, nil

	case "backspace", "h", "left":
		return m.goUp()

	case "s":
		m.setSort(browse.ColSize)
		return m, nil

	case "d":
		m.setSort(browse.ColBlocks)
		return m, nil

	case "n":
		m.setSort(browse.ColName)
		return m, nil

	case "i":
		m.setSort(browse.ColItems)
		return m, nil

	case "m":
		m.setSort(browse.ColMtime)
		return m, nil

	case "t":
		m.toggleListing(func() { m.browser.DirsFirst = !m.browser.DirsFirst })
		return m, nil

	case ".":
		m.toggleListing(func() { m.browser.ShowHidden = !m.browser.ShowHidden })
		return m, nil

	case "u":
		// Shared/unique split is derived on demand; it walks the whole
		// tree, so it runs once per keypress rather than per frame.
		sel := m.selected()
		if sel != nil && sel.IsDir() {
			shared := aggregate.SharedBlocks(m.parents.Root(), sel)
			m.status = fmt.Sprintf("%s: %s shared, %s unique",
				sel.Name, FormatSize(shared), FormatSize(sel.Blocks-shared))
		}
		return m, nil

	case "r":
		if m.scanner == nil {
			m.status = "refresh is not available for a loaded snapshot"
			return m, nil
		}
		m.browser.SaveView(m.parents.Top(), m.offset(), m.selected())
		m.stale = descendantDirs(m.parents.Top())
		m.scanning = true
		m.refreshing = true
		return m, tea.Batch(m.startRefresh(), tick())

	case "/":
		m.filterActive = true
		return m, nil

	case "home", "g":
		m.cursor = 0
		return m, nil

	case "end", "G":
		if len(m.visible) > 0 {
			m.cursor = len(m.visible) - 1
		}
		return m, nil

	case "pgup":
		m.cursor -= m.visibleRows()
		m.clampCursor()
		return m, nil

	case "pgdown":
		m.cursor += m.visibleRows()
		m.clampCursor()
		return m, nil
	}

	return m, nil
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filterActive = false
		return m, nil

	case "esc":
		m.filterActive = false
		m.filter = ""
		m.applyFilter()
		return m, nil

	case "backspace":
		if len(m.filter) > 0 {
			runes := []rune(m.filter)
			m.filter = string(runes[:len(runes)-1])
			m.applyFilter()
		}
		return m, nil

	case "ctrl+c":
		return m, tea.Quit
	}

	if msg.Type == tea.KeyRunes {
		m.filter += msg.String()
		m.applyFilter()
		return m, nil
	}

	return m, nil
}

func (m *Model) goUp() (tea.Model, tea.Cmd) {
	if m.parents.AtRoot() {
		return m, nil
	}
	m.browser.SaveView(m.parents.Top(), m.offset(), m.selected())
	m.parents.Pop()
	m.resetFilter()
	m.status = ""
	m.reload()
	return m, nil
}

// setSort changes the sort column; pressing the active column's key
// again flips the direction.
func (m *Model) setSort(col browse.Column) {
	if m.browser.Col == col {
		if m.browser.Ord == browse.Desc {
			m.browser.Ord = browse.Asc
		} else {
			m.browser.Ord = browse.Desc
		}
	} else {
		m.browser.Col = col
		if col == browse.ColName {
			m.browser.Ord = browse.Asc
		} else {
			m.browser.Ord = browse.Desc
		}
	}
	sel := m.selected()
	m.browser.Resort(m.listing)
	m.applyFilter()
	m.keepSelection(sel)
}

// toggleListing applies a presentation toggle and rebuilds the listing,
// keeping the selection when it is still visible.
func (m *Model) toggleListing(flip func()) {
	sel := m.selected()
	flip()
	m.listing = m.browser.List(m.parents.Top(), m.parents.AtRoot())
	m.applyFilter()
	m.keepSelection(sel)
}

func (m *Model) resetFilter() {
	m.filter = ""
	m.filterActive = false
}

// descendantDirs collects every directory strictly below dir. These are
// the nodes a refresh of dir replaces.
func descendantDirs(dir *entry.Entry) []*entry.Entry {
	var out []*entry.Entry
	stack := dir.Children()
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.IsDir() {
			out = append(out, e)
			stack = append(stack, e.Children()...)
		}
	}
	return out
}
