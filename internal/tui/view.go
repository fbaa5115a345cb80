package tui

import (
	"fmt"
	"math"
	"strings"

	"duviz/internal/browse"
	"duviz/internal/entry"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err)
	}
	if m.scanning {
		return m.progressView()
	}
	if m.root == nil {
		return "Loading..."
	}

	var b strings.Builder
	headerLines := 0

	writeLine := func(line string) {
		b.WriteString(line)
		b.WriteString("\n")
		headerLines++
	}

	writeLine(titleStyle.Render("duviz - Disk Usage Browser"))

	top := m.parents.Top()
	rootInfo := fmt.Sprintf("Total disk: %s | Apparent: %s | Items: %s",
		FormatSize(m.root.Blocks),
		FormatSize(m.root.Size),
		FormatCount(totalItems(m.root)),
	)
	writeLine(statsStyle.Render(rootInfo))

	pathLabel := fmt.Sprintf("Path: %s", truncateMiddle(m.parents.Path(), max(10, m.width-6)))
	writeLine(breadcrumbStyle.Render(pathLabel))

	writeLine(statusStyle.Render(m.statusLine()))

	if m.filterActive {
		writeLine(filterStyle.Render(fmt.Sprintf("Filter: %s_", m.filter)))
	} else if m.filter != "" {
		writeLine(filterStyle.Render(fmt.Sprintf("Filter: %s", m.filter)))
	}

	diskLabel := headerLabel("DISK", m.browser.Col == browse.ColBlocks, m.browser.Ord)
	apparentLabel := headerLabel("APPARENT", m.browser.Col == browse.ColSize, m.browser.Ord)
	itemsLabel := headerLabel("ITEMS", m.browser.Col == browse.ColItems, m.browser.Ord)
	nameLabel := headerLabel("NAME", m.browser.Col == browse.ColName, m.browser.Ord)

	footerLines := 3
	visibleRows := m.height - headerLines - footerLines - 1
	if visibleRows < 5 {
		visibleRows = 5
	}

	startIdx := 0
	if m.cursor >= visibleRows {
		startIdx = m.cursor - visibleRows + 1
	}
	endIdx := min(len(m.visible), startIdx+visibleRows)

	widths := calcColumnWidths(m.visible, startIdx, endIdx, diskLabel, apparentLabel, itemsLabel)
	nameWidth := calcNameWidth(m.width, widths)
	gap := strings.Repeat(" ", colGap)

	nameLabel = truncateRight(nameLabel, nameWidth)
	namePad := nameWidth - len(nameLabel)
	if namePad < 0 {
		namePad = 0
	}
	header := fmt.Sprintf("%*s%s%*s%s%*s%s %s%s%s%*s",
		widths.disk, diskLabel,
		gap,
		widths.apparent, apparentLabel,
		gap,
		widths.items, itemsLabel,
		gap,
		nameLabel,
		strings.Repeat(" ", namePad),
		gap,
		barColWidth, barHeaderLabel(m.browser.Col),
	)
	writeLine(headerStyle.Render(header))

	for i := startIdx; i < endIdx; i++ {
		b.WriteString(m.formatEntry(m.visible[i], i == m.cursor, top, widths, nameWidth))
		b.WriteString("\n")
	}
	displayedRows := min(len(m.visible)-startIdx, visibleRows)
	for i := displayedRows; i < visibleRows; i++ {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	dirInfo := fmt.Sprintf("Disk: %s | Apparent: %s | Items: %s",
		FormatSize(top.Blocks), FormatSize(top.Size), FormatCount(totalItems(top)))
	if d, ok := top.Dir(); ok && (d.HasError || d.HasSubtreeError) {
		dirInfo += " | errors below"
	}
	b.WriteString(statsStyle.Render(dirInfo))
	b.WriteString("\n")

	help := m.helpLine()
	if len(m.visible) > 0 {
		help = fmt.Sprintf("%s [%d/%d]", help, m.cursor+1, len(m.visible))
	}
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func (m *Model) progressView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("duviz - Disk Usage Browser"))
	b.WriteString("\n")

	verb := "Scanning"
	target := m.rootPath
	if m.refreshing {
		verb = "Refreshing"
		target = m.parents.Path()
	}
	b.WriteString(fmt.Sprintf("%s %s...\n\n", verb, target))

	p := m.scanner.Progress()
	b.WriteString(fmt.Sprintf("  Files: %s\n", FormatCount(p.Files)))
	b.WriteString(fmt.Sprintf("  Dirs:  %s\n", FormatCount(p.Dirs)))
	b.WriteString(fmt.Sprintf("  Disk:  %s\n", FormatSize(p.Bytes)))
	if p.Errors > 0 {
		b.WriteString(fmt.Sprintf("  Errors: %s\n", FormatCount(p.Errors)))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q: abort"))
	return b.String()
}

func (m *Model) statusLine() string {
	if m.status != "" {
		return m.status
	}
	sel := m.selected()
	if sel == nil {
		return fmt.Sprintf("Items: %s", FormatCount(int64(len(m.visible))))
	}
	s := fmt.Sprintf("Sel: %s (%s disk, %s apparent)",
		sel.Name, FormatSize(sel.Blocks), FormatSize(sel.Size))
	if desc := flagDescription(sel); desc != "" {
		s += " | " + desc
	}
	return s
}

type columnWidths struct {
	disk     int
	apparent int
	items    int
}

const (
	colGap        = 2
	minNameWidth  = 10
	barBlockWidth = 10
	barPctWidth   = 4
	barGapWidth   = 1
	barColWidth   = barBlockWidth + barGapWidth + barPctWidth
)

func calcColumnWidths(entries []*entry.Entry, startIdx, endIdx int, diskLabel, apparentLabel, itemsLabel string) columnWidths {
	w := columnWidths{
		disk:     len(diskLabel),
		apparent: len(apparentLabel),
		items:    len(itemsLabel),
	}
	for i := startIdx; i < endIdx; i++ {
		e := entries[i]
		if e == nil {
			continue
		}
		if n := len(FormatSize(e.Blocks)); n > w.disk {
			w.disk = n
		}
		if n := len(FormatSize(e.Size)); n > w.apparent {
			w.apparent = n
		}
		if n := len(FormatCount(totalItems(e))); n > w.items {
			w.items = n
		}
	}
	return w
}

func calcNameWidth(totalWidth int, w columnWidths) int {
	// data columns + gaps + flag char + bar column
	used := w.disk + w.apparent + w.items + (colGap * 4) + 2 + barColWidth
	nameWidth := totalWidth - used
	if nameWidth < minNameWidth {
		nameWidth = minNameWidth
	}
	return nameWidth
}

func (m *Model) formatEntry(e *entry.Entry, selected bool, parent *entry.Entry, widths columnWidths, nameWidth int) string {
	gap := strings.Repeat(" ", colGap)

	if e == nil {
		line := fmt.Sprintf("%*s%s%*s%s%*s%s  %s",
			widths.disk, "", gap, widths.apparent, "", gap, widths.items, "", gap,
			dirStyle.Render("/.."))
		if selected {
			return selectedStyle.Render(line)
		}
		return line
	}

	disk := FormatSize(e.Blocks)
	apparent := FormatSize(e.Size)
	items := ""
	if e.IsDir() {
		items = FormatCount(totalItems(e))
	}

	rawName := e.Name
	switch e.Kind {
	case entry.KindDir:
		rawName += "/"
	case entry.KindSymlink:
		rawName += "@"
	}
	rawName = truncateRight(rawName, nameWidth)

	var styledName string
	switch e.Kind {
	case entry.KindDir:
		styledName = dirStyle.Render(rawName)
	case entry.KindSymlink:
		styledName = symlinkStyle.Render(rawName)
	default:
		styledName = fileStyle.Render(rawName)
	}
	pad := nameWidth - len(rawName)
	if pad < 0 {
		pad = 0
	}

	entryVal, parentTotal := barValues(m.browser.Col, e, parent)
	bar := formatBar(entryVal, parentTotal)

	line := fmt.Sprintf("%*s%s%*s%s%*s%s%c %s%s%s%s",
		widths.disk, disk,
		gap,
		widths.apparent, apparent,
		gap,
		widths.items, items,
		gap,
		flagChar(e),
		styledName,
		strings.Repeat(" ", pad),
		gap,
		bar,
	)
	if selected {
		return selectedStyle.Render(line)
	}
	return line
}

// flagChar is the single-character status column: read error, subtree
// error, excluded, other filesystem, duplicate hardlink, non-regular.
func flagChar(e *entry.Entry) byte {
	if e.HasFlag(entry.FlagReadError) {
		return '!'
	}
	if d, ok := e.Dir(); ok && d.HasSubtreeError {
		return '.'
	}
	switch {
	case e.HasFlag(entry.FlagExcluded):
		return 'e'
	case e.HasFlag(entry.FlagCrossFS):
		return '<'
	case e.HasFlag(entry.FlagDuplicate):
		return 'H'
	case e.HasFlag(entry.FlagNotRegular):
		return '^'
	}
	return ' '
}

func flagDescription(e *entry.Entry) string {
	switch flagChar(e) {
	case '!':
		return "read error"
	case '.':
		return "errors in subtree"
	case 'e':
		return "excluded"
	case '<':
		return "other filesystem"
	case 'H':
		return "hardlink, counted elsewhere"
	case '^':
		return "not a regular file"
	}
	return ""
}

func barHeaderLabel(col browse.Column) string {
	switch col {
	case browse.ColSize:
		return "SIZE%"
	case browse.ColItems:
		return "ITEM%"
	default:
		return "DISK%"
	}
}

func barValues(col browse.Column, e, parent *entry.Entry) (int64, int64) {
	switch col {
	case browse.ColSize:
		return e.Size, parent.Size
	case browse.ColItems:
		return totalItems(e), totalItems(parent)
	default:
		return e.Blocks, parent.Blocks
	}
}

func formatBar(entryVal, parentTotal int64) string {
	if parentTotal <= 0 || entryVal <= 0 {
		empty := strings.Repeat("░", barBlockWidth)
		return barEmptyStyle.Render(empty) + fmt.Sprintf("  %3d%%", 0)
	}

	pct := float64(entryVal) / float64(parentTotal) * 100
	if pct > 100 {
		pct = 100
	}

	filled := int(math.Round(pct / 100 * float64(barBlockWidth)))
	if filled < 1 {
		filled = 1
	}
	if filled > barBlockWidth {
		filled = barBlockWidth
	}

	filledStr := barFilledStyle.Render(strings.Repeat("█", filled))
	emptyStr := barEmptyStyle.Render(strings.Repeat("░", barBlockWidth-filled))
	return filledStr + emptyStr + fmt.Sprintf("  %3d%%", int(math.Round(pct)))
}

func headerLabel(label string, active bool, ord browse.Order) string {
	if !active {
		return label
	}
	if ord == browse.Asc {
		return label + "^"
	}
	return label + "v"
}

func totalItems(e *entry.Entry) int64 {
	if d, ok := e.Dir(); ok {
		return d.TotalItems
	}
	return 0
}

func truncateRight(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func truncateMiddle(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	head := (maxLen - 3) / 2
	tail := maxLen - 3 - head
	return s[:head] + "..." + s[len(s)-tail:]
}
