package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pagecraft/internal/forest"
	"pagecraft/internal/model"
	"pagecraft/internal/move"
	"pagecraft/internal/mutate"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

type row struct {
	item        model.OrderedItem
	depth       int
	hasChildren bool
}

type commitMsg struct {
	out    mutate.Outcome
	action string
}

type appModel struct {
	ctx   context.Context
	coord *mutate.Coordinator
	opts  Options

	keys keyMap
	help help.Model

	rows       []row
	cursor     int
	selectedID string

	width  int
	height int

	showDetail    bool
	committing    bool
	confirmDelete string

	status     string
	statusKind statusKind
}

func newAppModel(ctx context.Context, c *mutate.Coordinator, opts Options) appModel {
	if opts.Threshold <= 0 {
		opts.Threshold = move.DefaultThreshold
	}
	m := appModel{
		ctx:    ctx,
		coord:  c,
		opts:   opts,
		keys:   defaultKeyMap(),
		help:   help.New(),
		width:  80,
		height: 24,
	}
	m.refresh()
	if d := c.Dangling(); len(d) > 0 {
		m.setStatus(statusWarn, fmt.Sprintf("%d item(s) had a missing parent and are shown as roots; run doctor --fix", len(d)))
	}
	return m
}

func (m appModel) Init() tea.Cmd { return nil }

// refresh rebuilds rows from the coordinator's visible state and keeps the cursor on
// the selected item when it still exists.
func (m *appModel) refresh() {
	items := m.coord.Items()
	m.rows = nil
	f, err := forest.Build(items)
	if err != nil {
		m.setStatus(statusError, err.Error())
		return
	}
	f.Walk(func(n *forest.Node, _ *forest.Node) bool {
		m.rows = append(m.rows, row{item: n.Item, depth: n.Depth, hasChildren: len(n.Children) > 0})
		return true
	})

	m.cursor = clamp(m.cursor, 0, len(m.rows)-1)
	if m.selectedID != "" {
		for i, r := range m.rows {
			if r.item.ID == m.selectedID {
				m.cursor = i
				break
			}
		}
	}
	if len(m.rows) > 0 {
		m.selectedID = m.rows[m.cursor].item.ID
	} else {
		m.selectedID = ""
	}
}

func (m *appModel) setStatus(kind statusKind, msg string) {
	m.statusKind = kind
	m.status = msg
}

func (m appModel) current() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case commitMsg:
		m.committing = false
		m.refresh()
		switch {
		case msg.out.Err != nil:
			m.setStatus(statusError, "save failed, change reverted: "+msg.out.Err.Error())
		case m.statusKind == statusWarn:
			// Keep the degraded-gesture warning visible.
		default:
			m.setStatus(statusOK, fmt.Sprintf("%s: saved (%d writes)", msg.action, len(msg.out.Writes)))
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmDelete != "" {
		id := m.confirmDelete
		m.confirmDelete = ""
		if msg.String() == "y" || msg.String() == "Y" {
			return m.deleteItem(id)
		}
		m.setStatus(statusInfo, "delete cancelled")
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Detail):
		m.showDetail = !m.showDetail
	case key.Matches(msg, m.keys.CopyID):
		if r, ok := m.current(); ok {
			if err := copyToClipboard(r.item.ID); err != nil {
				m.setStatus(statusError, "copy failed: "+err.Error())
			} else {
				m.setStatus(statusInfo, "copied "+r.item.ID)
			}
		}
	case key.Matches(msg, m.keys.MoveUp):
		return m.moveUp()
	case key.Matches(msg, m.keys.MoveDown):
		return m.moveDown()
	case key.Matches(msg, m.keys.PrevContainer):
		return m.toContainer(-1)
	case key.Matches(msg, m.keys.NextContainer):
		return m.toContainer(1)
	case key.Matches(msg, m.keys.Nest):
		if r, ok := m.current(); ok {
			return m.gesture(move.Gesture{ActiveID: r.item.ID, OverID: r.item.ID, LateralOffset: m.opts.Threshold}, "nest")
		}
	case key.Matches(msg, m.keys.Unnest):
		if r, ok := m.current(); ok {
			return m.gesture(move.Gesture{ActiveID: r.item.ID, OverID: r.item.ID, LateralOffset: -m.opts.Threshold}, "un-nest")
		}
	case key.Matches(msg, m.keys.Delete):
		if r, ok := m.current(); ok {
			m.confirmDelete = r.item.ID
			m.setStatus(statusWarn, fmt.Sprintf("delete %s and its children? (y/n)", itemLabel(r.item)))
		}
	}
	return m, nil
}

func (m *appModel) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = clamp(m.cursor+delta, 0, len(m.rows)-1)
	m.selectedID = m.rows[m.cursor].item.ID
}

// moveUp swaps the item with its previous sibling.
func (m appModel) moveUp() (tea.Model, tea.Cmd) {
	r, ok := m.current()
	if !ok {
		return m, nil
	}
	for i := m.cursor - 1; i >= 0; i-- {
		prev := m.rows[i]
		if prev.item.ContainerID != r.item.ContainerID || prev.depth < r.depth {
			break
		}
		if prev.depth == r.depth {
			return m.gesture(move.Gesture{ActiveID: r.item.ID, OverID: prev.item.ID}, "move up")
		}
	}
	m.setStatus(statusInfo, "already first in its group")
	return m, nil
}

// moveDown swaps the item with its next sibling, skipping both subtrees.
func (m appModel) moveDown() (tea.Model, tea.Cmd) {
	r, ok := m.current()
	if !ok {
		return m, nil
	}
	for i := m.cursor + 1; i < len(m.rows); i++ {
		next := m.rows[i]
		if next.item.ContainerID != r.item.ContainerID || next.depth < r.depth {
			break
		}
		if next.depth == r.depth {
			return m.gesture(move.Gesture{ActiveID: r.item.ID, OverID: next.item.ID}, "move down")
		}
	}
	m.setStatus(statusInfo, "already last in its group")
	return m, nil
}

// toContainer appends the item (with its subtree) to the neighbouring container.
func (m appModel) toContainer(delta int) (tea.Model, tea.Cmd) {
	r, ok := m.current()
	if !ok {
		return m, nil
	}
	order := m.containerOrder()
	at := -1
	for i, cid := range order {
		if cid == r.item.ContainerID {
			at = i
		}
	}
	target := at + delta
	if at < 0 || target < 0 || target >= len(order) {
		m.setStatus(statusInfo, "no container in that direction")
		return m, nil
	}
	return m.gesture(move.Gesture{ActiveID: r.item.ID, OverID: order[target]}, "move to "+order[target])
}

// containerOrder lists registered containers first, then containers only items
// mention, in display order.
func (m appModel) containerOrder() []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range m.coord.Containers() {
		if !seen[c.ID] {
			seen[c.ID] = true
			out = append(out, c.ID)
		}
	}
	for _, r := range m.rows {
		if !seen[r.item.ContainerID] {
			seen[r.item.ContainerID] = true
			out = append(out, r.item.ContainerID)
		}
	}
	return out
}

func (m appModel) gesture(g move.Gesture, action string) (tea.Model, tea.Cmd) {
	if m.committing {
		m.setStatus(statusWarn, "previous change is still saving")
		return m, nil
	}
	res, err := m.coord.ApplyMove(g)
	if err != nil {
		if errors.Is(err, mutate.ErrSessionInFlight) {
			m.setStatus(statusWarn, "previous change is still saving")
		} else {
			m.setStatus(statusError, err.Error())
		}
		return m, nil
	}
	m.refresh()
	m.committing = true
	if res.Degraded {
		m.setStatus(statusWarn, fmt.Sprintf("%s not possible here; kept as %s", action, res.Kind))
	} else {
		m.setStatus(statusInfo, action+": saving…")
	}
	return m, m.commitCmd(action)
}

func (m appModel) deleteItem(id string) (tea.Model, tea.Cmd) {
	if m.committing {
		m.setStatus(statusWarn, "previous change is still saving")
		return m, nil
	}
	removed, err := m.coord.ApplyDelete(id)
	if err != nil {
		m.setStatus(statusError, err.Error())
		return m, nil
	}
	m.refresh()
	m.committing = true
	m.setStatus(statusInfo, fmt.Sprintf("deleting %d item(s)…", len(removed)))
	return m, m.commitCmd("delete")
}

func (m appModel) commitCmd(action string) tea.Cmd {
	c, ctx := m.coord, m.ctx
	return func() tea.Msg {
		return commitMsg{out: c.Commit(ctx), action: action}
	}
}

func (m appModel) View() string {
	header := styleHeader().Render("pagecraft") + styleMuted().Render("  "+m.coord.FamilyID())
	footer := styleStatus(m.statusKind).Render(fitLine(m.status, m.width)) + "\n" + m.help.View(m.keys)
	bodyH := m.height - lipgloss.Height(header) - 1 - lipgloss.Height(footer)
	if bodyH < 1 {
		bodyH = 1
	}

	listW := m.width
	detailW := 0
	if m.showDetail && m.width >= 60 {
		detailW = m.width / 2
		listW = m.width - detailW - 1
	}
	body := normalizePane(m.renderList(listW, bodyH), listW, bodyH)
	if detailW > 0 {
		detail := ""
		if r, ok := m.current(); ok {
			detail = renderMarkdown(itemMarkdown(r.item, r.depth), detailW)
		}
		sep := strings.TrimRight(strings.Repeat("│\n", bodyH), "\n")
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, styleMuted().Render(sep), normalizePane(detail, detailW, bodyH))
	}

	rule := styleMuted().Render(strings.Repeat(glyphHRule(), max(m.width, 1)))
	return header + "\n" + rule + "\n" + body + "\n" + footer
}

// renderList renders container headings and item rows, scrolled so the cursor stays
// visible.
func (m appModel) renderList(width, height int) string {
	labels := map[string]string{}
	for _, c := range m.coord.Containers() {
		labels[c.ID] = c.Label
	}
	order := m.containerOrder()
	byContainer := map[string][]int{}
	for i, r := range m.rows {
		byContainer[r.item.ContainerID] = append(byContainer[r.item.ContainerID], i)
	}

	var lines []string
	cursorLine := 0
	for _, cid := range order {
		title := cid
		if labels[cid] != "" {
			title = labels[cid] + " (" + cid + ")"
		}
		lines = append(lines, styleContainer().Render(fitLine(title, width)))
		idxs := byContainer[cid]
		if len(idxs) == 0 {
			lines = append(lines, styleMuted().Render("  (empty)"))
		}
		for _, i := range idxs {
			if i == m.cursor {
				cursorLine = len(lines)
			}
			lines = append(lines, m.renderRow(m.rows[i], i == m.cursor, width))
		}
	}
	if len(lines) == 0 {
		return styleMuted().Render("no containers or items yet")
	}

	start := 0
	if cursorLine >= height {
		start = cursorLine - height + 1
	}
	end := min(start+height, len(lines))
	return strings.Join(lines[start:end], "\n")
}

func (m appModel) renderRow(r row, selected bool, width int) string {
	prefix := "  "
	if selected {
		prefix = glyphCursor() + " "
	}
	bullet := glyphBullet()
	if r.hasChildren {
		bullet = glyphBranch()
	}
	line := prefix + strings.Repeat("  ", r.depth) + bullet + " " + itemLabel(r.item)
	if r.item.Kind != "" {
		line += styleMuted().Render("  " + string(r.item.Kind))
	}
	line = fitLine(line, width)
	if selected {
		return styleSelected().Render(line)
	}
	return line
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
