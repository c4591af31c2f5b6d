package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/vmon/internal/model"
	"github.com/Zuo-Peng/vmon/internal/render"
)

// linesPerItem is the number of terminal lines each session occupies.
const linesPerItem = 2

// renderList renders the left panel: live or archived sessions with scrolling.
func (m board) renderList(width, height int) string {
	items := m.items()
	if len(items) == 0 {
		msg := "No visitors online"
		if m.pane == paneArchive {
			msg = "No archived sessions"
		} else if !m.state.Loaded() {
			msg = "Connecting..."
		}
		return lipgloss.NewStyle().
			Foreground(colorDim).
			Width(width).
			Height(height).
			Align(lipgloss.Center, lipgloss.Center).
			Render(msg)
	}

	followed, _ := m.state.Following()
	var lines []string
	for i, s := range items {
		if i < m.listOffset {
			continue
		}
		if len(lines)+linesPerItem > height {
			break
		}
		rows := formatSessionLine(s, width, i == m.cursor, s.ID == followed, m.now())
		lines = append(lines, rows...)
	}

	// Pad remaining lines
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}

	return strings.Join(lines, "\n")
}

// formatSessionLine formats a single session as two lines:
//
//	line 1: [>] status  country  device  ago  label
//	line 2:    url (dimmed)  event icons
func formatSessionLine(s model.Session, width int, selected, followed bool, now time.Time) []string {
	status := styleEnded.Render("○")
	if s.IsLive() {
		status = styleLive.Render("●")
	}
	if followed {
		status = styleFollow.Render("◎")
	}

	name := render.VisitorName(s.Visitor, s.VisitorID)
	if s.VIP {
		name = styleVIP.Render("★ " + name)
	}
	head := fmt.Sprintf("%-2s %-6s %s", s.Country(), truncate(s.DeviceType, 6), render.Ago(s.LastActiveAt.Time, now))
	nameMax := width - 2 - 2 - runewidth.StringWidth(head) - 1
	if nameMax < 0 {
		nameMax = 0
	}
	if runewidth.StringWidth(name) > nameMax {
		name = runewidth.Truncate(name, nameMax, "")
	}

	line1 := fmt.Sprintf("%s %s %s", status, head, name)
	if selected {
		line1 = styleCursor.Render("> ") + line1
	} else {
		line1 = "  " + line1
	}

	icons := render.Icons(s.Events, 5, false)
	url := strings.ReplaceAll(s.LastURL(), "\n", " ")
	urlMax := width - 4 - runewidth.StringWidth(icons) - 1 // indent
	if urlMax < 0 {
		urlMax = 0
	}
	url = truncate(url, urlMax)
	line2 := "    " + lipgloss.NewStyle().Foreground(colorDim).Render(url) + " " + icons

	return []string{line1, line2}
}

func truncate(s string, n int) string {
	if runewidth.StringWidth(s) > n {
		return runewidth.Truncate(s, n, "")
	}
	return s
}

// adjustListScroll keeps the cursor visible within the list viewport.
func (m *board) adjustListScroll(listHeight int) {
	visibleItems := listHeight / linesPerItem
	if visibleItems < 1 {
		visibleItems = 1
	}
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+visibleItems {
		m.listOffset = m.cursor - visibleItems + 1
	}
}
