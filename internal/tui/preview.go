package tui

import (
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/Zuo-Peng/vmon/internal/history"
	"github.com/Zuo-Peng/vmon/internal/model"
	"github.com/Zuo-Peng/vmon/internal/render"
)

// historyLoadedMsg carries a history fetched on demand, e.g. for the
// visitor of a followed session that just ended.
type historyLoadedMsg struct {
	history history.History
	err     error
}

// previewContent builds the right panel and returns the cache key of what
// it shows plus the line to scroll to (-1 keeps the current offset).
func (m board) previewContent() (content, key string, line int) {
	width := m.previewWidth()
	switch {
	case m.replay != nil:
		return m.replay.content(), "replay:" + m.replay.session, bottom

	case m.showHistory:
		h := m.state.History
		if m.historyOverride != nil {
			h = *m.historyOverride
		}
		var v *model.Visitor
		if cur := m.selected(); cur != nil && cur.VisitorID == h.VisitorID {
			v = cur.Visitor
		}
		if v == nil && len(h.Sessions) > 0 {
			v = h.Sessions[0].Visitor
		}
		return render.History(v, h.Sessions, render.Options{Width: width, Now: m.now()}), "history:" + h.VisitorID, -1
	}

	s := m.selected()
	if s == nil {
		return "", "", -1
	}
	opts := render.Options{Width: width, Context: -1, Now: m.now()}
	if m.pane == paneArchive {
		opts.Query = m.state.ArchiveQuery.Search
	}
	content, newest := render.Session(*s, opts)
	if followed, ok := m.state.Following(); ok && followed == s.ID {
		return content, "session:" + s.ID, newest
	}
	return content, "session:" + s.ID, -1
}

// bottom scrolls the preview to its end.
const bottom = -2

// refreshPreview re-renders the preview, keeping the scroll offset while
// the same item stays on screen.
func (m *board) refreshPreview() {
	content, key, line := m.previewContent()
	m.preview.SetContent(content)
	switch {
	case line == bottom:
		m.preview.GotoBottom()
	case line >= 0:
		m.preview.SetYOffset(line)
	case key != m.previewKey:
		m.preview.GotoTop()
	}
	m.previewKey = key
}

// newViewport sizes the preview. The panel around it draws the border.
func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.MouseWheelEnabled = true
	return vp
}
