package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"goa.design/clue/log"

	"github.com/Zuo-Peng/vmon/internal/api"
	"github.com/Zuo-Peng/vmon/internal/history"
	"github.com/Zuo-Peng/vmon/internal/model"
	"github.com/Zuo-Peng/vmon/internal/monitor"
	"github.com/Zuo-Peng/vmon/internal/reconcile"
	"github.com/Zuo-Peng/vmon/internal/replay"
)

// Backend is the part of the back office the TUI calls directly.
type Backend interface {
	replay.ChunkFetcher
	SessionAction(ctx context.Context, sessionID string, action api.Action) (*api.ActionResult, error)
	SetVisitorLabel(ctx context.Context, visitorID, label string) (*api.ActionResult, error)
	VisitorSessions(ctx context.Context, visitorID string) ([]model.Session, error)
}

type Options struct {
	Backend Backend
	Runner  replay.Runner
	Replay  replay.DialogOptions
	// Archive, when set, records every replay next to the live view.
	Archive replay.EngineFactory
	// ArchivePoll keeps the archived list polling while the live pane is shown.
	ArchivePoll bool
}

// App is the live board. Create it before the monitor so the monitor can
// publish into it, then Run it.
type App struct {
	backend     Backend
	dialog      *replay.Dialog
	archivePoll bool
	ctx         context.Context
	replayGen   atomic.Uint64

	mu      sync.Mutex
	program *tea.Program
}

func New(opts Options) *App {
	a := &App{backend: opts.Backend, archivePoll: opts.ArchivePoll, ctx: context.Background()}
	factory := a.engineFactory()
	if opts.Archive != nil {
		factory = replay.Tee(factory, opts.Archive)
	}
	dialogOpts := opts.Replay
	dialogOpts.OnDone = a.replayDone
	a.dialog = replay.NewDialog(opts.Backend, factory, opts.Runner, dialogOpts)
	return a
}

// PublishState is a monitor.Options.OnState hook. It never blocks: the
// monitor may be called from inside Update.
func (a *App) PublishState(st monitor.State) {
	go a.send(stateMsg(st))
}

// Notify is a monitor.Options.OnNotify hook.
func (a *App) Notify(n reconcile.Notification) {
	go a.send(notifyMsg(n))
}

func (a *App) send(msg tea.Msg) {
	a.mu.Lock()
	p := a.program
	a.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Run starts the TUI and blocks until it exits. The open replay, if any,
// is closed on the way out.
func (a *App) Run(ctx context.Context, mon *monitor.Monitor) error {
	a.ctx = ctx
	p := tea.NewProgram(newBoard(a, mon), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	a.mu.Lock()
	a.program = p
	a.mu.Unlock()

	_, err := p.Run()

	a.mu.Lock()
	a.program = nil
	a.mu.Unlock()
	if cerr := a.dialog.Close(); cerr != nil {
		log.Warn(ctx, log.KV{K: "msg", V: "closing replay"}, log.KV{K: "err", V: cerr.Error()})
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

type pane int

const (
	paneLive pane = iota
	paneArchive
)

type inputMode int

const (
	inputNone inputMode = iota
	inputLabel
	inputSearch
)

// message types

type stateMsg monitor.State

type notifyMsg reconcile.Notification

// board

type board struct {
	app *App
	mon *monitor.Monitor

	state           monitor.State
	pane            pane
	cursor          int
	listOffset      int
	showHistory     bool
	historyOverride *history.History
	endedVisitor    string // visitor of the last followed session that ended
	replay          *replayView

	input      textinput.Model
	inputMode  inputMode
	inputFor   string // visitor id being labeled
	preview    viewport.Model
	previewKey string

	flash    string
	flashErr bool
	flashSeq int

	width    int
	height   int
	ready    bool
	quitting bool
	clock    func() time.Time
}

func newBoard(a *App, mon *monitor.Monitor) board {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = styleInputPrompt
	ti.TextStyle = styleInput
	ti.CharLimit = 256

	return board{
		app:     a,
		mon:     mon,
		state:   mon.State(),
		input:   ti,
		preview: viewport.New(0, 0),
		clock:   time.Now,
	}
}

func (m board) now() time.Time { return m.clock() }

// Init starts the monitor's poll tasks.
func (m board) Init() tea.Cmd {
	mon := m.mon
	archive := m.app.archivePoll
	return func() tea.Msg {
		if err := mon.Start(); err != nil {
			return actionDoneMsg{err: err}
		}
		if archive {
			if err := mon.StartArchive(); err != nil {
				return actionDoneMsg{err: err}
			}
		}
		return nil
	}
}

// Update handles messages.
func (m board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.preview = newViewport(m.previewWidth(), m.panelHeight())
		m.previewKey = ""
		m.refreshPreview()
		return m, nil

	case stateMsg:
		m.applyState(monitor.State(msg))
		return m, nil

	case notifyMsg:
		m.endedVisitor = msg.VisitorID
		text := msg.Message
		if msg.VisitorID != "" {
			text += " (h)"
		}
		return m, m.setFlash(text, false)

	case tea.KeyMsg:
		if m.inputMode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)

	case tea.MouseMsg:
		return m.updateMouse(msg)

	case replayStartedMsg:
		if m.replay != nil && m.replay.session == msg.session {
			m.replay.gen = msg.gen
			m.replay.status = "streaming"
			for _, ev := range msg.events {
				m.replay.add(ev)
			}
			m.refreshPreview()
		}
		return m, nil

	case replayEventMsg:
		if m.replay != nil && m.replay.gen == msg.gen {
			m.replay.add(msg.event)
			m.refreshPreview()
		}
		return m, nil

	case replayOpenedMsg:
		if msg.err == nil || m.replay == nil || m.replay.session != msg.session {
			return m, nil
		}
		m.replay = nil
		m.refreshPreview()
		if errors.Is(msg.err, replay.ErrNoRecording) {
			return m, m.setFlash("No recording data for "+shortID(msg.session), true)
		}
		return m, m.setFlash("Replay failed: "+msg.err.Error(), true)

	case replayDoneMsg:
		if m.replay != nil && m.replay.session == msg.session {
			m.replay.status = replayStatus(msg.stats, msg.err)
			m.refreshPreview()
		}
		return m, nil

	case replayClosedMsg:
		if msg.err != nil {
			log.Warn(m.app.ctx, log.KV{K: "msg", V: "closing replay"}, log.KV{K: "err", V: msg.err.Error()})
		}
		return m, nil

	case historyLoadedMsg:
		if msg.err != nil {
			return m, m.setFlash("History failed: "+msg.err.Error(), true)
		}
		h := msg.history
		m.historyOverride = &h
		m.showHistory = true
		m.refreshPreview()
		return m, nil

	case actionDoneMsg:
		if msg.reloadHistory {
			m.applyState(m.mon.State())
			m.mon.ReloadHistory()
		}
		if msg.err != nil {
			return m, m.setFlash(msg.err.Error(), true)
		}
		return m, m.setFlash(msg.text, false)

	case clearFlashMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
		}
		return m, nil
	}

	return m, tea.Batch(cmds...)
}

func (m board) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Back):
		switch {
		case m.replay != nil:
			m.replay = nil
			m.refreshPreview()
			return m, m.app.closeReplayCmd()
		case m.showHistory:
			m.showHistory = false
			m.historyOverride = nil
			m.refreshPreview()
		case m.pane == paneLive && !m.state.Selection.IsNone():
			m.applyState(m.mon.ClearSelection())
		}
		return m, nil

	case key.Matches(msg, keys.Up):
		m.moveCursor(-1)
		return m, nil

	case key.Matches(msg, keys.Down):
		m.moveCursor(1)
		return m, nil

	case key.Matches(msg, keys.PreviewUp):
		m.preview.LineUp(m.panelHeight() / 2)
		return m, nil

	case key.Matches(msg, keys.PreviewDn):
		m.preview.LineDown(m.panelHeight() / 2)
		return m, nil

	case key.Matches(msg, keys.PageUp):
		m.preview.LineUp(m.panelHeight())
		return m, nil

	case key.Matches(msg, keys.PageDown):
		m.preview.LineDown(m.panelHeight())
		return m, nil

	case key.Matches(msg, keys.Archive):
		return m.togglePane()

	case key.Matches(msg, keys.Filter):
		if m.pane != paneLive {
			return m, nil
		}
		m.applyState(m.mon.CycleFilter())
		return m, m.setFlash("filter: "+m.state.Filter.String(), false)

	case key.Matches(msg, keys.History):
		if m.showHistory {
			m.showHistory = false
			m.historyOverride = nil
			m.refreshPreview()
			return m, nil
		}
		if m.endedVisitor != "" {
			visitor := m.endedVisitor
			m.endedVisitor = ""
			return m, m.app.historyCmd(visitor)
		}
		if s := m.selected(); s != nil && s.VisitorID != m.state.History.VisitorID && s.VisitorID != "" {
			return m, m.app.historyCmd(s.VisitorID)
		}
		m.showHistory = true
		m.refreshPreview()
		return m, nil

	case key.Matches(msg, keys.Search):
		if m.pane != paneArchive {
			return m, nil
		}
		m.startInput(inputSearch, "Search archived sessions...", m.state.ArchiveQuery.Search)
		return m, textinput.Blink
	}

	s := m.selected()
	if s == nil {
		return m, nil
	}
	switch {
	case key.Matches(msg, keys.Replay):
		m.replay = &replayView{session: s.ID, status: "loading"}
		m.refreshPreview()
		return m, m.app.openReplayCmd(s.ID)

	case key.Matches(msg, keys.Follow):
		if m.pane != paneLive {
			return m, nil
		}
		m.applyState(m.mon.ToggleFollow(s.ID))
		if id, ok := m.state.Following(); ok {
			return m, m.setFlash("following "+shortID(id), false)
		}
		return m, m.setFlash("unfollowed", false)

	case key.Matches(msg, keys.Copy):
		return m, copyCmd(s.ID)

	case key.Matches(msg, keys.VIP):
		return m, m.app.sessionActionCmd(s.ID, api.ActionVIP)

	case key.Matches(msg, keys.Coupon):
		return m, m.app.sessionActionCmd(s.ID, api.ActionCoupon)

	case key.Matches(msg, keys.Email):
		return m, m.app.sessionActionCmd(s.ID, api.ActionEmail)

	case key.Matches(msg, keys.Label):
		if s.VisitorID == "" {
			return m, m.setFlash("session has no visitor", true)
		}
		label := ""
		if s.Visitor != nil {
			label = s.Visitor.Label
		}
		m.inputFor = s.VisitorID
		m.startInput(inputLabel, "Visitor label...", label)
		return m, textinput.Blink
	}
	return m, nil
}

func (m *board) startInput(mode inputMode, placeholder, value string) {
	m.inputMode = mode
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m board) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.inputMode = inputNone
		m.input.Blur()
		return m, nil

	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		mode := m.inputMode
		m.inputMode = inputNone
		m.input.Blur()
		switch mode {
		case inputLabel:
			return m, m.app.labelCmd(m.inputFor, value)
		case inputSearch:
			q := m.state.ArchiveQuery
			q.Search = value
			m.mon.SetArchiveQuery(q)
			m.cursor, m.listOffset = 0, 0
			mon, ctx := m.mon, m.app.ctx
			return m, func() tea.Msg {
				if err := mon.RefreshArchive(ctx); err != nil {
					return actionDoneMsg{err: err}
				}
				return nil
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m board) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	items := m.items()
	if !m.ready || len(items) == 0 {
		return m, nil
	}

	region, itemIdx := m.hitTest(msg.X, msg.Y)

	switch {
	case region == regionList && msg.Button == tea.MouseButtonWheelUp:
		if m.listOffset > 0 {
			m.listOffset--
		}
		return m, nil

	case region == regionList && msg.Button == tea.MouseButtonWheelDown:
		visibleItems := m.panelHeight() / linesPerItem
		maxOffset := max(len(items)-visibleItems, 0)
		if m.listOffset < maxOffset {
			m.listOffset++
		}
		return m, nil

	case region == regionList && msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
		if itemIdx >= 0 && itemIdx < len(items) && m.cursor != itemIdx {
			m.moveCursor(itemIdx - m.cursor)
		}
		return m, nil

	case region == regionPreview && (msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown):
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m board) togglePane() (tea.Model, tea.Cmd) {
	m.cursor, m.listOffset = 0, 0
	m.replay = nil
	m.showHistory = false
	m.historyOverride = nil

	if m.pane == paneArchive {
		m.pane = paneLive
		if !m.app.archivePoll {
			m.mon.StopArchive()
		}
		m.syncCursor()
		m.refreshPreview()
		return m, m.app.closeReplayCmd()
	}

	m.pane = paneArchive
	m.refreshPreview()
	mon := m.mon
	return m, tea.Batch(m.app.closeReplayCmd(), func() tea.Msg {
		if err := mon.StartArchive(); err != nil {
			return actionDoneMsg{err: err}
		}
		return nil
	})
}

// applyState takes a newer monitor state and re-syncs the cursor and preview.
func (m *board) applyState(st monitor.State) {
	if st.Version <= m.state.Version {
		return
	}
	m.state = st
	if m.pane == paneLive {
		m.syncCursor()
	} else if m.cursor >= len(st.Archived) {
		m.cursor = max(len(st.Archived)-1, 0)
	}
	m.adjustListScroll(m.panelHeight())
	if m.replay == nil {
		m.refreshPreview()
	}
}

// syncCursor puts the live cursor on the reconciled selection.
func (m *board) syncCursor() {
	if cur := m.state.Current; cur != nil {
		for i, s := range m.state.Visible {
			if s.ID == cur.ID {
				m.cursor = i
				return
			}
		}
	}
	if m.cursor >= len(m.state.Visible) {
		m.cursor = max(len(m.state.Visible)-1, 0)
	}
}

func (m *board) moveCursor(delta int) {
	items := m.items()
	next := m.cursor + delta
	if next < 0 || next >= len(items) {
		return
	}
	m.cursor = next
	if m.pane == paneLive {
		m.applyState(m.mon.Select(items[next].ID))
	}
	m.adjustListScroll(m.panelHeight())
	if m.replay == nil {
		m.refreshPreview()
	}
}

func (m board) items() []model.Session {
	if m.pane == paneArchive {
		return m.state.Archived
	}
	return m.state.Visible
}

// selected is what the preview and the session keys act on: the reconciled
// selection in the live pane, the cursor row in the archive pane.
func (m board) selected() *model.Session {
	if m.pane == paneLive {
		return m.state.Current
	}
	if m.cursor < len(m.state.Archived) {
		s := m.state.Archived[m.cursor]
		return &s
	}
	return nil
}

// View renders the full TUI.
func (m board) View() string {
	if m.quitting || !m.ready {
		return ""
	}

	// Layout dimensions
	listW := m.listWidth()
	previewW := m.previewWidth()
	panelH := m.panelHeight()

	topRow := m.headerRow()
	if m.inputMode != inputNone {
		topRow = m.input.View()
	}

	// List panel
	listPanel := stylePanel.
		Width(listW).
		Height(panelH).
		Render(m.renderList(listW, panelH))

	// Preview panel
	border := stylePreview
	if m.replay != nil {
		border = styleReplay
	}
	m.preview.Width = previewW
	m.preview.Height = panelH
	previewPanel := border.
		Width(previewW).
		Height(panelH).
		Render(m.preview.View())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, previewPanel)
	return lipgloss.JoinVertical(lipgloss.Left, topRow, panels, m.statusBar())
}

// helper methods

func (m board) listWidth() int {
	if m.width <= 0 {
		return 40
	}
	// 40% for list, minus border padding
	w := m.width*40/100 - 4
	if w < 20 {
		w = 20
	}
	return w
}

func (m board) previewWidth() int {
	if m.width <= 0 {
		return 60
	}
	// 60% for preview, minus border padding
	w := m.width*60/100 - 4
	if w < 20 {
		w = 20
	}
	return w
}

func (m board) panelHeight() int {
	if m.height <= 0 {
		return 20
	}
	// Subtract header row (1) + status bar (1) + borders (4)
	h := m.height - 6
	if h < 5 {
		h = 5
	}
	return h
}

type mouseRegion int

const (
	regionNone mouseRegion = iota
	regionList
	regionPreview
)

// hitTest maps terminal coordinates to a panel region and list item index.
func (m board) hitTest(x, y int) (mouseRegion, int) {
	pH := m.panelHeight()
	contentYStart := 2 // header row (1) + top border (1)
	contentYEnd := contentYStart + pH - 1

	if y < contentYStart || y > contentYEnd {
		return regionNone, -1
	}
	relY := y - contentYStart

	lw := m.listWidth()
	listBoxRight := lw + 1 // col 0=border, 1..lw=content, lw+1=border

	if x >= 1 && x <= lw {
		itemIndex := m.listOffset + (relY / linesPerItem)
		return regionList, itemIndex
	}

	if x > listBoxRight+1 {
		return regionPreview, -1
	}

	return regionNone, -1
}

// headerRow shows the live aggregates, or the archive query.
func (m board) headerRow() string {
	st := m.state
	if m.pane == paneArchive {
		q := st.ArchiveQuery.Search
		if q == "" {
			q = "all"
		}
		return styleTitle.Render(fmt.Sprintf("ARCHIVE  %d sessions  search: %s", len(st.Archived), q))
	}
	parts := []string{
		fmt.Sprintf("LIVE  %d online (%d unique)", st.Count, st.UniqueCount),
		fmt.Sprintf("funnel %d/%d/%d", st.Funnel.Products, st.Funnel.Cart, st.Funnel.Checkout),
		fmt.Sprintf("intent H%d M%d L%d", st.Intent.High, st.Intent.Medium, st.Intent.Low),
		"filter: " + st.Filter.String(),
	}
	if id, ok := st.Following(); ok {
		parts = append(parts, styleFollow.Render("following "+shortID(id)))
	}
	return styleTitle.Render(strings.Join(parts, "  ·  "))
}

func (m board) statusBar() string {
	if m.flash != "" {
		if m.flashErr {
			return styleFlashError.Render(m.flash)
		}
		return styleFlash.Render(m.flash)
	}
	var parts []string
	if m.state.Loaded() {
		parts = append(parts, "updated "+m.state.PolledAt.Local().Format("15:04:05"))
	}
	if m.state.Stale {
		parts = append(parts, "selection left the feed")
	}
	if m.inputMode != inputNone {
		parts = append(parts, "Enter confirm", "Esc cancel")
		return styleHelp.Render(strings.Join(parts, " | "))
	}
	parts = append(parts,
		"enter replay",
		"f follow",
		"t filter",
		"h history",
		"tab archive",
		"v/c/m vip/coupon/email",
		"L label",
		"y copy",
		"q quit",
	)
	return styleHelp.Render(strings.Join(parts, " | "))
}
