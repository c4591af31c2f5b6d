package tui

import (
	"context"
	"fmt"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/vmon/internal/api"
	"github.com/Zuo-Peng/vmon/internal/model"
	"github.com/Zuo-Peng/vmon/internal/monitor"
	"github.com/Zuo-Peng/vmon/internal/reconcile"
	"github.com/Zuo-Peng/vmon/internal/replay"
	"github.com/Zuo-Peng/vmon/internal/schedule"
)

// backend serves both the monitor and the board.
type backend struct {
	mu       sync.Mutex
	live     []model.Session
	archived []model.Session
	actions  []string
}

func (b *backend) LiveSessions(ctx context.Context) (*api.LiveSessions, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &api.LiveSessions{Sessions: b.live, Count: len(b.live), UniqueCount: len(b.live)}, nil
}

func (b *backend) ArchivedSessions(ctx context.Context, q api.ArchiveQuery) ([]model.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.archived, nil
}

func (b *backend) VisitorSessions(ctx context.Context, visitorID string) ([]model.Session, error) {
	return []model.Session{{ID: "old-" + visitorID, VisitorID: visitorID}}, nil
}

func (b *backend) ReplayChunk(ctx context.Context, id string, n int) (model.Chunk, error) {
	return model.Chunk{Index: n}, nil
}

func (b *backend) SessionAction(ctx context.Context, id string, action api.Action) (*api.ActionResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions = append(b.actions, fmt.Sprintf("%s:%s", action, id))
	return &api.ActionResult{Success: true}, nil
}

func (b *backend) SetVisitorLabel(ctx context.Context, visitorID, label string) (*api.ActionResult, error) {
	return &api.ActionResult{Success: true}, nil
}

func session(id, visitor string) model.Session {
	return model.Session{ID: id, VisitorID: visitor, Status: model.StatusActive, DeviceType: "desktop"}
}

// newTestBoard returns a sized board showing the first live snapshot.
func newTestBoard(t *testing.T, sessions ...model.Session) (board, *monitor.Monitor, *backend) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	sched := schedule.New(ctx)
	t.Cleanup(func() {
		sched.Stop()
		cancel()
	})

	be := &backend{live: sessions}
	app := New(Options{Backend: be, Runner: sched})
	mon := monitor.New(be, sched, monitor.Options{})
	require.NoError(t, mon.Refresh(ctx))

	m := newBoard(app, mon)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(board)
	return m, mon, be
}

func press(t *testing.T, m board, k string) (board, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(board), cmd
}

func TestBoardShowsAutoSelection(t *testing.T) {
	m, _, _ := newTestBoard(t, session("a", "v1"), session("b", "v2"))

	require.NotNil(t, m.selected())
	assert.Equal(t, "a", m.selected().ID)
	assert.Equal(t, 0, m.cursor)

	view := m.View()
	assert.Contains(t, view, "LIVE  2 online")
	assert.Contains(t, view, "filter: all")
}

func TestBoardIgnoresOlderState(t *testing.T) {
	m, _, _ := newTestBoard(t, session("a", "v1"), session("b", "v2"))

	old := m.state
	m, _ = press(t, m, "down")
	require.Equal(t, "b", m.selected().ID)

	next, _ := m.Update(stateMsg(old))
	m = next.(board)
	assert.Equal(t, "b", m.selected().ID)
	assert.Equal(t, 1, m.cursor)
	assert.Greater(t, m.state.Version, old.Version)
}

func TestBoardCursorTracksSelection(t *testing.T) {
	m, mon, be := newTestBoard(t, session("a", "v1"), session("b", "v2"))

	m, _ = press(t, m, "down")
	assert.Equal(t, reconcile.SelectExplicit, m.state.Selection.Kind())

	// b moves to the front; the cursor follows it
	be.mu.Lock()
	be.live = []model.Session{session("b", "v2"), session("a", "v1")}
	be.mu.Unlock()
	require.NoError(t, mon.Refresh(context.Background()))
	next, _ := m.Update(stateMsg(mon.State()))
	m = next.(board)
	assert.Equal(t, 0, m.cursor)
	assert.Equal(t, "b", m.selected().ID)

	m, _ = press(t, m, "esc")
	assert.True(t, m.state.Selection.IsNone())
}

func TestBoardFollowKey(t *testing.T) {
	m, _, _ := newTestBoard(t, session("a", "v1"), session("b", "v2"))

	m, _ = press(t, m, "down")
	m, cmd := press(t, m, "f")
	require.NotNil(t, cmd)
	id, ok := m.state.Following()
	require.True(t, ok)
	assert.Equal(t, "b", id)
	assert.Equal(t, 0, m.cursor, "followed session is pinned first")
	assert.Equal(t, "following b", m.flash)

	m, _ = press(t, m, "f")
	_, ok = m.state.Following()
	assert.False(t, ok)
	assert.Equal(t, "unfollowed", m.flash)
}

func TestBoardFilterKey(t *testing.T) {
	m, _, _ := newTestBoard(t, session("a", "v1"))

	m, _ = press(t, m, "t")
	assert.Equal(t, reconcile.FilterLive, m.state.Filter)
	assert.Equal(t, "filter: live", m.flash)
}

func TestBoardNotification(t *testing.T) {
	m, _, _ := newTestBoard(t, session("a", "v1"))

	next, cmd := m.Update(notifyMsg(reconcile.Notification{
		Kind:      reconcile.NotifySessionEnded,
		SessionID: "gone",
		VisitorID: "v9",
		Message:   "Followed session ended",
	}))
	m = next.(board)
	require.NotNil(t, cmd)
	assert.Equal(t, "v9", m.endedVisitor)
	assert.Equal(t, "Followed session ended (h)", m.flash)

	// h opens the ended visitor's history
	m, cmd = press(t, m, "h")
	require.NotNil(t, cmd)
	assert.Empty(t, m.endedVisitor)
	loaded, ok := cmd().(historyLoadedMsg)
	require.True(t, ok)
	require.NoError(t, loaded.err)
	assert.Equal(t, "v9", loaded.history.VisitorID)

	next, _ = m.Update(loaded)
	m = next.(board)
	assert.True(t, m.showHistory)
	require.NotNil(t, m.historyOverride)
	assert.Equal(t, "history:v9", m.previewKey)
}

func TestBoardReplayMessages(t *testing.T) {
	m, _, _ := newTestBoard(t, session("a", "v1"))

	m, cmd := press(t, m, "enter")
	require.NotNil(t, cmd)
	require.NotNil(t, m.replay)
	assert.Equal(t, "loading", m.replay.status)

	next, _ := m.Update(replayStartedMsg{gen: 2, session: "a", events: []model.RecordedEvent{
		{Type: 4, Timestamp: 1000},
		{Type: 2, Timestamp: 1500},
	}})
	m = next.(board)
	assert.Equal(t, 2, m.replay.events)

	// events from an engine that was torn down are dropped
	next, _ = m.Update(replayEventMsg{gen: 1, event: model.RecordedEvent{Type: 3, Timestamp: 1600}})
	m = next.(board)
	assert.Equal(t, 2, m.replay.events)

	next, _ = m.Update(replayEventMsg{gen: 2, event: model.RecordedEvent{Type: 3, Timestamp: 1600}})
	m = next.(board)
	assert.Equal(t, 3, m.replay.events)

	next, _ = m.Update(replayDoneMsg{session: "a", stats: replay.TailStats{Chunks: 1, Reason: replay.StopIdle}})
	m = next.(board)
	assert.Equal(t, "concluded after 2 chunks", m.replay.status)
	assert.Contains(t, m.replay.content(), "3 events")

	m, cmd = press(t, m, "esc")
	assert.Nil(t, m.replay)
	require.NotNil(t, cmd)
}

func TestBoardReplayWithoutRecording(t *testing.T) {
	m, _, _ := newTestBoard(t, session("a", "v1"))

	m, _ = press(t, m, "enter")
	next, _ := m.Update(replayOpenedMsg{session: "a", err: fmt.Errorf("load: %w", replay.ErrNoRecording)})
	m = next.(board)
	assert.Nil(t, m.replay)
	assert.True(t, m.flashErr)
	assert.Equal(t, "No recording data for a", m.flash)
}

func TestBoardSessionAction(t *testing.T) {
	m, _, be := newTestBoard(t, session("a", "v1"))

	m, cmd := press(t, m, "v")
	require.NotNil(t, cmd)
	done, ok := cmd().(actionDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)

	next, _ := m.Update(done)
	m = next.(board)
	assert.Equal(t, "vip sent for a", m.flash)
	assert.Equal(t, []string{"vip:a"}, be.actions)
}

func TestBoardFlashExpiry(t *testing.T) {
	m, _, _ := newTestBoard(t, session("a", "v1"))

	_ = m.setFlash("first", false)
	_ = m.setFlash("second", false)

	next, _ := m.Update(clearFlashMsg{seq: 1})
	m = next.(board)
	assert.Equal(t, "second", m.flash, "stale timer keeps the newer flash")

	next, _ = m.Update(clearFlashMsg{seq: 2})
	m = next.(board)
	assert.Empty(t, m.flash)
}

func TestBoardArchivePane(t *testing.T) {
	m, mon, be := newTestBoard(t, session("a", "v1"))
	be.archived = []model.Session{
		{ID: "old-1", VisitorID: "v3", Status: model.StatusEnded},
		{ID: "old-2", VisitorID: "v4", Status: model.StatusEnded},
	}

	m, cmd := press(t, m, "tab")
	require.NotNil(t, cmd)
	assert.Equal(t, paneArchive, m.pane)
	assert.Nil(t, m.selected())

	require.NoError(t, mon.RefreshArchive(context.Background()))
	next, _ := m.Update(stateMsg(mon.State()))
	m = next.(board)
	require.NotNil(t, m.selected())
	assert.Equal(t, "old-1", m.selected().ID)

	m, _ = press(t, m, "down")
	assert.Equal(t, "old-2", m.selected().ID)
	assert.Contains(t, m.View(), "ARCHIVE  2 sessions")

	// follow only applies to the live feed
	m, _ = press(t, m, "f")
	_, ok := m.state.Following()
	assert.False(t, ok)

	m, _ = press(t, m, "tab")
	assert.Equal(t, paneLive, m.pane)
	assert.Equal(t, "a", m.selected().ID)
}

func TestBoardSearchInput(t *testing.T) {
	m, mon, _ := newTestBoard(t, session("a", "v1"))

	m, _ = press(t, m, "/")
	assert.Equal(t, inputNone, m.inputMode, "search is an archive key")

	m, _ = press(t, m, "tab")
	m, _ = press(t, m, "/")
	require.Equal(t, inputSearch, m.inputMode)
	for _, r := range "shoes" {
		m, _ = press(t, m, string(r))
	}
	m, cmd := press(t, m, "enter")
	require.NotNil(t, cmd)
	assert.Equal(t, inputNone, m.inputMode)
	assert.Equal(t, "shoes", mon.State().ArchiveQuery.Search)
}

func TestHitTest(t *testing.T) {
	m, _, _ := newTestBoard(t, session("a", "v1"))

	region, idx := m.hitTest(2, 2)
	assert.Equal(t, regionList, region)
	assert.Equal(t, 0, idx)

	region, idx = m.hitTest(2, 2+linesPerItem)
	assert.Equal(t, regionList, region)
	assert.Equal(t, 1, idx)

	region, _ = m.hitTest(m.listWidth()+5, 3)
	assert.Equal(t, regionPreview, region)

	region, _ = m.hitTest(2, 0)
	assert.Equal(t, regionNone, region)
}
