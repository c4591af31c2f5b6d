package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Zuo-Peng/vmon/internal/model"
	"github.com/Zuo-Peng/vmon/internal/render"
	"github.com/Zuo-Peng/vmon/internal/replay"
)

// maxReplayLines bounds the replay pane; older lines scroll away.
const maxReplayLines = 5000

type replayStartedMsg struct {
	gen     uint64
	session string
	events  []model.RecordedEvent
}

type replayEventMsg struct {
	gen   uint64
	event model.RecordedEvent
}

type replayOpenedMsg struct {
	session string
	err     error
}

type replayDoneMsg struct {
	session string
	stats   replay.TailStats
	err     error
}

type replayClosedMsg struct{ err error }

// replayView is the replay pane. gen identifies the engine feeding it so
// events from a torn-down engine are dropped.
type replayView struct {
	gen     uint64
	session string
	origin  int64
	lines   []string
	events  int
	status  string
}

func (v *replayView) add(ev model.RecordedEvent) {
	if v.events == 0 {
		v.origin = ev.Timestamp
	}
	v.events++
	v.lines = append(v.lines, render.ReplayEvent(ev, v.origin))
	if len(v.lines) > maxReplayLines {
		v.lines = v.lines[len(v.lines)-maxReplayLines:]
	}
}

func (v *replayView) content() string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- replay %s --- %d events, %s\n", shortID(v.session), v.events, v.status)
	b.WriteString(strings.Join(v.lines, "\n"))
	return b.String()
}

// engine forwards a playback stream into the program. Append blocks until
// the program takes the event, which keeps events in order.
type engine struct {
	app *App
	gen uint64
}

func (e *engine) Append(ev model.RecordedEvent) error {
	e.app.send(replayEventMsg{gen: e.gen, event: ev})
	return nil
}

func (e *engine) Close() error { return nil }

func (a *App) engineFactory() replay.EngineFactory {
	return func(sessionID string, initial []model.RecordedEvent) (replay.Engine, error) {
		a.mu.Lock()
		running := a.program != nil
		a.mu.Unlock()
		if !running {
			return nil, errors.New("terminal UI not running")
		}
		gen := a.replayGen.Add(1)
		a.send(replayStartedMsg{gen: gen, session: sessionID, events: append([]model.RecordedEvent(nil), initial...)})
		return &engine{app: a, gen: gen}, nil
	}
}

func (a *App) replayDone(sessionID string, stats replay.TailStats, err error) {
	a.send(replayDoneMsg{session: sessionID, stats: stats, err: err})
}

func (a *App) openReplayCmd(sessionID string) tea.Cmd {
	return func() tea.Msg {
		return replayOpenedMsg{session: sessionID, err: a.dialog.Open(a.ctx, sessionID)}
	}
}

func (a *App) closeReplayCmd() tea.Cmd {
	return func() tea.Msg {
		return replayClosedMsg{err: a.dialog.Close()}
	}
}

func replayStatus(stats replay.TailStats, err error) string {
	switch {
	case err != nil:
		return "stopped: " + err.Error()
	case stats.Reason == replay.StopIdle:
		return fmt.Sprintf("concluded after %d chunks", stats.Chunks+1)
	case stats.Reason == replay.StopCanceled:
		return "closed"
	default:
		return "complete"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
