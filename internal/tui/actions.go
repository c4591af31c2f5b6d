package tui

import (
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"goa.design/clue/log"

	"github.com/Zuo-Peng/vmon/internal/api"
	"github.com/Zuo-Peng/vmon/internal/history"
)

const flashDuration = 4 * time.Second

type actionDoneMsg struct {
	text          string
	err           error
	reloadHistory bool
}

type clearFlashMsg struct{ seq int }

func (a *App) sessionActionCmd(sessionID string, action api.Action) tea.Cmd {
	return func() tea.Msg {
		res, err := a.backend.SessionAction(a.ctx, sessionID, action)
		if err != nil {
			log.Error(a.ctx, err, log.KV{K: "msg", V: "session action"}, log.KV{K: "action", V: string(action)})
			return actionDoneMsg{err: err}
		}
		text := res.Message
		if text == "" {
			text = fmt.Sprintf("%s sent for %s", action, shortID(sessionID))
		}
		return actionDoneMsg{text: text}
	}
}

func (a *App) labelCmd(visitorID, label string) tea.Cmd {
	return func() tea.Msg {
		if _, err := a.backend.SetVisitorLabel(a.ctx, visitorID, label); err != nil {
			log.Error(a.ctx, err, log.KV{K: "msg", V: "visitor label"}, log.KV{K: "visitor", V: visitorID})
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{text: fmt.Sprintf("visitor labeled %q", label), reloadHistory: true}
	}
}

func (a *App) historyCmd(visitorID string) tea.Cmd {
	return func() tea.Msg {
		sessions, err := a.backend.VisitorSessions(a.ctx, visitorID)
		return historyLoadedMsg{
			history: history.History{VisitorID: visitorID, Sessions: sessions, LoadedAt: time.Now()},
			err:     err,
		}
	}
}

// copyCmd puts the session id on the clipboard.
func copyCmd(sessionID string) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(sessionID); err != nil {
			return actionDoneMsg{err: fmt.Errorf("clipboard: %w", err)}
		}
		return actionDoneMsg{text: "Copied to clipboard: " + sessionID}
	}
}

// setFlash shows text in the status bar until a newer flash replaces it or
// flashDuration passes.
func (m *board) setFlash(text string, isErr bool) tea.Cmd {
	m.flashSeq++
	m.flash, m.flashErr = text, isErr
	seq := m.flashSeq
	return tea.Tick(flashDuration, func(time.Time) tea.Msg { return clearFlashMsg{seq: seq} })
}
