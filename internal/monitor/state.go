package monitor

import (
	"time"

	"github.com/Zuo-Peng/vmon/internal/api"
	"github.com/Zuo-Peng/vmon/internal/history"
	"github.com/Zuo-Peng/vmon/internal/model"
	"github.com/Zuo-Peng/vmon/internal/reconcile"
)

// State is an immutable view of the monitor. Slices are copies; holders may
// keep it as long as they like.
type State struct {
	Version  uint64
	PolledAt time.Time // zero until the first live snapshot

	Visible   []model.Session
	Current   *model.Session
	Selection reconcile.Selection
	Filter    reconcile.Filter
	Auto      bool
	Stale     bool

	Count       int
	UniqueCount int
	Funnel      model.Funnel
	Intent      model.IntentStats

	History      history.History
	Archived     []model.Session
	ArchiveQuery api.ArchiveQuery
}

// Following returns the followed session id, if any.
func (s State) Following() (string, bool) {
	return s.Selection.Following()
}

// Loaded reports whether a live snapshot has arrived yet.
func (s State) Loaded() bool {
	return !s.PolledAt.IsZero()
}

func (m *Monitor) stateLocked() State {
	m.version++
	st := State{
		Version:      m.version,
		PolledAt:     m.polledAt,
		Visible:      append([]model.Session(nil), m.result.Visible...),
		Selection:    m.result.Selection,
		Filter:       m.rec.Filter(),
		Auto:         m.result.Auto,
		Stale:        m.result.Stale,
		History:      m.hist.Current(),
		Archived:     append([]model.Session(nil), m.archived...),
		ArchiveQuery: m.query,
	}
	if m.result.Current != nil {
		cur := *m.result.Current
		st.Current = &cur
	}
	if m.last != nil {
		st.Count = m.last.Count
		st.UniqueCount = m.last.UniqueCount
		st.Funnel = m.last.Funnel
		st.Intent = m.last.Intent
	}
	return st
}
