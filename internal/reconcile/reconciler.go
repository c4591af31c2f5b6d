// Package reconcile merges live-session snapshots into the operator's view:
// filtering, selection (none, explicit, followed) and follow-mode
// notifications. A Reconciler is not safe for concurrent use; the monitor
// serializes access.
package reconcile

import (
	"time"

	"github.com/Zuo-Peng/vmon/internal/model"
)

// Result is the view after one reconcile. Visible and Current are fresh
// copies owned by the caller.
type Result struct {
	Visible       []model.Session
	Selection     Selection
	Current       *model.Session // nil when nothing is shown
	Auto          bool           // Current was picked automatically
	Stale         bool           // Current is no longer in the filtered feed
	Notifications []Notification
}

type Reconciler struct {
	filter  Filter
	sel     Selection
	current *model.Session
	last    []model.Session // last raw snapshot, for re-filtering
	visible []model.Session
	now     func() time.Time
}

func New() *Reconciler {
	return &Reconciler{now: time.Now}
}

func (r *Reconciler) Filter() Filter       { return r.filter }
func (r *Reconciler) Selection() Selection { return r.sel }

// SetFilter changes the filter and re-reconciles the last snapshot.
func (r *Reconciler) SetFilter(f Filter) Result {
	r.filter = f
	return r.Apply(r.last)
}

// Select pins id explicitly, leaving follow mode. The selection is frozen
// against auto-replacement.
func (r *Reconciler) Select(id string) {
	r.sel = Explicit(id)
	r.current = r.lookup(id)
}

// ClearSelection drops any selection, including follow mode.
func (r *Reconciler) ClearSelection() {
	r.sel = NoSelection()
	r.current = nil
}

// Reapply reconciles the last snapshot again, e.g. after a selection change.
func (r *Reconciler) Reapply() Result {
	return r.Apply(r.last)
}

// Apply reconciles a new snapshot against the held selection.
func (r *Reconciler) Apply(sessions []model.Session) Result {
	r.last = sessions
	filtered := r.filter.Apply(sessions)
	res := Result{}

	followed, ended := r.resolveFollow(filtered)
	if ended != nil {
		res.Notifications = append(res.Notifications, *ended)
	}
	if followed != nil {
		r.current = followed
		r.visible = pinFront(filtered, followed.ID)
		return r.result(res)
	}
	r.visible = filtered

	if r.sel.Kind() == SelectExplicit {
		switch s := find(filtered, r.sel.ID()); {
		case s != nil:
			r.current = s
		case r.filter.Realtime():
			r.sel = NoSelection()
		default:
			// historical filters keep the last known record on screen
			res.Stale = r.current != nil
		}
	}

	if r.sel.IsNone() {
		r.current = nil
		if r.filter.Realtime() && len(filtered) > 0 {
			first := filtered[0]
			r.current = &first
			res.Auto = true
		}
	}
	return r.result(res)
}

func (r *Reconciler) result(res Result) Result {
	res.Selection = r.sel
	res.Visible = append([]model.Session(nil), r.visible...)
	if r.current != nil {
		cur := *r.current
		res.Current = &cur
	}
	return res
}

// lookup finds id in the last visible list.
func (r *Reconciler) lookup(id string) *model.Session {
	if s := find(r.visible, id); s != nil {
		return s
	}
	return find(r.last, id)
}

// find returns a copy of the session with id, or nil.
func find(sessions []model.Session, id string) *model.Session {
	for i := range sessions {
		if sessions[i].ID == id {
			s := sessions[i]
			return &s
		}
	}
	return nil
}
