package reconcile

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Zuo-Peng/vmon/internal/model"
)

type NotificationKind string

// NotifySessionEnded fires once when a followed session leaves the feed.
const NotifySessionEnded NotificationKind = "session_ended"

// Notification is a one-time message for the operator. VisitorID, when set,
// lets the UI offer a jump to the visitor's history.
type Notification struct {
	ID        string
	Kind      NotificationKind
	SessionID string
	VisitorID string
	Message   string
	At        time.Time
}

// Follow pins id: it becomes the selection on every reconcile and is sorted
// to the front of the visible list until it disappears or Unfollow is called.
func (r *Reconciler) Follow(id string) {
	r.sel = Followed(id)
	r.current = r.lookup(id)
}

// Unfollow leaves follow mode. The session stays selected explicitly so the
// operator keeps their place. It reports whether follow mode was active.
func (r *Reconciler) Unfollow() bool {
	id, ok := r.sel.Following()
	if !ok {
		return false
	}
	r.sel = Explicit(id)
	return true
}

// Following returns the pinned session id, if any.
func (r *Reconciler) Following() (string, bool) {
	return r.sel.Following()
}

// resolveFollow runs the follow step of a reconcile. found is nil when the
// pinned session is gone; in that case follow mode has already been left and
// the returned notification is the only one emitted for it.
func (r *Reconciler) resolveFollow(filtered []model.Session) (found *model.Session, ended *Notification) {
	id, ok := r.sel.Following()
	if !ok {
		return nil, nil
	}
	if s := find(filtered, id); s != nil {
		return s, nil
	}

	r.sel = NoSelection()
	n := &Notification{
		ID:        uuid.NewString(),
		Kind:      NotifySessionEnded,
		SessionID: id,
		At:        r.now(),
		Message:   fmt.Sprintf("Followed session %s ended", shortID(id)),
	}
	if r.current != nil && r.current.ID == id {
		n.VisitorID = r.current.VisitorID
		n.Message = fmt.Sprintf("Followed session %s ended", r.current.ShortID())
	}
	if n.VisitorID != "" {
		n.Message += "; open visitor history?"
	}
	return nil, n
}

// pinFront returns a copy of sessions with id moved to index 0.
func pinFront(sessions []model.Session, id string) []model.Session {
	out := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.ID == id {
			out = append(out, s)
			break
		}
	}
	for _, s := range sessions {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
