// Package monitor wires the pollers, the reconciler and the history
// aggregator together on a scheduler and publishes immutable State
// snapshots to the UI.
package monitor

import (
	"context"
	"sync"
	"time"

	"goa.design/clue/log"

	"github.com/Zuo-Peng/vmon/internal/api"
	"github.com/Zuo-Peng/vmon/internal/history"
	"github.com/Zuo-Peng/vmon/internal/model"
	"github.com/Zuo-Peng/vmon/internal/poll"
	"github.com/Zuo-Peng/vmon/internal/reconcile"
	"github.com/Zuo-Peng/vmon/internal/schedule"
	"github.com/Zuo-Peng/vmon/internal/telemetry"
)

// Task names on the scheduler.
const (
	LiveTask    = "live-sessions"
	ArchiveTask = "archived-sessions"
	HistoryTask = "visitor-history"
)

// Source is the back office as the monitor sees it.
type Source interface {
	LiveSessions(ctx context.Context) (*api.LiveSessions, error)
	ArchivedSessions(ctx context.Context, q api.ArchiveQuery) ([]model.Session, error)
	VisitorSessions(ctx context.Context, visitorID string) ([]model.Session, error)
}

type Options struct {
	PollInterval    time.Duration
	ArchivePoll     bool
	ArchiveInterval time.Duration
	ArchiveQuery    api.ArchiveQuery
	Filter          reconcile.Filter

	// OnState receives every new State, in order. It must not block for
	// long; it is called from the poll goroutines.
	OnState func(State)
	// OnNotify receives one-time notifications such as a followed session
	// ending.
	OnNotify func(reconcile.Notification)
}

type Monitor struct {
	sched *schedule.Scheduler
	opts  Options

	live       *poll.Poller[*api.LiveSessions]
	liveSeq    poll.Sequencer
	archive    *poll.Poller[[]model.Session]
	archiveSeq poll.Sequencer
	hist       *history.Aggregator

	mu       sync.Mutex
	rec      *reconcile.Reconciler
	last     *api.LiveSessions
	result   reconcile.Result
	archived []model.Session
	query    api.ArchiveQuery
	version  uint64
	polledAt time.Time

	pubMu     sync.Mutex
	published uint64
}

func New(src Source, sched *schedule.Scheduler, opts Options) *Monitor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.ArchiveInterval <= 0 {
		opts.ArchiveInterval = opts.PollInterval
	}
	m := &Monitor{
		sched: sched,
		opts:  opts,
		hist:  history.New(src),
		rec:   reconcile.New(),
		query: opts.ArchiveQuery,
	}
	m.rec.SetFilter(opts.Filter)
	m.live = poll.New("live", src.LiveSessions)
	m.archive = poll.New("archived", func(ctx context.Context) ([]model.Session, error) {
		return src.ArchivedSessions(ctx, m.archiveQuery())
	})
	return m
}

// Start registers the poll tasks. The live poll fires immediately.
func (m *Monitor) Start() error {
	if err := m.sched.Every(LiveTask, m.opts.PollInterval, func(ctx context.Context) {
		m.live.Tick(ctx, func(s poll.Snapshot[*api.LiveSessions]) { m.applyLive(ctx, s) })
	}); err != nil {
		return err
	}
	if m.opts.ArchivePoll {
		return m.StartArchive()
	}
	return nil
}

// StartArchive starts (or restarts) the archived-sessions poll.
func (m *Monitor) StartArchive() error {
	return m.sched.Every(ArchiveTask, m.opts.ArchiveInterval, func(ctx context.Context) {
		m.archive.Tick(ctx, func(s poll.Snapshot[[]model.Session]) { m.applyArchive(ctx, s) })
	})
}

// StopArchive stops the archived-sessions poll; the last list stays.
func (m *Monitor) StopArchive() bool {
	return m.sched.Cancel(ArchiveTask)
}

// Refresh polls the live feed once, synchronously.
func (m *Monitor) Refresh(ctx context.Context) error {
	snap, err := m.live.Poll(ctx)
	if err != nil {
		return err
	}
	m.applyLive(ctx, snap)
	return nil
}

// RefreshArchive polls the archived list once, synchronously.
func (m *Monitor) RefreshArchive(ctx context.Context) error {
	snap, err := m.archive.Poll(ctx)
	if err != nil {
		return err
	}
	m.applyArchive(ctx, snap)
	return nil
}

func (m *Monitor) applyLive(ctx context.Context, snap poll.Snapshot[*api.LiveSessions]) {
	m.mu.Lock()
	if !m.liveSeq.Accept(snap.Seq) {
		m.mu.Unlock()
		telemetry.Count(ctx, "poll.stale", 1)
		log.Debug(ctx, log.KV{K: "msg", V: "stale snapshot discarded"}, log.KV{K: "seq", V: snap.Seq})
		return
	}
	m.last = snap.Value
	m.polledAt = snap.At
	m.result = m.rec.Apply(snap.Value.Sessions)
	notes := m.result.Notifications
	c := m.changeLocked()
	m.mu.Unlock()

	m.afterChange(ctx, c)
	for _, n := range notes {
		log.Info(ctx, log.KV{K: "msg", V: n.Message}, log.KV{K: "session", V: n.SessionID})
		if m.opts.OnNotify != nil {
			m.opts.OnNotify(n)
		}
	}
}

func (m *Monitor) applyArchive(ctx context.Context, snap poll.Snapshot[[]model.Session]) {
	m.mu.Lock()
	if !m.archiveSeq.Accept(snap.Seq) {
		m.mu.Unlock()
		telemetry.Count(ctx, "poll.stale", 1)
		return
	}
	m.archived = snap.Value
	state := m.stateLocked()
	m.mu.Unlock()
	m.publish(state)
}

// change is a published state plus whether its visitor needs a history
// load. Both are taken under m.mu so the tracked visitor always matches the
// newest state.
type change struct {
	state State
	load  bool
}

func (m *Monitor) changeLocked() change {
	state := m.stateLocked()
	visitorID := ""
	if state.Current != nil {
		visitorID = state.Current.VisitorID
	}
	_, load := m.hist.Track(visitorID)
	return change{state: state, load: load}
}

// afterChange publishes the state and starts a history load when the
// selected visitor changed. A newer load replaces an older one on the
// scheduler, so the task loads the latest tracked visitor, not the one
// this change saw.
func (m *Monitor) afterChange(ctx context.Context, c change) {
	m.publish(c.state)
	if !c.load {
		return
	}
	err := m.sched.Go(HistoryTask, func(ctx context.Context) {
		if _, applied, err := m.hist.LoadLatest(ctx); err == nil && applied {
			m.mu.Lock()
			state := m.stateLocked()
			m.mu.Unlock()
			m.publish(state)
		}
	})
	if err != nil {
		log.Debug(ctx, log.KV{K: "msg", V: "history not loaded"}, log.KV{K: "err", V: err.Error()})
	}
}

// publish hands state to OnState unless a newer state went out first.
func (m *Monitor) publish(state State) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()
	if state.Version <= m.published {
		return
	}
	m.published = state.Version
	if m.opts.OnState != nil {
		m.opts.OnState(state)
	}
}

// mutate runs fn on the reconciler and publishes the re-reconciled view.
func (m *Monitor) mutate(fn func(r *reconcile.Reconciler) reconcile.Result) State {
	m.mu.Lock()
	m.result = fn(m.rec)
	c := m.changeLocked()
	m.mu.Unlock()
	m.afterChange(context.Background(), c)
	return c.state
}

// Follow pins id to the top of the list and keeps it selected until it
// leaves the feed.
func (m *Monitor) Follow(id string) State {
	return m.mutate(func(r *reconcile.Reconciler) reconcile.Result {
		r.Follow(id)
		return r.Reapply()
	})
}

func (m *Monitor) Unfollow() State {
	return m.mutate(func(r *reconcile.Reconciler) reconcile.Result {
		r.Unfollow()
		return r.Reapply()
	})
}

// ToggleFollow follows id, or unfollows when id is already followed.
func (m *Monitor) ToggleFollow(id string) State {
	return m.mutate(func(r *reconcile.Reconciler) reconcile.Result {
		if cur, ok := r.Following(); ok && cur == id {
			r.Unfollow()
		} else {
			r.Follow(id)
		}
		return r.Reapply()
	})
}

func (m *Monitor) Select(id string) State {
	return m.mutate(func(r *reconcile.Reconciler) reconcile.Result {
		r.Select(id)
		return r.Reapply()
	})
}

func (m *Monitor) ClearSelection() State {
	return m.mutate(func(r *reconcile.Reconciler) reconcile.Result {
		r.ClearSelection()
		return r.Reapply()
	})
}

func (m *Monitor) SetFilter(f reconcile.Filter) State {
	return m.mutate(func(r *reconcile.Reconciler) reconcile.Result {
		return r.SetFilter(f)
	})
}

// CycleFilter moves to the next filter.
func (m *Monitor) CycleFilter() State {
	return m.mutate(func(r *reconcile.Reconciler) reconcile.Result {
		return r.SetFilter(r.Filter().Next())
	})
}

// SetArchiveQuery changes the archived-list query used by the next poll.
func (m *Monitor) SetArchiveQuery(q api.ArchiveQuery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query = q
}

func (m *Monitor) archiveQuery() api.ArchiveQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query
}

// ReloadHistory refetches the current visitor's history, e.g. after the
// visitor was relabeled.
func (m *Monitor) ReloadHistory() {
	m.mu.Lock()
	m.hist.Invalidate()
	c := m.changeLocked()
	m.mu.Unlock()
	m.afterChange(context.Background(), c)
}

// State returns the current view.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}
