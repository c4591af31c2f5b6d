package replay

import (
	"context"
	"errors"
	"sync"
	"time"

	"goa.design/clue/log"
)

// TailTask is the scheduler task name of the tail loop. There is at most one
// per dialog.
const TailTask = "replay-tail"

// Runner runs named cancelable tasks; *schedule.Scheduler implements it.
type Runner interface {
	Go(name string, fn func(ctx context.Context)) error
	Cancel(name string) bool
}

type DialogOptions struct {
	Delay       time.Duration
	IdleCeiling int
	// OnDone is called from the tail goroutine when tailing ends, and
	// right after Open when there was nothing to tail.
	OnDone func(sessionID string, stats TailStats, err error)
	// OnIteration is handed to every tailer.
	OnIteration func(Iteration)
}

// run is one opened replay. stats and err are written before done closes.
type run struct {
	session string
	engine  Engine
	done    chan struct{}
	stats   TailStats
	err     error
}

// Dialog is one replay view. It owns at most one engine at a time: Open
// tears the previous engine and its tail loop down before loading the next
// session.
type Dialog struct {
	loader  *Loader
	fetcher ChunkFetcher
	runner  Runner
	opts    DialogOptions

	mu  sync.Mutex
	cur *run
}

func NewDialog(fetcher ChunkFetcher, factory EngineFactory, runner Runner, opts DialogOptions) *Dialog {
	if opts.IdleCeiling <= 0 {
		opts.IdleCeiling = DefaultIdleCeiling
	}
	return &Dialog{
		loader:  NewLoader(fetcher, factory),
		fetcher: fetcher,
		runner:  runner,
		opts:    opts,
	}
}

// Open closes any current replay, bootstraps sessionID and starts tailing
// when the first chunk says more data is ready. On error the dialog is left
// closed.
func (d *Dialog) Open(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.closeLocked(); err != nil {
		log.Warn(ctx, log.KV{K: "msg", V: "closing previous replay"}, log.KV{K: "err", V: err.Error()})
	}

	engine, hasMore, err := d.loader.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	r := &run{session: sessionID, engine: engine, done: make(chan struct{}), stats: TailStats{Index: 1}}

	if !hasMore {
		close(r.done)
		d.cur = r
		d.notify(r)
		return nil
	}

	tailer := NewTailer(d.fetcher, engine, d.opts.Delay, d.opts.IdleCeiling)
	tailer.OnIteration = d.opts.OnIteration
	err = d.runner.Go(TailTask, func(ctx context.Context) {
		r.stats, r.err = tailer.Run(ctx, sessionID)
		close(r.done)
		d.notify(r)
	})
	if err != nil {
		engine.Close()
		return err
	}
	d.cur = r
	return nil
}

// Close stops tailing, waits for the loop and disposes of the engine.
func (d *Dialog) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *Dialog) closeLocked() error {
	r := d.cur
	if r == nil {
		return nil
	}
	d.cur = nil
	select {
	case <-r.done:
	default:
		d.runner.Cancel(TailTask)
		<-r.done
	}
	return r.engine.Close()
}

// Session returns the open session id, empty when closed.
func (d *Dialog) Session() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cur == nil {
		return ""
	}
	return d.cur.session
}

// Wait blocks until the current tail loop ends and returns its outcome.
func (d *Dialog) Wait(ctx context.Context) (TailStats, error) {
	d.mu.Lock()
	r := d.cur
	d.mu.Unlock()
	if r == nil {
		return TailStats{}, errors.New("no replay open")
	}
	select {
	case <-r.done:
		return r.stats, r.err
	case <-ctx.Done():
		return TailStats{}, ctx.Err()
	}
}

func (d *Dialog) notify(r *run) {
	if d.opts.OnDone != nil {
		d.opts.OnDone(r.session, r.stats, r.err)
	}
}
