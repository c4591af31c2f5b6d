// Package schedule owns the monitor's background loops as named tasks so
// they can be listed, replaced and cancelled deterministically.
package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"goa.design/clue/log"
)

var ErrStopped = errors.New("scheduler stopped")

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type Scheduler struct {
	ctx    context.Context
	stop   context.CancelFunc
	mu     sync.Mutex
	tasks  map[string]*task
	wg     sync.WaitGroup
	closed bool
}

// New returns a scheduler whose tasks all end when ctx is cancelled or Stop
// is called.
func New(ctx context.Context) *Scheduler {
	ctx, stop := context.WithCancel(ctx)
	return &Scheduler{ctx: ctx, stop: stop, tasks: make(map[string]*task)}
}

// Every runs fn immediately and then on every interval tick until the task
// is cancelled. Each run gets its own goroutine, so a slow run never delays
// the cadence and runs may overlap. A task already registered under name is
// cancelled first.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context)) error {
	return s.start(name, func(ctx context.Context) {
		var runs sync.WaitGroup
		defer runs.Wait()

		fire := func() {
			runs.Add(1)
			go func() {
				defer runs.Done()
				fn(ctx)
			}()
		}

		fire()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fire()
			}
		}
	})
}

// Go runs a self-terminating loop under name. The task is removed from the
// scheduler when fn returns.
func (s *Scheduler) Go(name string, fn func(ctx context.Context)) error {
	return s.start(name, fn)
}

func (s *Scheduler) start(name string, fn func(ctx context.Context)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStopped
	}
	prev := s.tasks[name]
	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{cancel: cancel, done: make(chan struct{})}
	s.tasks[name] = t
	s.wg.Add(1)
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	go func() {
		defer s.wg.Done()
		defer close(t.done)
		defer s.forget(name, t)
		fn(log.With(ctx, log.KV{K: "task", V: name}))
	}()
	return nil
}

func (s *Scheduler) forget(name string, t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[name] == t {
		delete(s.tasks, name)
	}
	t.cancel()
}

// Cancel stops the named task and waits for it to return. It reports whether
// a task was running.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.cancel()
	<-t.done
	return true
}

// Running lists the names of live tasks, sorted.
func (s *Scheduler) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stop cancels every task and waits for all of them. Later registrations
// fail with ErrStopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()
	s.wg.Wait()
}
