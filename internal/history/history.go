// Package history keeps the session history of the visitor behind the
// current selection. It fetches only when that visitor changes; history is
// not live data and is replaced wholesale.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"goa.design/clue/log"

	"github.com/Zuo-Peng/vmon/internal/model"
)

type Fetcher interface {
	VisitorSessions(ctx context.Context, visitorID string) ([]model.Session, error)
}

// History is the last successfully loaded history. VisitorID names whose
// sessions these are, which may lag the tracked visitor after a failure.
type History struct {
	VisitorID string
	Sessions  []model.Session
	LoadedAt  time.Time
}

type Aggregator struct {
	fetcher Fetcher
	now     func() time.Time

	mu      sync.Mutex
	visitor string // tracked visitor
	gen     uint64 // bumped on every visitor change
	current History
}

func New(fetcher Fetcher) *Aggregator {
	return &Aggregator{fetcher: fetcher, now: time.Now}
}

// Track records the visitor of the current selection. It returns the
// generation to load and whether a fetch is needed; the same visitor twice
// in a row never needs one. An empty id stops tracking without touching
// the held history.
func (a *Aggregator) Track(visitorID string) (gen uint64, changed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if visitorID == a.visitor {
		return a.gen, false
	}
	a.visitor = visitorID
	a.gen++
	return a.gen, visitorID != ""
}

// Invalidate forgets the tracked visitor so the next Track fetches again.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.visitor = ""
	a.gen++
}

// Load fetches the history for generation gen. The result is dropped when
// another visitor was tracked in the meantime. A failed fetch leaves the
// held history as it was.
func (a *Aggregator) Load(ctx context.Context, gen uint64) (History, bool, error) {
	a.mu.Lock()
	visitorID := a.visitor
	stale := gen != a.gen
	a.mu.Unlock()
	if stale || visitorID == "" {
		return History{}, false, nil
	}

	sessions, err := a.fetcher.VisitorSessions(ctx, visitorID)
	if err != nil {
		if ctx.Err() == nil {
			log.Error(ctx, err,
				log.KV{K: "msg", V: "visitor history failed"},
				log.KV{K: "visitor", V: visitorID})
		}
		return History{}, false, fmt.Errorf("visitor %s history: %w", visitorID, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		log.Debug(ctx, log.KV{K: "msg", V: "discarding stale history"}, log.KV{K: "visitor", V: visitorID})
		return History{}, false, nil
	}
	a.current = History{VisitorID: visitorID, Sessions: sessions, LoadedAt: a.now()}
	return a.copyCurrent(), true, nil
}

// LoadLatest loads whatever generation is tracked when it starts. A caller
// that may be overtaken by a later Track uses it so the last load to run
// always serves the latest visitor.
func (a *Aggregator) LoadLatest(ctx context.Context) (History, bool, error) {
	a.mu.Lock()
	gen := a.gen
	a.mu.Unlock()
	return a.Load(ctx, gen)
}

// Current returns a copy of the held history.
func (a *Aggregator) Current() History {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copyCurrent()
}

func (a *Aggregator) copyCurrent() History {
	h := a.current
	h.Sessions = append([]model.Session(nil), h.Sessions...)
	return h
}

// Visitor returns the tracked visitor id.
func (a *Aggregator) Visitor() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visitor
}
