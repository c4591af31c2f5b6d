// Package poll fetches snapshots on a cadence and stamps each request with a
// sequence number so out-of-order completions can be discarded.
package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"goa.design/clue/log"

	"github.com/Zuo-Peng/vmon/internal/telemetry"
)

// Snapshot is one successful poll. Seq is assigned when the request is
// issued, not when it completes.
type Snapshot[T any] struct {
	Seq   uint64
	Value T
	At    time.Time
}

type Poller[T any] struct {
	name  string
	fetch func(ctx context.Context) (T, error)
	seq   atomic.Uint64
	now   func() time.Time
}

func New[T any](name string, fetch func(ctx context.Context) (T, error)) *Poller[T] {
	return &Poller[T]{name: name, fetch: fetch, now: time.Now}
}

// Poll issues one request.
func (p *Poller[T]) Poll(ctx context.Context) (Snapshot[T], error) {
	seq := p.seq.Add(1)
	v, err := p.fetch(ctx)
	if err != nil {
		return Snapshot[T]{Seq: seq}, err
	}
	return Snapshot[T]{Seq: seq, Value: v, At: p.now()}, nil
}

// Tick polls once and hands a successful snapshot to apply. Failures are
// logged and otherwise ignored; the next tick retries.
func (p *Poller[T]) Tick(ctx context.Context, apply func(Snapshot[T])) {
	snap, err := p.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		telemetry.Count(ctx, "poll.failures", 1, attribute.String("feed", p.name))
		log.Error(ctx, err,
			log.KV{K: "msg", V: "poll failed"},
			log.KV{K: "feed", V: p.name},
			log.KV{K: "seq", V: snap.Seq})
		return
	}
	telemetry.Count(ctx, "poll.snapshots", 1, attribute.String("feed", p.name))
	apply(snap)
}

// Sequencer admits snapshots in strictly increasing sequence order.
type Sequencer struct {
	mu   sync.Mutex
	last uint64
}

// Accept reports whether seq is newer than every previously accepted one and
// records it if so.
func (s *Sequencer) Accept(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.last {
		return false
	}
	s.last = seq
	return true
}

func (s *Sequencer) Last() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
