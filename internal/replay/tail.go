package replay

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"goa.design/clue/log"

	"github.com/Zuo-Peng/vmon/internal/telemetry"
)

const (
	DefaultTailDelay   = 3 * time.Second
	DefaultIdleCeiling = 100
)

// StopReason says why a tail run ended.
type StopReason string

const (
	StopIdle     StopReason = "idle"     // idle ceiling reached, recording concluded
	StopCanceled StopReason = "canceled" // dialog closed
	StopEngine   StopReason = "engine"   // the engine refused an event
)

// TailStats describes a finished tail run. Index is the next chunk that
// would have been requested.
type TailStats struct {
	Index   int
	Idle    int
	Fetches int
	Chunks  int
	Events  int
	Waits   int
	Reason  StopReason
}

// Iteration is reported after every fetch.
type Iteration struct {
	Index    int // chunk requested
	Events   int
	HasMore  bool
	Err      error
	Advanced bool
	Idle     int
}

type Tailer struct {
	fetcher ChunkFetcher
	engine  Engine
	delay   time.Duration
	ceiling int

	// OnIteration, when set, observes every fetch. It runs on the tail
	// goroutine.
	OnIteration func(Iteration)
}

// NewTailer streams into engine. A non-positive ceiling falls back to
// DefaultIdleCeiling; a zero delay retries immediately.
func NewTailer(fetcher ChunkFetcher, engine Engine, delay time.Duration, ceiling int) *Tailer {
	if ceiling <= 0 {
		ceiling = DefaultIdleCeiling
	}
	if delay < 0 {
		delay = 0
	}
	return &Tailer{fetcher: fetcher, engine: engine, delay: delay, ceiling: ceiling}
}

// Run appends chunks 1, 2, ... to the engine until ctx is cancelled, the
// engine fails, or ceiling consecutive fetches come back empty or failed.
// The chunk index only advances past a non-empty successful fetch, so no
// chunk is skipped and none is requested again once consumed.
func (t *Tailer) Run(ctx context.Context, sessionID string) (TailStats, error) {
	stats := TailStats{Index: 1}
	ctx = log.With(ctx, log.KV{K: "session", V: sessionID})

	for {
		if ctx.Err() != nil {
			stats.Reason = StopCanceled
			return stats, nil
		}

		chunk, err := t.fetcher.ReplayChunk(ctx, sessionID, stats.Index)
		stats.Fetches++
		it := Iteration{Index: stats.Index, Err: err}

		if err == nil && len(chunk.Events) > 0 {
			for _, ev := range chunk.Events {
				if aerr := t.engine.Append(ev); aerr != nil {
					stats.Reason = StopEngine
					return stats, fmt.Errorf("append chunk %d: %w: %w", stats.Index, ErrEngine, aerr)
				}
			}
			stats.Idle = 0
			stats.Index++
			stats.Chunks++
			stats.Events += len(chunk.Events)
			telemetry.Count(ctx, "replay.chunks", 1, attribute.String("phase", "tail"))

			it.Events, it.HasMore, it.Advanced = len(chunk.Events), chunk.HasMore, true
			t.observe(it)
			if chunk.HasMore {
				continue
			}
		} else {
			if err != nil && ctx.Err() != nil {
				stats.Reason = StopCanceled
				return stats, nil
			}
			if err != nil {
				log.Debug(ctx,
					log.KV{K: "msg", V: "tail fetch failed"},
					log.KV{K: "chunk", V: stats.Index},
					log.KV{K: "err", V: err.Error()})
			}
			stats.Idle++
			telemetry.Count(ctx, "replay.idle", 1)

			it.Idle = stats.Idle
			t.observe(it)
			if stats.Idle >= t.ceiling {
				stats.Reason = StopIdle
				log.Debug(ctx,
					log.KV{K: "msg", V: "tail concluded"},
					log.KV{K: "chunks", V: stats.Chunks},
					log.KV{K: "events", V: stats.Events})
				return stats, nil
			}
		}

		stats.Waits++
		if !sleep(ctx, t.delay) {
			stats.Reason = StopCanceled
			return stats, nil
		}
	}
}

func (t *Tailer) observe(it Iteration) {
	if t.OnIteration != nil {
		t.OnIteration(it)
	}
}

// sleep waits d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
