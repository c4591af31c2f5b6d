// Package replay streams a recorded session into a playback engine: the
// loader bootstraps the engine from chunk 0, the tailer keeps appending
// later chunks until the recording goes quiet, and a Dialog ties both to
// one open replay.
package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zuo-Peng/vmon/internal/model"
)

var (
	// ErrNoRecording means chunk 0 came back empty. It is a terminal state,
	// not a transport failure.
	ErrNoRecording = errors.New("no recording data")
	// ErrEngine wraps playback engine construction and append failures.
	ErrEngine = errors.New("playback engine failed")
)

// Engine plays recorded events. Append is only called by the loader and the
// tailer of the dialog that owns the engine, never concurrently with Close.
type Engine interface {
	Append(ev model.RecordedEvent) error
	Close() error
}

// EngineFactory builds an engine that starts playing initial right away.
type EngineFactory func(sessionID string, initial []model.RecordedEvent) (Engine, error)

// ChunkFetcher is the part of the API client the replay needs.
type ChunkFetcher interface {
	ReplayChunk(ctx context.Context, sessionID string, n int) (model.Chunk, error)
}

// Tee returns a factory whose engines fan every event out to one engine per
// factory, in order.
func Tee(factories ...EngineFactory) EngineFactory {
	return func(sessionID string, initial []model.RecordedEvent) (Engine, error) {
		engines := make(multiEngine, 0, len(factories))
		for _, f := range factories {
			e, err := f(sessionID, initial)
			if err != nil {
				engines.Close()
				return nil, err
			}
			engines = append(engines, e)
		}
		return engines, nil
	}
}

type multiEngine []Engine

func (m multiEngine) Append(ev model.RecordedEvent) error {
	for i, e := range m {
		if err := e.Append(ev); err != nil {
			return fmt.Errorf("engine %d: %w", i, err)
		}
	}
	return nil
}

func (m multiEngine) Close() error {
	var errs []error
	for _, e := range m {
		errs = append(errs, e.Close())
	}
	return errors.Join(errs...)
}
