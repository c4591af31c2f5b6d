package replay

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"goa.design/clue/log"

	"github.com/Zuo-Peng/vmon/internal/telemetry"
)

// Loader bootstraps playback from the first chunk of a recording.
type Loader struct {
	fetcher ChunkFetcher
	factory EngineFactory
}

func NewLoader(fetcher ChunkFetcher, factory EngineFactory) *Loader {
	return &Loader{fetcher: fetcher, factory: factory}
}

// Load fetches chunk 0 and builds an engine playing its events. hasMore
// reports whether the caller should start tailing. An empty chunk yields
// ErrNoRecording and no engine.
func (l *Loader) Load(ctx context.Context, sessionID string) (engine Engine, hasMore bool, err error) {
	chunk, err := l.fetcher.ReplayChunk(ctx, sessionID, 0)
	if err != nil {
		return nil, false, fmt.Errorf("load recording %s: %w", sessionID, err)
	}
	if len(chunk.Events) == 0 {
		return nil, false, fmt.Errorf("load recording %s: %w", sessionID, ErrNoRecording)
	}

	engine, err = l.factory(sessionID, chunk.Events)
	if err != nil {
		return nil, false, fmt.Errorf("load recording %s: %w: %w", sessionID, ErrEngine, err)
	}
	telemetry.Count(ctx, "replay.chunks", 1, attribute.String("phase", "bootstrap"))
	log.Debug(ctx,
		log.KV{K: "msg", V: "replay bootstrapped"},
		log.KV{K: "session", V: sessionID},
		log.KV{K: "events", V: len(chunk.Events)},
		log.KV{K: "has_more", V: chunk.HasMore})
	return engine, chunk.HasMore, nil
}
