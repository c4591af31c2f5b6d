package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/Zuo-Peng/vmon/internal/model"
	"github.com/Zuo-Peng/vmon/internal/render"
)

type Format string

const (
	FormatText   Format = "text"
	FormatNDJSON Format = "ndjson"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatNDJSON:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown format %q (text, ndjson)", s)
}

// ndjsonEvent is one line of NDJSON output. OffsetMS is relative to the
// first event of the recording.
type ndjsonEvent struct {
	Session   string          `json:"session"`
	Seq       int             `json:"seq"`
	Type      int             `json:"type"`
	Kind      string          `json:"kind"`
	Timestamp int64           `json:"timestamp"`
	OffsetMS  int64           `json:"offset_ms"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// writerEngine "plays" a recording by printing one line per event.
type writerEngine struct {
	mu      sync.Mutex
	w       io.Writer
	format  Format
	session string
	origin  int64
	seq     int
	enc     *json.Encoder
}

// WriterFactory returns engines that print events to w as they arrive.
func WriterFactory(w io.Writer, format Format) EngineFactory {
	return func(sessionID string, initial []model.RecordedEvent) (Engine, error) {
		e := &writerEngine{w: w, format: format, session: sessionID, enc: json.NewEncoder(w)}
		if len(initial) > 0 {
			e.origin = initial[0].Timestamp
		}
		for _, ev := range initial {
			if err := e.Append(ev); err != nil {
				return nil, err
			}
		}
		return e, nil
	}
}

func (e *writerEngine) Append(ev model.RecordedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	if e.format == FormatNDJSON {
		return e.enc.Encode(ndjsonEvent{
			Session:   e.session,
			Seq:       e.seq,
			Type:      ev.Type,
			Kind:      render.RecordedKind(ev.Type),
			Timestamp: ev.Timestamp,
			OffsetMS:  ev.Timestamp - e.origin,
			Data:      ev.Data,
		})
	}
	_, err := fmt.Fprintln(e.w, render.ReplayEvent(ev, e.origin))
	return err
}

func (e *writerEngine) Close() error { return nil }
