package render

import (
	"encoding/json"
	"fmt"

	"github.com/Zuo-Peng/vmon/internal/model"
)

// Recorder event types, as produced by the browser tracker.
const (
	recDOMContentLoaded = iota
	recLoad
	recFullSnapshot
	recIncremental
	recMeta
	recCustom
	recPlugin
)

// incremental snapshot sources worth naming in the event line
var incrementalSources = map[int]string{
	0: "mutation",
	1: "mouse-move",
	2: "mouse-click",
	3: "scroll",
	4: "viewport",
	5: "input",
	6: "touch-move",
	7: "media",
}

// RecordedKind names a recorded event type.
func RecordedKind(t int) string {
	switch t {
	case recDOMContentLoaded:
		return "dom-loaded"
	case recLoad:
		return "load"
	case recFullSnapshot:
		return "full-snapshot"
	case recIncremental:
		return "incremental"
	case recMeta:
		return "meta"
	case recCustom:
		return "custom"
	case recPlugin:
		return "plugin"
	default:
		return fmt.Sprintf("type-%d", t)
	}
}

// ReplayEvent renders one recorded event as "+mm:ss.mmm  kind  detail".
// origin is the timestamp of the first event of the recording.
func ReplayEvent(ev model.RecordedEvent, origin int64) string {
	offset := ev.Timestamp - origin
	if offset < 0 {
		offset = 0
	}
	ms := offset % 1000
	sec := offset / 1000
	line := fmt.Sprintf("+%02d:%02d.%03d  %-13s", sec/60, sec%60, ms, RecordedKind(ev.Type))
	if detail := recordedDetail(ev); detail != "" {
		line += "  " + detail
	}
	return line
}

func recordedDetail(ev model.RecordedEvent) string {
	if len(ev.Data) == 0 {
		return ""
	}
	var data struct {
		Href   string `json:"href"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Source *int   `json:"source"`
		Tag    string `json:"tag"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return fmt.Sprintf("%dB", len(ev.Data))
	}
	switch ev.Type {
	case recMeta:
		if data.Width > 0 {
			return fmt.Sprintf("%s %dx%d", data.Href, data.Width, data.Height)
		}
		return data.Href
	case recIncremental:
		if data.Source != nil {
			if name, ok := incrementalSources[*data.Source]; ok {
				return name
			}
			return fmt.Sprintf("source-%d", *data.Source)
		}
	case recCustom:
		return data.Tag
	}
	return fmt.Sprintf("%dB", len(ev.Data))
}
