package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/vmon/internal/model"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) model.Time { return model.Time{Time: now.Add(-d)} }

func TestWrapLineSkipsANSI(t *testing.T) {
	lines := wrapLine(colorPage+"abcdef"+colorReset, 4)
	require.Len(t, lines, 2)
	assert.Equal(t, "abcd", stripANSI(lines[0]))
	assert.Equal(t, "ef", stripANSI(lines[1]))
}

func TestWrapLineWideRunes(t *testing.T) {
	assert.Equal(t, []string{"日本", "語"}, wrapLine("日本語", 4))
}

func TestHighlightKeywords(t *testing.T) {
	got := highlightKeywords("/Products/shoe", "products")
	assert.Equal(t, "/"+colorBoldRed+"Products"+colorReset+"/shoe", got)
}

func TestSessionTimeline(t *testing.T) {
	s := model.Session{
		ID: "abcdef1234567", Status: model.StatusActive, PurchaseStatus: model.PurchaseNone,
		RecordingStatus: model.RecordingAvailable, IntentLabel: "High", Source: "Google",
		StartTime: at(5 * time.Minute), LastActiveAt: at(10 * time.Second),
		Visitor: &model.Visitor{Label: "Jane", Country: "DE"},
		Events: []model.Event{
			{Type: model.EventPageView, Path: "/"},
			{Type: model.EventAddToCart, Path: "/cart", Metadata: map[string]any{"sku": "A1"}},
		},
	}
	out, newest := Session(s, Options{Plain: true, Now: now})
	lines := strings.Split(out, "\n")

	assert.Contains(t, lines[0], "abcdef12")
	assert.Contains(t, lines[1], "Jane")
	assert.Contains(t, lines[2], "10s ago")
	assert.Contains(t, lines[2], "4:50")
	assert.Contains(t, out, "Retargeting email")
	assert.NotContains(t, out, "\033[")
	require.GreaterOrEqual(t, newest, 0)
	assert.True(t, strings.HasPrefix(lines[newest], "ADD TO CART"))
	assert.Contains(t, out, `"sku": "A1"`)
}

func TestSessionTimelineLimitsContext(t *testing.T) {
	s := model.Session{ID: "s1"}
	for range 10 {
		s.Events = append(s.Events, model.Event{Type: model.EventPageView})
	}
	out, _ := Session(s, Options{Plain: true, Context: 3, Now: now})
	assert.Contains(t, out, "(7 earlier events)")
	assert.Equal(t, 3, strings.Count(out, "PAGE VIEW"))
}

func TestSessionWithoutEvents(t *testing.T) {
	_, newest := Session(model.Session{ID: "s1"}, Options{Plain: true, Now: now})
	assert.Equal(t, -1, newest)
}

func TestHistory(t *testing.T) {
	v := &model.Visitor{ID: "v1", Country: "AT", Lifecycle: model.LifecycleLoyal, SessionCount: 2, Tags: []string{"b2b"}, LTV: 120}
	out := History(v, []model.Session{
		{ID: "s1", Status: model.StatusEnded, PurchaseStatus: model.PurchasePaid, LastActiveAt: at(3 * time.Hour)},
	}, Options{Plain: true, Now: now})

	assert.Contains(t, out, "LOYAL")
	assert.Contains(t, out, "b2b")
	assert.Contains(t, out, "120.00")
	assert.Contains(t, out, "PAID")
	assert.Contains(t, out, "3h ago")

	empty := History(nil, nil, Options{Plain: true, Now: now})
	assert.Contains(t, empty, "no previous sessions")
}

func TestIconsSkipHeartbeats(t *testing.T) {
	events := []model.Event{
		{Type: model.EventHeartbeat},
		{Type: model.EventPageView},
		{Type: model.EventHeartbeat},
		{Type: model.EventAddToCart},
		{Type: "custom_thing"},
		{Type: model.EventRageClick},
	}
	assert.Equal(t, "pc.", Icons(events, 3, true))
	assert.Equal(t, "pc.!", Icons(events, 5, true))
}

func TestAgoAndDuration(t *testing.T) {
	assert.Equal(t, "-", Ago(time.Time{}, now))
	assert.Equal(t, "2m ago", Ago(now.Add(-150*time.Second), now))
	assert.Equal(t, "3d ago", Ago(now.Add(-80*time.Hour), now))
	assert.Equal(t, "1:01:05", Duration(now, now.Add(time.Hour+65*time.Second)))
	assert.Equal(t, "-", Duration(now, now.Add(-time.Second)))
}

func TestReplayEvent(t *testing.T) {
	assert.Equal(t, "+00:00.000  meta           https://shop.test/ 1280x720",
		ReplayEvent(model.RecordedEvent{Type: 4, Timestamp: 500, Data: []byte(`{"href":"https://shop.test/","width":1280,"height":720}`)}, 500))
	assert.Contains(t,
		ReplayEvent(model.RecordedEvent{Type: 3, Timestamp: 61750, Data: []byte(`{"source":2}`)}, 500),
		"+01:01.250  incremental    mouse-click")
	assert.Equal(t, "type-9", RecordedKind(9))
}
