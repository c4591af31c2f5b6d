package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/vmon/internal/model"
	"github.com/Zuo-Peng/vmon/internal/monitor"
	"github.com/Zuo-Peng/vmon/internal/reconcile"
)

func TestWriteSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := monitor.State{
		PolledAt:    now,
		Count:       2,
		UniqueCount: 1,
		Funnel:      model.Funnel{Products: 2, Cart: 1},
		Intent:      model.IntentStats{High: 1, Low: 1},
		Filter:      reconcile.FilterLive,
		Visible: []model.Session{{
			ID:           "s1",
			VisitorID:    "v1",
			Status:       model.StatusActive,
			DeviceType:   "mobile",
			LastActiveAt: model.Time{Time: now.Add(-30 * time.Second)},
			ExitURL:      "https://shop.test/cart\tpage",
			Events: []model.Event{
				{Type: model.EventPageView},
				{Type: model.EventHeartbeat},
				{Type: model.EventAddToCart},
			},
		}},
	}

	var buf bytes.Buffer
	writeSnapshot(&buf, st, now)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	assert.Contains(t, lines[0], "2 online (1 unique)")
	assert.Contains(t, lines[0], "funnel 2/1/0")
	assert.Contains(t, lines[0], "filter live")

	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, 8)
	assert.Equal(t, "s1", fields[0])
	assert.Equal(t, "ACTIVE", fields[1])
	assert.Equal(t, "mobile", fields[3])
	assert.Equal(t, "https://shop.test/cart page", fields[6])
	assert.Equal(t, "pc", fields[7])
}

func TestMask(t *testing.T) {
	assert.Equal(t, "(none)", mask(""))
	assert.Equal(t, "****", mask("short"))
	assert.Equal(t, "abcd****", mask("abcdefghijkl"))
}
