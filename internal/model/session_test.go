package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaultsMissingFields(t *testing.T) {
	var s Session
	require.NoError(t, json.Unmarshal([]byte(`{"id":"A","visitor":{"id":"v1"}}`), &s))
	s.Normalize()

	assert.Equal(t, StatusEnded, s.Status)
	assert.Equal(t, PurchaseNone, s.PurchaseStatus)
	assert.Equal(t, RecordingNone, s.RecordingStatus)
	assert.Equal(t, DefaultIntent, s.IntentLabel)
	assert.Equal(t, DefaultSource, s.Source)
	assert.Equal(t, "v1", s.VisitorID)
	assert.Equal(t, DefaultCountry, s.Country())
	assert.Equal(t, LifecycleNew, s.Visitor.Lifecycle)
	assert.Equal(t, 0, s.EventCount())
}

func TestNormalizeKeepsKnownValues(t *testing.T) {
	s := Session{
		ID:              "A",
		Status:          "active",
		PurchaseStatus:  "paid",
		RecordingStatus: "AVAILABLE",
		IntentLabel:     "High",
		Source:          "Google",
	}
	s.Normalize()

	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, PurchasePaid, s.PurchaseStatus)
	assert.Equal(t, RecordingAvailable, s.RecordingStatus)
	assert.Equal(t, "High", s.IntentLabel)
	assert.Equal(t, "Google", s.Source)
}

func TestMalformedTimestampDoesNotFailPayload(t *testing.T) {
	var s Session
	payload := `{"id":"A","lastActiveAt":"yesterday-ish","startTime":1700000000000,
		"events":[{"type":"page_view","timestamp":"2026-10-15T08:00:00Z"}]}`
	require.NoError(t, json.Unmarshal([]byte(payload), &s))

	assert.True(t, s.LastActiveAt.IsZero())
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), s.StartTime.Time)
	assert.Equal(t, 2026, s.Events[0].Timestamp.Year())
}

func TestWrongTypedFieldsDecodeToDefaults(t *testing.T) {
	var s Session
	payload := `{"id":"A","status":"ACTIVE","isVip":"yes","intentScore":"0.7","totalValue":[1],
		"sourceLabel":7,"_count":{"events":"many"},
		"visitor":{"id":"v1","country":49,"ltv":"lots","tags":"vip"},
		"events":[{"type":"page_view","metadata":"x"},{"type":3,"url":"https://shop.test/"}],
		"cartSnapshots":[{"itemCount":"two","totalValue":12.5}],
		"enterprise":{"score":"high","summary":"browsing"}}`
	require.NoError(t, json.Unmarshal([]byte(payload), &s))
	s.Normalize()

	assert.Equal(t, "A", s.ID)
	assert.Equal(t, StatusActive, s.Status)
	assert.False(t, s.VIP)
	assert.Zero(t, s.IntentScore)
	assert.Zero(t, s.TotalValue)
	assert.Equal(t, DefaultSource, s.Source)
	assert.Equal(t, DefaultIntent, s.IntentLabel)
	assert.Equal(t, 2, s.EventCount())

	require.NotNil(t, s.Visitor)
	assert.Equal(t, "v1", s.Visitor.ID)
	assert.Equal(t, DefaultCountry, s.Country())
	assert.Zero(t, s.Visitor.LTV)

	require.Len(t, s.Events, 2)
	assert.Equal(t, EventPageView, s.Events[0].Type)
	assert.Empty(t, s.Events[1].Type)
	assert.Equal(t, "https://shop.test/", s.Events[1].URL)
	require.Len(t, s.CartSnapshots, 1)
	assert.Equal(t, 12.5, s.CartSnapshots[0].Value)
	require.NotNil(t, s.Insight)
	assert.Equal(t, "browsing", s.Insight.Summary)
}

func TestSyntaxErrorsStillFail(t *testing.T) {
	var s Session
	assert.Error(t, json.Unmarshal([]byte(`{"id":"A",`), &s))
}

func TestEventCountPrefersServerCount(t *testing.T) {
	var s Session
	require.NoError(t, json.Unmarshal([]byte(`{"id":"A","_count":{"events":7}}`), &s))
	assert.Equal(t, 7, s.EventCount())
}

func TestNormalizeAllDropsSessionsWithoutID(t *testing.T) {
	out := NormalizeAll([]Session{{ID: "A"}, {}, {ID: "B"}})
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].ID)
	assert.Equal(t, "B", out[1].ID)
}

func TestRecommendAction(t *testing.T) {
	checkout := Session{Events: []Event{{Type: EventStartCheckout}}}
	assert.Equal(t, "Send coupon", checkout.RecommendAction())

	cart := Session{Events: []Event{{Type: EventAddToCart}}}
	assert.Equal(t, "Retargeting email", cart.RecommendAction())

	paid := Session{PurchaseStatus: PurchasePaid, Events: []Event{{Type: EventStartCheckout}}}
	assert.Equal(t, "Observe", paid.RecommendAction())

	server := Session{Insight: &Insight{RecommendedAction: "Mark VIP"}}
	assert.Equal(t, "Mark VIP", server.RecommendAction())
}
