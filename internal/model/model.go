package model

import "encoding/json"

type SessionStatus string

const (
	StatusActive SessionStatus = "ACTIVE"
	StatusEnded  SessionStatus = "ENDED"
)

type PurchaseStatus string

const (
	PurchaseNone    PurchaseStatus = "NONE"
	PurchaseAborted PurchaseStatus = "ABORTED"
	PurchasePaid    PurchaseStatus = "PAID"
)

type RecordingStatus string

const (
	RecordingNone       RecordingStatus = "NONE"
	RecordingProcessing RecordingStatus = "PROCESSING"
	RecordingAvailable  RecordingStatus = "AVAILABLE"
)

type Lifecycle string

const (
	LifecycleNew    Lifecycle = "NEW"
	LifecycleActive Lifecycle = "ACTIVE"
	LifecycleLoyal  Lifecycle = "LOYAL"
)

// Event types the back office emits. The set is open; unknown types are kept as-is.
const (
	EventPageView      = "page_view"
	EventViewProduct   = "view_product"
	EventAddToCart     = "add_to_cart"
	EventStartCheckout = "start_checkout"
	EventRageClick     = "rage_click"
	EventHeartbeat     = "heartbeat"
	EventTrackerLoaded = "tracker_loaded"
)

const (
	DefaultSource  = "Direct"
	DefaultCountry = "--"
	DefaultIntent  = "Low"
)

// Session is one browser-tab visit as reported by the live or archive feed.
type Session struct {
	ID              string          `json:"id"`
	ClientID        string          `json:"sessionId"` // tracker-side id, shown shortened
	VisitorID       string          `json:"visitorId"`
	Status          SessionStatus   `json:"status"`
	StartTime       Time            `json:"startTime"`
	LastActiveAt    Time            `json:"lastActiveAt"`
	EntryURL        string          `json:"entryUrl"`
	ExitURL         string          `json:"exitUrl"`
	DeviceType      string          `json:"deviceType"`
	Source          string          `json:"sourceLabel"`
	PurchaseStatus  PurchaseStatus  `json:"purchaseStatus"`
	RecordingStatus RecordingStatus `json:"recordingStatus"`
	VIP             bool            `json:"isVip"`
	IntentLabel     string          `json:"intentLabel"`
	IntentScore     float64         `json:"intentScore"`
	TotalValue      float64         `json:"totalValue"`
	Events          []Event         `json:"events"`
	CartSnapshots   []CartSnapshot  `json:"cartSnapshots"`
	Visitor         *Visitor        `json:"visitor,omitempty"`
	Count           *struct {
		Events int `json:"events"`
	} `json:"_count,omitempty"`
	Insight *Insight `json:"enterprise,omitempty"`
}

// Visitor is a returning identity that owns sessions over time.
type Visitor struct {
	ID           string    `json:"id"`
	Label        string    `json:"identifier"` // human-assigned, optional
	Country      string    `json:"country"`
	Lifecycle    Lifecycle `json:"lifecycleStatus"`
	SessionCount int       `json:"sessionCount"`
	Notes        string    `json:"notes"`
	Tags         []string  `json:"tags"`
	LTV          float64   `json:"ltv"`
}

// Event is an immutable fact within a session.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp Time           `json:"timestamp"`
	URL       string         `json:"url"`
	Path      string         `json:"path"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type CartSnapshot struct {
	Timestamp Time    `json:"timestamp"`
	ItemCount int     `json:"itemCount"`
	Value     float64 `json:"totalValue"`
}

// Insight is the server-computed summary attached to archived sessions.
type Insight struct {
	Score             int    `json:"score"`
	Summary           string `json:"summary"`
	RecommendedAction string `json:"recommendedAction"`
	HighPotential     bool   `json:"isHighPotential"`
}

// Funnel counts live sessions that reached each shop stage.
type Funnel struct {
	Products int `json:"products"`
	Cart     int `json:"cart"`
	Checkout int `json:"checkout"`
}

type IntentStats struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// RecordedEvent is one UI event of a session recording. Data is opaque to
// the monitor and handed to the playback engine untouched.
type RecordedEvent struct {
	Type      int             `json:"type"`
	Timestamp int64           `json:"timestamp"` // unix millis
	Data      json.RawMessage `json:"data,omitempty"`
}

// Chunk is one numbered batch of a session recording.
type Chunk struct {
	Index   int
	Events  []RecordedEvent
	HasMore bool
}
