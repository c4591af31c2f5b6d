package reconcile

import (
	"fmt"

	"github.com/Zuo-Peng/vmon/internal/model"
)

// Filter narrows a snapshot. The zero value passes everything.
type Filter string

const (
	FilterNone     Filter = ""
	FilterLive     Filter = "live"
	FilterPurchase Filter = "purchase"
	FilterBounce   Filter = "bounce"
)

// bounceMaxEvents is the most events a session may have and still count as a bounce.
const bounceMaxEvents = 2

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case FilterNone, FilterLive, FilterPurchase, FilterBounce:
		return f, nil
	case "all", "none":
		return FilterNone, nil
	}
	return FilterNone, fmt.Errorf("unknown filter %q (live, purchase, bounce)", s)
}

func (f Filter) Match(s model.Session) bool {
	switch f {
	case FilterLive:
		return s.Status == model.StatusActive
	case FilterPurchase:
		return s.PurchaseStatus == model.PurchasePaid
	case FilterBounce:
		return s.EventCount() <= bounceMaxEvents
	default:
		return true
	}
}

// Apply returns a new slice with the matching sessions in feed order.
func (f Filter) Apply(sessions []model.Session) []model.Session {
	out := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Realtime reports whether the filter shows current activity. Realtime
// filters auto-select and drop vanished selections; the others are
// historical and keep the last known record visible.
func (f Filter) Realtime() bool {
	return f == FilterNone || f == FilterLive
}

func (f Filter) String() string {
	if f == FilterNone {
		return "all"
	}
	return string(f)
}

// Next cycles through the filters in display order.
func (f Filter) Next() Filter {
	switch f {
	case FilterNone:
		return FilterLive
	case FilterLive:
		return FilterPurchase
	case FilterPurchase:
		return FilterBounce
	default:
		return FilterNone
	}
}
