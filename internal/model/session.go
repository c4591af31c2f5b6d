package model

import "strings"

// Normalize fills every optional field that the feed omitted or sent in an
// unknown shape with its neutral value. It never fails.
func (s *Session) Normalize() {
	switch SessionStatus(strings.ToUpper(string(s.Status))) {
	case StatusActive:
		s.Status = StatusActive
	default:
		s.Status = StatusEnded
	}
	switch PurchaseStatus(strings.ToUpper(string(s.PurchaseStatus))) {
	case PurchasePaid:
		s.PurchaseStatus = PurchasePaid
	case PurchaseAborted:
		s.PurchaseStatus = PurchaseAborted
	default:
		s.PurchaseStatus = PurchaseNone
	}
	switch RecordingStatus(strings.ToUpper(string(s.RecordingStatus))) {
	case RecordingAvailable:
		s.RecordingStatus = RecordingAvailable
	case RecordingProcessing:
		s.RecordingStatus = RecordingProcessing
	default:
		s.RecordingStatus = RecordingNone
	}
	switch s.IntentLabel {
	case "High", "Medium", "Low":
	default:
		s.IntentLabel = DefaultIntent
	}
	if strings.TrimSpace(s.Source) == "" {
		s.Source = DefaultSource
	}
	if s.VisitorID == "" && s.Visitor != nil {
		s.VisitorID = s.Visitor.ID
	}
	if s.Visitor != nil {
		s.Visitor.Normalize()
	}
}

func (v *Visitor) Normalize() {
	if strings.TrimSpace(v.Country) == "" {
		v.Country = DefaultCountry
	}
	switch Lifecycle(strings.ToUpper(string(v.Lifecycle))) {
	case LifecycleActive:
		v.Lifecycle = LifecycleActive
	case LifecycleLoyal:
		v.Lifecycle = LifecycleLoyal
	default:
		v.Lifecycle = LifecycleNew
	}
}

// NormalizeAll normalizes sessions in place and drops entries without an id,
// which cannot take part in selection.
func NormalizeAll(sessions []Session) []Session {
	out := sessions[:0]
	for i := range sessions {
		if sessions[i].ID == "" {
			continue
		}
		sessions[i].Normalize()
		out = append(out, sessions[i])
	}
	return out
}

// EventCount prefers the server-side count when the feed did not embed events.
func (s Session) EventCount() int {
	n := len(s.Events)
	if s.Count != nil && s.Count.Events > n {
		n = s.Count.Events
	}
	return n
}

func (s Session) IsLive() bool {
	return s.Status == StatusActive
}

func (s Session) HasEvent(typ string) bool {
	for _, e := range s.Events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

// Country returns the visitor country or the placeholder.
func (s Session) Country() string {
	if s.Visitor == nil || s.Visitor.Country == "" {
		return DefaultCountry
	}
	return s.Visitor.Country
}

// ShortID is the first eight characters of the tracker id, as operators know it.
func (s Session) ShortID() string {
	id := s.ClientID
	if id == "" {
		id = s.ID
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// LastURL is where the visitor was last seen.
func (s Session) LastURL() string {
	if s.ExitURL != "" {
		return s.ExitURL
	}
	return s.EntryURL
}

// RecommendAction derives the operator action when the feed sent no insight.
func (s Session) RecommendAction() string {
	if s.Insight != nil && s.Insight.RecommendedAction != "" {
		return s.Insight.RecommendedAction
	}
	paid := s.PurchaseStatus == PurchasePaid
	checkout := s.HasEvent(EventStartCheckout)
	cart := s.HasEvent(EventAddToCart)
	switch {
	case checkout && !paid:
		return "Send coupon"
	case cart && !checkout:
		return "Retargeting email"
	default:
		return "Observe"
	}
}
