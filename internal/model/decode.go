package model

import (
	"encoding/json"
	"errors"
)

// The back office is loose with optional fields (a flag sent as "yes", a
// score as a string). Decoding skips a wrong-typed field, leaving its zero
// value for Normalize to default, and keeps the rest of the entity.

// TolerateTypeErrors drops the error json.Unmarshal reports for values of
// the wrong type. encoding/json has already decoded every other field by then.
func TolerateTypeErrors(err error) error {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		return nil
	}
	return err
}

func (s *Session) UnmarshalJSON(b []byte) error {
	type plain Session
	return TolerateTypeErrors(json.Unmarshal(b, (*plain)(s)))
}

func (v *Visitor) UnmarshalJSON(b []byte) error {
	type plain Visitor
	return TolerateTypeErrors(json.Unmarshal(b, (*plain)(v)))
}

func (e *Event) UnmarshalJSON(b []byte) error {
	type plain Event
	return TolerateTypeErrors(json.Unmarshal(b, (*plain)(e)))
}

func (c *CartSnapshot) UnmarshalJSON(b []byte) error {
	type plain CartSnapshot
	return TolerateTypeErrors(json.Unmarshal(b, (*plain)(c)))
}

func (i *Insight) UnmarshalJSON(b []byte) error {
	type plain Insight
	return TolerateTypeErrors(json.Unmarshal(b, (*plain)(i)))
}

func (f *Funnel) UnmarshalJSON(b []byte) error {
	type plain Funnel
	return TolerateTypeErrors(json.Unmarshal(b, (*plain)(f)))
}

func (s *IntentStats) UnmarshalJSON(b []byte) error {
	type plain IntentStats
	return TolerateTypeErrors(json.Unmarshal(b, (*plain)(s)))
}
