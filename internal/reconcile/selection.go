package reconcile

import "fmt"

type SelectionKind int

const (
	SelectNone SelectionKind = iota
	SelectExplicit
	SelectFollowed
)

// Selection is exactly one of None, Explicit(id) or Followed(id).
type Selection struct {
	kind SelectionKind
	id   string
}

func NoSelection() Selection { return Selection{} }

func Explicit(id string) Selection {
	if id == "" {
		return Selection{}
	}
	return Selection{kind: SelectExplicit, id: id}
}

func Followed(id string) Selection {
	if id == "" {
		return Selection{}
	}
	return Selection{kind: SelectFollowed, id: id}
}

func (s Selection) Kind() SelectionKind { return s.kind }

// ID is empty for None.
func (s Selection) ID() string { return s.id }

func (s Selection) IsNone() bool { return s.kind == SelectNone }

// Following returns the pinned id while in follow mode.
func (s Selection) Following() (string, bool) {
	return s.id, s.kind == SelectFollowed
}

func (s Selection) String() string {
	switch s.kind {
	case SelectExplicit:
		return fmt.Sprintf("explicit(%s)", s.id)
	case SelectFollowed:
		return fmt.Sprintf("followed(%s)", s.id)
	default:
		return "none"
	}
}
