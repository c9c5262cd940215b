package events

import "time"

// Kind identifies an audio event on the wire between the pipeline and its
// subscribers.
type Kind string

// Event is the contract every published audio event satisfies.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the kind and emission time shared by all events.
type Base struct {
	kind      Kind
	timestamp time.Time
}

// NewBase creates an event base stamped with the current time.
func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
