package command

import "time"

// EventKind names a step in a request's life.
type EventKind string

const (
	EventCreated     EventKind = "created"
	EventSent        EventKind = "sent"
	EventConfirmed   EventKind = "confirmed"
	EventRetryDue    EventKind = "retry_due"
	EventFailure     EventKind = "failure"
	EventStale       EventKind = "stale_failure"
	EventForgotten   EventKind = "forgotten"
	EventFatal       EventKind = "fatal"
	EventSuperseded  EventKind = "superseded"
	EventRetryManual EventKind = "retry_triggered"
)

// Event is one request lifecycle step.
type Event struct {
	Time      time.Time
	Node      string
	RequestID int64
	Request   string
	Kind      EventKind
	Retry     int
	Payload   string
	Detail    string
}

// EventSink receives request events on the owner goroutine. It must not
// block.
type EventSink interface {
	RecordCommandEvent(ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev Event)

// RecordCommandEvent implements EventSink.
func (f EventSinkFunc) RecordCommandEvent(ev Event) {
	f(ev)
}
