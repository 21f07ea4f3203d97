package command

import (
	"fmt"
	"time"
)

// DeviceRequest is one command the node is trying to get applied.
// Values are never modified once handed out; sending and failing produce
// new values carrying the same ID. A superseding request gets a new ID even
// when the payloads match.
type DeviceRequest[T any] struct {
	id      int64
	name    string
	payload T
	created time.Time

	sent    bool
	failed  bool
	failure string
}

// ID returns the per-node sequence number of the request.
func (r *DeviceRequest[T]) ID() int64 { return r.id }

// Name returns the label the request was created with.
func (r *DeviceRequest[T]) Name() string { return r.name }

// Payload returns the command payload.
func (r *DeviceRequest[T]) Payload() T { return r.payload }

// Created returns when the request was installed.
func (r *DeviceRequest[T]) Created() time.Time { return r.created }

// Sent reports whether the command has been sent at least once.
func (r *DeviceRequest[T]) Sent() bool { return r.sent }

// Failed reports whether the request was terminally failed.
func (r *DeviceRequest[T]) Failed() bool { return r.failed }

// Failure returns the terminal failure reason.
func (r *DeviceRequest[T]) Failure() (string, bool) {
	return r.failure, r.failed
}

func (r *DeviceRequest[T]) String() string {
	state := "unsent"
	switch {
	case r.failed:
		state = "failed"
	case r.sent:
		state = "sent"
	}
	return fmt.Sprintf("%s#%d(%v, %s)", r.name, r.id, r.payload, state)
}

func (r *DeviceRequest[T]) asSent() *DeviceRequest[T] {
	next := *r
	next.sent = true
	return &next
}

func (r *DeviceRequest[T]) asFailed(reason string) *DeviceRequest[T] {
	next := *r
	next.failed = true
	next.failure = reason
	return &next
}
