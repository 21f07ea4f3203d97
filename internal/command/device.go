package command

// Device is the actuator side of a RequestNode.
type Device[T any] interface {
	// SendCommand dispatches payload and returns without waiting. retry is
	// 0 for the first send. onFailure may be called at most once, from any
	// goroutine, if the device reports the command failed.
	SendCommand(retry int, payload T, onFailure func(reason string))

	// StateValidForRequestToBeSent reports whether the device is in a
	// state where sending payload makes sense.
	StateValidForRequestToBeSent(payload T) bool

	// StateIndicatesRequestSuccessful reports whether observed device state
	// shows payload applied.
	StateIndicatesRequestSuccessful(payload T) bool
}

// Forgetter is implemented by devices that can decide a request has become
// moot, e.g. because the device was reconfigured out of band.
type Forgetter[T any] interface {
	ShouldForgetRequest(req *DeviceRequest[T]) bool
}

// FatalDecision is the outcome of an exhausted retry budget.
type FatalDecision int

const (
	// AcceptFailure marks the request failed and escalates.
	AcceptFailure FatalDecision = iota
	// KeepRetrying resets the retry budget and waits for TriggerRetry.
	KeepRetrying
)

func (d FatalDecision) String() string {
	if d == KeepRetrying {
		return "keep_retrying"
	}
	return "accept_failure"
}

// FatalHandler is implemented by devices that want a say once retries are
// exhausted. retry is the node's TriggerRetry, for callers that keep it to
// retry later. Devices without a FatalHandler accept the failure.
type FatalHandler[T any] interface {
	OnCommandFailedFatally(req *DeviceRequest[T], lastFailure string, retry func()) FatalDecision
}

// Panicker halts and rebuilds the owning server.
type Panicker interface {
	Panic(reason string)
}
