// Package command drives device commands through a retry state machine.
//
// A RequestNode holds at most one DeviceRequest. Each wave it either sends
// the request, confirms it against observed device state, resends it when
// a retry timer has fired, or escalates once the retry budget is spent:
//
//	Idle -> Unsent -> Sent -> Confirmed -> Idle
//	                   |  ^
//	                   v  |
//	               RetryDue ---(budget spent)---> Fatal
//
// On Fatal the device (or the default policy) decides between waiting for
// a manual TriggerRetry and accepting the failure, which by default panics
// the owning server.
//
// Device I/O never blocks the wave. SendCommand returns immediately and
// reports failure through a callback that may arrive on any goroutine; the
// node moves it onto the executor and drops it if the request it belongs
// to is no longer current.
package command
