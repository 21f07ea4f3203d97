package graph

import (
	"errors"
	"fmt"
	"strings"
)

// GraphError represents a structural or usage error reported by the Graph.
type GraphError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Node names the node the error is about, if any.
	Node string

	// Path is the offending path for cycle errors, starting and ending at
	// the same node.
	Path []string
}

// ErrorCode categorizes graph errors.
type ErrorCode string

const (
	// ErrCodeDuplicateNode indicates the node instance is already registered.
	ErrCodeDuplicateNode ErrorCode = "DUPLICATE_NODE"

	// ErrCodeUnknownNode indicates a node that was never registered.
	ErrCodeUnknownNode ErrorCode = "UNKNOWN_NODE"

	// ErrCodeInWave indicates a mutation attempted while a wave is running.
	ErrCodeInWave ErrorCode = "IN_WAVE"

	// ErrCodeDuplicateEdge indicates the subscription already exists.
	ErrCodeDuplicateEdge ErrorCode = "DUPLICATE_EDGE"

	// ErrCodeCycleDetected indicates the subscription would close a cycle.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"

	// ErrCodeReentrantWave indicates Wave was called from inside a wave.
	ErrCodeReentrantWave ErrorCode = "REENTRANT_WAVE"

	// ErrCodeClosed indicates the graph has been closed.
	ErrCodeClosed ErrorCode = "CLOSED"

	// ErrCodeWrongGoroutine indicates a call from a goroutine other than
	// the owner. This is a programming error and is raised as a panic.
	ErrCodeWrongGoroutine ErrorCode = "WRONG_GOROUTINE"

	// ErrCodeInitialise indicates a node's Initialise failed.
	ErrCodeInitialise ErrorCode = "INITIALISE_FAILED"

	// ErrCodeNestedRegister indicates RegisterNode was called from inside
	// another node's Initialise.
	ErrCodeNestedRegister ErrorCode = "NESTED_REGISTER"
)

// Error implements the error interface.
func (e *GraphError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, strings.Join(e.Path, " -> "))
	}
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, node, format string, args ...any) *GraphError {
	return &GraphError{Code: code, Node: node, Message: fmt.Sprintf(format, args...)}
}

// HasCode reports whether err is a GraphError with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code ErrorCode) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}

// IsCycleError returns true if the error is a cycle detection error.
func IsCycleError(err error) bool {
	return HasCode(err, ErrCodeCycleDetected)
}

// IsInWaveError returns true if the error was caused by mutating the graph
// during a wave.
func IsInWaveError(err error) bool {
	return HasCode(err, ErrCodeInWave)
}

// IsDuplicateError returns true for duplicate node and duplicate edge errors.
func IsDuplicateError(err error) bool {
	return HasCode(err, ErrCodeDuplicateNode) || HasCode(err, ErrCodeDuplicateEdge)
}

// WaveError wraps an error raised by a node during a wave.
type WaveError struct {
	WaveID int64
	Node   string
	Err    error
}

// Error implements the error interface.
func (e *WaveError) Error() string {
	return fmt.Sprintf("wave %d: node %s: %v", e.WaveID, e.Node, e.Err)
}

// Unwrap returns the node's error.
func (e *WaveError) Unwrap() error {
	return e.Err
}

// PanicError is the error recorded when a node panics inside Wave.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
