package sched

import "sync/atomic"

// Sequence is a monotonic counter used for wave ids, node ids and
// request identities.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations),
// although the graph only touches its sequences from the owner goroutine.
type Sequence struct {
	seq atomic.Int64
}

// NewSequenceAt creates a sequence whose next value is start+1.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.seq.Store(start)
	return s
}

// Next returns the next value and increments the sequence.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last value handed out without incrementing.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
