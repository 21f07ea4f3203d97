package sim

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/roach88/wavectl/internal/sched"
)

// Switch is a simulated on/off actuator. Commands take effect after a
// latency on the executor and fail at random with FailureRate.
//
// Thread-safety: all methods are safe for concurrent use; completions and
// listener callbacks run on the executor.
type Switch struct {
	exec        sched.Executor
	latency     time.Duration
	failureRate float64

	mu        sync.Mutex
	rng       *rand.Rand
	on        bool
	reachable bool
	sends     int
	nextID    int
	listeners map[int]func(on bool)
}

// NewSwitch returns a reachable switch in the off position.
func NewSwitch(exec sched.Executor, latency time.Duration, failureRate float64, seed int64) *Switch {
	return &Switch{
		exec:        exec,
		latency:     latency,
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(seed)),
		reachable:   true,
		listeners:   make(map[int]func(bool)),
	}
}

// SendCommand implements command.Device.
func (s *Switch) SendCommand(retry int, on bool, onFailure func(reason string)) {
	s.mu.Lock()
	s.sends++
	fail := s.rng.Float64() < s.failureRate
	s.mu.Unlock()

	s.exec.Schedule(s.latency, func() {
		if fail {
			onFailure(fmt.Sprintf("switch did not acknowledge (attempt %d)", retry+1))
			return
		}
		s.set(on)
	})
}

// StateValidForRequestToBeSent implements command.Device.
func (s *Switch) StateValidForRequestToBeSent(bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reachable
}

// StateIndicatesRequestSuccessful implements command.Device.
func (s *Switch) StateIndicatesRequestSuccessful(on bool) bool {
	return s.On() == on
}

// On reports the switch position.
func (s *Switch) On() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

// Sends returns how many commands were sent.
func (s *Switch) Sends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sends
}

// SetReachable toggles whether commands may be sent.
func (s *Switch) SetReachable(ok bool) {
	s.mu.Lock()
	s.reachable = ok
	s.mu.Unlock()
}

// SetFailureRate changes the failure probability of later sends.
func (s *Switch) SetFailureRate(rate float64) {
	s.mu.Lock()
	s.failureRate = rate
	s.mu.Unlock()
}

// Flip changes the position out of band, as a person at the wall would.
func (s *Switch) Flip() {
	s.set(!s.On())
}

// Subscribe registers fn for position changes. The returned func removes
// it.
func (s *Switch) Subscribe(fn func(on bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Switch) set(on bool) {
	s.mu.Lock()
	changed := s.on != on
	s.on = on
	var fns []func(bool)
	if changed {
		for _, fn := range s.listeners {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(on)
	}
}
