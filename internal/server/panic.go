package server

import "time"

// Panic stops serving and schedules a rebuild after the current backoff
// delay. Panics while already panicking are logged and ignored.
//
// Panic may be called from inside a wave; teardown is queued on the
// executor so the wave finishes first.
func (s *Server) Panic(reason string) {
	if s.closed {
		return
	}
	if s.panicking {
		s.logger.Warn("panic while panicking ignored", "reason", reason, "first_reason", s.panicReason)
		return
	}
	s.panicking = true
	s.panicReason = reason
	s.panicCount++

	delay := s.backoff.NextBackOff()
	s.logger.Error("server panic",
		"build", s.build.Token,
		"reason", reason,
		"count", s.panicCount,
		"rebuild_in", delay,
	)

	s.callPanicHandler(reason)

	if s.panicCount > s.cfg.PanicThreshold && s.resetTimer == nil {
		s.logger.Warn("panic threshold exceeded", "count", s.panicCount, "reset_in", s.cfg.PanicCountReset)
		s.resetTimer = s.exec.Schedule(s.cfg.PanicCountReset, s.resetPanicCount)
	}

	s.recorder.RecordPanic(PanicRecord{
		Build:   s.build.Token,
		Time:    s.exec.Clock().Now(),
		Reason:  reason,
		Count:   s.panicCount,
		Backoff: delay,
	})

	s.exec.Execute(func() {
		if err := s.teardown(); err != nil {
			s.logger.Error("teardown after panic failed", "error", err)
		}
	})
	s.scheduleRebuild(delay)
}

func (s *Server) callPanicHandler(reason string) {
	if s.onPanic == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic handler panicked", "panic", r)
		}
	}()
	s.onPanic(reason)
}

func (s *Server) scheduleRebuild(delay time.Duration) {
	if s.rebuild != nil {
		s.rebuild.Cancel()
	}
	s.rebuild = s.exec.Schedule(delay, func() {
		s.rebuild = nil
		if s.closed {
			return
		}
		s.panicking = false
		s.panicReason = ""
		s.logger.Info("rebuilding graph", "after", delay)
		s.doBuild()
	})
}

func (s *Server) resetPanicCount() {
	s.resetTimer = nil
	s.logger.Info("panic count reset", "count", s.panicCount)
	s.panicCount = 0
}

// Panicking reports whether the server is between a panic and its
// rebuild.
func (s *Server) Panicking() bool {
	return s.panicking
}

// PanicReason returns the reason of the panic in progress.
func (s *Server) PanicReason() string {
	return s.panicReason
}

// PanicCount returns the number of panics since the last count reset.
func (s *Server) PanicCount() int {
	return s.panicCount
}
