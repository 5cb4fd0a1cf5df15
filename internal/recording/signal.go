package recording

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// StopReason records which trigger ended a session
type StopReason int32

const (
	// ReasonNone means the signal has not fired
	ReasonNone StopReason = iota
	// ReasonDuration means the target duration elapsed
	ReasonDuration
	// ReasonHotkey means the stop chord was pressed
	ReasonHotkey
	// ReasonDeviceError means the device reported an error during capture
	ReasonDeviceError
	// ReasonManual means Stop was called directly
	ReasonManual
	// ReasonCanceled means the caller's context ended
	ReasonCanceled
)

// String returns the string representation of the reason
func (r StopReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonDuration:
		return "duration"
	case ReasonHotkey:
		return "hotkey"
	case ReasonDeviceError:
		return "device_error"
	case ReasonManual:
		return "manual"
	case ReasonCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// StopSignal is a level-triggered stop condition shared by independent writers.
// Only the first Fire takes effect; it stays set until Reset.
type StopSignal struct {
	mu     sync.Mutex
	done   chan struct{}
	reason atomic.Int32
}

// NewStopSignal creates an unfired signal
func NewStopSignal() *StopSignal {
	return &StopSignal{done: make(chan struct{})}
}

// Fire sets the signal. It reports whether this call was the one that set it.
func (s *StopSignal) Fire(reason StopReason) bool {
	if reason == ReasonNone {
		reason = ReasonManual
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.reason.CompareAndSwap(int32(ReasonNone), int32(reason)) {
		return false
	}
	close(s.done)
	return true
}

// Notify fires the signal on behalf of the hotkey listener
func (s *StopSignal) Notify() {
	s.Fire(ReasonHotkey)
}

// Fired reports whether the signal is set
func (s *StopSignal) Fired() bool {
	return s.Reason() != ReasonNone
}

// Reason returns the trigger that set the signal, or ReasonNone
func (s *StopSignal) Reason() StopReason {
	return StopReason(s.reason.Load())
}

// Done returns a channel that is closed once the signal fires
func (s *StopSignal) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Wait blocks until the signal fires or ctx ends.
// The returned error is ctx.Err() in the latter case.
func (s *StopSignal) Wait(ctx context.Context) (StopReason, error) {
	select {
	case <-s.Done():
		return s.Reason(), nil
	case <-ctx.Done():
		return ReasonNone, ctx.Err()
	}
}

// WaitTimeout is Wait bounded by d
func (s *StopSignal) WaitTimeout(d time.Duration) (StopReason, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-s.Done():
		return s.Reason(), true
	case <-timer.C:
		return ReasonNone, false
	}
}

// Reset re-arms the signal for a new session
func (s *StopSignal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Reason() == ReasonNone {
		return
	}
	s.done = make(chan struct{})
	s.reason.Store(int32(ReasonNone))
}
