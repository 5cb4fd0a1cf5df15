package recording

import (
	"context"
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStopReason_String(t *testing.T) {
	tests := []struct {
		reason   StopReason
		expected string
	}{
		{ReasonNone, "none"},
		{ReasonDuration, "duration"},
		{ReasonHotkey, "hotkey"},
		{ReasonDeviceError, "device_error"},
		{ReasonManual, "manual"},
		{ReasonCanceled, "canceled"},
		{StopReason(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.reason.String(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestStopSignal_FiresOnce(t *testing.T) {
	s := NewStopSignal()

	if s.Fired() {
		t.Fatal("New signal should not be fired")
	}

	if !s.Fire(ReasonDuration) {
		t.Error("First Fire should report true")
	}
	if s.Fire(ReasonHotkey) {
		t.Error("Second Fire should report false")
	}

	if s.Reason() != ReasonDuration {
		t.Errorf("Expected first reason to stick, got %s", s.Reason())
	}

	select {
	case <-s.Done():
	default:
		t.Error("Done channel should be closed after Fire")
	}
}

func TestStopSignal_ConcurrentWriters(t *testing.T) {
	for round := 0; round < 50; round++ {
		s := NewStopSignal()

		var winners atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})

		for i := 0; i < 16; i++ {
			wg.Add(1)
			reason := ReasonDuration
			if i%2 == 1 {
				reason = ReasonHotkey
			}
			go func(r StopReason) {
				defer wg.Done()
				<-start
				if s.Fire(r) {
					winners.Add(1)
				}
			}(reason)
		}

		close(start)
		wg.Wait()

		if winners.Load() != 1 {
			t.Fatalf("Round %d: expected exactly one winner, got %d", round, winners.Load())
		}
	}
}

func TestStopSignal_Notify(t *testing.T) {
	s := NewStopSignal()
	s.Notify()

	if s.Reason() != ReasonHotkey {
		t.Errorf("Expected hotkey reason, got %s", s.Reason())
	}
}

func TestStopSignal_FireNoneMeansManual(t *testing.T) {
	s := NewStopSignal()
	s.Fire(ReasonNone)

	if s.Reason() != ReasonManual {
		t.Errorf("Expected manual reason, got %s", s.Reason())
	}
}

func TestStopSignal_Wait(t *testing.T) {
	s := NewStopSignal()

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Fire(ReasonHotkey)
	}()

	reason, err := s.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if reason != ReasonHotkey {
		t.Errorf("Expected hotkey reason, got %s", reason)
	}
}

func TestStopSignal_WaitContextCanceled(t *testing.T) {
	s := NewStopSignal()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	reason, err := s.Wait(ctx)
	if err == nil {
		t.Fatal("Expected context error")
	}
	if reason != ReasonNone {
		t.Errorf("Expected no reason, got %s", reason)
	}
	if s.Fired() {
		t.Error("Wait should not fire the signal")
	}
}

func TestStopSignal_WaitTimeout(t *testing.T) {
	s := NewStopSignal()

	if _, ok := s.WaitTimeout(10 * time.Millisecond); ok {
		t.Error("Expected timeout on unfired signal")
	}

	s.Fire(ReasonDuration)
	reason, ok := s.WaitTimeout(time.Second)
	if !ok || reason != ReasonDuration {
		t.Errorf("Expected duration reason, got %s (ok=%v)", reason, ok)
	}
}

func TestStopSignal_Reset(t *testing.T) {
	s := NewStopSignal()
	s.Fire(ReasonDuration)
	old := s.Done()

	s.Reset()

	if s.Fired() {
		t.Error("Signal should be unset after Reset")
	}
	select {
	case <-s.Done():
		t.Error("New Done channel should be open")
	default:
	}
	select {
	case <-old:
	default:
		t.Error("Old Done channel should stay closed")
	}

	if !s.Fire(ReasonHotkey) {
		t.Error("Fire after Reset should succeed")
	}
}

var _ Notifier = (*StopSignal)(nil)

// recording must build without the system hotkey library, whose init needs a display
func TestNoHotkeyImport(t *testing.T) {
	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatal(err)
	}

	fset := token.NewFileSet()
	for _, name := range files {
		f, err := parser.ParseFile(fset, name, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("Failed to parse %s: %v", name, err)
		}
		for _, imp := range f.Imports {
			path, _ := strconv.Unquote(imp.Path.Value)
			if strings.HasSuffix(path, "/hotkey") {
				t.Errorf("%s imports %s", name, path)
			}
		}
	}
}
