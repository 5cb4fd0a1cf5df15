package hotkey

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		input     string
		expected  string
		expectErr bool
	}{
		{"ctrl+r", "ctrl+r", false},
		{"Ctrl+Shift+Space", "ctrl+shift+space", false},
		{"option+cmd+escape", "alt+cmd+esc", false},
		{"control+control+a", "ctrl+a", false},
		{"F", "f", false},
		{"ctrl+enter", "ctrl+return", false},
		{"", "", true},
		{"ctrl+", "", true},
		{"hyper+r", "", true},
		{"ctrl+pageup", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			chord, err := ParseHotkey(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Errorf("Expected error for %q, got %v", tt.input, chord)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHotkey failed: %v", err)
			}
			if chord.String() != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, chord.String())
			}
		})
	}
}

func TestChordTracker_FiresWhenAllKeysHeld(t *testing.T) {
	chord, _ := ParseHotkey("ctrl+shift+r")
	tracker := NewChordTracker(chord)

	events := []struct {
		ev   KeyEvent
		fire bool
	}{
		{KeyEvent{Key: "ctrl", Pressed: true}, false},
		{KeyEvent{Key: "r", Pressed: true}, false},
		{KeyEvent{Key: "r", Pressed: false}, false},
		{KeyEvent{Key: "shift", Pressed: true}, false},
		{KeyEvent{Key: "r", Pressed: true}, true},
	}

	for i, step := range events {
		if got := tracker.Handle(step.ev); got != step.fire {
			t.Errorf("Step %d (%+v): expected fire=%v, got %v", i, step.ev, step.fire, got)
		}
	}
}

func TestChordTracker_NoRefireUntilReset(t *testing.T) {
	chord, _ := ParseHotkey("ctrl+r")
	tracker := NewChordTracker(chord)

	press := func(k string) bool { return tracker.Handle(KeyEvent{Key: k, Pressed: true}) }
	release := func(k string) bool { return tracker.Handle(KeyEvent{Key: k, Pressed: false}) }

	press("ctrl")
	if !press("r") {
		t.Fatal("Chord should fire")
	}

	// キーのバウンスやリピートでは再発火しない
	if press("r") {
		t.Error("Repeated press should not re-fire")
	}
	release("r")
	release("ctrl")
	press("control")
	if press("R") {
		t.Error("Second physical chord should not fire before Reset")
	}
	if !tracker.Fired() {
		t.Error("Tracker should report fired")
	}

	tracker.Reset()
	if tracker.Fired() {
		t.Error("Reset should re-arm the tracker")
	}

	// Reset で押下状態もクリアされる
	if press("r") {
		t.Error("Only r is held after Reset; should not fire")
	}
	press("ctrl")
	if tracker.Fired() != true {
		t.Error("Chord should fire again after Reset")
	}
}

// fakeSource is a KeySource driven by the test
type fakeSource struct {
	events chan KeyEvent
	closed atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan KeyEvent, 16)}
}

func (s *fakeSource) Events() <-chan KeyEvent { return s.events }

func (s *fakeSource) Close() error {
	s.closed.Add(1)
	return nil
}

type countingNotifier struct {
	count atomic.Int32
	ch    chan struct{}
}

func newCountingNotifier() *countingNotifier {
	return &countingNotifier{ch: make(chan struct{}, 8)}
}

func (n *countingNotifier) Notify() {
	n.count.Add(1)
	n.ch <- struct{}{}
}

func TestListener_NotifiesOncePerCycle(t *testing.T) {
	chord, _ := ParseHotkey("ctrl+r")

	var mu sync.Mutex
	var sources []*fakeSource
	open := func(Chord) (KeySource, error) {
		mu.Lock()
		defer mu.Unlock()
		s := newFakeSource()
		sources = append(sources, s)
		return s, nil
	}

	l := NewListenerWithSource(chord, open, nil)
	n := newCountingNotifier()

	if err := l.Start(n); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !l.IsRunning() {
		t.Error("Listener should be running")
	}
	if err := l.Start(n); err == nil {
		t.Error("Second Start should fail while running")
	}

	src := sources[0]
	for i := 0; i < 3; i++ {
		src.events <- KeyEvent{Key: "ctrl", Pressed: true}
		src.events <- KeyEvent{Key: "r", Pressed: true}
		src.events <- KeyEvent{Key: "r", Pressed: false}
		src.events <- KeyEvent{Key: "ctrl", Pressed: false}
	}

	select {
	case <-n.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("Notifier was not called")
	}
	time.Sleep(50 * time.Millisecond)

	if err := l.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if n.count.Load() != 1 {
		t.Errorf("Expected exactly one notification, got %d", n.count.Load())
	}
	if src.closed.Load() != 1 {
		t.Errorf("Source should be closed once, got %d", src.closed.Load())
	}

	// Stop は冪等
	if err := l.Stop(); err != nil {
		t.Errorf("Second Stop should be a no-op, got %v", err)
	}

	// 新しいサイクルでは再び通知される
	if err := l.Start(n); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	src2 := sources[1]
	src2.events <- KeyEvent{Key: "ctrl", Pressed: true}
	src2.events <- KeyEvent{Key: "r", Pressed: true}

	select {
	case <-n.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("Notifier was not called after restart")
	}
	l.Stop()

	if n.count.Load() != 2 {
		t.Errorf("Expected two notifications in total, got %d", n.count.Load())
	}
}

func TestListener_StartErrors(t *testing.T) {
	chord, _ := ParseHotkey("ctrl+r")

	failing := NewListenerWithSource(chord, func(Chord) (KeySource, error) {
		return nil, errors.New("registration denied")
	}, nil)
	if err := failing.Start(newCountingNotifier()); err == nil {
		t.Error("Expected registration error")
	}
	if failing.IsRunning() {
		t.Error("Listener should not be running after failed Start")
	}

	ok := NewListenerWithSource(chord, func(Chord) (KeySource, error) {
		return newFakeSource(), nil
	}, nil)
	if err := ok.Start(nil); err == nil {
		t.Error("Expected error for nil notifier")
	}
}

func TestListener_SourceClosed(t *testing.T) {
	chord, _ := ParseHotkey("ctrl+r")
	src := newFakeSource()
	l := NewListenerWithSource(chord, func(Chord) (KeySource, error) { return src, nil }, nil)

	if err := l.Start(newCountingNotifier()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// ソース側がチャネルを閉じてもハングしない
	close(src.events)

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop hung after source closed")
	}
}

func TestListener_ChordCopy(t *testing.T) {
	chord, _ := ParseHotkey("ctrl+shift+r")
	l := NewListener(chord, nil)

	c := l.Chord()
	c.Modifiers[0] = ModCmd

	if l.Chord().Modifiers[0] != ModCtrl {
		t.Error("Chord() should return a copy")
	}
}

func TestSystemChord(t *testing.T) {
	chord, _ := ParseHotkey("ctrl+shift+r")

	mods, _, err := systemChord(chord)
	if err != nil {
		t.Fatalf("systemChord failed: %v", err)
	}
	if len(mods) != 2 {
		t.Errorf("Expected 2 modifiers, got %d", len(mods))
	}

	if _, _, err := systemChord(Chord{Key: "pageup"}); err == nil {
		t.Error("Expected error for unsupported key")
	}
}

func TestCheckConflicts(t *testing.T) {
	tests := []struct {
		name           string
		hotkey         string
		expectConflict bool
	}{
		{"Spotlight conflict (Cmd+Space)", "cmd+space", true},
		{"No conflict (Ctrl+Option+Space)", "ctrl+option+space", false},
		{"Force Quit conflict (Option+Cmd+Esc)", "option+cmd+esc", true},
		{"Shell reverse search (Ctrl+R)", "ctrl+r", true},
		{"No conflict (Ctrl+Shift+R)", "ctrl+shift+r", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chord, err := ParseHotkey(tt.hotkey)
			if err != nil {
				t.Fatalf("ParseHotkey failed: %v", err)
			}
			conflicts := CheckConflicts(chord)
			if (len(conflicts) > 0) != tt.expectConflict {
				t.Errorf("Expected conflict=%v, got %v", tt.expectConflict, conflicts)
			}
		})
	}
}

func TestFormatHotkey(t *testing.T) {
	tests := []struct {
		hotkey   string
		expected string
	}{
		{"ctrl+option+space", "⌃⌥Space"},
		{"cmd+shift+a", "⌘⇧A"},
		{"ctrl+r", "⌃R"},
		{"ctrl+5", "⌃5"},
		{"shift+esc", "⇧Esc"},
	}

	for _, tt := range tests {
		t.Run(tt.hotkey, func(t *testing.T) {
			chord, err := ParseHotkey(tt.hotkey)
			if err != nil {
				t.Fatalf("ParseHotkey failed: %v", err)
			}
			if got := FormatHotkey(chord); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
