package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"

	"github.com/yok-tottii/EzS2T-Stream/internal/logger"
)

// Notifier is told when the chord fires
type Notifier = interface{ Notify() }

// KeySource delivers individual key press/release events
type KeySource interface {
	Events() <-chan KeyEvent
	Close() error
}

// SourceFunc opens a KeySource for a chord
type SourceFunc func(Chord) (KeySource, error)

// Listener watches for a global chord on its own goroutine and notifies
// at most once per Start/Stop cycle
type Listener struct {
	chord    Chord
	open     SourceFunc
	log      *logger.Logger
	tracker  *ChordTracker
	source   KeySource
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewListener creates a listener backed by the system hotkey API
func NewListener(chord Chord, log *logger.Logger) *Listener {
	return NewListenerWithSource(chord, OpenSystemSource, log)
}

// NewListenerWithSource creates a listener that reads keys from open
func NewListenerWithSource(chord Chord, open SourceFunc, log *logger.Logger) *Listener {
	if log == nil {
		log = logger.NewNop()
	}
	return &Listener{
		chord:   chord,
		open:    open,
		log:     log,
		tracker: NewChordTracker(chord),
	}
}

// Start begins listening and returns immediately
func (l *Listener) Start(n Notifier) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("hotkey listener is already running, call Stop() first")
	}
	if n == nil {
		return fmt.Errorf("notifier is required")
	}

	source, err := l.open(l.chord)
	if err != nil {
		return fmt.Errorf("failed to register hotkey: %w", err)
	}

	l.source = source
	l.stopChan = make(chan struct{})
	l.tracker.Reset()
	l.running = true

	l.wg.Add(1)
	go l.listen(source.Events(), l.stopChan, n)

	l.log.Debug("ホットキー監視開始: %s", FormatHotkey(l.chord))
	return nil
}

func (l *Listener) listen(events <-chan KeyEvent, stop <-chan struct{}, n Notifier) {
	defer l.wg.Done()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if l.tracker.Handle(ev) {
				l.log.Info("ホットキー検出: %s", FormatHotkey(l.chord))
				n.Notify()
			}
		case <-stop:
			return
		}
	}
}

// Stop halts listening and re-arms the tracker. Calling it when stopped is a no-op.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}

	close(l.stopChan)
	l.wg.Wait()

	// 注意: エラーが発生しても続行し、必ずクリーンアップを実行する
	var closeErr error
	if l.source != nil {
		if err := l.source.Close(); err != nil {
			closeErr = fmt.Errorf("failed to unregister hotkey: %w", err)
		}
		l.source = nil
	}

	l.tracker.Reset()
	l.running = false

	return closeErr
}

// IsRunning returns whether the listener is active
func (l *Listener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Chord returns a copy of the watched chord
func (l *Listener) Chord() Chord {
	c := l.chord
	c.Modifiers = append([]Modifier(nil), l.chord.Modifiers...)
	return c
}

// systemSource adapts golang.design/x/hotkey, which reports the whole chord,
// into per-key events: presses in chord order on keydown, releases in
// reverse on keyup.
type systemSource struct {
	hk       *hotkey.Hotkey
	keys     []string
	events   chan KeyEvent
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// OpenSystemSource registers chord with the OS
func OpenSystemSource(chord Chord) (KeySource, error) {
	mods, key, err := systemChord(chord)
	if err != nil {
		return nil, err
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return nil, err
	}

	s := &systemSource{
		hk:       hk,
		keys:     chord.Keys(),
		events:   make(chan KeyEvent, 16),
		stopChan: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

func (s *systemSource) run() {
	defer s.wg.Done()
	defer close(s.events)

	for {
		select {
		case <-s.hk.Keydown():
			for _, k := range s.keys {
				if !s.emit(KeyEvent{Key: k, Pressed: true}) {
					return
				}
			}
		case <-s.hk.Keyup():
			for i := len(s.keys) - 1; i >= 0; i-- {
				if !s.emit(KeyEvent{Key: s.keys[i], Pressed: false}) {
					return
				}
			}
		case <-s.stopChan:
			return
		}
	}
}

func (s *systemSource) emit(ev KeyEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.stopChan:
		return false
	}
}

func (s *systemSource) Events() <-chan KeyEvent {
	return s.events
}

func (s *systemSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		err = s.hk.Unregister()
	})
	return err
}
