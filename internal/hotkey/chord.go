package hotkey

import (
	"fmt"
	"strings"
	"sync"
)

// Modifier is a platform-neutral modifier key name
type Modifier string

const (
	ModCtrl  Modifier = "ctrl"
	ModShift Modifier = "shift"
	ModAlt   Modifier = "alt"
	ModCmd   Modifier = "cmd"
)

var modifierAliases = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"option":  ModAlt,
	"opt":     ModAlt,
	"cmd":     ModCmd,
	"command": ModCmd,
	"super":   ModCmd,
	"win":     ModCmd,
}

// Chord is a key combination such as ctrl+r
type Chord struct {
	Modifiers []Modifier
	Key       string // lower-case key name: "r", "5", "space", "esc", ...
}

// ParseHotkey parses a combination like "ctrl+shift+space"
func ParseHotkey(s string) (Chord, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	if len(parts) == 0 || parts[0] == "" {
		return Chord{}, fmt.Errorf("empty hotkey")
	}

	var chord Chord
	seen := make(map[Modifier]bool)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Chord{}, fmt.Errorf("invalid hotkey %q: empty key name", s)
		}

		if i == len(parts)-1 {
			name := normalizeKeyName(p)
			if _, ok := keyNames[name]; !ok {
				return Chord{}, fmt.Errorf("invalid hotkey %q: unknown key %q", s, p)
			}
			chord.Key = name
			break
		}

		mod, ok := modifierAliases[p]
		if !ok {
			return Chord{}, fmt.Errorf("invalid hotkey %q: unknown modifier %q", s, p)
		}
		if !seen[mod] {
			seen[mod] = true
			chord.Modifiers = append(chord.Modifiers, mod)
		}
	}

	return chord, nil
}

// String returns the canonical "ctrl+r" form
func (c Chord) String() string {
	parts := make([]string, 0, len(c.Modifiers)+1)
	for _, m := range c.Modifiers {
		parts = append(parts, string(m))
	}
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}

// Keys returns every constituent key, modifiers first
func (c Chord) Keys() []string {
	keys := make([]string, 0, len(c.Modifiers)+1)
	for _, m := range c.Modifiers {
		keys = append(keys, string(m))
	}
	return append(keys, c.Key)
}

// KeyEvent is a single key press or release
type KeyEvent struct {
	Key     string
	Pressed bool
}

// ChordTracker turns per-key press/release notifications into one chord
// trigger. It fires when every key of the chord is held at the same time
// and does not fire again until Reset.
type ChordTracker struct {
	mu      sync.Mutex
	keys    []string
	pressed map[string]bool
	fired   bool
}

// NewChordTracker creates a tracker for chord
func NewChordTracker(chord Chord) *ChordTracker {
	return &ChordTracker{
		keys:    chord.Keys(),
		pressed: make(map[string]bool),
	}
}

// Handle records ev and reports whether the chord fired on this event
func (t *ChordTracker) Handle(ev KeyEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := normalizeKeyName(ev.Key)
	if ev.Pressed {
		t.pressed[key] = true
	} else {
		delete(t.pressed, key)
	}

	if t.fired || !ev.Pressed {
		return false
	}

	for _, k := range t.keys {
		if !t.pressed[k] {
			return false
		}
	}

	t.fired = true
	return true
}

// Fired reports whether the chord has fired since the last Reset
func (t *ChordTracker) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Reset clears the pressed set and re-arms the tracker
func (t *ChordTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pressed = make(map[string]bool)
	t.fired = false
}

func normalizeKeyName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "escape":
		return "esc"
	case "enter":
		return "return"
	}
	if mod, ok := modifierAliases[name]; ok {
		return string(mod)
	}
	return name
}
