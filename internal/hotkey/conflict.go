package hotkey

import "strings"

// ConflictInfo represents information about a known shortcut conflict
type ConflictInfo struct {
	Name        string
	Description string
	Chord       Chord
}

// knownConflicts contains well-known system and terminal shortcuts
var knownConflicts = []ConflictInfo{
	{
		Name:        "Spotlight",
		Description: "macOS Spotlight search",
		Chord:       Chord{Modifiers: []Modifier{ModCmd}, Key: "space"},
	},
	{
		Name:        "IME Switch",
		Description: "Input method editor switch",
		Chord:       Chord{Modifiers: []Modifier{ModCtrl}, Key: "space"},
	},
	{
		Name:        "Force Quit",
		Description: "macOS Force Quit",
		Chord:       Chord{Modifiers: []Modifier{ModCmd, ModAlt}, Key: "esc"},
	},
	{
		Name:        "Interrupt",
		Description: "Terminal interrupt (SIGINT)",
		Chord:       Chord{Modifiers: []Modifier{ModCtrl}, Key: "c"},
	},
	{
		Name:        "Suspend",
		Description: "Terminal suspend (SIGTSTP)",
		Chord:       Chord{Modifiers: []Modifier{ModCtrl}, Key: "z"},
	},
	{
		Name:        "Reverse Search",
		Description: "Shell history reverse search",
		Chord:       Chord{Modifiers: []Modifier{ModCtrl}, Key: "r"},
	},
}

// CheckConflicts checks if the given chord matches known shortcuts
func CheckConflicts(chord Chord) []ConflictInfo {
	var conflicts []ConflictInfo

	for _, known := range knownConflicts {
		if chordMatches(chord, known.Chord) {
			conflicts = append(conflicts, known)
		}
	}

	return conflicts
}

// chordMatches checks if two chords are identical regardless of modifier order
func chordMatches(a, b Chord) bool {
	if a.Key != b.Key || len(a.Modifiers) != len(b.Modifiers) {
		return false
	}

	mods := make(map[Modifier]bool, len(a.Modifiers))
	for _, m := range a.Modifiers {
		mods[m] = true
	}
	for _, m := range b.Modifiers {
		if !mods[m] {
			return false
		}
	}

	return true
}

// FormatHotkey returns a human-readable string representation of the chord
func FormatHotkey(chord Chord) string {
	result := ""

	for _, mod := range chord.Modifiers {
		switch mod {
		case ModCtrl:
			result += "⌃"
		case ModShift:
			result += "⇧"
		case ModAlt:
			result += "⌥"
		case ModCmd:
			result += "⌘"
		}
	}

	return result + keyToString(chord.Key)
}

// keyToString converts a key name to a display string
func keyToString(key string) string {
	keyMap := map[string]string{
		"space":  "Space",
		"esc":    "Esc",
		"return": "Return",
		"tab":    "Tab",
		"delete": "Delete",
	}

	if name, ok := keyMap[key]; ok {
		return name
	}

	if len(key) == 1 {
		return strings.ToUpper(key)
	}

	return "Unknown"
}
