package hotkey

import (
	"fmt"

	"golang.design/x/hotkey"
)

var keyNames = map[string]hotkey.Key{
	"space":  hotkey.KeySpace,
	"esc":    hotkey.KeyEscape,
	"return": hotkey.KeyReturn,
	"tab":    hotkey.KeyTab,
	"delete": hotkey.KeyDelete,
	"a":      hotkey.KeyA,
	"b":      hotkey.KeyB,
	"c":      hotkey.KeyC,
	"d":      hotkey.KeyD,
	"e":      hotkey.KeyE,
	"f":      hotkey.KeyF,
	"g":      hotkey.KeyG,
	"h":      hotkey.KeyH,
	"i":      hotkey.KeyI,
	"j":      hotkey.KeyJ,
	"k":      hotkey.KeyK,
	"l":      hotkey.KeyL,
	"m":      hotkey.KeyM,
	"n":      hotkey.KeyN,
	"o":      hotkey.KeyO,
	"p":      hotkey.KeyP,
	"q":      hotkey.KeyQ,
	"r":      hotkey.KeyR,
	"s":      hotkey.KeyS,
	"t":      hotkey.KeyT,
	"u":      hotkey.KeyU,
	"v":      hotkey.KeyV,
	"w":      hotkey.KeyW,
	"x":      hotkey.KeyX,
	"y":      hotkey.KeyY,
	"z":      hotkey.KeyZ,
	"0":      hotkey.Key0,
	"1":      hotkey.Key1,
	"2":      hotkey.Key2,
	"3":      hotkey.Key3,
	"4":      hotkey.Key4,
	"5":      hotkey.Key5,
	"6":      hotkey.Key6,
	"7":      hotkey.Key7,
	"8":      hotkey.Key8,
	"9":      hotkey.Key9,
}

// systemChord converts a chord into golang.design/x/hotkey values
func systemChord(c Chord) ([]hotkey.Modifier, hotkey.Key, error) {
	key, ok := keyNames[c.Key]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported key: %s", c.Key)
	}

	mods := make([]hotkey.Modifier, 0, len(c.Modifiers))
	for _, m := range c.Modifiers {
		mod, ok := platformModifiers[m]
		if !ok {
			return nil, 0, fmt.Errorf("modifier %s is not available on this platform", m)
		}
		mods = append(mods, mod)
	}

	return mods, key, nil
}
