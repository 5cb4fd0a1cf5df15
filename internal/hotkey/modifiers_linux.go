package hotkey

import "golang.design/x/hotkey"

// X11 では Alt が Mod1、Super が Mod4
var platformModifiers = map[Modifier]hotkey.Modifier{
	ModCtrl:  hotkey.ModCtrl,
	ModShift: hotkey.ModShift,
	ModAlt:   hotkey.Mod1,
	ModCmd:   hotkey.Mod4,
}
