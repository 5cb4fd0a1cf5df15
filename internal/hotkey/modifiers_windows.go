package hotkey

import "golang.design/x/hotkey"

var platformModifiers = map[Modifier]hotkey.Modifier{
	ModCtrl:  hotkey.ModCtrl,
	ModShift: hotkey.ModShift,
	ModAlt:   hotkey.ModAlt,
	ModCmd:   hotkey.ModWin,
}
