//go:build linux

package global

import (
	xhotkey "golang.design/x/hotkey"

	"github.com/hamzawahab/hotdrop/internal/hotkey"
)

// X11 maps Alt to Mod1 and the Super key to Mod4.
func modifiers(m hotkey.Modifier) []xhotkey.Modifier {
	var mods []xhotkey.Modifier
	if m.Has(hotkey.Ctrl) {
		mods = append(mods, xhotkey.ModCtrl)
	}
	if m.Has(hotkey.Shift) {
		mods = append(mods, xhotkey.ModShift)
	}
	if m.Has(hotkey.Alt) {
		mods = append(mods, xhotkey.Mod1)
	}
	if m.Has(hotkey.Meta) {
		mods = append(mods, xhotkey.Mod4)
	}
	return mods
}
