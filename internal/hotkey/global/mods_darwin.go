//go:build darwin

package global

import (
	xhotkey "golang.design/x/hotkey"

	"github.com/hamzawahab/hotdrop/internal/hotkey"
)

func modifiers(m hotkey.Modifier) []xhotkey.Modifier {
	var mods []xhotkey.Modifier
	if m.Has(hotkey.Ctrl) {
		mods = append(mods, xhotkey.ModCtrl)
	}
	if m.Has(hotkey.Shift) {
		mods = append(mods, xhotkey.ModShift)
	}
	if m.Has(hotkey.Alt) {
		mods = append(mods, xhotkey.ModOption)
	}
	if m.Has(hotkey.Meta) {
		mods = append(mods, xhotkey.ModCmd)
	}
	return mods
}
