//go:build windows

package ui

import (
	"os"

	"golang.org/x/sys/windows"
)

// enableANSI turns on VT processing for the console handles. It reports
// false when stdout refuses it, as on legacy conhost.
func enableANSI() bool {
	out := uint32(windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING | windows.ENABLE_PROCESSED_OUTPUT)
	ok := consoleMode(os.Stdout, out)
	consoleMode(os.Stderr, out)
	consoleMode(os.Stdin, windows.ENABLE_VIRTUAL_TERMINAL_INPUT|windows.ENABLE_PROCESSED_INPUT)
	return ok
}

func consoleMode(f *os.File, flags uint32) bool {
	h := windows.Handle(f.Fd())
	var mode uint32
	if err := windows.GetConsoleMode(h, &mode); err != nil {
		return false
	}
	return windows.SetConsoleMode(h, mode|flags) == nil
}
