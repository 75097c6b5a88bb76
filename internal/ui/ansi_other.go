//go:build !windows

package ui

func enableANSI() bool { return true }
