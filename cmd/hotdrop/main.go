package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"golang.design/x/hotkey/mainthread"

	"github.com/hamzawahab/hotdrop/internal/version"
)

func main() {
	code := 0
	// Global hotkeys must be serviced from the main thread on macOS.
	mainthread.Init(func() {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := fang.Execute(ctx, newRootCmd(), fang.WithVersion(version.Version)); err != nil {
			code = 1
		}
	})
	os.Exit(code)
}
