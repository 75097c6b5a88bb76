package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/hamzawahab/hotdrop/internal/commands"
	"github.com/hamzawahab/hotdrop/internal/coordinator"
	"github.com/hamzawahab/hotdrop/internal/events"
	"github.com/hamzawahab/hotdrop/internal/session"
	"github.com/hamzawahab/hotdrop/internal/version"
)

const (
	colorReset    = "\033[0m"
	colorPrimary  = "\033[36m"
	colorSuccess  = "\033[32m"
	colorWarn     = "\033[33m"
	colorError    = "\033[31m"
	colorMuted    = "\033[90m"
	colorAccent   = "\033[38;2;198;149;255m"
	colorBarEmpty = "\033[38;2;80;80;80m"
	bannerWidth   = 80
)

var welcomeBanner = []string{
	` _           _      _                 `,
	`| |__   ___ | |_ __| |_ __ ___  _ __  `,
	`| '_ \ / _ \| __/ _' | '__/ _ \| '_ \ `,
	`| | | | (_) | || (_| | | | (_) | |_) |`,
	`|_| |_|\___/ \__\__,_|_|  \___/| .__/ `,
	`                               |_|    `,
}

type UI struct {
	session *session.Session
	handler *commands.Handler
	rl      *readline.Instance
	done    chan struct{}
	once    sync.Once

	printMu    sync.Mutex
	progressMu sync.Mutex
	homeDir    string

	progressActive bool
	progressID     string
	progressLine   string

	// plain strips escape codes on consoles without VT support.
	plain bool
}

func New(session *session.Session, handler *commands.Handler) (*UI, error) {
	return newConsole(session, handler, os.Stdin, os.Stdout)
}

func newConsole(session *session.Session, handler *commands.Handler, in io.ReadCloser, out io.Writer) (*UI, error) {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	cfg := &readline.Config{
		Prompt:                 colorMuted + session.Role.String() + "> " + colorReset,
		InterruptPrompt:        colorMuted + "^C" + colorReset + "\n",
		EOFPrompt:              "",
		HistorySearchFold:      true,
		DisableAutoSaveHistory: true,
		HistoryLimit:           256,
		Stdin:                  in,
		Stdout:                 out,
		Stderr:                 out,
		FuncIsTerminal:         func() bool { return interactive },
		FuncGetWidth:           terminalWidth,
	}
	plain := !enableANSI()
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	if !interactive {
		fmt.Fprintln(out, "stdin is not a terminal; line editing is off")
	}
	home, _ := os.UserHomeDir()
	return &UI{
		session: session,
		handler: handler,
		rl:      rl,
		done:    make(chan struct{}),
		homeDir: home,
		plain:   plain,
	}, nil
}

// Run reads console commands until @exit or ctx is done. When input ends the
// console goes quiet and Run waits for ctx, so hotkeys keep working when
// hotdrop runs detached from a terminal.
func (u *UI) Run(ctx context.Context) {
	defer u.rl.Close()
	u.printWelcome()
	go u.consumeEvents()
	go func() {
		select {
		case <-ctx.Done():
			u.rl.Close()
		case <-u.done:
		}
	}()
	for {
		line, err := u.rl.Readline()
		switch {
		case ctx.Err() != nil:
			u.shutdown()
			return
		case errors.Is(err, io.EOF):
			u.say(colorMuted, "Console input closed; hotdrop keeps running until interrupted.")
			<-ctx.Done()
			u.shutdown()
			return
		case errors.Is(err, readline.ErrInterrupt):
			u.say(colorMuted, "^C (type @exit to quit)")
		case err != nil:
			u.say(colorError, "read input: "+err.Error())
		default:
			if u.execute(line) {
				u.shutdown()
				return
			}
		}
	}
}

// execute runs one console line and reports whether the session should end.
func (u *UI) execute(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	_ = u.rl.SaveHistory(line)
	res, err := u.handler.Handle(line)
	switch {
	case err != nil:
		u.say(colorError, err.Error())
	case res.Clear:
		u.clearScreen()
	case res.Output != "":
		u.say(colorSuccess, res.Output)
	}
	return err == nil && res.Quit
}

func (u *UI) say(color, text string) {
	u.writeLine(color + text + colorReset)
}

func (u *UI) consumeEvents() {
	for {
		select {
		case evt := <-u.session.Events:
			u.renderEvent(evt)
		case <-u.done:
			return
		}
	}
}

func (u *UI) renderEvent(evt events.Event) {
	if evt.Type == events.Progress {
		u.renderProgress(evt)
		return
	}
	if line := formatEvent(evt, u.colorizePath); line != "" {
		u.writeLine(line)
	}
}

func formatEvent(evt events.Event, path func(string) string) string {
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	stamp := ts.Format("15:04:05")
	switch evt.Type {
	case events.FileReceived:
		return fmt.Sprintf("%s[%s] Received %s (%s) from %s -> %s%s", colorPrimary, stamp, safe(evt.Message), humanBytes(evt.Size), safe(evt.From), path(evt.Path), colorReset)
	case events.FileSent:
		return fmt.Sprintf("%s[%s] Sent %s (%s) to %s; server replied %q%s", colorSuccess, stamp, path(evt.Path), humanBytes(evt.Size), safe(evt.To), evt.Message, colorReset)
	case events.DestinationChanged:
		return fmt.Sprintf("%s[%s] Saving incoming files to %s%s", colorSuccess, stamp, path(evt.Path), colorReset)
	case events.Triggered:
		return fmt.Sprintf("%s[%s] Hotkey %s pressed%s", colorMuted, stamp, safe(evt.Message), colorReset)
	case events.Error:
		return fmt.Sprintf("%s[%s] %s: %s%s", colorError, stamp, safe(evt.Title), safe(evt.Message), colorReset)
	case events.Status:
		return fmt.Sprintf("%s[%s] %s%s", colorMuted, stamp, safe(evt.Message), colorReset)
	}
	return ""
}

func (u *UI) printWelcome() {
	for _, line := range welcomeBanner {
		u.say(colorPrimary, centerLine(line, bannerWidth))
	}
	u.say(colorSuccess, centerLine("One key, one file, one connection.", bannerWidth))
	u.writeLine("")
	st := u.session.Status()
	u.writeLine(fmt.Sprintf("%sWelcome to hotdrop v%s (%s mode)%s", colorPrimary, version.Version, st.Role, colorReset))
	switch st.Role {
	case coordinator.RoleReceiver:
		u.writeLine(fmt.Sprintf("%sListening:%s %s | LAN IP: %s", colorMuted, colorReset, st.ListenAddr, st.LocalIP))
		u.writeLine(fmt.Sprintf("%sHotkey:%s %s chooses the folder incoming files are saved to.", colorMuted, colorReset, st.Binding))
		u.say(colorWarn, "No save folder selected yet; transfers are refused until you pick one.")
	case coordinator.RoleSender:
		u.writeLine(fmt.Sprintf("%sServer:%s %s", colorMuted, colorReset, st.ServerAddr))
		u.writeLine(fmt.Sprintf("%sHotkey:%s %s chooses a file and sends it.", colorMuted, colorReset, st.Binding))
	}
	u.writeLine("@help lists console commands.")
}

func (u *UI) clearScreen() {
	u.printMu.Lock()
	fmt.Fprint(u.rl.Stdout(), "\033[2J\033[H")
	u.printMu.Unlock()
	u.rl.Refresh()
	u.progressMu.Lock()
	u.progressActive = false
	u.progressLine = ""
	u.progressID = ""
	u.progressMu.Unlock()
}

func (u *UI) shutdown() {
	u.once.Do(func() {
		close(u.done)
		u.say(colorMuted, "hotdrop stopped.")
	})
}

func (u *UI) writeLine(line string) {
	u.progressMu.Lock()
	active := u.progressActive
	progressLine := u.progressLine
	u.progressMu.Unlock()

	if u.plain {
		line = stripANSI(line)
		progressLine = stripANSI(progressLine)
	}

	u.printMu.Lock()
	fmt.Fprintf(u.rl.Stdout(), "\r\033[K%s\n", line)
	if active {
		fmt.Fprintf(u.rl.Stdout(), "%s", progressLine)
	}
	u.printMu.Unlock()
	u.rl.Refresh()
}

func (u *UI) colorizePath(path string) string {
	clean := path
	if u.homeDir != "" && strings.HasPrefix(path, u.homeDir) {
		suffix := strings.TrimPrefix(strings.TrimPrefix(path, u.homeDir), string(os.PathSeparator))
		if suffix == "" {
			clean = "~"
		} else {
			clean = "~" + string(os.PathSeparator) + suffix
		}
	}
	return colorPrimary + clean + colorReset
}

func safe(in string) string {
	if strings.TrimSpace(in) == "" {
		return "(unknown)"
	}
	return in
}

func centerLine(line string, width int) string {
	trimmed := strings.TrimRight(line, "\n")
	if len(trimmed) >= width {
		return trimmed
	}
	return strings.Repeat(" ", (width-len(trimmed))/2) + trimmed
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return bannerWidth
	}
	return width
}
