package ui

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamzawahab/hotdrop/internal/commands"
	"github.com/hamzawahab/hotdrop/internal/config"
	"github.com/hamzawahab/hotdrop/internal/coordinator"
	"github.com/hamzawahab/hotdrop/internal/events"
	"github.com/hamzawahab/hotdrop/internal/logger"
	"github.com/hamzawahab/hotdrop/internal/network"
	"github.com/hamzawahab/hotdrop/internal/session"
)

func TestPromptRole(t *testing.T) {
	tests := []struct {
		input  string
		role   coordinator.Role
		server string
	}{
		{"1\n", coordinator.RoleReceiver, ""},
		{" 1 \n", coordinator.RoleReceiver, ""},
		{"2\n192.168.1.20\n", coordinator.RoleSender, "192.168.1.20"},
		{"2\n\n", coordinator.RoleSender, "localhost"},
		{"2\n", coordinator.RoleSender, "localhost"},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		choice, err := PromptRole(strings.NewReader(tt.input), &out)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.role, choice.Role, "input %q", tt.input)
		assert.Equal(t, tt.server, choice.Server, "input %q", tt.input)
		assert.Contains(t, out.String(), "Select (1/2)")
	}
}

func TestPromptRoleInvalid(t *testing.T) {
	for _, input := range []string{"3\n", "\n", "", "server\n"} {
		_, err := PromptRole(strings.NewReader(input), &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrInvalidChoice, "input %q", input)
	}
}

func TestPromptRoleLeavesRestOfInput(t *testing.T) {
	in := strings.NewReader("2\n10.0.0.9\n@send /tmp/a.txt\n")
	choice, err := PromptRole(in, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", choice.Server)

	rest, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.Equal(t, "@send /tmp/a.txt\n", string(rest))

	in = strings.NewReader("1\n@pick\n")
	_, err = PromptRole(in, &bytes.Buffer{})
	require.NoError(t, err)
	rest, err = io.ReadAll(in)
	require.NoError(t, err)
	assert.Equal(t, "@pick\n", string(rest))
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2024, 1, 2, 13, 4, 5, 0, time.UTC)
	plain := func(p string) string { return p }

	line := formatEvent(events.Event{Type: events.FileReceived, Message: "a.txt", From: "10.0.0.2:5000", Path: "/in/a.txt", Size: 2048, Timestamp: ts}, plain)
	assert.Contains(t, stripANSI(line), "[13:04:05] Received a.txt (2.0 KB) from 10.0.0.2:5000 -> /in/a.txt")

	line = formatEvent(events.Event{Type: events.FileSent, Message: "OK", To: "srv:8080", Path: "/x/b.bin", Size: 5, Timestamp: ts}, plain)
	assert.Contains(t, stripANSI(line), `Sent /x/b.bin (5 B) to srv:8080; server replied "OK"`)

	line = formatEvent(events.Event{Type: events.Error, Title: "No save directory", Message: "rejected", Timestamp: ts}, plain)
	assert.Equal(t, "[13:04:05] No save directory: rejected", stripANSI(line))

	assert.Empty(t, formatEvent(events.Event{Type: events.Progress}, plain))
}

func TestFormatProgressLineFitsWidth(t *testing.T) {
	now := time.Now()
	ps := &events.ProgressState{
		ID:        "send:1",
		Path:      "/very/long/path/" + strings.Repeat("x", 120) + ".iso",
		Peer:      "192.168.100.200:8080",
		Direction: "send",
		Current:   512,
		Total:     1024,
		StartedAt: now.Add(-2 * time.Second),
	}
	for _, width := range []int{40, 80, 200} {
		line := formatProgressLine(ps, width, now)
		assert.LessOrEqual(t, visibleWidth(line), width-2, "width %d", width)
		assert.True(t, strings.HasPrefix(line, "\r"))
	}

	line := formatProgressLine(&events.ProgressState{Path: "/in/a.txt", Direction: "receive", Total: 10, Current: 10, Done: true, StartedAt: now.Add(-time.Minute)}, 200, now)
	plain := stripANSI(line)
	assert.Contains(t, plain, "Received a.txt")
	assert.Contains(t, plain, "100%")
	assert.Contains(t, plain, "01:00")
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "0 B", humanBytes(0))
	assert.Equal(t, "1023 B", humanBytes(1023))
	assert.Equal(t, "1.5 KB", humanBytes(1536))
	assert.Equal(t, "10 MB", humanBytes(10<<20))

	assert.Equal(t, "01:05", formatDuration(65*time.Second))
	assert.Equal(t, "1:00:01", formatDuration(time.Hour+time.Second))
	assert.Equal(t, "--:--", formatETA(time.Time{}, time.Now(), 50))

	assert.Equal(t, 0.0, progressPercent(&events.ProgressState{Current: -1, Total: 10}))
	assert.Equal(t, 100.0, progressPercent(&events.ProgressState{Total: 0}))

	assert.Equal(t, 3, visibleWidth("\033[31mabc\033[0m"))
	assert.Equal(t, "(unknown)", safe("  "))
}

type nopPicker struct{}

func (nopPicker) PickFolder() (string, error) { return "", nil }
func (nopPicker) PickFile() (string, error)   { return "", nil }

func newReceiverConsole(t *testing.T, input string) (*UI, *session.Session) {
	t.Helper()
	t.Setenv("HOTDROP_HOME", t.TempDir())
	cfg := config.Default()
	cfg.Port = 0
	cfg.Server.Announce = false
	cfg.Transfer.PollInterval = 10 * time.Millisecond
	sess, err := session.New(context.Background(), cfg, logger.Discard(), session.Options{
		Role:   coordinator.RoleReceiver,
		Picker: nopPicker{},
	})
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	console, err := newConsole(sess, commands.New(sess), io.NopCloser(strings.NewReader(input)), io.Discard)
	require.NoError(t, err)
	return console, sess
}

func TestConsoleEndOfInputKeepsSessionRunning(t *testing.T) {
	console, sess := newReceiverConsole(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	done := make(chan struct{})
	go func() {
		console.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("console returned when input ended")
	case <-time.After(300 * time.Millisecond):
	}

	src := filepath.Join(t.TempDir(), "late.txt")
	require.NoError(t, os.WriteFile(src, []byte("still here"), 0o644))
	out := (&network.Sender{}).SendOne(context.Background(), sess.Intake.Addr().String(), src)
	require.True(t, out.OK(), out.String())
	assert.Equal(t, network.ReplyNoDestination, out.Response)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop after cancel")
	}
}

func TestConsoleExitCommandEndsRun(t *testing.T) {
	console, _ := newReceiverConsole(t, "@status\n@exit\n")
	done := make(chan struct{})
	go func() {
		console.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("@exit did not end the console")
	}
}
