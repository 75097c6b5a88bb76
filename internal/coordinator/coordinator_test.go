package coordinator

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamzawahab/hotdrop/internal/events"
	"github.com/hamzawahab/hotdrop/internal/hotkey"
	"github.com/hamzawahab/hotdrop/internal/logger"
	"github.com/hamzawahab/hotdrop/internal/network"
	"github.com/hamzawahab/hotdrop/internal/picker"
)

type fakePicker struct {
	mu      sync.Mutex
	path    string
	err     error
	folders int
	files   int
}

func (f *fakePicker) set(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.path, f.err = path, err
}

func (f *fakePicker) PickFolder() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders++
	return f.path, f.err
}

func (f *fakePicker) PickFile() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files++
	return f.path, f.err
}

// tcpPair returns both ends of a loopback connection.
func tcpPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}
	return client, server
}

func readReply(t *testing.T, conn net.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(data)
}

type receiverRig struct {
	coord  *Coordinator
	source *hotkey.Manual
	picker *fakePicker
	conns  chan net.Conn
	events chan events.Event
}

func newReceiverRig(t *testing.T) *receiverRig {
	t.Helper()
	rig := &receiverRig{
		source: hotkey.NewManual(),
		picker: &fakePicker{},
		conns:  make(chan net.Conn, 4),
		events: make(chan events.Event, 64),
	}
	coord, err := New(Options{
		Role:        RoleReceiver,
		Source:      rig.source,
		Binding:     hotkey.MustParse("ctrl+shift+r"),
		Picker:      rig.picker,
		Logger:      logger.Discard(),
		Events:      rig.events,
		Connections: rig.conns,
		Receiver:    &network.Receiver{},
	})
	require.NoError(t, err)
	rig.coord = coord
	return rig
}

func (r *receiverRig) press(t *testing.T) {
	t.Helper()
	require.NoError(t, r.source.Press(hotkey.MustParse("ctrl+shift+r")))
}

func (r *receiverRig) drain() []events.Event {
	var out []events.Event
	for len(r.events) > 0 {
		out = append(out, <-r.events)
	}
	return out
}

func hasEvent(list []events.Event, typ events.Type) bool {
	for _, evt := range list {
		if evt.Type == typ {
			return true
		}
	}
	return false
}

func TestReceiverWithoutDestinationReplies(t *testing.T) {
	rig := newReceiverRig(t)
	client, server := tcpPair(t)
	rig.conns <- server

	rig.coord.Tick(context.Background())

	assert.Equal(t, network.ReplyNoDestination, readReply(t, client))
	assert.True(t, hasEvent(rig.drain(), events.Error))
	_, ok := rig.coord.Destination().Get()
	assert.False(t, ok)
}

func TestReceiverPickThenReceive(t *testing.T) {
	rig := newReceiverRig(t)
	dir := t.TempDir()
	rig.picker.set(dir, nil)

	rig.press(t)
	rig.coord.Tick(context.Background())
	got, ok := rig.coord.Destination().Get()
	require.True(t, ok)
	assert.Equal(t, dir, got)
	assert.True(t, hasEvent(rig.drain(), events.DestinationChanged))

	client, server := tcpPair(t)
	frame, err := network.Encode("note.txt", []byte("hi there"))
	require.NoError(t, err)
	_, err = client.Write(frame)
	require.NoError(t, err)
	rig.conns <- server

	rig.coord.Tick(context.Background())
	assert.Equal(t, network.ReplyOK, readReply(t, client))

	data, err := os.ReadFile(filepath.Join(dir, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi there", string(data))
	assert.True(t, hasEvent(rig.drain(), events.FileReceived))
}

func TestReceiverCancelKeepsDestination(t *testing.T) {
	rig := newReceiverRig(t)
	first := t.TempDir()
	rig.picker.set(first, nil)
	rig.press(t)
	rig.coord.Tick(context.Background())

	rig.picker.set("", picker.ErrCancelled)
	rig.press(t)
	rig.coord.Tick(context.Background())

	got, ok := rig.coord.Destination().Get()
	require.True(t, ok)
	assert.Equal(t, first, got)

	rig.picker.set("", errors.New("no display"))
	rig.press(t)
	rig.coord.Tick(context.Background())
	got, _ = rig.coord.Destination().Get()
	assert.Equal(t, first, got)
	assert.Equal(t, 3, rig.picker.folders)
}

func TestReceiverIgnoresForeignHotkey(t *testing.T) {
	rig := newReceiverRig(t)
	other := hotkey.MustParse("ctrl+shift+x")
	_, err := rig.source.Register(other)
	require.NoError(t, err)
	require.NoError(t, rig.source.Press(other))

	rig.coord.Tick(context.Background())
	assert.Zero(t, rig.picker.folders)
	_, ok := rig.coord.Destination().Get()
	assert.False(t, ok)
}

func TestReceiverHandlesOneConnectionPerTick(t *testing.T) {
	rig := newReceiverRig(t)
	c1, s1 := tcpPair(t)
	_, s2 := tcpPair(t)
	rig.conns <- s1
	rig.conns <- s2

	rig.coord.Tick(context.Background())
	assert.Len(t, rig.conns, 1)
	assert.Equal(t, network.ReplyNoDestination, readReply(t, c1))

	rig.coord.Tick(context.Background())
	assert.Empty(t, rig.conns)
}

func TestReceiverEnqueueRejected(t *testing.T) {
	rig := newReceiverRig(t)
	assert.ErrorIs(t, rig.coord.Enqueue("x"), ErrWrongRole)
}

// acceptFrames stores every frame sent to the returned address.
func acceptFrames(t *testing.T) (string, <-chan network.Message) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	got := make(chan network.Message, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			msg, err := network.Decode(conn)
			if err == nil {
				_, _ = io.WriteString(conn, network.ReplyOK)
				got <- msg
			}
			conn.Close()
		}
	}()
	return ln.Addr().String(), got
}

func newSender(t *testing.T, addr string, p picker.Picker, src hotkey.Source, ev chan events.Event) *Coordinator {
	t.Helper()
	coord, err := New(Options{
		Role:       RoleSender,
		Source:     src,
		Binding:    hotkey.MustParse("ctrl+shift+s"),
		Picker:     p,
		Logger:     logger.Discard(),
		Events:     ev,
		Sender:     &network.Sender{DialTimeout: time.Second},
		ServerAddr: addr,
	})
	require.NoError(t, err)
	return coord
}

func TestSenderPickAndSend(t *testing.T) {
	addr, got := acceptFrames(t)
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

	src := hotkey.NewManual()
	p := &fakePicker{path: path}
	ev := make(chan events.Event, 64)
	coord := newSender(t, addr, p, src, ev)

	require.NoError(t, src.Press(hotkey.MustParse("ctrl+shift+s")))
	coord.Tick(context.Background())

	select {
	case msg := <-got:
		assert.Equal(t, "report.csv", msg.Name)
		assert.Equal(t, "a,b\n1,2\n", string(msg.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("nothing was sent")
	}
	assert.Equal(t, 1, p.files)

	var sent *events.Event
	for len(ev) > 0 {
		evt := <-ev
		if evt.Type == events.FileSent {
			sent = &evt
		}
	}
	require.NotNil(t, sent)
	assert.Equal(t, network.ReplyOK, sent.Message)
}

func TestSenderCancelSendsNothing(t *testing.T) {
	addr, got := acceptFrames(t)
	src := hotkey.NewManual()
	coord := newSender(t, addr, &fakePicker{err: picker.ErrCancelled}, src, nil)

	require.NoError(t, src.Press(hotkey.MustParse("ctrl+shift+s")))
	coord.Tick(context.Background())

	select {
	case <-got:
		t.Fatal("cancelled pick must not send")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSenderEnqueue(t *testing.T) {
	addr, got := acceptFrames(t)
	path := filepath.Join(t.TempDir(), "q.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	coord := newSender(t, addr, &fakePicker{}, hotkey.NewManual(), nil)
	require.NoError(t, coord.Enqueue(path))
	coord.Tick(context.Background())

	select {
	case msg := <-got:
		assert.Equal(t, "q.bin", msg.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("queued path was not sent")
	}

	for i := 0; i < sendQueueSize; i++ {
		require.NoError(t, coord.Enqueue(path))
	}
	assert.ErrorIs(t, coord.Enqueue(path), ErrSendQueueFull)
}

func TestSendFailureKeepsLoopAlive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ev := make(chan events.Event, 16)
	coord := newSender(t, addr, &fakePicker{}, hotkey.NewManual(), ev)
	require.NoError(t, coord.Enqueue("/does/not/matter"))
	coord.Tick(context.Background())

	require.NotEmpty(t, ev)
	assert.Equal(t, events.Error, (<-ev).Type)
}

func TestRunStopsOnCancel(t *testing.T) {
	rig := newReceiverRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rig.coord.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Role: RoleReceiver, Picker: &fakePicker{}, Receiver: &network.Receiver{}})
	assert.ErrorIs(t, err, ErrMissingSource)
	_, err = New(Options{Role: RoleSender, Source: hotkey.NewManual(), Picker: &fakePicker{}})
	assert.ErrorIs(t, err, ErrMissingService)
}

func TestDestination(t *testing.T) {
	var d Destination
	_, ok := d.Get()
	assert.False(t, ok)

	d.Set("/srv/in")
	d.Set("")
	dir, ok := d.Get()
	assert.True(t, ok)
	assert.Equal(t, "/srv/in", dir)
}
