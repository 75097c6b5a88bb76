// Package coordinator runs the poll loop that ties a hotkey to a transfer.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/hamzawahab/hotdrop/internal/config"
	"github.com/hamzawahab/hotdrop/internal/events"
	"github.com/hamzawahab/hotdrop/internal/hotkey"
	"github.com/hamzawahab/hotdrop/internal/logger"
	"github.com/hamzawahab/hotdrop/internal/network"
	"github.com/hamzawahab/hotdrop/internal/picker"
)

// Role selects which side of a transfer a coordinator drives.
type Role int

const (
	RoleReceiver Role = iota
	RoleSender
)

func (r Role) String() string {
	if r == RoleSender {
		return "client"
	}
	return "server"
}

const sendQueueSize = 16

var (
	ErrWrongRole      = errors.New("operation not available for this role")
	ErrSendQueueFull  = errors.New("send queue is full")
	ErrMissingPicker  = errors.New("coordinator needs a picker")
	ErrMissingSource  = errors.New("coordinator needs a hotkey source")
	ErrMissingService = errors.New("coordinator needs a transfer executor")
)

// Options wires a coordinator. Receiver fields are ignored by a sender and
// the other way round.
type Options struct {
	Role         Role
	Source       hotkey.Source
	Binding      hotkey.Binding
	Picker       picker.Picker
	PollInterval time.Duration
	Logger       *logger.Logger
	Events       chan<- events.Event

	// Receiver side.
	Destination *Destination
	Connections <-chan net.Conn
	Receiver    *network.Receiver

	// Sender side.
	Sender     *network.Sender
	ServerAddr string
}

// Coordinator polls the hotkey source, the connection queue and the manual
// send queue without blocking on any of them.
type Coordinator struct {
	opts  Options
	id    hotkey.ID
	conns <-chan net.Conn
	sends chan string
}

// New registers the binding and returns a ready coordinator. A binding the
// source refuses is returned as a *hotkey.RegistrationError.
func New(opts Options) (*Coordinator, error) {
	if opts.Source == nil {
		return nil, ErrMissingSource
	}
	if opts.Picker == nil {
		return nil, ErrMissingPicker
	}
	switch opts.Role {
	case RoleReceiver:
		if opts.Receiver == nil {
			return nil, ErrMissingService
		}
		if opts.Destination == nil {
			opts.Destination = &Destination{}
		}
	case RoleSender:
		if opts.Sender == nil {
			return nil, ErrMissingService
		}
	default:
		return nil, fmt.Errorf("unknown role %d", opts.Role)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	id, err := opts.Source.Register(opts.Binding)
	if err != nil {
		var regErr *hotkey.RegistrationError
		if errors.As(err, &regErr) {
			return nil, err
		}
		return nil, &hotkey.RegistrationError{Binding: opts.Binding, Err: err}
	}

	c := &Coordinator{opts: opts, id: id, conns: opts.Connections}
	if opts.Role == RoleSender {
		c.sends = make(chan string, sendQueueSize)
	}
	return c, nil
}

// Role reports which side this coordinator drives.
func (c *Coordinator) Role() Role { return c.opts.Role }

// Binding is the registered hotkey.
func (c *Coordinator) Binding() hotkey.Binding { return c.opts.Binding }

// Destination is the receiver's folder cell; nil for a sender.
func (c *Coordinator) Destination() *Destination {
	if c.opts.Role != RoleReceiver {
		return nil
	}
	return c.opts.Destination
}

// ServerAddr is where a sender delivers files.
func (c *Coordinator) ServerAddr() string { return c.opts.ServerAddr }

// Enqueue schedules path to be sent on a later tick.
func (c *Coordinator) Enqueue(path string) error {
	if c.opts.Role != RoleSender {
		return ErrWrongRole
	}
	select {
	case c.sends <- path:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Run ticks every PollInterval until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	c.opts.Logger.Info("%s loop started, hotkey %s", c.opts.Role, c.opts.Binding)
	for {
		c.Tick(ctx)
		select {
		case <-ctx.Done():
			c.opts.Logger.Info("%s loop stopped", c.opts.Role)
			return nil
		case <-ticker.C:
		}
	}
}

// Tick performs one round of non-blocking polls. At most one hotkey, one
// queued send and one connection are handled.
func (c *Coordinator) Tick(ctx context.Context) {
	if id, ok := c.opts.Source.Poll(); ok {
		if id == c.id {
			c.trigger(ctx)
		} else {
			c.opts.Logger.Debug("ignoring hotkey id %d", id)
		}
	}
	switch c.opts.Role {
	case RoleSender:
		select {
		case path := <-c.sends:
			c.send(ctx, path)
		default:
		}
	case RoleReceiver:
		if c.conns == nil {
			return
		}
		select {
		case conn, ok := <-c.conns:
			if !ok {
				c.conns = nil
				return
			}
			c.receive(conn)
		default:
		}
	}
}

func (c *Coordinator) trigger(ctx context.Context) {
	c.opts.Logger.Info("hotkey %s pressed", c.opts.Binding)
	events.Emit(c.opts.Events, events.Event{Type: events.Triggered, Title: "Hotkey", Message: c.opts.Binding.String()})

	if c.opts.Role == RoleReceiver {
		dir, err := c.opts.Picker.PickFolder()
		if !c.picked(err) {
			return
		}
		c.opts.Destination.Set(dir)
		c.opts.Logger.Info("save directory set to %s", dir)
		events.Emit(c.opts.Events, events.Event{Type: events.DestinationChanged, Title: "Save directory", Path: dir})
		return
	}

	path, err := c.opts.Picker.PickFile()
	if !c.picked(err) {
		return
	}
	c.send(ctx, path)
}

func (c *Coordinator) picked(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, picker.ErrCancelled):
		c.opts.Logger.Info("selection cancelled")
		events.Emit(c.opts.Events, events.Event{Type: events.Status, Title: "Cancelled", Message: "No selection made"})
	default:
		c.opts.Logger.Error("picker: %v", err)
		events.Emit(c.opts.Events, events.Event{Type: events.Error, Title: "Picker failed", Message: err.Error()})
	}
	return false
}

func (c *Coordinator) receive(conn net.Conn) {
	defer conn.Close()
	dir, _ := c.opts.Destination.Get()
	out := c.opts.Receiver.ReceiveOne(conn, dir)
	switch out.Status {
	case network.Success:
		c.opts.Logger.Info("received %s (%d bytes, %s) from %s into %s [%s]", out.Name, out.Size, out.MIME, out.Peer, out.Path, out.ID)
		events.Emit(c.opts.Events, events.Event{Type: events.FileReceived, Title: "File received", Message: out.Name, From: out.Peer, Path: out.Path, Size: out.Size})
	case network.NoDestinationConfigured:
		c.opts.Logger.Warn("rejected transfer from %s: no save directory selected [%s]", out.Peer, out.ID)
		events.Emit(c.opts.Events, events.Event{
			Type:    events.Error,
			Title:   "No save directory",
			Message: fmt.Sprintf("Transfer from %s rejected. Press %s to choose a folder.", out.Peer, c.opts.Binding),
			From:    out.Peer,
		})
	default:
		c.opts.Logger.Error("receive from %s failed: %s", out.Peer, out)
		events.Emit(c.opts.Events, events.Event{Type: events.Error, Title: "Receive failed", Message: failure(out), From: out.Peer})
	}
}

func (c *Coordinator) send(ctx context.Context, path string) {
	c.opts.Logger.Info("sending %s to %s", path, c.opts.ServerAddr)
	out := c.opts.Sender.SendOne(ctx, c.opts.ServerAddr, path)
	if !out.OK() {
		c.opts.Logger.Error("send %s failed: %s", path, out)
		events.Emit(c.opts.Events, events.Event{Type: events.Error, Title: "Send failed", Message: failure(out), To: out.Peer, Path: path})
		return
	}
	c.opts.Logger.Info("sent %s (%d bytes) to %s, server replied %q [%s]", out.Name, out.Size, out.Peer, out.Response, out.ID)
	events.Emit(c.opts.Events, events.Event{Type: events.FileSent, Title: "File sent", Message: out.Response, To: out.Peer, Path: path, Size: out.Size})
}

func failure(out network.Outcome) string {
	if out.Err == nil {
		return out.Status.String()
	}
	return fmt.Sprintf("%s during %s: %v", out.Status, out.Stage, out.Err)
}
