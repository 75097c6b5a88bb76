package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hamzawahab/hotdrop/internal/config"
	"github.com/hamzawahab/hotdrop/internal/coordinator"
	"github.com/hamzawahab/hotdrop/internal/events"
	"github.com/hamzawahab/hotdrop/internal/hotkey"
	"github.com/hamzawahab/hotdrop/internal/logger"
	"github.com/hamzawahab/hotdrop/internal/network"
	"github.com/hamzawahab/hotdrop/internal/picker"
)

const eventBuffer = 128

var (
	ErrNotADirectory = errors.New("not a directory")
	ErrIsDirectory   = errors.New("is a directory; only single files can be sent")
)

// Options selects the role and its collaborators.
type Options struct {
	Role coordinator.Role
	// Hotkey overrides the configured binding for the role.
	Hotkey string
	// ServerHost overrides client.server; host or host:port.
	ServerHost string
	// Discover browses mDNS for a receiver instead of using ServerHost.
	Discover bool
	// Global is the OS-wide hotkey source; nil leaves only console triggers.
	Global hotkey.Source
	// Picker defaults to native dialogs.
	Picker picker.Picker
}

// Session wires together hotdrop runtime services for one role.
type Session struct {
	Config      *config.Config
	Logger      *logger.Logger
	Events      chan events.Event
	Role        coordinator.Role
	Binding     hotkey.Binding
	Manual      *hotkey.Manual
	Hotkeys     *hotkey.Mux
	Coordinator *coordinator.Coordinator
	Intake      *network.Intake
	Announcer   *network.Announcer
	LocalIP     string
}

// New builds every service for opts.Role. Errors are startup failures: a bad
// hotkey (*hotkey.ParseError), a refused registration
// (*hotkey.RegistrationError) or a port that cannot be bound.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*Session, error) {
	spec := strings.TrimSpace(opts.Hotkey)
	if spec == "" {
		spec = cfg.Server.Hotkey
		if opts.Role == coordinator.RoleSender {
			spec = cfg.Client.Hotkey
		}
	}
	binding, err := hotkey.Parse(spec)
	if err != nil {
		return nil, err
	}

	ip, err := config.GetLocalIP()
	if err != nil {
		ip = "127.0.0.1"
	}

	s := &Session{
		Config:  cfg,
		Logger:  log,
		Events:  make(chan events.Event, eventBuffer),
		Role:    opts.Role,
		Binding: binding,
		Manual:  hotkey.NewManual(),
		LocalIP: ip,
	}
	s.Hotkeys = hotkey.NewMux(opts.Global, s.Manual)

	pick := opts.Picker
	if pick == nil {
		pick = picker.NewDialog("")
	}
	copts := coordinator.Options{
		Role:         opts.Role,
		Source:       s.Hotkeys,
		Binding:      binding,
		Picker:       pick,
		PollInterval: cfg.Transfer.PollInterval,
		Logger:       log,
		Events:       s.Events,
	}

	switch opts.Role {
	case coordinator.RoleReceiver:
		ln, err := network.Listen(cfg.Port)
		if err != nil {
			s.Hotkeys.Close()
			return nil, fmt.Errorf("listen on port %d: %w", cfg.Port, err)
		}
		s.Intake = network.NewIntake(ln, cfg.Transfer.QueueCapacity, log)
		copts.Destination = &coordinator.Destination{}
		copts.Connections = s.Intake.Queue()
		copts.Receiver = network.NewReceiver(cfg, s.Events)
		if cfg.Server.Announce {
			s.Announcer = network.NewAnnouncer("", cfg.Port, log)
		}
	case coordinator.RoleSender:
		addr, err := s.resolveServer(ctx, opts)
		if err != nil {
			s.Hotkeys.Close()
			return nil, err
		}
		copts.Sender = network.NewSender(cfg, s.Events)
		copts.ServerAddr = addr
	}

	s.Coordinator, err = coordinator.New(copts)
	if err != nil {
		// The logger stays open so the caller can record the failure.
		s.release()
		return nil, err
	}
	return s, nil
}

func (s *Session) resolveServer(ctx context.Context, opts Options) (string, error) {
	if opts.Discover {
		peer, err := network.Discover(ctx, s.Config.Client.DiscoverTimeout, s.Logger)
		if err != nil {
			return "", fmt.Errorf("discover receiver: %w", err)
		}
		s.Logger.Info("discovered receiver %q at %s", peer.Name, peer.Address())
		return peer.Address(), nil
	}
	host := opts.ServerHost
	if strings.TrimSpace(host) == "" {
		host = s.Config.Client.Server
	}
	return s.Config.ServerAddress(host), nil
}

// Run starts the background services and blocks until ctx is cancelled or
// one of them fails.
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.Intake != nil {
		s.Intake.Start()
		s.Logger.Info("listening on %s (LAN address %s)", s.Intake.Addr(), s.LocalIP)
		g.Go(func() error {
			<-gctx.Done()
			s.Intake.Stop()
			return nil
		})
	}
	if s.Announcer != nil {
		g.Go(func() error {
			if err := s.Announcer.Run(gctx); err != nil {
				s.Logger.Warn("mDNS announcement disabled: %v", err)
				s.emitStatus("LAN announcement unavailable; clients must use --server")
			}
			return nil
		})
	}
	g.Go(func() error {
		return s.Coordinator.Run(gctx)
	})
	return g.Wait()
}

// Pick fires the role's hotkey as if it had been pressed.
func (s *Session) Pick() error {
	return s.Manual.Press(s.Binding)
}

// SetDestination points the receiver at dir after checking it exists.
func (s *Session) SetDestination(dir string) (string, error) {
	dest := s.Coordinator.Destination()
	if dest == nil {
		return "", coordinator.ErrWrongRole
	}
	abs, err := filepath.Abs(strings.TrimSpace(dir))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", abs, ErrNotADirectory)
	}
	dest.Set(abs)
	s.Logger.Info("save directory set to %s", abs)
	events.Emit(s.Events, events.Event{Type: events.DestinationChanged, Title: "Save directory", Path: abs})
	return abs, nil
}

// Send queues path for the sender loop.
func (s *Session) Send(path string) (string, error) {
	if s.Role != coordinator.RoleSender {
		return "", coordinator.ErrWrongRole
	}
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s: %w", abs, ErrIsDirectory)
	}
	if err := s.Coordinator.Enqueue(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// Status is a point-in-time view for the console.
type Status struct {
	Role        coordinator.Role
	Binding     string
	Destination string
	ListenAddr  string
	ServerAddr  string
	LocalIP     string
	Pending     int
}

// Status snapshots the session.
func (s *Session) Status() Status {
	st := Status{
		Role:    s.Role,
		Binding: s.Binding.String(),
		LocalIP: s.LocalIP,
	}
	if dest := s.Coordinator.Destination(); dest != nil {
		st.Destination, _ = dest.Get()
	}
	if s.Intake != nil {
		st.ListenAddr = s.Intake.Addr().String()
		st.Pending = len(s.Intake.Queue())
	}
	if s.Role == coordinator.RoleSender {
		st.ServerAddr = s.Coordinator.ServerAddr()
	}
	return st
}

func (s *Session) emitStatus(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	events.Emit(s.Events, events.Event{Type: events.Status, Message: trimmed})
}

// Close releases resources associated with the session.
func (s *Session) Close() {
	s.release()
	if s.Logger != nil {
		_ = s.Logger.Close()
	}
}

func (s *Session) release() {
	if s.Intake != nil {
		s.Intake.Stop()
	}
	if s.Hotkeys != nil {
		if err := s.Hotkeys.Close(); err != nil {
			s.Logger.Warn("release hotkeys: %v", err)
		}
	}
}
