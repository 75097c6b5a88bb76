// Package global registers OS-wide hotkeys through golang.design/x/hotkey.
package global

import (
	"fmt"
	"sync"

	xhotkey "golang.design/x/hotkey"

	"github.com/hamzawahab/hotdrop/internal/hotkey"
)

const pendingBuffer = 8

type registration struct {
	hk   *xhotkey.Hotkey
	stop chan struct{}
}

// Source delivers key-down events of registered global hotkeys.
type Source struct {
	mu      sync.Mutex
	next    hotkey.ID
	regs    map[hotkey.ID]*registration
	pending chan hotkey.ID
	wait    sync.WaitGroup
	closed  bool
}

// New returns a source with nothing registered.
func New() *Source {
	return &Source{
		regs:    make(map[hotkey.ID]*registration),
		pending: make(chan hotkey.ID, pendingBuffer),
	}
}

// Register grabs b system-wide.
func (s *Source) Register(b hotkey.Binding) (hotkey.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, &hotkey.RegistrationError{Binding: b, Err: hotkey.ErrClosed}
	}
	key, ok := keyCodes[b.Key()]
	if !ok {
		return 0, &hotkey.RegistrationError{Binding: b, Err: fmt.Errorf("key %s has no platform code", b.Key())}
	}
	hk := xhotkey.New(modifiers(b.Modifiers()), key)
	if err := hk.Register(); err != nil {
		return 0, &hotkey.RegistrationError{Binding: b, Err: err}
	}
	s.next++
	id := s.next
	reg := &registration{hk: hk, stop: make(chan struct{})}
	s.regs[id] = reg
	s.wait.Add(1)
	go s.forward(id, reg)
	return id, nil
}

func (s *Source) forward(id hotkey.ID, reg *registration) {
	defer s.wait.Done()
	keydown := reg.hk.Keydown()
	for {
		select {
		case <-reg.stop:
			return
		case _, ok := <-keydown:
			if !ok {
				return
			}
			select {
			case s.pending <- id:
			default:
			}
		}
	}
}

// Poll returns the oldest key-down without blocking.
func (s *Source) Poll() (hotkey.ID, bool) {
	select {
	case id := <-s.pending:
		return id, true
	default:
		return 0, false
	}
}

// Close unregisters every hotkey.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	regs := s.regs
	s.regs = make(map[hotkey.ID]*registration)
	s.mu.Unlock()

	var first error
	for _, reg := range regs {
		close(reg.stop)
		if err := reg.hk.Unregister(); err != nil && first == nil {
			first = err
		}
	}
	s.wait.Wait()
	return first
}
