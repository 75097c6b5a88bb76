package hotkey

import "sync"

const manualBuffer = 16

// Manual is an in-process Source. Console commands press bindings on it.
type Manual struct {
	mu       sync.Mutex
	next     ID
	bindings map[Binding]ID
	pending  chan ID
	closed   bool
}

// NewManual returns an empty manual source.
func NewManual() *Manual {
	return &Manual{
		bindings: make(map[Binding]ID),
		pending:  make(chan ID, manualBuffer),
	}
}

// Register assigns b an identifier; registering the same binding twice returns the same ID.
func (m *Manual) Register(b Binding) (ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, &RegistrationError{Binding: b, Err: ErrClosed}
	}
	if id, ok := m.bindings[b]; ok {
		return id, nil
	}
	m.next++
	m.bindings[b] = m.next
	return m.next, nil
}

// Press queues a trigger for b. Presses beyond the buffer are dropped.
func (m *Manual) Press(b Binding) error {
	m.mu.Lock()
	id, ok := m.bindings[b]
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !ok {
		return ErrNotRegistered
	}
	m.PressID(id)
	return nil
}

// PressID queues a raw identifier, registered or not.
func (m *Manual) PressID(id ID) {
	select {
	case m.pending <- id:
	default:
	}
}

// Poll returns the oldest pending trigger without blocking.
func (m *Manual) Poll() (ID, bool) {
	select {
	case id := <-m.pending:
		return id, true
	default:
		return 0, false
	}
}

// Close drops all registrations; later presses fail.
func (m *Manual) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.bindings = make(map[Binding]ID)
	return nil
}
