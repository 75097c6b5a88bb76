package hotkey

import (
	"errors"
	"sync"
)

// Mux merges several sources behind one set of identifiers. A binding
// registered on the mux is registered on every child.
type Mux struct {
	mu      sync.Mutex
	sources []Source
	next    ID
	// routes[i] maps the child i identifier to the mux identifier.
	routes []map[ID]ID
	start  int
}

// NewMux wraps sources; nil entries are skipped.
func NewMux(sources ...Source) *Mux {
	m := &Mux{}
	for _, src := range sources {
		if src == nil {
			continue
		}
		m.sources = append(m.sources, src)
		m.routes = append(m.routes, make(map[ID]ID))
	}
	return m
}

// Register arms b on every child and returns the mux-level identifier.
func (m *Mux) Register(b Binding) (ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := m.next
	for i, src := range m.sources {
		childID, err := src.Register(b)
		if err != nil {
			var regErr *RegistrationError
			if errors.As(err, &regErr) {
				return 0, err
			}
			return 0, &RegistrationError{Binding: b, Err: err}
		}
		m.routes[i][childID] = id
	}
	return id, nil
}

// Poll checks the children in rotating order. A child trigger with no
// route surfaces as ID 0, which never matches a registration.
func (m *Mux) Poll() (ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.sources)
	for i := 0; i < n; i++ {
		idx := (m.start + i) % n
		childID, ok := m.sources[idx].Poll()
		if !ok {
			continue
		}
		m.start = (idx + 1) % n
		return m.routes[idx][childID], true
	}
	return 0, false
}

// Close closes every child and returns the first error.
func (m *Mux) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for _, src := range m.sources {
		if err := src.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
