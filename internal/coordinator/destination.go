package coordinator

import "sync"

// Destination is the folder incoming files are written to. It starts
// empty and, once set, is only ever replaced by another folder.
type Destination struct {
	mu  sync.RWMutex
	dir string
}

// Set replaces the folder. An empty dir is ignored.
func (d *Destination) Set(dir string) {
	if dir == "" {
		return
	}
	d.mu.Lock()
	d.dir = dir
	d.mu.Unlock()
}

// Get returns the folder and whether one has been chosen.
func (d *Destination) Get() (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dir, d.dir != ""
}
