package component

import (
	"fmt"
	"sort"
	"sync"
)

// Library stores named bend builders.
type Library struct {
	mu    sync.RWMutex
	bends map[string]Bend
}

// NewLibrary creates a library with the circular, euler and wire-corner bends.
func NewLibrary() *Library {
	lib := &Library{bends: make(map[string]Bend)}
	lib.Add(CircularBend{})
	lib.Add(NewEulerBend(DefaultEulerP))
	lib.Add(WireCornerBend{})
	return lib
}

// Add adds or replaces a bend under its own name.
func (lib *Library) Add(b Bend) {
	lib.AddAs(b.Name(), b)
}

// AddAs adds or replaces a bend under an alias, e.g. "euler_p1".
func (lib *Library) AddAs(name string, b Bend) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	lib.bends[name] = b
}

// Get returns a bend by name, or nil if not found.
func (lib *Library) Get(name string) Bend {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	return lib.bends[name]
}

// Build looks up a bend and builds it.
func (lib *Library) Build(name string, angle, radius float64) (Geometry, error) {
	b := lib.Get(name)
	if b == nil {
		return Geometry{}, fmt.Errorf("unknown bend %q", name)
	}
	return b.Build(angle, radius)
}

// List returns the registered bend names, sorted.
func (lib *Library) List() []string {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	names := make([]string, 0, len(lib.bends))
	for name := range lib.bends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
