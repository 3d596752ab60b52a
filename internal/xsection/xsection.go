// Package xsection provides waveguide cross-section definitions and a registry of them.
package xsection

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Section is an extra layer drawn alongside the core, such as cladding or a slab.
type Section struct {
	Layer  string  `json:"layer" yaml:"layer"`
	Width  float64 `json:"width" yaml:"width"`   // µm
	Offset float64 `json:"offset" yaml:"offset"` // lateral offset from the core centerline
}

// CrossSection describes the waveguide profile used for a route.
type CrossSection struct {
	Name     string    `json:"name" yaml:"name"`
	Width    float64   `json:"width" yaml:"width"`     // core width, µm
	Radius   float64   `json:"radius" yaml:"radius"`   // default bend radius, 0 = sharp corners
	Layer    string    `json:"layer" yaml:"layer"`     // core layer
	Spacing  float64   `json:"spacing" yaml:"spacing"` // minimum edge-to-edge gap to a neighbour
	Sections []Section `json:"sections,omitempty" yaml:"sections,omitempty"`

	// Propagation loss in dB/cm, used for route loss estimates.
	LossDBPerCm float64 `json:"loss_db_per_cm,omitempty" yaml:"loss_db_per_cm,omitempty"`
}

// Validate checks that the cross-section is usable for routing.
func (x *CrossSection) Validate() error {
	if x.Name == "" {
		return fmt.Errorf("cross-section name is required")
	}
	if x.Width <= 0 {
		return fmt.Errorf("cross-section %q: width must be positive", x.Name)
	}
	if x.Radius < 0 {
		return fmt.Errorf("cross-section %q: radius must be >= 0", x.Name)
	}
	if x.Spacing < 0 {
		return fmt.Errorf("cross-section %q: spacing must be >= 0", x.Name)
	}
	for i, s := range x.Sections {
		if s.Width <= 0 {
			return fmt.Errorf("cross-section %q: section %d width must be positive", x.Name, i)
		}
	}
	return nil
}

// Separation returns the centerline pitch for parallel routes of this cross-section.
func (x *CrossSection) Separation() float64 {
	return x.Width + x.Spacing
}

// OuterWidth returns the full width including all sections.
func (x *CrossSection) OuterWidth() float64 {
	w := x.Width
	for _, s := range x.Sections {
		if e := 2*absf(s.Offset) + s.Width; e > w {
			w = e
		}
	}
	return w
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// file is the on-disk layout of a cross-section file.
type file struct {
	CrossSections []CrossSection `yaml:"cross_sections"`
}

// LoadFromFile loads cross-sections from a YAML file.
func LoadFromFile(path string) ([]CrossSection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range f.CrossSections {
		if err := f.CrossSections[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid cross-section in %s: %w", path, err)
		}
	}
	return f.CrossSections, nil
}

// SaveToFile writes cross-sections to a YAML file.
func SaveToFile(path string, xs []CrossSection) error {
	data, err := yaml.Marshal(file{CrossSections: xs})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Library is a registry of named cross-sections.
type Library struct {
	mu    sync.RWMutex
	items map[string]CrossSection
}

// NewLibrary creates a library holding the built-in cross-sections.
func NewLibrary() *Library {
	lib := &Library{items: make(map[string]CrossSection)}
	for _, x := range Builtins() {
		lib.items[x.Name] = x
	}
	return lib
}

// Register adds or replaces a cross-section.
func (l *Library) Register(x CrossSection) error {
	if err := x.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[x.Name] = x
	return nil
}

// Get returns a cross-section by name.
func (l *Library) Get(name string) (CrossSection, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	x, ok := l.items[name]
	return x, ok
}

// List returns all registered names, sorted.
func (l *Library) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.items))
	for name := range l.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
