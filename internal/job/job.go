// Package job provides routing job files: ports plus the routes and bundles to build between them.
package job

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"pic-router/internal/port"
	"pic-router/internal/route"
	"pic-router/pkg/geometry"
)

// CurrentVersion is the job file format version written by Save.
const CurrentVersion = 1

// File represents a routing job file (.yaml).
type File struct {
	Version     int    `yaml:"version"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Extra cross-section files (relative to the job file)
	CrossSectionFiles []string `yaml:"cross_section_files,omitempty"`

	Ports   map[string]port.Port `yaml:"ports"`
	Routes  map[string]Link      `yaml:"routes,omitempty"`
	Bundles map[string]Bundle    `yaml:"bundles,omitempty"`

	// Output paths (relative to the job file)
	OutputPath  string `yaml:"output,omitempty"`
	PreviewPath string `yaml:"preview,omitempty"`
}

// Link routes one port to another.
type Link struct {
	From     string   `yaml:"from"`
	To       string   `yaml:"to"`
	Settings Settings `yaml:"settings,omitempty"`
}

// Bundle routes several port pairs together. Each link is [from, to].
type Bundle struct {
	Links    [][]string `yaml:"links"`
	Settings Settings   `yaml:"settings,omitempty"`
}

// Settings are the router options of a route or bundle.
type Settings struct {
	Bend         string       `yaml:"bend,omitempty"`
	Connector    string       `yaml:"connector,omitempty"`
	CrossSection string       `yaml:"cross_section,omitempty"`
	StartAngle   *float64     `yaml:"start_angle,omitempty"`
	EndAngle     *float64     `yaml:"end_angle,omitempty"`
	Separation   *float64     `yaml:"separation,omitempty"` // bundles only
	Steps        []route.Step `yaml:"steps,omitempty"`

	StartStraight float64            `yaml:"start_straight,omitempty"`
	EndStraight   float64            `yaml:"end_straight,omitempty"`
	Waypoints     []geometry.Point2D `yaml:"waypoints,omitempty"`
}

// New creates an empty job.
func New(name string) *File {
	return &File{
		Version: CurrentVersion,
		Name:    name,
		Ports:   make(map[string]port.Port),
		Routes:  make(map[string]Link),
		Bundles: make(map[string]Bundle),
	}
}

// Load loads and validates a job file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if f.Name == "" {
		base := filepath.Base(path)
		f.Name = base[:len(base)-len(filepath.Ext(base))]
	}
	// Ports take their name from the map key unless one is given
	for key, p := range f.Ports {
		if p.Name == "" {
			p.Name = key
			f.Ports[key] = p
		}
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job %s: %w", path, err)
	}
	return &f, nil
}

// Save saves the job to a file.
func (f *File) Save(path string) error {
	if f.Version == 0 {
		f.Version = CurrentVersion
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks that every link names known ports.
func (f *File) Validate() error {
	if f.Version > CurrentVersion {
		return fmt.Errorf("unsupported job version %d", f.Version)
	}
	if len(f.Routes) == 0 && len(f.Bundles) == 0 {
		return fmt.Errorf("job has no routes or bundles")
	}
	for _, key := range sortedKeys(f.Ports) {
		if err := f.Ports[key].Validate(); err != nil {
			return err
		}
	}
	for _, name := range f.RouteNames() {
		l := f.Routes[name]
		if err := f.checkLink(name, l.From, l.To); err != nil {
			return err
		}
	}
	for _, name := range f.BundleNames() {
		b := f.Bundles[name]
		if len(b.Links) == 0 {
			return fmt.Errorf("bundle %q has no links", name)
		}
		for i, l := range b.Links {
			if len(l) != 2 {
				return fmt.Errorf("bundle %q link %d: want [from, to], got %d names", name, i, len(l))
			}
			if err := f.checkLink(fmt.Sprintf("%s[%d]", name, i), l[0], l[1]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *File) checkLink(name, from, to string) error {
	if _, ok := f.Ports[from]; !ok {
		return fmt.Errorf("route %q: unknown port %q", name, from)
	}
	if _, ok := f.Ports[to]; !ok {
		return fmt.Errorf("route %q: unknown port %q", name, to)
	}
	if from == to {
		return fmt.Errorf("route %q: port %q routed to itself", name, from)
	}
	return nil
}

// AddPort adds a port under its own name.
func (f *File) AddPort(p port.Port) {
	if f.Ports == nil {
		f.Ports = make(map[string]port.Port)
	}
	f.Ports[p.Name] = p
}

// RouteNames returns the route names, sorted.
func (f *File) RouteNames() []string {
	return sortedKeys(f.Routes)
}

// BundleNames returns the bundle names, sorted.
func (f *File) BundleNames() []string {
	return sortedKeys(f.Bundles)
}

// Ends returns the ports of a bundle's links.
func (b Bundle) Ends(ports map[string]port.Port) (starts, ends []port.Port) {
	for _, l := range b.Links {
		starts = append(starts, ports[l[0]])
		ends = append(ends, ports[l[1]])
	}
	return starts, ends
}

// Options converts settings into router options.
func (s Settings) Options(name string) route.Options {
	return route.Options{
		Name:         name,
		Steps:        s.Steps,
		Bend:         s.Bend,
		Connector:    s.Connector,
		CrossSection: s.CrossSection,
		StartAngle:   s.StartAngle,
		EndAngle:     s.EndAngle,

		StartStraight: s.StartStraight,
		EndStraight:   s.EndStraight,
		Waypoints:     s.Waypoints,
	}
}

// BundleOptions converts settings into bundle options.
func (s Settings) BundleOptions(name string) route.BundleOptions {
	return route.BundleOptions{
		Options:    s.Options(name),
		Separation: s.Separation,
	}
}

// GetOutputPath returns the absolute path of the JSON result file.
func (f *File) GetOutputPath(jobPath string) string {
	if f.OutputPath == "" {
		// Default: job_name_routes.json
		base := jobPath[:len(jobPath)-len(filepath.Ext(jobPath))]
		return base + "_routes.json"
	}
	return resolve(jobPath, f.OutputPath)
}

// GetPreviewPath returns the absolute path of the PNG preview, or "" when none is requested.
func (f *File) GetPreviewPath(jobPath string) string {
	if f.PreviewPath == "" {
		return ""
	}
	return resolve(jobPath, f.PreviewPath)
}

// GetCrossSectionFiles returns the absolute paths of the job's cross-section files.
func (f *File) GetCrossSectionFiles(jobPath string) []string {
	paths := make([]string, len(f.CrossSectionFiles))
	for i, p := range f.CrossSectionFiles {
		paths[i] = resolve(jobPath, p)
	}
	return paths
}

func resolve(jobPath, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(jobPath), p)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
