// Package connector provides the builders that fill straight spans between route corners.
package connector

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"pic-router/internal/port"
	"pic-router/internal/segment"
	"pic-router/internal/xsection"
	"pic-router/pkg/geometry"
)

// Connector names.
const (
	Straight  = "straight"
	AutoTaper = "auto_taper"
	LowLoss   = "low_loss"
)

// Default dimensions in µm.
const (
	DefaultTaperLength     = 10.0
	DefaultWideWidth       = 2.0
	DefaultMinWideStraight = 5.0
)

// lateralTolerance is how far p2 may sit off the p1 ray.
const lateralTolerance = 1e-6

// ErrNotAhead is returned when the span end is not in front of its start.
var ErrNotAhead = errors.New("span end is not ahead of its start")

// Connector builds the segments joining p1 to p2. p1 faces the direction of
// travel; p2 faces back along it, like two ports about to be connected.
type Connector interface {
	Connect(p1, p2 port.Port, xs xsection.CrossSection) ([]segment.Segment, error)
}

// Func adapts a function to the Connector interface.
type Func func(p1, p2 port.Port, xs xsection.CrossSection) ([]segment.Segment, error)

// Connect implements Connector.
func (f Func) Connect(p1, p2 port.Port, xs xsection.CrossSection) ([]segment.Segment, error) {
	return f(p1, p2, xs)
}

// Span measures the straight run from p1 to p2.
func Span(p1, p2 port.Port) (float64, error) {
	dir := p1.Direction()
	d := p2.Center.Sub(p1.Center)
	length := d.Dot(dir)
	if math.Abs(d.Cross(dir)) > lateralTolerance {
		return 0, fmt.Errorf("%w: %s is %.6f off the axis of %s", ErrNotAhead, p2.Name, d.Cross(dir), p1.Name)
	}
	if length < -geometry.Tolerance {
		return 0, fmt.Errorf("%w: %s is %.6f behind %s", ErrNotAhead, p2.Name, -length, p1.Name)
	}
	return math.Max(length, 0), nil
}

// widthOr returns w, or the cross-section width when w is unset.
func widthOr(w float64, xs xsection.CrossSection) float64 {
	if w > 0 {
		return w
	}
	return xs.Width
}

// StraightConnector joins the ports with one straight segment.
type StraightConnector struct{}

// Connect implements Connector.
func (StraightConnector) Connect(p1, p2 port.Port, xs xsection.CrossSection) ([]segment.Segment, error) {
	length, err := Span(p1, p2)
	if err != nil {
		return nil, err
	}
	if length <= geometry.Tolerance {
		return nil, nil
	}
	s := segment.NewStraight(p1.Center, p1.Orientation, length, xs.Name, xs.Width)
	s.End = p2.Center
	s.Points[1] = p2.Center
	s.Source = Straight
	return []segment.Segment{s}, nil
}

// spanBuilder lays segments end to end along p1's heading.
type spanBuilder struct {
	pos     geometry.Point2D
	heading float64
	xs      string
	source  string
	out     []segment.Segment
}

func (b *spanBuilder) straight(length, width float64) {
	if length <= geometry.Tolerance {
		return
	}
	s := segment.NewStraight(b.pos, b.heading, length, b.xs, width)
	s.Source = b.source
	b.pos = s.End
	b.out = append(b.out, s)
}

func (b *spanBuilder) taper(length, w1, w2 float64) {
	if length <= geometry.Tolerance {
		return
	}
	if w1 == w2 {
		b.straight(length, w1)
		return
	}
	s := segment.NewTaper(b.pos, b.heading, length, b.xs, w1, w2)
	s.Source = b.source
	b.pos = s.End
	b.out = append(b.out, s)
}

// finish snaps the last segment onto the exact end point.
func (b *spanBuilder) finish(end geometry.Point2D) []segment.Segment {
	if n := len(b.out); n > 0 {
		b.out[n-1].End = end
		b.out[n-1].Points[len(b.out[n-1].Points)-1] = end
	}
	return b.out
}

// AutoTaperConnector tapers from each port's width to the cross-section
// width when they differ. Spans too short for both tapers get one taper
// from the start width to the end width.
type AutoTaperConnector struct {
	TaperLength float64
}

// Connect implements Connector.
func (c AutoTaperConnector) Connect(p1, p2 port.Port, xs xsection.CrossSection) ([]segment.Segment, error) {
	length, err := Span(p1, p2)
	if err != nil {
		return nil, err
	}
	w1, w2 := widthOr(p1.Width, xs), widthOr(p2.Width, xs)
	b := &spanBuilder{pos: p1.Center, heading: p1.Orientation, xs: xs.Name, source: AutoTaper}

	var t1, t2 float64
	if w1 != xs.Width {
		t1 = c.TaperLength
	}
	if w2 != xs.Width {
		t2 = c.TaperLength
	}

	if t1+t2 > length {
		b.taper(length, w1, w2)
		return b.finish(p2.Center), nil
	}

	b.taper(t1, w1, xs.Width)
	b.straight(length-t1-t2, xs.Width)
	b.taper(t2, xs.Width, w2)
	return b.finish(p2.Center), nil
}

// LowLossConnector widens long spans to a multimode width to cut propagation
// loss. Short spans fall back to a plain straight.
type LowLossConnector struct {
	WideWidth       float64
	TaperLength     float64
	MinWideStraight float64
}

// Connect implements Connector.
func (c LowLossConnector) Connect(p1, p2 port.Port, xs xsection.CrossSection) ([]segment.Segment, error) {
	length, err := Span(p1, p2)
	if err != nil {
		return nil, err
	}
	if c.WideWidth <= xs.Width || length < 2*c.TaperLength+c.MinWideStraight {
		segs, err := StraightConnector{}.Connect(p1, p2, xs)
		for i := range segs {
			segs[i].Source = LowLoss
		}
		return segs, err
	}

	b := &spanBuilder{pos: p1.Center, heading: p1.Orientation, xs: xs.Name, source: LowLoss}
	b.taper(c.TaperLength, xs.Width, c.WideWidth)
	b.straight(length-2*c.TaperLength, c.WideWidth)
	b.taper(c.TaperLength, c.WideWidth, xs.Width)
	return b.finish(p2.Center), nil
}

// Library is a registry of named connectors with a default.
type Library struct {
	mu          sync.RWMutex
	connectors  map[string]Connector
	defaultName string
}

// NewLibrary creates a library with the built-in connectors, defaulting to straight.
func NewLibrary() *Library {
	lib := &Library{
		connectors:  make(map[string]Connector),
		defaultName: Straight,
	}
	lib.Register(Straight, StraightConnector{})
	lib.Register(AutoTaper, AutoTaperConnector{TaperLength: DefaultTaperLength})
	lib.Register(LowLoss, LowLossConnector{
		WideWidth:       DefaultWideWidth,
		TaperLength:     DefaultTaperLength,
		MinWideStraight: DefaultMinWideStraight,
	})
	return lib
}

// Register adds or replaces a connector.
func (lib *Library) Register(name string, c Connector) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	lib.connectors[name] = c
}

// SetDefault changes the connector used when none is named.
func (lib *Library) SetDefault(name string) error {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if _, ok := lib.connectors[name]; !ok {
		return fmt.Errorf("unknown connector %q", name)
	}
	lib.defaultName = name
	return nil
}

// Default returns the default connector name.
func (lib *Library) Default() string {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	return lib.defaultName
}

// Get returns a connector by name.
func (lib *Library) Get(name string) (Connector, bool) {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	c, ok := lib.connectors[name]
	return c, ok
}

// List returns the registered connector names, sorted.
func (lib *Library) List() []string {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	names := make([]string, 0, len(lib.connectors))
	for name := range lib.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
