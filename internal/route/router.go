package route

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"pic-router/internal/component"
	"pic-router/internal/connector"
	"pic-router/internal/port"
	"pic-router/internal/xsection"
	"pic-router/pkg/geometry"
)

// Registry holds the named components a router may use. Register everything
// before routing; lookups are safe for concurrent use.
type Registry struct {
	Bends         *component.Library
	Connectors    *connector.Library
	CrossSections *xsection.Library
}

// NewRegistry creates a registry with the built-in components.
func NewRegistry() *Registry {
	return &Registry{
		Bends:         component.NewLibrary(),
		Connectors:    connector.NewLibrary(),
		CrossSections: xsection.NewLibrary(),
	}
}

// Config holds router defaults.
type Config struct {
	DefaultBend         string
	DefaultCrossSection string
	BendDB90            float64
	TaperDB             float64
	Parallel            bool // route bundle members concurrently
}

// DefaultConfig returns the router defaults.
func DefaultConfig() Config {
	return Config{
		DefaultBend:         component.Euler,
		DefaultCrossSection: xsection.Strip,
		BendDB90:            0.01,
		TaperDB:             0.02,
		Parallel:            true,
	}
}

// Options controls a single route. Empty names fall back to the router defaults.
type Options struct {
	Name         string
	Steps        []Step
	Bend         string
	Connector    string
	CrossSection string
	StartAngle   *float64 // re-orient the start before routing
	EndAngle     *float64 // outward orientation of a virtual end port

	// Straight length kept clear after the start port and before the end
	// port, ahead of the first and after the last bend.
	StartStraight float64
	EndStraight   float64

	// Waypoints are corners the route passes through, in order. The first
	// must lie on the start heading. They cannot be mixed with Steps.
	Waypoints []geometry.Point2D
}

// Router computes routes. It is safe for concurrent use.
type Router struct {
	reg    *Registry
	cfg    Config
	logger zerolog.Logger
}

// New creates a router.
func New(reg *Registry, cfg Config, logger zerolog.Logger) *Router {
	return &Router{
		reg:    reg,
		cfg:    cfg,
		logger: logger.With().Str("component", "router").Logger(),
	}
}

// Registry returns the registry the router resolves names in.
func (r *Router) Registry() *Registry { return r.reg }

// LossModel returns the loss model built from the registered cross-sections.
func (r *Router) LossModel() LossModel {
	m := LossModel{
		BendDB90:           r.cfg.BendDB90,
		TaperDB:            r.cfg.TaperDB,
		PropagationDBPerCm: make(map[string]float64),
	}
	for _, name := range r.reg.CrossSections.List() {
		if xs, ok := r.reg.CrossSections.Get(name); ok {
			m.PropagationDBPerCm[name] = xs.LossDBPerCm
		}
	}
	return m
}

// node is a backbone vertex. Leg settings describe the leg arriving at it.
type node struct {
	P    geometry.Point2D
	Out  float64 // heading of the leg leaving this node
	Step int

	legCrossSection string
	legConnector    string
	legSeparation   *float64
}

// resolved holds the names a route resolved to.
type resolved struct {
	name      string
	xs        xsection.CrossSection
	connector string
	bend      string

	startStraight, endStraight float64
}

func (r *Router) resolve(opts Options) (resolved, error) {
	res := resolved{name: opts.Name, startStraight: opts.StartStraight, endStraight: opts.EndStraight}

	xsName := opts.CrossSection
	if xsName == "" {
		xsName = r.cfg.DefaultCrossSection
	}
	xs, ok := r.reg.CrossSections.Get(xsName)
	if !ok {
		return res, &ConfigurationError{Route: opts.Name, Kind: "cross-section", Name: xsName}
	}
	res.xs = xs

	res.connector = opts.Connector
	if res.connector == "" {
		res.connector = r.reg.Connectors.Default()
	}
	if _, ok := r.reg.Connectors.Get(res.connector); !ok {
		return res, &ConfigurationError{Route: opts.Name, Kind: "connector", Name: res.connector}
	}

	res.bend = opts.Bend
	if res.bend == "" {
		res.bend = r.cfg.DefaultBend
	}
	if r.reg.Bends.Get(res.bend) == nil {
		return res, &ConfigurationError{Route: opts.Name, Kind: "bend", Name: res.bend}
	}

	for _, s := range opts.Steps {
		if s.CrossSection != "" {
			if _, ok := r.reg.CrossSections.Get(s.CrossSection); !ok {
				return res, &ConfigurationError{Route: opts.Name, Kind: "cross-section", Name: s.CrossSection}
			}
		}
		if s.Connector != "" {
			if _, ok := r.reg.Connectors.Get(s.Connector); !ok {
				return res, &ConfigurationError{Route: opts.Name, Kind: "connector", Name: s.Connector}
			}
		}
	}
	return res, nil
}

// bendFor returns the bend name and radius used with a cross-section.
func (res resolved) bendFor(xs xsection.CrossSection) (string, float64) {
	if xs.Radius == 0 {
		return component.WireCorner, 0
	}
	return res.bend, xs.Radius
}

func (r *Router) handleFunc(res resolved, xs xsection.CrossSection) handleFunc {
	name, radius := res.bendFor(xs)
	return func(turn float64) (float64, error) {
		g, err := r.reg.Bends.Build(name, turn, radius)
		if err != nil {
			return 0, err
		}
		return g.Handle, nil
	}
}

// Route computes the route from start to end.
func (r *Router) Route(start, end port.Port, opts Options) (*Route, error) {
	res, nodes, err := r.plan(start, end, opts)
	if err != nil {
		return nil, err
	}
	return r.build(start, end, res, nodes)
}

func (r *Router) checkPorts(name string, start, end port.Port) error {
	if err := start.Validate(); err != nil {
		return &ValidationError{Route: name, Step: noStep, Err: err}
	}
	if err := end.Validate(); err != nil {
		return &ValidationError{Route: name, Step: noStep, Err: err}
	}
	if start.Center.Equal(end.Center, geometry.Tolerance) {
		return newGeometryError(name, noStep, "start and end ports coincide at %v", start.Center)
	}
	return nil
}

func (r *Router) checkOptions(opts Options) error {
	if opts.StartAngle != nil && !finite(*opts.StartAngle) {
		return newValidationError(opts.Name, noStep, "start_angle must be finite")
	}
	if opts.EndAngle != nil && !finite(*opts.EndAngle) {
		return newValidationError(opts.Name, noStep, "end_angle must be finite")
	}
	if !finite(opts.StartStraight) || opts.StartStraight < 0 {
		return newValidationError(opts.Name, noStep, "start_straight must be >= 0")
	}
	if !finite(opts.EndStraight) || opts.EndStraight < 0 {
		return newValidationError(opts.Name, noStep, "end_straight must be >= 0")
	}
	if len(opts.Waypoints) > 0 && len(opts.Steps) > 0 {
		return newValidationError(opts.Name, noStep, "waypoints and steps are mutually exclusive")
	}
	for i, w := range opts.Waypoints {
		if !finite(w.X) || !finite(w.Y) {
			return newValidationError(opts.Name, i, "waypoint must be finite")
		}
	}
	return nil
}

// plan validates the request and lays out the backbone: the start port,
// every corner, and the end port.
func (r *Router) plan(start, end port.Port, opts Options) (resolved, []node, error) {
	if err := r.checkPorts(opts.Name, start, end); err != nil {
		return resolved{}, nil, err
	}
	if err := r.checkOptions(opts); err != nil {
		return resolved{}, nil, err
	}
	if err := ValidateSteps(opts.Name, opts.Steps); err != nil {
		return resolved{}, nil, err
	}
	res, err := r.resolve(opts)
	if err != nil {
		return res, nil, err
	}
	handle := r.handleFunc(res, res.xs)

	nodes := []node{{P: start.Center, Out: start.Orientation, Step: noStep}}
	pos, heading, reserve := start.Center, start.Orientation, opts.StartStraight
	sideHint := 0.0

	if opts.StartAngle != nil {
		turn := geometry.TurnAngle(start.Orientation, *opts.StartAngle)
		if math.Abs(turn) > angleTolerance {
			h, err := handle(turn)
			if err != nil {
				return res, nil, &GeometryError{Route: opts.Name, Step: noStep, Err: fmt.Errorf("start_angle: %w", err)}
			}
			pos = start.Center.Add(start.Direction().Scale(h + opts.StartStraight))
			heading, reserve = *opts.StartAngle, h
			nodes = append(nodes, node{P: pos, Out: heading, Step: noStep})
			sideHint = turn
		}
	}

	target := rayEnd{P: end.Center, Heading: end.Orientation, Reserve: opts.EndStraight}
	var endCorner *node
	if opts.EndAngle != nil {
		turn := geometry.TurnAngle(*opts.EndAngle, end.Orientation)
		if math.Abs(turn) > angleTolerance {
			h, err := handle(turn)
			if err != nil {
				return res, nil, &GeometryError{Route: opts.Name, Step: noStep, Err: fmt.Errorf("end_angle: %w", err)}
			}
			p := end.Center.Add(end.Direction().Scale(h + opts.EndStraight))
			target = rayEnd{P: p, Heading: *opts.EndAngle, Reserve: h}
			endCorner = &node{P: p, Out: geometry.NormalizeAngle(end.Orientation + 180), Step: noStep}
			if sideHint == 0 {
				sideHint = -turn
			}
		}
	}
	if sideHint == 0 {
		sideHint = 1
	}

	steps := opts.Steps
	if len(opts.Waypoints) > 0 {
		if steps, err = waypointSteps(opts.Name, pos, heading, target, opts.Waypoints); err != nil {
			return res, nil, err
		}
	}

	for i, s := range steps {
		p, in, err := resolveStep(opts.Name, i, s, pos, heading)
		if err != nil {
			return res, nil, err
		}
		// A new heading into this corner turns the previous one.
		if math.Abs(geometry.TurnAngle(heading, in)) > angleTolerance {
			nodes[len(nodes)-1].Out = in
		}
		out := in
		if s.ExitAngle != nil {
			out = *s.ExitAngle
		}
		nodes = append(nodes, node{
			P: p, Out: out, Step: i,
			legCrossSection: s.CrossSection,
			legConnector:    s.Connector,
			legSeparation:   s.Separation,
		})

		reserve = 0
		if turn := geometry.TurnAngle(in, out); math.Abs(turn) > angleTolerance {
			stepHandle := handle
			if s.CrossSection != "" {
				xs, _ := r.reg.CrossSections.Get(s.CrossSection)
				stepHandle = r.handleFunc(res, xs)
			}
			h, err := stepHandle(turn)
			if err != nil {
				return res, nil, &GeometryError{Route: opts.Name, Step: i, Err: err}
			}
			reserve = h
		}
		pos, heading = p, out
	}

	corners, err := connectRays(rayEnd{P: pos, Heading: heading, Reserve: reserve}, target, handle,
		clearanceStep(res.xs), sideHint)
	if err != nil {
		return res, nil, &GeometryError{Route: opts.Name, Step: lastStep(steps), Err: err}
	}
	for _, c := range corners {
		nodes = append(nodes, node{P: c.P, Out: c.Out, Step: noStep})
	}
	if endCorner != nil {
		nodes = append(nodes, *endCorner)
	}
	nodes = append(nodes, node{P: end.Center, Out: geometry.NormalizeAngle(end.Orientation + 180), Step: noStep})

	r.logger.Debug().
		Str("route", opts.Name).
		Int("steps", len(steps)).
		Int("corners", len(nodes)-2).
		Msg("planned backbone")
	return res, nodes, nil
}

func lastStep(steps []Step) int {
	if len(steps) == 0 {
		return noStep
	}
	return len(steps) - 1
}

// clearanceStep is the increment used when searching for indirect routes.
func clearanceStep(xs xsection.CrossSection) float64 {
	return math.Max(xs.Radius/4, 0.5)
}
