// Package app provides application lifecycle management: configuration, jobs, results and events.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"pic-router/internal/component"
	"pic-router/internal/config"
	"pic-router/internal/connector"
	"pic-router/internal/job"
	"pic-router/internal/port"
	"pic-router/internal/render"
	"pic-router/internal/route"
	"pic-router/internal/xsection"
)

// State holds the configured router, the current job and its results.
type State struct {
	mu sync.RWMutex

	Config   *config.Config
	Registry *route.Registry
	Router   *route.Router

	// Job
	JobPath string
	Job     *job.File

	// Results of the last run
	Results *Results

	logger zerolog.Logger

	// Event listeners
	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventJobLoaded EventType = iota
	EventRouted
	EventRouteFailed
	EventResultsWritten
	EventPreviewRendered
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Results holds the routes of one job run.
type Results struct {
	Job         string         `json:"job"`
	Routes      []*route.Route `json:"routes"`
	Errors      []EntryError   `json:"errors,omitempty"`
	TotalLength float64        `json:"total_length"`
	TotalLossDB float64        `json:"total_loss_db"`
}

// EntryError records a route or bundle that failed.
type EntryError struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"` // validation, geometry, configuration, error
	Step    int    `json:"step"` // -1 when not tied to a step
	Message string `json:"message"`
}

// Failed reports whether any entry failed.
func (r *Results) Failed() bool {
	return len(r.Errors) > 0
}

// NewRegistry builds a router registry from the configuration: built-ins
// tuned by the config plus cross-sections from the configured files.
func NewRegistry(cfg *config.Config) (*route.Registry, error) {
	reg := route.NewRegistry()

	reg.Bends.Add(component.NewEulerBend(cfg.Router.EulerP))
	reg.Connectors.Register(connector.AutoTaper, connector.AutoTaperConnector{
		TaperLength: cfg.Connectors.TaperLength,
	})
	reg.Connectors.Register(connector.LowLoss, connector.LowLossConnector{
		WideWidth:       cfg.Connectors.WideWidth,
		TaperLength:     cfg.Connectors.TaperLength,
		MinWideStraight: cfg.Connectors.MinWideStraight,
	})

	if err := registerCrossSections(reg, cfg.CrossSectionFiles); err != nil {
		return nil, err
	}

	if err := reg.Connectors.SetDefault(cfg.Router.DefaultConnector); err != nil {
		return nil, &route.ConfigurationError{Kind: "connector", Name: cfg.Router.DefaultConnector}
	}
	if reg.Bends.Get(cfg.Router.DefaultBend) == nil {
		return nil, &route.ConfigurationError{Kind: "bend", Name: cfg.Router.DefaultBend}
	}
	if _, ok := reg.CrossSections.Get(cfg.Router.DefaultCrossSection); !ok {
		return nil, &route.ConfigurationError{Kind: "cross-section", Name: cfg.Router.DefaultCrossSection}
	}
	return reg, nil
}

func registerCrossSections(reg *route.Registry, paths []string) error {
	for _, path := range paths {
		xss, err := xsection.LoadFromFile(path)
		if err != nil {
			return fmt.Errorf("load cross-sections: %w", err)
		}
		for _, xs := range xss {
			if err := reg.CrossSections.Register(xs); err != nil {
				return fmt.Errorf("register cross-section from %s: %w", path, err)
			}
		}
	}
	return nil
}

// RouterConfig converts application configuration into router defaults.
func RouterConfig(cfg *config.Config) route.Config {
	return route.Config{
		DefaultBend:         cfg.Router.DefaultBend,
		DefaultCrossSection: cfg.Router.DefaultCrossSection,
		BendDB90:            cfg.Router.BendDB90,
		TaperDB:             cfg.Router.TaperDB,
		Parallel:            cfg.Router.Parallel,
	}
}

// NewState creates a new application state from a validated configuration.
func NewState(cfg *config.Config, logger zerolog.Logger) (*State, error) {
	reg, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	return &State{
		Config:    cfg,
		Registry:  reg,
		Router:    route.New(reg, RouterConfig(cfg), logger),
		logger:    logger.With().Str("component", "app").Logger(),
		listeners: make(map[EventType][]EventListener),
	}, nil
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// LoadJob loads a job file and registers its cross-sections.
func (s *State) LoadJob(path string) error {
	f, err := job.Load(path)
	if err != nil {
		return err
	}
	if err := registerCrossSections(s.Registry, f.GetCrossSectionFiles(path)); err != nil {
		return err
	}

	s.mu.Lock()
	s.JobPath = path
	s.Job = f
	s.Results = nil
	s.mu.Unlock()

	s.logger.Info().
		Str("job", f.Name).
		Int("ports", len(f.Ports)).
		Int("routes", len(f.Routes)).
		Int("bundles", len(f.Bundles)).
		Msg("job loaded")
	s.Emit(EventJobLoaded, path)
	return nil
}

// Run routes every route and bundle of the loaded job. Failed entries are
// recorded in the results; the returned error is only for a missing job or
// a cancelled context.
func (s *State) Run(ctx context.Context) (*Results, error) {
	s.mu.RLock()
	f := s.Job
	s.mu.RUnlock()
	if f == nil {
		return nil, errors.New("no job loaded")
	}

	res := &Results{Job: f.Name}

	for _, name := range f.RouteNames() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l := f.Routes[name]
		rt, err := s.Router.Route(f.Ports[l.From], f.Ports[l.To], l.Settings.Options(name))
		if err != nil {
			s.fail(res, name, err)
			continue
		}
		s.routed(res, rt)
	}

	for _, name := range f.BundleNames() {
		b := f.Bundles[name]
		starts, ends := b.Ends(f.Ports)
		routes, err := s.Router.Bundle(ctx, starts, ends, b.Settings.BundleOptions(name))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.fail(res, name, err)
			continue
		}
		for _, rt := range routes {
			s.routed(res, rt)
		}
	}

	s.mu.Lock()
	s.Results = res
	s.mu.Unlock()

	s.logger.Info().
		Str("job", f.Name).
		Int("routed", len(res.Routes)).
		Int("failed", len(res.Errors)).
		Float64("length", res.TotalLength).
		Float64("loss_db", res.TotalLossDB).
		Msg("job routed")
	return res, nil
}

func (s *State) routed(res *Results, rt *route.Route) {
	res.Routes = append(res.Routes, rt)
	res.TotalLength += rt.Info.Length
	res.TotalLossDB += rt.Info.LossDB
	s.logger.Debug().
		Str("route", rt.Name).
		Int("segments", len(rt.Segments)).
		Float64("length", rt.Info.Length).
		Float64("n_bend_90", rt.Info.NBend90).
		Msg("routed")
	s.Emit(EventRouted, rt)
}

func (s *State) fail(res *Results, name string, err error) {
	e := EntryError{Name: name, Kind: errorKind(err), Step: route.StepIndex(err), Message: err.Error()}
	res.Errors = append(res.Errors, e)
	s.logger.Warn().Err(err).Str("route", name).Str("kind", e.Kind).Msg("route failed")
	s.Emit(EventRouteFailed, e)
}

func errorKind(err error) string {
	switch {
	case route.IsValidationError(err):
		return "validation"
	case route.IsGeometryError(err):
		return "geometry"
	case route.IsConfigurationError(err):
		return "configuration"
	default:
		return "error"
	}
}

// WriteResults writes the last run as JSON next to the job and returns the path.
func (s *State) WriteResults() (string, error) {
	s.mu.RLock()
	f, jobPath, res := s.Job, s.JobPath, s.Results
	s.mu.RUnlock()
	if res == nil {
		return "", errors.New("nothing routed yet")
	}

	path := f.GetOutputPath(jobPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	s.logger.Info().Str("path", path).Msg("results written")
	s.Emit(EventResultsWritten, path)
	return path, nil
}

// RenderPreview renders the last run to the job's preview path. It returns
// "" without error when the job asks for no preview.
func (s *State) RenderPreview() (string, error) {
	s.mu.RLock()
	f, jobPath, res := s.Job, s.JobPath, s.Results
	s.mu.RUnlock()
	if res == nil {
		return "", errors.New("nothing routed yet")
	}

	path := f.GetPreviewPath(jobPath)
	if path == "" {
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := render.SavePNG(path, s.scene(f, res), s.renderOptions()); err != nil {
		return "", fmt.Errorf("render preview: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("preview rendered")
	s.Emit(EventPreviewRendered, path)
	return path, nil
}

func (s *State) scene(f *job.File, res *Results) render.Scene {
	sc := render.Scene{
		Routes:        res.Routes,
		CrossSections: make(map[string]xsection.CrossSection),
	}
	for _, name := range s.Registry.CrossSections.List() {
		if xs, ok := s.Registry.CrossSections.Get(name); ok {
			sc.CrossSections[name] = xs
		}
	}
	names := make([]string, 0, len(f.Ports))
	for name := range f.Ports {
		names = append(names, name)
	}
	sort.Strings(names)
	sc.Ports = make([]port.Port, 0, len(names))
	for _, name := range names {
		sc.Ports = append(sc.Ports, f.Ports[name])
	}
	return sc
}

func (s *State) renderOptions() render.Options {
	opts := render.DefaultOptions()
	opts.PixelsPerUm = s.Config.Preview.PixelsPerUm
	opts.Margin = s.Config.Preview.Margin
	opts.MaxSize = s.Config.Preview.MaxSize
	opts.DrawPorts = s.Config.Preview.DrawPorts
	return opts
}

// Process loads a job, routes it and writes its outputs.
func (s *State) Process(ctx context.Context, path string) (*Results, error) {
	if err := s.LoadJob(path); err != nil {
		return nil, err
	}
	res, err := s.Run(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.WriteResults(); err != nil {
		return res, err
	}
	if _, err := s.RenderPreview(); err != nil {
		return res, err
	}
	return res, nil
}

// WatchPaths returns the files the loaded job depends on.
func (s *State) WatchPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Job == nil {
		return nil
	}
	return append([]string{s.JobPath}, s.Job.GetCrossSectionFiles(s.JobPath)...)
}
