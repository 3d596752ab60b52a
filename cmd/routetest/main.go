// Command routetest routes a single port pair and prints the segments.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"pic-router/internal/app"
	"pic-router/internal/config"
	"pic-router/internal/logging"
	"pic-router/internal/port"
	"pic-router/internal/render"
	"pic-router/internal/route"
	"pic-router/internal/xsection"
)

// parsePort parses "x,y,orientation[,width]".
func parsePort(name, s string) (port.Port, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 3 || len(parts) > 4 {
		return port.Port{}, fmt.Errorf("port %s: want x,y,orientation[,width], got %q", name, s)
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return port.Port{}, fmt.Errorf("port %s: %w", name, err)
		}
		vals[i] = v
	}
	width := 0.0
	if len(vals) == 4 {
		width = vals[3]
	}
	return port.New(name, vals[0], vals[1], vals[2], width), nil
}

func optionalAngle(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

var errUsage = errors.New("usage: routetest -end x,y,orientation [-start x,y,orientation] [-bend euler] [-steps JSON] [-png out.png]")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if step := route.StepIndex(err); step >= 0 {
			fmt.Fprintf(os.Stderr, "  at step %d\n", step)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("routetest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	startSpec := fs.String("start", "0,0,0", "Start port: x,y,orientation[,width]")
	endSpec := fs.String("end", "", "End port: x,y,orientation[,width]")
	bend := fs.String("bend", "", "Bend name (default from config)")
	conn := fs.String("connector", "", "Connector name (default from config)")
	xs := fs.String("xs", "", "Cross-section name (default from config)")
	startAngle := fs.String("start-angle", "", "Re-orient the start before routing")
	endAngle := fs.String("end-angle", "", "Approach the end from this orientation")
	startStraight := fs.Float64("start-straight", 0, "Straight kept after the start port")
	endStraight := fs.Float64("end-straight", 0, "Straight kept before the end port")
	steps := fs.String("steps", "", `Steps as JSON, e.g. '[{"dx":20},{"y":50,"exit_angle":90}]'`)
	cfgPath := fs.String("config", "", "Config file")
	png := fs.String("png", "", "Write a preview PNG")
	verbose := fs.Bool("v", false, "Debug logging")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\n%v", errUsage, err)
	}

	if *endSpec == "" {
		return errUsage
	}

	start, err := parsePort("start", *startSpec)
	if err != nil {
		return err
	}
	end, err := parsePort("end", *endSpec)
	if err != nil {
		return err
	}

	opts := route.Options{
		Name:          "routetest",
		Bend:          *bend,
		Connector:     *conn,
		CrossSection:  *xs,
		StartStraight: *startStraight,
		EndStraight:   *endStraight,
	}
	if opts.StartAngle, err = optionalAngle(*startAngle); err != nil {
		return fmt.Errorf("bad start angle: %w", err)
	}
	if opts.EndAngle, err = optionalAngle(*endAngle); err != nil {
		return fmt.Errorf("bad end angle: %w", err)
	}
	if *steps != "" {
		if err := json.Unmarshal([]byte(*steps), &opts.Steps); err != nil {
			return fmt.Errorf("bad steps: %w", err)
		}
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(logging.Config{Level: logging.LogLevel(cfg.Log.Level), Pretty: true, Verbose: *verbose})

	state, err := app.NewState(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up router: %w", err)
	}

	fmt.Fprintf(out, "Start: %s\n", start)
	fmt.Fprintf(out, "End:   %s\n", end)

	rt, err := state.Router.Route(start, end, opts)
	if err != nil {
		return fmt.Errorf("routing failed: %w", err)
	}

	fmt.Fprintf(out, "\nBackbone:")
	for _, p := range rt.Backbone {
		fmt.Fprintf(out, " (%.3f, %.3f)", p.X, p.Y)
	}
	fmt.Fprintf(out, "\n\n%-4s %-9s %-12s %-12s %20s %20s %8s %8s %10s\n",
		"#", "KIND", "COMPONENT", "SOURCE", "START", "END", "IN", "OUT", "LENGTH")
	fmt.Fprintln(out, strings.Repeat("-", 112))
	for i, s := range rt.Segments {
		fmt.Fprintf(out, "%-4d %-9s %-12s %-12s %9.3f,%10.3f %9.3f,%10.3f %8.2f %8.2f %10.3f\n",
			i, s.Kind, s.Component, s.Source,
			s.Start.X, s.Start.Y, s.End.X, s.End.Y,
			s.StartAngle, s.EndAngle, s.Length)
	}

	fmt.Fprintf(out, "\nLength: %.3f µm  bends: %d (%.2f x 90°)  tapers: %d  loss: %.4f dB\n",
		rt.Info.Length, rt.Info.NBends, rt.Info.NBend90, rt.Info.NTapers, rt.Info.LossDB)

	if *png != "" {
		sc := render.Scene{Routes: []*route.Route{rt}}
		if xsDef, ok := state.Registry.CrossSections.Get(rt.CrossSection); ok {
			sc.CrossSections = map[string]xsection.CrossSection{rt.CrossSection: xsDef}
		}
		sc.Ports = []port.Port{start, end}
		if err := render.SavePNG(*png, sc, render.DefaultOptions()); err != nil {
			return fmt.Errorf("preview failed: %w", err)
		}
		fmt.Fprintf(out, "Preview written to %s\n", *png)
	}
	return nil
}
