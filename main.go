// Package main provides the entry point for the pic-router command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pic-router/internal/app"
	"pic-router/internal/config"
	"pic-router/internal/logging"
	"pic-router/internal/version"
)

var (
	cfgFile string
	verbose bool
	watch   bool
)

var rootCmd = &cobra.Command{
	Use:   "pic-router",
	Short: "All-angle waveguide router for photonic layouts",
	Long: `pic-router computes waveguide routes between optical ports: bends at
every corner, straight spans and tapers in between, steered by step
directives and routed in bundles with a fixed separation.

Configuration:
  The router looks for configuration in:
  1. --config flag (explicit path)
  2. ./pic-router.yaml
  3. $HOME/.config/pic-router/pic-router.yaml

Environment Variables:
  PICROUTER_LOG_LEVEL              - debug, info, warn, error
  PICROUTER_ROUTER_DEFAULT_BEND    - euler, circular, wire_corner
  PICROUTER_ROUTER_DEFAULT_CONNECTOR - straight, auto_taper, low_loss`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var routeCmd = &cobra.Command{
	Use:   "route <job.yaml>",
	Short: "Route every link of a job file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoute,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.DefaultConfig().SaveToFile(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered bends, connectors and cross-sections",
	RunE:  runList,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./pic-router.yaml or $HOME/.config/pic-router/pic-router.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	routeCmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-route whenever the job or its cross-section files change")

	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Config{
		Level:   logging.LogLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Verbose: verbose,
	})
}

func runRoute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	state, err := app.NewState(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobPath := args[0]
	res, err := state.Process(ctx, jobPath)
	if err != nil && !watch {
		return err
	}
	if res != nil {
		printResults(cmd, res)
	}
	if err != nil {
		logger.Error().Err(err).Msg("job failed")
	}

	if !watch {
		if res.Failed() {
			return fmt.Errorf("%d of %d entries failed", len(res.Errors), len(res.Routes)+len(res.Errors))
		}
		return nil
	}

	paths := state.WatchPaths()
	if len(paths) == 0 {
		paths = []string{jobPath}
	}
	watcher := app.NewJobWatcher(cfg.Watch.Interval, paths...)
	watcher.OnChange(func(changed []string) {
		logger.Info().Strs("files", changed).Msg("job changed, re-routing")
		res, err := state.Process(ctx, jobPath)
		if err != nil {
			logger.Error().Err(err).Msg("job failed")
		}
		if res != nil {
			printResults(cmd, res)
		}
	})
	watcher.Start()
	logger.Info().Strs("files", paths).Dur("interval", cfg.Watch.Interval).Msg("watching")

	<-ctx.Done()
	watcher.Stop()
	return nil
}

func printResults(cmd *cobra.Command, res *app.Results) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nJob %s: %d routed, %d failed\n", res.Job, len(res.Routes), len(res.Errors))
	fmt.Fprintf(out, "%-20s %8s %10s %8s %8s %9s\n", "ROUTE", "SEGMENTS", "LENGTH", "BEND90", "TAPERS", "LOSS(dB)")
	fmt.Fprintln(out, strings.Repeat("-", 68))
	for _, rt := range res.Routes {
		fmt.Fprintf(out, "%-20s %8d %10.3f %8.2f %8d %9.4f\n",
			rt.Name, len(rt.Segments), rt.Info.Length, rt.Info.NBend90, rt.Info.NTapers, rt.Info.LossDB)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(out, "%-20s FAILED (%s): %s\n", e.Name, e.Kind, e.Message)
	}
	fmt.Fprintf(out, "Total length %.3f µm, loss %.4f dB\n", res.TotalLength, res.TotalLossDB)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := app.NewRegistry(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Bends:")
	for _, name := range reg.Bends.List() {
		marker := ""
		if name == cfg.Router.DefaultBend {
			marker = " (default)"
		}
		fmt.Fprintf(out, "  %s%s\n", name, marker)
	}

	fmt.Fprintln(out, "Connectors:")
	for _, name := range reg.Connectors.List() {
		marker := ""
		if name == reg.Connectors.Default() {
			marker = " (default)"
		}
		fmt.Fprintf(out, "  %s%s\n", name, marker)
	}

	fmt.Fprintln(out, "Cross-sections:")
	fmt.Fprintf(out, "  %-16s %8s %8s %8s %8s %s\n", "NAME", "WIDTH", "RADIUS", "SPACING", "dB/cm", "LAYER")
	for _, name := range reg.CrossSections.List() {
		xs, _ := reg.CrossSections.Get(name)
		marker := ""
		if name == cfg.Router.DefaultCrossSection {
			marker = " (default)"
		}
		fmt.Fprintf(out, "  %-16s %8.3f %8.3f %8.3f %8.3f %s%s\n",
			xs.Name, xs.Width, xs.Radius, xs.Spacing, xs.LossDBPerCm, xs.Layer, marker)
	}
	return nil
}
