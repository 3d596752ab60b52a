// Package config provides the configuration system for pic-router.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. PICROUTER_LOG_LEVEL.
const EnvPrefix = "PICROUTER"

// Config holds the complete application configuration
type Config struct {
	Router            RouterConfig    `mapstructure:"router" yaml:"router"`
	Connectors        ConnectorConfig `mapstructure:"connectors" yaml:"connectors"`
	Log               LogConfig       `mapstructure:"log" yaml:"log"`
	Preview           PreviewConfig   `mapstructure:"preview" yaml:"preview"`
	Watch             WatchConfig     `mapstructure:"watch" yaml:"watch"`
	CrossSectionFiles []string        `mapstructure:"cross_section_files" yaml:"cross_section_files"`
}

// RouterConfig holds router defaults
type RouterConfig struct {
	DefaultBend         string  `mapstructure:"default_bend" yaml:"default_bend"`
	DefaultConnector    string  `mapstructure:"default_connector" yaml:"default_connector"`
	DefaultCrossSection string  `mapstructure:"default_cross_section" yaml:"default_cross_section"`
	EulerP              float64 `mapstructure:"euler_p" yaml:"euler_p"`
	BendDB90            float64 `mapstructure:"bend_db_90" yaml:"bend_db_90"` // loss per 90 degree bend
	TaperDB             float64 `mapstructure:"taper_db" yaml:"taper_db"`
	Parallel            bool    `mapstructure:"parallel" yaml:"parallel"` // route bundle members concurrently
}

// ConnectorConfig holds the dimensions of the built-in connectors, in µm
type ConnectorConfig struct {
	TaperLength     float64 `mapstructure:"taper_length" yaml:"taper_length"`
	WideWidth       float64 `mapstructure:"wide_width" yaml:"wide_width"`
	MinWideStraight float64 `mapstructure:"min_wide_straight" yaml:"min_wide_straight"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"` // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// PreviewConfig holds PNG preview settings
type PreviewConfig struct {
	PixelsPerUm float64 `mapstructure:"pixels_per_um" yaml:"pixels_per_um"`
	Margin      float64 `mapstructure:"margin" yaml:"margin"`     // µm around the routes
	MaxSize     int     `mapstructure:"max_size" yaml:"max_size"` // longest image side in pixels
	DrawPorts   bool    `mapstructure:"draw_ports" yaml:"draw_ports"`
}

// WatchConfig holds job file watching settings
type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// DefaultConfig returns a new configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Router: RouterConfig{
			DefaultBend:         "euler",
			DefaultConnector:    "straight",
			DefaultCrossSection: "strip",
			EulerP:              0.5,
			BendDB90:            0.01,
			TaperDB:             0.02,
			Parallel:            true,
		},
		Connectors: ConnectorConfig{
			TaperLength:     10,
			WideWidth:       2,
			MinWideStraight: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
		Preview: PreviewConfig{
			PixelsPerUm: 4,
			Margin:      20,
			MaxSize:     4096,
			DrawPorts:   true,
		},
		Watch: WatchConfig{
			Interval: time.Second,
		},
	}
}

// Load loads configuration from file and environment variables.
// An empty configPath searches ./pic-router.yaml and $HOME/.config/pic-router.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pic-router")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/pic-router")
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Cross-section files are relative to the config file that names them.
	if used := v.ConfigFileUsed(); used != "" {
		dir := filepath.Dir(used)
		for i, p := range cfg.CrossSectionFiles {
			cfg.CrossSectionFiles[i] = resolvePath(dir, p)
		}
	}

	return &cfg, nil
}

// SaveToFile saves the configuration to a specific file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Router.DefaultBend == "" {
		return fmt.Errorf("router default_bend is required")
	}
	if c.Router.DefaultConnector == "" {
		return fmt.Errorf("router default_connector is required")
	}
	if c.Router.DefaultCrossSection == "" {
		return fmt.Errorf("router default_cross_section is required")
	}
	if c.Router.EulerP <= 0 || c.Router.EulerP > 1 {
		return fmt.Errorf("invalid euler_p: %g (must be in (0, 1])", c.Router.EulerP)
	}
	if c.Router.BendDB90 < 0 || c.Router.TaperDB < 0 {
		return fmt.Errorf("loss figures must be >= 0")
	}

	if c.Connectors.TaperLength < 0 || c.Connectors.MinWideStraight < 0 {
		return fmt.Errorf("connector lengths must be >= 0")
	}
	if c.Connectors.WideWidth <= 0 {
		return fmt.Errorf("invalid wide_width: %g (must be > 0)", c.Connectors.WideWidth)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn or error)", c.Log.Level)
	}

	if c.Preview.PixelsPerUm <= 0 {
		return fmt.Errorf("invalid preview pixels_per_um: %g (must be > 0)", c.Preview.PixelsPerUm)
	}
	if c.Preview.MaxSize < 16 {
		return fmt.Errorf("invalid preview max_size: %d (must be >= 16)", c.Preview.MaxSize)
	}

	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch interval must be positive")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".config", "pic-router", "pic-router.yaml")
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("router.default_bend", defaults.Router.DefaultBend)
	v.SetDefault("router.default_connector", defaults.Router.DefaultConnector)
	v.SetDefault("router.default_cross_section", defaults.Router.DefaultCrossSection)
	v.SetDefault("router.euler_p", defaults.Router.EulerP)
	v.SetDefault("router.bend_db_90", defaults.Router.BendDB90)
	v.SetDefault("router.taper_db", defaults.Router.TaperDB)
	v.SetDefault("router.parallel", defaults.Router.Parallel)
	v.SetDefault("connectors.taper_length", defaults.Connectors.TaperLength)
	v.SetDefault("connectors.wide_width", defaults.Connectors.WideWidth)
	v.SetDefault("connectors.min_wide_straight", defaults.Connectors.MinWideStraight)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.pretty", defaults.Log.Pretty)
	v.SetDefault("preview.pixels_per_um", defaults.Preview.PixelsPerUm)
	v.SetDefault("preview.margin", defaults.Preview.Margin)
	v.SetDefault("preview.max_size", defaults.Preview.MaxSize)
	v.SetDefault("preview.draw_ports", defaults.Preview.DrawPorts)
	v.SetDefault("watch.interval", defaults.Watch.Interval)
	v.SetDefault("cross_section_files", []string{})
}

func resolvePath(dir, p string) string {
	if len(p) > 0 && p[0] == '~' {
		home, _ := os.UserHomeDir()
		return home + p[1:]
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
