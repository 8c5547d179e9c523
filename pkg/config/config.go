// Package config holds the runtime configuration for the device, planner,
// console, and script engine, loaded from TOML or YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/chazu/georoute/pkg/console"
)

// ErrUnsupportedFormat is returned by Load for unknown file extensions.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Device configures the accelerator emulation.
type Device struct {
	Workers     int   `toml:"workers" yaml:"workers"`           // parallel workers per kernel, 0 = GOMAXPROCS
	BlockSize   int   `toml:"block_size" yaml:"block_size"`     // elements per kernel block
	MemoryLimit int64 `toml:"memory_limit" yaml:"memory_limit"` // bytes, 0 = unlimited
}

// Planner configures a SimplePlanner.
type Planner struct {
	ObjectRadius    float64 `toml:"object_radius" yaml:"object_radius"`
	MaxEdgeDistance float64 `toml:"max_edge_distance" yaml:"max_edge_distance"`
	SpatialIndex    bool    `toml:"spatial_index" yaml:"spatial_index"`
	ExactSolids     bool    `toml:"exact_solids" yaml:"exact_solids"` // signed-distance clearance for kernel solids
}

// Console configures logging.
type Console struct {
	Verbosity string `toml:"verbosity" yaml:"verbosity"`
}

// Engine configures scene-script evaluation.
type Engine struct {
	Timeout   Duration `toml:"timeout" yaml:"timeout"`
	MeshCells int      `toml:"mesh_cells" yaml:"mesh_cells"` // marching cubes resolution for tessellation
}

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the top-level configuration.
type Config struct {
	Device  Device  `toml:"device" yaml:"device"`
	Planner Planner `toml:"planner" yaml:"planner"`
	Console Console `toml:"console" yaml:"console"`
	Engine  Engine  `toml:"engine" yaml:"engine"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device: Device{
			Workers:   runtime.GOMAXPROCS(0),
			BlockSize: 4096,
		},
		Planner: Planner{
			ObjectRadius:    0.1,
			MaxEdgeDistance: 1.0,
		},
		Console: Console{
			Verbosity: "info",
		},
		Engine: Engine{
			Timeout:   Duration(5 * time.Second),
			MeshCells: 64,
		},
	}
}

// Load reads a configuration file, overlaying its values on Default().
// The format is chosen by extension: .toml, .yaml or .yml.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := Decode(data, filepath.Ext(path), &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode parses data in the format named by ext into cfg.
func Decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse toml: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse yaml: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

// Validate checks value ranges. All problems are joined into one error.
func (c Config) Validate() error {
	var errs []error
	if c.Device.Workers < 0 {
		errs = append(errs, fmt.Errorf("device.workers must be >= 0, got %d", c.Device.Workers))
	}
	if c.Device.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("device.block_size must be positive, got %d", c.Device.BlockSize))
	}
	if c.Device.MemoryLimit < 0 {
		errs = append(errs, fmt.Errorf("device.memory_limit must be >= 0, got %d", c.Device.MemoryLimit))
	}
	if c.Planner.ObjectRadius < 0 {
		errs = append(errs, fmt.Errorf("planner.object_radius must be >= 0, got %g", c.Planner.ObjectRadius))
	}
	if c.Planner.MaxEdgeDistance <= 0 {
		errs = append(errs, fmt.Errorf("planner.max_edge_distance must be positive, got %g", c.Planner.MaxEdgeDistance))
	}
	if _, err := console.ParseVerbosity(c.Console.Verbosity); err != nil {
		errs = append(errs, err)
	}
	if c.Engine.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.timeout must be positive, got %s", time.Duration(c.Engine.Timeout)))
	}
	if c.Engine.MeshCells <= 0 {
		errs = append(errs, fmt.Errorf("engine.mesh_cells must be positive, got %d", c.Engine.MeshCells))
	}
	return errors.Join(errs...)
}

// Verbosity returns the parsed console verbosity, defaulting to info.
func (c Config) Verbosity() console.VerbosityLevel {
	v, err := console.ParseVerbosity(c.Console.Verbosity)
	if err != nil {
		return console.VerbosityInfo
	}
	return v
}
