// Package config loads dirgraph settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/TFMV/dirgraph/graph"
	"github.com/TFMV/dirgraph/physics"
	"github.com/TFMV/dirgraph/render"
)

// Config holds dirgraph configuration.
type Config struct {
	Page       PageConfig       `toml:"page"`
	Canvas     CanvasConfig     `toml:"canvas"`
	Forces     ForcesConfig     `toml:"forces"`
	Simulation SimulationConfig `toml:"simulation"`
	Scene      SceneConfig      `toml:"scene"`
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
}

// PageConfig describes the host page.
type PageConfig struct {
	ViewportWidth  float64            `toml:"viewport_width"`
	ViewportHeight float64            `toml:"viewport_height"`
	Containers     []render.Container `toml:"containers"`
}

// CanvasConfig controls where and how big the default graph is drawn.
type CanvasConfig struct {
	Selector string  `toml:"selector"`
	Size     string  `toml:"size"` // "parent" or "viewport"
	Height   float64 `toml:"height"`
}

// ForcesConfig sets force strengths.
type ForcesConfig struct {
	Charge            float64 `toml:"charge"`
	ChargeMaxDistance float64 `toml:"charge_max_distance"` // 0 is unbounded
	LinkDistance      float64 `toml:"link_distance"`
}

// SimulationConfig controls cooling and the tick loop.
type SimulationConfig struct {
	AlphaMin      float64       `toml:"alpha_min"`
	VelocityDecay float64       `toml:"velocity_decay"`
	Reheat        float64       `toml:"reheat"`
	TickInterval  time.Duration `toml:"tick_interval"`
	SettleTicks   int           `toml:"settle_ticks"`
	Seed          int64         `toml:"seed"`
}

// SceneConfig sets element geometry and transitions.
type SceneConfig struct {
	NodeRadius float64       `toml:"node_radius"`
	LabelDX    float64       `toml:"label_dx"`
	LabelDY    string        `toml:"label_dy"`
	ArcScale   float64       `toml:"arc_scale"`
	LoopRadius float64       `toml:"loop_radius"`
	Transition time.Duration `toml:"transition"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr         string        `toml:"addr"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	IdleTimeout  time.Duration `toml:"idle_timeout"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// Default returns the default configuration.
func Default() *Config {
	style := render.DefaultStyle()
	phys := physics.DefaultConfig()
	return &Config{
		Page: PageConfig{
			ViewportWidth:  1280,
			ViewportHeight: 800,
			Containers:     []render.Container{{Selector: "#graph", Width: phys.Width}},
		},
		Canvas: CanvasConfig{
			Selector: "#graph",
			Size:     string(render.SizeParent),
			Height:   render.DefaultHeight,
		},
		Forces: ForcesConfig{
			Charge:       phys.Charge,
			LinkDistance: phys.LinkDistance,
		},
		Simulation: SimulationConfig{
			AlphaMin:      phys.AlphaMin,
			VelocityDecay: phys.VelocityDecay,
			Reheat:        graph.DefaultReheat,
			TickInterval:  graph.DefaultTickInterval,
			SettleTicks:   1000,
			Seed:          phys.Seed,
		},
		Scene: SceneConfig{
			NodeRadius: style.NodeRadius,
			LabelDX:    style.LabelDX,
			LabelDY:    style.LabelDY,
			ArcScale:   style.Arc.Scale,
			LoopRadius: style.Arc.LoopRadius,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// ConfigDir returns the dirgraph config directory path.
func ConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "dirgraph")
}

// DefaultPath returns the config file read when no path is given.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file at path over the defaults. An empty path
// reads DefaultPath if it exists and returns the defaults otherwise.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return cfg.Encode(f)
}

// Encode writes the config as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch render.SizeMode(c.Canvas.Size) {
	case render.SizeParent, render.SizeViewport:
	default:
		return fmt.Errorf("canvas.size must be %q or %q, got %q", render.SizeParent, render.SizeViewport, c.Canvas.Size)
	}
	if c.Canvas.Height <= 0 {
		return fmt.Errorf("canvas.height must be positive")
	}
	if c.Simulation.AlphaMin <= 0 || c.Simulation.AlphaMin >= 1 {
		return fmt.Errorf("simulation.alpha_min must be in (0, 1)")
	}
	if c.Simulation.VelocityDecay < 0 || c.Simulation.VelocityDecay > 1 {
		return fmt.Errorf("simulation.velocity_decay must be in [0, 1]")
	}
	if c.Simulation.Reheat < 0 || c.Simulation.Reheat > 1 {
		return fmt.Errorf("simulation.reheat must be in [0, 1]")
	}
	if c.Simulation.TickInterval <= 0 {
		return fmt.Errorf("simulation.tick_interval must be positive")
	}
	if c.Scene.NodeRadius <= 0 {
		return fmt.Errorf("scene.node_radius must be positive")
	}
	if c.Scene.ArcScale <= 0 {
		return fmt.Errorf("scene.arc_scale must be positive")
	}
	if c.Scene.LoopRadius <= 0 {
		return fmt.Errorf("scene.loop_radius must be positive")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Physics returns the simulation parameters. The canvas size is filled in
// when a graph attaches.
func (c *Config) Physics() physics.Config {
	p := physics.DefaultConfig()
	p.Charge = c.Forces.Charge
	p.ChargeMaxDist = c.Forces.ChargeMaxDistance
	p.LinkDistance = c.Forces.LinkDistance
	p.AlphaMin = c.Simulation.AlphaMin
	p.AlphaDecay = physics.AlphaDecayFor(c.Simulation.AlphaMin)
	p.VelocityDecay = c.Simulation.VelocityDecay
	p.Seed = c.Simulation.Seed
	return p
}

// Style returns the scene style.
func (c *Config) Style() render.Style {
	return render.Style{
		NodeRadius: c.Scene.NodeRadius,
		LabelDX:    c.Scene.LabelDX,
		LabelDY:    c.Scene.LabelDY,
		Arc:        render.ArcStyle{Scale: c.Scene.ArcScale, LoopRadius: c.Scene.LoopRadius},
		Transition: c.Scene.Transition,
	}
}

// NewPage builds the host page from the configured viewport and containers.
func (c *Config) NewPage() *render.Page {
	return render.NewPage(c.Page.ViewportWidth, c.Page.ViewportHeight, c.Page.Containers...)
}

// GraphOptions returns the graph handle options for this config.
func (c *Config) GraphOptions(logger *log.Logger) []graph.Option {
	return []graph.Option{
		graph.WithLogger(logger),
		graph.WithStyle(c.Style()),
		graph.WithSize(render.SizeMode(c.Canvas.Size), c.Canvas.Height),
		graph.WithPhysics(c.Physics()),
		graph.WithReheat(c.Simulation.Reheat),
		graph.WithTickInterval(c.Simulation.TickInterval),
	}
}

// Level returns the configured log level.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
