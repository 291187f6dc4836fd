package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	World      WorldConfig      `toml:"world"`
	Simulation SimulationConfig `toml:"simulation"`
	Scripting  ScriptingConfig  `toml:"scripting"`
	Logging    LoggingConfig    `toml:"logging"`
	Profile    ProfileConfig    `toml:"profile"`
}

type WorldConfig struct {
	Width  int `toml:"width"`  // cells; zone buckets are width/8 wide
	Height int `toml:"height"` // cells
}

type SimulationConfig struct {
	TickRate     time.Duration `toml:"tick_rate"`
	MaxSteps     int           `toml:"max_steps"`     // 0 = run until signalled
	SpawnFile    string        `toml:"spawn_file"`    // YAML spawn list
	StatsEvery   int           `toml:"stats_every"`   // ticks between stats lines, 0 = off
	Verify       bool          `toml:"verify"`        // full index consistency check every tick
	RespawnTicks int           `toml:"respawn_ticks"` // delay before a depleted resource returns
}

type ScriptingConfig struct {
	Dir      string `toml:"dir"`
	Behavior string `toml:"behavior"` // Lua global called once per unit per step
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type ProfileConfig struct {
	Mode string `toml:"mode"` // "", "cpu" or "mem"
	Path string `toml:"path"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.World.Width <= 0 || c.World.Height <= 0 {
		errs = append(errs, fmt.Errorf("world size %dx%d must be positive", c.World.Width, c.World.Height))
	}
	if c.Simulation.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick_rate %s must be positive", c.Simulation.TickRate))
	}
	if c.Simulation.MaxSteps < 0 || c.Simulation.StatsEvery < 0 || c.Simulation.RespawnTicks < 0 {
		errs = append(errs, errors.New("max_steps, stats_every and respawn_ticks must not be negative"))
	}
	switch c.Profile.Mode {
	case "", "cpu", "mem":
	default:
		errs = append(errs, fmt.Errorf("unknown profile mode %q", c.Profile.Mode))
	}
	return errors.Join(errs...)
}

func defaults() *Config {
	return &Config{
		World: WorldConfig{
			Width:  256,
			Height: 256,
		},
		Simulation: SimulationConfig{
			TickRate:     50 * time.Millisecond,
			SpawnFile:    "data/yaml/spawn_list.yaml",
			StatsEvery:   100,
			RespawnTicks: 200,
		},
		Scripting: ScriptingConfig{
			Dir:      "scripts",
			Behavior: "unit_step",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Profile: ProfileConfig{
			Path: ".",
		},
	}
}
