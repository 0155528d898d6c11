package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const envPrefix = "AGAR_"

// Config holds all server settings. Values are layered: defaults, then an
// optional YAML file, then AGAR_* environment variables.
type Config struct {
	Server  ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	World   WorldConfig   `yaml:"world" envPrefix:"WORLD_"`
	Food    FoodConfig    `yaml:"food" envPrefix:"FOOD_"`
	Player  PlayerConfig  `yaml:"player" envPrefix:"PLAYER_"`
	Physics PhysicsConfig `yaml:"physics" envPrefix:"PHYSICS_"`
	Loop    LoopConfig    `yaml:"loop" envPrefix:"LOOP_"`
	Names   NamesConfig   `yaml:"names" envPrefix:"NAMES_"`
}

// ServerConfig holds transport and storage settings
type ServerConfig struct {
	Addr          string `yaml:"addr" env:"ADDR"`
	ClientDir     string `yaml:"client_dir" env:"CLIENT_DIR"`
	DBPath        string `yaml:"db_path" env:"DB_PATH"`               // empty disables the event log
	StateEncoding string `yaml:"state_encoding" env:"STATE_ENCODING"` // "json" or "msgpack"
	MaxConnsPerIP int    `yaml:"max_conns_per_ip" env:"MAX_CONNS_PER_IP"`
	MaxTotalConns int    `yaml:"max_total_conns" env:"MAX_TOTAL_CONNS"`
}

// WorldConfig holds the world bounds
type WorldConfig struct {
	Width  float64 `yaml:"width" env:"WIDTH"`
	Height float64 `yaml:"height" env:"HEIGHT"`
}

// FoodConfig holds food population settings
type FoodConfig struct {
	Target    int     `yaml:"target" env:"TARGET"`
	MaxRadius float64 `yaml:"max_radius" env:"MAX_RADIUS"`
	MaxSpeed  float64 `yaml:"max_speed" env:"MAX_SPEED"` // per axis, world units per ms
}

// PlayerConfig holds spawn and steering settings
type PlayerConfig struct {
	SpawnX            float64 `yaml:"spawn_x" env:"SPAWN_X"`
	SpawnY            float64 `yaml:"spawn_y" env:"SPAWN_Y"`
	StartRadius       float64 `yaml:"start_radius" env:"START_RADIUS"`
	AttractorStrength float64 `yaml:"attractor_strength" env:"ATTRACTOR_STRENGTH"`
	AttractorMin      float64 `yaml:"attractor_min" env:"ATTRACTOR_MIN"`
	AttractorOrder    float64 `yaml:"attractor_order" env:"ATTRACTOR_ORDER"`
}

// PhysicsConfig holds merge and contact response settings
type PhysicsConfig struct {
	MinimumMergeDifference float64 `yaml:"minimum_merge_difference" env:"MINIMUM_MERGE_DIFFERENCE"`
	EdgeRestitution        float64 `yaml:"edge_restitution" env:"EDGE_RESTITUTION"`
	EdgeFriction           float64 `yaml:"edge_friction" env:"EDGE_FRICTION"`
	BodyRestitution        float64 `yaml:"body_restitution" env:"BODY_RESTITUTION"`
	CellSize               float64 `yaml:"cell_size" env:"CELL_SIZE"`
}

// LoopConfig holds the simulation and broadcast cadence
type LoopConfig struct {
	TickInterval      time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`
	MaxStep           time.Duration `yaml:"max_step" env:"MAX_STEP"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval" env:"BROADCAST_INTERVAL"`
}

// NamesConfig points at an optional name/avatar source (file path or http URL)
type NamesConfig struct {
	Source  string        `yaml:"source" env:"SOURCE"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// DefaultConfig returns the built-in settings
func DefaultConfig() Config {
	const width, height = 1000.0, 500.0
	return Config{
		Server: ServerConfig{
			Addr:          ":4000",
			StateEncoding: EncodingJSON,
			MaxConnsPerIP: 5,
			MaxTotalConns: 1000,
		},
		World: WorldConfig{Width: width, Height: height},
		Food: FoodConfig{
			Target:    int(width * height / 5000),
			MaxRadius: 5,
			MaxSpeed:  0.5,
		},
		Player: PlayerConfig{
			SpawnX:            60,
			SpawnY:            60,
			StartRadius:       10,
			AttractorStrength: 0.001,
			AttractorMin:      70,
			AttractorOrder:    0,
		},
		Physics: PhysicsConfig{
			MinimumMergeDifference: 0.25,
			EdgeRestitution:        0.3,
			EdgeFriction:           0.75,
			BodyRestitution:        0.8,
			CellSize:               64,
		},
		Loop: LoopConfig{
			TickInterval:      2 * time.Millisecond,
			MaxStep:           50 * time.Millisecond,
			BroadcastInterval: 33 * time.Millisecond,
		},
		Names: NamesConfig{Timeout: 5 * time.Second},
	}
}

// LoadConfig builds a Config from defaults, the YAML file at path (if any)
// and the environment. The result is validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var (
	ErrWorldBounds    = errors.New("world width and height must be positive")
	ErrFoodTarget     = errors.New("food target must be positive")
	ErrFoodRadius     = errors.New("food max radius must be positive")
	ErrFoodSpeed      = errors.New("food max speed must not be negative")
	ErrStartRadius    = errors.New("player start radius must be positive")
	ErrMergeThreshold = errors.New("minimum merge difference must be in [0, 1)")
	ErrTickInterval   = errors.New("tick interval must be positive")
	ErrMaxStep        = errors.New("max step must not be shorter than the tick interval")
	ErrBroadcast      = errors.New("broadcast interval must be positive")
	ErrEncoding       = errors.New("state encoding must be json or msgpack")
	ErrConnLimits     = errors.New("connection limits must be positive")
)

// Validate reports every configuration fault at once
func (c Config) Validate() error {
	var errs []error
	if c.World.Width <= 0 || c.World.Height <= 0 {
		errs = append(errs, ErrWorldBounds)
	}
	if c.Food.Target <= 0 {
		errs = append(errs, ErrFoodTarget)
	}
	if c.Food.MaxRadius <= 0 {
		errs = append(errs, ErrFoodRadius)
	}
	if c.Food.MaxSpeed < 0 {
		errs = append(errs, ErrFoodSpeed)
	}
	if c.Player.StartRadius <= 0 {
		errs = append(errs, ErrStartRadius)
	}
	if d := c.Physics.MinimumMergeDifference; d < 0 || d >= 1 {
		errs = append(errs, ErrMergeThreshold)
	}
	if c.Loop.TickInterval <= 0 {
		errs = append(errs, ErrTickInterval)
	} else if c.Loop.MaxStep < c.Loop.TickInterval {
		errs = append(errs, ErrMaxStep)
	}
	if c.Loop.BroadcastInterval <= 0 {
		errs = append(errs, ErrBroadcast)
	}
	if c.Server.StateEncoding != EncodingJSON && c.Server.StateEncoding != EncodingMsgpack {
		errs = append(errs, ErrEncoding)
	}
	if c.Server.MaxConnsPerIP <= 0 || c.Server.MaxTotalConns <= 0 {
		errs = append(errs, ErrConnLimits)
	}
	return errors.Join(errs...)
}
