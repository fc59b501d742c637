// Package config provides configuration loading and validation for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
// One Config is loaded at startup and injected into every component;
// nothing reads configuration through a global.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Entity    EntityConfig    `yaml:"entity"`
	Energy    EnergyConfig    `yaml:"energy"`
	Predation PredationConfig `yaml:"predation"`
	Breeding  BreedingConfig  `yaml:"breeding"`
	Hunter    AgentConfig     `yaml:"hunter"`
	Prey      AgentConfig     `yaml:"prey"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// WorldConfig holds simulation world dimensions.
type WorldConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PhysicsConfig holds motion integration parameters.
type PhysicsConfig struct {
	DT            float64 `yaml:"dt"`              // Seconds per tick
	SpawnGrowRate float64 `yaml:"spawn_grow_rate"` // Spawn progress gained per second
	SpawnMargin   float64 `yaml:"spawn_margin"`    // Border margin for random spawns
}

// EntityConfig holds entity limits and defaults.
type EntityConfig struct {
	DefaultRadius float64 `yaml:"default_radius"`
	MaxEntities   int     `yaml:"max_entities"`
}

// EnergyConfig holds energy economics parameters.
type EnergyConfig struct {
	HunterMetabolism     float64 `yaml:"hunter_metabolism"`     // Base drain per second
	PreyMetabolism       float64 `yaml:"prey_metabolism"`       // Base drain per second
	PreyProduction       float64 `yaml:"prey_production"`       // Prey energy produced per second
	ProductionEfficiency float64 `yaml:"production_efficiency"` // Fraction of production retained
	MaxPrey              float64 `yaml:"max_prey"`              // Prey energy cap
	MaxHunter            float64 `yaml:"max_hunter"`            // Hunter energy cap
	SpeedReference       float64 `yaml:"speed_reference"`       // Speed normalization for costs
	MovementCost         float64 `yaml:"movement_cost"`         // Cost multiplier for speed^2
	TurningCost          float64 `yaml:"turning_cost"`          // Cost multiplier for |angvel|/pi
	MinInitial           float64 `yaml:"min_initial"`           // Random spawn energy range
	MaxInitial           float64 `yaml:"max_initial"`
	GrowEventThreshold   float64 `yaml:"grow_event_threshold"` // Net gain above this emits a grow event
}

// PredationConfig holds capture resolution parameters.
type PredationConfig struct {
	Gain              float64 `yaml:"gain"`               // Energy credited per kill
	DigestionDuration float64 `yaml:"digestion_duration"` // Seconds a hunter digests after a kill
	BaseRatio         float64 `yaml:"base_ratio"`         // Predation radius = fov_range * this
	SizeBonus         float64 `yaml:"size_bonus"`         // Radius scaling per unit of oversize
	SpeedBonus        float64 `yaml:"speed_bonus"`        // Radius scaling per unit of speed
	MinRadius         float64 `yaml:"min_radius"`
	MaxRadius         float64 `yaml:"max_radius"`
	SearchRatio       float64 `yaml:"search_ratio"` // Candidate search radius = fov_range * this
}

// BreedingConfig holds reproduction parameters.
type BreedingConfig struct {
	SplitEnergyPrey   float64 `yaml:"split_energy_prey"`   // Prey breeding threshold
	SplitEnergyHunter float64 `yaml:"split_energy_hunter"` // Hunter breeding threshold
	CooldownPrey      float64 `yaml:"cooldown_prey"`       // Seconds between prey breeds
	CooldownHunter    float64 `yaml:"cooldown_hunter"`     // Seconds between hunter breeds
}

// AgentConfig holds per-kind movement and perception ranges.
type AgentConfig struct {
	FOVDeg    float64 `yaml:"fov_deg"`
	FOVRange  float64 `yaml:"fov_range"`
	SpeedMin  float64 `yaml:"speed_min"`
	SpeedMax  float64 `yaml:"speed_max"`
	AngVelMax float64 `yaml:"ang_vel_max"`
}

// SensorsConfig holds ray casting parameters.
type SensorsConfig struct {
	RayCount     int  `yaml:"ray_count"`
	UseEntityFOV bool `yaml:"use_entity_fov"` // Prefer per-entity FOV over kind defaults
}

// RuntimeConfig holds concurrency parameters.
type RuntimeConfig struct {
	Workers           int     `yaml:"workers"`            // 0 = max(2, NumCPU)
	ParallelThreshold int     `yaml:"parallel_threshold"` // Min entities for parallel sensors
	BatchTimeoutMs    float64 `yaml:"batch_timeout_ms"`   // Ray batch deadline (0 = none)
	SerialFastAvgMs   float64 `yaml:"serial_fast_avg_ms"` // Avg batch time below this stays serial
	TimingHistory     int     `yaml:"timing_history"`     // Recorded batch durations
	TimingWindow      int     `yaml:"timing_window"`      // Durations averaged for the decision
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`          // Window length in sim seconds
	PerfCollectorWindow int     `yaml:"perf_collector_window"` // Ticks averaged for perf stats
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into the same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that would leave the world partially
// initialized. Stepping never validates; all checks happen here.
func (c *Config) Validate() error {
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("config: world dimensions must be positive, got %gx%g", c.World.Width, c.World.Height)
	}
	if c.Physics.DT <= 0 {
		return fmt.Errorf("config: dt must be positive, got %g", c.Physics.DT)
	}
	if c.Entity.DefaultRadius <= 0 {
		return fmt.Errorf("config: default_radius must be positive, got %g", c.Entity.DefaultRadius)
	}
	if c.Entity.MaxEntities <= 0 {
		return fmt.Errorf("config: max_entities must be positive, got %d", c.Entity.MaxEntities)
	}
	if c.Energy.MinInitial > c.Energy.MaxInitial {
		return fmt.Errorf("config: initial energy range inverted: min %g > max %g", c.Energy.MinInitial, c.Energy.MaxInitial)
	}
	if c.Energy.MaxPrey <= 0 || c.Energy.MaxHunter <= 0 {
		return fmt.Errorf("config: energy caps must be positive, got prey %g hunter %g", c.Energy.MaxPrey, c.Energy.MaxHunter)
	}
	if c.Predation.MinRadius > c.Predation.MaxRadius {
		return fmt.Errorf("config: predation radius range inverted: min %g > max %g", c.Predation.MinRadius, c.Predation.MaxRadius)
	}
	if c.Sensors.RayCount < 1 {
		return fmt.Errorf("config: ray_count must be at least 1, got %d", c.Sensors.RayCount)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
