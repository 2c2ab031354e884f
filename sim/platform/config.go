package platform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/siafu-sim/siafu/sim/trace"
)

// EnvPrefix prefixes every environment override, e.g.
// SIAFU_SIMULATION_AGENTS or SIAFU_COMMAND_LISTENER_PORT.
const EnvPrefix = "SIAFU_"

// Output types.
const (
	OutputNull = "null"
	OutputCSV  = "csv"
)

// Config is the full runtime configuration. Every section must be listed
// here to satisfy strict YAML and TOML decoding.
type Config struct {
	Simulation      SimulationConfig      `yaml:"simulation" toml:"simulation" envPrefix:"SIMULATION_"`
	CommandListener CommandListenerConfig `yaml:"command_listener" toml:"command_listener" envPrefix:"COMMAND_LISTENER_"`
	UI              UIConfig              `yaml:"ui" toml:"ui" envPrefix:"UI_"`
	GradientCache   GradientCacheConfig   `yaml:"gradient_cache" toml:"gradient_cache" envPrefix:"GRADIENT_CACHE_"`
	Output          OutputConfig          `yaml:"output" toml:"output" envPrefix:"OUTPUT_"`
	Trace           TraceConfig           `yaml:"trace" toml:"trace" envPrefix:"TRACE_"`
}

type SimulationConfig struct {
	Scenario      string        `yaml:"scenario" toml:"scenario" env:"SCENARIO"`
	Agents        int           `yaml:"agents" toml:"agents" env:"AGENTS"`
	IterationStep time.Duration `yaml:"iteration_step" toml:"iteration_step" env:"ITERATION_STEP"`
	Start         time.Time     `yaml:"start" toml:"start" env:"START"`
	Seed          int64         `yaml:"seed" toml:"seed" env:"SEED"`
	MaxIterations int64         `yaml:"max_iterations" toml:"max_iterations" env:"MAX_ITERATIONS"` // 0 = unbounded
	// Pacing is the minimum wall time per iteration.
	Pacing time.Duration `yaml:"pacing" toml:"pacing" env:"PACING"`
	// Names is an optional file with one agent name per line.
	Names string `yaml:"names" toml:"names" env:"NAMES"`
}

type CommandListenerConfig struct {
	Enable bool `yaml:"enable" toml:"enable" env:"ENABLE"`
	Port   int  `yaml:"port" toml:"port" env:"PORT"`
}

type UIConfig struct {
	Enable bool `yaml:"enable" toml:"enable" env:"ENABLE"`
	FPS    int  `yaml:"fps" toml:"fps" env:"FPS"`
}

type GradientCacheConfig struct {
	Path    string `yaml:"path" toml:"path" env:"PATH"`
	Size    int    `yaml:"size" toml:"size" env:"SIZE"`
	Prefill bool   `yaml:"prefill" toml:"prefill" env:"PREFILL"`
}

type OutputConfig struct {
	Type string    `yaml:"type" toml:"type" env:"TYPE"`
	CSV  CSVConfig `yaml:"csv" toml:"csv" envPrefix:"CSV_"`
}

type CSVConfig struct {
	Path        string        `yaml:"path" toml:"path" env:"PATH"`
	Interval    time.Duration `yaml:"interval" toml:"interval" env:"INTERVAL"`
	KeepHistory bool          `yaml:"keep_history" toml:"keep_history" env:"KEEP_HISTORY"`
}

type TraceConfig struct {
	Level string `yaml:"level" toml:"level" env:"LEVEL"`
	Limit int    `yaml:"limit" toml:"limit" env:"LIMIT"`
}

// DefaultGradientPath is where gradients are cached unless configured
// otherwise.
func DefaultGradientPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".siafu", "CalculatedGradients")
}

func DefaultConfig() Config {
	return Config{
		Simulation: SimulationConfig{
			Scenario:      "testland",
			Agents:        20,
			IterationStep: time.Minute,
			Start:         time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
			Seed:          42,
		},
		CommandListener: CommandListenerConfig{Enable: true, Port: 4444},
		UI:              UIConfig{Enable: true, FPS: 10},
		GradientCache:   GradientCacheConfig{Path: DefaultGradientPath(), Size: 100},
		Output: OutputConfig{
			Type: OutputNull,
			CSV:  CSVConfig{Interval: 5 * time.Minute, KeepHistory: true},
		},
		Trace: TraceConfig{Level: string(trace.TraceLevelCommands), Limit: 10000},
	}
}

// LoadConfig starts from DefaultConfig, overlays the file at path (if any),
// then SIAFU_* environment variables, and validates the result. The file
// format follows the extension: .yaml/.yml or .toml. Unknown keys are
// errors in both.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
		if und := md.Undecoded(); len(und) > 0 {
			keys := make([]string, len(und))
			for i, k := range und {
				keys[i] = k.String()
			}
			return fmt.Errorf("config: parse %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	default:
		return fmt.Errorf("config: unsupported file type %q (want .yaml, .yml or .toml)", ext)
	}
	return nil
}

// Validate checks ranges and cross-field requirements.
func (c Config) Validate() error {
	var errs []error
	s := c.Simulation
	if s.Scenario == "" {
		errs = append(errs, errors.New("simulation.scenario must be set"))
	}
	if s.Agents < 0 {
		errs = append(errs, fmt.Errorf("simulation.agents must be >= 0, got %d", s.Agents))
	}
	if s.IterationStep <= 0 {
		errs = append(errs, fmt.Errorf("simulation.iteration_step must be positive, got %s", s.IterationStep))
	}
	if s.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("simulation.max_iterations must be >= 0, got %d", s.MaxIterations))
	}
	if s.Pacing < 0 {
		errs = append(errs, fmt.Errorf("simulation.pacing must be >= 0, got %s", s.Pacing))
	}
	if p := c.CommandListener.Port; p < 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("command_listener.port out of range: %d", p))
	}
	if c.UI.FPS < 0 {
		errs = append(errs, fmt.Errorf("ui.fps must be >= 0, got %d", c.UI.FPS))
	}
	if c.GradientCache.Path == "" {
		errs = append(errs, errors.New("gradient_cache.path must be set"))
	}
	if c.GradientCache.Size < 1 {
		errs = append(errs, fmt.Errorf("gradient_cache.size must be >= 1, got %d", c.GradientCache.Size))
	}
	switch c.Output.Type {
	case OutputNull:
	case OutputCSV:
		if c.Output.CSV.Path == "" {
			errs = append(errs, errors.New("output.csv.path must be set for csv output"))
		}
		if c.Output.CSV.Interval < 0 {
			errs = append(errs, fmt.Errorf("output.csv.interval must be >= 0, got %s", c.Output.CSV.Interval))
		}
	default:
		errs = append(errs, fmt.Errorf("output.type must be %q or %q, got %q", OutputNull, OutputCSV, c.Output.Type))
	}
	if !trace.IsValidTraceLevel(c.Trace.Level) {
		errs = append(errs, fmt.Errorf("trace.level must be none or commands, got %q", c.Trace.Level))
	}
	if c.Trace.Limit < 0 {
		errs = append(errs, fmt.Errorf("trace.limit must be >= 0, got %d", c.Trace.Limit))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
