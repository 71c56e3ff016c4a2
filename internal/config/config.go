package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Report   ReportConfig   `yaml:"report"`
	Store    StoreConfig    `yaml:"store"`
	Synth    SynthConfig    `yaml:"synth"`
}

type AnalysisConfig struct {
	// TimeDelta is the largest gap at which two samples count as simultaneous.
	TimeDelta    time.Duration `yaml:"time_delta"`
	SetupWorkers int           `yaml:"setup_workers"`
	MessageType  string        `yaml:"message_type"`
	LogGlobs     []string      `yaml:"log_globs"`
	Verbose      bool          `yaml:"verbose"`
}

type ReportConfig struct {
	Format   string `yaml:"format"`
	PlotPath string `yaml:"plot_path"`
	HTMLPath string `yaml:"html_path"`
}

type StoreConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type SynthConfig struct {
	SampleInterval time.Duration `yaml:"sample_interval"`
	Duration       time.Duration `yaml:"duration"`
	ClockJitter    time.Duration `yaml:"clock_jitter"`
	Seed           int64         `yaml:"seed"`
	LogFormat      string        `yaml:"log_format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	if err := applyDefaults(&cfg); err != nil {
		// The zero config always validates.
		panic(err)
	}
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := applyDefaults(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) error {
	if cfg.Analysis.TimeDelta < 0 {
		return fmt.Errorf("analysis.time_delta must be > 0")
	}
	if cfg.Analysis.TimeDelta == 0 {
		cfg.Analysis.TimeDelta = 50 * time.Millisecond
	}
	if cfg.Analysis.TimeDelta < time.Microsecond {
		return fmt.Errorf("analysis.time_delta must be at least 1us")
	}
	if cfg.Analysis.SetupWorkers < 0 {
		return fmt.Errorf("analysis.setup_workers must be >= 0")
	}
	if cfg.Analysis.SetupWorkers == 0 {
		// Log reads contend on one disk.
		cfg.Analysis.SetupWorkers = 1
	}
	if cfg.Analysis.MessageType == "" {
		cfg.Analysis.MessageType = "SIM"
	}
	if len(cfg.Analysis.LogGlobs) == 0 {
		cfg.Analysis.LogGlobs = []string{"logs/*.BIN", "logs/*.bin", "logs/*.log"}
	}

	switch cfg.Report.Format {
	case "":
		cfg.Report.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("report.format must be 'text' or 'json'")
	}

	if cfg.Store.Enable && cfg.Store.Path == "" {
		return fmt.Errorf("store.path is required when store.enable is true")
	}

	// Synthetic experiment defaults (safe even if synth is never used).
	if cfg.Synth.SampleInterval < 0 || cfg.Synth.Duration < 0 || cfg.Synth.ClockJitter < 0 {
		return fmt.Errorf("synth durations must be >= 0")
	}
	if cfg.Synth.SampleInterval == 0 {
		cfg.Synth.SampleInterval = 100 * time.Millisecond
	}
	if cfg.Synth.Duration == 0 {
		cfg.Synth.Duration = 60 * time.Second
	}
	if cfg.Synth.ClockJitter >= cfg.Synth.SampleInterval {
		return fmt.Errorf("synth.clock_jitter must be less than synth.sample_interval")
	}
	if cfg.Synth.Seed == 0 {
		cfg.Synth.Seed = 1
	}
	switch cfg.Synth.LogFormat {
	case "":
		cfg.Synth.LogFormat = "bin"
	case "bin", "log":
	default:
		return fmt.Errorf("synth.log_format must be 'bin' or 'log'")
	}

	return nil
}
