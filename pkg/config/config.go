// Package config loads the intake service's runtime configuration from a
// YAML file: unmarshal into a typed struct, then merge it over Default()
// so anything left unset in the file falls back to a sane default.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxInputBytes   = 50 * 1024 * 1024
	DefaultQueueDepth      = 64
	DefaultWorkers         = 4
	DefaultIDSThreshold    = 5
	DefaultIDSScoreCap     = 100
	DefaultAMLThreshold    = 0.1
	DefaultRetentionSecs   = 604800
	DefaultFormatDeadline  = 2 * time.Second
	DefaultIDSDeadline     = 5 * time.Second
	DefaultAMLDeadline     = 10 * time.Second
	DefaultPersistDeadline = 30 * time.Second
	DefaultAnalyzeDeadline = 30 * time.Second
)

// StageDeadlinesMs is the YAML-facing form of stage timeouts, expressed in
// whole milliseconds. Zero values fall back to the package defaults.
type StageDeadlinesMs struct {
	Format  int64 `yaml:"format_ms"`
	IDS     int64 `yaml:"ids_ms"`
	AML     int64 `yaml:"aml_ms"`
	Persist int64 `yaml:"persist_ms"`
	Analyze int64 `yaml:"analyze_ms"`
}

// StageDeadlines holds the per-stage timeout budget as durations, the
// form consumed by the pipeline executor.
type StageDeadlines struct {
	Format  time.Duration
	IDS     time.Duration
	AML     time.Duration
	Persist time.Duration
	Analyze time.Duration
}

// GAParameters is an optional overlay applied on top of the base config:
// a parameter tuple published by the external genetic-algorithm tuner.
// When Enabled, each non-nil threshold replaces the base value.
type GAParameters struct {
	Enabled      bool    `yaml:"enabled"`
	IDSThreshold *int    `yaml:"ids_threshold,omitempty"`
	AMLThreshold *float64 `yaml:"aml_threshold,omitempty"`
}

// Config is the intake service's full runtime configuration.
type Config struct {
	MaxInputBytes    int64          `yaml:"max_input_bytes"`
	QueueDepth       int            `yaml:"queue_depth"`
	Workers          int            `yaml:"workers"`
	IDSThreshold     int            `yaml:"ids_threshold"`
	IDSScoreCap      int            `yaml:"ids_score_cap"`
	AMLThreshold     float64        `yaml:"aml_threshold"`
	AMLFeatureDim    int            `yaml:"aml_feature_dim"`
	RetentionSeconds int64            `yaml:"retention_seconds"`
	StageDeadlinesMs StageDeadlinesMs `yaml:"stage_deadlines_ms"`
	StageDeadlines   StageDeadlines   `yaml:"-"`

	DataDir      string `yaml:"data_dir"`
	ModelPath    string `yaml:"model_path"`
	ServerSecret string `yaml:"server_secret"`

	GAParameters *GAParameters `yaml:"ga_parameters,omitempty"`
}

// Default returns a Config populated with every spec-mandated default.
func Default() Config {
	return Config{
		MaxInputBytes:    DefaultMaxInputBytes,
		QueueDepth:       DefaultQueueDepth,
		Workers:          DefaultWorkers,
		IDSThreshold:     DefaultIDSThreshold,
		IDSScoreCap:      DefaultIDSScoreCap,
		AMLThreshold:     DefaultAMLThreshold,
		AMLFeatureDim:    784,
		RetentionSeconds: DefaultRetentionSecs,
		StageDeadlines: StageDeadlines{
			Format:  DefaultFormatDeadline,
			IDS:     DefaultIDSDeadline,
			AML:     DefaultAMLDeadline,
			Persist: DefaultPersistDeadline,
			Analyze: DefaultAnalyzeDeadline,
		},
		DataDir: "./data",
	}
}

// Load reads a YAML file at path, merges it over Default(), and applies
// the ga_parameters overlay if present and enabled.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyOverrides(&cfg, parsed)
	applyGAOverlay(&cfg)

	if cfg.Workers <= 0 {
		return Config{}, fmt.Errorf("config: workers must be positive, got %d", cfg.Workers)
	}
	if cfg.QueueDepth <= 0 {
		return Config{}, fmt.Errorf("config: queue_depth must be positive, got %d", cfg.QueueDepth)
	}

	return cfg, nil
}

func applyOverrides(base *Config, override Config) {
	if override.MaxInputBytes > 0 {
		base.MaxInputBytes = override.MaxInputBytes
	}
	if override.QueueDepth > 0 {
		base.QueueDepth = override.QueueDepth
	}
	if override.Workers > 0 {
		base.Workers = override.Workers
	}
	if override.IDSThreshold > 0 {
		base.IDSThreshold = override.IDSThreshold
	}
	if override.IDSScoreCap > 0 {
		base.IDSScoreCap = override.IDSScoreCap
	}
	if override.AMLThreshold > 0 {
		base.AMLThreshold = override.AMLThreshold
	}
	if override.AMLFeatureDim > 0 {
		base.AMLFeatureDim = override.AMLFeatureDim
	}
	if override.RetentionSeconds > 0 {
		base.RetentionSeconds = override.RetentionSeconds
	}
	if override.StageDeadlinesMs.Format > 0 {
		base.StageDeadlines.Format = time.Duration(override.StageDeadlinesMs.Format) * time.Millisecond
	}
	if override.StageDeadlinesMs.IDS > 0 {
		base.StageDeadlines.IDS = time.Duration(override.StageDeadlinesMs.IDS) * time.Millisecond
	}
	if override.StageDeadlinesMs.AML > 0 {
		base.StageDeadlines.AML = time.Duration(override.StageDeadlinesMs.AML) * time.Millisecond
	}
	if override.StageDeadlinesMs.Persist > 0 {
		base.StageDeadlines.Persist = time.Duration(override.StageDeadlinesMs.Persist) * time.Millisecond
	}
	if override.StageDeadlinesMs.Analyze > 0 {
		base.StageDeadlines.Analyze = time.Duration(override.StageDeadlinesMs.Analyze) * time.Millisecond
	}
	if override.DataDir != "" {
		base.DataDir = override.DataDir
	}
	if override.ModelPath != "" {
		base.ModelPath = override.ModelPath
	}
	if override.ServerSecret != "" {
		base.ServerSecret = override.ServerSecret
	}
	if override.GAParameters != nil {
		base.GAParameters = override.GAParameters
	}
}

func applyGAOverlay(cfg *Config) {
	if cfg.GAParameters == nil || !cfg.GAParameters.Enabled {
		return
	}
	if cfg.GAParameters.IDSThreshold != nil {
		cfg.IDSThreshold = *cfg.GAParameters.IDSThreshold
	}
	if cfg.GAParameters.AMLThreshold != nil {
		cfg.AMLThreshold = *cfg.GAParameters.AMLThreshold
	}
}
