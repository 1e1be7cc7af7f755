// Package config loads basemerge run configuration from YAML, .env files and
// BASEMERGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/beetlebugorg/basemerge/internal/conflate"
	"github.com/beetlebugorg/basemerge/internal/geometry"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything needed to merge new features into the base maps
// of a set of workspaces.
type Config struct {
	// WorkspaceRoot is the directory holding one subdirectory per workspace.
	WorkspaceRoot string `yaml:"workspace_root"`
	// Workspaces restricts the run to these subdirectories; empty means all.
	Workspaces []string `yaml:"workspaces,omitempty"`

	BaseLayer   string `yaml:"base_layer"`
	NewLayer    string `yaml:"new_layer"`
	OutputLayer string `yaml:"output_layer"`
	// ClipLayer optionally names a boundary layer the new features are clipped to.
	ClipLayer string `yaml:"clip_layer,omitempty"`

	BaseTag      string   `yaml:"base_tag"`
	NewTag       string   `yaml:"new_tag"`
	BaseKey      string   `yaml:"base_key,omitempty"`
	NewKey       string   `yaml:"new_key,omitempty"`
	BaseTIFields []string `yaml:"base_ti_fields,omitempty"`
	NewTIFields  []string `yaml:"new_ti_fields,omitempty"`
	KeepFields   []string `yaml:"keep_fields,omitempty"`

	Thresholds  conflate.Thresholds `yaml:"thresholds"`
	SliverSize  float64             `yaml:"sliver_size"`
	XYTolerance float64             `yaml:"xy_tolerance"`
	SnapRules   []SnapRule          `yaml:"snap_rules"`

	Stages       Stages `yaml:"stages"`
	StageTimeout string `yaml:"stage_timeout"`
	Workers      int    `yaml:"workers"`
	CacheSizeMB  int    `yaml:"cache_size_mb"`
	StopOnError  bool   `yaml:"stop_on_error"`

	Lookups []Lookup `yaml:"lookups,omitempty"`

	Log LogConfig `yaml:"log"`
}

// SnapRule is one snapping pass as written in YAML.
type SnapRule struct {
	Mode     string  `yaml:"mode"`
	Distance float64 `yaml:"distance"`
}

// Stages switches individual pipeline stages on or off.
type Stages struct {
	SinglePart     bool `yaml:"single_part"`
	ClipNew        bool `yaml:"clip_new"`
	SnapNew        bool `yaml:"snap_new"`
	Tabulate       bool `yaml:"tabulate"`
	JointShapes    bool `yaml:"joint_shapes"`
	JoinAttributes bool `yaml:"join_attributes"`
	LookupJoin     bool `yaml:"lookup_join"`
}

// Lookup describes a CSV table joined onto the merged layer.
type Lookup struct {
	Table      string   `yaml:"table"`
	LayerField string   `yaml:"layer_field"`
	TableKey   string   `yaml:"table_key"`
	Columns    []string `yaml:"columns,omitempty"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		WorkspaceRoot: ".",
		BaseLayer:     "base",
		NewLayer:      "new",
		OutputLayer:   "merged",
		BaseTag:       "Base",
		NewTag:        "New",
		Thresholds:    conflate.DefaultThresholds(),
		SliverSize:    1,
		XYTolerance:   0.001,
		SnapRules: []SnapRule{
			{Mode: "vertex", Distance: 0.5},
			{Mode: "edge", Distance: 1},
			{Mode: "vertex", Distance: 1},
		},
		Stages: Stages{
			SinglePart:     true,
			ClipNew:        true,
			SnapNew:        true,
			Tabulate:       true,
			JointShapes:    true,
			JoinAttributes: true,
			LookupJoin:     true,
		},
		StageTimeout: "2h",
		CacheSizeMB:  256,
		Log:          LogConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
			cfg.resolvePaths(filepath.Dir(path))
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePaths makes relative paths in a config file relative to the file.
func (c *Config) resolvePaths(dir string) {
	if c.WorkspaceRoot != "" && !filepath.IsAbs(c.WorkspaceRoot) {
		c.WorkspaceRoot = filepath.Join(dir, c.WorkspaceRoot)
	}
	for i, l := range c.Lookups {
		if l.Table != "" && !filepath.IsAbs(l.Table) {
			c.Lookups[i].Table = filepath.Join(dir, l.Table)
		}
	}
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// LoadEnv loads .env files into the process environment. Missing files are
// skipped; variables already set are not overwritten.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// ApplyEnv applies BASEMERGE_* environment overrides.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("BASEMERGE_WORKSPACE_ROOT"); v != "" {
		c.WorkspaceRoot = v
	}
	if v := os.Getenv("BASEMERGE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BASEMERGE_LOG_JSON"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BASEMERGE_LOG_JSON: %w", err)
		}
		c.Log.JSON = b
	}
	if v := os.Getenv("BASEMERGE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BASEMERGE_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("BASEMERGE_STAGE_TIMEOUT"); v != "" {
		c.StageTimeout = v
	}
	return nil
}

// Timeout returns the per-stage timeout. Zero means no timeout.
func (c *Config) Timeout() time.Duration {
	if c.StageTimeout == "" || c.StageTimeout == "0" {
		return 0
	}
	d, err := time.ParseDuration(c.StageTimeout)
	if err != nil {
		return 2 * time.Hour
	}
	return d
}

// GeometrySnapRules converts the configured snap rules.
func (c *Config) GeometrySnapRules() ([]geometry.SnapRule, error) {
	rules := make([]geometry.SnapRule, 0, len(c.SnapRules))
	for i, r := range c.SnapRules {
		mode, err := geometry.ParseSnapMode(r.Mode)
		if err != nil {
			return nil, fmt.Errorf("snap_rules[%d]: %w", i, err)
		}
		rules = append(rules, geometry.SnapRule{Mode: mode, Distance: r.Distance})
	}
	return rules, nil
}

// Validate reports every configuration problem found.
func (c *Config) Validate() error {
	var errs []error
	if c.WorkspaceRoot == "" {
		errs = append(errs, errors.New("workspace_root is required"))
	}
	required := []struct{ name, value string }{
		{"base_layer", c.BaseLayer},
		{"new_layer", c.NewLayer},
		{"output_layer", c.OutputLayer},
		{"base_tag", c.BaseTag},
		{"new_tag", c.NewTag},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}
	if c.BaseTag != "" && c.BaseTag == c.NewTag {
		errs = append(errs, fmt.Errorf("base_tag and new_tag must differ, both are %q", c.BaseTag))
	}
	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.SliverSize < 0 {
		errs = append(errs, fmt.Errorf("sliver_size must not be negative, got %v", c.SliverSize))
	}
	if c.XYTolerance < 0 {
		errs = append(errs, fmt.Errorf("xy_tolerance must not be negative, got %v", c.XYTolerance))
	}
	for i, r := range c.SnapRules {
		if _, err := geometry.ParseSnapMode(r.Mode); err != nil {
			errs = append(errs, fmt.Errorf("snap_rules[%d]: %w", i, err))
		}
		if r.Distance < 0 {
			errs = append(errs, fmt.Errorf("snap_rules[%d]: distance must not be negative", i))
		}
	}
	if c.StageTimeout != "" && c.StageTimeout != "0" {
		if _, err := time.ParseDuration(c.StageTimeout); err != nil {
			errs = append(errs, fmt.Errorf("stage_timeout: %w", err))
		}
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	for i, l := range c.Lookups {
		if l.Table == "" || l.LayerField == "" || l.TableKey == "" {
			errs = append(errs, fmt.Errorf("lookups[%d]: table, layer_field and table_key are required", i))
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	return errors.Join(errs...)
}
