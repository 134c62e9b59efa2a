package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file looked up next to the binary.
const DefaultConfigFile = "fairaudit.yaml"

// MatcherConfig controls the attribute matcher.
type MatcherConfig struct {
	// Threshold is the minimum similarity score for flagging a column.
	Threshold float64 `yaml:"threshold"`
	// ValueSampleSize bounds how many values per column are inspected
	// for vocabulary escalation. 0 disables value-based detection.
	ValueSampleSize int `yaml:"value_sample_size"`
}

// RulesConfig controls the compliance rule engine.
type RulesConfig struct {
	// MinGroupSize is the population floor below which a group is
	// exempt from the 4/5 rule.
	MinGroupSize int `yaml:"min_group_size"`
	// FourFifths is the disparate-impact ratio floor (the 80% rule).
	FourFifths float64 `yaml:"four_fifths"`
	// ParityThreshold is the maximum absolute statistical parity
	// difference.
	ParityThreshold float64 `yaml:"parity_threshold"`
	// EqualOppThreshold is the maximum absolute equal-opportunity
	// difference.
	EqualOppThreshold float64 `yaml:"equal_opp_threshold"`
}

// Config is the full run configuration. A run's comparability depends on
// these values, so validation failures are fatal at startup.
type Config struct {
	Matcher MatcherConfig `yaml:"matcher"`
	Rules   RulesConfig   `yaml:"rules"`
	// DatasetsDir is where the CSV corpus lives.
	DatasetsDir string `yaml:"datasets_dir"`
	// Port for the local analysis API. The PORT env var wins.
	Port string `yaml:"port"`
}

// DefaultConfig returns the configuration used when no file is present.
// Thresholds match the published EEOC/ECOA guidance values.
func DefaultConfig() *Config {
	return &Config{
		Matcher: MatcherConfig{
			Threshold:       0.75,
			ValueSampleSize: 20,
		},
		Rules: RulesConfig{
			MinGroupSize:      30,
			FourFifths:        0.8,
			ParityThreshold:   0.2,
			EqualOppThreshold: 0.1,
		},
		DatasetsDir: "./datasets",
		Port:        "8001",
	}
}

// LoadFromFile reads a YAML config file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Load returns the file config when path exists, defaults otherwise, and
// validates either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every threshold range. An out-of-range value invalidates
// the whole run, so callers must treat an error here as fatal.
func (c *Config) Validate() error {
	if c.Matcher.Threshold <= 0 || c.Matcher.Threshold > 1 {
		return fmt.Errorf("matcher.threshold must be in (0,1], got %v", c.Matcher.Threshold)
	}
	if c.Matcher.ValueSampleSize < 0 {
		return fmt.Errorf("matcher.value_sample_size must be >= 0, got %d", c.Matcher.ValueSampleSize)
	}
	if c.Rules.FourFifths <= 0 || c.Rules.FourFifths > 1 {
		return fmt.Errorf("rules.four_fifths must be in (0,1], got %v", c.Rules.FourFifths)
	}
	if c.Rules.ParityThreshold < 0 || c.Rules.ParityThreshold > 1 {
		return fmt.Errorf("rules.parity_threshold must be in [0,1], got %v", c.Rules.ParityThreshold)
	}
	if c.Rules.EqualOppThreshold < 0 || c.Rules.EqualOppThreshold > 1 {
		return fmt.Errorf("rules.equal_opp_threshold must be in [0,1], got %v", c.Rules.EqualOppThreshold)
	}
	if c.Rules.MinGroupSize < 0 {
		return fmt.Errorf("rules.min_group_size must be >= 0, got %d", c.Rules.MinGroupSize)
	}
	return nil
}
