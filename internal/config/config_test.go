package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.75, cfg.Matcher.Threshold)
	assert.Equal(t, 0.8, cfg.Rules.FourFifths)
	assert.Equal(t, 0.2, cfg.Rules.ParityThreshold)
	assert.Equal(t, 0.1, cfg.Rules.EqualOppThreshold)
	assert.Equal(t, 30, cfg.Rules.MinGroupSize)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fairaudit.yaml")
	content := `
matcher:
  threshold: 0.9
rules:
  four_fifths: 0.85
datasets_dir: /data/corpus
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Matcher.Threshold)
	assert.Equal(t, 0.85, cfg.Rules.FourFifths)
	assert.Equal(t, "/data/corpus", cfg.DatasetsDir)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.2, cfg.Rules.ParityThreshold)
	assert.Equal(t, 20, cfg.Matcher.ValueSampleSize)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Matcher, cfg.Matcher)
}

func TestLoadHonorsPortEnv(t *testing.T) {
	t.Setenv("PORT", "9999")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Matcher.Threshold = 0 },
		func(c *Config) { c.Matcher.Threshold = 1.5 },
		func(c *Config) { c.Matcher.ValueSampleSize = -1 },
		func(c *Config) { c.Rules.FourFifths = 0 },
		func(c *Config) { c.Rules.FourFifths = 1.2 },
		func(c *Config) { c.Rules.ParityThreshold = -0.1 },
		func(c *Config) { c.Rules.EqualOppThreshold = 2 },
		func(c *Config) { c.Rules.MinGroupSize = -5 },
	}

	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), "case %d", i)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fairaudit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("matcher:\n  threshold: 7\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
