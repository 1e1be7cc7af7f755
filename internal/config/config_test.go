package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beetlebugorg/basemerge/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5.0, cfg.Thresholds.IgnoreLow)
	assert.Equal(t, 95.0, cfg.Thresholds.IgnoreHigh)
	assert.Equal(t, 200.0, cfg.Thresholds.SignificantSize)
	assert.Equal(t, 2*time.Hour, cfg.Timeout())

	rules, err := cfg.GeometrySnapRules()
	require.NoError(t, err)
	assert.Equal(t, geometry.DefaultSnapRules(), rules)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "basemerge.yaml")
	yaml := `
workspace_root: districts
base_layer: OSMM
new_layer: CROME
base_tag: OSMM
new_tag: CROME
keep_fields: [Habitat]
thresholds:
  ignore_low: 10
  ignore_high: 90
  significant_size: 500
snap_rules:
  - {mode: edge, distance: 2}
stages:
  single_part: false
  tabulate: true
stage_timeout: 30m
lookups:
  - table: scores.csv
    layer_field: Habitat
    table_key: Habitat
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Join(dir, "districts"), cfg.WorkspaceRoot)
	assert.Equal(t, "OSMM", cfg.BaseLayer)
	assert.Equal(t, "merged", cfg.OutputLayer, "unset fields keep defaults")
	assert.Equal(t, 500.0, cfg.Thresholds.SignificantSize)
	assert.Equal(t, []SnapRule{{Mode: "edge", Distance: 2}}, cfg.SnapRules)
	assert.False(t, cfg.Stages.SinglePart)
	assert.True(t, cfg.Stages.Tabulate)
	assert.Equal(t, 30*time.Minute, cfg.Timeout())
	assert.Equal(t, filepath.Join(dir, "scores.csv"), cfg.Lookups[0].Table)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().BaseLayer, cfg.BaseLayer)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("thresholds: [1, 2"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.NewTag = cfg.BaseTag
	cfg.Thresholds.IgnoreLow = 99
	cfg.SnapRules = append(cfg.SnapRules, SnapRule{Mode: "corner", Distance: 1})
	cfg.StageTimeout = "soon"
	cfg.Log.Level = "chatty"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"must differ", "ignore_low", "snap_rules[3]", "stage_timeout", "log.level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BASEMERGE_WORKSPACE_ROOT", "/data/lads")
	t.Setenv("BASEMERGE_LOG_LEVEL", "debug")
	t.Setenv("BASEMERGE_LOG_JSON", "true")
	t.Setenv("BASEMERGE_WORKERS", "3")
	t.Setenv("BASEMERGE_STAGE_TIMEOUT", "5m")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "/data/lads", cfg.WorkspaceRoot)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Timeout())

	t.Setenv("BASEMERGE_WORKERS", "many")
	assert.Error(t, cfg.ApplyEnv())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BASEMERGE_LOG_LEVEL=warn\n"), 0o644))
	t.Setenv("BASEMERGE_LOG_LEVEL", "")
	os.Unsetenv("BASEMERGE_LOG_LEVEL")

	LoadEnv(path)
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cfg.yaml")
	cfg := Default()
	cfg.KeepFields = []string{"Habitat"}
	require.NoError(t, cfg.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.KeepFields, back.KeepFields)
	assert.Equal(t, cfg.Thresholds, back.Thresholds)
}
