package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/beetlebugorg/basemerge/pkg/basemerge"
	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}}
}

// setupRoot writes a config file and one workspace and returns the config
// path and the workspace directory.
func setupRoot(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	ws := filepath.Join(root, "data", "tile1")
	require.NoError(t, os.MkdirAll(ws, 0o755))

	base := basemerge.NewLayer("base",
		basemerge.NewFeature(1, box(0, 0, 40, 25), map[string]interface{}{"habitat": "Grassland"}),
		basemerge.NewFeature(2, box(100, 0, 140, 25), map[string]interface{}{"habitat": "Woodland"}),
	)
	crops := basemerge.NewLayer("new",
		basemerge.NewFeature(10, box(0, -5, 24, 30), map[string]interface{}{"crop": "Wheat"}),
		basemerge.NewFeature(12, box(100, 0, 140, 25), map[string]interface{}{"crop": "Apple"}),
	)
	require.NoError(t, basemerge.WriteLayer(filepath.Join(ws, "base.geojson"), base))
	require.NoError(t, basemerge.WriteLayer(filepath.Join(ws, "new.geojson"), crops))

	cfg := "workspace_root: data\nbase_tag: OSMM\nnew_tag: CROME\nlog:\n  level: error\n"
	path := filepath.Join(root, "basemerge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path, ws
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--env", filepath.Join(t.TempDir(), "none.env")))
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCmd(t *testing.T) {
	cfg, ws := setupRoot(t)

	out, err := execute(t, "run", "--config", cfg, "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "Merged 1 of 1 workspaces")
	assert.Contains(t, out, "tile1: 3 rows in merged")
	assert.FileExists(t, filepath.Join(ws, "merged.geojson"))

	merged, err := basemerge.ReadLayer(filepath.Join(ws, "merged.geojson"))
	require.NoError(t, err)
	assert.Equal(t, 3, merged.Count())
	assert.Contains(t, merged.Fields(), "OSMM_Relationship")
	assert.Contains(t, merged.Fields(), "CROME_OBJID")
}

func TestStatusAndResetCmd(t *testing.T) {
	cfg, _ := setupRoot(t)

	out, err := execute(t, "status", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "tile1: 0 stages complete")

	_, err = execute(t, "run", "--config", cfg, "-q")
	require.NoError(t, err)

	out, err = execute(t, "status", "--config", cfg, "tile1")
	require.NoError(t, err)
	assert.Contains(t, out, "tile1: 5 stages complete")
	assert.Contains(t, out, "OSMM_CROME_TI")

	out, err = execute(t, "reset", "--config", cfg, "--stage", "join_attributes")
	require.NoError(t, err)
	assert.Contains(t, out, "tile1: reset")

	out, err = execute(t, "status", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "tile1: 4 stages complete")

	// stages after tabulate go with it
	_, err = execute(t, "reset", "--config", cfg, "--stage", "joint_shapes", "--stage", "tabulate")
	require.NoError(t, err)

	out, err = execute(t, "status", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "tile1: 2 stages complete")

	_, err = execute(t, "reset", "--config", cfg, "--stage", "explode")
	assert.Error(t, err)
}

func TestClassifyCmd(t *testing.T) {
	cfg, ws := setupRoot(t)
	output := filepath.Join(t.TempDir(), "merged.geojson")

	out, err := execute(t, "classify", "--config", cfg, "-o", output,
		filepath.Join(ws, "base.geojson"), filepath.Join(ws, "new.geojson"))
	require.NoError(t, err)
	assert.Contains(t, out, "2 overlaps: 0 Base, 1 Split, 1 New")
	assert.Contains(t, out, "Wrote 3 rows")
	assert.FileExists(t, output)
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_tag: X\nnew_tag: X\n"), 0o644))

	_, err := execute(t, "status", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}
