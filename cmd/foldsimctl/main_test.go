package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foldsim/internal/sim"
	"foldsim/internal/stats"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(viper.New())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "foldsimctl "+Version)
	assert.Contains(t, out, "Go Version:")
}

func TestBatchRunsShowAndExport(t *testing.T) {
	dir := t.TempDir()
	artifacts := filepath.Join(dir, "runs")

	out, err := execute(t, "batch",
		"--artifacts-dir", artifacts,
		"--run-id", "hairpin-run",
		"--sequence", "GGGGAAAACCCC",
		"--trials", "3",
		"--workers", "2",
		"--seed", "21",
		"--max-steps", "1000000",
		"--stop", "hairpin=((((....))))",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "run_id=hairpin-run seed=21 trials=3 completed=3")
	assert.Contains(t, out, "tags: hairpin=3")
	assert.Contains(t, out, "k_eff=")

	entries, err := stats.ListRunIndex(artifacts)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hairpin-run", entries[0].RunID)

	out, err = execute(t, "runs", "--artifacts-dir", artifacts)
	require.NoError(t, err)
	assert.Contains(t, out, "run_id=hairpin-run")
	assert.Contains(t, out, "completed=3")

	out, err = execute(t, "show", "--artifacts-dir", artifacts, "--latest")
	require.NoError(t, err)
	assert.Contains(t, out, "run_id=hairpin-run")
	assert.Equal(t, 3, strings.Count(out, "reason=normal tag=hairpin"))

	exports := filepath.Join(dir, "exports")
	out, err = execute(t, "export", "--artifacts-dir", artifacts, "--latest", "--out", exports)
	require.NoError(t, err)
	assert.Contains(t, out, "exported run_id=hairpin-run")
	_, err = os.Stat(filepath.Join(exports, "hairpin-run", "trials.csv"))
	assert.NoError(t, err)
}

func TestRunCommandUsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	artifacts := filepath.Join(dir, "from-file")
	textfile := filepath.Join(dir, "foldsim.prom")
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`sequence: GGGGAAAACCCC
simulation:
  trials: 2
  workers: 2
  seed: 5
  max_steps: 1000000
  stop_conditions:
    - tag: hairpin
      structure: "((((....))))"
artifacts_dir: `+artifacts+`
metrics:
  textfile: `+textfile+`
`), 0o644))

	out, err := execute(t, "run", "--config", path, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"completed": 2`)

	entries, err := stats.ListRunIndex(artifacts)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	metrics, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `foldsim_sim_trajectories_total{reason="normal"} 2`)
	assert.Contains(t, string(metrics), "foldsim_sim_batches_total 1")
}

func TestEnvironmentOverridesFlagDefaults(t *testing.T) {
	artifacts := filepath.Join(t.TempDir(), "env-runs")
	t.Setenv("FOLDSIM_ARTIFACTS_DIR", artifacts)

	_, err := execute(t, "batch", "--sequence", "GAAC", "--seed", "1", "--run-id", "env-run")
	require.NoError(t, err)

	entries, err := stats.ListRunIndex(artifacts)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "env-run", entries[0].RunID)
}

func TestEnergyCommand(t *testing.T) {
	out, err := execute(t, "energy", "--sequence", "GGGGAAAACCCC", "--structure", "((((....))))", "--loops")
	require.NoError(t, err)
	assert.Contains(t, out, "type=loop dG=-")
	assert.Contains(t, out, "hairpin")
	assert.Contains(t, out, "stack")

	assert.NotContains(t, out, "join_rate=")

	out, err = execute(t, "energy", "--sequence", "GGGG+CCCC", "--structure", "((((+))))", "--type", "complex")
	require.NoError(t, err)
	assert.Contains(t, out, "type=complex")
	assert.Contains(t, out, "join_rate=1.38")

	_, err = execute(t, "energy", "--structure", "....")
	assert.Error(t, err)
}

func TestMovesCommand(t *testing.T) {
	out, err := execute(t, "moves", "--sequence", "GGGGAAAACCCC")
	require.NoError(t, err)
	assert.Contains(t, out, "moves=16")
	assert.Equal(t, 16, strings.Count(out, "create_1"))

	out, err = execute(t, "moves", "--sequence", "GGGGAAAACCCC", "--top", "3")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "create_1"))
}

func TestCommandErrors(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)

	_, err = execute(t, "batch", "--artifacts-dir", t.TempDir())
	assert.Error(t, err)

	_, err = execute(t, "runs", "--limit", "0")
	assert.Error(t, err)

	_, err = execute(t, "export", "--artifacts-dir", t.TempDir())
	assert.Error(t, err)

	_, err = execute(t, "batch", "--sequence", "GGGGAAAACCCC", "--stop", "missing-structure")
	assert.Error(t, err)
}

func TestParseStops(t *testing.T) {
	conds, err := parseStops([]string{
		"hairpin=((((....))))",
		"near:count:2=((((....))))",
		"core:loose=*(((....)))*",
	}, "exact", 1)
	require.NoError(t, err)
	require.Len(t, conds, 3)

	assert.Equal(t, sim.MatchExact, conds[0].Kind)
	assert.Equal(t, 1, conds[0].Tolerance)
	assert.Equal(t, sim.MatchCount, conds[1].Kind)
	assert.Equal(t, 2, conds[1].Tolerance)
	assert.Equal(t, sim.MatchLoose, conds[2].Kind)
	assert.Equal(t, "*(((....)))*", conds[2].Structure)

	for _, bad := range []string{"=((..))", "tag=", "a:b:c:d=..", "t:count:x=...."} {
		_, err := parseStops([]string{bad}, "exact", 0)
		assert.Error(t, err, bad)
	}
}
