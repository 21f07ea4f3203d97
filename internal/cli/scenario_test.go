package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

func runScenarioCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewScenarioCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestScenario_ShippedScenariosPass(t *testing.T) {
	out, err := runScenarioCmd(t, "text", harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASS reference_topology")
	assert.Contains(t, out, "PASS wave_cursor")
	assert.Contains(t, out, "0 failed")
}

func TestScenario_SingleFileWithTrace(t *testing.T) {
	out, err := runScenarioCmd(t, "text", filepath.Join(harnessScenarios, "reference_topology.yaml"), "--trace")
	require.NoError(t, err, out)
	assert.Contains(t, out, "wave 1: 1 5 2 4 3")
}

func TestScenario_Filter(t *testing.T) {
	out, err := runScenarioCmd(t, "json", harnessScenarios, "--filter", "wave_*")
	require.NoError(t, err, out)

	var resp struct {
		Data ScenarioRunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "wave_cursor", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestScenario_FailingExpectation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`
name: wrong
description: "expects the wrong order"
nodes:
  - name: a
  - name: b
    parents: [a]
steps:
  - expect: [[b, a]]
`), 0o644))

	out, err := runScenarioCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, out, "FAIL wrong")
	assert.Contains(t, out, "expected waves")
}

func TestScenario_UpdateThenCompare(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	file := filepath.Join(dir, "pair.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
name: pair
description: "two nodes"
nodes:
  - name: a
  - name: b
    parents: [a]
steps:
  - expect: [[a, b]]
`), 0o644))

	_, err := runScenarioCmd(t, "text", dir, "--update")
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join(root, "golden", "pair.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), "wave 1: a b")

	require.NoError(t, os.WriteFile(filepath.Join(root, "golden", "pair.golden"), []byte("stale\n"), 0o644))
	out, err := runScenarioCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace differs")
}

func TestScenario_MissingPath(t *testing.T) {
	_, err := runScenarioCmd(t, "text", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
}
