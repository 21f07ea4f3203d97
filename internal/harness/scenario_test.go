package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/reference_topology.yaml")
	require.NoError(t, err)

	assert.Equal(t, "reference_topology", s.Name)
	assert.Len(t, s.Nodes, 5)
	assert.Len(t, s.Edges, 5)
	require.NotEmpty(t, s.Steps)
	assert.Equal(t, [][]string{{"1", "5", "2", "4", "3"}}, s.Steps[0].Expect)
	require.NotNil(t, s.Steps[5].Subscribe)
	assert.Equal(t, "CYCLE_DETECTED", s.Steps[5].ExpectError)
	assert.NotNil(t, s.Steps[5].Expect, "an empty list still expects no waves")
	assert.Empty(t, s.Steps[5].Expect)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: x
description: y
nodes: [{name: a}]
steps: [{trigerr: [a]}]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nnodes: [{name: a}]\nsteps: [{}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nnodes: [{name: a}]\nsteps: [{}]\n",
			want: "description is required",
		},
		{
			name: "no nodes",
			yaml: "name: n\ndescription: d\nsteps: [{}]\n",
			want: "nodes list is required",
		},
		{
			name: "no steps",
			yaml: "name: n\ndescription: d\nnodes: [{name: a}]\n",
			want: "steps list is required",
		},
		{
			name: "duplicate node",
			yaml: "name: n\ndescription: d\nnodes: [{name: a}, {name: a}]\nsteps: [{}]\n",
			want: `duplicate node "a"`,
		},
		{
			name: "parent declared later",
			yaml: "name: n\ndescription: d\nnodes: [{name: a, parents: [b]}, {name: b}]\nsteps: [{}]\n",
			want: `parent "b" must be declared before "a"`,
		},
		{
			name: "unknown edge node",
			yaml: "name: n\ndescription: d\nnodes: [{name: a}]\nedges: [{child: a, parent: z}]\nsteps: [{}]\n",
			want: `edges[0]: unknown node "z"`,
		},
		{
			name: "unknown trigger",
			yaml: "name: n\ndescription: d\nnodes: [{name: a}]\nsteps: [{trigger: [z]}]\n",
			want: `steps[0]: unknown node "z"`,
		},
		{
			name: "on_wave without targets",
			yaml: "name: n\ndescription: d\nnodes: [{name: a}]\nsteps: [{on_wave: {node: a}}]\n",
			want: "trigger is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_AllShippedScenariosParse(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		t.Run(filepath.Base(p), func(t *testing.T) {
			_, err := os.Stat(p)
			require.NoError(t, err)
			_, err = LoadScenario(p)
			assert.NoError(t, err)
		})
	}
}
