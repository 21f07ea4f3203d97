package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidate_ValidCUE(t *testing.T) {
	out, err := runValidateCmd(t, "text", "../config/testdata/valid.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "config valid")
}

func TestValidate_ValidYAMLJSON(t *testing.T) {
	out, err := runValidateCmd(t, "json", "../config/testdata/valid.yaml")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Valid  bool `json:"valid"`
			Config struct {
				Sim struct {
					Seed int64 `json:"seed"`
				} `json:"sim"`
			} `json:"config"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, int64(42), resp.Data.Config.Sim.Seed)
}

func TestValidate_SchemaViolation(t *testing.T) {
	out, err := runValidateCmd(t, "json", "../config/testdata/bad_range.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))

	var resp envelope
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfigInvalid, resp.Error.Code)
}

func TestValidate_MissingFile(t *testing.T) {
	out, err := runValidateCmd(t, "text", "does-not-exist.cue")
	require.Error(t, err)
	assert.Contains(t, out, "error "+ErrCodeNotFound)
}

func TestValidate_RequiresArgument(t *testing.T) {
	_, err := runValidateCmd(t, "text")
	require.Error(t, err)
}
