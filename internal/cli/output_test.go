package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrinter(jsonMode, verbose bool) (*printer, *bytes.Buffer, *bytes.Buffer) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	return &printer{out: out, diag: diag, json: jsonMode, verbose: verbose}, out, diag
}

func TestPrinter_ResultText(t *testing.T) {
	p, out, _ := newTestPrinter(false, false)
	require.NoError(t, p.result("builds=1\n", RunSummary{Builds: 1}))
	assert.Equal(t, "builds=1\n", out.String())
}

func TestPrinter_ResultJSON(t *testing.T) {
	p, out, _ := newTestPrinter(true, false)
	require.NoError(t, p.result("ignored", RunSummary{Builds: 2, LastBuild: "b"}))

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Builds)
	assert.Equal(t, "b", resp.Data.LastBuild)
}

func TestPrinter_Fail(t *testing.T) {
	tests := []struct {
		name    string
		json    bool
		verbose bool
		want    []string
		absent  []string
	}{
		{"text", false, false, []string{"error E002: journal not found"}, []string{"path"}},
		{"text verbose", false, true, []string{"error E002: journal not found", "path:x.db"}, nil},
		{"json", true, false, []string{`"status":"error"`, `"code":"E002"`, `"path":"x.db"`}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out, _ := newTestPrinter(tt.json, tt.verbose)
			p.fail(ErrCodeNotFound, "journal not found", map[string]string{"path": "x.db"})
			for _, s := range tt.want {
				assert.Contains(t, out.String(), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out.String(), s)
			}
		})
	}
}

func TestPrinter_DebugfOnlyWhenVerbose(t *testing.T) {
	p, out, diag := newTestPrinter(true, false)
	p.debugf("validating %s", "a.cue")
	assert.Empty(t, diag.String())

	p.verbose = true
	p.debugf("validating %s", "a.cue")
	assert.Equal(t, "validating a.cue\n", diag.String())
	assert.Empty(t, out.String(), "diagnostics never reach stdout")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, ExitCode(exitErrorf(ExitCommandError, "journal not found: %s", "x.db")))

	wrapped := exitErrorf(ExitFailure, "config invalid: %w", assert.AnError)
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Equal(t, "config invalid: "+assert.AnError.Error(), wrapped.Error())
	assert.Equal(t, ExitFailure, ExitCode(wrapped))
}
