package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render formats a result as the line-oriented trace stored in golden
// files.
func Render(r *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", r.Name)
	fmt.Fprintf(&b, "ranks: %s\n", r.Ranks)
	for _, st := range r.Steps {
		fmt.Fprintf(&b, "step %d: %s\n", st.Index, st.Action)
		if st.Err != "" {
			fmt.Fprintf(&b, "  error: %s\n", st.Err)
		}
		if st.Ranks != "" {
			fmt.Fprintf(&b, "  ranks: %s\n", st.Ranks)
		}
		if len(st.Waves) == 0 {
			b.WriteString("  (no waves)\n")
		}
		for _, w := range st.Waves {
			fmt.Fprintf(&b, "  wave %d: %s", w.ID, strings.Join(w.Visited, " "))
			if w.Err != "" {
				fmt.Fprintf(&b, " (error: %s)", w.Err)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RunWithGolden runs scenario, fails t on unmet expectations and compares
// the rendered trace with testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(Render(result)))
}
