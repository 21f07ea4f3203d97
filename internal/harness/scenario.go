package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a graph topology plus the steps run against it.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario pins down.
	Description string `yaml:"description"`

	// Nodes are registered in order.
	Nodes []NodeSpec `yaml:"nodes"`

	// Edges are subscribed in order after registration.
	Edges []Edge `yaml:"edges,omitempty"`

	// Steps run in order against the built graph.
	Steps []Step `yaml:"steps"`
}

// NodeSpec declares one node.
type NodeSpec struct {
	Name string `yaml:"name"`

	// Parents are subscribed during Initialise. They must be declared
	// earlier in the node list.
	Parents []string `yaml:"parents,omitempty"`

	// Quiet makes the node report no change from its first wave on.
	Quiet bool `yaml:"quiet,omitempty"`
}

// Edge is a child to parent subscription.
type Edge struct {
	Child  string `yaml:"child"`
	Parent string `yaml:"parent"`
}

// OnWave arms Node to trigger the listed nodes the next time it runs.
type OnWave struct {
	Node    string   `yaml:"node"`
	Trigger []string `yaml:"trigger"`
}

// Step is one round of actions followed by waves.
type Step struct {
	Loud               []string `yaml:"loud,omitempty"`
	Quiet              []string `yaml:"quiet,omitempty"`
	Fail               []string `yaml:"fail,omitempty"`
	OnWave             *OnWave  `yaml:"on_wave,omitempty"`
	Subscribe          *Edge    `yaml:"subscribe,omitempty"`
	Trigger            []string `yaml:"trigger,omitempty"`
	TriggerWithParents []string `yaml:"trigger_with_parents,omitempty"`
	Close              bool     `yaml:"close,omitempty"`

	// ExpectError is a graph error code, or a substring of the error, that
	// the step must produce.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Expect is the visit order of each wave the step runs. A nil Expect
	// is not checked; an empty list expects no waves.
	Expect [][]string `yaml:"expect,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Nodes) == 0 {
		return errors.New("nodes list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}

	known := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.Name == "" {
			return fmt.Errorf("nodes[%d]: name is required", i)
		}
		if known[n.Name] {
			return fmt.Errorf("nodes[%d]: duplicate node %q", i, n.Name)
		}
		for _, p := range n.Parents {
			if !known[p] {
				return fmt.Errorf("nodes[%d]: parent %q must be declared before %q", i, p, n.Name)
			}
		}
		known[n.Name] = true
	}

	check := func(where string, names ...string) error {
		for _, name := range names {
			if !known[name] {
				return fmt.Errorf("%s: unknown node %q", where, name)
			}
		}
		return nil
	}

	for i, e := range s.Edges {
		if err := check(fmt.Sprintf("edges[%d]", i), e.Child, e.Parent); err != nil {
			return err
		}
	}
	for i, st := range s.Steps {
		where := fmt.Sprintf("steps[%d]", i)
		for _, names := range [][]string{st.Loud, st.Quiet, st.Fail, st.Trigger, st.TriggerWithParents} {
			if err := check(where, names...); err != nil {
				return err
			}
		}
		if st.OnWave != nil {
			if err := check(where+".on_wave", st.OnWave.Node); err != nil {
				return err
			}
			if len(st.OnWave.Trigger) == 0 {
				return fmt.Errorf("%s.on_wave: trigger is required", where)
			}
			if err := check(where+".on_wave", st.OnWave.Trigger...); err != nil {
				return err
			}
		}
		if st.Subscribe != nil {
			if err := check(where+".subscribe", st.Subscribe.Child, st.Subscribe.Parent); err != nil {
				return err
			}
		}
	}
	return nil
}
