package prefabs

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MachineSpec is a whole machine definition: a named root plus the rest of
// the states, listed parents-before-children. A machine-level script
// backs every state that does not override it.
type MachineSpec struct {
	Name       string      `yaml:"name"`
	Root       string      `yaml:"root"`
	HistoryLen int         `yaml:"history_len"`
	Script     string      `yaml:"script"`
	Schedule   string      `yaml:"schedule"`
	States     []StateSpec `yaml:"states"`
}

// StateSpec is one node of the machine. Guard fields hold condition
// expressions over named predicates, e.g. "And(is_up, Not(jammed))".
// Callback fields name registry entries; the literal value "script" binds
// the state's script lifecycle instead.
type StateSpec struct {
	Name      string `yaml:"name"`
	Parent    string `yaml:"parent"`
	Strategy  string `yaml:"strategy"`
	Behavior  string `yaml:"behavior"`
	Priority  uint32 `yaml:"priority"`
	Traversal string `yaml:"traversal"`
	EnterWhen string `yaml:"enter_when"`
	ExitWhen  string `yaml:"exit_when"`
	OnEnter   string `yaml:"on_enter"`
	OnUpdate  string `yaml:"on_update"`
	OnExit    string `yaml:"on_exit"`
	Script    string `yaml:"script"`
}

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

func LoadMachineSpec(filename string) (MachineSpec, error) {
	spec, err := LoadSpec[MachineSpec](filename)
	if err != nil {
		return MachineSpec{}, err
	}
	if err := spec.Validate(); err != nil {
		return MachineSpec{}, fmt.Errorf("prefabs: %s: %w", filename, err)
	}
	return spec, nil
}

// Validate checks the structural rules a spec must satisfy before it can
// be built: a known root, unique names, every non-root state naming a
// parent that appears earlier in the list.
func (s MachineSpec) Validate() error {
	if s.Root == "" {
		return fmt.Errorf("machine %q has no root", s.Name)
	}
	seen := map[string]bool{}
	rootFound := false
	for i, st := range s.States {
		if st.Name == "" {
			return fmt.Errorf("machine %q: state %d has no name", s.Name, i)
		}
		if seen[st.Name] {
			return fmt.Errorf("machine %q: duplicate state %q", s.Name, st.Name)
		}
		if st.Name == s.Root {
			rootFound = true
			if st.Parent != "" {
				return fmt.Errorf("machine %q: root %q has a parent", s.Name, st.Name)
			}
		} else {
			if st.Parent == "" {
				return fmt.Errorf("machine %q: state %q has no parent", s.Name, st.Name)
			}
			if !seen[st.Parent] {
				return fmt.Errorf("machine %q: state %q lists parent %q before it is defined", s.Name, st.Name, st.Parent)
			}
		}
		seen[st.Name] = true
	}
	if !rootFound {
		return fmt.Errorf("machine %q: root %q not among states", s.Name, s.Root)
	}
	return nil
}
