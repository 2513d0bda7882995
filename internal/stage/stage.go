package stage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Action performs a stage's work.
type Action func(ctx context.Context) error

// Stage is one independently re-runnable phase of the recipe.
type Stage struct {
	Index       int
	Name        string
	Description string
	// Inputs and Outputs are the artifact paths the stage reads and writes.
	Inputs  []string
	Outputs []string
	// Tools lists the executables the action invokes, for readiness checks.
	Tools  []string
	Action Action
}

// Label renders the stage name for humans, e.g. "Feature Extraction".
func (s Stage) Label() string {
	return Label(s.Name)
}

func (s Stage) String() string {
	return fmt.Sprintf("stage %d (%s)", s.Index, s.Name)
}

var titleCaser = cases.Title(language.English)

// Label converts a snake_case stage name to title case.
func Label(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return ""
	}
	return titleCaser.String(name)
}

// Selected reports whether index falls inside the inclusive [start, stop]
// range. start > stop selects nothing.
func Selected(index, start, stop int) bool {
	return start <= index && index <= stop
}

// Registry is the ordered set of stages.
type Registry struct {
	stages []Stage
}

// NewRegistry builds a registry from stages, rejecting duplicates.
func NewRegistry(stages ...Stage) (*Registry, error) {
	r := &Registry{}
	for _, s := range stages {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a stage. Indices are immutable once registered and must be unique.
func (r *Registry) Register(s Stage) error {
	if s.Index < 0 {
		return fmt.Errorf("stage %q: negative index %d", s.Name, s.Index)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("stage %d: name is required", s.Index)
	}
	if s.Action == nil {
		return fmt.Errorf("stage %d (%s): action is required", s.Index, s.Name)
	}
	for _, existing := range r.stages {
		if existing.Index == s.Index {
			return fmt.Errorf("stage index %d already registered as %q", s.Index, existing.Name)
		}
		if existing.Name == s.Name {
			return fmt.Errorf("stage name %q already registered at index %d", s.Name, existing.Index)
		}
	}
	r.stages = append(r.stages, s)
	sort.SliceStable(r.stages, func(i, j int) bool { return r.stages[i].Index < r.stages[j].Index })
	return nil
}

// Stages returns a copy of the registered stages in ascending index order.
func (r *Registry) Stages() []Stage {
	return append([]Stage(nil), r.stages...)
}

// Lookup returns the stage with the given index.
func (r *Registry) Lookup(index int) (Stage, bool) {
	for _, s := range r.stages {
		if s.Index == index {
			return s, true
		}
	}
	return Stage{}, false
}

// Len reports the number of registered stages.
func (r *Registry) Len() int {
	return len(r.stages)
}
