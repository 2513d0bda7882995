// Package artifacts models the data-flow contract between stages as a DAG:
// an edge runs from the stage that writes an artifact to every stage that
// reads it. The graph lets a stage run in isolation verify that the
// artifacts it depends on are already on disk, and name the stage to rerun
// when they are not.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"

	"voxrecipe/internal/services"
	"voxrecipe/internal/stage"
)

// Graph is the stage dependency DAG derived from declared inputs and outputs.
type Graph struct {
	g         graph.Graph[int, stage.Stage]
	producers map[string]int
}

func stageHash(s stage.Stage) int {
	return s.Index
}

// Build derives the DAG from reg. It fails when two stages claim the same
// output or when a stage reads an artifact produced by itself or a later stage.
func Build(reg *stage.Registry) (*Graph, error) {
	g := graph.New(stageHash, graph.Directed(), graph.PreventCycles())
	producers := make(map[string]int)

	stages := reg.Stages()
	for _, s := range stages {
		if err := g.AddVertex(s); err != nil {
			return nil, fmt.Errorf("add %s: %w", s, err)
		}
		for _, out := range s.Outputs {
			if prev, ok := producers[out]; ok {
				return nil, fmt.Errorf("artifact %s written by both stage %d and stage %d", out, prev, s.Index)
			}
			producers[out] = s.Index
		}
	}

	for _, s := range stages {
		for _, in := range s.Inputs {
			from, ok := producers[in]
			if !ok {
				continue
			}
			if from >= s.Index {
				return nil, fmt.Errorf("%s reads %s, which is written by stage %d", s, in, from)
			}
			if err := g.AddEdge(from, s.Index); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, fmt.Errorf("link stage %d -> %s: %w", from, s, err)
			}
		}
	}
	return &Graph{g: g, producers: producers}, nil
}

// Order returns a topological order that breaks ties by ascending index.
// For a well-formed registry it equals the registration order.
func (g *Graph) Order() ([]int, error) {
	return graph.StableTopologicalSort(g.g, func(a, b int) bool { return a < b })
}

// Producer returns the stage that writes path.
func (g *Graph) Producer(path string) (stage.Stage, bool) {
	idx, ok := g.producers[path]
	if !ok {
		return stage.Stage{}, false
	}
	s, err := g.g.Vertex(idx)
	if err != nil {
		return stage.Stage{}, false
	}
	return s, true
}

// Upstream returns every stage index the given stage transitively depends on,
// in ascending order.
func (g *Graph) Upstream(index int) ([]int, error) {
	preds, err := g.g.PredecessorMap()
	if err != nil {
		return nil, err
	}
	if _, ok := preds[index]; !ok {
		return nil, fmt.Errorf("stage %d: %w", index, graph.ErrVertexNotFound)
	}
	seen := make(map[int]struct{})
	queue := []int{index}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for parent := range preds[current] {
			if _, ok := seen[parent]; ok {
				continue
			}
			seen[parent] = struct{}{}
			queue = append(queue, parent)
		}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

// Check verifies that every declared input of s exists. Missing inputs are
// reported as one artifact-integrity error naming the stage to rerun.
func (g *Graph) Check(_ context.Context, s stage.Stage) error {
	var missing []string
	rerun := -1
	for _, in := range s.Inputs {
		if _, err := os.Stat(in); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrArtifact, s.Name, "verify inputs", fmt.Sprintf("cannot stat %s", in), err)
		}
		if producer, ok := g.Producer(in); ok {
			missing = append(missing, fmt.Sprintf("%s (from %s)", in, producer))
			if rerun < 0 || producer.Index < rerun {
				rerun = producer.Index
			}
			continue
		}
		missing = append(missing, in)
	}
	if len(missing) == 0 {
		return nil
	}
	msg := "missing inputs: " + strings.Join(missing, ", ")
	if rerun >= 0 {
		msg += fmt.Sprintf("; rerun from --stage %d", rerun)
	}
	return services.Wrap(services.ErrArtifact, s.Name, "verify inputs", msg, nil)
}

// Verifier adapts Check for stage.WithVerifier.
func (g *Graph) Verifier() stage.Verifier {
	return g.Check
}

// WriteDOT renders the DAG in Graphviz DOT format.
func (g *Graph) WriteDOT(w io.Writer) error {
	return draw.DOT(g.g, w)
}
