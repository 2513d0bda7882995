// Package deps resolves the external executables the recipe invokes.
package deps

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"voxrecipe/internal/config"
	"voxrecipe/internal/stage"
)

var lookPath = exec.LookPath

// Requirement defines an external tool the recipe relies on.
type Requirement struct {
	Name    string
	Command string
	// Stages lists the indices of the stages that invoke the tool.
	Stages   []int
	Optional bool
}

// StageList renders the stage indices, e.g. "1,4".
func (r Requirement) StageList() string {
	parts := make([]string, len(r.Stages))
	for i, idx := range r.Stages {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ",")
}

// UsedBy reports whether any stage in the inclusive [start, stop] range
// invokes the tool.
func (r Requirement) UsedBy(start, stop int) bool {
	for _, idx := range r.Stages {
		if stage.Selected(idx, start, stop) {
			return true
		}
	}
	return false
}

// Status reports the availability of a requirement.
type Status struct {
	Requirement
	Available bool
	Path      string
	Detail    string
}

// RecipeRequirements lists every tool the configured recipe may launch. The
// checkpoint averager is optional when averaging is disabled; a job wrapper,
// when configured, is needed by every stage since every launch goes through it.
func RecipeRequirements(cfg *config.Config) []Requirement {
	t := cfg.Tools
	reqs := []Requirement{
		{Name: "data_prep", Command: t.DataPrep, Stages: []int{0}},
		{Name: "make_fbank", Command: t.MakeFbank, Stages: []int{1}},
		{Name: "compute_cmvn", Command: t.ComputeCMVN, Stages: []int{1}},
		{Name: "make_dict", Command: t.MakeDict, Stages: []int{2}},
		{Name: "data2json", Command: t.Data2JSON, Stages: []int{2}},
		{Name: "tts_train", Command: t.Train, Stages: []int{3}},
		{Name: "average_checkpoints", Command: t.Average, Stages: []int{4}, Optional: cfg.Model.NAverage == 0},
		{Name: "splitjson", Command: t.SplitJSON, Stages: []int{4}},
		{Name: "tts_decode", Command: t.Decode, Stages: []int{4}},
		{Name: "apply_cmvn", Command: t.ApplyCMVN, Stages: []int{5}},
		{Name: "convert_fbank", Command: t.ConvertFbank, Stages: []int{5}},
	}
	if len(cfg.Jobs.Wrapper) > 0 {
		var all []int
		for _, r := range reqs {
			for _, idx := range r.Stages {
				if len(all) == 0 || all[len(all)-1] != idx {
					all = append(all, idx)
				}
			}
		}
		reqs = append(reqs, Requirement{Name: "job wrapper", Command: cfg.Jobs.Wrapper[0], Stages: all})
	}
	return reqs
}

// Select keeps the requirements used by a stage in [start, stop].
func Select(reqs []Requirement, start, stop int) []Requirement {
	var out []Requirement
	for _, r := range reqs {
		if r.UsedBy(start, stop) {
			out = append(out, r)
		}
	}
	return out
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		status := Status{Requirement: req}
		switch path, err := lookPath(req.Command); {
		case req.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		default:
			status.Available = true
			status.Path = path
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required (non-optional) statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
