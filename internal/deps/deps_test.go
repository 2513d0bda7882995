package deps

import (
	"os"
	"path/filepath"
	"testing"

	"voxrecipe/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "make_fbank.sh")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "make_fbank", Command: present},
		{Name: "tts_decode", Command: "clearly-not-present-binary"},
		{Name: "splitjson", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to resolve, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for empty command: %q", results[2].Detail)
	}
	if len(Missing(results)) != 2 {
		t.Fatalf("expected two missing requirements, got %d", len(Missing(results)))
	}
}

func TestRecipeRequirements(t *testing.T) {
	cfg := config.Default()
	cfg.Model.NAverage = 0
	cfg.Jobs.Wrapper = []string{"queue.pl", "--mem", "2G"}

	reqs := RecipeRequirements(&cfg)
	if len(reqs) != 12 {
		t.Fatalf("expected 11 tools plus wrapper, got %d", len(reqs))
	}
	byName := map[string]Requirement{}
	for _, r := range reqs {
		byName[r.Name] = r
	}
	if !byName["average_checkpoints"].Optional {
		t.Fatal("averager should be optional when n_average is 0")
	}
	if byName["job wrapper"].Command != "queue.pl" {
		t.Fatalf("unexpected wrapper requirement %+v", byName["job wrapper"])
	}
	if byName["tts_train"].Command != cfg.Tools.Train {
		t.Fatalf("unexpected train command %q", byName["tts_train"].Command)
	}
}

func TestMissingIgnoresOptional(t *testing.T) {
	original := lookPath
	lookPath = func(string) (string, error) { return "", os.ErrNotExist }
	t.Cleanup(func() { lookPath = original })

	statuses := CheckBinaries([]Requirement{{Name: "avg", Command: "average_checkpoints.py", Optional: true}})
	if len(Missing(statuses)) != 0 {
		t.Fatal("optional requirement must not count as missing")
	}
}

func TestSelectKeepsToolsOfSelectedStages(t *testing.T) {
	cfg := config.Default()
	cfg.Jobs.Wrapper = []string{"run.pl"}
	reqs := RecipeRequirements(&cfg)

	names := func(rs []Requirement) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.Name)
		}
		return out
	}

	got := names(Select(reqs, 3, 3))
	if len(got) != 2 || got[0] != "tts_train" || got[1] != "job wrapper" {
		t.Fatalf("unexpected tools for stage 3: %v", got)
	}
	if got := Select(reqs, 5, 2); len(got) != 0 {
		t.Fatalf("an empty range needs no tools, got %v", names(got))
	}
	if got := Select(reqs, 6, 100); len(got) != 0 {
		t.Fatalf("a range past the last stage needs no tools, got %v", names(got))
	}
	if got := reqs[len(reqs)-1].StageList(); got != "0,1,2,3,4,5" {
		t.Fatalf("unexpected wrapper stages %q", got)
	}
}
