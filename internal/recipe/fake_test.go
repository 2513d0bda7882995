package recipe_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"voxrecipe/internal/jobs"
)

// fakeTools simulates the recipe's external tools: each writes the outputs
// its real counterpart would, with content derived only from relative names
// so two layouts can be compared byte for byte.
type fakeTools struct {
	mu    sync.Mutex
	calls []jobs.Job
	// fail returns a non-nil error to make a call fail.
	fail func(job jobs.Job) error
}

func flag(job jobs.Job, name string) string {
	for i := 0; i+1 < len(job.Args); i++ {
		if job.Args[i] == "--"+name {
			return job.Args[i+1]
		}
	}
	return ""
}

func hasFlag(job jobs.Job, name string) bool {
	for _, a := range job.Args {
		if a == "--"+name {
			return true
		}
	}
	return false
}

func (f *fakeTools) Launch(_ context.Context, job jobs.Job) error {
	f.mu.Lock()
	f.calls = append(f.calls, job)
	f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(job); err != nil {
			return err
		}
	}
	return simulate(job)
}

func (f *fakeTools) named(name string) []jobs.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []jobs.Job
	for _, c := range f.calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func simulate(job jobs.Job) error {
	switch job.Name {
	case "data_prep":
		root := flag(job, "data-dir")
		for _, key := range []string{"train-set", "dev-set", "eval-set"} {
			split := flag(job, key)
			if err := write(filepath.Join(root, split, "text"), split+"_utt1 hello\n"); err != nil {
				return err
			}
		}
	case "make_fbank":
		split := filepath.Base(flag(job, "data-dir"))
		p := flag(job, "job")
		return write(filepath.Join(flag(job, "out-dir"), "feats."+p+".scp"), fmt.Sprintf("%s_utt%s feats.%s.ark:0\n", split, p, p))
	case "compute_cmvn":
		return write(flag(job, "out"), "cmvn of "+filepath.Base(flag(job, "feats"))+"\n")
	case "make_dict":
		return write(flag(job, "out"), "<unk> 1\na 2\n")
	case "data2json":
		feats, err := os.ReadFile(flag(job, "feats"))
		if err != nil {
			return err
		}
		return write(flag(job, "out"), fmt.Sprintf("{\"utts\": %q}\n", strings.TrimSpace(string(feats))))
	case "tts_train":
		return write(filepath.Join(flag(job, "outdir"), "model.loss.best"), "trained on "+filepath.Base(flag(job, "train-json"))+"\n")
	case "average_checkpoints":
		return write(flag(job, "out"), "average of "+flag(job, "num")+"\n")
	case "splitjson":
		parts := flag(job, "parts")
		dir := filepath.Join(filepath.Dir(flag(job, "json")), "split"+parts+"utt")
		var n int
		fmt.Sscanf(parts, "%d", &n)
		for p := 1; p <= n; p++ {
			if err := write(filepath.Join(dir, fmt.Sprintf("data.%d.json", p)), fmt.Sprintf("{\"part\": %d}\n", p)); err != nil {
				return err
			}
		}
	case "tts_decode":
		if _, err := os.Stat(flag(job, "json")); err != nil {
			return err
		}
		out := flag(job, "out")
		return write(out+".scp", fmt.Sprintf("%s decoded\n", filepath.Base(out)))
	case "apply_cmvn":
		feats, err := os.ReadFile(flag(job, "feats"))
		if err != nil {
			return err
		}
		return write(flag(job, "out"), "denorm "+string(feats))
	case "convert_fbank":
		p := flag(job, "job")
		return write(filepath.Join(flag(job, "out-dir"), "wav."+p+".scp"), fmt.Sprintf("utt%s wav/%s.wav\n", p, p))
	}
	return nil
}
