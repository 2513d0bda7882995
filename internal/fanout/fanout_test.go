package fanout_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voxrecipe/internal/fanout"
	"voxrecipe/internal/services"
)

func TestRunLaunchesExactlyNJPerBranch(t *testing.T) {
	for _, nj := range []int{1, 3, 8} {
		var mu sync.Mutex
		seen := map[string][]int{}
		task := func(ctx context.Context, p int) error {
			branch, _ := services.BranchFromContext(ctx)
			mu.Lock()
			seen[branch] = append(seen[branch], p)
			mu.Unlock()
			return nil
		}
		outcome := fanout.Run(context.Background(),
			fanout.Branch{Name: "dev", Partitions: nj, Task: task},
			fanout.Branch{Name: "eval", Partitions: nj, Task: task},
		)
		if outcome.Total() != 2*nj || outcome.Failed() != 0 {
			t.Fatalf("nj=%d: total=%d failed=%d", nj, outcome.Total(), outcome.Failed())
		}
		for _, name := range []string{"dev", "eval"} {
			if len(seen[name]) != nj {
				t.Fatalf("nj=%d: branch %s launched %d sub-jobs", nj, name, len(seen[name]))
			}
		}
		if err := outcome.Err(); err != nil {
			t.Fatalf("nj=%d: unexpected error %v", nj, err)
		}
	}
}

func TestRunRunsPartitionsConcurrently(t *testing.T) {
	const nj = 4
	var running, peak atomic.Int32
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(nj)
	go func() {
		started.Wait()
		close(release)
	}()

	outcome := fanout.Run(context.Background(), fanout.Branch{
		Name:       "train",
		Partitions: nj,
		Task: func(ctx context.Context, p int) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			started.Done()
			select {
			case <-release:
			case <-time.After(5 * time.Second):
				return errors.New("partitions were not launched together")
			}
			running.Add(-1)
			return nil
		},
	})
	if err := outcome.Err(); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if peak.Load() != nj {
		t.Fatalf("expected %d concurrent sub-jobs, peak was %d", nj, peak.Load())
	}
}

func TestPartialFailureDrainsAllSubJobs(t *testing.T) {
	// nj=4, partitions 2 and 4 fail.
	var finished atomic.Int32
	outcome := fanout.Run(context.Background(), fanout.Branch{
		Name:       "dev",
		Partitions: 4,
		Task: func(ctx context.Context, p int) error {
			defer finished.Add(1)
			if p%2 == 0 {
				return fmt.Errorf("partition %d: %w", p, services.ErrExternalTool)
			}
			// Slow successes still complete after the fast failures.
			time.Sleep(20 * time.Millisecond)
			return nil
		},
	})

	if finished.Load() != 4 {
		t.Fatalf("expected all 4 sub-jobs to finish, got %d", finished.Load())
	}
	if outcome.Failed() != 2 || outcome.Total() != 4 {
		t.Fatalf("expected 2 of 4 failed, got %d of %d", outcome.Failed(), outcome.Total())
	}
	if got := outcome.FailedPartitions(); !reflect.DeepEqual(got, map[string][]int{"dev": {2, 4}}) {
		t.Fatalf("unexpected failed partitions %v", got)
	}

	err := outcome.Err()
	var fe *fanout.FailureError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FailureError, got %T", err)
	}
	if fe.Error() != "2 of 4 sub-jobs failed [dev: 2,4]" {
		t.Fatalf("unexpected message %q", fe.Error())
	}
	if !errors.Is(err, services.ErrStageFailed) || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected stage and tool markers, got %v", err)
	}

	dir := t.TempDir()
	if concatErr := outcome.Concat("feats.scp", func(string) string { return dir }); !errors.As(concatErr, &fe) {
		t.Fatalf("concat must refuse a failed outcome, got %v", concatErr)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "feats.scp")); !os.IsNotExist(statErr) {
		t.Fatal("no listing may be written after a failed fan-out")
	}
}

func TestPrepareFailureSkipsPartitions(t *testing.T) {
	var launched atomic.Int32
	outcome := fanout.Run(context.Background(),
		fanout.Branch{
			Name:       "dev",
			Partitions: 4,
			Prepare:    func(context.Context) error { return errors.New("splitjson failed") },
			Task: func(context.Context, int) error {
				launched.Add(1)
				return nil
			},
		},
		fanout.Branch{
			Name:       "eval",
			Partitions: 4,
			Prepare:    func(context.Context) error { return nil },
			Task: func(context.Context, int) error {
				launched.Add(1)
				return nil
			},
		},
	)
	if launched.Load() != 4 {
		t.Fatalf("only the healthy branch should launch, got %d", launched.Load())
	}
	if outcome.Failed() != 1 || outcome.Total() != 5 {
		t.Fatalf("expected 1 of 5 failed, got %d of %d", outcome.Failed(), outcome.Total())
	}
	if msg := outcome.Err().Error(); msg != "1 of 5 sub-jobs failed [dev: prepare]" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestSingleBranch(t *testing.T) {
	outcome := fanout.Run(context.Background(), fanout.Single("", func(context.Context) error {
		return errors.New("boom")
	}))
	if msg := outcome.Err().Error(); msg != "1 of 1 sub-job failed [1]" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func writeShard(t *testing.T, dir, name string, p int, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, fanout.ShardName(name, p)), []byte(content), 0o644); err != nil {
		t.Fatalf("write shard %d: %v", p, err)
	}
}

func TestConcatThreePartitions(t *testing.T) {
	dir := t.TempDir()
	// Written out of order to show ordering comes from the partition index.
	for _, p := range []int{3, 1, 2} {
		writeShard(t, dir, "feats.scp", p, fmt.Sprintf("utt%d path%d\n", p, p))
	}
	if err := fanout.Concat(dir, "feats.scp", 3); err != nil {
		t.Fatalf("Concat: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "feats.scp"))
	if err != nil {
		t.Fatalf("read listing: %v", err)
	}
	want := "utt1 path1\nutt2 path2\nutt3 path3\n"
	if string(data) != want {
		t.Fatalf("unexpected listing:\n%s", data)
	}
}

func TestConcatUsesNumericOrder(t *testing.T) {
	dir := t.TempDir()
	for p := 1; p <= 11; p++ {
		writeShard(t, dir, "wav.scp", p, fmt.Sprintf("u%02d\n", p))
	}
	if err := fanout.Concat(dir, "wav.scp", 11); err != nil {
		t.Fatalf("Concat: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "wav.scp"))
	lines := strings.Fields(string(data))
	if lines[1] != "u02" || lines[9] != "u10" || lines[10] != "u11" {
		t.Fatalf("expected numeric ordering, got %v", lines)
	}
}

func TestConcatEqualsSinglePartitionRun(t *testing.T) {
	utts := []string{"LJ001-0001 a", "LJ001-0002 b", "LJ001-0003 c", "LJ001-0004 d", "LJ001-0005 e"}
	single := t.TempDir()
	writeShard(t, single, "feats.scp", 1, strings.Join(utts, "\n")+"\n")
	if err := fanout.Concat(single, "feats.scp", 1); err != nil {
		t.Fatalf("single Concat: %v", err)
	}

	split := t.TempDir()
	const nj = 2
	for p := 1; p <= nj; p++ {
		var b strings.Builder
		for i, u := range utts {
			if i*nj/len(utts) == p-1 {
				b.WriteString(u + "\n")
			}
		}
		writeShard(t, split, "feats.scp", p, b.String())
	}
	if err := fanout.Concat(split, "feats.scp", nj); err != nil {
		t.Fatalf("split Concat: %v", err)
	}

	a, _ := os.ReadFile(filepath.Join(single, "feats.scp"))
	b, _ := os.ReadFile(filepath.Join(split, "feats.scp"))
	if string(a) != string(b) {
		t.Fatalf("partitioned listing differs:\n%s\nvs\n%s", a, b)
	}
}

func TestConcatReportsBadShardsAsPartitionFailures(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, dir, "feats.scp", 1, "utt1 a\n")
	writeShard(t, dir, "feats.scp", 3, "utt3 c") // truncated

	outcome := fanout.Run(context.Background(), fanout.Branch{
		Name:       "eval",
		Partitions: 3,
		Task:       func(context.Context, int) error { return nil },
	})
	err := outcome.Concat("feats.scp", func(string) string { return dir })
	if err == nil {
		t.Fatal("expected shard failure")
	}
	if !errors.Is(err, services.ErrArtifact) {
		t.Fatalf("expected artifact marker, got %v", err)
	}
	var se *fanout.ShardError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ShardError in chain, got %v", err)
	}
	if msg := err.Error(); msg != "2 of 3 sub-jobs failed [eval: 2,3]" {
		t.Fatalf("unexpected message %q", msg)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "feats.scp")); !os.IsNotExist(statErr) {
		t.Fatal("a bad shard must not produce a partial listing")
	}
}

func TestConcatValidatesEveryBranch(t *testing.T) {
	base := t.TempDir()
	dirOf := func(split string) string { return filepath.Join(base, split) }
	for _, split := range []string{"dev", "eval", "train"} {
		if err := os.MkdirAll(dirOf(split), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		writeShard(t, dirOf(split), "feats.scp", 1, split+"-utt1 a\n")
		content := split + "-utt2 b\n"
		if split != "train" {
			content = split + "-utt2 b" // truncated
		}
		writeShard(t, dirOf(split), "feats.scp", 2, content)
	}

	task := func(context.Context, int) error { return nil }
	outcome := fanout.Run(context.Background(),
		fanout.Branch{Name: "dev", Partitions: 2, Task: task},
		fanout.Branch{Name: "eval", Partitions: 2, Task: task},
		fanout.Branch{Name: "train", Partitions: 2, Task: task},
	)
	err := outcome.Concat("feats.scp", dirOf)
	if err == nil {
		t.Fatal("expected shard failures")
	}
	if msg := err.Error(); msg != "2 of 6 sub-jobs failed [dev: 2; eval: 2]" {
		t.Fatalf("unexpected message %q", msg)
	}
	if _, statErr := os.Stat(filepath.Join(dirOf("train"), "feats.scp")); statErr != nil {
		t.Fatalf("sound branch should still get its listing: %v", statErr)
	}
	for _, split := range []string{"dev", "eval"} {
		if _, statErr := os.Stat(filepath.Join(dirOf(split), "feats.scp")); !os.IsNotExist(statErr) {
			t.Fatalf("branch %s must not get a partial listing", split)
		}
	}
}

func TestShardName(t *testing.T) {
	tests := map[string]string{
		"feats.scp": "feats.4.scp",
		"wav.scp":   "wav.4.scp",
		"feats":     "feats.4",
	}
	for in, want := range tests {
		if got := fanout.ShardName(in, 4); got != want {
			t.Errorf("ShardName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTallyCountsEveryRun(t *testing.T) {
	ctx, tally := fanout.WithTally(context.Background())
	fanout.Run(ctx, fanout.Branch{Name: "dev", Partitions: 4, Task: func(_ context.Context, p int) error {
		if p == 3 {
			return errors.New("decode failed")
		}
		return nil
	}})
	fanout.Run(ctx, fanout.Single("", func(context.Context) error { return nil }))
	fanout.Run(context.Background(), fanout.Single("", func(context.Context) error { return nil }))

	if tally.Total() != 5 || tally.Failed() != 1 {
		t.Fatalf("unexpected tally total=%d failed=%d", tally.Total(), tally.Failed())
	}
}
