package fanout

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"voxrecipe/internal/services"
)

// Task is the unit of work for one partition, p in [1, Partitions].
type Task func(ctx context.Context, p int) error

// Branch is one independent dataset (or the single implicit one) fanned out
// over Partitions sub-jobs.
type Branch struct {
	Name       string
	Partitions int
	// Prepare runs before any partition launches, e.g. splitting a manifest.
	// When it fails no partition runs and the branch counts as one failure.
	Prepare func(ctx context.Context) error
	Task    Task
}

// Result is the terminal state of one sub-job. Partition 0 denotes the
// branch Prepare step.
type Result struct {
	Branch    string
	Partition int
	Err       error
	Elapsed   time.Duration
}

// BranchOutcome collects the results of one branch in partition order.
type BranchOutcome struct {
	Name    string
	Results []Result
}

// Failed returns the failed partitions of the branch in ascending order.
func (b BranchOutcome) Failed() []int {
	var failed []int
	for _, r := range b.Results {
		if r.Err != nil {
			failed = append(failed, r.Partition)
		}
	}
	return failed
}

// Outcome is the aggregated result of one fan-out.
type Outcome struct {
	Branches []BranchOutcome
}

// Total counts every sub-job that reached a terminal state.
func (o Outcome) Total() int {
	n := 0
	for _, b := range o.Branches {
		n += len(b.Results)
	}
	return n
}

// Failed counts sub-jobs that reported an error.
func (o Outcome) Failed() int {
	n := 0
	for _, b := range o.Branches {
		n += len(b.Failed())
	}
	return n
}

// FailedPartitions maps branch name to its failed partitions. Branches with
// no failures are omitted.
func (o Outcome) FailedPartitions() map[string][]int {
	out := make(map[string][]int)
	for _, b := range o.Branches {
		if failed := b.Failed(); len(failed) > 0 {
			out[b.Name] = failed
		}
	}
	return out
}

// Err returns a *FailureError when any sub-job failed, nil otherwise.
func (o Outcome) Err() error {
	if o.Failed() == 0 {
		return nil
	}
	return newFailureError(o)
}

// Run launches all branches concurrently and, within each, all partitions in
// ascending order, then waits for every one of them. It never stops early.
func Run(ctx context.Context, branches ...Branch) Outcome {
	outcome := Outcome{Branches: make([]BranchOutcome, len(branches))}

	var outer errgroup.Group
	for i := range branches {
		branch := branches[i]
		slot := &outcome.Branches[i]
		slot.Name = branch.Name
		outer.Go(func() error {
			*slot = runBranch(ctx, branch)
			return nil
		})
	}
	_ = outer.Wait()
	if t := tallyFrom(ctx); t != nil {
		t.add(outcome)
	}
	return outcome
}

func runBranch(ctx context.Context, branch Branch) BranchOutcome {
	out := BranchOutcome{Name: branch.Name}
	ctx = services.WithBranch(ctx, branch.Name)

	if branch.Prepare != nil {
		started := time.Now()
		if err := branch.Prepare(ctx); err != nil {
			out.Results = []Result{{Branch: branch.Name, Partition: 0, Err: err, Elapsed: time.Since(started)}}
			return out
		}
	}

	n := branch.Partitions
	if n < 1 {
		n = 1
	}
	out.Results = make([]Result, n)

	var inner errgroup.Group
	for p := 1; p <= n; p++ {
		slot := &out.Results[p-1]
		slot.Branch = branch.Name
		slot.Partition = p
		partCtx := services.WithPartition(ctx, p)
		inner.Go(func() error {
			started := time.Now()
			slot.Err = runTask(partCtx, branch.Task, slot.Partition)
			slot.Elapsed = time.Since(started)
			return nil
		})
	}
	_ = inner.Wait()
	return out
}

func runTask(ctx context.Context, task Task, p int) error {
	if task == nil {
		return nil
	}
	return task(ctx, p)
}

// Single wraps a non-parallel action as a one-partition branch so that every
// stage reports through the same aggregation path.
func Single(name string, action func(ctx context.Context) error) Branch {
	return Branch{
		Name:       name,
		Partitions: 1,
		Task: func(ctx context.Context, _ int) error {
			return action(ctx)
		},
	}
}
