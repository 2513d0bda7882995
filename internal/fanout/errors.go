package fanout

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"voxrecipe/internal/services"
)

// FailureError reports a fan-out in which at least one sub-job failed.
type FailureError struct {
	Failed     int
	Total      int
	Partitions map[string][]int
	causes     []error
}

func newFailureError(o Outcome) *FailureError {
	fe := &FailureError{
		Failed:     o.Failed(),
		Total:      o.Total(),
		Partitions: o.FailedPartitions(),
	}
	for _, b := range o.Branches {
		for _, r := range b.Results {
			if r.Err != nil {
				fe.causes = append(fe.causes, r.Err)
			}
		}
	}
	return fe
}

// Error renders e.g. "2 of 8 sub-jobs failed [dev: 2,4]".
func (e *FailureError) Error() string {
	noun := "sub-jobs"
	if e.Total == 1 {
		noun = "sub-job"
	}
	msg := fmt.Sprintf("%d of %d %s failed", e.Failed, e.Total, noun)
	if detail := e.describePartitions(); detail != "" {
		msg += " [" + detail + "]"
	}
	return msg
}

func (e *FailureError) describePartitions() string {
	names := make([]string, 0, len(e.Partitions))
	for name := range e.Partitions {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]string, 0, len(names))
	for _, name := range names {
		parts := e.Partitions[name]
		nums := make([]string, len(parts))
		for i, p := range parts {
			if p == 0 {
				nums[i] = "prepare"
				continue
			}
			nums[i] = strconv.Itoa(p)
		}
		joined := strings.Join(nums, ",")
		if name != "" {
			joined = name + ": " + joined
		}
		groups = append(groups, joined)
	}
	return strings.Join(groups, "; ")
}

// Unwrap exposes the stage-failure marker and each sub-job cause.
func (e *FailureError) Unwrap() []error {
	return append([]error{services.ErrStageFailed}, e.causes...)
}

// ShardError reports a partition whose listing shard is missing, unreadable or
// truncated even though its sub-job exited successfully.
type ShardError struct {
	Path      string
	Partition int
	Err       error
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %d (%s): %v", e.Partition, e.Path, e.Err)
}

// Unwrap tags the shard failure as an artifact-integrity error.
func (e *ShardError) Unwrap() []error {
	return []error{services.ErrArtifact, e.Err}
}
